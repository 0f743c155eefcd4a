package contracts

import "time"

// Direction 매매 방향
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionNone  Direction = ""
)

// Valid reports whether d is long or short
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Sign returns +1 for long, -1 for short, 0 otherwise
func (d Direction) Sign() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

// SignalStatus 시그널 상태 (상태 머신)
type SignalStatus string

const (
	SignalStatusActive  SignalStatus = "active"
	SignalStatusTP1Hit  SignalStatus = "tp1_hit"
	SignalStatusTP2Hit  SignalStatus = "tp2_hit"
	SignalStatusTP3Hit  SignalStatus = "tp3_hit"
	SignalStatusSLHit   SignalStatus = "sl_hit"
	SignalStatusExpired SignalStatus = "expired"
)

// AllSignalStatuses lists every status
func AllSignalStatuses() []SignalStatus {
	return []SignalStatus{
		SignalStatusActive, SignalStatusTP1Hit, SignalStatusTP2Hit,
		SignalStatusTP3Hit, SignalStatusSLHit, SignalStatusExpired,
	}
}

// Valid reports whether s is a known status
func (s SignalStatus) Valid() bool {
	for _, st := range AllSignalStatuses() {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports tp3_hit, sl_hit and expired
func (s SignalStatus) IsTerminal() bool {
	return s == SignalStatusTP3Hit || s == SignalStatusSLHit || s == SignalStatusExpired
}

// TPsHit returns how many take-profit levels the status implies
func (s SignalStatus) TPsHit() int {
	switch s {
	case SignalStatusTP1Hit:
		return 1
	case SignalStatusTP2Hit:
		return 2
	case SignalStatusTP3Hit:
		return 3
	default:
		return 0
	}
}

// ExitSplit is the partial-exit weight per take-profit, in percent
type ExitSplit struct {
	TP1 int `json:"tp1"`
	TP2 int `json:"tp2"`
	TP3 int `json:"tp3"`
}

// DefaultExitSplit 50/30/20 분할 청산
var DefaultExitSplit = ExitSplit{TP1: 50, TP2: 30, TP3: 20}

// Weight returns the fraction (0..1) closed at take-profit n (1..3)
func (e ExitSplit) Weight(n int) float64 {
	switch n {
	case 1:
		return float64(e.TP1) / 100
	case 2:
		return float64(e.TP2) / 100
	case 3:
		return float64(e.TP3) / 100
	default:
		return 0
	}
}

// Signal is the central persisted entity
// ⭐ SSOT: 시그널 엔티티
type Signal struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	Entry       float64   `json:"entry"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit1 float64   `json:"take_profit_1"`
	TakeProfit2 float64   `json:"take_profit_2"`
	TakeProfit3 float64   `json:"take_profit_3"`
	ExitSplit   ExitSplit `json:"exit_split"`

	ConfluenceScore int          `json:"confluence_score"`
	Quality         Quality      `json:"quality"`
	Status          SignalStatus `json:"status"`
	Reasoning       []string     `json:"reasoning"`

	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ClosedAt   *time.Time `json:"closed_at"`
	ResultPips *float64   `json:"result_pips"`

	// Lifecycle bookkeeping
	RealizedPips float64   `json:"realized_pips"` // weighted pips locked by TPs hit so far
	ActiveStop   float64   `json:"active_stop"`   // moves to entry after TP1 under breakeven policy
	LastPrice    float64   `json:"last_price"`
	LastTickAt   time.Time `json:"last_tick_at"`
	Version      int64     `json:"version"`
	ConfigHash   string    `json:"config_hash,omitempty"`

	Confluence *ConfluenceResult `json:"confluence,omitempty"`
}

// LevelsOrdered checks SL < entry < TP1 < TP2 < TP3 (reversed for short)
func (s *Signal) LevelsOrdered() bool {
	return LevelsOrdered(s.Direction, s.Entry, s.StopLoss, s.TakeProfit1, s.TakeProfit2, s.TakeProfit3)
}

// LevelsOrdered is the price-level invariant for a direction
func LevelsOrdered(dir Direction, entry, sl, tp1, tp2, tp3 float64) bool {
	switch dir {
	case DirectionLong:
		return sl < entry && entry < tp1 && tp1 < tp2 && tp2 < tp3
	case DirectionShort:
		return sl > entry && entry > tp1 && tp1 > tp2 && tp2 > tp3
	default:
		return false
	}
}

// TakeProfit returns TP n (1..3)
func (s *Signal) TakeProfit(n int) float64 {
	switch n {
	case 1:
		return s.TakeProfit1
	case 2:
		return s.TakeProfit2
	case 3:
		return s.TakeProfit3
	default:
		return 0
	}
}

// IsOpen reports a non-terminal status
func (s *Signal) IsOpen() bool {
	return !s.Status.IsTerminal()
}

// SignalEvent is one append-only status transition
type SignalEvent struct {
	ID       int64        `json:"id,omitempty"`
	SignalID string       `json:"signal_id"`
	From     SignalStatus `json:"from"`
	To       SignalStatus `json:"to"`
	Price    float64      `json:"price"`
	Pips     float64      `json:"pips"` // weighted pips realized by this transition
	At       time.Time    `json:"at"`
}

// MaxTickSkew is how far ahead of the local clock a tick may be stamped
const MaxTickSkew = 5 * time.Second

// PriceTick is one price observation from a feed
// ⭐ SSOT: 실시간 가격 데이터 구조
type PriceTick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Price  float64   `json:"price"` // mid, or last trade
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// FromFuture reports a tick stamped beyond now plus MaxTickSkew
func (t PriceTick) FromFuture(now time.Time) bool {
	return t.At.After(now.Add(MaxTickSkew))
}

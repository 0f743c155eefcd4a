package contracts

import (
	"context"
	"time"
)

// MarketDataProvider supplies OHLC history and quotes
// ⭐ SSOT: 시세 입력 인터페이스
type MarketDataProvider interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	Quote(ctx context.Context, symbol string) (*Quote, error)
}

// CalendarEvent is one economic-calendar release
type CalendarEvent struct {
	Time     time.Time `json:"time"`
	Currency string    `json:"currency"`
	Impact   string    `json:"impact"` // high | medium | low
	Title    string    `json:"title"`
}

// CalendarSource supplies economic-calendar events
// ⭐ SSOT: 뉴스/캘린더 입력 인터페이스
type CalendarSource interface {
	Events(ctx context.Context, from, to time.Time) ([]CalendarEvent, error)
}

// AIVerdict is the opaque AI scorer answer
type AIVerdict struct {
	Confidence float64   `json:"confidence"` // 0 ~ 100
	Direction  Direction `json:"direction"`
	Summary    string    `json:"summary"`
}

// AIScorer scores a setup from a text summary of the market context
// ⭐ SSOT: AI 스코어러 인터페이스
type AIScorer interface {
	Score(ctx context.Context, symbol string, summary string) (*AIVerdict, error)
}

// TradeLevels are the raw entry/stop/target prices for a new signal
type TradeLevels struct {
	Entry       float64 `json:"entry"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit1 float64 `json:"take_profit_1"`
	TakeProfit2 float64 `json:"take_profit_2"`
	TakeProfit3 float64 `json:"take_profit_3"`
}

// LevelProvider computes trade levels from market structure
// ⭐ SSOT: 진입/손절/익절 가격 산출 인터페이스
type LevelProvider interface {
	Levels(ctx context.Context, symbol string, dir Direction, mc *MarketContext) (*TradeLevels, error)
}

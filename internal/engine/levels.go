package engine

import (
	"context"
	"fmt"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/layers"
)

// ATRLevels derives entry, stop and targets from ATR multiples.
// SL = entry ∓ StopATR×ATR, TPn = entry ± TargetsATR[n]×ATR.
type ATRLevels struct {
	Period     int
	StopATR    float64
	TargetsATR [3]float64
}

// DefaultATRLevels is ATR14 with a 1.5 stop and 1.5/2.5/3.5 targets
func DefaultATRLevels() ATRLevels {
	return ATRLevels{Period: 14, StopATR: 1.5, TargetsATR: [3]float64{1.5, 2.5, 3.5}}
}

// Levels implements contracts.LevelProvider. The entry is the quote mid
// when available, the last close otherwise.
func (p ATRLevels) Levels(_ context.Context, symbol string, dir contracts.Direction, mc *contracts.MarketContext) (*contracts.TradeLevels, error) {
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: no direction for %s", contracts.ErrMalformedInput, symbol)
	}
	if mc == nil {
		return nil, fmt.Errorf("%w: no market context for %s", layers.ErrInsufficientData, symbol)
	}

	entry := mc.LastClose()
	if mc.Quote != nil && mc.Quote.Bid > 0 && mc.Quote.Ask > 0 {
		entry = mc.Quote.Mid()
	}
	if entry <= 0 {
		return nil, fmt.Errorf("%w: no price for %s", layers.ErrInsufficientData, symbol)
	}

	period := p.Period
	if period <= 0 {
		period = 14
	}
	atr := layers.ATR(mc.Candles, period)
	if atr <= 0 {
		return nil, fmt.Errorf("%w: ATR%d needs %d candles, have %d", layers.ErrInsufficientData, period, period+1, len(mc.Candles))
	}

	s := dir.Sign()
	return &contracts.TradeLevels{
		Entry:       entry,
		StopLoss:    entry - s*p.StopATR*atr,
		TakeProfit1: entry + s*p.TargetsATR[0]*atr,
		TakeProfit2: entry + s*p.TargetsATR[1]*atr,
		TakeProfit3: entry + s*p.TargetsATR[2]*atr,
	}, nil
}

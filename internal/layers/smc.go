package layers

import (
	"context"
	"fmt"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// SMCEvaluator reads the higher-timeframe trend and whether price sits in
// the discount or premium half of the recent dealing range
type SMCEvaluator struct {
	passScore int
	rangeBars int
}

// NewSMCEvaluator creates the smart-money layer
func NewSMCEvaluator(passScore int) *SMCEvaluator {
	return &SMCEvaluator{passScore: passScore, rangeBars: 50}
}

func (e *SMCEvaluator) ID() contracts.LayerID   { return contracts.LayerSMC }
func (e *SMCEvaluator) Key() contracts.LayerKey { return contracts.LayerSMC.Key() }

func (e *SMCEvaluator) Evaluate(_ context.Context, _ string, mc *contracts.MarketContext) (contracts.LayerScore, error) {
	htf := mc.HTFCandles
	if err := needCandles(htf, 60, "smc"); err != nil {
		return contracts.LayerScore{}, err
	}

	v := closes(htf)
	series := emaSeries(v, 50)
	if len(series) < 11 {
		return contracts.LayerScore{}, fmt.Errorf("%w: smc ema warm-up", ErrInsufficientData)
	}
	htfATR := atr(htf, 14)
	if htfATR == 0 {
		return contracts.LayerScore{}, fmt.Errorf("%w: flat higher timeframe", ErrInsufficientData)
	}

	// 10-bar EMA slope measured in ATRs
	slope := series[len(series)-1] - series[len(series)-11]
	trend := clampf(slope/htfATR, -1, 1)

	hi, lo := htf[len(htf)-e.rangeBars].High, htf[len(htf)-e.rangeBars].Low
	for _, c := range htf[len(htf)-e.rangeBars:] {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	last := v[len(v)-1]
	position := 0.5
	if hi > lo {
		position = (last - lo) / (hi - lo)
	}
	// +1 deep discount, -1 deep premium
	discount := 1 - 2*position

	strength := 0.7*trend + 0.3*discount
	score := directional(e.ID(), strength, e.passScore, "", asOf(mc))
	// 추세와 반대 방향 신호는 통과 불가
	if sign(trend) != sign(strength) {
		score.Passed = false
	}

	zone := "equilibrium"
	switch {
	case position < 0.45:
		zone = "discount"
	case position > 0.55:
		zone = "premium"
	}
	score.Rationale = fmt.Sprintf("SMC %s: HTF EMA50 slope %+.2f ATR, price in %s (%.0f%% of range)",
		biasWord(strength), slope/htfATR, zone, position*100)
	return score, nil
}

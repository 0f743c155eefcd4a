package layers

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// TechnicalEvaluator scores RSI, MACD and the EMA20/50 cross
// ⭐ SSOT: 기술적 지표 계산은 여기서만
type TechnicalEvaluator struct {
	passScore int
	logger    *logger.Logger
}

// NewTechnicalEvaluator creates the technical layer
func NewTechnicalEvaluator(passScore int, log *logger.Logger) *TechnicalEvaluator {
	if log == nil {
		log = logger.Nop()
	}
	return &TechnicalEvaluator{passScore: passScore, logger: log}
}

func (e *TechnicalEvaluator) ID() contracts.LayerID   { return contracts.LayerTechnical }
func (e *TechnicalEvaluator) Key() contracts.LayerKey { return contracts.LayerTechnical.Key() }

// Evaluate needs at least 60 execution bars (EMA50 plus MACD warm-up)
func (e *TechnicalEvaluator) Evaluate(ctx context.Context, symbol string, mc *contracts.MarketContext) (contracts.LayerScore, error) {
	if err := needCandles(mc.Candles, 60, "technical"); err != nil {
		return contracts.LayerScore{}, err
	}

	v := closes(mc.Candles)
	r := rsi(v, 14)
	line, signal := macd(v)
	cross := maCross(v)
	a := atr(mc.Candles, 14)

	strength := technicalStrength(r, line-signal, a, cross)

	e.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"rsi":      r,
		"macd":     line,
		"signal":   signal,
		"ma_cross": cross,
		"strength": strength,
	}).Debug("Calculated technical layer")

	rationale := fmt.Sprintf("Technical %s: RSI %.1f, MACD histogram %+.5f, EMA20/50 %s",
		biasWord(strength), r, line-signal, crossWord(cross))
	return directional(e.ID(), strength, e.passScore, rationale, asOf(mc)), nil
}

// maCross: 1 when EMA20 > EMA50 with price above EMA20, -1 for the mirror, else 0
func maCross(v []float64) int {
	fast, slow, last := ema(v, 20), ema(v, 50), v[len(v)-1]
	switch {
	case fast > slow && last > fast:
		return 1
	case fast < slow && last < fast:
		return -1
	default:
		return 0
	}
}

// technicalStrength combines the components into [-1, 1].
// RSI follows momentum inside 30..70 and fades toward zero at the extremes.
func technicalStrength(r, histogram, atr float64, cross int) float64 {
	var rsiScore float64
	switch {
	case r > 70:
		rsiScore = (100 - r) / 30
	case r < 30:
		rsiScore = -r / 30
	default:
		rsiScore = (r - 50) / 20
	}

	macdScore := 0.0
	if atr > 0 {
		macdScore = math.Tanh(2 * histogram / atr)
	}

	// RSI 40%, MACD 40%, MA 20%
	return clampf(rsiScore*0.4+macdScore*0.4+float64(cross)*0.2, -1, 1)
}

func crossWord(c int) string {
	switch c {
	case 1:
		return "bullish"
	case -1:
		return "bearish"
	default:
		return "flat"
	}
}

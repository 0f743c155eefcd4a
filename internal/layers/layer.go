// Package layers holds the ten analysis layers and the runner that fans a
// market context out to them.
package layers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// Evaluator scores one analytical dimension for a symbol
// ⭐ SSOT: 레이어 평가기 계약
type Evaluator interface {
	ID() contracts.LayerID
	Key() contracts.LayerKey
	Evaluate(ctx context.Context, symbol string, mc *contracts.MarketContext) (contracts.LayerScore, error)
}

// ErrInsufficientData means the context lacks the bars a layer needs
var ErrInsufficientData = errors.New("insufficient market data")

// DefaultPassScore is the pass line for the candle-based layers
const DefaultPassScore = 60

// neutralBand is the |strength| under which a layer reports no bias
const neutralBand = 0.05

// directional converts a signed strength in [-1, 1] into a score.
// Score is the magnitude (50 means no edge) and Bias the sign. A layer only
// passes when it both clears passScore and has a direction.
func directional(id contracts.LayerID, strength float64, passScore int, rationale string, at time.Time) contracts.LayerScore {
	strength = clampf(strength, -1, 1)

	bias := contracts.DirectionNone
	switch {
	case strength >= neutralBand:
		bias = contracts.DirectionLong
	case strength <= -neutralBand:
		bias = contracts.DirectionShort
	}

	score := int(math.Round(50 + 50*math.Abs(strength)))
	return contracts.LayerScore{
		LayerID:     id,
		Key:         id.Key(),
		Score:       score,
		Passed:      score >= passScore && bias != contracts.DirectionNone,
		Rationale:   rationale,
		Bias:        bias,
		EvaluatedAt: at,
	}
}

func asOf(mc *contracts.MarketContext) time.Time {
	if mc != nil && !mc.AsOf.IsZero() {
		return mc.AsOf
	}
	return time.Now().UTC()
}

func needCandles(cs []contracts.Candle, n int, what string) error {
	if len(cs) < n {
		return fmt.Errorf("%w: %s needs %d bars, got %d", ErrInsufficientData, what, n, len(cs))
	}
	return nil
}

func biasWord(s float64) string {
	switch {
	case s >= neutralBand:
		return "bullish"
	case s <= -neutralBand:
		return "bearish"
	default:
		return "neutral"
	}
}

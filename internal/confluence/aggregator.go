package confluence

import (
	"fmt"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// DefaultKillZonePenalty is subtracted from the composite outside any session
const DefaultKillZonePenalty = 15

// Aggregator combines ten layer scores into one composite
// ⭐ SSOT: 컨플루언스 점수 계산은 여기서만
type Aggregator struct {
	weights Weights
	penalty int
}

// NewAggregator validates weights and penalty
func NewAggregator(weights Weights, penalty int) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if penalty < 0 || penalty > 100 {
		return nil, fmt.Errorf("kill zone penalty must be in 0..100, got %d", penalty)
	}

	w := make(Weights, len(weights))
	for id, v := range weights {
		w[id] = v
	}
	return &Aggregator{weights: w, penalty: penalty}, nil
}

// NewDefaultAggregator uses DefaultWeights and a 15 point penalty
func NewDefaultAggregator() *Aggregator {
	a, _ := NewAggregator(DefaultWeights(), DefaultKillZonePenalty)
	return a
}

// Weight returns the weight of a layer
func (a *Aggregator) Weight(id contracts.LayerID) int {
	return a.weights[id]
}

// Aggregate computes the weighted composite.
//
//	contribution = score × weight / 100
//	raw          = round-half-up(Σ contribution), clamped to [0,100]
//	composite    = raw − penalty (floor 0) when kz is inactive
//
// Anything other than ten well-formed scores is ErrMalformedInput.
func (a *Aggregator) Aggregate(scores []contracts.LayerScore, kz contracts.KillZoneWindow) (contracts.ConfluenceResult, error) {
	ordered, err := checkLayers(scores)
	if err != nil {
		return contracts.ConfluenceResult{}, err
	}

	components := make(map[contracts.LayerKey]float64, len(ordered))
	weighted := 0 // Σ score×weight, exact
	for _, s := range ordered {
		w := a.weights[s.LayerID]
		weighted += s.Score * w
		components[s.LayerID.Key()] = float64(s.Score*w) / 100
	}

	raw := clamp((weighted+50)/100, 0, 100)

	composite := raw
	applied := false
	if !kz.IsActive {
		composite = clamp(raw-a.penalty, 0, 100)
		applied = true
	}

	evaluatedAt := kz.At
	if evaluatedAt.IsZero() {
		evaluatedAt = time.Now().UTC()
	}

	return contracts.ConfluenceResult{
		PerLayer:               ordered,
		WeightedComponents:     components,
		RawScore:               raw,
		Penalty:                raw - composite,
		KillZonePenaltyApplied: applied,
		CompositeScore:         composite,
		EvaluatedAt:            evaluatedAt,
	}, nil
}

// Direction is the weighted vote of passed layers that report a bias.
// A tie or no votes returns DirectionNone.
func (a *Aggregator) Direction(perLayer []contracts.LayerScore) (contracts.Direction, int, int) {
	long, short := 0, 0
	for _, s := range perLayer {
		if !s.Passed {
			continue
		}
		switch s.Bias {
		case contracts.DirectionLong:
			long += a.weights[s.LayerID]
		case contracts.DirectionShort:
			short += a.weights[s.LayerID]
		}
	}

	switch {
	case long > short:
		return contracts.DirectionLong, long, short
	case short > long:
		return contracts.DirectionShort, long, short
	default:
		return contracts.DirectionNone, long, short
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

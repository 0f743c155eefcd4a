package confluence

import (
	"fmt"
	"sort"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// Weights maps each layer to its integer weight; they must sum to 100
type Weights map[contracts.LayerID]int

// DefaultWeights: SMC 20, Structure 15, Wyckoff/VSA/OrderFlow/Technical/AI 10,
// Intermarket/Fundamental/Sentiment 5
func DefaultWeights() Weights {
	return Weights{
		contracts.LayerSMC:         20,
		contracts.LayerStructure:   15,
		contracts.LayerWyckoff:     10,
		contracts.LayerVSA:         10,
		contracts.LayerOrderFlow:   10,
		contracts.LayerTechnical:   10,
		contracts.LayerIntermarket: 5,
		contracts.LayerFundamental: 5,
		contracts.LayerSentiment:   5,
		contracts.LayerAI:          10,
	}
}

// Sum of all weights
func (w Weights) Sum() int {
	sum := 0
	for _, v := range w {
		sum += v
	}
	return sum
}

// Validate requires exactly ids 1..10, no negative weight and a sum of 100
func (w Weights) Validate() error {
	if len(w) != contracts.LayerCount {
		return fmt.Errorf("weights: expected %d layers, got %d", contracts.LayerCount, len(w))
	}
	for id, v := range w {
		if !id.Valid() {
			return fmt.Errorf("weights: invalid layer id %d", id)
		}
		if v < 0 {
			return fmt.Errorf("weights: layer %d has negative weight %d", id, v)
		}
	}
	if sum := w.Sum(); sum != 100 {
		return fmt.Errorf("weights: must sum to 100, got %d", sum)
	}
	return nil
}

// checkLayers enforces the ten-result contract: every id 1..10 exactly once,
// scores within 0..100. Returns the scores ordered by id.
func checkLayers(scores []contracts.LayerScore) ([]contracts.LayerScore, error) {
	if len(scores) != contracts.LayerCount {
		return nil, fmt.Errorf("%w: expected %d layer scores, got %d", contracts.ErrMalformedInput, contracts.LayerCount, len(scores))
	}

	seen := make(map[contracts.LayerID]bool, len(scores))
	for _, s := range scores {
		if !s.LayerID.Valid() {
			return nil, fmt.Errorf("%w: layer id %d out of range", contracts.ErrMalformedInput, s.LayerID)
		}
		if seen[s.LayerID] {
			return nil, fmt.Errorf("%w: duplicate layer id %d", contracts.ErrMalformedInput, s.LayerID)
		}
		if s.Score < 0 || s.Score > 100 {
			return nil, fmt.Errorf("%w: layer %d score %d outside 0..100", contracts.ErrMalformedInput, s.LayerID, s.Score)
		}
		seen[s.LayerID] = true
	}

	ordered := append([]contracts.LayerScore(nil), scores...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LayerID < ordered[j].LayerID })
	return ordered, nil
}

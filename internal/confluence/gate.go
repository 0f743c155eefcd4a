package confluence

import (
	"fmt"

	"github.com/wonny/confluence/backend/internal/contracts"
)

const (
	// DefaultMinPassed is the minimum passed-layer count
	DefaultMinPassed = 8
	// PublishThreshold is the minimum composite for a publishable signal
	PublishThreshold = 80
)

// DefaultCriticalLayers: HTF trend/SMC, structure, Wyckoff, AI
func DefaultCriticalLayers() []contracts.LayerID {
	return []contracts.LayerID{contracts.LayerSMC, contracts.LayerStructure, contracts.LayerWyckoff, contracts.LayerAI}
}

// Gate decides pass/fail over the ten pass flags.
// Any critical failure vetoes, otherwise passed ⇔ count ≥ minimum.
// ⭐ SSOT: 검증 게이트 규칙
type Gate struct {
	critical  []contracts.LayerID
	minPassed int
}

// NewGate validates the critical set and minimum
func NewGate(critical []contracts.LayerID, minPassed int) (*Gate, error) {
	if minPassed < 1 || minPassed > contracts.LayerCount {
		return nil, fmt.Errorf("min passed must be in 1..%d, got %d", contracts.LayerCount, minPassed)
	}
	seen := make(map[contracts.LayerID]bool, len(critical))
	for _, id := range critical {
		if !id.Valid() {
			return nil, fmt.Errorf("critical layer id %d out of range", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate critical layer id %d", id)
		}
		seen[id] = true
	}

	return &Gate{critical: append([]contracts.LayerID(nil), critical...), minPassed: minPassed}, nil
}

// NewDefaultGate uses critical {1,2,3,10} and minimum 8
func NewDefaultGate() *Gate {
	g, _ := NewGate(DefaultCriticalLayers(), DefaultMinPassed)
	return g
}

// Validate is pure over perLayer; malformed input is ErrMalformedInput
func (g *Gate) Validate(perLayer []contracts.LayerScore) (contracts.ValidationResult, error) {
	ordered, err := checkLayers(perLayer)
	if err != nil {
		return contracts.ValidationResult{}, err
	}

	passedByID := make(map[contracts.LayerID]bool, len(ordered))
	count := 0
	for _, s := range ordered {
		passedByID[s.LayerID] = s.Passed
		if s.Passed {
			count++
		}
	}

	failed := []contracts.LayerID{}
	for _, id := range g.critical {
		if !passedByID[id] {
			failed = append(failed, id)
		}
	}

	return contracts.ValidationResult{
		PassedLayers:         count,
		RequiredMinimum:      g.minPassed,
		CriticalLayerIDs:     append([]contracts.LayerID(nil), g.critical...),
		CriticalLayersFailed: failed,
		Passed:               count >= g.minPassed && len(failed) == 0,
	}, nil
}

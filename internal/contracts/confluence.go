package contracts

import "time"

// Quality 품질 등급 (포지션 사이징, 표시 강조용)
type Quality string

const (
	QualityInstitutional Quality = "institutional"
	QualityExcellent     Quality = "excellent"
	QualityStrong        Quality = "strong"
	QualityGood          Quality = "good"
	QualityWeak          Quality = "weak"
)

// AllQualities returns tiers from best to worst
func AllQualities() []Quality {
	return []Quality{QualityInstitutional, QualityExcellent, QualityStrong, QualityGood, QualityWeak}
}

// Rank orders tiers; higher is better
func (q Quality) Rank() int {
	switch q {
	case QualityInstitutional:
		return 4
	case QualityExcellent:
		return 3
	case QualityStrong:
		return 2
	case QualityGood:
		return 1
	default:
		return 0
	}
}

// ConfluenceResult is the weighted combination of one evaluation cycle
// ⭐ SSOT: 가중 합산 결과
type ConfluenceResult struct {
	Symbol                 string               `json:"symbol"`
	PerLayer               []LayerScore         `json:"per_layer"` // ordered by layer id
	WeightedComponents     map[LayerKey]float64 `json:"weighted_components"`
	RawScore               int                  `json:"raw_score"` // before kill-zone penalty
	Penalty                int                  `json:"penalty"`
	KillZonePenaltyApplied bool                 `json:"kill_zone_penalty_applied"`
	CompositeScore         int                  `json:"composite_score"`
	EvaluatedAt            time.Time            `json:"evaluated_at"`
}

// ValidationResult is the gate verdict over the ten pass flags
// Passed ⇔ PassedLayers ≥ RequiredMinimum ∧ CriticalLayersFailed = ∅
type ValidationResult struct {
	PassedLayers         int       `json:"passed_layers"`
	RequiredMinimum      int       `json:"required_minimum"`
	CriticalLayerIDs     []LayerID `json:"critical_layer_ids"`
	CriticalLayersFailed []LayerID `json:"critical_layers_failed"`
	Passed               bool      `json:"passed"`
}

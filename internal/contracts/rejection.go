package contracts

import "fmt"

// RejectionReason 시그널 미생성 사유
type RejectionReason string

const (
	RejectCriticalLayers    RejectionReason = "critical_layers_failed"
	RejectInsufficient      RejectionReason = "insufficient_layers"
	RejectScoreBelow        RejectionReason = "score_below_threshold"
	RejectDuplicate         RejectionReason = "duplicate_suppressed"
	RejectNoDirection       RejectionReason = "no_direction"
	RejectInvalidLevels     RejectionReason = "invalid_levels"
	RejectLevelsUnavailable RejectionReason = "levels_unavailable"
)

// Gate names reported in Rejection.FailedGate
const (
	GateValidation = "validation"
	GateScore      = "score_threshold"
	GateDuplicate  = "duplicate"
	GateDirection  = "direction"
	GateLevels     = "levels"
)

// Rejection is the structured "conditions not met" outcome of a generate request
type Rejection struct {
	Symbol               string          `json:"symbol"`
	Reason               RejectionReason `json:"reason"`
	FailedGate           string          `json:"failed_gate"`
	CriticalLayersFailed []LayerID       `json:"critical_layers_failed,omitempty"`
	CompositeScore       int             `json:"composite_score"`
	PassedLayers         int             `json:"passed_layers"`
	ExistingSignalID     string          `json:"existing_signal_id,omitempty"`
	Message              string          `json:"message"`
}

func (r *Rejection) String() string {
	return fmt.Sprintf("%s rejected at %s gate: %s", r.Symbol, r.FailedGate, r.Message)
}

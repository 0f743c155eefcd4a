package signals

import (
	"fmt"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// StopPolicy decides what protects the remainder after TP1
type StopPolicy string

const (
	// StopPolicyBreakeven moves the stop to entry once TP1 is hit
	StopPolicyBreakeven StopPolicy = "breakeven"
	// StopPolicyOriginal keeps the original stop for the remainder
	StopPolicyOriginal StopPolicy = "original"
)

// ParseStopPolicy validates a policy name
func ParseStopPolicy(s string) (StopPolicy, error) {
	switch p := StopPolicy(s); p {
	case StopPolicyBreakeven, StopPolicyOriginal:
		return p, nil
	case "":
		return StopPolicyBreakeven, nil
	default:
		return "", fmt.Errorf("unknown stop policy %q", s)
	}
}

// transitions is the full state machine; absent means illegal.
// ⭐ SSOT: 시그널 상태 전이표
var transitions = map[contracts.SignalStatus][]contracts.SignalStatus{
	contracts.SignalStatusActive: {contracts.SignalStatusTP1Hit, contracts.SignalStatusSLHit, contracts.SignalStatusExpired},
	contracts.SignalStatusTP1Hit: {contracts.SignalStatusTP2Hit, contracts.SignalStatusSLHit, contracts.SignalStatusExpired},
	contracts.SignalStatusTP2Hit: {contracts.SignalStatusTP3Hit, contracts.SignalStatusSLHit, contracts.SignalStatusExpired},
}

// NextStates lists the legal targets from a status
func NextStates(from contracts.SignalStatus) []contracts.SignalStatus {
	return append([]contracts.SignalStatus(nil), transitions[from]...)
}

// CanTransition reports whether from → to is legal
func CanTransition(from, to contracts.SignalStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func tpStatus(n int) contracts.SignalStatus {
	switch n {
	case 1:
		return contracts.SignalStatusTP1Hit
	case 2:
		return contracts.SignalStatusTP2Hit
	default:
		return contracts.SignalStatusTP3Hit
	}
}

package contracts

import "time"

// UserSettings is the explicit per-user configuration passed into sizing
// ⭐ SSOT: 사용자 설정은 전역 상태가 아니라 이 객체로만 전달
type UserSettings struct {
	UserID          string        `json:"user_id"`
	AccountBalance  float64       `json:"account_balance"`
	RiskPerTradePct float64       `json:"risk_per_trade_pct"` // 1.0 = 1%
	PreferredPairs  []string      `json:"preferred_pairs"`
	MinQuality      Quality       `json:"min_quality"`
	Notifications   Notifications `json:"notifications"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Notifications 알림 토글
type Notifications struct {
	NewSignal    bool `json:"new_signal"`
	TargetHit    bool `json:"target_hit"`
	StopHit      bool `json:"stop_hit"`
	KillZoneOpen bool `json:"kill_zone_open"`
}

// DefaultUserSettings returns settings for a user that never saved any
func DefaultUserSettings(userID string) UserSettings {
	return UserSettings{
		UserID:          userID,
		AccountBalance:  10000,
		RiskPerTradePct: 1.0,
		PreferredPairs:  []string{},
		MinQuality:      QualityGood,
		Notifications: Notifications{
			NewSignal: true,
			TargetHit: true,
			StopHit:   true,
		},
	}
}

// PositionSize is the sizing answer for one signal and one user
type PositionSize struct {
	SignalID          string  `json:"signal_id"`
	UserID            string  `json:"user_id"`
	Quality           Quality `json:"quality"`
	QualityMultiplier float64 `json:"quality_multiplier"`
	RiskAmount        float64 `json:"risk_amount"` // account currency
	StopPips          float64 `json:"stop_pips"`
	PipValuePerLot    float64 `json:"pip_value_per_lot"`
	Lots              float64 `json:"lots"`
	Eligible          bool    `json:"eligible"`
	Reason            string  `json:"reason,omitempty"`
}

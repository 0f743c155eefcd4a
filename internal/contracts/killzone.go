package contracts

import "time"

// KillZone 트레이딩 세션
type KillZone string

const (
	KillZoneAsian       KillZone = "asian"
	KillZoneLondon      KillZone = "london"
	KillZoneNewYork     KillZone = "newyork"
	KillZoneLondonClose KillZone = "london_close"
	KillZoneOffHours    KillZone = "off_hours"
)

// Volatility expected during a session
type Volatility string

const (
	VolatilityLow    Volatility = "low"
	VolatilityMedium Volatility = "medium"
	VolatilityHigh   Volatility = "high"
)

// KillZoneWindow is the session state at one instant
// ⭐ SSOT: 세션 윈도우는 killzone.Scheduler 에서만 계산
type KillZoneWindow struct {
	CurrentZone            KillZone      `json:"current_zone"`
	IsActive               bool          `json:"is_active"`
	NextZone               KillZone      `json:"next_zone"`
	TimeToNextZone         time.Duration `json:"time_to_next_zone"`
	TimeToNextZoneMinutes  int           `json:"time_to_next_zone_minutes"`
	Volatility             Volatility    `json:"volatility"`
	RecommendedInstruments []string      `json:"recommended_instruments"`
	At                     time.Time     `json:"at"`
}

package killzone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/confluence/backend/internal/contracts"
)

func at(hhmm string) time.Time {
	c := MustClock(hhmm)
	return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).Add(time.Duration(c.Minutes()) * time.Minute)
}

func TestCurrentWindow_Zones(t *testing.T) {
	s := NewDefaultScheduler()

	tests := []struct {
		now    string
		zone   contracts.KillZone
		active bool
		vol    contracts.Volatility
	}{
		{"00:00", contracts.KillZoneAsian, true, contracts.VolatilityLow},
		{"03:59", contracts.KillZoneAsian, true, contracts.VolatilityLow},
		{"04:00", contracts.KillZoneOffHours, false, contracts.VolatilityLow},
		{"07:00", contracts.KillZoneLondon, true, contracts.VolatilityHigh},
		{"09:59", contracts.KillZoneLondon, true, contracts.VolatilityHigh},
		{"10:00", contracts.KillZoneOffHours, false, contracts.VolatilityLow},
		{"12:30", contracts.KillZoneNewYork, true, contracts.VolatilityHigh},
		// NY / London-close overlap reports the narrower window
		{"15:00", contracts.KillZoneLondonClose, true, contracts.VolatilityMedium},
		{"15:45", contracts.KillZoneLondonClose, true, contracts.VolatilityMedium},
		{"16:30", contracts.KillZoneLondonClose, true, contracts.VolatilityMedium},
		{"17:00", contracts.KillZoneOffHours, false, contracts.VolatilityLow},
		{"23:59", contracts.KillZoneOffHours, false, contracts.VolatilityLow},
	}

	for _, tt := range tests {
		t.Run(tt.now, func(t *testing.T) {
			w := s.CurrentWindow(at(tt.now))
			assert.Equal(t, tt.zone, w.CurrentZone)
			assert.Equal(t, tt.active, w.IsActive)
			assert.Equal(t, tt.vol, w.Volatility)
		})
	}
}

func TestCurrentWindow_NextZone(t *testing.T) {
	s := NewDefaultScheduler()

	tests := []struct {
		now  string
		next contracts.KillZone
		in   time.Duration
	}{
		{"05:00", contracts.KillZoneLondon, 2 * time.Hour},
		{"07:30", contracts.KillZoneNewYork, 4*time.Hour + 30*time.Minute},
		{"12:00", contracts.KillZoneLondonClose, 3 * time.Hour},
		{"18:00", contracts.KillZoneAsian, 6 * time.Hour},
		// a session starting exactly now is not "next"
		{"00:00", contracts.KillZoneLondon, 7 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.now, func(t *testing.T) {
			w := s.CurrentWindow(at(tt.now))
			assert.Equal(t, tt.next, w.NextZone)
			assert.Equal(t, tt.in, w.TimeToNextZone)
			assert.Equal(t, int(tt.in/time.Minute), w.TimeToNextZoneMinutes)
		})
	}
}

func TestCurrentWindow_ConvertsToUTC(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	// 17:30 KST == 08:30 UTC
	w := NewDefaultScheduler().CurrentWindow(time.Date(2024, 3, 5, 17, 30, 0, 0, seoul))

	assert.Equal(t, contracts.KillZoneLondon, w.CurrentZone)
	assert.Contains(t, w.RecommendedInstruments, "EURUSD")
	assert.Equal(t, time.UTC, w.At.Location())
}

func TestCurrentWindow_ZeroTimeClampsToOffHours(t *testing.T) {
	w := NewDefaultScheduler().CurrentWindow(time.Time{})

	assert.Equal(t, contracts.KillZoneOffHours, w.CurrentZone)
	assert.False(t, w.IsActive)
	assert.NotNil(t, w.RecommendedInstruments)
	assert.Empty(t, w.RecommendedInstruments)
}

func TestCurrentWindow_WrapsMidnight(t *testing.T) {
	sydney := Session{
		Zone:       contracts.KillZoneAsian,
		Start:      MustClock("22:00"),
		End:        MustClock("02:00"),
		Volatility: contracts.VolatilityLow,
	}
	s, err := NewScheduler([]Session{sydney})
	require.NoError(t, err)

	assert.True(t, s.CurrentWindow(at("23:00")).IsActive)
	assert.True(t, s.CurrentWindow(at("01:59")).IsActive)
	assert.False(t, s.CurrentWindow(at("02:00")).IsActive)

	w := s.CurrentWindow(at("12:00"))
	assert.Equal(t, 10*time.Hour, w.TimeToNextZone)
}

func TestCurrentWindow_IsPure(t *testing.T) {
	s := NewDefaultScheduler()
	now := at("08:15")

	first := s.CurrentWindow(now)
	first.RecommendedInstruments[0] = "MUTATED"

	second := s.CurrentWindow(now)
	assert.Equal(t, "EURUSD", second.RecommendedInstruments[0])
}

func TestNewScheduler_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		sessions []Session
	}{
		{"empty", nil},
		{"duplicate", []Session{DefaultLondon, DefaultLondon}},
		{"zero length", []Session{{Zone: contracts.KillZoneLondon, Start: MustClock("07:00"), End: MustClock("07:00")}}},
		{"off hours zone", []Session{{Zone: contracts.KillZoneOffHours, Start: MustClock("07:00"), End: MustClock("08:00")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduler(tt.sessions)
			assert.Error(t, err)
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("15:04")
	require.NoError(t, err)
	assert.Equal(t, 15*60+4, c.Minutes())
	assert.Equal(t, "15:04", c.String())

	for _, bad := range []string{"7:00", "24:00", "12:60", "noon", ""} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

package killzone

import (
	"fmt"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// Session is one recurring UTC trading window. End is exclusive and may be
// earlier than Start, in which case the window wraps midnight.
type Session struct {
	Zone        contracts.KillZone
	Start       Clock
	End         Clock
	Volatility  contracts.Volatility
	Instruments []string
}

func (s Session) contains(minute int) bool {
	start, end := s.Start.Minutes(), s.End.Minutes()
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// Default session calendar (UTC)
var (
	DefaultAsian = Session{
		Zone: contracts.KillZoneAsian, Start: MustClock("00:00"), End: MustClock("04:00"),
		Volatility: contracts.VolatilityLow, Instruments: []string{"USDJPY", "AUDUSD", "NZDUSD"},
	}
	DefaultLondon = Session{
		Zone: contracts.KillZoneLondon, Start: MustClock("07:00"), End: MustClock("10:00"),
		Volatility: contracts.VolatilityHigh, Instruments: []string{"EURUSD", "GBPUSD", "EURGBP", "XAUUSD"},
	}
	DefaultNewYork = Session{
		Zone: contracts.KillZoneNewYork, Start: MustClock("12:00"), End: MustClock("16:00"),
		Volatility: contracts.VolatilityHigh, Instruments: []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "US30"},
	}
	DefaultLondonClose = Session{
		Zone: contracts.KillZoneLondonClose, Start: MustClock("15:00"), End: MustClock("17:00"),
		Volatility: contracts.VolatilityMedium, Instruments: []string{"EURUSD", "GBPUSD", "USDCHF"},
	}
)

// DefaultSessions returns the calendar in overlap priority order:
// london_close > newyork > london > asian
func DefaultSessions() []Session {
	return []Session{DefaultLondonClose, DefaultNewYork, DefaultLondon, DefaultAsian}
}

// Scheduler answers "which session is it" for any instant.
// It holds no mutable state; CurrentWindow is a pure function of its input.
// ⭐ SSOT: 킬존 판정은 여기서만
type Scheduler struct {
	sessions []Session // priority order, first match wins
}

// NewScheduler builds a scheduler. sessions are given in priority order.
func NewScheduler(sessions []Session) (*Scheduler, error) {
	if len(sessions) == 0 {
		return nil, fmt.Errorf("at least one session is required")
	}

	seen := make(map[contracts.KillZone]bool, len(sessions))
	for _, s := range sessions {
		if s.Zone == "" || s.Zone == contracts.KillZoneOffHours {
			return nil, fmt.Errorf("invalid session zone %q", s.Zone)
		}
		if seen[s.Zone] {
			return nil, fmt.Errorf("duplicate session %q", s.Zone)
		}
		if s.Start == s.End {
			return nil, fmt.Errorf("session %s: start equals end", s.Zone)
		}
		seen[s.Zone] = true
	}

	return &Scheduler{sessions: append([]Session(nil), sessions...)}, nil
}

// NewDefaultScheduler uses DefaultSessions
func NewDefaultScheduler() *Scheduler {
	s, _ := NewScheduler(DefaultSessions())
	return s
}

// Sessions returns a copy of the configured calendar
func (s *Scheduler) Sessions() []Session {
	return append([]Session(nil), s.sessions...)
}

// CurrentWindow reports the session state at now. A zero time clamps to
// off_hours with no next zone.
func (s *Scheduler) CurrentWindow(now time.Time) contracts.KillZoneWindow {
	if now.IsZero() {
		return contracts.KillZoneWindow{
			CurrentZone:            contracts.KillZoneOffHours,
			NextZone:               contracts.KillZoneOffHours,
			Volatility:             contracts.VolatilityLow,
			RecommendedInstruments: []string{},
		}
	}

	t := now.UTC()
	minute := t.Hour()*60 + t.Minute()

	w := contracts.KillZoneWindow{
		CurrentZone:            contracts.KillZoneOffHours,
		Volatility:             contracts.VolatilityLow,
		RecommendedInstruments: []string{},
		At:                     t,
	}

	for _, sess := range s.sessions {
		if sess.contains(minute) {
			w.CurrentZone = sess.Zone
			w.IsActive = true
			w.Volatility = sess.Volatility
			w.RecommendedInstruments = append([]string{}, sess.Instruments...)
			break
		}
	}

	w.NextZone, w.TimeToNextZone = s.next(t)
	w.TimeToNextZoneMinutes = int(w.TimeToNextZone / time.Minute)

	return w
}

// next finds the session whose next start is soonest strictly after t.
// Ties go to the higher priority session.
func (s *Scheduler) next(t time.Time) (contracts.KillZone, time.Duration) {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	best := contracts.KillZoneOffHours
	var bestIn time.Duration
	for _, sess := range s.sessions {
		start := midnight.Add(time.Duration(sess.Start.Minutes()) * time.Minute)
		if !start.After(t) {
			start = start.Add(24 * time.Hour)
		}
		in := start.Sub(t)
		if best == contracts.KillZoneOffHours || in < bestIn {
			best, bestIn = sess.Zone, in
		}
	}
	return best, bestIn
}

package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/confluence/backend/pkg/logger"
)

// ErrOpen is returned while the breaker rejects calls
var ErrOpen = gobreaker.ErrOpenState

// Breaker wraps gobreaker for outbound collaborators (remote layers, AI scorer)
// ⭐ SSOT: 외부 호출 차단기 설정
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// Settings tunes a breaker. Zero values take defaults.
type Settings struct {
	ConsecutiveFailures uint32        // trip after this many failures in a row (default 3)
	FailureRatio        float64       // or when failures/requests exceeds this (default 0.05)
	MinRequests         uint32        // before the ratio applies (default 20)
	Interval            time.Duration // closed-state count reset (default 60s)
	Timeout             time.Duration // open → half-open (default 60s)
}

// New creates a breaker named after the service it protects
func New(name string, s Settings, log *logger.Logger) *Breaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 3
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.05
	}
	if s.MinRequests == 0 {
		s.MinRequests = 20
	}
	if s.Interval == 0 {
		s.Interval = 60 * time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 60 * time.Second
	}

	st := gobreaker.Settings{Name: name}
	st.Interval = s.Interval
	st.Timeout = s.Timeout
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= s.ConsecutiveFailures {
			return true
		}
		if counts.Requests < s.MinRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > s.FailureRatio
	}
	st.IsSuccessful = func(err error) bool {
		// caller cancellation says nothing about the remote side
		return err == nil || errors.Is(err, context.Canceled)
	}
	if log != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		}
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// Name of the protected service
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// State is "closed", "half-open" or "open"
func (b *Breaker) State() string {
	return b.cb.State().String()
}

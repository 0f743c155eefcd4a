package signals

import (
	"context"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Symbol string
	Status contracts.SignalStatus
	Open   bool // only non-terminal signals
	Limit  int
}

// Repository persists signals and their transition log
// ⭐ SSOT: 시그널 저장소 계약
type Repository interface {
	// Insert stores a new signal with its creation event. Returns
	// contracts.ErrDuplicate when the symbol already has an open signal.
	Insert(ctx context.Context, sig *contracts.Signal, ev contracts.SignalEvent) error

	// Update writes sig if its stored version equals expectedVersion and
	// appends events in the same unit of work. Returns
	// contracts.ErrVersionConflict on a stale write.
	Update(ctx context.Context, sig *contracts.Signal, expectedVersion int64, events []contracts.SignalEvent) error

	Get(ctx context.Context, id string) (*contracts.Signal, error)
	FindOpenBySymbol(ctx context.Context, symbol string) (*contracts.Signal, error)
	ListOpen(ctx context.Context, symbol string) ([]*contracts.Signal, error)
	List(ctx context.Context, f Filter) ([]*contracts.Signal, error)
	ListClosed(ctx context.Context, from, to time.Time) ([]*contracts.Signal, error)
	ListExpirable(ctx context.Context, now time.Time) ([]*contracts.Signal, error)
	Events(ctx context.Context, signalID string) ([]contracts.SignalEvent, error)
}

// clone deep-copies a signal so stored state never aliases caller state
func clone(s *contracts.Signal) *contracts.Signal {
	if s == nil {
		return nil
	}
	c := *s
	c.Reasoning = append([]string(nil), s.Reasoning...)
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	if s.ResultPips != nil {
		p := *s.ResultPips
		c.ResultPips = &p
	}
	c.Confluence = cloneConfluence(s.Confluence)
	return &c
}

func cloneConfluence(cr *contracts.ConfluenceResult) *contracts.ConfluenceResult {
	if cr == nil {
		return nil
	}
	c := *cr
	c.PerLayer = append([]contracts.LayerScore(nil), cr.PerLayer...)
	if cr.WeightedComponents != nil {
		c.WeightedComponents = make(map[contracts.LayerKey]float64, len(cr.WeightedComponents))
		for k, v := range cr.WeightedComponents {
			c.WeightedComponents[k] = v
		}
	}
	return &c
}

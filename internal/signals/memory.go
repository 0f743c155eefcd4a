package signals

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// MemoryRepository keeps signals in process (tests, --store memory)
type MemoryRepository struct {
	mu      sync.RWMutex
	signals map[string]*contracts.Signal
	events  map[string][]contracts.SignalEvent
	nextEv  int64
}

// NewMemoryRepository creates an empty store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		signals: make(map[string]*contracts.Signal),
		events:  make(map[string][]contracts.SignalEvent),
	}
}

func (r *MemoryRepository) Insert(_ context.Context, sig *contracts.Signal, ev contracts.SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.signals {
		if s.Symbol == sig.Symbol && s.IsOpen() {
			return contracts.ErrDuplicate
		}
	}
	r.signals[sig.ID] = clone(sig)
	r.appendEvents(sig.ID, []contracts.SignalEvent{ev})
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, sig *contracts.Signal, expectedVersion int64, events []contracts.SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.signals[sig.ID]
	if !ok {
		return contracts.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return contracts.ErrVersionConflict
	}
	r.signals[sig.ID] = clone(sig)
	r.appendEvents(sig.ID, events)
	return nil
}

func (r *MemoryRepository) appendEvents(id string, events []contracts.SignalEvent) {
	for _, ev := range events {
		r.nextEv++
		ev.ID = r.nextEv
		ev.SignalID = id
		r.events[id] = append(r.events[id], ev)
	}
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*contracts.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.signals[id]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return clone(s), nil
}

func (r *MemoryRepository) FindOpenBySymbol(_ context.Context, symbol string) (*contracts.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.signals {
		if s.Symbol == symbol && s.IsOpen() {
			return clone(s), nil
		}
	}
	return nil, contracts.ErrNotFound
}

func (r *MemoryRepository) ListOpen(ctx context.Context, symbol string) ([]*contracts.Signal, error) {
	return r.List(ctx, Filter{Symbol: symbol, Open: true})
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]*contracts.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.Signal, 0)
	for _, s := range r.signals {
		if f.Symbol != "" && s.Symbol != f.Symbol {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.Open && !s.IsOpen() {
			continue
		}
		out = append(out, clone(s))
	}

	// newest first, like the SQL ordering
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListClosed(_ context.Context, from, to time.Time) ([]*contracts.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.Signal, 0)
	for _, s := range r.signals {
		if s.ClosedAt == nil {
			continue
		}
		if !from.IsZero() && s.ClosedAt.Before(from) {
			continue
		}
		if !to.IsZero() && s.ClosedAt.After(to) {
			continue
		}
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	return out, nil
}

func (r *MemoryRepository) ListExpirable(_ context.Context, now time.Time) ([]*contracts.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*contracts.Signal, 0)
	for _, s := range r.signals {
		if s.IsOpen() && !s.ExpiresAt.After(now) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (r *MemoryRepository) Events(_ context.Context, signalID string) ([]contracts.SignalEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.signals[signalID]; !ok {
		return nil, contracts.ErrNotFound
	}
	return append([]contracts.SignalEvent{}, r.events[signalID]...), nil
}

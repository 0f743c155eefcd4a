package settings

import (
	"context"
	"sync"

	"github.com/wonny/confluence/backend/internal/contracts"
)

// MemoryRepository keeps settings in process
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]contracts.UserSettings
}

// NewMemoryRepository creates an empty in-memory store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]contracts.UserSettings)}
}

func (r *MemoryRepository) Get(_ context.Context, userID string) (*contracts.UserSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.users[userID]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	s.PreferredPairs = append([]string(nil), s.PreferredPairs...)
	return &s, nil
}

func (r *MemoryRepository) Save(_ context.Context, s *contracts.UserSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *s
	cp.PreferredPairs = append([]string(nil), s.PreferredPairs...)
	r.users[s.UserID] = cp
	return nil
}

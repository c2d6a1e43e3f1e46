package policy

import (
	"context"
	"sync"

	"github.com/modgate/modgate/internal/shared"
)

// MemoryStore is an in-memory Store used by tests and embedded callers.
type MemoryStore struct {
	mu    sync.RWMutex
	cfg   Configuration
	saved bool
	// SaveErr, when set, makes Save fail; used to test rollback behaviour.
	SaveErr error
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored configuration.
func (m *MemoryStore) Load(_ context.Context) (Configuration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.saved {
		return Configuration{}, shared.ErrNotFound
	}
	return m.cfg.clone(), nil
}

// Save stores the configuration.
func (m *MemoryStore) Save(_ context.Context, cfg Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.cfg = cfg.clone()
	m.saved = true
	return nil
}

package reputation

import (
	"context"
	"sort"
	"sync"

	"github.com/modgate/modgate/internal/shared"
)

// MemoryStore is an in-memory Store used by tests and embedded callers.
type MemoryStore struct {
	mu     sync.RWMutex
	scores map[string]Score
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string]Score)}
}

// GetScore returns the stored score for a module.
func (m *MemoryStore) GetScore(_ context.Context, moduleName string) (Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.scores[shared.NormalizeName(moduleName)]
	if !ok {
		return Score{}, shared.ErrNotFound
	}
	return score, nil
}

// ListModules returns the names of every scored module.
func (m *MemoryStore) ListModules(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.scores))
	for name := range m.scores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// PutScore stores a score keyed by normalised module name.
func (m *MemoryStore) PutScore(_ context.Context, score Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[shared.NormalizeName(score.ModuleName)] = score
	return nil
}

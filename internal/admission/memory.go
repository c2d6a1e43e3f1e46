package admission

import (
	"context"
	"sync"

	"github.com/modgate/modgate/internal/shared"
)

// MemoryFacts is an in-memory FactSource. Unknown modules read as zero
// facts.
type MemoryFacts struct {
	mu    sync.RWMutex
	facts map[string]Facts
}

// NewMemoryFacts builds an empty fact source.
func NewMemoryFacts() *MemoryFacts {
	return &MemoryFacts{facts: make(map[string]Facts)}
}

// Put stores facts for a module.
func (m *MemoryFacts) Put(moduleName string, facts Facts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[shared.NormalizeName(moduleName)] = facts
}

// ModuleFacts returns the stored facts, or zero facts for unknown modules.
func (m *MemoryFacts) ModuleFacts(_ context.Context, moduleName, _ string) (Facts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.facts[shared.NormalizeName(moduleName)], nil
}

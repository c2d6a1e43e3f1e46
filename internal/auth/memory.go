package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/modgate/modgate/internal/shared"
)

// MemoryStore is an in-memory token store for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]Token)}
}

func (m *MemoryStore) CreateToken(_ context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token.ID]; ok {
		return fmt.Errorf("auth: token %s: %w", token.ID, shared.ErrAlreadyExists)
	}
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStore) GetToken(_ context.Context, id string) (Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[id]
	if !ok {
		return Token{}, fmt.Errorf("auth: token %s: %w", id, shared.ErrNotFound)
	}
	return token, nil
}

func (m *MemoryStore) ListTokens(_ context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tokens []Token
	for _, token := range m.tokens {
		if token.UserID == userID {
			tokens = append(tokens, token)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.Before(tokens[j].CreatedAt) })
	return tokens, nil
}

func (m *MemoryStore) RevokeToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return fmt.Errorf("auth: token %s: %w", id, shared.ErrNotFound)
	}
	if token.RevokedAt == nil {
		now := time.Now().UTC()
		token.RevokedAt = &now
		m.tokens[id] = token
	}
	return nil
}

func (m *MemoryStore) TouchToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return fmt.Errorf("auth: token %s: %w", id, shared.ErrNotFound)
	}
	token.LastUsedAt = time.Now().UTC()
	m.tokens[id] = token
	return nil
}

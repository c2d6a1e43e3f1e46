package trust

import (
	"context"
	"sort"
	"sync"

	"github.com/modgate/modgate/internal/shared"
)

// MemoryStore is an in-memory Store used by tests and embedded callers.
type MemoryStore struct {
	mu         sync.RWMutex
	signers    map[string]Signer
	keys       map[string][]byte
	signatures map[string]Signature
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signers:    make(map[string]Signer),
		keys:       make(map[string][]byte),
		signatures: make(map[string]Signature),
	}
}

// AddSigner records a trusted signer identity.
func (m *MemoryStore) AddSigner(_ context.Context, signer Signer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signers[signer.KeyID] = signer
	return nil
}

// RemoveSigner drops a trusted signer identity.
func (m *MemoryStore) RemoveSigner(_ context.Context, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.signers, keyID)
	return nil
}

// GetSigner returns the signer registered under keyID.
func (m *MemoryStore) GetSigner(_ context.Context, keyID string) (Signer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	signer, ok := m.signers[keyID]
	if !ok {
		return Signer{}, shared.ErrNotFound
	}
	return signer, nil
}

// ListSigners returns all trusted signers ordered by key id.
func (m *MemoryStore) ListSigners(_ context.Context) ([]Signer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	signers := make([]Signer, 0, len(m.signers))
	for _, signer := range m.signers {
		signers = append(signers, signer)
	}
	sort.Slice(signers, func(i, j int) bool { return signers[i].KeyID < signers[j].KeyID })
	return signers, nil
}

// PutPublicKey stores a public key under keyID.
func (m *MemoryStore) PutPublicKey(_ context.Context, keyID string, publicKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[keyID] = append([]byte(nil), publicKey...)
	return nil
}

// GetPublicKey returns the public key stored under keyID.
func (m *MemoryStore) GetPublicKey(_ context.Context, keyID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[keyID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return append([]byte(nil), key...), nil
}

// SaveSignature upserts the signature for a module version.
func (m *MemoryStore) SaveSignature(_ context.Context, sig Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures[sig.ModuleName+"@"+sig.Version] = sig
	return nil
}

// GetSignature returns the signature for a module version.
func (m *MemoryStore) GetSignature(_ context.Context, moduleName, version string) (Signature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sig, ok := m.signatures[moduleName+"@"+version]
	if !ok {
		return Signature{}, shared.ErrNotFound
	}
	return sig, nil
}

package trust

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/modgate/modgate/internal/shared"
)

// Keyring holds signing key pairs in process memory. Private keys are never
// persisted through the Store; only public keys leave the keyring.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

// NewKeyring constructs an empty Keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]ed25519.PrivateKey)}
}

// Generate creates a new ed25519 key pair under keyID and returns the public
// key. Generating over an existing keyID fails; rotation uses a fresh keyID.
func (k *Keyring) Generate(keyID string) (ed25519.PublicKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("trust: %w: key id required", shared.ErrInvalidInput)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.keys[keyID]; exists {
		return nil, fmt.Errorf("trust: key %s: %w", keyID, shared.ErrAlreadyExists)
	}
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("trust: generate key: %w", err)
	}
	k.keys[keyID] = private
	return public, nil
}

// PrivateKey returns the private key for keyID.
func (k *Keyring) PrivateKey(keyID string) (ed25519.PrivateKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	private, ok := k.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("trust: key %s: %w", keyID, shared.ErrNotFound)
	}
	return private, nil
}

// Forget drops a private key, e.g. after rotation. Signatures made with the
// key stay verifiable through the stored public key.
func (k *Keyring) Forget(keyID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, keyID)
}

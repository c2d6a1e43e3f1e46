// Package trust signs module artifacts, verifies signatures against a public
// key registry, and tracks which signer identities are trusted. Verification
// always fails closed: any mismatch, malformed input, or unknown key or
// algorithm yields "not verified", never an error state a caller could
// mistake for success.
package trust

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/modgate/modgate/internal/shared"
)

// Registry is the trust registry plus the signing and verification surface.
type Registry struct {
	store   Store
	keyring *Keyring
	logger  *slog.Logger
	clock   func() time.Time
}

// NewRegistry constructs a Registry.
func NewRegistry(store Store, keyring *Keyring, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		store:   store,
		keyring: keyring,
		logger:  logger,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Digest computes the hex sha256 content digest of an artifact file.
func Digest(artifactPath string) (string, error) {
	f, err := os.Open(artifactPath)
	if err != nil {
		return "", fmt.Errorf("trust: open artifact: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("trust: digest artifact: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// RegisterKey records a public key under keyID so signatures made with it can
// be verified, independent of whether the signer is trusted.
func (r *Registry) RegisterKey(ctx context.Context, keyID string, publicKey ed25519.PublicKey) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("trust: %w: malformed public key", shared.ErrInvalidInput)
	}
	return r.store.PutPublicKey(ctx, keyID, publicKey)
}

// Sign computes the artifact digest and signs it with the named private key.
func (r *Registry) Sign(ctx context.Context, artifactPath, moduleName, version, keyID string) (Signature, error) {
	private, err := r.keyring.PrivateKey(keyID)
	if err != nil {
		return Signature{}, err
	}
	digest, err := Digest(artifactPath)
	if err != nil {
		return Signature{}, err
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return Signature{}, fmt.Errorf("trust: decode digest: %w", err)
	}
	sig := Signature{
		ModuleName:  shared.NormalizeName(moduleName),
		Version:     version,
		FileHash:    digest,
		Signature:   ed25519.Sign(private, raw),
		SignerKeyID: keyID,
		Timestamp:   r.clock(),
		Algorithm:   AlgorithmEd25519,
	}
	if err := r.store.SaveSignature(ctx, sig); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// Verify recomputes the artifact digest and checks the signature against the
// registered public key. It returns false on digest mismatch, malformed
// signature, unknown algorithm, or unknown key.
func (r *Registry) Verify(ctx context.Context, artifactPath string, sig Signature) bool {
	if sig.Algorithm != AlgorithmEd25519 {
		r.logger.Warn("signature rejected: unknown algorithm",
			slog.String("module", sig.ModuleName), slog.String("algorithm", sig.Algorithm))
		return false
	}
	digest, err := Digest(artifactPath)
	if err != nil {
		r.logger.Warn("signature rejected: artifact unreadable",
			slog.String("module", sig.ModuleName), slog.Any("error", err))
		return false
	}
	if digest != sig.FileHash {
		r.logger.Warn("signature rejected: digest mismatch",
			slog.String("module", sig.ModuleName), slog.String("key_id", sig.SignerKeyID))
		return false
	}
	publicKey, err := r.store.GetPublicKey(ctx, sig.SignerKeyID)
	if err != nil {
		r.logger.Warn("signature rejected: unknown key",
			slog.String("module", sig.ModuleName), slog.String("key_id", sig.SignerKeyID))
		return false
	}
	if len(publicKey) != ed25519.PublicKeySize || len(sig.Signature) != ed25519.SignatureSize {
		return false
	}
	raw, err := hex.DecodeString(sig.FileHash)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), raw, sig.Signature)
}

// IsTrusted reports whether the key belongs to a trusted signer. This is a
// registry membership test only; it says nothing about signature validity.
func (r *Registry) IsTrusted(ctx context.Context, keyID string) bool {
	_, err := r.store.GetSigner(ctx, keyID)
	return err == nil
}

// AddTrustedSigner records a signer identity as trusted.
func (r *Registry) AddTrustedSigner(ctx context.Context, signer Signer) error {
	if signer.KeyID == "" {
		return fmt.Errorf("trust: %w: signer key id required", shared.ErrInvalidInput)
	}
	return r.store.AddSigner(ctx, signer)
}

// RemoveTrustedSigner revokes trust in a signer. The public key stays
// registered so historical signatures keep verifying.
func (r *Registry) RemoveTrustedSigner(ctx context.Context, keyID string) error {
	return r.store.RemoveSigner(ctx, keyID)
}

// TrustedSigners lists the trusted signer identities.
func (r *Registry) TrustedSigners(ctx context.Context) ([]Signer, error) {
	return r.store.ListSigners(ctx)
}

// StoredSignature returns the persisted signature for a module version.
func (r *Registry) StoredSignature(ctx context.Context, moduleName, version string) (Signature, error) {
	sig, err := r.store.GetSignature(ctx, shared.NormalizeName(moduleName), version)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Signature{}, err
		}
		return Signature{}, fmt.Errorf("trust: load signature: %w", err)
	}
	return sig, nil
}

package trust

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.tar")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestRegistry(t *testing.T) (*Registry, *Keyring) {
	t.Helper()
	keyring := NewKeyring()
	return NewRegistry(NewMemoryStore(), keyring, nil), keyring
}

func TestSignVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	registry, keyring := newTestRegistry(t)

	public, err := keyring.Generate("key-1")
	require.NoError(t, err)
	require.NoError(t, registry.RegisterKey(ctx, "key-1", public))

	artifact := writeArtifact(t, "module bytes v1")
	sig, err := registry.Sign(ctx, artifact, "Weather", "1.0.0", "key-1")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmEd25519, sig.Algorithm)
	assert.Equal(t, "weather", sig.ModuleName)
	assert.False(t, sig.Timestamp.IsZero())

	assert.True(t, registry.Verify(ctx, artifact, sig))
}

func TestVerifyFailsOnMutatedArtifact(t *testing.T) {
	ctx := context.Background()
	registry, keyring := newTestRegistry(t)
	public, err := keyring.Generate("key-1")
	require.NoError(t, err)
	require.NoError(t, registry.RegisterKey(ctx, "key-1", public))

	artifact := writeArtifact(t, "original")
	sig, err := registry.Sign(ctx, artifact, "weather", "1.0.0", "key-1")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(artifact, []byte("tampered"), 0o644))
	assert.False(t, registry.Verify(ctx, artifact, sig), "mutated artifact must fail verification")
}

func TestVerifyFailsClosed(t *testing.T) {
	ctx := context.Background()
	registry, keyring := newTestRegistry(t)
	public, err := keyring.Generate("key-1")
	require.NoError(t, err)
	require.NoError(t, registry.RegisterKey(ctx, "key-1", public))

	artifact := writeArtifact(t, "payload")
	sig, err := registry.Sign(ctx, artifact, "weather", "1.0.0", "key-1")
	require.NoError(t, err)

	unknownAlgo := sig
	unknownAlgo.Algorithm = "rsa-pss"
	assert.False(t, registry.Verify(ctx, artifact, unknownAlgo))

	unknownKey := sig
	unknownKey.SignerKeyID = "key-unknown"
	assert.False(t, registry.Verify(ctx, artifact, unknownKey))

	truncated := sig
	truncated.Signature = sig.Signature[:16]
	assert.False(t, registry.Verify(ctx, artifact, truncated))

	missing := sig
	assert.False(t, registry.Verify(ctx, filepath.Join(t.TempDir(), "absent"), missing))
}

func TestKeyRotationKeepsOldSignaturesValid(t *testing.T) {
	ctx := context.Background()
	registry, keyring := newTestRegistry(t)

	oldPublic, err := keyring.Generate("key-old")
	require.NoError(t, err)
	require.NoError(t, registry.RegisterKey(ctx, "key-old", oldPublic))

	artifact := writeArtifact(t, "stable artifact")
	sig, err := registry.Sign(ctx, artifact, "weather", "1.0.0", "key-old")
	require.NoError(t, err)

	// Rotate: new key pair, old private key dropped, old public key retained.
	newPublic, err := keyring.Generate("key-new")
	require.NoError(t, err)
	require.NoError(t, registry.RegisterKey(ctx, "key-new", newPublic))
	keyring.Forget("key-old")

	assert.True(t, registry.Verify(ctx, artifact, sig),
		"historical signature over unmodified artifact must stay valid after rotation")
}

func TestTrustIsOrthogonalToValidity(t *testing.T) {
	ctx := context.Background()
	registry, keyring := newTestRegistry(t)
	public, err := keyring.Generate("key-1")
	require.NoError(t, err)
	require.NoError(t, registry.RegisterKey(ctx, "key-1", public))

	artifact := writeArtifact(t, "content")
	sig, err := registry.Sign(ctx, artifact, "weather", "1.0.0", "key-1")
	require.NoError(t, err)

	// Valid but not trusted.
	assert.True(t, registry.Verify(ctx, artifact, sig))
	assert.False(t, registry.IsTrusted(ctx, "key-1"))

	require.NoError(t, registry.AddTrustedSigner(ctx, Signer{KeyID: "key-1", DisplayName: "Acme"}))
	assert.True(t, registry.IsTrusted(ctx, "key-1"))

	// Revoking trust does not invalidate the signature.
	require.NoError(t, registry.RemoveTrustedSigner(ctx, "key-1"))
	assert.False(t, registry.IsTrusted(ctx, "key-1"))
	assert.True(t, registry.Verify(ctx, artifact, sig))
}

func TestStoredSignatureLookup(t *testing.T) {
	ctx := context.Background()
	registry, keyring := newTestRegistry(t)
	public, err := keyring.Generate("key-1")
	require.NoError(t, err)
	require.NoError(t, registry.RegisterKey(ctx, "key-1", public))

	artifact := writeArtifact(t, "content")
	_, err = registry.Sign(ctx, artifact, "Weather", "1.2.0", "key-1")
	require.NoError(t, err)

	stored, err := registry.StoredSignature(ctx, "WEATHER", "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "key-1", stored.SignerKeyID)

	_, err = registry.StoredSignature(ctx, "weather", "9.9.9")
	require.Error(t, err)
}

func TestGenerateDuplicateKeyFails(t *testing.T) {
	keyring := NewKeyring()
	_, err := keyring.Generate("key-1")
	require.NoError(t, err)
	_, err = keyring.Generate("key-1")
	require.Error(t, err)
}

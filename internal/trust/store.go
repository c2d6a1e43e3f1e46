package trust

import "context"

// Store persists signer identities, their public keys, and module signatures.
// Public keys outlive trusted-signer membership so signatures made before a
// key rotation stay verifiable.
type Store interface {
	AddSigner(ctx context.Context, signer Signer) error
	RemoveSigner(ctx context.Context, keyID string) error
	GetSigner(ctx context.Context, keyID string) (Signer, error)
	ListSigners(ctx context.Context) ([]Signer, error)

	PutPublicKey(ctx context.Context, keyID string, publicKey []byte) error
	GetPublicKey(ctx context.Context, keyID string) ([]byte, error)

	SaveSignature(ctx context.Context, sig Signature) error
	GetSignature(ctx context.Context, moduleName, version string) (Signature, error)
}

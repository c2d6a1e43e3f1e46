package trust

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modgate/modgate/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the trust registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AddSigner records a trusted signer identity.
func (r *Repository) AddSigner(ctx context.Context, signer Signer) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trusted_signers (key_id, display_name, contact, reputation_tag)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			contact = EXCLUDED.contact,
			reputation_tag = EXCLUDED.reputation_tag`,
		signer.KeyID, signer.DisplayName, signer.Contact, signer.ReputationTag)
	if err != nil {
		return fmt.Errorf("trust: add signer: %w", err)
	}
	return nil
}

// RemoveSigner drops a trusted signer identity.
func (r *Repository) RemoveSigner(ctx context.Context, keyID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM trusted_signers WHERE key_id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("trust: remove signer: %w", err)
	}
	return nil
}

// GetSigner returns the signer registered under keyID.
func (r *Repository) GetSigner(ctx context.Context, keyID string) (Signer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT key_id, display_name, contact, reputation_tag
		FROM trusted_signers WHERE key_id = $1`, keyID)
	var signer Signer
	if err := row.Scan(&signer.KeyID, &signer.DisplayName, &signer.Contact, &signer.ReputationTag); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Signer{}, shared.ErrNotFound
		}
		return Signer{}, fmt.Errorf("trust: get signer: %w", err)
	}
	return signer, nil
}

// ListSigners returns all trusted signers ordered by key id.
func (r *Repository) ListSigners(ctx context.Context) ([]Signer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT key_id, display_name, contact, reputation_tag
		FROM trusted_signers ORDER BY key_id`)
	if err != nil {
		return nil, fmt.Errorf("trust: list signers: %w", err)
	}
	defer rows.Close()
	var signers []Signer
	for rows.Next() {
		var signer Signer
		if err := rows.Scan(&signer.KeyID, &signer.DisplayName, &signer.Contact, &signer.ReputationTag); err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}
	return signers, rows.Err()
}

// PutPublicKey stores a public key under keyID. Keys are immutable once
// written; re-registering a keyID with different bytes is a conflict.
func (r *Repository) PutPublicKey(ctx context.Context, keyID string, publicKey []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO signer_keys (key_id, public_key) VALUES ($1, $2)`, keyID, publicKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("trust: key %s: %w", keyID, shared.ErrAlreadyExists)
		}
		return fmt.Errorf("trust: put public key: %w", err)
	}
	return nil
}

// GetPublicKey returns the public key stored under keyID.
func (r *Repository) GetPublicKey(ctx context.Context, keyID string) ([]byte, error) {
	var key []byte
	err := r.pool.QueryRow(ctx, `SELECT public_key FROM signer_keys WHERE key_id = $1`, keyID).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("trust: get public key: %w", err)
	}
	return key, nil
}

// SaveSignature upserts the signature for a module version.
func (r *Repository) SaveSignature(ctx context.Context, sig Signature) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO module_signatures (module_name, version, file_hash, signature, signer_key_id, signed_at, algorithm)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (module_name, version) DO UPDATE SET
			file_hash = EXCLUDED.file_hash,
			signature = EXCLUDED.signature,
			signer_key_id = EXCLUDED.signer_key_id,
			signed_at = EXCLUDED.signed_at,
			algorithm = EXCLUDED.algorithm`,
		sig.ModuleName, sig.Version, sig.FileHash, sig.Signature, sig.SignerKeyID, sig.Timestamp, sig.Algorithm)
	if err != nil {
		return fmt.Errorf("trust: save signature: %w", err)
	}
	return nil
}

// GetSignature returns the signature for a module version.
func (r *Repository) GetSignature(ctx context.Context, moduleName, version string) (Signature, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT module_name, version, file_hash, signature, signer_key_id, signed_at, algorithm
		FROM module_signatures WHERE module_name = $1 AND version = $2`, moduleName, version)
	var sig Signature
	if err := row.Scan(&sig.ModuleName, &sig.Version, &sig.FileHash, &sig.Signature, &sig.SignerKeyID, &sig.Timestamp, &sig.Algorithm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Signature{}, shared.ErrNotFound
		}
		return Signature{}, fmt.Errorf("trust: get signature: %w", err)
	}
	return sig, nil
}

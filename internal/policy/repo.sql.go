package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modgate/modgate/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the security
// configuration. The table holds a single row keyed by id 1.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load returns the persisted configuration.
func (r *Repository) Load(ctx context.Context) (Configuration, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT config FROM security_config WHERE id = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Configuration{}, shared.ErrNotFound
		}
		return Configuration{}, fmt.Errorf("policy: load: %w", err)
	}
	var cfg Configuration
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return Configuration{}, fmt.Errorf("policy: decode configuration: %w", err)
	}
	return cfg, nil
}

// Save upserts the configuration row.
func (r *Repository) Save(ctx context.Context, cfg Configuration) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("policy: encode configuration: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO security_config (id, config, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`,
		payload, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("policy: save: %w", err)
	}
	return nil
}

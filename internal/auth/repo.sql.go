package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modgate/modgate/internal/shared"
)

// Repository provides PostgreSQL backed token persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateToken(ctx context.Context, token Token) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_tokens (id, user_id, name, secret_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.Name, token.SecretHash, token.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("auth: token %s: %w", token.ID, shared.ErrAlreadyExists)
		}
		return fmt.Errorf("auth: create token: %w", err)
	}
	return nil
}

func (r *Repository) GetToken(ctx context.Context, id string) (Token, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, secret_hash, created_at, last_used_at, revoked_at
		FROM api_tokens
		WHERE id = $1`, id)
	var token Token
	var lastUsed *time.Time
	if err := row.Scan(&token.ID, &token.UserID, &token.Name, &token.SecretHash,
		&token.CreatedAt, &lastUsed, &token.RevokedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, fmt.Errorf("auth: token %s: %w", id, shared.ErrNotFound)
		}
		return Token{}, fmt.Errorf("auth: get token: %w", err)
	}
	if lastUsed != nil {
		token.LastUsedAt = *lastUsed
	}
	return token, nil
}

func (r *Repository) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, secret_hash, created_at, last_used_at, revoked_at
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var token Token
		var lastUsed *time.Time
		if err := rows.Scan(&token.ID, &token.UserID, &token.Name, &token.SecretHash,
			&token.CreatedAt, &lastUsed, &token.RevokedAt); err != nil {
			return nil, fmt.Errorf("auth: scan token: %w", err)
		}
		if lastUsed != nil {
			token.LastUsedAt = *lastUsed
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (r *Repository) RevokeToken(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE api_tokens SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetToken(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) TouchToken(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("auth: touch token: %w", err)
	}
	return nil
}

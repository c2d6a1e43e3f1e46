package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modgate/modgate/internal/shared"
)

// Repository provides PostgreSQL backed persistence for reputation scores.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetScore returns the persisted score for a module.
func (r *Repository) GetScore(ctx context.Context, moduleName string) (Score, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT module_name, developer_id, total_score, level, factor_breakdown, confidence, last_updated
		FROM reputation_scores
		WHERE module_name = $1`, shared.NormalizeName(moduleName))

	var score Score
	var factors []byte
	var level string
	if err := row.Scan(&score.ModuleName, &score.DeveloperID, &score.TotalScore, &level, &factors, &score.Confidence, &score.LastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Score{}, shared.ErrNotFound
		}
		return Score{}, fmt.Errorf("reputation: get score: %w", err)
	}
	score.Level = Level(level)
	if err := json.Unmarshal(factors, &score.Factors); err != nil {
		return Score{}, fmt.Errorf("reputation: decode factors: %w", err)
	}
	return score, nil
}

// ListModules returns the names of every scored module.
func (r *Repository) ListModules(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT module_name FROM reputation_scores ORDER BY module_name`)
	if err != nil {
		return nil, fmt.Errorf("reputation: list modules: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("reputation: list modules: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reputation: list modules: %w", err)
	}
	return names, nil
}

// PutScore upserts the score for a module.
func (r *Repository) PutScore(ctx context.Context, score Score) error {
	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("reputation: encode factors: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO reputation_scores (module_name, developer_id, total_score, level, factor_breakdown, confidence, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (module_name) DO UPDATE SET
			developer_id = EXCLUDED.developer_id,
			total_score = EXCLUDED.total_score,
			level = EXCLUDED.level,
			factor_breakdown = EXCLUDED.factor_breakdown,
			confidence = EXCLUDED.confidence,
			last_updated = EXCLUDED.last_updated`,
		shared.NormalizeName(score.ModuleName), score.DeveloperID, score.TotalScore,
		string(score.Level), factors, score.Confidence, score.LastUpdated)
	if err != nil {
		return fmt.Errorf("reputation: put score: %w", err)
	}
	return nil
}

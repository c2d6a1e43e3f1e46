package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists detector findings to PostgreSQL so they survive the
// API process and can be pruned out of band.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveDetections inserts the findings. Inserts are idempotent on detection
// id so a retried admission call does not duplicate rows.
func (r *Repository) SaveDetections(ctx context.Context, detections []Detection) error {
	batch := &pgx.Batch{}
	for _, det := range detections {
		batch.Queue(`
			INSERT INTO anomaly_detections (id, type, severity, module_name, user_id, at, description, evidence, confidence, auto_blocked)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			det.ID.String(), string(det.Type), string(det.Severity), det.ModuleName, det.UserID,
			det.Timestamp, det.Description, det.Evidence, det.Confidence, det.AutoBlocked)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range detections {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("anomaly: insert detections: %w", err)
		}
	}
	return nil
}

// DeleteOlderThan removes detections past the retention horizon and reports
// how many rows were dropped.
func (r *Repository) DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM anomaly_detections WHERE at < $1`, horizon)
	if err != nil {
		return 0, fmt.Errorf("anomaly: retention delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

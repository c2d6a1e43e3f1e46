package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSink persists audit events to PostgreSQL and serves timeline queries.
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink constructs a PGSink.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

// Write inserts the batch. Inserts are idempotent on event id so re-delivery
// after a partially failed flush does not duplicate rows.
func (s *PGSink) Write(ctx context.Context, events []Event) error {
	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(`
			INSERT INTO audit_events (id, type, module_name, user_id, at, severity, details, success, error_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING`,
			event.ID, string(event.Type), event.ModuleName, event.UserID, event.Timestamp,
			string(event.Severity), event.Details, event.Success, event.ErrorMessage)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("audit: insert batch: %w", err)
		}
	}
	return nil
}

// TimelineWindow returns a page of events matching the filters, newest first.
func (s *PGSink) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, module_name, user_id, at, severity, details, success, error_message
		FROM audit_events
		WHERE ($1::timestamptz IS NULL OR at >= $1)
		  AND ($2::timestamptz IS NULL OR at <= $2)
		  AND ($3::text IS NULL OR module_name = $3)
		  AND ($4::text IS NULL OR user_id = $4)
		  AND ($5::text IS NULL OR type = $5)
		ORDER BY at DESC
		OFFSET $6 LIMIT $7`,
		nullTime(filters.From), nullTime(filters.To), nullText(filters.Module),
		nullText(filters.UserID), nullText(filters.Type), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline query: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// TimelineAll returns every matching event, newest first.
func (s *PGSink) TimelineAll(ctx context.Context, filters TimelineFilters) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, module_name, user_id, at, severity, details, success, error_message
		FROM audit_events
		WHERE ($1::timestamptz IS NULL OR at >= $1)
		  AND ($2::timestamptz IS NULL OR at <= $2)
		  AND ($3::text IS NULL OR module_name = $3)
		  AND ($4::text IS NULL OR user_id = $4)
		  AND ($5::text IS NULL OR type = $5)
		ORDER BY at DESC`,
		nullTime(filters.From), nullTime(filters.To), nullText(filters.Module),
		nullText(filters.UserID), nullText(filters.Type))
	if err != nil {
		return nil, fmt.Errorf("audit: timeline export query: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// DeleteOlderThan removes events past the retention horizon and reports how
// many rows were dropped.
func (s *PGSink) DeleteOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_events WHERE at < $1`, horizon)
	if err != nil {
		return 0, fmt.Errorf("audit: retention delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEvents(rows pgx.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var event Event
		var typ, severity string
		if err := rows.Scan(&event.ID, &typ, &event.ModuleName, &event.UserID, &event.Timestamp,
			&severity, &event.Details, &event.Success, &event.ErrorMessage); err != nil {
			return nil, err
		}
		event.Type = EventType(typ)
		event.Severity = Severity(severity)
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

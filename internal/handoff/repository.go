package handoff

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Repository defines persistence operations for handoff requests.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type postgresRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRepository creates a PostgreSQL-backed repository. The schema lives in
// migrations/0001_handoff_requests.up.sql.
func NewRepository(db *sql.DB, log *slog.Logger) Repository {
	if log == nil {
		log = slog.Default()
	}

	return &postgresRepository{
		db:  db,
		log: log,
	}
}

// Create inserts req and fills in its generated ID.
func (r *postgresRepository) Create(ctx context.Context, req *Request) error {
	const query = `
		INSERT INTO handoff_requests (channel, session_ref, language, flow, utterance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		req.Channel,
		req.SessionRef,
		req.Language,
		req.Flow,
		req.Utterance,
		req.CreatedAt,
	).Scan(&req.ID); err != nil {
		r.log.Error("failed to insert handoff request",
			slog.String("channel", req.Channel),
			slog.String("session_ref", req.SessionRef),
			slog.Any("error", err),
		)
		return fmt.Errorf("insert handoff request: %w", err)
	}

	return nil
}

// DeleteOlderThan removes requests created before cutoff.
func (r *postgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM handoff_requests WHERE created_at < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		r.log.Error("failed to purge handoff requests", slog.Time("cutoff", cutoff), slog.Any("error", err))
		return 0, fmt.Errorf("delete handoff requests: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return n, nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quillapp/quill-server-go/internal/model"
)

// UsageLogRepository is append-only: rows are inserted once and never
// updated, only aged out by the cleanup job.
type UsageLogRepository interface {
	Create(ctx context.Context, params model.CreateUsageLogParams) (*model.UsageLogEntry, error)
	ListByUserID(ctx context.Context, userID string, limit int) ([]model.UsageLogEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type usageDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type usageRepo struct {
	db usageDB
}

func NewUsageLogRepository(db *sqlx.DB) UsageLogRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) Create(ctx context.Context, params model.CreateUsageLogParams) (*model.UsageLogEntry, error) {
	var entry model.UsageLogEntry
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO usage_log (id, user_id, api_key_id, endpoint, status_code, credits_used, processing_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.ID, params.UserID, params.APIKeyID, params.Endpoint,
		params.StatusCode, params.CreditsUsed, params.ProcessingTimeMs)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *usageRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]model.UsageLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []model.UsageLogEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM usage_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	return entries, err
}

func (r *usageRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM usage_log WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

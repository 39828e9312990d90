package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/quillapp/quill-server-go/internal/model"
)

type APIKeyRepository interface {
	Create(ctx context.Context, params model.CreateAPIKeyParams) (*model.APIKey, error)
	FindByID(ctx context.Context, id string) (*model.APIKey, error)
	ListByUserID(ctx context.Context, userID string) ([]model.APIKey, error)
	// Revoke flips is_active off for a key owned by userID. Returns the
	// number of rows touched so callers can distinguish a stale revoke.
	Revoke(ctx context.Context, id, userID string) (int64, error)
	// ValidateAndTouch resolves an active key by its secret hash and, in
	// the same statement, bumps usage_count and last_used_at. There is no
	// read-then-write window for concurrent validations to race on.
	ValidateAndTouch(ctx context.Context, secretHash string) (*model.APIKey, error)
}

type apiKeyDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type apiKeyRepo struct {
	db apiKeyDB
}

func NewAPIKeyRepository(db *sqlx.DB) APIKeyRepository {
	return &apiKeyRepo{db: db}
}

func (r *apiKeyRepo) Create(ctx context.Context, params model.CreateAPIKeyParams) (*model.APIKey, error) {
	var key model.APIKey
	err := r.db.GetContext(ctx, &key, `
		INSERT INTO api_keys (id, user_id, secret_hash, secret_prefix, name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.UserID, params.SecretHash, params.SecretPrefix, params.Name)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *apiKeyRepo) FindByID(ctx context.Context, id string) (*model.APIKey, error) {
	var key model.APIKey
	err := r.db.GetContext(ctx, &key, `
		SELECT * FROM api_keys WHERE id = $1
	`, id)
	return HandleNotFound(&key, err)
}

func (r *apiKeyRepo) ListByUserID(ctx context.Context, userID string) ([]model.APIKey, error) {
	var keys []model.APIKey
	err := r.db.SelectContext(ctx, &keys, `
		SELECT * FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	return keys, err
}

func (r *apiKeyRepo) Revoke(ctx context.Context, id, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE api_keys SET
			is_active = FALSE
		WHERE id = $1 AND user_id = $2 AND is_active = TRUE
	`, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *apiKeyRepo) ValidateAndTouch(ctx context.Context, secretHash string) (*model.APIKey, error) {
	var key model.APIKey
	err := r.db.GetContext(ctx, &key, `
		UPDATE api_keys SET
			usage_count = usage_count + 1,
			last_used_at = NOW()
		WHERE secret_hash = $1 AND is_active = TRUE
		RETURNING *
	`, secretHash)
	return HandleNotFound(&key, err)
}

package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/quillapp/quill-server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	// ChargeCredits debits cost from the user's balance in one conditional
	// statement. Returns the remaining balance, or nil when the balance is
	// insufficient (no mutation happens in that case).
	ChargeCredits(ctx context.Context, userID string, cost int64) (*int64, error)
	AddCredits(ctx context.Context, userID string, amount int64) (*int64, error)
}

type userDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type userRepo struct {
	db userDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE email = $1
	`, email)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (id, email, name, password_hash, credits, is_2fa_enabled, two_factor_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.ID, params.Email, params.Name, params.PasswordHash,
		params.Credits, params.Is2FAEnabled, params.TwoFactorMethod)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ChargeCredits(ctx context.Context, userID string, cost int64) (*int64, error) {
	var remaining int64
	err := r.db.GetContext(ctx, &remaining, `
		UPDATE users SET
			credits = credits - $2,
			updated_at = NOW()
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`, userID, cost)
	return HandleNotFound(&remaining, err)
}

func (r *userRepo) AddCredits(ctx context.Context, userID string, amount int64) (*int64, error) {
	var remaining int64
	err := r.db.GetContext(ctx, &remaining, `
		UPDATE users SET
			credits = credits + $2,
			updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`, userID, amount)
	return HandleNotFound(&remaining, err)
}

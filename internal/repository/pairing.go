package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quillapp/quill-server-go/internal/model"
)

// PairingRequestRepository persists pairing requests. Every state
// transition is a single conditional UPDATE: the current status (and,
// where relevant, the attempt counter or TTL) is part of the WHERE
// clause, so two racing callers can never both win and a stale writer
// affects zero rows.
type PairingRequestRepository interface {
	Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error)
	FindByID(ctx context.Context, id string) (*model.PairingRequest, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.PairingRequest, error)
	FindPendingByUserID(ctx context.Context, userID string) (*model.PairingRequest, error)
	// Attach binds a user to an initialized, unexpired request and moves it
	// to pending. Returns nil when the precondition does not hold.
	Attach(ctx context.Context, tokenHash, userID string) (*model.PairingRequest, error)
	// ExpireOtherPending closes any live pending request the user holds
	// other than keepID, preserving one-pending-per-user.
	ExpireOtherPending(ctx context.Context, userID, keepID string) (int64, error)
	// SetOTP installs a fresh one-time code on a pending request and resets
	// the attempt counter.
	SetOTP(ctx context.Context, id, otpHash string, expiresAt, sentAt time.Time) (*model.PairingRequest, error)
	// IncrementOTPAttempts bumps the attempt counter if and only if the
	// request is still pending and under maxAttempts. Returns nil when the
	// cap is already reached (the caller fails the request).
	IncrementOTPAttempts(ctx context.Context, id string, maxAttempts int) (*model.PairingRequest, error)
	MarkOTPVerified(ctx context.Context, id string) (*model.PairingRequest, error)
	// Complete moves a pending request to completed, storing the minted
	// bearer credential. Returns nil when the request is not pending or is
	// owned by another user.
	Complete(ctx context.Context, tokenHash, userID, bearerCredential string) (*model.PairingRequest, error)
	// MarkExpiredIfStale lazily flips a live request past its TTL to
	// expired. Reads call this before returning status to the client.
	MarkExpiredIfStale(ctx context.Context, tokenHash string) (int64, error)
	MarkExpired(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	// DeleteTerminalBefore garbage-collects terminal requests older than cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PairingRequestRepository
}

// pairingDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type pairingDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type pairingRepo struct {
	db pairingDB
}

func NewPairingRequestRepository(db *sqlx.DB) PairingRequestRepository {
	return &pairingRepo{db: db}
}

func (r *pairingRepo) WithTx(tx *sqlx.Tx) PairingRequestRepository {
	return &pairingRepo{db: tx}
}

func (r *pairingRepo) Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		INSERT INTO pairing_requests (id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.ID, params.TokenHash, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *pairingRepo) FindByID(ctx context.Context, id string) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		SELECT * FROM pairing_requests WHERE id = $1
	`, id)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		SELECT * FROM pairing_requests WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) FindPendingByUserID(ctx context.Context, userID string) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		SELECT * FROM pairing_requests
		WHERE user_id = $1 AND status = 'pending'
	`, userID)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) Attach(ctx context.Context, tokenHash, userID string) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		UPDATE pairing_requests SET
			user_id = $2,
			status = 'pending',
			updated_at = NOW()
		WHERE token_hash = $1 AND status = 'initialized' AND expires_at > NOW()
		RETURNING *
	`, tokenHash, userID)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) ExpireOtherPending(ctx context.Context, userID, keepID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_requests SET
			status = 'expired',
			updated_at = NOW()
		WHERE user_id = $1 AND status = 'pending' AND id != $2
	`, userID, keepID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingRepo) SetOTP(ctx context.Context, id, otpHash string, expiresAt, sentAt time.Time) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		UPDATE pairing_requests SET
			otp_hash = $2,
			otp_expires_at = $3,
			otp_sent_at = $4,
			otp_attempts = 0,
			otp_verified_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING *
	`, id, otpHash, expiresAt, sentAt)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) IncrementOTPAttempts(ctx context.Context, id string, maxAttempts int) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		UPDATE pairing_requests SET
			otp_attempts = otp_attempts + 1,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending' AND otp_attempts < $2
		RETURNING *
	`, id, maxAttempts)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) MarkOTPVerified(ctx context.Context, id string) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		UPDATE pairing_requests SET
			otp_verified_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING *
	`, id)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) Complete(ctx context.Context, tokenHash, userID, bearerCredential string) (*model.PairingRequest, error) {
	var pr model.PairingRequest
	err := r.db.GetContext(ctx, &pr, `
		UPDATE pairing_requests SET
			status = 'completed',
			bearer_credential = $3,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE token_hash = $1 AND user_id = $2 AND status = 'pending'
		RETURNING *
	`, tokenHash, userID, bearerCredential)
	return HandleNotFound(&pr, err)
}

func (r *pairingRepo) MarkExpiredIfStale(ctx context.Context, tokenHash string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_requests SET
			status = 'expired',
			updated_at = NOW()
		WHERE token_hash = $1
		AND status IN ('initialized', 'pending')
		AND expires_at < NOW()
	`, tokenHash)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingRepo) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pairing_requests SET
			status = 'expired',
			updated_at = NOW()
		WHERE id = $1 AND status IN ('initialized', 'pending')
	`, id)
	return err
}

func (r *pairingRepo) MarkFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pairing_requests SET
			status = 'failed',
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	return err
}

func (r *pairingRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_requests
		WHERE status IN ('completed', 'expired', 'failed')
		AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package model

import "time"

// PairingRequest links a headless CLI session to a browser-authenticated
// user until a durable bearer credential exists. The raw pairing token is
// never persisted; only its hash is stored.
type PairingRequest struct {
	ID               string        `db:"id" json:"id"`
	TokenHash        string        `db:"token_hash" json:"-"`
	UserID           *string       `db:"user_id" json:"userId,omitempty"`
	Status           PairingStatus `db:"status" json:"status"`
	OTPHash          *string       `db:"otp_hash" json:"-"`
	OTPExpiresAt     *time.Time    `db:"otp_expires_at" json:"otpExpiresAt,omitempty"`
	OTPSentAt        *time.Time    `db:"otp_sent_at" json:"otpSentAt,omitempty"`
	OTPAttempts      int           `db:"otp_attempts" json:"otpAttempts"`
	OTPVerifiedAt    *time.Time    `db:"otp_verified_at" json:"otpVerifiedAt,omitempty"`
	BearerCredential *string       `db:"bearer_credential" json:"-"`
	ExpiresAt        time.Time     `db:"expires_at" json:"expiresAt"`
	CompletedAt      *time.Time    `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreatePairingRequestParams struct {
	ID        string
	TokenHash string
	ExpiresAt time.Time
}

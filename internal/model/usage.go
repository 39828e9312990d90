package model

import "time"

// UsageLogEntry is an append-only record of one successfully metered call.
// Rows are never updated after insertion.
type UsageLogEntry struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"userId"`
	APIKeyID         string    `db:"api_key_id" json:"apiKeyId"`
	Endpoint         string    `db:"endpoint" json:"endpoint"`
	StatusCode       int       `db:"status_code" json:"statusCode"`
	CreditsUsed      int64     `db:"credits_used" json:"creditsUsed"`
	ProcessingTimeMs int64     `db:"processing_time_ms" json:"processingTimeMs"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

type CreateUsageLogParams struct {
	ID               string
	UserID           string
	APIKeyID         string
	Endpoint         string
	StatusCode       int
	CreditsUsed      int64
	ProcessingTimeMs int64
}

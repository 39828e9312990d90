package model

import (
	"fmt"
	"time"
)

// APIKey is a long-lived secret for metered endpoints. The full secret is
// shown exactly once at creation; the store keeps only a lookup hash and a
// short display prefix.
type APIKey struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"userId"`
	SecretHash   string     `db:"secret_hash" json:"-"`
	SecretPrefix string     `db:"secret_prefix" json:"keyPrefix"`
	Name         string     `db:"name" json:"name"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	UsageCount   int64      `db:"usage_count" json:"usageCount"`
	LastUsedAt   *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}

type CreateAPIKeyParams struct {
	ID           string
	UserID       string
	SecretHash   string
	SecretPrefix string
	Name         string
}

// APIKeyView is the redacted listing shape.
type APIKeyView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Key        string     `json:"key"`
	IsActive   bool       `json:"isActive"`
	UsageCount int64      `json:"usageCount"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (k *APIKey) Redacted() APIKeyView {
	return APIKeyView{
		ID:         k.ID,
		Name:       k.Name,
		Key:        fmt.Sprintf("%s...", k.SecretPrefix),
		IsActive:   k.IsActive,
		UsageCount: k.UsageCount,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

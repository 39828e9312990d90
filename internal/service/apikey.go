package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quillapp/quill-server-go/internal/config"
	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/repository"
	"github.com/quillapp/quill-server-go/internal/util"
)

// APIKeyService manages the key lifecycle. Secrets are shown in full once
// at generation; the store keeps a sha256 lookup hash and a display prefix.
type APIKeyService struct {
	repo repository.APIKeyRepository
}

func NewAPIKeyService(repo repository.APIKeyRepository) *APIKeyService {
	return &APIKeyService{repo: repo}
}

type GeneratedAPIKey struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *APIKeyService) Generate(ctx context.Context, userID, name string) (*GeneratedAPIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}

	secret, err := util.GenerateAPIKeySecret(config.APIKeyPrefix)
	if err != nil {
		return nil, apperrors.Internal("Failed to generate key").WithCause(err)
	}

	key, err := s.repo.Create(ctx, model.CreateAPIKeyParams{
		ID:           uuid.NewString(),
		UserID:       userID,
		SecretHash:   util.HashToken(secret),
		SecretPrefix: secret[:config.APIKeyDisplayPrefixLen],
		Name:         name,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("keyId", key.ID).
		Str("userId", userID).
		Str("key", util.MaskSecret(secret)).
		Msg("api key generated")

	return &GeneratedAPIKey{
		ID:        key.ID,
		Key:       secret,
		Name:      key.Name,
		CreatedAt: key.CreatedAt,
	}, nil
}

// List returns the user's keys in redacted form only.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]model.APIKeyView, error) {
	keys, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	views := make([]model.APIKeyView, 0, len(keys))
	for i := range keys {
		views = append(views, keys[i].Redacted())
	}
	return views, nil
}

// Revoke deactivates a key after verifying ownership.
func (s *APIKeyService) Revoke(ctx context.Context, userID, keyID string) error {
	key, err := s.repo.FindByID(ctx, keyID)
	if err != nil {
		return apperrors.Database(err)
	}
	if key == nil {
		return apperrors.NotFound("API key")
	}
	if key.UserID != userID {
		return apperrors.Forbidden("API key belongs to another user")
	}

	rows, err := s.repo.Revoke(ctx, keyID, userID)
	if err != nil {
		return apperrors.Database(err)
	}
	if rows == 0 {
		// Already revoked; treat as success for idempotent deletes.
		log.Debug().Str("keyId", keyID).Msg("api key already revoked")
	}

	log.Info().Str("keyId", keyID).Str("userId", userID).Msg("api key revoked")
	return nil
}

// Validate resolves a presented secret to its key, atomically bumping
// usage_count and last_used_at in the same statement that checks validity.
func (s *APIKeyService) Validate(ctx context.Context, secret string) (*model.APIKey, error) {
	if !strings.HasPrefix(secret, config.APIKeyPrefix+"_") {
		return nil, apperrors.Unauthenticated("Invalid API key")
	}

	key, err := s.repo.ValidateAndTouch(ctx, util.HashToken(secret))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if key == nil {
		return nil, apperrors.Unauthenticated("Invalid API key")
	}
	return key, nil
}

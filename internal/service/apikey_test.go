package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/util"
)

func TestAPIKeyService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the full secret exactly once", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		var created model.CreateAPIKeyParams
		repo.On("Create", ctx, mock.AnythingOfType("model.CreateAPIKeyParams")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(model.CreateAPIKeyParams)
			}).
			Return(&model.APIKey{
				ID:        "key-1",
				UserID:    "user-1",
				Name:      "laptop",
				IsActive:  true,
				CreatedAt: time.Now(),
			}, nil)

		generated, err := svc.Generate(ctx, "user-1", "laptop")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(generated.Key, "qk_"))
		assert.Equal(t, "laptop", generated.Name)

		// Storage sees only the hash and display prefix, never the secret.
		assert.Equal(t, util.HashToken(generated.Key), created.SecretHash)
		assert.Equal(t, generated.Key[:10], created.SecretPrefix)
		assert.NotContains(t, created.SecretHash, generated.Key)
	})

	t.Run("requires a name", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		_, err := svc.Generate(ctx, "user-1", "   ")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAPIKeyService_List(t *testing.T) {
	ctx := context.Background()
	repo := new(mockAPIKeyRepo)
	svc := NewAPIKeyService(repo)

	repo.On("ListByUserID", ctx, "user-1").Return([]model.APIKey{
		{
			ID:           "key-1",
			SecretHash:   "deadbeef",
			SecretPrefix: "qk_abc1234",
			Name:         "laptop",
			IsActive:     true,
			UsageCount:   3,
		},
	}, nil)

	views, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, "qk_abc1234...", views[0].Key)
	assert.Equal(t, int64(3), views[0].UsageCount)
}

func TestAPIKeyService_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes an owned key", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		repo.On("FindByID", ctx, "key-1").Return(&model.APIKey{ID: "key-1", UserID: "user-1"}, nil)
		repo.On("Revoke", ctx, "key-1", "user-1").Return(int64(1), nil)

		require.NoError(t, svc.Revoke(ctx, "user-1", "key-1"))
	})

	t.Run("revoking twice stays successful", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		repo.On("FindByID", ctx, "key-1").Return(&model.APIKey{ID: "key-1", UserID: "user-1", IsActive: false}, nil)
		repo.On("Revoke", ctx, "key-1", "user-1").Return(int64(0), nil)

		require.NoError(t, svc.Revoke(ctx, "user-1", "key-1"))
	})

	t.Run("refuses another user's key", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		repo.On("FindByID", ctx, "key-1").Return(&model.APIKey{ID: "key-1", UserID: "owner"}, nil)

		err := svc.Revoke(ctx, "intruder", "key-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
		repo.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reports missing keys", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		repo.On("FindByID", ctx, "missing").Return(nil, nil)

		err := svc.Revoke(ctx, "user-1", "missing")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestAPIKeyService_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a live secret", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		secret := "qk_validsecretvalue"
		repo.On("ValidateAndTouch", ctx, util.HashToken(secret)).
			Return(&model.APIKey{ID: "key-1", UserID: "user-1", IsActive: true}, nil)

		key, err := svc.Validate(ctx, secret)
		require.NoError(t, err)
		assert.Equal(t, "key-1", key.ID)
	})

	t.Run("rejects secrets without the expected prefix before any lookup", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		_, err := svc.Validate(ctx, "sk_wrong_product")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))
		repo.AssertNotCalled(t, "ValidateAndTouch", mock.Anything, mock.Anything)
	})

	t.Run("rejects revoked or unknown secrets", func(t *testing.T) {
		repo := new(mockAPIKeyRepo)
		svc := NewAPIKeyService(repo)

		repo.On("ValidateAndTouch", ctx, mock.AnythingOfType("string")).Return(nil, nil)

		_, err := svc.Validate(ctx, "qk_revokedsecret")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))
	})
}

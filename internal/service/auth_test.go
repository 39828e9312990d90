package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/model"
)

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenService("test-signing-secret-0123456789abcdef")

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("issues a session token for valid credentials", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		svc := NewAuthService(userRepo, tokens, 24*time.Hour)

		userRepo.On("FindByEmail", ctx, "writer@example.com").Return(&model.User{
			ID:           "user-1",
			Email:        "writer@example.com",
			Name:         "Writer",
			PasswordHash: string(hash),
			Credits:      100,
		}, nil)

		result, err := svc.Login(ctx, "writer@example.com", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, "user-1", result.User.ID)

		subject, err := tokens.Verify(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", subject)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		svc := NewAuthService(userRepo, tokens, 24*time.Hour)

		userRepo.On("FindByEmail", ctx, "writer@example.com").Return(&model.User{
			ID:           "user-1",
			PasswordHash: string(hash),
		}, nil)

		_, err := svc.Login(ctx, "writer@example.com", "wrong")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))
	})

	t.Run("gives the same error for an unknown email", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		svc := NewAuthService(userRepo, tokens, 24*time.Hour)

		userRepo.On("FindByEmail", ctx, "nobody@example.com").Return(nil, nil)

		_, err := svc.Login(ctx, "nobody@example.com", "hunter22")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))
	})
}

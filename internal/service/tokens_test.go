package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/quillapp/quill-server-go/internal/errors"
)

func TestTokenService_MintAndVerify(t *testing.T) {
	svc := NewTokenService("test-signing-secret-0123456789abcdef")

	token, expiresAt, err := svc.Mint("user-1", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	subject, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestTokenService_Verify_Expired(t *testing.T) {
	svc := NewTokenService("test-signing-secret-0123456789abcdef")

	token, _, err := svc.Mint("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))
}

func TestTokenService_Verify_WrongSecret(t *testing.T) {
	minter := NewTokenService("secret-one-0123456789abcdef000000")
	verifier := NewTokenService("secret-two-0123456789abcdef000000")

	token, _, err := minter.Mint("user-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))
}

func TestTokenService_Verify_Garbage(t *testing.T) {
	svc := NewTokenService("test-signing-secret-0123456789abcdef")

	_, err := svc.Verify("not-a-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))
}

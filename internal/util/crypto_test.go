package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePairingToken(t *testing.T) {
	token1, err := GeneratePairingToken()
	require.NoError(t, err)
	token2, err := GeneratePairingToken()
	require.NoError(t, err)

	assert.Len(t, token1, 64) // 32 bytes hex encoded
	assert.NotEqual(t, token1, token2)
}

func TestGenerateAPIKeySecret(t *testing.T) {
	secret, err := GenerateAPIKeySecret("qk")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(secret, "qk_"))
	assert.Greater(t, len(secret), 40)
}

func TestGenerateOTPCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateOTPCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			require.True(t, c >= '0' && c <= '9', "code %q contains non-digit", code)
		}
	}
}

func TestHashToken(t *testing.T) {
	hash := HashToken("some-token")

	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashToken("some-token"))
	assert.NotEqual(t, hash, HashToken("other-token"))
	assert.NotContains(t, hash, "some-token")
}

func TestHashAndCheckOTP(t *testing.T) {
	hash, err := HashOTP("123456")
	require.NoError(t, err)

	assert.NotEqual(t, "123456", hash)
	assert.True(t, CheckOTP("123456", hash))
	assert.False(t, CheckOTP("654321", hash))
	assert.False(t, CheckOTP("123456", "not-a-hash"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "qk_abc******", MaskSecret("qk_abcdefghijkl"))
	assert.Equal(t, "******", MaskSecret("short"))
}

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Serialized pairing requests cross the wire in status responses; secrets
// stored alongside them must never appear there.
func TestPairingRequest_JSONHidesSecrets(t *testing.T) {
	hash := "otp-hash"
	bearer := "signed-bearer"
	req := PairingRequest{
		ID:               "pr-1",
		TokenHash:        "token-hash",
		Status:           PairingStatusCompleted,
		OTPHash:          &hash,
		BearerCredential: &bearer,
		ExpiresAt:        time.Now(),
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))

	assert.NotContains(t, out, "tokenHash")
	assert.NotContains(t, out, "token_hash")
	assert.NotContains(t, out, "otpHash")
	assert.NotContains(t, out, "bearerCredential")
	assert.NotContains(t, string(data), "token-hash")
	assert.NotContains(t, string(data), "signed-bearer")
}

func TestAPIKey_JSONHidesSecretHash(t *testing.T) {
	key := APIKey{
		ID:           "key-1",
		SecretHash:   "secret-hash-value",
		SecretPrefix: "qk_abc1234",
	}

	data, err := json.Marshal(key)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-hash-value")
}

func TestUser_JSONHidesPasswordHash(t *testing.T) {
	user := User{
		ID:           "user-1",
		PasswordHash: "bcrypt-hash-value",
	}

	data, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "bcrypt-hash-value")
}

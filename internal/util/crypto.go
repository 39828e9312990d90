package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	pairingTokenBytes = 32
	apiKeySecretBytes = 32
	bcryptCost        = 10
)

// GeneratePairingToken returns an opaque 256-bit token, hex encoded.
func GeneratePairingToken() (string, error) {
	bytes := make([]byte, pairingTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateAPIKeySecret returns a new API key secret carrying the given
// identification prefix, e.g. "qk_dGVzdA...".
func GenerateAPIKeySecret(prefix string) (string, error) {
	bytes := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", prefix, base64.RawURLEncoding.EncodeToString(bytes)), nil
}

// GenerateOTPCode returns a cryptographically random 6-digit code.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashToken produces the sha256 lookup hash stored in place of raw
// pairing tokens and API key secrets.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// HashOTP hashes a one-time code for at-rest storage.
func HashOTP(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckOTP compares a candidate code against a stored hash without leaking
// timing information about the stored value.
func CheckOTP(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// MaskSecret redacts a secret for logs, keeping only the identifying prefix.
func MaskSecret(secret string) string {
	if len(secret) <= 6 {
		return "******"
	}
	return secret[:6] + "******"
}

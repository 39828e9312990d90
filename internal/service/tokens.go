package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/quillapp/quill-server-go/internal/errors"
)

const tokenIssuer = "quill-api"

// TokenService mints and verifies the signed bearer credentials handed to
// paired CLIs (long expiry) and browser sessions (short expiry). Credentials
// are non-revocable within their lifetime; revocation happens at the API key
// level.
type TokenService struct {
	secret []byte
}

func NewTokenService(signingSecret string) *TokenService {
	return &TokenService{secret: []byte(signingSecret)}
}

// Mint returns a signed credential for userID expiring after ttl.
func (s *TokenService) Mint(userID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates a credential and returns the user it identifies.
func (s *TokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", apperrors.InvalidToken("Invalid or expired credential").WithCause(err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", apperrors.InvalidToken("Credential has no subject")
	}
	return claims.Subject, nil
}

package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/repository"
	"github.com/quillapp/quill-server-go/internal/util"
)

// AuthService issues the browser-session bearer used by the pairing page.
// Registration and password management live elsewhere in the app; the
// pairing subsystem only needs a way to authenticate the browser.
type AuthService struct {
	userRepo   repository.UserRepository
	tokens     *TokenService
	sessionTTL time.Duration
}

func NewAuthService(userRepo repository.UserRepository, tokens *TokenService, sessionTTL time.Duration) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, sessionTTL: sessionTTL}
}

type LoginResult struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil || !util.CheckPasswordHash(password, user.PasswordHash) {
		log.Warn().Str("email", email).Msg("login failed")
		return nil, apperrors.Unauthenticated("Invalid email or password")
	}

	token, _, err := s.tokens.Mint(user.ID, s.sessionTTL)
	if err != nil {
		return nil, apperrors.Internal("Failed to mint session token").WithCause(err)
	}

	log.Info().Str("userId", user.ID).Msg("login succeeded")
	return &LoginResult{Token: token, User: user.Public()}, nil
}

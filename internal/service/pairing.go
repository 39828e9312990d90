package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quillapp/quill-server-go/internal/database"
	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/repository"
	"github.com/quillapp/quill-server-go/internal/util"
)

type PairingConfig struct {
	TokenTTL time.Duration
	// BearerTTL is the lifetime of the credential minted on completion.
	BearerTTL time.Duration
	// BrowserBaseURL hosts the pairing page opened by the CLI.
	BrowserBaseURL string
	// RequireOTP forces the email code even for accounts without 2FA.
	RequireOTP bool
}

// PairingService owns the pairing request lifecycle:
// initialized -> pending -> {completed | expired | failed}.
// All transitions go through conditional updates keyed by the token hash,
// so a poll racing a complete sees either the prior state or the fully
// completed record, never a half-written one.
type PairingService struct {
	db       *database.DB
	repo     repository.PairingRequestRepository
	userRepo repository.UserRepository
	tokens   *TokenService
	cfg      PairingConfig
}

func NewPairingService(
	db *database.DB,
	repo repository.PairingRequestRepository,
	userRepo repository.UserRepository,
	tokens *TokenService,
	cfg PairingConfig,
) *PairingService {
	return &PairingService{
		db:       db,
		repo:     repo,
		userRepo: userRepo,
		tokens:   tokens,
		cfg:      cfg,
	}
}

type StartPairingResult struct {
	PairingToken string `json:"pairingToken"`
	BrowserURL   string `json:"browserUrl"`
	ExpiresIn    int    `json:"expiresIn"`
}

// StartPairing creates a fresh initialized request. The raw token goes back
// to the CLI; only its hash is stored.
func (s *PairingService) StartPairing(ctx context.Context) (*StartPairingResult, error) {
	token, err := util.GeneratePairingToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate pairing token").WithCause(err)
	}

	req, err := s.repo.Create(ctx, model.CreatePairingRequestParams{
		ID:        uuid.NewString(),
		TokenHash: util.HashToken(token),
		ExpiresAt: time.Now().Add(s.cfg.TokenTTL),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("pairingRequestId", req.ID).
		Time("expiresAt", req.ExpiresAt).
		Msg("pairing started")

	return &StartPairingResult{
		PairingToken: token,
		BrowserURL:   fmt.Sprintf("%s/pair?token=%s", s.cfg.BrowserBaseURL, token),
		ExpiresIn:    int(s.cfg.TokenTTL.Seconds()),
	}, nil
}

type AttachResult struct {
	Request     *model.PairingRequest
	OTPRequired bool
}

// Attach binds the signed-in browser user to the request and moves it to
// pending. Re-attaching the same token by the same user is idempotent. Any
// other live pending request the user holds is expired in the same
// transaction, so at most one OTP challenge per user is ever live.
func (s *PairingService) Attach(ctx context.Context, pairingToken, userID string) (*AttachResult, error) {
	tokenHash := util.HashToken(pairingToken)

	if _, err := s.repo.MarkExpiredIfStale(ctx, tokenHash); err != nil {
		return nil, apperrors.Database(err)
	}

	req, err := s.repo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if req == nil {
		return nil, apperrors.NotFound("Pairing request")
	}

	switch req.Status {
	case model.PairingStatusInitialized:
		var attached *model.PairingRequest
		err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			txRepo := s.repo.WithTx(tx)
			if _, err := txRepo.ExpireOtherPending(ctx, userID, req.ID); err != nil {
				return err
			}
			attached, err = txRepo.Attach(ctx, tokenHash, userID)
			return err
		})
		if err != nil {
			// A concurrent attach of a different token by the same user can
			// slip past ExpireOtherPending and trip the one-pending-per-user
			// unique index.
			if repository.IsUniqueViolation(err) {
				return nil, apperrors.AlreadyAttached()
			}
			return nil, apperrors.Database(err)
		}
		if attached == nil {
			// Lost a race with expiry or a concurrent attach.
			return nil, apperrors.Expired("Pairing request")
		}
		req = attached

	case model.PairingStatusPending:
		if req.UserID == nil || *req.UserID != userID {
			return nil, apperrors.AlreadyAttached()
		}
		// Same user re-attaching the same token: no-op.

	case model.PairingStatusCompleted:
		return nil, apperrors.AlreadyAttached()

	default:
		return nil, apperrors.Expired("Pairing request")
	}

	otpRequired, err := s.otpRequired(ctx, req)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("pairingRequestId", req.ID).
		Bool("otpRequired", otpRequired).
		Msg("pairing request attached")

	return &AttachResult{Request: req, OTPRequired: otpRequired}, nil
}

type CompleteResult struct {
	BearerCredential string           `json:"bearerCredential"`
	User             model.PublicUser `json:"user"`
}

// Complete mints the long-lived bearer credential and closes the request.
// When the effective policy requires an OTP, the code must have been
// verified first.
func (s *PairingService) Complete(ctx context.Context, pairingToken, userID string) (*CompleteResult, error) {
	tokenHash := util.HashToken(pairingToken)

	if _, err := s.repo.MarkExpiredIfStale(ctx, tokenHash); err != nil {
		return nil, apperrors.Database(err)
	}

	req, err := s.repo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if req == nil {
		return nil, apperrors.NotFound("Pairing request")
	}
	if req.Status != model.PairingStatusPending {
		return nil, apperrors.Expired("Pairing request")
	}
	if req.UserID == nil || *req.UserID != userID {
		return nil, apperrors.Forbidden("Pairing request belongs to another user")
	}

	otpRequired, err := s.otpRequired(ctx, req)
	if err != nil {
		return nil, err
	}
	if otpRequired {
		return nil, apperrors.OTPRequired()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}

	bearer, _, err := s.tokens.Mint(userID, s.cfg.BearerTTL)
	if err != nil {
		return nil, apperrors.Internal("Failed to mint credential").WithCause(err)
	}

	completed, err := s.repo.Complete(ctx, tokenHash, userID, bearer)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if completed == nil {
		// A concurrent complete or expiry won; the stored state stands.
		return nil, apperrors.Expired("Pairing request")
	}

	log.Info().
		Str("pairingRequestId", completed.ID).
		Str("userId", userID).
		Msg("pairing completed")

	return &CompleteResult{
		BearerCredential: bearer,
		User:             user.Public(),
	}, nil
}

type PollResult struct {
	Status           model.PairingStatus `json:"status"`
	OTPRequired      bool                `json:"otpRequired"`
	BearerCredential string              `json:"bearerCredential,omitempty"`
	User             *model.PublicUser   `json:"user,omitempty"`
}

// Poll reports the request's current status to the CLI. The bearer
// credential is released only for completed requests; expiry is enforced
// lazily before the read.
func (s *PairingService) Poll(ctx context.Context, pairingToken string) (*PollResult, error) {
	tokenHash := util.HashToken(pairingToken)

	if _, err := s.repo.MarkExpiredIfStale(ctx, tokenHash); err != nil {
		return nil, apperrors.Database(err)
	}

	req, err := s.repo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if req == nil {
		return nil, apperrors.NotFound("Pairing request")
	}

	result := &PollResult{Status: req.Status}

	switch req.Status {
	case model.PairingStatusPending:
		otpRequired, err := s.otpRequired(ctx, req)
		if err != nil {
			return nil, err
		}
		result.OTPRequired = otpRequired

	case model.PairingStatusCompleted:
		if req.BearerCredential != nil && req.UserID != nil {
			result.BearerCredential = *req.BearerCredential
			user, err := s.userRepo.FindByID(ctx, *req.UserID)
			if err != nil {
				return nil, apperrors.Database(err)
			}
			if user != nil {
				pub := user.Public()
				result.User = &pub
			}
		}
	}

	return result, nil
}

// RequestIDForToken resolves a raw pairing token to its request id,
// enforcing lazy expiry on the way.
func (s *PairingService) RequestIDForToken(ctx context.Context, pairingToken string) (string, error) {
	tokenHash := util.HashToken(pairingToken)

	if _, err := s.repo.MarkExpiredIfStale(ctx, tokenHash); err != nil {
		return "", apperrors.Database(err)
	}

	req, err := s.repo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if req == nil {
		return "", apperrors.NotFound("Pairing request")
	}
	return req.ID, nil
}

// otpRequired resolves the effective second-factor policy for the request's
// attached user: forced globally by config, or per-account via 2FA settings.
// A verified code always satisfies the requirement.
func (s *PairingService) otpRequired(ctx context.Context, req *model.PairingRequest) (bool, error) {
	if req.UserID == nil || req.Status != model.PairingStatusPending {
		return false, nil
	}
	if req.OTPVerifiedAt != nil {
		return false, nil
	}
	if s.cfg.RequireOTP {
		return true, nil
	}
	user, err := s.userRepo.FindByID(ctx, *req.UserID)
	if err != nil {
		return false, apperrors.Database(err)
	}
	return user != nil && user.Is2FAEnabled, nil
}

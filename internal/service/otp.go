package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/notify"
	"github.com/quillapp/quill-server-go/internal/redis"
	"github.com/quillapp/quill-server-go/internal/repository"
	"github.com/quillapp/quill-server-go/internal/util"
)

type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
}

// CooldownStore throttles OTP re-issue. Acquire returns false plus the
// remaining cooldown when the slot is already held.
type CooldownStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
}

// OTPService issues and verifies the short-lived codes bound to pairing
// requests. Attempt accounting rides on the store's conditional updates, so
// concurrent verifies cannot double-count or sneak past the cap.
type OTPService struct {
	pairingRepo repository.PairingRequestRepository
	userRepo    repository.UserRepository
	cooldowns   CooldownStore
	sender      notify.Sender
	cfg         OTPConfig
}

func NewOTPService(
	pairingRepo repository.PairingRequestRepository,
	userRepo repository.UserRepository,
	cooldowns CooldownStore,
	sender notify.Sender,
	cfg OTPConfig,
) *OTPService {
	return &OTPService{
		pairingRepo: pairingRepo,
		userRepo:    userRepo,
		cooldowns:   cooldowns,
		sender:      sender,
		cfg:         cfg,
	}
}

type OTPIssued struct {
	ExpiresIn int `json:"expiresIn"`
}

// Issue generates a fresh 6-digit code for the pairing request, resets the
// attempt counter, and dispatches the code to the attached user's email.
// A re-issue within the cooldown window is rejected with RateLimited.
func (s *OTPService) Issue(ctx context.Context, pairingRequestID, userID string) (*OTPIssued, error) {
	req, err := s.pairingRepo.FindByID(ctx, pairingRequestID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if req == nil {
		return nil, apperrors.NotFound("Pairing request")
	}
	if req.Status != model.PairingStatusPending || req.UserID == nil {
		return nil, apperrors.Expired("Pairing request")
	}
	if *req.UserID != userID {
		return nil, apperrors.Forbidden("Pairing request belongs to another user")
	}

	acquired, remaining, err := s.cooldowns.Acquire(ctx, redis.CooldownKey("otp", req.ID), s.cfg.ResendCooldown)
	if err != nil {
		// Fail closed: without the cooldown we cannot bound resend volume.
		log.Error().Err(err).Str("pairingRequestId", req.ID).Msg("otp cooldown check failed")
		return nil, apperrors.RateLimited(int(s.cfg.ResendCooldown.Seconds()))
	}
	if !acquired {
		return nil, apperrors.RateLimited(int(remaining.Round(time.Second).Seconds()))
	}

	code, err := util.GenerateOTPCode()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate code").WithCause(err)
	}
	codeHash, err := util.HashOTP(code)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash code").WithCause(err)
	}

	now := time.Now()
	updated, err := s.pairingRepo.SetOTP(ctx, req.ID, codeHash, now.Add(s.cfg.TTL), now)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if updated == nil {
		// Lost a race with expiry or completion.
		return nil, apperrors.Expired("Pairing request")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}

	if err := s.sender.Send(ctx, user.Email, code, user.Name); err != nil {
		log.Error().Err(err).Str("pairingRequestId", req.ID).Msg("failed to send otp email")
		return nil, apperrors.External("email", err)
	}

	log.Info().
		Str("pairingRequestId", req.ID).
		Time("expiresAt", now.Add(s.cfg.TTL)).
		Msg("otp issued")

	return &OTPIssued{ExpiresIn: int(s.cfg.TTL.Seconds())}, nil
}

// Verify checks a candidate code. Expiry is enforced before attempt
// accounting; the attempt counter is incremented by a conditional update
// before the comparison so a wrong guess is always recorded exactly once.
func (s *OTPService) Verify(ctx context.Context, pairingRequestID, userID, candidate string) error {
	req, err := s.pairingRepo.FindByID(ctx, pairingRequestID)
	if err != nil {
		return apperrors.Database(err)
	}
	if req == nil {
		return apperrors.NotFound("Pairing request")
	}
	if req.UserID == nil || *req.UserID != userID {
		return apperrors.Forbidden("Pairing request belongs to another user")
	}

	switch req.Status {
	case model.PairingStatusPending:
	case model.PairingStatusFailed:
		return apperrors.TooManyAttempts()
	default:
		return apperrors.Expired("Pairing request")
	}

	if req.OTPHash == nil || req.OTPExpiresAt == nil {
		return apperrors.ValidationError("No verification code has been issued")
	}

	if time.Now().After(*req.OTPExpiresAt) {
		if err := s.pairingRepo.MarkExpired(ctx, req.ID); err != nil {
			return apperrors.Database(err)
		}
		log.Warn().Str("pairingRequestId", req.ID).Msg("otp expired, pairing request closed")
		return apperrors.Expired("Verification code")
	}

	updated, err := s.pairingRepo.IncrementOTPAttempts(ctx, req.ID, s.cfg.MaxAttempts)
	if err != nil {
		return apperrors.Database(err)
	}
	if updated == nil {
		// Attempt cap already reached; fail the pairing request for good.
		if err := s.pairingRepo.MarkFailed(ctx, req.ID); err != nil {
			return apperrors.Database(err)
		}
		log.Warn().Str("pairingRequestId", req.ID).Msg("otp attempt cap reached, pairing request failed")
		return apperrors.TooManyAttempts()
	}

	if !util.CheckOTP(candidate, *updated.OTPHash) {
		remaining := s.cfg.MaxAttempts - updated.OTPAttempts
		log.Warn().
			Str("pairingRequestId", req.ID).
			Int("attempts", updated.OTPAttempts).
			Msg("otp mismatch")
		return apperrors.OTPMismatch(remaining)
	}

	if _, err := s.pairingRepo.MarkOTPVerified(ctx, req.ID); err != nil {
		return apperrors.Database(err)
	}

	log.Info().Str("pairingRequestId", req.ID).Msg("otp verified")
	return nil
}

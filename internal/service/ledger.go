package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/repository"
)

// LedgerService debits user credits and records usage. A charge is a single
// compare-and-decrement statement, so N concurrent charges against a balance
// of C succeed exactly min(N, C) times and the balance never goes negative.
// Failed charges are never retried server-side.
type LedgerService struct {
	userRepo  repository.UserRepository
	usageRepo repository.UsageLogRepository
}

func NewLedgerService(userRepo repository.UserRepository, usageRepo repository.UsageLogRepository) *LedgerService {
	return &LedgerService{userRepo: userRepo, usageRepo: usageRepo}
}

type Charged struct {
	Remaining int64
}

// ChargeIfSufficient debits cost from the user or fails without mutation.
func (s *LedgerService) ChargeIfSufficient(ctx context.Context, userID string, cost int64) (*Charged, error) {
	if cost <= 0 {
		return nil, apperrors.InvalidInput("cost", "must be positive")
	}

	remaining, err := s.userRepo.ChargeCredits(ctx, userID, cost)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if remaining == nil {
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if user == nil {
			return nil, apperrors.NotFound("User")
		}
		log.Warn().
			Str("userId", userID).
			Int64("cost", cost).
			Int64("balance", user.Credits).
			Msg("charge denied: insufficient credits")
		return nil, apperrors.InsufficientCredits()
	}

	log.Debug().
		Str("userId", userID).
		Int64("cost", cost).
		Int64("remaining", *remaining).
		Msg("credits charged")

	return &Charged{Remaining: *remaining}, nil
}

// RecordUsage appends one immutable usage log row. Callers invoke it only
// after the metered operation succeeded.
func (s *LedgerService) RecordUsage(ctx context.Context, params model.CreateUsageLogParams) (*model.UsageLogEntry, error) {
	if params.ID == "" {
		params.ID = uuid.NewString()
	}

	entry, err := s.usageRepo.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return entry, nil
}

// RecentUsage lists the newest usage entries for a user.
func (s *LedgerService) RecentUsage(ctx context.Context, userID string, limit int) ([]model.UsageLogEntry, error) {
	entries, err := s.usageRepo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return entries, nil
}

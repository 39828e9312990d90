package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/repository"
)

// Mock repositories

type mockPairingRepo struct {
	mock.Mock
}

func (m *mockPairingRepo) Create(ctx context.Context, params model.CreatePairingRequestParams) (*model.PairingRequest, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) FindByID(ctx context.Context, id string) (*model.PairingRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PairingRequest, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) FindPendingByUserID(ctx context.Context, userID string) (*model.PairingRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) Attach(ctx context.Context, tokenHash, userID string) (*model.PairingRequest, error) {
	args := m.Called(ctx, tokenHash, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) ExpireOtherPending(ctx context.Context, userID, keepID string) (int64, error) {
	args := m.Called(ctx, userID, keepID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingRepo) SetOTP(ctx context.Context, id, otpHash string, expiresAt, sentAt time.Time) (*model.PairingRequest, error) {
	args := m.Called(ctx, id, otpHash, expiresAt, sentAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) IncrementOTPAttempts(ctx context.Context, id string, maxAttempts int) (*model.PairingRequest, error) {
	args := m.Called(ctx, id, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) MarkOTPVerified(ctx context.Context, id string) (*model.PairingRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) Complete(ctx context.Context, tokenHash, userID, bearerCredential string) (*model.PairingRequest, error) {
	args := m.Called(ctx, tokenHash, userID, bearerCredential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingRequest), args.Error(1)
}

func (m *mockPairingRepo) MarkExpiredIfStale(ctx context.Context, tokenHash string) (int64, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingRepo) MarkExpired(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPairingRepo) MarkFailed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPairingRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingRepo) WithTx(tx *sqlx.Tx) repository.PairingRequestRepository {
	return m
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) ChargeCredits(ctx context.Context, userID string, cost int64) (*int64, error) {
	args := m.Called(ctx, userID, cost)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int64), args.Error(1)
}

func (m *mockUserRepo) AddCredits(ctx context.Context, userID string, amount int64) (*int64, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int64), args.Error(1)
}

type mockAPIKeyRepo struct {
	mock.Mock
}

func (m *mockAPIKeyRepo) Create(ctx context.Context, params model.CreateAPIKeyParams) (*model.APIKey, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepo) FindByID(ctx context.Context, id string) (*model.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepo) ListByUserID(ctx context.Context, userID string) ([]model.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepo) Revoke(ctx context.Context, id, userID string) (int64, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAPIKeyRepo) ValidateAndTouch(ctx context.Context, secretHash string) (*model.APIKey, error) {
	args := m.Called(ctx, secretHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

type mockUsageRepo struct {
	mock.Mock
}

func (m *mockUsageRepo) Create(ctx context.Context, params model.CreateUsageLogParams) (*model.UsageLogEntry, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsageLogEntry), args.Error(1)
}

func (m *mockUsageRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]model.UsageLogEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UsageLogEntry), args.Error(1)
}

func (m *mockUsageRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// Mock collaborators

type mockCooldowns struct {
	mock.Mock
}

func (m *mockCooldowns) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, address, code, displayName string) error {
	args := m.Called(ctx, address, code, displayName)
	return args.Error(0)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

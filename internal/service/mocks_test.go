package service

import (
	"context"
	"time"

	"learnrank/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockRankingRepository ---
type MockRankingRepository struct {
	mock.Mock
}

func (m *MockRankingRepository) GetByKey(ctx context.Context, mode domain.RankingMode, userID, lessonID string) (*domain.RankingRecord, error) {
	args := m.Called(ctx, mode, userID, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RankingRecord), args.Error(1)
}

func (m *MockRankingRepository) ListPartition(ctx context.Context, mode domain.RankingMode, lessonID string) ([]*domain.RankingRecord, error) {
	args := m.Called(ctx, mode, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RankingRecord), args.Error(1)
}

func (m *MockRankingRepository) ListLeaderboard(ctx context.Context, mode domain.RankingMode, lessonID string, limit int) ([]*domain.LeaderboardEntry, error) {
	args := m.Called(ctx, mode, lessonID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LeaderboardEntry), args.Error(1)
}

func (m *MockRankingRepository) AccumulateUpsert(ctx context.Context, mode domain.RankingMode, userID string, scoreDelta float64, timeDelta int64) error {
	args := m.Called(ctx, mode, userID, scoreDelta, timeDelta)
	return args.Error(0)
}

func (m *MockRankingRepository) BestAttemptUpsert(ctx context.Context, userID, lessonID string, score float64, timeSpent int64) error {
	args := m.Called(ctx, userID, lessonID, score, timeSpent)
	return args.Error(0)
}

func (m *MockRankingRepository) CreateRecord(ctx context.Context, record *domain.RankingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRankingRepository) GetByID(ctx context.Context, id string) (*domain.RankingRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RankingRecord), args.Error(1)
}

func (m *MockRankingRepository) UpdateRecord(ctx context.Context, record *domain.RankingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRankingRepository) DeleteRecord(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRankingRepository) UpdateRanks(ctx context.Context, ranks map[string]int) error {
	args := m.Called(ctx, ranks)
	return args.Error(0)
}

func (m *MockRankingRepository) RelabelPartition(ctx context.Context, fromMode, toMode domain.RankingMode) (int64, error) {
	args := m.Called(ctx, fromMode, toMode)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRankingRepository) DeletePartition(ctx context.Context, mode domain.RankingMode, lessonID string) (int64, error) {
	args := m.Called(ctx, mode, lessonID)
	return args.Get(0).(int64), args.Error(1)
}

// --- MockUserRepository ---
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) ListTopScorers(ctx context.Context, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) CountRankedAbove(ctx context.Context, score float64, timeSpent int64) (int, error) {
	args := m.Called(ctx, score, timeSpent)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) AccumulateTotals(ctx context.Context, userID string, scoreDelta float64, timeDelta int64) error {
	args := m.Called(ctx, userID, scoreDelta, timeDelta)
	return args.Error(0)
}

// --- MockProgressRepository ---
type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) CreateProgress(ctx context.Context, progress *domain.Progress) error {
	args := m.Called(ctx, progress)
	return args.Error(0)
}

func (m *MockProgressRepository) BestAttempts(ctx context.Context, lessonID string) ([]*domain.Progress, error) {
	args := m.Called(ctx, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Progress), args.Error(1)
}

func (m *MockProgressRepository) SumSince(ctx context.Context, cutoff time.Time) ([]*domain.UserTotals, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.UserTotals), args.Error(1)
}

// --- fakeTxManager ---
// Runs the function directly; transaction semantics are covered by the
// repository tests.
type fakeTxManager struct{}

func (f *fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- MockCache ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) DeletePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

package service

import (
	"context"
	"testing"

	"learnrank/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRankingService is a mock type for RankingService, covering only what
// the completion pipeline calls.
type MockRankingService struct {
	mock.Mock
}

func (m *MockRankingService) ApplyCompletion(ctx context.Context, event domain.CompletionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockRankingService) GetLeaderboard(ctx context.Context, mode domain.RankingMode, lessonID string, limit int) ([]*domain.LeaderboardEntry, error) {
	args := m.Called(ctx, mode, lessonID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LeaderboardEntry), args.Error(1)
}

func (m *MockRankingService) GetUserRank(ctx context.Context, userID string, mode domain.RankingMode, lessonID string) (*domain.UserRank, error) {
	args := m.Called(ctx, userID, mode, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserRank), args.Error(1)
}

func (m *MockRankingService) FlipWeek(ctx context.Context) (*domain.FlipResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlipResult), args.Error(1)
}

func (m *MockRankingService) FlipMonth(ctx context.Context) (*domain.FlipResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlipResult), args.Error(1)
}

func (m *MockRankingService) InitialBackfill(ctx context.Context, mode domain.RankingMode, lessonID string) error {
	args := m.Called(ctx, mode, lessonID)
	return args.Error(0)
}

func (m *MockRankingService) ListRankings(ctx context.Context, mode domain.RankingMode, lessonID string) ([]*domain.RankingRecord, error) {
	args := m.Called(ctx, mode, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RankingRecord), args.Error(1)
}

func (m *MockRankingService) GetRanking(ctx context.Context, id string) (*domain.RankingRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RankingRecord), args.Error(1)
}

func (m *MockRankingService) CreateRanking(ctx context.Context, record *domain.RankingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRankingService) UpdateRanking(ctx context.Context, record *domain.RankingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRankingService) DeleteRanking(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestRecordCompletion_PersistsAttemptTotalsAndRankings(t *testing.T) {
	progressRepo := new(MockProgressRepository)
	userRepo := new(MockUserRepository)
	rankingSvc := new(MockRankingService)

	svc := NewCompletionService(progressRepo, userRepo, rankingSvc, &fakeTxManager{}, testConfig())

	event := domain.CompletionEvent{UserID: "user1", LessonID: "lesson1", ScoreDelta: 15, TimeDelta: 240}

	progressRepo.On("CreateProgress", mock.Anything, mock.MatchedBy(func(p *domain.Progress) bool {
		return p.UserID == "user1" && p.LessonID == "lesson1" && p.Score == 15 && p.Time == 240 && !p.CompletedAt.IsZero()
	})).Return(nil)
	userRepo.On("AccumulateTotals", mock.Anything, "user1", 15.0, int64(240)).Return(nil)
	rankingSvc.On("ApplyCompletion", mock.Anything, event).Return(nil)

	err := svc.RecordCompletion(context.Background(), event)

	assert.NoError(t, err)
	progressRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
	rankingSvc.AssertExpectations(t)
}

func TestRecordCompletion_RejectsInvalidEventBeforeStore(t *testing.T) {
	progressRepo := new(MockProgressRepository)
	svc := NewCompletionService(progressRepo, new(MockUserRepository), new(MockRankingService), &fakeTxManager{}, testConfig())

	err := svc.RecordCompletion(context.Background(), domain.CompletionEvent{})

	var validationErrs domain.ValidationErrors
	assert.ErrorAs(t, err, &validationErrs)
	progressRepo.AssertNotCalled(t, "CreateProgress", mock.Anything, mock.Anything)
}

func TestRecordCompletion_RequiresLesson(t *testing.T) {
	progressRepo := new(MockProgressRepository)
	svc := NewCompletionService(progressRepo, new(MockUserRepository), new(MockRankingService), &fakeTxManager{}, testConfig())

	// Lessonless events are valid for the ranking engine but not recordable
	// as progress rows.
	err := svc.RecordCompletion(context.Background(), domain.CompletionEvent{UserID: "user1", ScoreDelta: 5, TimeDelta: 30})

	var validationErrs domain.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	require.Len(t, validationErrs, 1)
	assert.Equal(t, "lesson_id", validationErrs[0].Field)
	progressRepo.AssertNotCalled(t, "CreateProgress", mock.Anything, mock.Anything)
}

func TestRecordCompletion_AttemptFailureSkipsRankings(t *testing.T) {
	progressRepo := new(MockProgressRepository)
	userRepo := new(MockUserRepository)
	rankingSvc := new(MockRankingService)
	svc := NewCompletionService(progressRepo, userRepo, rankingSvc, &fakeTxManager{}, testConfig())

	event := domain.CompletionEvent{UserID: "user1", LessonID: "lesson1", ScoreDelta: 5, TimeDelta: 30}

	progressRepo.On("CreateProgress", mock.Anything, mock.Anything).Return(assert.AnError)

	err := svc.RecordCompletion(context.Background(), event)

	require.Error(t, err)
	rankingSvc.AssertNotCalled(t, "ApplyCompletion", mock.Anything, mock.Anything)
}

func TestRecordCompletion_SurfacesRankingFailure(t *testing.T) {
	progressRepo := new(MockProgressRepository)
	userRepo := new(MockUserRepository)
	rankingSvc := new(MockRankingService)
	svc := NewCompletionService(progressRepo, userRepo, rankingSvc, &fakeTxManager{}, testConfig())

	event := domain.CompletionEvent{UserID: "user1", LessonID: "lesson1", ScoreDelta: 5, TimeDelta: 30}

	progressRepo.On("CreateProgress", mock.Anything, mock.Anything).Return(nil)
	userRepo.On("AccumulateTotals", mock.Anything, "user1", 5.0, int64(30)).Return(nil)
	rankingErr := domain.NewStorageUnavailableError(assert.AnError)
	rankingSvc.On("ApplyCompletion", mock.Anything, event).Return(rankingErr)

	err := svc.RecordCompletion(context.Background(), event)

	assert.ErrorIs(t, err, rankingErr)
}

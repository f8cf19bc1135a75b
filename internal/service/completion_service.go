package service

import (
	"context"
	"time"

	"learnrank/internal/config"
	"learnrank/internal/domain"
	"learnrank/internal/logger"

	"go.uber.org/zap"
)

// CompletionService is the write-side entry point: it records the raw attempt,
// bumps the user's lifetime totals, and feeds the ranking engine.
type CompletionService interface {
	RecordCompletion(ctx context.Context, event domain.CompletionEvent) error
}

type completionService struct {
	progressRepo domain.ProgressRepository
	userRepo     domain.UserRepository
	rankingSvc   RankingService
	txManager    domain.TransactionManager
	cfg          *config.Config
}

// NewCompletionService creates a new instance of completionService
func NewCompletionService(
	progressRepo domain.ProgressRepository,
	userRepo domain.UserRepository,
	rankingSvc RankingService,
	txManager domain.TransactionManager,
	cfg *config.Config,
) CompletionService {
	return &completionService{
		progressRepo: progressRepo,
		userRepo:     userRepo,
		rankingSvc:   rankingSvc,
		txManager:    txManager,
		cfg:          cfg,
	}
}

// RecordCompletion implements CompletionService
func (s *completionService) RecordCompletion(ctx context.Context, event domain.CompletionEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	// The ranking engine accepts lessonless events, but every recorded
	// attempt is a row in the lesson-scoped progress table.
	if event.LessonID == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError("lesson_id")}
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		progress := &domain.Progress{
			UserID:      event.UserID,
			LessonID:    event.LessonID,
			Score:       event.ScoreDelta,
			Time:        event.TimeDelta,
			CompletedAt: time.Now().UTC(),
		}
		if err := s.progressRepo.CreateProgress(txCtx, progress); err != nil {
			return err
		}
		if err := s.userRepo.AccumulateTotals(txCtx, event.UserID, event.ScoreDelta, event.TimeDelta); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The ranking update runs after the attempt is durable. A failure here
	// leaves totals ahead of rankings until the next event or a backfill;
	// the attempt itself is never lost.
	if err := s.rankingSvc.ApplyCompletion(ctx, event); err != nil {
		logger.Get().Error("Ranking update failed after completion was recorded",
			zap.String("user_id", event.UserID),
			zap.String("lesson_id", event.LessonID),
			zap.Error(err))
		return err
	}
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"learnrank/internal/cache"
	"learnrank/internal/config"
	"learnrank/internal/domain"
	"learnrank/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RankingService defines the leaderboard engine operations.
type RankingService interface {
	// ApplyCompletion applies one "lesson completed" event to every live
	// ranking mode and re-ranks the touched partitions. The engine does not
	// deduplicate events; callers that retry must dedupe upstream or risk
	// double-accumulation.
	ApplyCompletion(ctx context.Context, event domain.CompletionEvent) error

	// GetLeaderboard returns the top limit entries of the mode's leaderboard.
	GetLeaderboard(ctx context.Context, mode domain.RankingMode, lessonID string, limit int) ([]*domain.LeaderboardEntry, error)

	// GetUserRank returns one user's standing in the mode, or a
	// RANKING_NOT_FOUND error when the user has not participated.
	GetUserRank(ctx context.Context, userID string, mode domain.RankingMode, lessonID string) (*domain.UserRank, error)

	// FlipWeek freezes current_week into last_week. Safe to call at any time
	// and idempotent in effect.
	FlipWeek(ctx context.Context) (*domain.FlipResult, error)

	// FlipMonth freezes current_month into last_month.
	FlipMonth(ctx context.Context) (*domain.FlipResult, error)

	// InitialBackfill repopulates a mode from historical progress rows. It is
	// a one-time administrative operation and runs with the partition locked
	// against concurrent events for its whole duration.
	InitialBackfill(ctx context.Context, mode domain.RankingMode, lessonID string) error

	// ListRankings returns the raw records of a stored partition, ordered by
	// rank. Admin view; leaderboard reads go through GetLeaderboard.
	ListRankings(ctx context.Context, mode domain.RankingMode, lessonID string) ([]*domain.RankingRecord, error)

	// GetRanking returns one record by ID or a NOT_FOUND error.
	GetRanking(ctx context.Context, id string) (*domain.RankingRecord, error)

	// CreateRanking inserts a fully specified record (administrative override).
	CreateRanking(ctx context.Context, record *domain.RankingRecord) error

	// UpdateRanking overwrites an existing record's rank, score and time
	// (administrative override). Performance is recomputed, never accepted.
	UpdateRanking(ctx context.Context, record *domain.RankingRecord) error

	// DeleteRanking removes one record by ID.
	DeleteRanking(ctx context.Context, id string) error
}

// rankingService implements RankingService
type rankingService struct {
	repo         domain.RankingRepository
	userRepo     domain.UserRepository
	progressRepo domain.ProgressRepository
	txManager    domain.TransactionManager
	cache        domain.Cache
	cfg          *config.Config
}

// NewRankingService creates a new instance of rankingService
func NewRankingService(
	repo domain.RankingRepository,
	userRepo domain.UserRepository,
	progressRepo domain.ProgressRepository,
	txManager domain.TransactionManager,
	cacheAdapter domain.Cache,
	cfg *config.Config,
) RankingService {
	return &rankingService{
		repo:         repo,
		userRepo:     userRepo,
		progressRepo: progressRepo,
		txManager:    txManager,
		cache:        cacheAdapter,
		cfg:          cfg,
	}
}

// ApplyCompletion implements RankingService
func (s *rankingService) ApplyCompletion(ctx context.Context, event domain.CompletionEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	if err := s.applyAggregates(ctx, event); err != nil {
		return err
	}

	// Re-rank every partition the event touched. The month and week
	// partitions are independent, so they re-rank concurrently. Rank numbers
	// may briefly lag concurrent aggregate writes from other users; lost
	// score/time updates cannot happen because accumulation is atomic.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.rerankPartition(gctx, domain.ModeCurrentMonth, "") })
	g.Go(func() error { return s.rerankPartition(gctx, domain.ModeCurrentWeek, "") })
	if event.LessonID != "" {
		g.Go(func() error { return s.rerankPartition(gctx, domain.ModeByLesson, event.LessonID) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.invalidateLeaderboard(ctx, domain.ModeCurrentMonth, "")
	s.invalidateLeaderboard(ctx, domain.ModeCurrentWeek, "")
	if event.LessonID != "" {
		s.invalidateLeaderboard(ctx, domain.ModeByLesson, event.LessonID)
	}
	s.invalidateLeaderboard(ctx, domain.ModeAllTime, "")

	return nil
}

// applyAggregates runs the per-mode upserts in one transaction, retrying a
// bounded number of times when the store reports a serialization conflict.
func (s *rankingService) applyAggregates(ctx context.Context, event domain.CompletionEvent) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.Ranking.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.Ranking.RetryBackoff * time.Duration(attempt)):
			}
			logger.Get().Debug("Retrying ranking aggregation after conflict",
				zap.String("user_id", event.UserID),
				zap.Int("attempt", attempt))
		}

		lastErr = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.repo.AccumulateUpsert(txCtx, domain.ModeCurrentMonth, event.UserID, event.ScoreDelta, event.TimeDelta); err != nil {
				return err
			}
			if err := s.repo.AccumulateUpsert(txCtx, domain.ModeCurrentWeek, event.UserID, event.ScoreDelta, event.TimeDelta); err != nil {
				return err
			}
			// Not every completion is lesson-scoped; skip the best-attempt
			// mode when there is no lesson to partition by.
			if event.LessonID != "" {
				if err := s.repo.BestAttemptUpsert(txCtx, event.UserID, event.LessonID, event.ScoreDelta, event.TimeDelta); err != nil {
					return err
				}
			}
			return nil
		})
		if lastErr == nil {
			return nil
		}

		var domainErr *domain.DomainError
		if !errors.As(lastErr, &domainErr) || domainErr.Code != domain.CodeConcurrencyConflict {
			return s.wrapStoreError(lastErr)
		}
	}

	logger.Get().Warn("Ranking aggregation retries exhausted",
		zap.String("user_id", event.UserID),
		zap.Int("max_retries", s.cfg.Ranking.MaxRetries),
		zap.Error(lastErr))
	return lastErr
}

// rerankPartition re-sorts one (mode[, lesson]) partition and assigns ranks
// 1..N. Full re-sort per event is deliberate; partition sizes are one
// period's active users.
func (s *rankingService) rerankPartition(ctx context.Context, mode domain.RankingMode, lessonID string) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		records, err := s.repo.ListPartition(txCtx, mode, lessonID)
		if err != nil {
			return s.wrapStoreError(err)
		}
		if len(records) == 0 {
			return nil
		}

		sort.SliceStable(records, func(i, j int) bool {
			return outranks(mode, records[i], records[j])
		})

		ranks := make(map[string]int)
		for i, record := range records {
			if record.Rank != i+1 {
				ranks[record.ID] = i + 1
			}
		}
		if len(ranks) == 0 {
			return nil
		}
		if err := s.repo.UpdateRanks(txCtx, ranks); err != nil {
			return s.wrapStoreError(err)
		}
		return nil
	})
}

// outranks reports whether a places above b in the given mode.
//
// Period modes break score ties by MORE accumulated time: equal score with
// more time on task is read as more effort. by_lesson is the inverse; the
// effort is the same lesson, so the faster completion wins.
func outranks(mode domain.RankingMode, a, b *domain.RankingRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if mode == domain.ModeByLesson {
		return a.Time < b.Time
	}
	return a.Time > b.Time
}

// GetLeaderboard implements RankingService
func (s *rankingService) GetLeaderboard(ctx context.Context, mode domain.RankingMode, lessonID string, limit int) ([]*domain.LeaderboardEntry, error) {
	if err := validateModeAndLesson(mode, lessonID); err != nil {
		return nil, err
	}
	limit = s.clampLimit(limit)

	cacheKey := s.leaderboardCacheKey(mode, lessonID, limit)
	if entries, ok := s.leaderboardFromCache(ctx, cacheKey); ok {
		return entries, nil
	}

	var entries []*domain.LeaderboardEntry
	if mode == domain.ModeAllTime {
		// all_time is never materialized; it is a pure function of the
		// already-durable user totals.
		users, err := s.userRepo.ListTopScorers(ctx, limit)
		if err != nil {
			return nil, s.wrapStoreError(err)
		}
		entries = make([]*domain.LeaderboardEntry, 0, len(users))
		for i, user := range users {
			entries = append(entries, &domain.LeaderboardEntry{
				Rank:        i + 1,
				UserID:      user.ID,
				FullName:    user.FullName,
				Email:       user.Email,
				Score:       user.TotalScore,
				Time:        user.TotalTime,
				Performance: domain.ComputePerformance(user.TotalScore, user.TotalTime),
			})
		}
	} else {
		var err error
		entries, err = s.repo.ListLeaderboard(ctx, mode, lessonID, limit)
		if err != nil {
			return nil, s.wrapStoreError(err)
		}
	}

	s.leaderboardToCache(ctx, cacheKey, entries)
	return entries, nil
}

// GetUserRank implements RankingService
func (s *rankingService) GetUserRank(ctx context.Context, userID string, mode domain.RankingMode, lessonID string) (*domain.UserRank, error) {
	if err := validateModeAndLesson(mode, lessonID); err != nil {
		return nil, err
	}

	if mode == domain.ModeAllTime {
		user, err := s.userRepo.GetUserByID(ctx, userID)
		if err != nil {
			return nil, s.wrapStoreError(err)
		}
		if user == nil || user.TotalScore == 0 {
			// Zero lifetime score reads as "has not participated yet".
			return nil, domain.NewRankingNotFoundError(userID, mode)
		}

		above, err := s.userRepo.CountRankedAbove(ctx, user.TotalScore, user.TotalTime)
		if err != nil {
			return nil, s.wrapStoreError(err)
		}
		return &domain.UserRank{
			Mode:        mode,
			UserID:      userID,
			Rank:        above + 1,
			Score:       user.TotalScore,
			Time:        user.TotalTime,
			Performance: domain.ComputePerformance(user.TotalScore, user.TotalTime),
		}, nil
	}

	record, err := s.repo.GetByKey(ctx, mode, userID, lessonID)
	if err != nil {
		return nil, s.wrapStoreError(err)
	}
	if record == nil {
		return nil, domain.NewRankingNotFoundError(userID, mode)
	}
	return &domain.UserRank{
		Mode:        record.Mode,
		UserID:      record.UserID,
		Rank:        record.Rank,
		Score:       record.Score,
		Time:        record.Time,
		Performance: record.Performance,
		LessonID:    record.LessonID,
	}, nil
}

// FlipWeek implements RankingService
func (s *rankingService) FlipWeek(ctx context.Context) (*domain.FlipResult, error) {
	return s.flip(ctx, domain.ModeCurrentWeek, domain.ModeLastWeek)
}

// FlipMonth implements RankingService
func (s *rankingService) FlipMonth(ctx context.Context) (*domain.FlipResult, error) {
	return s.flip(ctx, domain.ModeCurrentMonth, domain.ModeLastMonth)
}

// flip freezes the live partition into the frozen one: delete the stale
// frozen records, then relabel the live records in place. Both steps run in
// one transaction; a partial rollover would silently lose a live leaderboard.
// The live partition ends up empty either way, which makes repeated calls
// harmless.
func (s *rankingService) flip(ctx context.Context, current, last domain.RankingMode) (*domain.FlipResult, error) {
	result := &domain.FlipResult{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		deleted, err := s.repo.DeletePartition(txCtx, last, "")
		if err != nil {
			return err
		}
		relabeled, err := s.repo.RelabelPartition(txCtx, current, last)
		if err != nil {
			return err
		}
		result.Deleted = deleted
		result.Relabeled = relabeled
		return nil
	})
	if err != nil {
		return nil, s.wrapStoreError(err)
	}

	s.invalidateLeaderboard(ctx, current, "")
	s.invalidateLeaderboard(ctx, last, "")

	logger.Get().Info("Period rollover completed",
		zap.String("from", string(current)),
		zap.String("to", string(last)),
		zap.Int64("deleted", result.Deleted),
		zap.Int64("relabeled", result.Relabeled))
	return result, nil
}

// InitialBackfill implements RankingService
func (s *rankingService) InitialBackfill(ctx context.Context, mode domain.RankingMode, lessonID string) error {
	if err := validateModeAndLesson(mode, lessonID); err != nil {
		return err
	}
	switch mode {
	case domain.ModeAllTime:
		return domain.NewInvalidInputError("all_time is computed from user totals and is never materialized")
	case domain.ModeLastWeek, domain.ModeLastMonth:
		return domain.NewInvalidInputError("frozen modes are populated by rollover, not backfill")
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.DeletePartition(txCtx, mode, lessonID); err != nil {
			return err
		}

		switch mode {
		case domain.ModeByLesson:
			attempts, err := s.progressRepo.BestAttempts(txCtx, lessonID)
			if err != nil {
				return err
			}
			for i, attempt := range attempts {
				record := &domain.RankingRecord{
					Mode:        mode,
					UserID:      attempt.UserID,
					Rank:        i + 1,
					Score:       attempt.Score,
					Time:        attempt.Time,
					Performance: domain.ComputePerformance(attempt.Score, attempt.Time),
					LessonID:    lessonID,
				}
				if err := s.repo.CreateRecord(txCtx, record); err != nil {
					return err
				}
			}
		case domain.ModeCurrentMonth, domain.ModeCurrentWeek:
			totals, err := s.progressRepo.SumSince(txCtx, periodStart(mode, time.Now().UTC()))
			if err != nil {
				return err
			}
			for i, total := range totals {
				record := &domain.RankingRecord{
					Mode:        mode,
					UserID:      total.UserID,
					Rank:        i + 1,
					Score:       total.TotalScore,
					Time:        total.TotalTime,
					Performance: domain.ComputePerformance(total.TotalScore, total.TotalTime),
				}
				if err := s.repo.CreateRecord(txCtx, record); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return s.wrapStoreError(err)
	}

	s.invalidateLeaderboard(ctx, mode, lessonID)
	logger.Get().Info("Initial backfill completed",
		zap.String("mode", string(mode)),
		zap.String("lesson_id", lessonID))
	return nil
}

// ListRankings implements RankingService
func (s *rankingService) ListRankings(ctx context.Context, mode domain.RankingMode, lessonID string) ([]*domain.RankingRecord, error) {
	if err := validateModeAndLesson(mode, lessonID); err != nil {
		return nil, err
	}
	if !mode.IsStored() {
		return nil, domain.NewInvalidInputError("all_time has no stored records; read it through the leaderboard")
	}
	records, err := s.repo.ListPartition(ctx, mode, lessonID)
	if err != nil {
		return nil, s.wrapStoreError(err)
	}
	return records, nil
}

// GetRanking implements RankingService
func (s *rankingService) GetRanking(ctx context.Context, id string) (*domain.RankingRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.wrapStoreError(err)
	}
	if record == nil {
		return nil, domain.NewNotFoundError("ranking record not found: " + id)
	}
	return record, nil
}

// CreateRanking implements RankingService
func (s *rankingService) CreateRanking(ctx context.Context, record *domain.RankingRecord) error {
	if err := validateModeAndLesson(record.Mode, record.LessonID); err != nil {
		return err
	}
	if !record.Mode.IsStored() {
		return domain.NewInvalidInputError("all_time is computed from user totals and is never materialized")
	}
	if record.UserID == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError("user_id")}
	}
	record.Performance = domain.ComputePerformance(record.Score, record.Time)

	if err := s.repo.CreateRecord(ctx, record); err != nil {
		return s.wrapStoreError(err)
	}
	s.invalidateLeaderboard(ctx, record.Mode, record.LessonID)
	return nil
}

// UpdateRanking implements RankingService
func (s *rankingService) UpdateRanking(ctx context.Context, record *domain.RankingRecord) error {
	if record.ID == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError("id")}
	}
	existing, err := s.GetRanking(ctx, record.ID)
	if err != nil {
		return err
	}
	record.Performance = domain.ComputePerformance(record.Score, record.Time)

	if err := s.repo.UpdateRecord(ctx, record); err != nil {
		return s.wrapStoreError(err)
	}
	s.invalidateLeaderboard(ctx, existing.Mode, existing.LessonID)
	return nil
}

// DeleteRanking implements RankingService
func (s *rankingService) DeleteRanking(ctx context.Context, id string) error {
	// Look the record up first; its partition decides which cached
	// leaderboard pages go stale.
	record, err := s.GetRanking(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRecord(ctx, id); err != nil {
		return s.wrapStoreError(err)
	}
	s.invalidateLeaderboard(ctx, record.Mode, record.LessonID)
	return nil
}

// periodStart returns the beginning of the running period for a live mode.
func periodStart(mode domain.RankingMode, now time.Time) time.Time {
	if mode == domain.ModeCurrentMonth {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	// Week starts Monday 00:00.
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
}

func validateModeAndLesson(mode domain.RankingMode, lessonID string) error {
	if !mode.IsValid() {
		return domain.NewInvalidInputError("unknown ranking mode: " + string(mode))
	}
	if mode.RequiresLesson() && lessonID == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError("lesson_id")}
	}
	return nil
}

func (s *rankingService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.Ranking.DefaultLimit
	}
	if limit > s.cfg.Ranking.MaxLimit {
		return s.cfg.Ranking.MaxLimit
	}
	return limit
}

// wrapStoreError keeps domain errors as-is and marks everything else as a
// storage failure, which is fatal for the current operation and not retried.
func (s *rankingService) wrapStoreError(err error) error {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	var validationErrs domain.ValidationErrors
	if errors.As(err, &validationErrs) {
		return err
	}
	return domain.NewStorageUnavailableError(err)
}

func (s *rankingService) leaderboardCacheKey(mode domain.RankingMode, lessonID string, limit int) string {
	identifier := string(mode)
	if lessonID != "" {
		identifier = string(mode) + ":" + lessonID
	}
	return cache.GenerateCacheKey("ranking", "leaderboard", identifier, strconv.Itoa(limit))
}

func (s *rankingService) leaderboardFromCache(ctx context.Context, key string) ([]*domain.LeaderboardEntry, bool) {
	if s.cache == nil || s.cfg.Ranking.LeaderboardCacheTTL <= 0 {
		return nil, false
	}
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Get().Warn("Leaderboard cache read failed", zap.Error(err), zap.String("key", key))
		}
		return nil, false
	}
	var entries []*domain.LeaderboardEntry
	if err := json.Unmarshal([]byte(cached), &entries); err != nil {
		logger.Get().Warn("Dropping unreadable leaderboard cache entry", zap.Error(err), zap.String("key", key))
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	return entries, true
}

func (s *rankingService) leaderboardToCache(ctx context.Context, key string, entries []*domain.LeaderboardEntry) {
	if s.cache == nil || s.cfg.Ranking.LeaderboardCacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.cfg.Ranking.LeaderboardCacheTTL); err != nil {
		logger.Get().Warn("Leaderboard cache write failed", zap.Error(err), zap.String("key", key))
	}
}

func (s *rankingService) invalidateLeaderboard(ctx context.Context, mode domain.RankingMode, lessonID string) {
	if s.cache == nil {
		return
	}
	pattern := cache.LeaderboardKeyPattern(string(mode), lessonID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		logger.Get().Warn("Leaderboard cache invalidation failed", zap.Error(err), zap.String("pattern", pattern))
	}
}

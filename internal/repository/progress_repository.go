package repository

import (
	"context"
	"fmt"
	"time"

	"learnrank/internal/domain"
	"learnrank/internal/repository/models"
	"learnrank/internal/util"

	"github.com/jmoiron/sqlx"
)

// sqlxProgressRepository implements domain.ProgressRepository using sqlx.
type sqlxProgressRepository struct {
	db *sqlx.DB
}

// NewSQLXProgressRepository creates a new instance of sqlxProgressRepository.
func NewSQLXProgressRepository(db *sqlx.DB) domain.ProgressRepository {
	return &sqlxProgressRepository{db: db}
}

func toDomainProgress(m *models.Progress) *domain.Progress {
	if m == nil {
		return nil
	}
	return &domain.Progress{
		ID:          m.ID,
		UserID:      m.UserID,
		LessonID:    m.LessonID,
		Score:       m.Score,
		Time:        m.TimeSpent,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// CreateProgress appends one raw attempt.
func (r *sqlxProgressRepository) CreateProgress(ctx context.Context, progress *domain.Progress) error {
	exec := GetExecutor(ctx, r.db)

	if progress.ID == "" {
		progress.ID = util.NewULID()
	}
	now := time.Now()
	if progress.CompletedAt.IsZero() {
		progress.CompletedAt = now
	}
	if progress.CreatedAt.IsZero() {
		progress.CreatedAt = now
	}
	progress.UpdatedAt = now

	query := `INSERT INTO progress (ID, USER_ID, LESSON_ID, SCORE, TIME_SPENT, COMPLETED_AT, CREATED_AT, UPDATED_AT)
	          VALUES (:1, :2, :3, :4, :5, :6, :7, :8)`
	_, err := exec.ExecContext(ctx, query,
		progress.ID, progress.UserID, progress.LessonID, progress.Score,
		progress.Time, progress.CompletedAt, progress.CreatedAt, progress.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create progress: %w", err)
	}
	return nil
}

// BestAttempts returns each user's best attempt at the lesson, ordered best
// first. "Best" picks the highest score, breaking ties with the lowest time;
// ROW_NUMBER over that ordering keeps exactly one attempt per user.
func (r *sqlxProgressRepository) BestAttempts(ctx context.Context, lessonID string) ([]*domain.Progress, error) {
	exec := GetExecutor(ctx, r.db)

	var rows []models.Progress
	query := `SELECT ID, USER_ID, LESSON_ID, SCORE, TIME_SPENT, COMPLETED_AT, CREATED_AT, UPDATED_AT FROM (
	              SELECT p.*, ROW_NUMBER() OVER (
	                  PARTITION BY p.USER_ID ORDER BY p.SCORE DESC, p.TIME_SPENT ASC
	              ) AS RN
	              FROM progress p
	              WHERE p.LESSON_ID = :1
	          ) WHERE RN = 1
	          ORDER BY SCORE DESC, TIME_SPENT ASC`
	if err := exec.SelectContext(ctx, &rows, query, lessonID); err != nil {
		return nil, fmt.Errorf("failed to get best attempts for lesson %s: %w", lessonID, err)
	}

	attempts := make([]*domain.Progress, 0, len(rows))
	for i := range rows {
		attempts = append(attempts, toDomainProgress(&rows[i]))
	}
	return attempts, nil
}

// SumSince aggregates score and time per user over attempts completed at or
// after the cutoff, ordered the way a live period partition ranks: score
// descending, then more time first.
func (r *sqlxProgressRepository) SumSince(ctx context.Context, cutoff time.Time) ([]*domain.UserTotals, error) {
	exec := GetExecutor(ctx, r.db)

	var rows []models.UserTotalsRow
	query := `SELECT USER_ID, SUM(SCORE) AS TOTAL_SCORE, SUM(TIME_SPENT) AS TOTAL_TIME
	          FROM progress
	          WHERE COMPLETED_AT >= :1
	          GROUP BY USER_ID
	          ORDER BY TOTAL_SCORE DESC, TOTAL_TIME DESC`
	if err := exec.SelectContext(ctx, &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to sum progress since %s: %w", cutoff, err)
	}

	totals := make([]*domain.UserTotals, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, &domain.UserTotals{
			UserID:     row.UserID,
			TotalScore: row.TotalScore,
			TotalTime:  row.TotalTime,
		})
	}
	return totals, nil
}

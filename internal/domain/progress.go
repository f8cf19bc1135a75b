package domain

import (
	"context"
	"time"
)

// Progress is one raw lesson attempt. Rankings are derived from these rows on
// backfill; steady-state updates never re-read them.
type Progress struct {
	ID          string
	UserID      string
	LessonID    string
	Score       float64
	Time        int64
	CompletedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserTotals is a per-user aggregate over a set of progress rows.
type UserTotals struct {
	UserID     string
	TotalScore float64
	TotalTime  int64
}

// ProgressRepository defines the interface for raw attempt persistence.
type ProgressRepository interface {
	CreateProgress(ctx context.Context, progress *Progress) error

	// BestAttempts returns, for each user that attempted the lesson, the
	// attempt that is maximal under score descending then time ascending,
	// ordered by that same comparator.
	BestAttempts(ctx context.Context, lessonID string) ([]*Progress, error)

	// SumSince aggregates score and time per user over attempts completed at
	// or after the cutoff, ordered by total score descending.
	SumSince(ctx context.Context, cutoff time.Time) ([]*UserTotals, error)
}

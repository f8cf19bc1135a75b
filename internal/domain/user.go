package domain

import (
	"context"
	"time"
)

// User represents a domain user object. TotalScore and TotalTime are the
// lifetime aggregates the all_time ranking is computed from; the engine reads
// them and accumulates into them alongside each completion event.
type User struct {
	ID         string
	Email      string
	FullName   string
	TotalScore float64
	TotalTime  int64
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID string) (*User, error)

	// ListTopScorers returns active users with a positive total score ordered
	// by total score descending, then total time descending. limit <= 0
	// returns all of them.
	ListTopScorers(ctx context.Context, limit int) ([]*User, error)

	// CountRankedAbove counts active users that outrank the given totals:
	// strictly higher score, or equal score with more accumulated time.
	CountRankedAbove(ctx context.Context, score float64, timeSpent int64) (int, error)

	// AccumulateTotals atomically adds the deltas to the user's lifetime
	// score and time.
	AccumulateTotals(ctx context.Context, userID string, scoreDelta float64, timeDelta int64) error
}

package models

import (
	"database/sql"
	"time"
)

// Ranking represents one row of the rankings table: a user's standing within
// a (mode[, lesson]) partition.
type Ranking struct {
	ID          string          `db:"ID"`          // ULID
	Mode        string          `db:"MODE"`        // wire string of the ranking mode
	UserID      string          `db:"USER_ID"`     // Foreign key to users table
	Rank        int             `db:"RANK"`        // 1-based position within the partition
	Score       float64         `db:"SCORE"`       // accumulated or best-attempt score
	TimeSpent   int64           `db:"TIME_SPENT"`  // accumulated or best-attempt seconds
	Performance float64         `db:"PERFORMANCE"` // score/time, recomputed with its inputs
	LessonID    sql.NullString  `db:"LESSON_ID"`   // set only for by_lesson
	CreatedAt   time.Time       `db:"CREATED_AT"`
	UpdatedAt   time.Time       `db:"UPDATED_AT"`
}

// LeaderboardRow is a ranking row joined with user display fields.
type LeaderboardRow struct {
	Rank        int            `db:"RANK"`
	UserID      string         `db:"USER_ID"`
	FullName    sql.NullString `db:"FULL_NAME"`
	Email       string         `db:"EMAIL"`
	Score       float64        `db:"SCORE"`
	TimeSpent   int64          `db:"TIME_SPENT"`
	Performance float64        `db:"PERFORMANCE"`
	LessonID    sql.NullString `db:"LESSON_ID"`
}

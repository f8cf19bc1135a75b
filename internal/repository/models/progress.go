package models

import "time"

// Progress represents one raw lesson attempt; the ranking backfill reads
// these rows, the hot path only appends them.
type Progress struct {
	ID          string    `db:"ID"` // ULID
	UserID      string    `db:"USER_ID"`
	LessonID    string    `db:"LESSON_ID"`
	Score       float64   `db:"SCORE"`
	TimeSpent   int64     `db:"TIME_SPENT"`
	CompletedAt time.Time `db:"COMPLETED_AT"`
	CreatedAt   time.Time `db:"CREATED_AT"`
	UpdatedAt   time.Time `db:"UPDATED_AT"`
}

// UserTotalsRow is a per-user aggregate over progress rows.
type UserTotalsRow struct {
	UserID     string  `db:"USER_ID"`
	TotalScore float64 `db:"TOTAL_SCORE"`
	TotalTime  int64   `db:"TOTAL_TIME"`
}

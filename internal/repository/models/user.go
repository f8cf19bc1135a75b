package models

import (
	"database/sql"
	"time"
)

// User represents a user in the system.
type User struct {
	ID         string         `db:"ID"` // ULID
	Email      string         `db:"EMAIL"`
	FullName   sql.NullString `db:"FULL_NAME"`
	TotalScore float64        `db:"TOTAL_SCORE"` // lifetime accumulated score
	TotalTime  int64          `db:"TOTAL_TIME"`  // lifetime accumulated seconds
	IsActive   bool           `db:"IS_ACTIVE"`
	CreatedAt  time.Time      `db:"CREATED_AT"`
	UpdatedAt  time.Time      `db:"UPDATED_AT"`
	DeletedAt  sql.NullTime   `db:"DELETED_AT"` // soft deletion, if applicable
}

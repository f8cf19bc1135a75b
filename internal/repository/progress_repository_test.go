package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnrank/internal/domain"
)

func setupProgressTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	return sqlxDB, mock
}

func TestCreateProgress_FillsIDAndTimestamps(t *testing.T) {
	db, mock := setupProgressTestDB(t)
	defer db.Close()
	repo := NewSQLXProgressRepository(db)

	mock.ExpectExec(`INSERT INTO progress`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	progress := &domain.Progress{UserID: "user1", LessonID: "lesson1", Score: 70, Time: 120}
	err := repo.CreateProgress(context.Background(), progress)

	require.NoError(t, err)
	assert.Len(t, progress.ID, 26)
	assert.False(t, progress.CompletedAt.IsZero())
	assert.False(t, progress.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBestAttempts_OnePerUser(t *testing.T) {
	db, mock := setupProgressTestDB(t)
	defer db.Close()
	repo := NewSQLXProgressRepository(db)

	now := time.Now()
	columns := []string{"ID", "USER_ID", "LESSON_ID", "SCORE", "TIME_SPENT", "COMPLETED_AT", "CREATED_AT", "UPDATED_AT"}
	rows := sqlmock.NewRows(columns).
		AddRow("p1", "user1", "lesson1", 90.0, int64(100), now, now, now).
		AddRow("p2", "user2", "lesson1", 85.0, int64(80), now, now, now)
	mock.ExpectQuery(`ROW_NUMBER\(\) OVER`).
		WithArgs("lesson1").
		WillReturnRows(rows)

	attempts, err := repo.BestAttempts(context.Background(), "lesson1")

	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "user1", attempts[0].UserID)
	assert.Equal(t, 90.0, attempts[0].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumSince_AggregatesPerUser(t *testing.T) {
	db, mock := setupProgressTestDB(t)
	defer db.Close()
	repo := NewSQLXProgressRepository(db)

	cutoff := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"USER_ID", "TOTAL_SCORE", "TOTAL_TIME"}).
		AddRow("user1", 120.0, int64(600)).
		AddRow("user2", 95.0, int64(400))
	// The ordering must match a live period partition's ranking, including
	// the more-time-first tie-break.
	mock.ExpectQuery(`SELECT USER_ID, SUM\(SCORE\) AS TOTAL_SCORE[\s\S]*ORDER BY TOTAL_SCORE DESC, TOTAL_TIME DESC`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	totals, err := repo.SumSince(context.Background(), cutoff)

	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, 120.0, totals[0].TotalScore)
	assert.Equal(t, int64(600), totals[0].TotalTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

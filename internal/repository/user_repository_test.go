package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"learnrank/internal/domain"
	"learnrank/internal/repository/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupUserTestDB creates a new sqlx.DB instance and sqlmock for user repository testing.
func setupUserTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	return sqlxDB, mock
}

func userColumns() []string {
	return []string{"ID", "EMAIL", "FULL_NAME", "TOTAL_SCORE", "TOTAL_TIME", "IS_ACTIVE", "CREATED_AT", "UPDATED_AT", "DELETED_AT"}
}

// --- Tests for Converter Functions ---

func TestToDomainUser(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	modelUser := &models.User{
		ID:         "user1",
		Email:      "test@example.com",
		FullName:   sql.NullString{String: "Test User", Valid: true},
		TotalScore: 250,
		TotalTime:  3600,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
		DeletedAt:  sql.NullTime{},
	}

	domainUser := toDomainUser(modelUser)
	require.NotNil(t, domainUser)
	assert.Equal(t, modelUser.ID, domainUser.ID)
	assert.Equal(t, modelUser.Email, domainUser.Email)
	assert.Equal(t, "Test User", domainUser.FullName)
	assert.Equal(t, 250.0, domainUser.TotalScore)
	assert.Equal(t, int64(3600), domainUser.TotalTime)
	assert.Nil(t, domainUser.DeletedAt)

	// Null display name maps to empty string.
	modelUser.FullName.Valid = false
	domainUser = toDomainUser(modelUser)
	assert.Equal(t, "", domainUser.FullName)

	assert.Nil(t, toDomainUser(nil))
}

// --- Tests for Repository Methods ---

func TestGetUserByID_Found(t *testing.T) {
	db, mock := setupUserTestDB(t)
	defer db.Close()
	repo := NewSQLXUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userColumns()).
		AddRow("user1", "a@example.com", "User A", 100.0, int64(500), true, now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM users WHERE ID = :1 AND DELETED_AT IS NULL`)).
		WithArgs("user1").
		WillReturnRows(rows)

	user, err := repo.GetUserByID(context.Background(), "user1")

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, 100.0, user.TotalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NotFoundReturnsNil(t *testing.T) {
	db, mock := setupUserTestDB(t)
	defer db.Close()
	repo := NewSQLXUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM users WHERE ID = :1 AND DELETED_AT IS NULL`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.GetUserByID(context.Background(), "ghost")

	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestListTopScorers_WithLimit(t *testing.T) {
	db, mock := setupUserTestDB(t)
	defer db.Close()
	repo := NewSQLXUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userColumns()).
		AddRow("user1", "a@example.com", "User A", 900.0, int64(3600), true, now, now, nil).
		AddRow("user2", "b@example.com", "User B", 700.0, int64(1800), true, now, now, nil)
	mock.ExpectQuery(`SELECT \* FROM users\s+WHERE IS_ACTIVE = 1 AND TOTAL_SCORE > 0 AND DELETED_AT IS NULL\s+ORDER BY TOTAL_SCORE DESC, TOTAL_TIME DESC\s+FETCH FIRST :1 ROWS ONLY`).
		WithArgs(10).
		WillReturnRows(rows)

	users, err := repo.ListTopScorers(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "user1", users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTopScorers_NoLimitReturnsAll(t *testing.T) {
	db, mock := setupUserTestDB(t)
	defer db.Close()
	repo := NewSQLXUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userColumns()).
		AddRow("user1", "a@example.com", "User A", 900.0, int64(3600), true, now, now, nil)
	mock.ExpectQuery(`SELECT \* FROM users\s+WHERE IS_ACTIVE = 1 AND TOTAL_SCORE > 0 AND DELETED_AT IS NULL\s+ORDER BY TOTAL_SCORE DESC, TOTAL_TIME DESC`).
		WillReturnRows(rows)

	users, err := repo.ListTopScorers(context.Background(), 0)

	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCountRankedAbove(t *testing.T) {
	db, mock := setupUserTestDB(t)
	defer db.Close()
	repo := NewSQLXUserRepository(db)

	rows := sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(4)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WithArgs(500.0, 500.0, int64(2000)).
		WillReturnRows(rows)

	count, err := repo.CountRankedAbove(context.Background(), 500, 2000)

	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccumulateTotals_UpdatesInPlace(t *testing.T) {
	db, mock := setupUserTestDB(t)
	defer db.Close()
	repo := NewSQLXUserRepository(db)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs(10.0, int64(300), "user1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AccumulateTotals(context.Background(), "user1", 10, 300)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccumulateTotals_UnknownUser(t *testing.T) {
	db, mock := setupUserTestDB(t)
	defer db.Close()
	repo := NewSQLXUserRepository(db)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs(10.0, int64(300), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AccumulateTotals(context.Background(), "ghost", 10, 300)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.CodeUserNotFound, domainErr.Code)
}

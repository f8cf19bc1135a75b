package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"learnrank/internal/domain"
	"learnrank/internal/repository/models"

	"github.com/jmoiron/sqlx"
)

// sqlxUserRepository implements domain.UserRepository using sqlx.
type sqlxUserRepository struct {
	db *sqlx.DB
}

// NewSQLXUserRepository creates a new instance of sqlxUserRepository.
func NewSQLXUserRepository(db *sqlx.DB) domain.UserRepository {
	return &sqlxUserRepository{db: db}
}

func toDomainUser(m *models.User) *domain.User {
	if m == nil {
		return nil
	}
	u := &domain.User{
		ID:         m.ID,
		Email:      m.Email,
		FullName:   m.FullName.String,
		TotalScore: m.TotalScore,
		TotalTime:  m.TotalTime,
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.DeletedAt.Valid {
		t := m.DeletedAt.Time
		u.DeletedAt = &t
	}
	return u
}

// GetUserByID retrieves a user by their internal ID.
func (r *sqlxUserRepository) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	exec := GetExecutor(ctx, r.db)

	var user models.User
	query := `SELECT * FROM users WHERE ID = :1 AND DELETED_AT IS NULL`
	err := exec.GetContext(ctx, &user, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Return nil, nil for not found, services can handle this
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return toDomainUser(&user), nil
}

// ListTopScorers returns active users with a positive lifetime score, best
// standing first: total score descending, then total time descending (at
// equal score, more accumulated time means more effort and ranks higher).
func (r *sqlxUserRepository) ListTopScorers(ctx context.Context, limit int) ([]*domain.User, error) {
	exec := GetExecutor(ctx, r.db)

	var rows []models.User
	var err error
	if limit > 0 {
		query := `SELECT * FROM users
		          WHERE IS_ACTIVE = 1 AND TOTAL_SCORE > 0 AND DELETED_AT IS NULL
		          ORDER BY TOTAL_SCORE DESC, TOTAL_TIME DESC
		          FETCH FIRST :1 ROWS ONLY`
		err = exec.SelectContext(ctx, &rows, query, limit)
	} else {
		query := `SELECT * FROM users
		          WHERE IS_ACTIVE = 1 AND TOTAL_SCORE > 0 AND DELETED_AT IS NULL
		          ORDER BY TOTAL_SCORE DESC, TOTAL_TIME DESC`
		err = exec.SelectContext(ctx, &rows, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list top scorers: %w", err)
	}

	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, toDomainUser(&rows[i]))
	}
	return users, nil
}

// CountRankedAbove counts active users outranking the given totals.
func (r *sqlxUserRepository) CountRankedAbove(ctx context.Context, score float64, timeSpent int64) (int, error) {
	exec := GetExecutor(ctx, r.db)

	var count int
	query := `SELECT COUNT(*) FROM users
	          WHERE IS_ACTIVE = 1 AND TOTAL_SCORE > 0 AND DELETED_AT IS NULL
	          AND (TOTAL_SCORE > :1 OR (TOTAL_SCORE = :2 AND TOTAL_TIME > :3))`
	if err := exec.GetContext(ctx, &count, query, score, score, timeSpent); err != nil {
		return 0, fmt.Errorf("failed to count users ranked above: %w", err)
	}
	return count, nil
}

// AccumulateTotals atomically adds the deltas to the user's lifetime totals.
// The addition happens inside the database so concurrent completions for the
// same user cannot lose an update.
func (r *sqlxUserRepository) AccumulateTotals(ctx context.Context, userID string, scoreDelta float64, timeDelta int64) error {
	exec := GetExecutor(ctx, r.db)

	query := `UPDATE users SET
	              TOTAL_SCORE = TOTAL_SCORE + :1,
	              TOTAL_TIME = TOTAL_TIME + :2,
	              UPDATED_AT = SYSTIMESTAMP
	          WHERE ID = :3 AND DELETED_AT IS NULL`
	result, err := exec.ExecContext(ctx, query, scoreDelta, timeDelta, userID)
	if err != nil {
		return fmt.Errorf("failed to accumulate totals for user %s: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check accumulate result: %w", err)
	}
	if affected == 0 {
		return domain.NewUserNotFoundError(userID)
	}
	return nil
}

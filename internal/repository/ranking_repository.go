package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnrank/internal/domain"
	"learnrank/internal/repository/models"
	"learnrank/internal/util"

	"github.com/jmoiron/sqlx"
)

// isSerializationConflict reports whether the error is an Oracle deadlock,
// serialization failure, or unique-constraint violation, the cases worth
// retrying a contended update for. ORA-00001 covers the lazy-create race:
// two first events for the same (mode, user) can both take a MERGE's
// NOT MATCHED branch, and the loser's retry lands on the MATCHED branch.
func isSerializationConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "ORA-00060") ||
		strings.Contains(msg, "ORA-08177") ||
		strings.Contains(msg, "ORA-00001")
}

// sqlxRankingRepository implements domain.RankingRepository using sqlx.
//
// Accumulation and best-attempt keeping are single MERGE statements, so the
// read-modify-write on a contended record happens inside the database and two
// concurrent events for the same user cannot lose an update.
type sqlxRankingRepository struct {
	db *sqlx.DB
}

// NewSQLXRankingRepository creates a new instance of sqlxRankingRepository.
func NewSQLXRankingRepository(db *sqlx.DB) domain.RankingRepository {
	return &sqlxRankingRepository{db: db}
}

func toDomainRanking(m *models.Ranking) *domain.RankingRecord {
	if m == nil {
		return nil
	}
	return &domain.RankingRecord{
		ID:          m.ID,
		Mode:        domain.RankingMode(m.Mode),
		UserID:      m.UserID,
		Rank:        m.Rank,
		Score:       m.Score,
		Time:        m.TimeSpent,
		Performance: m.Performance,
		LessonID:    m.LessonID.String,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func fromDomainRanking(r *domain.RankingRecord) *models.Ranking {
	if r == nil {
		return nil
	}
	return &models.Ranking{
		ID:          r.ID,
		Mode:        string(r.Mode),
		UserID:      r.UserID,
		Rank:        r.Rank,
		Score:       r.Score,
		TimeSpent:   r.Time,
		Performance: r.Performance,
		LessonID:    util.StringToNullString(r.LessonID),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// GetByKey point-looks-up the record for (mode, user[, lesson]).
func (r *sqlxRankingRepository) GetByKey(ctx context.Context, mode domain.RankingMode, userID, lessonID string) (*domain.RankingRecord, error) {
	exec := GetExecutor(ctx, r.db)

	var row models.Ranking
	var err error
	if lessonID != "" {
		query := `SELECT * FROM rankings WHERE MODE = :1 AND USER_ID = :2 AND LESSON_ID = :3`
		err = exec.GetContext(ctx, &row, query, string(mode), userID, lessonID)
	} else {
		query := `SELECT * FROM rankings WHERE MODE = :1 AND USER_ID = :2 AND LESSON_ID IS NULL`
		err = exec.GetContext(ctx, &row, query, string(mode), userID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found is a normal case, services decide what it means
		}
		return nil, fmt.Errorf("failed to get ranking by key: %w", err)
	}
	return toDomainRanking(&row), nil
}

// ListPartition returns every record of the (mode[, lesson]) partition
// ordered by stored rank.
func (r *sqlxRankingRepository) ListPartition(ctx context.Context, mode domain.RankingMode, lessonID string) ([]*domain.RankingRecord, error) {
	exec := GetExecutor(ctx, r.db)

	var rows []models.Ranking
	var err error
	if lessonID != "" {
		query := `SELECT * FROM rankings WHERE MODE = :1 AND LESSON_ID = :2 ORDER BY RANK ASC`
		err = exec.SelectContext(ctx, &rows, query, string(mode), lessonID)
	} else {
		query := `SELECT * FROM rankings WHERE MODE = :1 ORDER BY RANK ASC`
		err = exec.SelectContext(ctx, &rows, query, string(mode))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list ranking partition: %w", err)
	}

	records := make([]*domain.RankingRecord, 0, len(rows))
	for i := range rows {
		records = append(records, toDomainRanking(&rows[i]))
	}
	return records, nil
}

// ListLeaderboard returns the top limit records of the partition ordered by
// stored rank, joined with the owning user's display fields.
func (r *sqlxRankingRepository) ListLeaderboard(ctx context.Context, mode domain.RankingMode, lessonID string, limit int) ([]*domain.LeaderboardEntry, error) {
	exec := GetExecutor(ctx, r.db)

	var rows []models.LeaderboardRow
	var err error
	if lessonID != "" {
		query := `SELECT r.RANK, r.USER_ID, u.FULL_NAME, u.EMAIL, r.SCORE, r.TIME_SPENT, r.PERFORMANCE, r.LESSON_ID
		          FROM rankings r JOIN users u ON r.USER_ID = u.ID
		          WHERE r.MODE = :1 AND r.LESSON_ID = :2
		          ORDER BY r.RANK ASC
		          FETCH FIRST :3 ROWS ONLY`
		err = exec.SelectContext(ctx, &rows, query, string(mode), lessonID, limit)
	} else {
		query := `SELECT r.RANK, r.USER_ID, u.FULL_NAME, u.EMAIL, r.SCORE, r.TIME_SPENT, r.PERFORMANCE, r.LESSON_ID
		          FROM rankings r JOIN users u ON r.USER_ID = u.ID
		          WHERE r.MODE = :1
		          ORDER BY r.RANK ASC
		          FETCH FIRST :2 ROWS ONLY`
		err = exec.SelectContext(ctx, &rows, query, string(mode), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}

	entries := make([]*domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &domain.LeaderboardEntry{
			Rank:        row.Rank,
			UserID:      row.UserID,
			FullName:    row.FullName.String,
			Email:       row.Email,
			Score:       row.Score,
			Time:        row.TimeSpent,
			Performance: row.Performance,
			LessonID:    row.LessonID.String,
		})
	}
	return entries, nil
}

// AccumulateUpsert adds the deltas to the (mode, user) record, creating it
// with the provisional rank when absent. Insert-or-update is one MERGE;
// performance is recomputed from the post-update score and time in the same
// statement so it can never drift from its inputs.
func (r *sqlxRankingRepository) AccumulateUpsert(ctx context.Context, mode domain.RankingMode, userID string, scoreDelta float64, timeDelta int64) error {
	exec := GetExecutor(ctx, r.db)

	query := `MERGE INTO rankings r
	          USING (SELECT :1 AS MODE, :2 AS USER_ID FROM dual) src
	          ON (r.MODE = src.MODE AND r.USER_ID = src.USER_ID AND r.LESSON_ID IS NULL)
	          WHEN MATCHED THEN UPDATE SET
	              r.SCORE = r.SCORE + :3,
	              r.TIME_SPENT = r.TIME_SPENT + :4,
	              r.PERFORMANCE = CASE WHEN r.TIME_SPENT + :5 > 0
	                                   THEN (r.SCORE + :6) / (r.TIME_SPENT + :7)
	                                   ELSE 0 END,
	              r.UPDATED_AT = SYSTIMESTAMP
	          WHEN NOT MATCHED THEN INSERT
	              (ID, MODE, USER_ID, RANK, SCORE, TIME_SPENT, PERFORMANCE, LESSON_ID, CREATED_AT, UPDATED_AT)
	              VALUES (:8, src.MODE, src.USER_ID, :9, :10, :11, :12, NULL, SYSTIMESTAMP, SYSTIMESTAMP)`

	_, err := exec.ExecContext(ctx, query,
		string(mode), userID,
		scoreDelta, timeDelta, timeDelta, scoreDelta, timeDelta,
		util.NewULID(), domain.ProvisionalRank, scoreDelta, timeDelta,
		domain.ComputePerformance(scoreDelta, timeDelta),
	)
	if err != nil {
		if isSerializationConflict(err) {
			return domain.NewConcurrencyConflictError(err)
		}
		return fmt.Errorf("failed to accumulate ranking for user %s in mode %s: %w", userID, mode, err)
	}
	return nil
}

// BestAttemptUpsert keeps the best attempt for (by_lesson, user, lesson). The
// MERGE's update guard is the storage-side mirror of domain.IsBetterAttempt:
// the stored score/time are replaced only when the new attempt has a strictly
// higher score, or an equal score with a strictly lower time.
func (r *sqlxRankingRepository) BestAttemptUpsert(ctx context.Context, userID, lessonID string, score float64, timeSpent int64) error {
	exec := GetExecutor(ctx, r.db)

	query := `MERGE INTO rankings r
	          USING (SELECT :1 AS USER_ID, :2 AS LESSON_ID FROM dual) src
	          ON (r.MODE = 'by_lesson' AND r.USER_ID = src.USER_ID AND r.LESSON_ID = src.LESSON_ID)
	          WHEN MATCHED THEN UPDATE SET
	              r.SCORE = :3,
	              r.TIME_SPENT = :4,
	              r.PERFORMANCE = :5,
	              r.UPDATED_AT = SYSTIMESTAMP
	              WHERE :6 > r.SCORE OR (:7 = r.SCORE AND :8 < r.TIME_SPENT)
	          WHEN NOT MATCHED THEN INSERT
	              (ID, MODE, USER_ID, RANK, SCORE, TIME_SPENT, PERFORMANCE, LESSON_ID, CREATED_AT, UPDATED_AT)
	              VALUES (:9, 'by_lesson', src.USER_ID, :10, :11, :12, :13, src.LESSON_ID, SYSTIMESTAMP, SYSTIMESTAMP)`

	perf := domain.ComputePerformance(score, timeSpent)
	_, err := exec.ExecContext(ctx, query,
		userID, lessonID,
		score, timeSpent, perf,
		score, score, timeSpent,
		util.NewULID(), domain.ProvisionalRank, score, timeSpent, perf,
	)
	if err != nil {
		if isSerializationConflict(err) {
			return domain.NewConcurrencyConflictError(err)
		}
		return fmt.Errorf("failed to upsert best attempt for user %s on lesson %s: %w", userID, lessonID, err)
	}
	return nil
}

// CreateRecord inserts a fully specified ranking row (backfill path).
func (r *sqlxRankingRepository) CreateRecord(ctx context.Context, record *domain.RankingRecord) error {
	if record.Mode.RequiresLesson() != (record.LessonID != "") {
		return domain.NewInvalidInputError("lesson_id must be set exactly for by_lesson records")
	}

	exec := GetExecutor(ctx, r.db)
	row := fromDomainRanking(record)
	if row.ID == "" {
		row.ID = util.NewULID()
		record.ID = row.ID
	}
	now := time.Now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	query := `INSERT INTO rankings (ID, MODE, USER_ID, RANK, SCORE, TIME_SPENT, PERFORMANCE, LESSON_ID, CREATED_AT, UPDATED_AT)
	          VALUES (:1, :2, :3, :4, :5, :6, :7, :8, :9, :10)`

	_, err := exec.ExecContext(ctx, query,
		row.ID, row.Mode, row.UserID, row.Rank, row.Score, row.TimeSpent,
		row.Performance, row.LessonID, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ranking record: %w", err)
	}
	return nil
}

// GetByID point-looks-up a record by its ID.
func (r *sqlxRankingRepository) GetByID(ctx context.Context, id string) (*domain.RankingRecord, error) {
	exec := GetExecutor(ctx, r.db)

	var row models.Ranking
	err := exec.GetContext(ctx, &row, `SELECT * FROM rankings WHERE ID = :1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ranking by id: %w", err)
	}
	return toDomainRanking(&row), nil
}

// UpdateRecord overwrites the mutable fields of an existing record. Mode,
// user and lesson are the record's identity and stay fixed.
func (r *sqlxRankingRepository) UpdateRecord(ctx context.Context, record *domain.RankingRecord) error {
	exec := GetExecutor(ctx, r.db)

	query := `UPDATE rankings SET RANK = :1, SCORE = :2, TIME_SPENT = :3, PERFORMANCE = :4, UPDATED_AT = SYSTIMESTAMP
	          WHERE ID = :5`
	result, err := exec.ExecContext(ctx, query,
		record.Rank, record.Score, record.Time, record.Performance, record.ID)
	if err != nil {
		return fmt.Errorf("failed to update ranking record %s: %w", record.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("ranking record not found: %s", record.ID))
	}
	return nil
}

// DeleteRecord removes one record by ID.
func (r *sqlxRankingRepository) DeleteRecord(ctx context.Context, id string) error {
	exec := GetExecutor(ctx, r.db)

	result, err := exec.ExecContext(ctx, `DELETE FROM rankings WHERE ID = :1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ranking record %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted rows: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("ranking record not found: %s", id))
	}
	return nil
}

// UpdateRanks writes new rank values for the given record IDs.
func (r *sqlxRankingRepository) UpdateRanks(ctx context.Context, ranks map[string]int) error {
	exec := GetExecutor(ctx, r.db)

	query := `UPDATE rankings SET RANK = :1, UPDATED_AT = SYSTIMESTAMP WHERE ID = :2`
	for id, rank := range ranks {
		if _, err := exec.ExecContext(ctx, query, rank, id); err != nil {
			return fmt.Errorf("failed to update rank for record %s: %w", id, err)
		}
	}
	return nil
}

// RelabelPartition bulk-updates every record in fromMode to toMode.
func (r *sqlxRankingRepository) RelabelPartition(ctx context.Context, fromMode, toMode domain.RankingMode) (int64, error) {
	exec := GetExecutor(ctx, r.db)

	query := `UPDATE rankings SET MODE = :1, UPDATED_AT = SYSTIMESTAMP WHERE MODE = :2`
	result, err := exec.ExecContext(ctx, query, string(toMode), string(fromMode))
	if err != nil {
		return 0, fmt.Errorf("failed to relabel partition %s to %s: %w", fromMode, toMode, err)
	}
	relabeled, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count relabeled rows: %w", err)
	}
	return relabeled, nil
}

// DeletePartition bulk-deletes the (mode[, lesson]) partition.
func (r *sqlxRankingRepository) DeletePartition(ctx context.Context, mode domain.RankingMode, lessonID string) (int64, error) {
	exec := GetExecutor(ctx, r.db)

	var result sql.Result
	var err error
	if lessonID != "" {
		result, err = exec.ExecContext(ctx, `DELETE FROM rankings WHERE MODE = :1 AND LESSON_ID = :2`, string(mode), lessonID)
	} else {
		result, err = exec.ExecContext(ctx, `DELETE FROM rankings WHERE MODE = :1`, string(mode))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete partition %s: %w", mode, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return deleted, nil
}

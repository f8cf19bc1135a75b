package domain

import "context"

// RankingRepository defines the interface (port) for the ranking record
// store. Nothing above the repository mutates rows outside these operations.
type RankingRepository interface {
	// GetByKey point-looks-up the record for (mode, user[, lesson]).
	// Returns nil, nil when no record exists.
	GetByKey(ctx context.Context, mode RankingMode, userID, lessonID string) (*RankingRecord, error)

	// ListPartition returns every record in the (mode[, lesson]) partition
	// ordered by stored rank ascending.
	ListPartition(ctx context.Context, mode RankingMode, lessonID string) ([]*RankingRecord, error)

	// ListLeaderboard returns the top limit records of the partition ordered
	// by stored rank, joined with user display fields.
	ListLeaderboard(ctx context.Context, mode RankingMode, lessonID string, limit int) ([]*LeaderboardEntry, error)

	// AccumulateUpsert adds the deltas to the record for (mode, user),
	// creating it with ProvisionalRank when absent. Insert-or-update happens
	// in a single atomic storage operation; performance is recomputed in the
	// same statement.
	AccumulateUpsert(ctx context.Context, mode RankingMode, userID string, scoreDelta float64, timeDelta int64) error

	// BestAttemptUpsert keeps the best attempt for (by_lesson, user, lesson):
	// the stored score/time are replaced only when the new attempt has a
	// strictly higher score, or an equal score with a strictly lower time.
	// Creation uses ProvisionalRank. Atomic like AccumulateUpsert.
	BestAttemptUpsert(ctx context.Context, userID, lessonID string, score float64, timeSpent int64) error

	// CreateRecord inserts a fully specified record (backfill and admin paths).
	CreateRecord(ctx context.Context, record *RankingRecord) error

	// GetByID point-looks-up a record by its ID. Returns nil, nil when absent.
	GetByID(ctx context.Context, id string) (*RankingRecord, error)

	// UpdateRecord overwrites the mutable fields (rank, score, time,
	// performance) of an existing record.
	UpdateRecord(ctx context.Context, record *RankingRecord) error

	// DeleteRecord removes one record by ID.
	DeleteRecord(ctx context.Context, id string) error

	// UpdateRanks writes new rank values for the given record IDs.
	UpdateRanks(ctx context.Context, ranks map[string]int) error

	// RelabelPartition bulk-updates every record in fromMode to toMode and
	// returns the number of rows touched.
	RelabelPartition(ctx context.Context, fromMode, toMode RankingMode) (int64, error)

	// DeletePartition bulk-deletes the (mode[, lesson]) partition and returns
	// the number of rows removed.
	DeletePartition(ctx context.Context, mode RankingMode, lessonID string) (int64, error)
}

// TransactionManager runs a function within a storage transaction. If the
// context already carries a transaction the function joins it, so nested
// multi-repository steps commit or roll back as one unit.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

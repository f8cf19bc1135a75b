package domain

import (
	"fmt"
	"time"
)

// RankingMode identifies one ranking view/partition. The string value is the
// stable wire and storage format; never derive it from an identifier name.
type RankingMode string

const (
	ModeAllTime      RankingMode = "all_time"
	ModeCurrentMonth RankingMode = "current_month"
	ModeLastMonth    RankingMode = "last_month"
	ModeCurrentWeek  RankingMode = "current_week"
	ModeLastWeek     RankingMode = "last_week"
	ModeByLesson     RankingMode = "by_lesson"
)

// ProvisionalRank is assigned to a freshly created record so it never shows up
// as a false top position before the next re-rank pass.
const ProvisionalRank = 999999

// ParseRankingMode converts a wire string into a RankingMode.
func ParseRankingMode(s string) (RankingMode, error) {
	switch m := RankingMode(s); m {
	case ModeAllTime, ModeCurrentMonth, ModeLastMonth, ModeCurrentWeek, ModeLastWeek, ModeByLesson:
		return m, nil
	default:
		return "", fmt.Errorf("unknown ranking mode: %q", s)
	}
}

// IsValid reports whether m is one of the six known modes.
func (m RankingMode) IsValid() bool {
	_, err := ParseRankingMode(string(m))
	return err == nil
}

// IsStored reports whether records for this mode live in the ranking store.
// all_time is computed on demand from user totals and never materialized.
func (m RankingMode) IsStored() bool {
	return m != ModeAllTime
}

// RequiresLesson reports whether the mode partitions per lesson.
func (m RankingMode) RequiresLesson() bool {
	return m == ModeByLesson
}

// RankingRecord is one user's standing within a (mode[, lesson]) partition.
type RankingRecord struct {
	ID          string
	Mode        RankingMode
	UserID      string
	Rank        int
	Score       float64
	Time        int64 // accumulated or best-attempt seconds
	Performance float64
	LessonID    string // set iff Mode == by_lesson
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ComputePerformance derives the performance value from score and time.
// It is recomputed on every score/time change and never stored independently.
func ComputePerformance(score float64, timeSpent int64) float64 {
	if timeSpent > 0 {
		return score / float64(timeSpent)
	}
	return 0
}

// IsBetterAttempt reports whether a new attempt replaces the stored best for
// a lesson: a strictly higher score always wins, and an equal score wins only
// with a strictly lower time. The best-attempt MERGE's update guard mirrors
// this predicate.
func IsBetterAttempt(newScore float64, newTime int64, oldScore float64, oldTime int64) bool {
	if newScore != oldScore {
		return newScore > oldScore
	}
	return newTime < oldTime
}

// CompletionEvent is the "lesson completed" business event the engine reacts
// to. LessonID may be empty for completions that are not lesson-scoped.
type CompletionEvent struct {
	UserID     string
	ScoreDelta float64
	TimeDelta  int64
	LessonID   string
}

// Validate rejects structurally invalid events before any store access.
func (e CompletionEvent) Validate() error {
	var errs ValidationErrors
	if e.UserID == "" {
		errs = append(errs, NewMissingFieldError("user_id"))
	}
	if e.ScoreDelta < 0 {
		errs = append(errs, ValidationError{Field: "score_delta", Message: "must be non-negative"})
	}
	if e.TimeDelta < 0 {
		errs = append(errs, ValidationError{Field: "time_delta", Message: "must be non-negative"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// LeaderboardEntry is one row of a leaderboard, joined with user display
// fields. For all_time the rank is positional, not stored.
type LeaderboardEntry struct {
	Rank        int
	UserID      string
	FullName    string
	Email       string
	Score       float64
	Time        int64
	Performance float64
	LessonID    string
}

// UserRank is a single user's standing in one mode. For all_time it is
// computed from user totals; for stored modes it mirrors the RankingRecord.
type UserRank struct {
	Mode        RankingMode
	UserID      string
	Rank        int
	Score       float64
	Time        int64
	Performance float64
	LessonID    string
}

// FlipResult reports what a period rollover touched.
type FlipResult struct {
	Deleted   int64
	Relabeled int64
}

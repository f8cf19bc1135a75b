package dto

// LeaderboardEntryResponse represents one leaderboard row in the API response
// @Description One ranked user within a leaderboard
type LeaderboardEntryResponse struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	FullName    string  `json:"full_name,omitempty"`
	Email       string  `json:"email"`
	Score       float64 `json:"score"`
	Time        int64   `json:"time"`
	Performance float64 `json:"performance"`
	LessonID    string  `json:"lesson_id,omitempty"`
}

// LeaderboardResponse represents a leaderboard page in the API response
type LeaderboardResponse struct {
	Mode     string                     `json:"mode"`
	LessonID string                     `json:"lesson_id,omitempty"`
	Entries  []LeaderboardEntryResponse `json:"entries"`
}

// UserRankResponse represents a single user's standing in the API response
type UserRankResponse struct {
	Mode        string  `json:"mode"`
	UserID      string  `json:"user_id"`
	Rank        int     `json:"rank"`
	Score       float64 `json:"score"`
	Time        int64   `json:"time"`
	Performance float64 `json:"performance"`
	LessonID    string  `json:"lesson_id,omitempty"`
}

// FlipResponse reports what a period rollover touched
type FlipResponse struct {
	Deleted   int64  `json:"deleted"`
	Relabeled int64  `json:"relabeled"`
	Message   string `json:"message"`
}

// CompletionRequest is the "lesson completed" event ingested by the API
// @Description Request body for reporting a completed lesson
type CompletionRequest struct {
	UserID     string  `json:"user_id"`
	LessonID   string  `json:"lesson_id"`
	ScoreDelta float64 `json:"score_delta"`
	TimeDelta  int64   `json:"time_delta"`
}

// BackfillRequest asks for a one-time repopulation of a ranking mode
type BackfillRequest struct {
	Mode     string `json:"mode"`
	LessonID string `json:"lesson_id,omitempty"`
}

// RankingRecordRequest is the admin payload for creating or overriding a
// ranking row. Performance is always recomputed server-side.
type RankingRecordRequest struct {
	Mode     string  `json:"mode"`
	UserID   string  `json:"user_id"`
	Rank     int     `json:"rank"`
	Score    float64 `json:"score"`
	Time     int64   `json:"time"`
	LessonID string  `json:"lesson_id,omitempty"`
}

// RankingRecordResponse represents one raw ranking row in the admin API
type RankingRecordResponse struct {
	ID          string  `json:"id"`
	Mode        string  `json:"mode"`
	UserID      string  `json:"user_id"`
	Rank        int     `json:"rank"`
	Score       float64 `json:"score"`
	Time        int64   `json:"time"`
	Performance float64 `json:"performance"`
	LessonID    string  `json:"lesson_id,omitempty"`
}

// ErrorResponse represents an error in the API response
type ErrorResponse struct {
	Error string `json:"error"`
}

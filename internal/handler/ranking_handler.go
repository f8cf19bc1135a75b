package handler

import (
	"learnrank/internal/domain"
	"learnrank/internal/dto"
	"learnrank/internal/logger"
	"learnrank/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RankingHandler handles leaderboard and rollover HTTP requests
type RankingHandler struct {
	service service.RankingService
}

// NewRankingHandler creates a new RankingHandler instance
func NewRankingHandler(service service.RankingService) *RankingHandler {
	return &RankingHandler{
		service: service,
	}
}

// GetLeaderboard handles GET /api/rankings/leaderboard
func (h *RankingHandler) GetLeaderboard(c *fiber.Ctx) error {
	mode, err := domain.ParseRankingMode(c.Query("mode", string(domain.ModeAllTime)))
	if err != nil {
		return domain.NewInvalidInputError(err.Error())
	}
	lessonID := c.Query("lesson_id")
	limit := c.QueryInt("limit")

	entries, err := h.service.GetLeaderboard(c.Context(), mode, lessonID, limit)
	if err != nil {
		return err
	}

	response := dto.LeaderboardResponse{
		Mode:     string(mode),
		LessonID: lessonID,
		Entries:  make([]dto.LeaderboardEntryResponse, 0, len(entries)),
	}
	for _, entry := range entries {
		response.Entries = append(response.Entries, dto.LeaderboardEntryResponse{
			Rank:        entry.Rank,
			UserID:      entry.UserID,
			FullName:    entry.FullName,
			Email:       entry.Email,
			Score:       entry.Score,
			Time:        entry.Time,
			Performance: entry.Performance,
			LessonID:    entry.LessonID,
		})
	}
	return c.JSON(response)
}

// GetUserRank handles GET /api/rankings/users/:user_id
func (h *RankingHandler) GetUserRank(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError("user_id")}
	}
	mode, err := domain.ParseRankingMode(c.Query("mode", string(domain.ModeAllTime)))
	if err != nil {
		return domain.NewInvalidInputError(err.Error())
	}
	lessonID := c.Query("lesson_id")

	rank, err := h.service.GetUserRank(c.Context(), userID, mode, lessonID)
	if err != nil {
		return err
	}

	return c.JSON(dto.UserRankResponse{
		Mode:        string(rank.Mode),
		UserID:      rank.UserID,
		Rank:        rank.Rank,
		Score:       rank.Score,
		Time:        rank.Time,
		Performance: rank.Performance,
		LessonID:    rank.LessonID,
	})
}

// FlipWeek handles POST /api/rankings/flip-week
func (h *RankingHandler) FlipWeek(c *fiber.Ctx) error {
	result, err := h.service.FlipWeek(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(dto.FlipResponse{
		Deleted:   result.Deleted,
		Relabeled: result.Relabeled,
		Message:   "current_week frozen into last_week",
	})
}

// FlipMonth handles POST /api/rankings/flip-month
func (h *RankingHandler) FlipMonth(c *fiber.Ctx) error {
	result, err := h.service.FlipMonth(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(dto.FlipResponse{
		Deleted:   result.Deleted,
		Relabeled: result.Relabeled,
		Message:   "current_month frozen into last_month",
	})
}

// ListRankings handles GET /api/admin/rankings
func (h *RankingHandler) ListRankings(c *fiber.Ctx) error {
	mode, err := domain.ParseRankingMode(c.Query("mode"))
	if err != nil {
		return domain.NewInvalidInputError(err.Error())
	}
	records, err := h.service.ListRankings(c.Context(), mode, c.Query("lesson_id"))
	if err != nil {
		return err
	}

	response := make([]dto.RankingRecordResponse, 0, len(records))
	for _, record := range records {
		response = append(response, toRankingRecordResponse(record))
	}
	return c.JSON(response)
}

// GetRanking handles GET /api/admin/rankings/:id
func (h *RankingHandler) GetRanking(c *fiber.Ctx) error {
	record, err := h.service.GetRanking(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toRankingRecordResponse(record))
}

// CreateRanking handles POST /api/admin/rankings
func (h *RankingHandler) CreateRanking(c *fiber.Ctx) error {
	record, err := parseRankingRecordBody(c)
	if err != nil {
		return err
	}
	if err := h.service.CreateRanking(c.Context(), record); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toRankingRecordResponse(record))
}

// UpdateRanking handles PUT /api/admin/rankings/:id
func (h *RankingHandler) UpdateRanking(c *fiber.Ctx) error {
	record, err := parseRankingRecordBody(c)
	if err != nil {
		return err
	}
	record.ID = c.Params("id")
	if err := h.service.UpdateRanking(c.Context(), record); err != nil {
		return err
	}
	return c.JSON(toRankingRecordResponse(record))
}

// DeleteRanking handles DELETE /api/admin/rankings/:id
func (h *RankingHandler) DeleteRanking(c *fiber.Ctx) error {
	if err := h.service.DeleteRanking(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseRankingRecordBody(c *fiber.Ctx) (*domain.RankingRecord, error) {
	var req dto.RankingRecordRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Get().Warn("Failed to parse ranking record request", zap.Error(err))
		return nil, domain.NewInvalidInputError("invalid request body")
	}
	mode, err := domain.ParseRankingMode(req.Mode)
	if err != nil {
		return nil, domain.NewInvalidInputError(err.Error())
	}
	return &domain.RankingRecord{
		Mode:     mode,
		UserID:   req.UserID,
		Rank:     req.Rank,
		Score:    req.Score,
		Time:     req.Time,
		LessonID: req.LessonID,
	}, nil
}

func toRankingRecordResponse(record *domain.RankingRecord) dto.RankingRecordResponse {
	return dto.RankingRecordResponse{
		ID:          record.ID,
		Mode:        string(record.Mode),
		UserID:      record.UserID,
		Rank:        record.Rank,
		Score:       record.Score,
		Time:        record.Time,
		Performance: record.Performance,
		LessonID:    record.LessonID,
	}
}

// Backfill handles POST /api/rankings/backfill
func (h *RankingHandler) Backfill(c *fiber.Ctx) error {
	var req dto.BackfillRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Get().Warn("Failed to parse backfill request", zap.Error(err))
		return domain.NewInvalidInputError("invalid request body")
	}

	mode, err := domain.ParseRankingMode(req.Mode)
	if err != nil {
		return domain.NewInvalidInputError(err.Error())
	}
	if err := h.service.InitialBackfill(c.Context(), mode, req.LessonID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "backfill completed",
		"mode":    string(mode),
	})
}

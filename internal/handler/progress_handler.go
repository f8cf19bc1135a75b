package handler

import (
	"learnrank/internal/domain"
	"learnrank/internal/dto"
	"learnrank/internal/logger"
	"learnrank/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProgressHandler ingests lesson completion events
type ProgressHandler struct {
	service service.CompletionService
}

// NewProgressHandler creates a new ProgressHandler instance
func NewProgressHandler(service service.CompletionService) *ProgressHandler {
	return &ProgressHandler{
		service: service,
	}
}

// RecordCompletion handles POST /api/progress
func (h *ProgressHandler) RecordCompletion(c *fiber.Ctx) error {
	var req dto.CompletionRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Get().Warn("Failed to parse completion request", zap.Error(err))
		return domain.NewInvalidInputError("invalid request body")
	}

	event := domain.CompletionEvent{
		UserID:     req.UserID,
		LessonID:   req.LessonID,
		ScoreDelta: req.ScoreDelta,
		TimeDelta:  req.TimeDelta,
	}
	if err := h.service.RecordCompletion(c.Context(), event); err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "completion recorded",
	})
}

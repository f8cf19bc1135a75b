package middleware

import (
	"learnrank/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateUserIDParam validates the user_id path parameter
func (vm *ValidationMiddleware) ValidateUserIDParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("user_id")

		if errors := vm.validator.ValidateUserID(userID); len(errors) > 0 {
			return errors // This will be handled by ErrorHandler middleware
		}

		return c.Next()
	}
}

// ValidateLeaderboardParams validates leaderboard query parameters
func (vm *ValidationMiddleware) ValidateLeaderboardParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lessonID := c.Query("lesson_id")
		limit := c.QueryInt("limit")

		if errors := vm.validator.ValidateLeaderboardParams(lessonID, limit); len(errors) > 0 {
			return errors
		}

		return c.Next()
	}
}

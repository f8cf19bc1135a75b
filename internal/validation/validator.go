package validation

import (
	"regexp"
	"strings"

	"learnrank/internal/domain"
)

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUserID validates a user identifier path/query parameter.
func (v *Validator) ValidateUserID(userID string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(userID) == "" {
		errors = append(errors, domain.NewMissingFieldError("user_id"))
	} else if !isValidULID(userID) {
		errors = append(errors, domain.NewInvalidFormatError("user_id", userID))
	}

	return errors
}

// ValidateLessonID validates a lesson identifier. An empty lesson is fine for
// modes that do not partition per lesson; mode/lesson consistency is a
// service concern.
func (v *Validator) ValidateLessonID(lessonID string) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if lessonID != "" && !isValidULID(lessonID) {
		errors = append(errors, domain.NewInvalidFormatError("lesson_id", lessonID))
	}

	return errors
}

// ValidateLeaderboardParams validates leaderboard query parameters.
func (v *Validator) ValidateLeaderboardParams(lessonID string, limit int) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if lessonErrors := v.ValidateLessonID(lessonID); len(lessonErrors) > 0 {
		errors = append(errors, lessonErrors...)
	}

	if limit < 0 {
		errors = append(errors, domain.NewOutOfRangeError("limit", limit, 0, 500))
	}

	return errors
}

// isValidULID checks if the string is a valid ULID format
func isValidULID(s string) bool {
	// ULID is 26 characters long, base32 encoded
	if len(s) != 26 {
		return false
	}
	// Check if all characters are valid base32 (Crockford's Base32)
	validULID := regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)
	return validULID.MatchString(s)
}

package middleware_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"learnrank/internal/config"
	"learnrank/internal/logger"
	"learnrank/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	_ = logger.Initialize(config.LoggerConfig{Level: "debug", Env: "test"})
}

func signToken(t *testing.T, secret, role string, expiresIn time.Duration) string {
	claims := jwt.MapClaims{
		"sub":  "admin1",
		"role": role,
		"exp":  time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectNext     bool
	}{
		{
			name:           "No Auth Header",
			authHeader:     "",
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "Wrong Scheme",
			authHeader:     "Basic abc123",
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "Empty Token",
			authHeader:     "Bearer ",
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "Garbage Token",
			authHeader:     "Bearer not.a.jwt",
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "Wrong Secret",
			authHeader:     "Bearer {wrong-secret-admin}",
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer {expired-admin}",
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "Non-Admin Role",
			authHeader:     "Bearer {user-role}",
			expectedStatus: fiber.StatusForbidden,
		},
		{
			name:           "Valid Admin Token",
			authHeader:     "Bearer {valid-admin}",
			expectedStatus: fiber.StatusOK,
			expectNext:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Placeholders keep the table readable; real tokens are signed here.
			header := tt.authHeader
			switch header {
			case "Bearer {valid-admin}":
				header = "Bearer " + signToken(t, testSecret, "admin", time.Hour)
			case "Bearer {user-role}":
				header = "Bearer " + signToken(t, testSecret, "user", time.Hour)
			case "Bearer {expired-admin}":
				header = "Bearer " + signToken(t, testSecret, "admin", -time.Hour)
			case "Bearer {wrong-secret-admin}":
				header = "Bearer " + signToken(t, "other-secret", "admin", time.Hour)
			}

			nextCalled := false
			app := fiber.New()
			app.Post("/admin", middleware.AdminOnly(testSecret), func(c *fiber.Ctx) error {
				nextCalled = true
				assert.Equal(t, "admin1", c.Locals(middleware.UserIDKey))
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest("POST", "/admin", nil)
			if header != "" {
				req.Header.Set(middleware.AuthorizationHeader, header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expectNext, nextCalled)
		})
	}
}

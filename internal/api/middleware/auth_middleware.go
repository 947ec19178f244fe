package middleware

import (
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	config "github.com/maheshrc27/xscheduler/configs"
	"github.com/maheshrc27/xscheduler/internal/service"
	"github.com/maheshrc27/xscheduler/pkg/utils"
)

const TriggerTokenHeader = "X-Trigger-Token"

type AuthMiddleware struct {
	s   service.ApiKeyService
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config, service service.ApiKeyService) *AuthMiddleware {
	return &AuthMiddleware{s: service, cfg: cfg}
}

// AuthMiddleware accepts a session cookie or an api_key query parameter and
// stores the caller in Locals("user_id").
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cfg.CookieName)
		apiKey := c.Query("api_key")

		if tokenString == "" && apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Keys or cookies",
			})
		}

		if apiKey != "" {
			userID, err := m.s.GetUserID(c.Context(), apiKey)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid API key",
				})
			}
			c.Locals("user_id", fmt.Sprintf("%d", userID))
			return c.Next()
		}

		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			c.Cookie(&fiber.Cookie{
				Name:   m.cfg.CookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			slog.Info("token validation failed", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}

// TriggerAuth guards the scheduled-post trigger. With no token configured the
// endpoint is closed.
func (m *AuthMiddleware) TriggerAuth() fiber.Handler {
	expected := []byte(m.cfg.Publisher.TriggerToken)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(TriggerTokenHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid trigger token",
			})
		}
		return c.Next()
	}
}

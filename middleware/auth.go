package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// RequireAdminKey protects the admin endpoints. The caller must present
// the plaintext key in X-Admin-Key; it is checked against the bcrypt
// hash from configuration.
func RequireAdminKey(adminKeyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminKeyHash == "" {
			slog.Warn("Admin endpoint hit but no admin key is configured", "path", c.Path())
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Admin access is not configured",
			})
		}

		key := c.Get("X-Admin-Key")
		if key == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		if err := bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(key)); err != nil {
			slog.Info("Rejected admin request", "path", c.Path(), "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid admin key",
			})
		}

		return c.Next()
	}
}

// middleware/service.go
package middleware

import (
	"crypto/subtle"

	"warungsoal-progression/utils"

	"github.com/gofiber/fiber/v2"
)

// ServiceTokenMiddleware admits only internal services presenting X-Service-Token.
// End-user requests never carry it, even when they come through the gateway.
func ServiceTokenMiddleware(expectedToken string) fiber.Handler {
	expected := []byte(expectedToken)

	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			utils.LogWarn("🚫 [SERVICE_AUTH] rejected %s %s (user=%q)", c.Method(), c.Path(), c.Get("X-User-ID"))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "service token required",
			})
		}
		return c.Next()
	}
}

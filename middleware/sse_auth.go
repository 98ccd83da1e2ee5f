// middleware/sse_auth.go
package middleware

import (
	"context"
	"strings"

	"warungsoal-progression/services"
	"warungsoal-progression/utils"

	"github.com/gofiber/fiber/v2"
)

// TokenValidator is satisfied by *services.AuthServiceClient.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken, deviceID string) (*services.ValidateResponse, error)
}

// SSEAuthMiddleware validates `token` and `device_id` query params with the auth
// service. EventSource cannot set headers, so the stream cannot use UserContextMiddleware.
func SSEAuthMiddleware(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token or device_id in query",
			})
		}

		resp, err := validator.ValidateToken(c.UserContext(), accessToken, deviceID)
		if err != nil {
			utils.LogWarn("[SSEAuth] validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		c.Locals(localUserID, resp.UserID)
		c.Locals(localUserRoles, resp.Roles)
		c.Locals(localDeviceID, resp.DeviceID)

		utils.LogInfo("[SSEAuth] ✅ authenticated user %s (device %s)", resp.UserID, resp.DeviceID)
		return c.Next()
	}
}

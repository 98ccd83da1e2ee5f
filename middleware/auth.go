// middleware/auth.go
package middleware

import (
	"slices"
	"strings"

	"warungsoal-progression/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID    = "user_id"
	localUserRoles = "user_roles"
	localDeviceID  = "device_id"
)

// UserContextMiddleware extracts the identity the gateway resolved (X-User-ID,
// X-User-Roles) and rejects requests without one.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			utils.LogWarn("❌ [USER_CTX] X-User-ID required but missing: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		c.Locals(localUserID, userID)
		c.Locals(localUserRoles, parseRoles(c.Get("X-User-Roles")))
		return c.Next()
	}
}

// RequireRole allows the request through only if the caller holds role.
// Must run after UserContextMiddleware or SSEAuthMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !slices.Contains(UserRoles(c), role) {
			utils.LogWarn("🚫 [USER_CTX] %s lacks role %q for %s", UserID(c), role, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
				"cause": "requires " + role,
			})
		}
		return c.Next()
	}
}

// UserID returns the authenticated caller, or "" outside an authenticated route.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// UserRoles returns the caller's roles.
func UserRoles(c *fiber.Ctx) []string {
	roles, _ := c.Locals(localUserRoles).([]string)
	return roles
}

// DeviceID returns the device the SSE token was validated for.
func DeviceID(c *fiber.Ctx) string {
	id, _ := c.Locals(localDeviceID).(string)
	return id
}

func parseRoles(raw string) []string {
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

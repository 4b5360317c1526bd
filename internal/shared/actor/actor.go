// Package actor carries the authenticated user id from the JWT middleware
// to the handlers.
package actor

import "github.com/gofiber/fiber/v2"

const localsKey = "user_id"

func Set(c *fiber.Ctx, userID string) {
	c.Locals(localsKey, userID)
}

// ID returns the authenticated user id, or "" when the request is anonymous.
func ID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsKey).(string)
	return id
}

// Require is ID for routes behind the auth middleware.
func Require(c *fiber.Ctx) (string, error) {
	id := ID(c)
	if id == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}
	return id, nil
}

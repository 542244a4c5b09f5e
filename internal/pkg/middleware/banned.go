package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	icuser "github.com/ManuelReschke/ToolFox/internal/pkg/usercontext"
)

// BanChecker reports whether a user is currently banned.
type BanChecker interface {
	IsBanned(ctx context.Context, userID string) (bool, error)
}

// RejectBanned answers 403 for banned users. It runs after
// RequireAPISessionAuth and lets anonymous requests through.
func RejectBanned(bans BanChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := icuser.GetUserID(c)
		if userID == "" {
			return c.Next()
		}
		banned, err := bans.IsBanned(c.UserContext(), userID)
		if err != nil {
			log.Errorf("[Moderation] Ban lookup for %s failed: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "Failed to load account",
			})
		}
		if banned {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "banned",
				"message": "account is banned",
			})
		}
		return c.Next()
	}
}

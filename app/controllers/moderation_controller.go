package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/internal/pkg/catalog"
	"github.com/ManuelReschke/ToolFox/internal/pkg/moderation"
)

// AdminToolCreator adds tools on behalf of an administrator.
type AdminToolCreator interface {
	CreateAdminTool(ctx context.Context, adminID string, in catalog.ToolInput) (*catalog.ToolResult, error)
}

// Moderator bans and unbans accounts.
type Moderator interface {
	Ban(ctx context.Context, userID, reason string, expires *time.Time) error
	Unban(ctx context.Context, userID string) error
}

// ModerationController serves the admin catalog and account actions.
type ModerationController struct {
	tools AdminToolCreator
	mod   Moderator
}

func NewModerationController(tools AdminToolCreator, mod Moderator) *ModerationController {
	return &ModerationController{tools: tools, mod: mod}
}

type banRequest struct {
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// HandleCreateTool adds a featured tool owned by the calling admin.
func (mc *ModerationController) HandleCreateTool(c *fiber.Ctx) error {
	adminID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var in catalog.ToolInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	result, err := mc.tools.CreateAdminTool(ctx, adminID, in)
	if err != nil {
		log.Errorf("[Catalog] Admin %s failed to create tool: %v", adminID, err)
		return internalError(c, "Failed to create tool")
	}
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (mc *ModerationController) HandleBanUser(c *fiber.Ctx) error {
	var req banRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	userID := c.Params("id")
	if err := mc.mod.Ban(ctx, userID, req.Reason, req.ExpiresAt); err != nil {
		return moderationError(c, userID, err)
	}
	return c.JSON(fiber.Map{"success": true, "banned": true})
}

func (mc *ModerationController) HandleUnbanUser(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	userID := c.Params("id")
	if err := mc.mod.Unban(ctx, userID); err != nil {
		return moderationError(c, userID, err)
	}
	return c.JSON(fiber.Map{"success": true, "banned": false})
}

func moderationError(c *fiber.Ctx, userID string, err error) error {
	switch {
	case errors.Is(err, moderation.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
	case errors.Is(err, moderation.ErrReasonMissing), errors.Is(err, moderation.ErrExpiryInPast):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}
	log.Errorf("[Moderation] Failed to update ban of %s: %v", userID, err)
	return internalError(c, "Failed to update ban")
}

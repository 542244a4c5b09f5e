package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/internal/pkg/catalog"
)

// ToolService is the signed-in side of the tool catalog.
type ToolService interface {
	UserTools(ctx context.Context, userID string) ([]models.Tool, error)
	CreateTool(ctx context.Context, userID string, in catalog.ToolInput) (*catalog.ToolResult, error)
	UpdateTool(ctx context.Context, userID, toolID string, in catalog.ToolInput) (*catalog.ToolResult, error)
	CheckToolLimits(ctx context.Context, userID string) (*catalog.LimitsCheck, error)
}

type ToolController struct {
	tools ToolService
}

func NewToolController(tools ToolService) *ToolController {
	return &ToolController{tools: tools}
}

// HandleListTools returns the tools submitted by the signed-in user.
func (tc *ToolController) HandleListTools(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	tools, err := tc.tools.UserTools(ctx, userID)
	if err != nil {
		log.Errorf("[Catalog] Failed to list tools of %s: %v", userID, err)
		return internalError(c, "Failed to load tools")
	}
	if tools == nil {
		tools = []models.Tool{}
	}
	return c.JSON(fiber.Map{"tools": tools})
}

func (tc *ToolController) HandleCreateTool(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var in catalog.ToolInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	result, err := tc.tools.CreateTool(ctx, userID, in)
	if err != nil {
		log.Errorf("[Catalog] Failed to create tool for %s: %v", userID, err)
		return internalError(c, "Failed to create tool")
	}
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (tc *ToolController) HandleUpdateTool(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var in catalog.ToolInput
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	result, err := tc.tools.UpdateTool(ctx, userID, c.Params("id"), in)
	if err != nil {
		log.Errorf("[Catalog] Failed to update tool %s: %v", c.Params("id"), err)
		return internalError(c, "Failed to update tool")
	}
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.JSON(result)
}

// HandleToolLimits tells the client whether another tool can be added.
func (tc *ToolController) HandleToolLimits(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	limits, err := tc.tools.CheckToolLimits(ctx, userID)
	if err != nil {
		log.Errorf("[Catalog] Failed to check limits of %s: %v", userID, err)
		return internalError(c, "Failed to check tool limits")
	}
	return c.JSON(limits)
}

package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/internal/pkg/selection"
)

// SelectionGate serves the monthly tool selection.
type SelectionGate interface {
	State(ctx context.Context, userID string) (*selection.State, error)
	Save(ctx context.Context, userID string, selected []string) (*selection.SaveResult, error)
}

type SelectionController struct {
	gate SelectionGate
}

func NewSelectionController(gate SelectionGate) *SelectionController {
	return &SelectionController{gate: gate}
}

type saveSelectionRequest struct {
	ToolIDs []string `json:"tool_ids"`
}

func (sc *SelectionController) HandleGetSelection(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	state, err := sc.gate.State(ctx, userID)
	if errors.Is(err, selection.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
	}
	if err != nil {
		log.Errorf("[Selection] Failed to load selection state of %s: %v", userID, err)
		return internalError(c, "Failed to load selection")
	}
	return c.JSON(state)
}

// HandleSaveSelection replaces the set of featured subscription tools.
func (sc *SelectionController) HandleSaveSelection(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req saveSelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	result, err := sc.gate.Save(ctx, userID, req.ToolIDs)
	if errors.Is(err, selection.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
	}
	if err != nil {
		log.Errorf("[Selection] Failed to save selection of %s: %v", userID, err)
		return internalError(c, "Failed to save selection")
	}
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.JSON(result)
}

package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/internal/pkg/catalog"
)

// CatalogReader serves the public tool listings.
type CatalogReader interface {
	HomepageTools(ctx context.Context, page, size int) (*catalog.Listing, error)
	CategoryTools(ctx context.Context, category string, page, size int) (*catalog.Listing, error)
	ToolBySlug(ctx context.Context, toolSlug string) (*catalog.ToolDetail, error)
}

type PublicController struct {
	catalog CatalogReader
}

func NewPublicController(catalog CatalogReader) *PublicController {
	return &PublicController{catalog: catalog}
}

// HandleHomepageTools lists featured tools without originals that are
// currently boosted.
func (pc *PublicController) HandleHomepageTools(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	listing, err := pc.catalog.HomepageTools(ctx, queryInt(c, "page", 1), queryInt(c, "page_size", 0))
	if err != nil {
		log.Errorf("[Catalog] Failed to list homepage tools: %v", err)
		return internalError(c, "Failed to load tools")
	}
	return c.JSON(listing)
}

func (pc *PublicController) HandleCategoryTools(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	listing, err := pc.catalog.CategoryTools(ctx, c.Params("category"), queryInt(c, "page", 1), queryInt(c, "page_size", 0))
	if err != nil {
		log.Errorf("[Catalog] Failed to list category %s: %v", c.Params("category"), err)
		return internalError(c, "Failed to load tools")
	}
	return c.JSON(listing)
}

func (pc *PublicController) HandleToolBySlug(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	detail, err := pc.catalog.ToolBySlug(ctx, c.Params("slug"))
	if errors.Is(err, catalog.ErrToolNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Tool not found"})
	}
	if err != nil {
		log.Errorf("[Catalog] Failed to load tool %s: %v", c.Params("slug"), err)
		return internalError(c, "Failed to load tool")
	}
	return c.JSON(detail)
}

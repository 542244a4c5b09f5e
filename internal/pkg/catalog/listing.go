package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
	relatedLimit    = 4
)

// Listing is one page of public tools.
type Listing struct {
	Tools      []models.Tool `json:"tools"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// ToolDetail is a public tool page.
type ToolDetail struct {
	Tool    *models.Tool  `json:"tool"`
	Related []models.Tool `json:"related"`
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func (s *Service) list(ctx context.Context, placement models.Placement, category string, page, size int) (*Listing, error) {
	page, size = normalizePage(page, size)
	boosted, err := s.ads.BoostedOriginalIDs(ctx, placement)
	if err != nil {
		return nil, err
	}
	tools, total, err := s.tools.ListFeatured(ctx, repository.ToolQuery{
		Category:   category,
		ExcludeIDs: boosted,
		Offset:     (page - 1) * size,
		Limit:      size,
	})
	if err != nil {
		return nil, err
	}
	if tools == nil {
		tools = []models.Tool{}
	}
	return &Listing{
		Tools:      tools,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// HomepageTools lists featured tools, hiding originals whose boosted
// duplicate is advertised anywhere.
func (s *Service) HomepageTools(ctx context.Context, page, size int) (*Listing, error) {
	return s.list(ctx, models.PlacementHomepage, "", page, size)
}

// CategoryTools lists featured tools of a category, hiding originals whose
// duplicate runs with placement "all".
func (s *Service) CategoryTools(ctx context.Context, category string, page, size int) (*Listing, error) {
	return s.list(ctx, models.PlacementAll, category, page, size)
}

// ToolBySlug returns a featured tool and related tools of its category.
func (s *Service) ToolBySlug(ctx context.Context, toolSlug string) (*ToolDetail, error) {
	t, err := s.tools.GetBySlug(ctx, toolSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrToolNotFound
		}
		return nil, err
	}
	if !t.Featured {
		return nil, ErrToolNotFound
	}
	related, err := s.tools.ListRelated(ctx, t.Category, t.ID, relatedLimit)
	if err != nil {
		return nil, err
	}
	if related == nil {
		related = []models.Tool{}
	}
	return &ToolDetail{Tool: t, Related: related}, nil
}

package repository

import (
	"context"

	"github.com/ManuelReschke/ToolFox/app/models"
	"gorm.io/gorm"
)

// toolRepository implements the ToolRepository interface
type toolRepository struct {
	db *gorm.DB
}

// NewToolRepository creates a new tool repository instance
func NewToolRepository(db *gorm.DB) ToolRepository {
	return &toolRepository{db: db}
}

// Create creates a new tool in the database
func (r *toolRepository) Create(ctx context.Context, tool *models.Tool) error {
	return r.db.WithContext(ctx).Create(tool).Error
}

// GetByID retrieves a tool by its ID
func (r *toolRepository) GetByID(ctx context.Context, id string) (*models.Tool, error) {
	var tool models.Tool
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tool).Error
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

// GetBySlug retrieves a tool by its slug
func (r *toolRepository) GetBySlug(ctx context.Context, slug string) (*models.Tool, error) {
	var tool models.Tool
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tool).Error
	if err != nil {
		return nil, err
	}
	return &tool, nil
}

// Update saves every column of the tool
func (r *toolRepository) Update(ctx context.Context, tool *models.Tool) error {
	return r.db.WithContext(ctx).Save(tool).Error
}

// Delete removes a tool; its advertisements cascade
func (r *toolRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Tool{}).Error
}

// SlugExists checks if a slug already exists
func (r *toolRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tool{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// SlugExistsExceptID checks if a slug exists excluding a specific ID
func (r *toolRepository) SlugExistsExceptID(ctx context.Context, slug, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tool{}).Where("slug = ? AND id != ?", slug, id).Count(&count).Error
	return count > 0, err
}

// DomainExists checks whether a non-duplicate tool already uses the domain
func (r *toolRepository) DomainExists(ctx context.Context, domain string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tool{}).
		Where("domain = ? AND boosted_from_id IS NULL", domain).
		Count(&count).Error
	return count > 0, err
}

// ListByOwner lists every tool of a user, newest first
func (r *toolRepository) ListByOwner(ctx context.Context, userID string) ([]models.Tool, error) {
	var tools []models.Tool
	err := r.db.WithContext(ctx).Where("submitted_by = ?", userID).
		Order("created_at DESC").
		Find(&tools).Error
	return tools, err
}

// ListByOwnerAndOrigin lists a user's tools of one origin, oldest first
func (r *toolRepository) ListByOwnerAndOrigin(ctx context.Context, userID string, origin models.ToolOrigin) ([]models.Tool, error) {
	var tools []models.Tool
	err := r.db.WithContext(ctx).
		Where("submitted_by = ? AND origin = ?", userID, origin).
		Order("created_at ASC, id ASC").
		Find(&tools).Error
	return tools, err
}

func (r *toolRepository) CountByOwnerAndOrigin(ctx context.Context, userID string, origin models.ToolOrigin) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tool{}).
		Where("submitted_by = ? AND origin = ?", userID, origin).
		Count(&count).Error
	return count, err
}

func (r *toolRepository) CountFeatured(ctx context.Context, userID string, origin models.ToolOrigin) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tool{}).
		Where("submitted_by = ? AND origin = ? AND featured = ?", userID, origin, true).
		Count(&count).Error
	return count, err
}

// SetSubscriptionFeatured flips featured for the given subscription tools of a user.
// Advertisement tools are never touched.
func (r *toolRepository) SetSubscriptionFeatured(ctx context.Context, userID string, ids []string, featured bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).Model(&models.Tool{}).
		Where("submitted_by = ? AND origin = ? AND id IN ?", userID, models.OriginSubscription, ids).
		Update("featured", featured)
	return tx.RowsAffected, tx.Error
}

func (r *toolRepository) SetAllSubscriptionFeatured(ctx context.Context, userID string, featured bool) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Tool{}).
		Where("submitted_by = ? AND origin = ? AND featured <> ?", userID, models.OriginSubscription, featured).
		Update("featured", featured)
	return tx.RowsAffected, tx.Error
}

// SetAdvertisementFeatured flips featured on an advertisement-origin tool
func (r *toolRepository) SetAdvertisementFeatured(ctx context.Context, id string, featured bool) error {
	tx := r.db.WithContext(ctx).Model(&models.Tool{}).
		Where("id = ? AND origin = ?", id, models.OriginAdvertisement).
		Update("featured", featured)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Tool{}).
			Where("id = ? AND origin = ?", id, models.OriginAdvertisement).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// ListFeatured lists featured subscription tools for public pages, newest first
func (r *toolRepository) ListFeatured(ctx context.Context, q ToolQuery) ([]models.Tool, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Tool{}).
		Where("featured = ? AND origin = ?", true, models.OriginSubscription)
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if len(q.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", q.ExcludeIDs)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tools []models.Tool
	err := query.Order("created_at DESC").Offset(q.Offset).Limit(q.Limit).Find(&tools).Error
	return tools, total, err
}

// ListRelated lists other featured tools in the same category
func (r *toolRepository) ListRelated(ctx context.Context, category, excludeID string, limit int) ([]models.Tool, error) {
	var tools []models.Tool
	err := r.db.WithContext(ctx).
		Where("featured = ? AND category = ? AND id <> ?", true, category, excludeID).
		Order("created_at DESC").
		Limit(limit).
		Find(&tools).Error
	return tools, err
}

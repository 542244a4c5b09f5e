package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuelReschke/ToolFox/app/models"
	"gorm.io/gorm"
)

// advertisementRepository implements the AdvertisementRepository interface
type advertisementRepository struct {
	db *gorm.DB
}

// NewAdvertisementRepository creates a new advertisement repository instance
func NewAdvertisementRepository(db *gorm.DB) AdvertisementRepository {
	return &advertisementRepository{db: db}
}

// Create creates a new advertisement in the database
func (r *advertisementRepository) Create(ctx context.Context, ad *models.ToolAdvertisement) error {
	return r.db.WithContext(ctx).Create(ad).Error
}

// GetByID retrieves an advertisement with its tool
func (r *advertisementRepository) GetByID(ctx context.Context, id string) (*models.ToolAdvertisement, error) {
	var ad models.ToolAdvertisement
	err := r.db.WithContext(ctx).Preload("Tool").Where("id = ?", id).First(&ad).Error
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

func (r *advertisementRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ToolAdvertisement{}).Error
}

func (r *advertisementRepository) SetStripeSession(ctx context.Context, id, sessionID string) error {
	return r.db.WithContext(ctx).Model(&models.ToolAdvertisement{}).
		Where("id = ?", id).
		Update("stripe_session_id", sessionID).Error
}

// TransitionStatus moves an advertisement from one status to another.
// It reports false when the row was not in the expected status.
func (r *advertisementRepository) TransitionStatus(ctx context.Context, id string, from, to models.AdvertisementStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	tx := r.db.WithContext(ctx).Model(&models.ToolAdvertisement{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return tx.RowsAffected > 0, tx.Error
}

// ListDueForExpiry lists advertisements not yet expired whose end date has
// passed, including abandoned pending checkouts
func (r *advertisementRepository) ListDueForExpiry(ctx context.Context, now time.Time) ([]models.ToolAdvertisement, error) {
	var ads []models.ToolAdvertisement
	err := r.db.WithContext(ctx).Preload("Tool").
		Where("status <> ? AND end_date <= ?", models.AdvertisementExpired, now).
		Order("end_date ASC").
		Find(&ads).Error
	return ads, err
}

// ListLive lists active advertisements. PlacementAll ads show on every
// page, homepage ads only on the homepage.
func (r *advertisementRepository) ListLive(ctx context.Context, placement models.Placement) ([]models.ToolAdvertisement, error) {
	query := r.db.WithContext(ctx).Preload("Tool").
		Where("status = ?", models.AdvertisementActive)
	if placement != models.PlacementHomepage {
		query = query.Where("placement = ?", models.PlacementAll)
	}
	var ads []models.ToolAdvertisement
	err := query.Order("start_date DESC").Find(&ads).Error
	return ads, err
}

// ListByOwner lists paid advertisements of a user's tools, newest first
func (r *advertisementRepository) ListByOwner(ctx context.Context, userID string) ([]models.ToolAdvertisement, error) {
	var ads []models.ToolAdvertisement
	err := r.db.WithContext(ctx).Preload("Tool").
		Joins("JOIN tools ON tools.id = tool_advertisements.tool_id").
		Where("tools.submitted_by = ? AND tool_advertisements.status <> ?", userID, models.AdvertisementPending).
		Order("tool_advertisements.created_at DESC").
		Find(&ads).Error
	return ads, err
}

func (r *advertisementRepository) CountActiveForTool(ctx context.Context, toolID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ToolAdvertisement{}).
		Where("tool_id = ? AND status = ?", toolID, models.AdvertisementActive).
		Count(&count).Error
	return count, err
}

// CountLiveForTool counts active advertisements of a tool that have not ended
func (r *advertisementRepository) CountLiveForTool(ctx context.Context, toolID string, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ToolAdvertisement{}).
		Where("tool_id = ? AND status = ? AND end_date > ?", toolID, models.AdvertisementActive, now).
		Count(&count).Error
	return count, err
}

// DeletePendingForTool removes abandoned checkouts of a tool
func (r *advertisementRepository) DeletePendingForTool(ctx context.Context, toolID string) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("tool_id = ? AND status = ?", toolID, models.AdvertisementPending).
		Delete(&models.ToolAdvertisement{})
	return tx.RowsAffected, tx.Error
}

// BoostedOriginalIDs returns the ids of subscription tools whose duplicate
// has an active advertisement at the placement.
func (r *advertisementRepository) BoostedOriginalIDs(ctx context.Context, placement models.Placement) ([]string, error) {
	query := r.db.WithContext(ctx).Model(&models.ToolAdvertisement{}).
		Joins("JOIN tools ON tools.id = tool_advertisements.tool_id").
		Where("tool_advertisements.status = ?", models.AdvertisementActive).
		Where("tools.boosted_from_id IS NOT NULL")
	if placement != models.PlacementHomepage {
		query = query.Where("tool_advertisements.placement = ?", models.PlacementAll)
	}
	var ids []string
	err := query.Distinct().Pluck("tools.boosted_from_id", &ids).Error
	return ids, err
}

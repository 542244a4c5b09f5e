package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/ToolFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	FindActivePlanMapping(ctx context.Context, provider, priceID string) (*models.BillingPlanMapping, error)
	UpsertPlanMapping(ctx context.Context, m *models.BillingPlanMapping) error
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	FindLatestIncomplete(ctx context.Context, userID string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	ListSubscriptionsByUser(ctx context.Context, userID, status string) ([]models.Subscription, error)
	DeleteIncompleteSubscriptions(ctx context.Context, userID string) (int64, error)
	ListCancelingEnded(ctx context.Context, now time.Time) ([]models.Subscription, error)
	ListActiveEnded(ctx context.Context, now time.Time) ([]models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id, status string) error
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindActivePlanMapping(ctx context.Context, provider, priceID string) (*models.BillingPlanMapping, error) {
	var m models.BillingPlanMapping
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_price_id = ? AND is_active = ?", provider, priceID, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) UpsertPlanMapping(ctx context.Context, m *models.BillingPlanMapping) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_price_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan",
			"is_active",
			"updated_at",
		}),
	}).Create(m).Error
}

func (r *gormRepository) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindLatestIncomplete(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("reference_id = ? AND status = ?", userID, models.BillingStatusIncomplete).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *gormRepository) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

// ListSubscriptionsByUser lists a user's rows, most recently updated first.
// An empty status returns every row.
func (r *gormRepository) ListSubscriptionsByUser(ctx context.Context, userID, status string) ([]models.Subscription, error) {
	var subs []models.Subscription
	q := r.db.WithContext(ctx).Where("reference_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("updated_at DESC").Find(&subs).Error
	return subs, err
}

func (r *gormRepository) DeleteIncompleteSubscriptions(ctx context.Context, userID string) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("reference_id = ? AND status = ?", userID, models.BillingStatusIncomplete).
		Delete(&models.Subscription{})
	return tx.RowsAffected, tx.Error
}

// ListCancelingEnded lists active rows flagged to cancel whose period is over.
func (r *gormRepository) ListCancelingEnded(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND cancel_at_period_end = ? AND period_end <= ?", models.BillingStatusActive, true, now).
		Order("period_end ASC").
		Find(&subs).Error
	return subs, err
}

// ListActiveEnded lists active rows whose period is over.
func (r *gormRepository) ListActiveEnded(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND period_end <= ?", models.BillingStatusActive, now).
		Order("period_end ASC").
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) UpdateSubscriptionStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
		"attempts":         gorm.Expr("attempts + 1"),
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

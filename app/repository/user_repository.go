package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/ToolFox/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByStripeCustomerID retrieves the user linked to a Stripe customer
func (r *userRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID).Error
}

// SetLastToolSelectionAt stores or clears (nil) the manual selection timestamp
func (r *userRepository) SetLastToolSelectionAt(ctx context.Context, id string, at *time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_tool_selection_at", at).Error
}

// SetBan stores a ban, or lifts it when ban is nil
func (r *userRepository) SetBan(ctx context.Context, id string, ban *models.Ban) error {
	updates := map[string]any{"banned": false, "ban_reason": nil, "ban_expires": nil}
	if ban != nil {
		updates = map[string]any{"banned": true, "ban_reason": ban.Reason, "ban_expires": ban.Expires}
	}
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

// List retrieves users with pagination
func (r *userRepository) List(ctx context.Context, offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/ToolFox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the user operations the tool directory needs.
// Accounts themselves are created by the authentication service.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
	SetLastToolSelectionAt(ctx context.Context, id string, at *time.Time) error
	SetBan(ctx context.Context, id string, ban *models.Ban) error
	List(ctx context.Context, offset, limit int) ([]models.User, error)
}

// ToolQuery filters public tool listings.
type ToolQuery struct {
	Category   string
	ExcludeIDs []string
	Offset     int
	Limit      int
}

// ToolRepository defines tool persistence. Featured flags are only written
// through the origin-specific setters.
type ToolRepository interface {
	Create(ctx context.Context, tool *models.Tool) error
	GetByID(ctx context.Context, id string) (*models.Tool, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tool, error)
	Update(ctx context.Context, tool *models.Tool) error
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	SlugExistsExceptID(ctx context.Context, slug, id string) (bool, error)
	DomainExists(ctx context.Context, domain string) (bool, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Tool, error)
	ListByOwnerAndOrigin(ctx context.Context, userID string, origin models.ToolOrigin) ([]models.Tool, error)
	CountByOwnerAndOrigin(ctx context.Context, userID string, origin models.ToolOrigin) (int64, error)
	CountFeatured(ctx context.Context, userID string, origin models.ToolOrigin) (int64, error)
	SetSubscriptionFeatured(ctx context.Context, userID string, ids []string, featured bool) (int64, error)
	SetAllSubscriptionFeatured(ctx context.Context, userID string, featured bool) (int64, error)
	SetAdvertisementFeatured(ctx context.Context, id string, featured bool) error
	ListFeatured(ctx context.Context, q ToolQuery) ([]models.Tool, int64, error)
	ListRelated(ctx context.Context, category, excludeID string, limit int) ([]models.Tool, error)
}

// AdvertisementRepository defines tool advertisement persistence.
type AdvertisementRepository interface {
	Create(ctx context.Context, ad *models.ToolAdvertisement) error
	GetByID(ctx context.Context, id string) (*models.ToolAdvertisement, error)
	Delete(ctx context.Context, id string) error
	SetStripeSession(ctx context.Context, id, sessionID string) error
	TransitionStatus(ctx context.Context, id string, from, to models.AdvertisementStatus) (bool, error)
	ListDueForExpiry(ctx context.Context, now time.Time) ([]models.ToolAdvertisement, error)
	ListLive(ctx context.Context, placement models.Placement) ([]models.ToolAdvertisement, error)
	ListByOwner(ctx context.Context, userID string) ([]models.ToolAdvertisement, error)
	CountActiveForTool(ctx context.Context, toolID string) (int64, error)
	CountLiveForTool(ctx context.Context, toolID string, now time.Time) (int64, error)
	DeletePendingForTool(ctx context.Context, toolID string) (int64, error)
	BoostedOriginalIDs(ctx context.Context, placement models.Placement) ([]string, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User          UserRepository
	Tool          ToolRepository
	Advertisement AdvertisementRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		Tool:          NewToolRepository(db),
		Advertisement: NewAdvertisementRepository(db),
	}
}

package models

import "time"

// ToolOrigin tags which lifecycle owns the featured flag of a tool.
type ToolOrigin string

const (
	// OriginSubscription tools are featured by the quota reconciler and the
	// manual selection gate.
	OriginSubscription ToolOrigin = "subscription"
	// OriginAdvertisement tools are featured only while a paid advertisement runs.
	OriginAdvertisement ToolOrigin = "advertisement"
)

const DefaultToolCategory = "productivity"

// boostSuffix marks tool duplicates created to advertise a subscription tool.
const boostSuffix = "_ad"

type Tool struct {
	ID                   string     `gorm:"primaryKey;type:varchar(191)" json:"id"`
	Name                 string     `gorm:"type:varchar(150);not null" json:"name"`
	Slug                 string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"slug"`
	Description          string     `gorm:"type:text" json:"description"`
	URL                  string     `gorm:"type:varchar(500);not null" json:"url"`
	Domain               string     `gorm:"type:varchar(191);index" json:"domain"`
	LogoURL              string     `gorm:"type:varchar(500)" json:"logo_url"`
	AppImageURL          string     `gorm:"type:varchar(500);default:null" json:"app_image_url,omitempty"`
	Category             string     `gorm:"type:varchar(100);default:'productivity';index" json:"category"`
	Featured             bool       `gorm:"default:false;index" json:"featured"`
	Origin               ToolOrigin `gorm:"type:varchar(20);not null;default:'subscription';index" json:"origin"`
	RequiresSubscription bool       `gorm:"default:true" json:"requires_subscription"`
	BoostedFromID        *string    `gorm:"type:varchar(191);default:null;index" json:"boosted_from_id,omitempty"`
	PromoCode            string     `gorm:"type:varchar(50);default:null" json:"promo_code,omitempty"`
	PromoDiscount        int        `gorm:"default:0" json:"promo_discount,omitempty"`
	SubmittedBy          string     `gorm:"type:varchar(191);not null;index" json:"submitted_by"`
	CreatedAt            time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Tool) IsSubscriptionOrigin() bool {
	return t.Origin == OriginSubscription
}

func (t *Tool) IsAdvertisementOrigin() bool {
	return t.Origin == OriginAdvertisement
}

// IsBoostDuplicate reports whether the tool is the advertisement copy of a
// subscription tool.
func (t *Tool) IsBoostDuplicate() bool {
	return t.BoostedFromID != nil && *t.BoostedFromID != ""
}

// BoostToolID returns the deterministic id of the advertisement duplicate.
func BoostToolID(originalID string) string {
	return originalID + boostSuffix
}

// BoostToolSlug returns the slug of the advertisement duplicate.
func BoostToolSlug(originalSlug string) string {
	return originalSlug + "-ad"
}

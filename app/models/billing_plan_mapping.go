package models

import "time"

// BillingPlanMapping maps a provider price id to a plan identifier
// such as "plus-monthly". Rows override the price ids from the environment.
type BillingPlanMapping struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Provider        string    `gorm:"type:varchar(20);not null;index:ux_billing_plan_mappings_price,unique,priority:1" json:"provider"`
	ProviderPriceID string    `gorm:"type:varchar(191);not null;index:ux_billing_plan_mappings_price,unique,priority:2" json:"provider_price_id"`
	Plan            string    `gorm:"type:varchar(50);not null;index" json:"plan"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

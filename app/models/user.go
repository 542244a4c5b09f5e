package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// User is the account row shared with the external authentication service.
// IDs are opaque strings issued by that service.
type User struct {
	ID                  string     `gorm:"primaryKey;type:varchar(191)" json:"id"`
	Name                string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Email               string     `gorm:"uniqueIndex;type:varchar(200);not null" json:"email" validate:"required,email,max=200"`
	EmailVerified       bool       `gorm:"default:false" json:"email_verified"`
	Image               string     `gorm:"type:varchar(255);default:null" json:"image,omitempty" validate:"omitempty,max=255"`
	Role                string     `gorm:"type:varchar(50);default:'user'" json:"role" validate:"omitempty,oneof=user admin"`
	Banned              bool       `gorm:"default:false" json:"banned"`
	BanReason           string     `gorm:"type:varchar(255);default:null" json:"ban_reason,omitempty"`
	BanExpires          *time.Time `gorm:"type:timestamp;default:null" json:"ban_expires,omitempty"`
	StripeCustomerID    string     `gorm:"type:varchar(191);default:null;index" json:"-"`
	LastToolSelectionAt *time.Time `gorm:"type:timestamp;default:null" json:"last_tool_selection_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// Ban is a moderation decision. A nil Expires bans until lifted.
type Ban struct {
	Reason  string
	Expires *time.Time
}

// IsBanned reports whether the ban is still in force at the given time.
func (u *User) IsBanned(now time.Time) bool {
	if !u.Banned {
		return false
	}
	return u.BanExpires == nil || u.BanExpires.After(now)
}

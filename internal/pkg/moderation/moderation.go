// Package moderation bans and unbans accounts. Banned users keep their
// session but are refused by every authenticated API route.
package moderation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrReasonMissing = errors.New("ban reason is required")
	ErrExpiryInPast  = errors.New("ban expiry must be in the future")
)

type Service struct {
	users repository.UserRepository
	now   func() time.Time
}

func NewService(users repository.UserRepository) *Service {
	return &Service{users: users, now: time.Now}
}

// WithClock replaces the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) load(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Ban bans a user until expires, or until lifted when expires is nil.
func (s *Service) Ban(ctx context.Context, userID, reason string, expires *time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonMissing
	}
	if expires != nil && !expires.After(s.now()) {
		return ErrExpiryInPast
	}
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	if err := s.users.SetBan(ctx, userID, &models.Ban{Reason: reason, Expires: expires}); err != nil {
		return err
	}
	log.Infof("[Moderation] Banned user %s: %s", userID, reason)
	return nil
}

// Unban lifts any ban of the user.
func (s *Service) Unban(ctx context.Context, userID string) error {
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	if err := s.users.SetBan(ctx, userID, nil); err != nil {
		return err
	}
	log.Infof("[Moderation] Unbanned user %s", userID)
	return nil
}

// IsBanned reports whether a ban is in force. Unknown users are not banned,
// the account row may not be synced yet.
func (s *Service) IsBanned(ctx context.Context, userID string) (bool, error) {
	u, err := s.load(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsBanned(s.now()), nil
}

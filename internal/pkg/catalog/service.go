// Package catalog manages tool submissions and the public tool listings.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
)

var ErrToolNotFound = errors.New("tool not found")

// PlanLookup resolves the effective plan of a user.
type PlanLookup interface {
	EffectivePlan(ctx context.Context, userID string) (string, int, error)
}

// ToolResult is the outcome of a tool create or update.
type ToolResult struct {
	Success bool         `json:"success"`
	ToolID  string       `json:"tool_id,omitempty"`
	Tool    *models.Tool `json:"tool,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// LimitsCheck reports whether a user can add another subscription tool.
type LimitsCheck struct {
	CanAdd  bool   `json:"can_add"`
	Count   int    `json:"count"`
	Limit   int    `json:"limit"`
	Plan    string `json:"plan"`
	Message string `json:"message,omitempty"`
}

type Service struct {
	tools    repository.ToolRepository
	ads      repository.AdvertisementRepository
	plans    PlanLookup
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repos *repository.Repositories, plans PlanLookup) *Service {
	return &Service{
		tools:    repos.Tool,
		ads:      repos.Advertisement,
		plans:    plans,
		validate: newValidator(),
		now:      time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// UniqueSlug slugifies name and appends -1, -2, ... until it is free.
func (s *Service) UniqueSlug(ctx context.Context, name, exceptID string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "tool"
	}
	candidate := base
	for i := 1; ; i++ {
		exists, err := s.tools.SlugExistsExceptID(ctx, candidate, exceptID)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// prepare validates the input and builds the common tool fields.
func (s *Service) prepare(ctx context.Context, userID string, in ToolInput, origin models.ToolOrigin) (*models.Tool, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, describe(err)
	}
	if err := ValidatePromoPair(in.PromoCode, in.PromoDiscount); err != nil {
		return nil, err
	}
	domain := ExtractDomain(in.URL)
	exists, err := s.tools.DomainExists(ctx, domain)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, invalid("A tool with this domain already exists")
	}

	toolSlug, err := s.UniqueSlug(ctx, in.Name, "")
	if err != nil {
		return nil, err
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultToolCategory
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		prefix := "Submitted tool"
		if origin == models.OriginAdvertisement {
			prefix = "Advertisement tool"
		}
		description = fmt.Sprintf("%s: %s", prefix, in.URL)
	}

	t := &models.Tool{
		ID:                   "tool_" + uuid.NewString(),
		Name:                 strings.TrimSpace(in.Name),
		Slug:                 toolSlug,
		Description:          description,
		URL:                  strings.TrimSpace(in.URL),
		Domain:               domain,
		LogoURL:              strings.TrimSpace(in.LogoURL),
		AppImageURL:          strings.TrimSpace(in.AppImageURL),
		Category:             category,
		Origin:               origin,
		RequiresSubscription: origin == models.OriginSubscription,
		SubmittedBy:          userID,
		CreatedAt:            s.now(),
	}
	if in.PromoDiscount != nil {
		t.PromoCode = FormatPromoCode(in.PromoCode)
		t.PromoDiscount = *in.PromoDiscount
	}
	return t, nil
}

// CreateTool submits a subscription tool. The first tool of a user may be
// added before subscribing and starts hidden; later tools need an active
// plan with free slots and start featured.
func (s *Service) CreateTool(ctx context.Context, userID string, in ToolInput) (*ToolResult, error) {
	t, err := s.prepare(ctx, userID, in, models.OriginSubscription)
	if err != nil {
		if msg, ok := AsValidation(err); ok {
			return &ToolResult{Error: msg}, nil
		}
		return nil, err
	}

	count, err := s.tools.CountByOwnerAndOrigin(ctx, userID, models.OriginSubscription)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		plan, limit, err := s.plans.EffectivePlan(ctx, userID)
		if err != nil {
			return nil, err
		}
		if limit == 0 {
			return &ToolResult{Error: "An active subscription is required to add more tools"}, nil
		}
		if int(count) >= limit {
			return &ToolResult{Error: entitlements.LimitReachedMessage(plan, int(count), limit)}, nil
		}
		t.Featured = true
	}

	if err := s.tools.Create(ctx, t); err != nil {
		return nil, err
	}
	log.Infof("[Catalog] User %s created tool %s (%s), featured=%t", userID, t.ID, t.Slug, t.Featured)
	return &ToolResult{Success: true, ToolID: t.ID, Tool: t}, nil
}

// CreateAdvertisementTool stores a hidden advertisement-origin tool. It is
// featured once its advertisement is paid.
func (s *Service) CreateAdvertisementTool(ctx context.Context, userID string, in ToolInput) (*models.Tool, error) {
	t, err := s.prepare(ctx, userID, in, models.OriginAdvertisement)
	if err != nil {
		return nil, err
	}
	if err := s.tools.Create(ctx, t); err != nil {
		return nil, err
	}
	log.Infof("[Catalog] User %s created advertisement tool %s", userID, t.ID)
	return t, nil
}

// CreateAdminTool adds a featured tool on behalf of an administrator. It
// skips the plan check and is not tied to a subscription, yet it counts
// against the admin's own quota when the reconciler runs for that account.
func (s *Service) CreateAdminTool(ctx context.Context, adminID string, in ToolInput) (*ToolResult, error) {
	t, err := s.prepare(ctx, adminID, in, models.OriginSubscription)
	if err != nil {
		if msg, ok := AsValidation(err); ok {
			return &ToolResult{Error: msg}, nil
		}
		return nil, err
	}
	t.Featured = true
	t.RequiresSubscription = false

	if err := s.tools.Create(ctx, t); err != nil {
		return nil, err
	}
	log.Infof("[Catalog] Admin %s created tool %s (%s)", adminID, t.ID, t.Slug)
	return &ToolResult{Success: true, ToolID: t.ID, Tool: t}, nil
}

// UpdateTool edits a tool owned by userID. Featured flag and origin are
// never changed here.
func (s *Service) UpdateTool(ctx context.Context, userID, toolID string, in ToolInput) (*ToolResult, error) {
	t, err := s.tools.GetByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ToolResult{Error: "Tool not found"}, nil
		}
		return nil, err
	}
	if t.SubmittedBy != userID {
		return &ToolResult{Error: "Tool not found"}, nil
	}

	if err := s.validate.Struct(in); err != nil {
		msg, _ := AsValidation(describe(err))
		return &ToolResult{Error: msg}, nil
	}
	if err := ValidatePromoPair(in.PromoCode, in.PromoDiscount); err != nil {
		msg, _ := AsValidation(err)
		return &ToolResult{Error: msg}, nil
	}

	domain := ExtractDomain(in.URL)
	if domain != t.Domain && !t.IsBoostDuplicate() {
		exists, err := s.tools.DomainExists(ctx, domain)
		if err != nil {
			return nil, err
		}
		if exists {
			return &ToolResult{Error: "A tool with this domain already exists"}, nil
		}
	}

	name := strings.TrimSpace(in.Name)
	if name != t.Name {
		newSlug, err := s.UniqueSlug(ctx, name, t.ID)
		if err != nil {
			return nil, err
		}
		t.Slug = newSlug
	}

	t.Name = name
	t.URL = strings.TrimSpace(in.URL)
	t.Domain = domain
	t.LogoURL = strings.TrimSpace(in.LogoURL)
	t.AppImageURL = strings.TrimSpace(in.AppImageURL)
	if c := strings.TrimSpace(in.Category); c != "" {
		t.Category = c
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		t.Description = d
	}
	t.PromoCode, t.PromoDiscount = "", 0
	if in.PromoDiscount != nil {
		t.PromoCode = FormatPromoCode(in.PromoCode)
		t.PromoDiscount = *in.PromoDiscount
	}

	if err := s.tools.Update(ctx, t); err != nil {
		return nil, err
	}
	return &ToolResult{Success: true, ToolID: t.ID, Tool: t}, nil
}

// CheckToolLimits reports slot usage of a user's subscription tools.
// Advertisement tools never count.
func (s *Service) CheckToolLimits(ctx context.Context, userID string) (*LimitsCheck, error) {
	count, err := s.tools.CountByOwnerAndOrigin(ctx, userID, models.OriginSubscription)
	if err != nil {
		return nil, err
	}
	plan, limit, err := s.plans.EffectivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &LimitsCheck{Count: int(count), Limit: limit, Plan: plan}
	switch {
	case count == 0:
		res.CanAdd = true
	case limit == 0:
		res.Message = "An active subscription is required to add more tools"
	case int(count) >= limit:
		res.Message = entitlements.LimitReachedMessage(plan, int(count), limit)
	default:
		res.CanAdd = true
	}
	return res, nil
}

// UserTools lists every tool of a user, newest first.
func (s *Service) UserTools(ctx context.Context, userID string) ([]models.Tool, error) {
	return s.tools.ListByOwner(ctx, userID)
}

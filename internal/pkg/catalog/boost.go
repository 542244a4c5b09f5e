package catalog

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
)

const msgActiveAdvertisement = "This tool already has an active advertisement"

// DuplicateForBoost returns the advertisement-origin copy of a subscription
// tool, creating it on first use. An existing copy is reused once its
// pending advertisements are purged; a copy with an active advertisement
// is refused. The original tool is never modified.
func (s *Service) DuplicateForBoost(ctx context.Context, userID, originalID string) (*models.Tool, error) {
	orig, err := s.tools.GetByID(ctx, originalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("Tool not found")
		}
		return nil, err
	}
	if orig.SubmittedBy != userID {
		return nil, invalid("Tool not found")
	}
	if !orig.IsSubscriptionOrigin() {
		return nil, invalid("Only subscription tools can be boosted")
	}

	dupID := models.BoostToolID(orig.ID)
	dup, err := s.tools.GetByID(ctx, dupID)
	switch {
	case err == nil:
		active, err := s.ads.CountActiveForTool(ctx, dup.ID)
		if err != nil {
			return nil, err
		}
		if active > 0 {
			return nil, invalid(msgActiveAdvertisement)
		}
		purged, err := s.ads.DeletePendingForTool(ctx, dup.ID)
		if err != nil {
			return nil, err
		}
		if purged > 0 {
			log.Infof("[Catalog] Purged %d pending advertisements of boost tool %s", purged, dup.ID)
		}
		copyListing(dup, orig)
		if err := s.tools.Update(ctx, dup); err != nil {
			return nil, err
		}
		return dup, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	dupSlug, err := s.UniqueSlug(ctx, models.BoostToolSlug(orig.Slug), "")
	if err != nil {
		return nil, err
	}
	origID := orig.ID
	dup = &models.Tool{
		ID:            dupID,
		Slug:          dupSlug,
		Domain:        orig.Domain,
		Origin:        models.OriginAdvertisement,
		BoostedFromID: &origID,
		SubmittedBy:   userID,
		CreatedAt:     s.now(),
	}
	copyListing(dup, orig)
	if err := s.tools.Create(ctx, dup); err != nil {
		return nil, err
	}
	log.Infof("[Catalog] User %s created boost tool %s from %s", userID, dup.ID, orig.ID)
	return dup, nil
}

// copyListing copies the public listing fields of src onto a boost copy.
func copyListing(dst, src *models.Tool) {
	dst.Name = src.Name
	dst.Description = src.Description
	dst.URL = src.URL
	dst.LogoURL = src.LogoURL
	dst.AppImageURL = src.AppImageURL
	dst.Category = src.Category
	dst.PromoCode = src.PromoCode
	dst.PromoDiscount = src.PromoDiscount
	dst.RequiresSubscription = false
}

package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ToolFox/internal/pkg/stripehook"
)

// WebhookDispatcher processes one verified payment provider delivery.
type WebhookDispatcher interface {
	Handle(ctx context.Context, payload []byte, signature string) (*stripehook.Outcome, error)
}

type StripeWebhookController struct {
	dispatcher WebhookDispatcher
}

func NewStripeWebhookController(d WebhookDispatcher) *StripeWebhookController {
	return &StripeWebhookController{dispatcher: d}
}

// HandleStripeWebhook answers 2xx only when the event is stored and
// processed, so the provider retries everything else.
func (wc *StripeWebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	outcome, err := wc.dispatcher.Handle(ctx, rawBody, signature)
	switch {
	case errors.Is(err, stripehook.ErrInvalidSignature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, stripehook.ErrPersist):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	if outcome.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !outcome.Handled {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

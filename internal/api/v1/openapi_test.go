package apiv1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIsValid(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ToolFox API", doc.Info.Title)
}

func TestDocumentCoversCoreOperations(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	ops := Operations(doc)
	for _, want := range []string{
		"GET /api/cron/check-expired-subscriptions",
		"GET /api/cron/process-expired-advertisements",
		"POST /api/stripe/webhook",
		"GET /api/public/tools/:slug",
		"POST /api/selection",
		"POST /api/advertisements/checkout",
		"DELETE /admin/advertisements/:id",
		"POST /admin/users/:id/reconcile",
		"POST /admin/users/:id/ban",
		"DELETE /admin/users/:id/ban",
		"POST /admin/tools",
	} {
		assert.Contains(t, ops, want)
	}
}

func TestFiberPath(t *testing.T) {
	assert.Equal(t, "/api/public/categories/:category/tools", fiberPath("/api/public/categories/{category}/tools"))
}

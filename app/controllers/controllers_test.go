package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository/memory"
	"github.com/ManuelReschke/ToolFox/internal/pkg/advertising"
	"github.com/ManuelReschke/ToolFox/internal/pkg/billing"
	"github.com/ManuelReschke/ToolFox/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/ToolFox/internal/pkg/cache"
	"github.com/ManuelReschke/ToolFox/internal/pkg/catalog"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ToolFox/internal/pkg/moderation"
	"github.com/ManuelReschke/ToolFox/internal/pkg/payment/paymenttest"
	"github.com/ManuelReschke/ToolFox/internal/pkg/selection"
	"github.com/ManuelReschke/ToolFox/internal/pkg/stripehook"
	"github.com/ManuelReschke/ToolFox/internal/pkg/sweep"
	"github.com/ManuelReschke/ToolFox/internal/pkg/usercontext"
)

const testUserHeader = "X-Test-User"

type harness struct {
	store   *memory.Store
	gateway *paymenttest.Gateway
	billing *billing.Service
	ads     *advertising.Manager
	app     *fiber.App
}

// asUser plays the session middleware: the header names the signed-in user
// and "admin" grants admin rights.
func asUser(c *fiber.Ctx) error {
	id := c.Get(testUserHeader)
	usercontext.Set(c, usercontext.UserContext{UserID: id, IsLoggedIn: id != "", IsAdmin: id == "admin"})
	return c.Next()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	gw := paymenttest.New()
	m := metrics.New()

	billingSvc := billing.NewService(billingtest.NewRepository(), repos,
		billing.WithMetrics(m),
		billing.WithPrices(map[string]string{"plus-monthly": "price_plus_m"}))
	tools := catalog.NewService(repos, billingSvc)
	ads := advertising.NewManager(repos, tools, gw, advertising.WithMetrics(m))
	gate := selection.NewGate(repos, billingSvc, selection.WithMetrics(m))

	toolCtl := NewToolController(tools)
	selCtl := NewSelectionController(gate)
	adCtl := NewAdvertisementController(ads, repos.User, "https://toolfox.test/")
	billCtl := NewBillingController(billingSvc, gw, repos.User, "https://toolfox.test")
	pubCtl := NewPublicController(tools)
	modCtl := NewModerationController(tools, moderation.NewService(repos.User))

	app := fiber.New()
	app.Use(asUser)
	app.Get("/api/public/tools", pubCtl.HandleHomepageTools)
	app.Get("/api/public/tools/:slug", pubCtl.HandleToolBySlug)
	app.Get("/api/public/advertisements", adCtl.HandleActiveAdvertisements)
	app.Get("/api/public/plans", billCtl.HandlePlans)
	app.Get("/api/tools", toolCtl.HandleListTools)
	app.Post("/api/tools", toolCtl.HandleCreateTool)
	app.Get("/api/tools/limits", toolCtl.HandleToolLimits)
	app.Patch("/api/tools/:id", toolCtl.HandleUpdateTool)
	app.Get("/api/selection", selCtl.HandleGetSelection)
	app.Post("/api/selection", selCtl.HandleSaveSelection)
	app.Post("/api/advertisements/checkout", adCtl.HandleCheckout)
	app.Get("/api/advertisements/mine", adCtl.HandleMyAdvertisements)
	app.Post("/api/billing/checkout", billCtl.HandleCheckout)
	app.Post("/api/billing/portal", billCtl.HandlePortal)
	app.Delete("/admin/advertisements/:id", adCtl.HandleDeletePending)
	app.Post("/admin/users/:id/reconcile", billCtl.HandleReconcileUser)
	app.Post("/admin/tools", modCtl.HandleCreateTool)
	app.Post("/admin/users/:id/ban", modCtl.HandleBanUser)
	app.Delete("/admin/users/:id/ban", modCtl.HandleUnbanUser)

	store.PutUser(models.User{ID: "u1", Name: "Ada", Email: "ada@example.com"})
	return &harness{store: store, gateway: gw, billing: billingSvc, ads: ads, app: app}
}

func (h *harness) do(t *testing.T, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	return doRequest(t, h.app, method, path, user, body)
}

func doRequest(t *testing.T, app *fiber.App, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func toolBody(name, url string) map[string]any {
	return map[string]any{"name": name, "url": url, "logo_url": "https://cdn.example.com/logo.png"}
}

func TestUserRoutesRequireSession(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/tools", "/api/tools/limits", "/api/selection", "/api/advertisements/mine"} {
		status, body := h.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status, path)
		assert.Equal(t, "unauthorized", body["error"], path)
	}
}

func TestCreateToolFlow(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodPost, "/api/tools", "u1", toolBody("Focus Timer", "https://www.focus.example"))
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, true, body["success"])
	toolID, _ := body["tool_id"].(string)
	require.NotEmpty(t, toolID)

	stored, ok := h.store.Tool(toolID)
	require.True(t, ok)
	assert.False(t, stored.Featured)
	assert.Equal(t, "focus.example", stored.Domain)

	status, body = h.do(t, http.MethodPost, "/api/tools", "u1", toolBody("Focus Timer 2", "https://focus.example/other"))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])

	status, body = h.do(t, http.MethodGet, "/api/tools", "u1", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["tools"], 1)
}

func TestCreateToolValidation(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodPost, "/api/tools", "u1", map[string]any{"name": "X"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
}

func TestUpdateToolOwnership(t *testing.T) {
	h := newHarness(t)
	h.store.PutTool(models.Tool{ID: "t1", Slug: "t1", Name: "T1", SubmittedBy: "someone-else", Origin: models.OriginSubscription})

	status, body := h.do(t, http.MethodPatch, "/api/tools/t1", "u1", toolBody("Renamed", "https://renamed.example"))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Tool not found", body["error"])
}

func TestToolLimitsWithoutSubscription(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodGet, "/api/tools/limits", "u1", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), body["limit"])
}

func TestSelectionState(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodGet, "/api/selection", "u1", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["eligible"])
	assert.Equal(t, false, body["needs_selection"])

	status, _ = h.do(t, http.MethodGet, "/api/selection", "ghost", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestSaveSelectionWithoutSubscriptionIsRejected(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodPost, "/api/selection", "u1", map[string]any{"tool_ids": []string{"t1"}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "An active subscription is required to select tools", body["error"])
}

func TestAdvertisementCheckout(t *testing.T) {
	h := newHarness(t)
	req := map[string]any{
		"tool_data": toolBody("Ad Tool", "https://adtool.example"),
		"placement": "homepage",
		"duration":  7,
	}
	status, body := h.do(t, http.MethodPost, "/api/advertisements/checkout", "u1", req)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["url"], "https://checkout.stripe.test/")

	require.Len(t, h.gateway.AdCheckouts, 1)
	assert.Equal(t, "https://toolfox.test/dashboard/advertisements?canceled=true", h.gateway.AdCheckouts[0].CancelURL)
}

func TestAdvertisementCheckoutRejectsBadPlacement(t *testing.T) {
	h := newHarness(t)
	req := map[string]any{"tool_data": toolBody("Ad Tool", "https://adtool.example"), "placement": "sidebar", "duration": 7}
	status, body := h.do(t, http.MethodPost, "/api/advertisements/checkout", "u1", req)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid placement or duration", body["error"])
}

func TestActiveAdvertisementsPlacement(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodGet, "/api/public/advertisements?placement=homepage", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["advertisements"])

	status, _ = h.do(t, http.MethodGet, "/api/public/advertisements?placement=footer", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestBillingPortal(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodPost, "/api/billing/portal", "u1", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "no_billing_account", body["error"])

	h.store.PutUser(models.User{ID: "u2", Name: "Bo", Email: "bo@example.com", StripeCustomerID: "cus_9"})
	status, body = h.do(t, http.MethodPost, "/api/billing/portal", "u2", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "https://billing.stripe.test/cus_9", body["url"])
}

func TestBillingCheckout(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodPost, "/api/billing/checkout", "u1", map[string]any{"plan": "plus-monthly"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	require.Len(t, h.gateway.SubscriptionCheckouts, 1)
	assert.Equal(t, "price_plus_m", h.gateway.SubscriptionCheckouts[0].PriceID)

	status, body = h.do(t, http.MethodPost, "/api/billing/checkout", "u1", map[string]any{"plan": "gold"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Unknown plan", body["error"])
}

func TestPlans(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodGet, "/api/public/plans", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["plans"], 6)
}

func TestPublicToolBySlug(t *testing.T) {
	h := newHarness(t)
	h.store.PutTool(models.Tool{ID: "t1", Slug: "visible", Name: "Visible", Featured: true, SubmittedBy: "u1", Origin: models.OriginSubscription})
	h.store.PutTool(models.Tool{ID: "t2", Slug: "hidden", Name: "Hidden", SubmittedBy: "u1", Origin: models.OriginSubscription})

	status, body := h.do(t, http.MethodGet, "/api/public/tools/visible", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, body["tool"])

	status, _ = h.do(t, http.MethodGet, "/api/public/tools/hidden", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = h.do(t, http.MethodGet, "/api/public/tools?page=1&page_size=10", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
}

func TestAdminDeletePending(t *testing.T) {
	h := newHarness(t)
	h.store.PutTool(models.Tool{ID: "t1", Slug: "t1", SubmittedBy: "u1", Origin: models.OriginAdvertisement})
	now := time.Now()
	h.store.PutAdvertisement(models.ToolAdvertisement{ID: "pending", ToolID: "t1", Status: models.AdvertisementPending, StartDate: now, EndDate: now.AddDate(0, 0, 3)})
	h.store.PutAdvertisement(models.ToolAdvertisement{ID: "live", ToolID: "t1", Status: models.AdvertisementActive, StartDate: now, EndDate: now.AddDate(0, 0, 3)})

	status, _ := h.do(t, http.MethodDelete, "/admin/advertisements/pending", "admin", nil)
	assert.Equal(t, fiber.StatusOK, status)
	_, ok := h.store.Advertisement("pending")
	assert.False(t, ok)

	status, body := h.do(t, http.MethodDelete, "/admin/advertisements/live", "admin", nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "not_pending", body["error"])

	status, _ = h.do(t, http.MethodDelete, "/admin/advertisements/missing", "admin", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminReconcileUser(t *testing.T) {
	h := newHarness(t)
	h.store.PutTool(models.Tool{ID: "t1", Slug: "t1", SubmittedBy: "u1", Featured: true, Origin: models.OriginSubscription, CreatedAt: time.Now()})

	status, body := h.do(t, http.MethodPost, "/admin/users/u1/reconcile?force=true", "admin", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "deactivated", body["action"])
	assert.Empty(t, h.store.FeaturedIDs("u1"))

	status, _ = h.do(t, http.MethodPost, "/admin/users/ghost/reconcile", "admin", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

type fakeRunner struct {
	err     error
	last    []byte
	lastErr error
}

func (f fakeRunner) Subscriptions(context.Context) (*billing.ExpiryReport, *sweep.Summary, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	report := &billing.ExpiryReport{Expired: 1, Results: []billing.SweepItem{{UserID: "u1", Type: billing.SweepItemExpired, Success: true}}}
	return report, &sweep.Summary{Sweep: sweep.Subscriptions, DurationMS: 12, Report: report}, nil
}

func (f fakeRunner) Advertisements(context.Context) (*advertising.ExpiryReport, *sweep.Summary, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	report := &advertising.ExpiryReport{Processed: 2, Disabled: 1, Skipped: 1}
	return report, &sweep.Summary{Sweep: sweep.Advertisements, Report: report}, nil
}

func (f fakeRunner) Run(ctx context.Context, name string) (*sweep.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sweep.Summary{Sweep: name}, nil
}

func (f fakeRunner) LastRun(context.Context, string) ([]byte, error) {
	return f.last, f.lastErr
}

func cronApp(r fakeRunner) *fiber.App {
	cc := NewCronController(r)
	ac := NewAdminController(r)
	app := fiber.New()
	app.Get("/api/cron/check-expired-subscriptions", cc.HandleCheckExpiredSubscriptions)
	app.Get("/api/cron/process-expired-advertisements", cc.HandleProcessExpiredAdvertisements)
	app.Post("/admin/sweeps/:name/run", ac.HandleRunSweep)
	app.Get("/admin/sweeps/:name/last", ac.HandleLastSweep)
	return app
}

func TestCronSummaries(t *testing.T) {
	app := cronApp(fakeRunner{})

	status, body := doRequest(t, app, http.MethodGet, "/api/cron/check-expired-subscriptions", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	processed := body["processed"].(map[string]any)
	assert.Equal(t, float64(1), processed["expired"])
	assert.Len(t, body["results"], 1)

	status, body = doRequest(t, app, http.MethodGet, "/api/cron/process-expired-advertisements", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	processed = body["processed"].(map[string]any)
	assert.Equal(t, float64(1), processed["disabled"])
	assert.Equal(t, float64(1), processed["skipped"])
	assert.Equal(t, []any{}, body["results"])
}

func TestCronLockedSweep(t *testing.T) {
	app := cronApp(fakeRunner{err: sweep.ErrAlreadyRunning})
	status, body := doRequest(t, app, http.MethodGet, "/api/cron/check-expired-subscriptions", "", nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "sweep_running", body["error"])

	status, _ = doRequest(t, app, http.MethodPost, "/admin/sweeps/advertisements/run", "", nil)
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestAdminLastSweep(t *testing.T) {
	app := cronApp(fakeRunner{lastErr: cache.ErrNoLastRun})
	status, _ := doRequest(t, app, http.MethodGet, "/admin/sweeps/subscriptions/last", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = doRequest(t, app, http.MethodGet, "/admin/sweeps/everything/last", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	app = cronApp(fakeRunner{last: []byte(`{"sweep":"subscriptions","duration_ms":4}`)})
	status, body := doRequest(t, app, http.MethodGet, "/admin/sweeps/subscriptions/last", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "subscriptions", body["sweep"])
}

type fakeDispatcher struct {
	outcome *stripehook.Outcome
	err     error
}

func (f fakeDispatcher) Handle(context.Context, []byte, string) (*stripehook.Outcome, error) {
	return f.outcome, f.err
}

func TestStripeWebhookResponses(t *testing.T) {
	tests := []struct {
		name       string
		signature  string
		dispatcher fakeDispatcher
		wantStatus int
		wantBody   map[string]any
	}{
		{"missing signature", "", fakeDispatcher{}, fiber.StatusBadRequest, map[string]any{"error": "invalid_signature"}},
		{"bad signature", "t=1,v1=x", fakeDispatcher{err: stripehook.ErrInvalidSignature}, fiber.StatusBadRequest, map[string]any{"error": "invalid_signature"}},
		{"persist failure", "sig", fakeDispatcher{err: stripehook.ErrPersist}, fiber.StatusInternalServerError, map[string]any{"error": "webhook_persist_failed"}},
		{"processing failure", "sig", fakeDispatcher{outcome: &stripehook.Outcome{}, err: stripehook.ErrProcessing}, fiber.StatusInternalServerError, map[string]any{"error": "processing_failed"}},
		{"duplicate", "sig", fakeDispatcher{outcome: &stripehook.Outcome{Duplicate: true}}, fiber.StatusOK, map[string]any{"ok": true, "duplicate": true}},
		{"ignored", "sig", fakeDispatcher{outcome: &stripehook.Outcome{}}, fiber.StatusOK, map[string]any{"ok": true, "ignored": true}},
		{"handled", "sig", fakeDispatcher{outcome: &stripehook.Outcome{Handled: true}}, fiber.StatusOK, map[string]any{"ok": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/api/stripe/webhook", NewStripeWebhookController(tt.dispatcher).HandleStripeWebhook)

			req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
			if tt.signature != "" {
				req.Header.Set("Stripe-Signature", tt.signature)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestAdminCreateTool(t *testing.T) {
	h := newHarness(t)
	in := map[string]any{"name": "Fox Notes", "url": "https://foxnotes.app", "logo_url": "https://cdn.example.com/logo.png"}

	status, body := h.do(t, http.MethodPost, "/admin/tools", "admin", in)
	require.Equal(t, fiber.StatusCreated, status, body)
	tool, ok := h.store.Tool(body["tool_id"].(string))
	require.True(t, ok)
	assert.True(t, tool.Featured)
	assert.Equal(t, "admin", tool.SubmittedBy)

	status, body = h.do(t, http.MethodPost, "/admin/tools", "admin", in)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "A tool with this domain already exists", body["error"])
}

func TestAdminBanAndUnban(t *testing.T) {
	h := newHarness(t)
	future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantBanned bool
	}{
		{"ban without reason", http.MethodPost, "/admin/users/u1/ban", map[string]any{"reason": ""}, fiber.StatusBadRequest, false},
		{"unknown user", http.MethodPost, "/admin/users/nobody/ban", map[string]any{"reason": "spam"}, fiber.StatusNotFound, false},
		{"temporary ban", http.MethodPost, "/admin/users/u1/ban", map[string]any{"reason": "spam", "expires_at": future}, fiber.StatusOK, true},
		{"unban", http.MethodDelete, "/admin/users/u1/ban", nil, fiber.StatusOK, false},
	}
	for _, tt := range tests {
		status, body := h.do(t, tt.method, tt.path, "admin", tt.body)
		assert.Equal(t, tt.wantStatus, status, tt.name)
		u, ok := h.store.User("u1")
		require.True(t, ok)
		assert.Equal(t, tt.wantBanned, u.Banned, tt.name)
		if status == fiber.StatusOK {
			assert.Equal(t, tt.wantBanned, body["banned"], tt.name)
		}
	}
}

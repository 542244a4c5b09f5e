// Package bootstrap assembles the services shared by the web server and the
// operations CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/controllers"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"github.com/ManuelReschke/ToolFox/internal/pkg/advertising"
	"github.com/ManuelReschke/ToolFox/internal/pkg/archive"
	"github.com/ManuelReschke/ToolFox/internal/pkg/billing"
	"github.com/ManuelReschke/ToolFox/internal/pkg/cache"
	"github.com/ManuelReschke/ToolFox/internal/pkg/catalog"
	"github.com/ManuelReschke/ToolFox/internal/pkg/config"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ToolFox/internal/pkg/moderation"
	"github.com/ManuelReschke/ToolFox/internal/pkg/payment"
	"github.com/ManuelReschke/ToolFox/internal/pkg/router"
	"github.com/ManuelReschke/ToolFox/internal/pkg/scheduler"
	"github.com/ManuelReschke/ToolFox/internal/pkg/selection"
	"github.com/ManuelReschke/ToolFox/internal/pkg/stripehook"
	"github.com/ManuelReschke/ToolFox/internal/pkg/sweep"
)

// Services holds the wired application core.
type Services struct {
	Config      *config.Config
	Repos       *repository.Repositories
	Metrics     *metrics.Metrics
	Gateway     payment.Gateway
	Billing     *billing.Service
	Catalog     *catalog.Service
	Advertising *advertising.Manager
	Selection   *selection.Gate
	Moderation  *moderation.Service
	Webhooks    *stripehook.Dispatcher
	Sweeps      *sweep.Runner
}

// Options carries the infrastructure handles. Redis is optional: without it
// sweeps run unlocked and last runs are not remembered.
type Options struct {
	Config  *config.Config
	Repos   *repository.Repositories
	Billing billing.Repository
	Gateway payment.Gateway
	Redis   redis.UniversalClient
	Metrics *metrics.Metrics
}

// FromDB builds Options backed by MySQL and the live Stripe API.
func FromDB(cfg *config.Config, db *gorm.DB, rdb redis.UniversalClient) Options {
	return Options{
		Config:  cfg,
		Repos:   repository.NewRepositories(db),
		Billing: billing.NewRepository(db),
		Gateway: payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Currency),
		Redis:   rdb,
		Metrics: metrics.Get(),
	}
}

// New wires the domain services. Redis enables sweep locking and last-run
// storage; the archive client is created only when enabled in config.
func New(ctx context.Context, opts Options) (*Services, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Get()
	}

	billingSvc := billing.NewService(opts.Billing, opts.Repos,
		billing.WithPrices(cfg.Stripe.Prices.ByPlan()),
		billing.WithMetrics(m))
	catalogSvc := catalog.NewService(opts.Repos, billingSvc)
	ads := advertising.NewManager(opts.Repos, catalogSvc, opts.Gateway,
		advertising.WithMetrics(m),
		advertising.WithCurrency(cfg.Stripe.Currency))
	gate := selection.NewGate(opts.Repos, billingSvc, selection.WithMetrics(m))
	hooks := stripehook.NewDispatcher(billingSvc, ads, opts.Gateway, opts.Repos.User, m)

	runnerOpts := []sweep.Option{sweep.WithMetrics(m)}
	if opts.Redis != nil {
		runnerOpts = append(runnerOpts,
			sweep.WithLocker(sweep.RedisLocker(cache.NewLocker(opts.Redis)), cfg.Scheduler.LockTTL),
			sweep.WithLastRuns(cache.NewRunStore(opts.Redis)))
	}
	if cfg.Archive.Enabled {
		client, err := archive.NewClient(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		runnerOpts = append(runnerOpts, sweep.WithArchive(client))
		log.Infof("[Archive] Sweep summaries go to s3://%s/%s", cfg.Archive.Bucket, cfg.Archive.Prefix)
	}
	runner := sweep.NewRunner(billingSvc, ads, runnerOpts...)

	return &Services{
		Config:      cfg,
		Repos:       opts.Repos,
		Metrics:     m,
		Gateway:     opts.Gateway,
		Billing:     billingSvc,
		Catalog:     catalogSvc,
		Advertising: ads,
		Selection:   gate,
		Moderation:  moderation.NewService(opts.Repos.User),
		Webhooks:    hooks,
		Sweeps:      runner,
	}, nil
}

// Controllers builds the HTTP handlers.
func (s *Services) Controllers() router.Controllers {
	return router.Controllers{
		Cron:          controllers.NewCronController(s.Sweeps),
		StripeWebhook: controllers.NewStripeWebhookController(s.Webhooks),
		Tools:         controllers.NewToolController(s.Catalog),
		Selection:     controllers.NewSelectionController(s.Selection),
		Advertising:   controllers.NewAdvertisementController(s.Advertising, s.Repos.User, s.Config.AppURL),
		Billing:       controllers.NewBillingController(s.Billing, s.Gateway, s.Repos.User, s.Config.AppURL),
		Public:        controllers.NewPublicController(s.Catalog),
		Admin:         controllers.NewAdminController(s.Sweeps),
		Moderation:    controllers.NewModerationController(s.Catalog, s.Moderation),
		Bans:          s.Moderation,
	}
}

// Scheduler builds the in-process sweep scheduler from the config.
func (s *Services) Scheduler() *scheduler.Manager {
	return scheduler.NewManager(s.Sweeps,
		scheduler.Job{Sweep: sweep.Subscriptions, Interval: s.Config.Scheduler.SubscriptionInterval},
		scheduler.Job{Sweep: sweep.Advertisements, Interval: s.Config.Scheduler.AdvertisementInterval},
	)
}

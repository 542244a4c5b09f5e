// Package config holds the typed settings of the billing and advertising core.
// Database and cache settings are read through env.GetEnv like before.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
	appenv "github.com/ManuelReschke/ToolFox/internal/pkg/env"
)

// PriceIDs are the Stripe price ids of the six subscription plans.
type PriceIDs struct {
	StarterMonthly string `env:"STARTER_MONTHLY"`
	StarterYearly  string `env:"STARTER_YEARLY"`
	PlusMonthly    string `env:"PLUS_MONTHLY"`
	PlusYearly     string `env:"PLUS_YEARLY"`
	MaxMonthly     string `env:"MAX_MONTHLY"`
	MaxYearly      string `env:"MAX_YEARLY"`
}

// ByPlan maps plan identifiers to configured price ids, skipping blanks.
func (p PriceIDs) ByPlan() map[string]string {
	all := map[string]string{
		entitlements.PlanStarterMonthly: p.StarterMonthly,
		entitlements.PlanStarterYearly:  p.StarterYearly,
		entitlements.PlanPlusMonthly:    p.PlusMonthly,
		entitlements.PlanPlusYearly:     p.PlusYearly,
		entitlements.PlanMaxMonthly:     p.MaxMonthly,
		entitlements.PlanMaxYearly:      p.MaxYearly,
	}
	out := make(map[string]string, len(all))
	for plan, id := range all {
		if id = strings.TrimSpace(id); id != "" {
			out[plan] = id
		}
	}
	return out
}

type Stripe struct {
	SecretKey     string   `env:"SECRET_KEY"`
	WebhookSecret string   `env:"WEBHOOK_SECRET"`
	Currency      string   `env:"CURRENCY" envDefault:"usd"`
	Prices        PriceIDs `envPrefix:"PRICE_"`
}

type Scheduler struct {
	Enabled               bool          `env:"ENABLED" envDefault:"false"`
	SubscriptionInterval  time.Duration `env:"SUBSCRIPTION_INTERVAL" envDefault:"1h"`
	AdvertisementInterval time.Duration `env:"ADVERTISEMENT_INTERVAL" envDefault:"15m"`
	LockTTL               time.Duration `env:"LOCK_TTL" envDefault:"10m"`
}

// Archive configures upload of sweep reports to S3 compatible storage.
type Archive struct {
	Enabled         bool   `env:"ENABLED" envDefault:"false"`
	Bucket          string `env:"BUCKET"`
	Prefix          string `env:"PREFIX" envDefault:"sweeps"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
	EndpointURL     string `env:"ENDPOINT_URL"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

type Config struct {
	AppURL          string    `env:"APP_URL" envDefault:"http://localhost:4000"`
	CronSecret      string    `env:"CRON_SECRET"`
	MetricsUser     string    `env:"METRICS_USER" envDefault:"admin"`
	MetricsPassword string    `env:"METRICS_PASSWORD"`
	Stripe          Stripe    `envPrefix:"STRIPE_"`
	Scheduler       Scheduler `envPrefix:"SCHEDULER_"`
	Archive         Archive   `envPrefix:"ARCHIVE_"`
}

// Validate checks settings that only matter when a feature is switched on.
func (c *Config) Validate() error {
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("ARCHIVE_BUCKET is required when ARCHIVE_ENABLED is true")
	}
	if c.Scheduler.Enabled {
		if c.Scheduler.SubscriptionInterval <= 0 || c.Scheduler.AdvertisementInterval <= 0 {
			return fmt.Errorf("scheduler intervals must be positive")
		}
	}
	return nil
}

// Parse reads a Config from the given key/value environment.
func Parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	current *Config
	mu      sync.RWMutex
)

// Load parses the process environment merged with the loaded .env file and
// stores the result for Get.
func Load() (*Config, error) {
	cfg, err := Parse(appenv.Environ())
	if err != nil {
		return nil, err
	}
	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the last loaded config. It panics when Load was never called.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		panic("config not loaded. Call config.Load first.")
	}
	return current
}

// Set replaces the current config, used by tests and the CLI.
func Set(cfg *Config) {
	mu.Lock()
	current = cfg
	mu.Unlock()
}

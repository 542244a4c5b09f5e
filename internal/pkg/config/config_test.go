package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4000", cfg.AppURL)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, time.Hour, cfg.Scheduler.SubscriptionInterval)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.AdvertisementInterval)
	assert.Equal(t, "sweeps", cfg.Archive.Prefix)
}

func TestParseNestedPrefixes(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"CRON_SECRET":                     "s3cret",
		"STRIPE_SECRET_KEY":               "sk_test_1",
		"STRIPE_WEBHOOK_SECRET":           "whsec_1",
		"STRIPE_PRICE_PLUS_MONTHLY":       "price_plus_m",
		"STRIPE_PRICE_MAX_YEARLY":         " price_max_y ",
		"SCHEDULER_ENABLED":               "true",
		"SCHEDULER_SUBSCRIPTION_INTERVAL": "30m",
	})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.CronSecret)
	assert.Equal(t, "sk_test_1", cfg.Stripe.SecretKey)
	assert.Equal(t, "whsec_1", cfg.Stripe.WebhookSecret)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.SubscriptionInterval)

	byPlan := cfg.Stripe.Prices.ByPlan()
	assert.Equal(t, map[string]string{
		"plus-monthly": "price_plus_m",
		"max-yearly":   "price_max_y",
	}, byPlan)
}

func TestValidateArchiveNeedsBucket(t *testing.T) {
	_, err := Parse(map[string]string{"ARCHIVE_ENABLED": "true"})
	assert.Error(t, err)

	cfg, err := Parse(map[string]string{"ARCHIVE_ENABLED": "true", "ARCHIVE_BUCKET": "reports"})
	require.NoError(t, err)
	assert.Equal(t, "reports", cfg.Archive.Bucket)
}

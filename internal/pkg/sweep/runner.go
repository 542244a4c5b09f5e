// Package sweep runs the subscription and advertisement expiry sweeps with
// a shared lock, metrics and optional archiving. HTTP cron, the in-process
// scheduler and the ops CLI all go through a Runner.
package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/internal/pkg/advertising"
	"github.com/ManuelReschke/ToolFox/internal/pkg/billing"
	"github.com/ManuelReschke/ToolFox/internal/pkg/cache"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
)

const (
	Subscriptions  = "subscriptions"
	Advertisements = "advertisements"
)

// ErrAlreadyRunning is returned when another process holds the sweep lock.
var ErrAlreadyRunning = errors.New("sweep already running")

type SubscriptionSweeper interface {
	CheckExpiredSubscriptions(ctx context.Context) (*billing.ExpiryReport, error)
}

type AdvertisementSweeper interface {
	ExpireSweep(ctx context.Context) (*advertising.ExpiryReport, error)
}

// Unlocker releases a held lock.
type Unlocker interface {
	Release(ctx context.Context) error
}

// Locker grants named expiring locks.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Unlocker, error)
}

// Archiver stores a summary document and returns where it went.
type Archiver interface {
	Store(ctx context.Context, sweep string, at time.Time, body []byte) (string, error)
}

// LastRunStore remembers the latest summary per sweep.
type LastRunStore interface {
	SaveLastRun(ctx context.Context, sweep string, body []byte) error
	LastRun(ctx context.Context, sweep string) ([]byte, error)
}

// Summary wraps a sweep report with run metadata.
type Summary struct {
	Sweep      string    `json:"sweep"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	Report     any       `json:"report"`
}

type Runner struct {
	subscriptions  SubscriptionSweeper
	advertisements AdvertisementSweeper
	locker         Locker
	archive        Archiver
	lastRuns       LastRunStore
	lockTTL        time.Duration
	metrics        *metrics.Metrics
	now            func() time.Time
}

type Option func(*Runner)

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(r *Runner) {
		r.locker = l
		r.lockTTL = ttl
	}
}

func WithArchive(a Archiver) Option {
	return func(r *Runner) { r.archive = a }
}

func WithLastRuns(s LastRunStore) Option {
	return func(r *Runner) { r.lastRuns = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(subs SubscriptionSweeper, ads AdvertisementSweeper, opts ...Option) *Runner {
	r := &Runner{
		subscriptions:  subs,
		advertisements: ads,
		lockTTL:        10 * time.Minute,
		metrics:        metrics.Get(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscriptions runs the expired-subscription sweep.
func (r *Runner) Subscriptions(ctx context.Context) (*billing.ExpiryReport, *Summary, error) {
	var report *billing.ExpiryReport
	summary, err := r.run(ctx, Subscriptions, func(ctx context.Context) (any, error) {
		var err error
		report, err = r.subscriptions.CheckExpiredSubscriptions(ctx)
		return report, err
	})
	return report, summary, err
}

// Advertisements runs the advertisement expiry sweep.
func (r *Runner) Advertisements(ctx context.Context) (*advertising.ExpiryReport, *Summary, error) {
	var report *advertising.ExpiryReport
	summary, err := r.run(ctx, Advertisements, func(ctx context.Context) (any, error) {
		var err error
		report, err = r.advertisements.ExpireSweep(ctx)
		return report, err
	})
	return report, summary, err
}

// Run executes a sweep by name.
func (r *Runner) Run(ctx context.Context, name string) (*Summary, error) {
	switch name {
	case Subscriptions:
		_, s, err := r.Subscriptions(ctx)
		return s, err
	case Advertisements:
		_, s, err := r.Advertisements(ctx)
		return s, err
	default:
		return nil, fmt.Errorf("unknown sweep %q", name)
	}
}

// LastRun returns the stored summary of the latest run of a sweep.
func (r *Runner) LastRun(ctx context.Context, name string) ([]byte, error) {
	if r.lastRuns == nil {
		return nil, cache.ErrNoLastRun
	}
	return r.lastRuns.LastRun(ctx, name)
}

func (r *Runner) run(ctx context.Context, name string, fn func(context.Context) (any, error)) (*Summary, error) {
	if r.locker != nil {
		lock, err := r.locker.Acquire(ctx, "sweep:"+name, r.lockTTL)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				r.metrics.RecordSweep(name, "locked", 0)
				return nil, ErrAlreadyRunning
			}
			return nil, fmt.Errorf("acquire %s sweep lock: %w", name, err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warnf("[Sweep] Failed to release %s lock: %v", name, err)
			}
		}()
	}

	started := r.now()
	report, err := fn(ctx)
	took := r.now().Sub(started)
	if err != nil {
		r.metrics.RecordSweep(name, "failed", took)
		return nil, err
	}
	r.metrics.RecordSweep(name, "succeeded", took)

	summary := &Summary{Sweep: name, StartedAt: started, DurationMS: took.Milliseconds(), Report: report}
	r.persist(ctx, summary)
	return summary, nil
}

// persist archives and remembers a summary. Failures are logged only.
func (r *Runner) persist(ctx context.Context, summary *Summary) {
	if r.archive == nil && r.lastRuns == nil {
		return
	}
	if r.archive != nil {
		body, err := json.Marshal(summary)
		if err != nil {
			log.Errorf("[Sweep] Failed to encode %s summary: %v", summary.Sweep, err)
			return
		}
		key, err := r.archive.Store(ctx, summary.Sweep, summary.StartedAt, body)
		if err != nil {
			log.Errorf("[Sweep] Failed to archive %s summary: %v", summary.Sweep, err)
		} else {
			summary.ArchiveKey = key
		}
	}
	if r.lastRuns != nil {
		body, err := json.Marshal(summary)
		if err != nil {
			log.Errorf("[Sweep] Failed to encode %s summary: %v", summary.Sweep, err)
			return
		}
		if err := r.lastRuns.SaveLastRun(ctx, summary.Sweep, body); err != nil {
			log.Warnf("[Sweep] Failed to store last %s run: %v", summary.Sweep, err)
		}
	}
}

// RedisLocker adapts a cache.Locker.
func RedisLocker(l *cache.Locker) Locker {
	return redisLocker{l}
}

type redisLocker struct{ l *cache.Locker }

func (r redisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Unlocker, error) {
	lock, err := r.l.Acquire(ctx, name, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

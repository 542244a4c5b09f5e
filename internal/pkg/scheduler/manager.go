// Package scheduler runs the expiry sweeps on tickers inside the web
// process, as an alternative to an external cron trigger.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/internal/pkg/sweep"
)

// SweepRunner executes a sweep by name.
type SweepRunner interface {
	Run(ctx context.Context, name string) (*sweep.Summary, error)
}

// Job is one sweep and its interval.
type Job struct {
	Sweep    string
	Interval time.Duration
}

// Manager manages the periodic sweep workers
type Manager struct {
	runner  SweepRunner
	jobs    []Job
	timeout time.Duration
	tickers []*time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewManager creates a manager for the given jobs. Jobs with a non-positive
// interval are ignored.
func NewManager(runner SweepRunner, jobs ...Job) *Manager {
	valid := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Interval > 0 {
			valid = append(valid, j)
		}
	}
	return &Manager{
		runner:  runner,
		jobs:    valid,
		timeout: 5 * time.Minute,
		stopCh:  make(chan struct{}),
	}
}

// Start starts one worker per job
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	m.tickers = m.tickers[:0]
	log.Info("[Scheduler] Starting sweep workers")

	for _, job := range m.jobs {
		ticker := time.NewTicker(job.Interval)
		m.tickers = append(m.tickers, ticker)
		m.wg.Add(1)
		go m.worker(job, ticker, m.stopCh)
	}

	log.Infof("[Scheduler] Started %d sweep workers", len(m.jobs))
}

// Stop stops all workers and waits for running sweeps to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Scheduler] Stopping sweep workers...")
	for _, t := range m.tickers {
		t.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	log.Info("[Scheduler] Stopped successfully")
}

func (m *Manager) worker(job Job, ticker *time.Ticker, stopCh <-chan struct{}) {
	defer m.wg.Done()
	log.Infof("[Scheduler] Started %s worker (interval: %s)", job.Sweep, job.Interval)

	for {
		select {
		case <-stopCh:
			log.Infof("[Scheduler] %s worker stopping", job.Sweep)
			return
		case <-ticker.C:
			m.runOnce(job.Sweep)
		}
	}
}

func (m *Manager) runOnce(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	summary, err := m.runner.Run(ctx, name)
	switch {
	case errors.Is(err, sweep.ErrAlreadyRunning):
		log.Infof("[Scheduler] %s sweep skipped, another run holds the lock", name)
	case err != nil:
		log.Errorf("[Scheduler] %s sweep failed: %v", name, err)
	default:
		log.Infof("[Scheduler] %s sweep finished in %dms", name, summary.DurationMS)
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

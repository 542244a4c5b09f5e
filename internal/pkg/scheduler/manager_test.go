package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/ToolFox/internal/pkg/sweep"
)

type countingRunner struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (r *countingRunner) Run(_ context.Context, name string) (*sweep.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name]++
	if r.err != nil {
		return nil, r.err
	}
	return &sweep.Summary{Sweep: name}, nil
}

func (r *countingRunner) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func TestNewManagerDropsDisabledJobs(t *testing.T) {
	m := NewManager(&countingRunner{calls: map[string]int{}},
		Job{Sweep: sweep.Subscriptions, Interval: time.Hour},
		Job{Sweep: sweep.Advertisements, Interval: 0})

	assert.Len(t, m.jobs, 1)
	assert.NotNil(t, m.stopCh)
	assert.False(t, m.IsRunning())
}

func TestManagerRunsJobsOnTick(t *testing.T) {
	runner := &countingRunner{calls: map[string]int{}}
	m := NewManager(runner,
		Job{Sweep: sweep.Subscriptions, Interval: 10 * time.Millisecond},
		Job{Sweep: sweep.Advertisements, Interval: 10 * time.Millisecond})

	m.Start()
	assert.True(t, m.IsRunning())

	assert.Eventually(t, func() bool {
		return runner.count(sweep.Subscriptions) >= 2 && runner.count(sweep.Advertisements) >= 2
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.False(t, m.IsRunning())

	after := runner.count(sweep.Subscriptions)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runner.count(sweep.Subscriptions))
}

func TestManagerSurvivesLockedSweeps(t *testing.T) {
	runner := &countingRunner{calls: map[string]int{}, err: sweep.ErrAlreadyRunning}
	m := NewManager(runner, Job{Sweep: sweep.Advertisements, Interval: 5 * time.Millisecond})

	m.Start()
	assert.Eventually(t, func() bool { return runner.count(sweep.Advertisements) >= 3 }, time.Second, 5*time.Millisecond)
	m.Stop()
}

func TestManagerRestart(t *testing.T) {
	runner := &countingRunner{calls: map[string]int{}}
	m := NewManager(runner, Job{Sweep: sweep.Subscriptions, Interval: 5 * time.Millisecond})

	m.Stop()
	assert.False(t, m.IsRunning())

	m.Start()
	m.Start()
	m.Stop()
	m.Start()
	assert.True(t, m.IsRunning())
	assert.Eventually(t, func() bool { return runner.count(sweep.Subscriptions) >= 1 }, time.Second, 5*time.Millisecond)
	m.Stop()
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lastRunPrefix = "toolfox:sweep:last:"
	lastRunTTL    = 7 * 24 * time.Hour
)

// ErrNoLastRun is returned when no summary was stored for a sweep.
var ErrNoLastRun = errors.New("no stored sweep summary")

// RunStore keeps the latest summary of each sweep.
type RunStore struct {
	client redis.UniversalClient
}

func NewRunStore(c redis.UniversalClient) *RunStore {
	return &RunStore{client: c}
}

// SaveLastRun stores the summary of the latest run of sweep.
func (s *RunStore) SaveLastRun(ctx context.Context, sweep string, body []byte) error {
	return s.client.Set(ctx, lastRunPrefix+sweep, body, lastRunTTL).Err()
}

// LastRun returns the stored summary of sweep.
func (s *RunStore) LastRun(ctx context.Context, sweep string) ([]byte, error) {
	b, err := s.client.Get(ctx, lastRunPrefix+sweep).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoLastRun
	}
	return b, err
}

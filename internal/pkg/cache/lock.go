package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock is held by another process")

const lockPrefix = "toolfox:lock:"

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out expiring locks stored in Redis.
type Locker struct {
	client redis.UniversalClient
}

func NewLocker(c redis.UniversalClient) *Locker {
	return &Locker{client: c}
}

// Lock is a held lock. Release it when done; it expires on its own after
// the TTL if the holder dies.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Acquire takes the named lock or returns ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	key := lockPrefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release frees the lock if it is still ours.
func (k *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, k.client, []string{k.key}, k.token).Err()
}

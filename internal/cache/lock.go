package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "signal-trader:lock:"

// ErrLockHeld is returned when another process holds the pass lock
var ErrLockHeld = errors.New("pass lock held by another process")

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PassLock keeps a pass from overlapping itself across processes
type PassLock struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewPassLock creates a lock whose holds expire after ttl
func NewPassLock(client redis.Cmdable, ttl time.Duration) *PassLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PassLock{client: client, ttl: ttl}
}

// Acquire takes the lock for pass. The returned func releases it and is safe
// to call after expiry.
func (l *PassLock) Acquire(ctx context.Context, pass string) (func(context.Context) error, error) {
	token := uuid.NewString()
	key := lockPrefix + pass

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire pass lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release pass lock: %w", err)
		}
		return nil
	}, nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived distributed locks (SET NX PX).
// With Redis disabled every TryLock succeeds, which is correct for a
// single instance.
type Locker struct {
	client *Client
	prefix string
}

// NewLocker creates a new distributed lock helper
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Lock is a held lock; release it with Unlock
type Lock struct {
	Key   string
	token string
}

var unlockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// TryLock acquires name for ttl without waiting. ok=false means another
// holder owns it.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (*Lock, bool, error) {
	lock := &Lock{
		Key:   fmt.Sprintf("%s:lock:%s", l.prefix, name),
		token: uuid.NewString(),
	}
	if !l.client.Enabled() {
		return lock, true, nil
	}

	ok, err := l.client.Redis().SetNX(ctx, lock.Key, lock.token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s failed: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return lock, true, nil
}

// Unlock releases the lock only if this holder still owns it
func (l *Locker) Unlock(ctx context.Context, lock *Lock) error {
	if lock == nil || !l.client.Enabled() {
		return nil
	}
	if err := unlockScript.Run(ctx, l.client.Redis(), []string{lock.Key}, lock.token).Err(); err != nil {
		return fmt.Errorf("unlock %s failed: %w", lock.Key, err)
	}
	return nil
}

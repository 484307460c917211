package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// InventoryLockKey builds redis keys guarding a single stock record.
func InventoryLockKey(kind string, recordID int64) string {
	return fmt.Sprintf("inventory:%s:%d:lock", kind, recordID)
}

// RecordLocker hands out short-lived redis locks around record mutations.
type RecordLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRecordLocker constructs RecordLocker. wait bounds how long Acquire retries
// before giving up; zero fails on first contention.
func NewRecordLocker(client redislock.RedisClient, ttl, wait time.Duration) *RecordLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RecordLocker{client: redislock.New(client), ttl: ttl, wait: wait}
}

// Acquire obtains the lock for key. The returned func releases it.
func (l *RecordLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	if l == nil {
		return func(context.Context) {}, nil
	}
	var opts *redislock.Options
	if l.wait > 0 {
		opts = &redislock.Options{RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), int(l.wait/(50*time.Millisecond)))}
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrLockNotObtained
		}
		return nil, err
	}
	return func(ctx context.Context) {
		_ = lock.Release(ctx)
	}, nil
}

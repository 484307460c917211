package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryCache memoises dashboard counters between writes.
type SummaryCache interface {
	FetchSummary(ctx context.Context, kind Kind, loader func(context.Context) (Summary, error)) (Summary, error)
	Invalidate(ctx context.Context, kind Kind) error
}

// Cache keeps summaries in Redis under a per-kind version so a write only
// needs to bump the version to retire every cached entry of that kind.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(kind Kind) string {
	return fmt.Sprintf("inventory:%s:version", kind)
}

// Version returns the current cache version of kind, initialising when missing.
func (c *Cache) Version(ctx context.Context, kind Kind) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(kind)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(kind), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(kind)).Int64()
	}
	return ver, err
}

// FetchSummary loads a cached summary or populates it using the loader.
func (c *Cache) FetchSummary(ctx context.Context, kind Kind, loader func(context.Context) (Summary, error)) (Summary, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx, kind)
	if err != nil {
		return Summary{}, err
	}
	key := fmt.Sprintf("inventory:%s:summary:%d", kind, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var out Summary
		if err := json.Unmarshal(payload, &out); err == nil {
			return out, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return Summary{}, err
	}
	out, err := loader(ctx)
	if err != nil {
		return Summary{}, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return Summary{}, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return Summary{}, err
	}
	return out, nil
}

// Invalidate bumps the version of kind.
func (c *Cache) Invalidate(ctx context.Context, kind Kind) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(kind)).Err()
}

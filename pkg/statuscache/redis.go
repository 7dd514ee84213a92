package statuscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Ramsey-B/fescue/pkg/metrics"
	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/Ramsey-B/fescue/pkg/tracing"
)

const keyPrefix = "fescue:vip-status:"

// KeyValueStore is the subset of the redis client the cache needs.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisCache shares statuses between instances.
type RedisCache struct {
	store KeyValueStore
	ttl   time.Duration
}

func NewRedisCache(store KeyValueStore, config Config) *RedisCache {
	return &RedisCache{store: store, ttl: config.TTL}
}

func (c *RedisCache) Get(ctx context.Context, profileID string) (*models.StatusResult, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "statuscache.RedisCache.Get")
	defer span.End()

	raw, found, err := c.store.Get(ctx, keyPrefix+profileID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		metrics.StatusCacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	var status models.StatusResult
	if err := json.Unmarshal(raw, &status); err != nil {
		// unreadable entries are treated as misses and overwritten on the next Set
		metrics.StatusCacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	metrics.StatusCacheLookups.WithLabelValues("hit").Inc()
	return &status, true, nil
}

func (c *RedisCache) Set(ctx context.Context, profileID string, status *models.StatusResult) error {
	ctx, span := tracing.StartSpan(ctx, "statuscache.RedisCache.Set")
	defer span.End()

	if status == nil {
		return nil
	}

	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, keyPrefix+profileID, data, c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, profileID string) error {
	ctx, span := tracing.StartSpan(ctx, "statuscache.RedisCache.Invalidate")
	defer span.End()

	return c.store.Del(ctx, keyPrefix+profileID)
}

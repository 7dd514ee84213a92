package statuscache

import (
	"context"
	"testing"
	"time"

	"github.com/Ramsey-B/fescue/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchedStatus(id string) *models.StatusResult {
	return &models.StatusResult{Status: models.VipStatusLinkedMatched, ExternalCustomerID: &id}
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(DefaultConfig())

	_, found, err := cache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "p1", matchedStatus("c1")))

	status, found, err := cache.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.VipStatusLinkedMatched, status.Status)
	assert.Equal(t, "c1", *status.ExternalCustomerID)
}

func TestMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(Config{MaxSize: 10, TTL: time.Minute})
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "p1", matchedStatus("c1")))

	now = now.Add(59 * time.Second)
	_, found, _ := cache.Get(ctx, "p1")
	assert.True(t, found)

	now = now.Add(time.Second)
	_, found, _ = cache.Get(ctx, "p1")
	assert.False(t, found)
}

func TestMemoryCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(DefaultConfig())

	require.NoError(t, cache.Set(ctx, "p1", matchedStatus("c1")))
	require.NoError(t, cache.Invalidate(ctx, "p1"))

	_, found, _ := cache.Get(ctx, "p1")
	assert.False(t, found)
}

func TestMemoryCache_Evicts(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(Config{MaxSize: 4, TTL: time.Minute})

	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		require.NoError(t, cache.Set(ctx, id, matchedStatus("c")))
	}

	assert.LessOrEqual(t, cache.Len(), 4)
	_, found, _ := cache.Get(ctx, "p5")
	assert.True(t, found)
}

func TestMemoryCache_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(DefaultConfig())
	require.NoError(t, cache.Set(ctx, "p1", matchedStatus("c1")))

	status, _, _ := cache.Get(ctx, "p1")
	status.Status = models.VipStatusNotLinked

	again, _, _ := cache.Get(ctx, "p1")
	assert.Equal(t, models.VipStatusLinkedMatched, again.Status)
}

type mapStore struct {
	values map[string][]byte
	ttls   map[string]time.Duration
}

func newMapStore() *mapStore {
	return &mapStore{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	m.values[key] = value.([]byte)
	m.ttls[key] = expiration
	return nil
}

func (m *mapStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	cache := NewRedisCache(store, Config{TTL: 2 * time.Minute})

	require.NoError(t, cache.Set(ctx, "p1", matchedStatus("c1")))
	assert.Equal(t, 2*time.Minute, store.ttls[keyPrefix+"p1"])

	status, found, err := cache.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "c1", *status.ExternalCustomerID)

	require.NoError(t, cache.Invalidate(ctx, "p1"))
	_, found, err = cache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.values[keyPrefix+"p1"] = []byte("{not json")
	cache := NewRedisCache(store, DefaultConfig())

	_, found, err := cache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, found)
}

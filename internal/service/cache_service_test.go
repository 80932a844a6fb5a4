package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("redis down")
}

func (failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("redis down")
}

func (failingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("redis down")
}

func TestCacheServiceMatchesGeneration(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCache(), metrics, 0, nil, true)
	ctx := context.Background()

	svc.Set(ctx, "k", 3, SearchPage{Generation: 3, HasActiveFilters: true}, 0)

	var page SearchPage
	require.True(t, svc.Get(ctx, "k", 3, &page))
	assert.True(t, page.HasActiveFilters)

	assert.False(t, svc.Get(ctx, "k", 4, &page))
	assert.False(t, svc.Get(ctx, "missing", 3, &page))

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
}

func TestCacheServiceDegradesOnBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCache{}, nil, time.Minute, nil, true)
	ctx := context.Background()

	svc.Set(ctx, "k", 1, SearchPage{}, 0)
	var page SearchPage
	assert.False(t, svc.Get(ctx, "k", 1, &page))
	assert.Error(t, svc.Invalidate(ctx, "announcements:search:*"))
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.False(t, nilSvc.Get(context.Background(), "k", 1, &SearchPage{}))

	off := NewCacheService(newMemoryCache(), nil, 0, nil, false)
	assert.False(t, off.Enabled())
	assert.NoError(t, off.Invalidate(context.Background(), "*"))
}

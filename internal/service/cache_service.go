package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached search views.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// cacheEntry stamps a cached value with the feed generation it was built from.
type cacheEntry struct {
	Generation uint64          `json:"generation"`
	Value      json.RawMessage `json:"value"`
}

// CacheService keeps derived views keyed by feed generation. Cache failures
// never fail a request: lookups degrade to misses and writes are best-effort.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service. A nil repo disables it.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get decodes the entry under key into dest. Entries built from any other
// generation count as misses.
func (s *CacheService) Get(ctx context.Context, key string, generation uint64, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	var entry cacheEntry
	err := s.repo.Get(ctx, key, &entry)
	hit := err == nil && entry.Generation == generation
	if hit {
		if decodeErr := json.Unmarshal(entry.Value, dest); decodeErr != nil {
			err, hit = decodeErr, false
		}
	}
	s.metrics.RecordCacheOperation(hit, time.Since(start))

	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

// Set stores value under key for generation. A zero ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, generation uint64, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	start := time.Now()
	err = s.repo.Set(ctx, key, cacheEntry{Generation: generation, Value: raw}, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every entry matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		return err
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

// StatsKeyPrefix namespaces every cached aggregate that content writes must evict.
const StatsKeyPrefix = "stats:"

// StatsKey builds a key under StatsKeyPrefix.
func StatsKey(parts ...string) string {
	return StatsKeyPrefix + strings.Join(parts, ":")
}

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the stats store. Reads degrade to misses when the store
// is down, and concurrent rebuilds of one key are collapsed.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	group      singleflight.Group
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
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

// Get decodes the entry under key into dest and reports whether it was present.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateStats evicts cached aggregates after a write that changes them. Errors are logged only.
func (s *CacheService) InvalidateStats(ctx context.Context) {
	_ = s.Invalidate(ctx, StatsKeyPrefix+"*")
}

// Remember returns the cached value under key, or runs load once across
// concurrent callers and stores its result. The bool reports a cache hit.
// Store failures never fail the call.
func Remember[T any](ctx context.Context, s *CacheService, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	var cached T
	if hit, err := s.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	if s == nil {
		v, err := load(ctx)
		return v, false, err
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = s.Set(ctx, key, fresh, ttl)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, false, fmt.Errorf("cache: %s loaded %T", key, v)
	}
	return out, false, nil
}

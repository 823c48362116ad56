package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type memoryCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	patterns []string
	getErr   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	data, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func TestCacheServiceGetSet(t *testing.T) {
	repo := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)

	var out map[string]int
	hit, err := svc.Get(context.Background(), StatsKey("summary"), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(context.Background(), StatsKey("summary"), map[string]int{"projects": 3}, 0))
	hit, err = svc.Get(context.Background(), StatsKey("summary"), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, out["projects"])

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestCacheServiceInvalidateStats(t *testing.T) {
	repo := newMemoryCache()
	repo.entries["stats:summary"] = []byte(`{}`)
	repo.entries["other"] = []byte(`{}`)
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	svc.InvalidateStats(context.Background())
	assert.Equal(t, []string{"stats:*"}, repo.patterns)
	assert.NotContains(t, repo.entries, "stats:summary")
	assert.Contains(t, repo.entries, "other")
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)
	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.entries)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	nilSvc.InvalidateStats(context.Background())
}

func TestCacheServiceGetError(t *testing.T) {
	repo := newMemoryCache()
	repo.getErr = errors.New("redis down")
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestRememberLoadsOnceThenHits(t *testing.T) {
	svc := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	calls := 0
	load := func(ctx context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"projects": 7}, nil
	}

	v, hit, err := Remember(context.Background(), svc, StatsKey("summary"), 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v["projects"])

	v, hit, err = Remember(context.Background(), svc, StatsKey("summary"), 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, v["projects"])
	assert.Equal(t, 1, calls)
}

func TestRememberCollapsesConcurrentLoads(t *testing.T) {
	svc := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	var calls int32
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Remember(context.Background(), svc, "stats:slow", 0, load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestRememberWithoutCacheAlwaysLoads(t *testing.T) {
	var svc *CacheService
	calls := 0
	load := func(ctx context.Context) (string, error) {
		calls++
		return "fresh", nil
	}
	for i := 0; i < 2; i++ {
		v, hit, err := Remember(context.Background(), svc, "k", 0, load)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "fresh", v)
	}
	assert.Equal(t, 2, calls)
}

func TestRememberPropagatesLoadError(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	_, _, err := Remember(context.Background(), svc, "k", 0, func(ctx context.Context) (int, error) {
		return 0, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
	assert.Empty(t, repo.entries)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

const (
	statsNamespace = "civic:"
	unlinkBatch    = 200
)

// StatsStore keeps JSON snapshots of public aggregates in Redis. Every key is
// stored under the civic: namespace so a shared instance stays partitioned.
type StatsStore struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewStatsStore wraps a Redis client. A nil client yields a store that always misses.
func NewStatsStore(client redis.UniversalClient, logger *zap.Logger) *StatsStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsStore{client: client, logger: logger}
}

func (s *StatsStore) key(k string) string {
	return statsNamespace + k
}

// Get decodes the snapshot under key into dest. Absent keys yield ErrCacheMiss.
func (s *StatsStore) Get(ctx context.Context, key string, dest interface{}) error {
	if s.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("read snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A snapshot that no longer decodes is treated as absent and dropped.
		s.logger.Warn("discarding undecodable stats snapshot", zap.String("key", key), zap.Error(err))
		_ = s.client.Unlink(ctx, s.key(key)).Err()
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set writes value under key for ttl.
func (s *StatsStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern unlinks every key matching pattern, batching as the scan proceeds.
func (s *StatsStore) DeleteByPattern(ctx context.Context, pattern string) error {
	if s.client == nil {
		return nil
	}
	var (
		batch   = make([]string, 0, unlinkBatch)
		removed int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("unlink %d snapshots: %w", len(batch), err)
		}
		removed += len(batch)
		batch = batch[:0]
		return nil
	}

	iter := s.client.Scan(ctx, 0, s.key(pattern), unlinkBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == unlinkBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan snapshots %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Debug("stats snapshots evicted", zap.String("pattern", pattern), zap.Int("count", removed))
	}
	return nil
}

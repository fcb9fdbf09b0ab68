package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/cache"
	"github.com/s3ai/backend/pkg/logger"
)

const keyPrefix = "answer:"

// Store is the redis cache backend. Redis expires keys natively, so
// ClearExpired has nothing to do here.
type Store struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewStore(host string, port int, password string, db int, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Cache store initialized",
		zap.String("backend", "redis"),
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Store{client: client, ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, fingerprint string) (*cache.Entry, bool) {
	data, err := s.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	if err == redis.Nil {
		s.misses.Add(1)
		return nil, false
	}
	if err != nil {
		logger.Warn("Cache read failed", zap.Error(err), zap.String("fingerprint", fingerprint))
		s.misses.Add(1)
		return nil, false
	}

	var entry cache.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Warn("Corrupt cache entry dropped", zap.Error(err), zap.String("fingerprint", fingerprint))
		s.client.Del(ctx, keyPrefix+fingerprint)
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	logger.Debug("Cache hit", zap.String("fingerprint", fingerprint), zap.String("source", entry.Source))
	return &entry, true
}

func (s *Store) Put(ctx context.Context, fingerprint string, entry *cache.Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		logger.Warn("Failed to marshal cache entry", zap.Error(err))
		return
	}

	if err := s.client.Set(ctx, keyPrefix+fingerprint, data, s.ttl).Err(); err != nil {
		logger.Warn("Cache write failed", zap.Error(err), zap.String("fingerprint", fingerprint))
		return
	}

	logger.Debug("Answer cached", zap.String("fingerprint", fingerprint), zap.String("source", entry.Source))
}

func (s *Store) ClearExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Cache cleared")
	return nil
}

func (s *Store) Stats(ctx context.Context) (cache.Stats, error) {
	var entries int64
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		entries++
	}
	if err := iter.Err(); err != nil {
		return cache.Stats{}, fmt.Errorf("failed to count cache keys: %w", err)
	}

	return cache.Stats{
		Entries: entries,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

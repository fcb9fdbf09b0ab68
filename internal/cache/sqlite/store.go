package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/cache"
	"github.com/s3ai/backend/pkg/logger"
)

// Store is the default cache backend: a single sqlite table with lazy TTL
// expiry on read.
type Store struct {
	db  *sql.DB
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	now func() time.Time
}

func NewStore(path string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// sqlite serializes writers anyway; a single pooled connection also keeps
	// :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		fingerprint TEXT PRIMARY KEY,
		answer TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		response_time REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_created ON cache_entries(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	logger.Info("Cache store initialized",
		zap.String("backend", "sqlite"),
		zap.String("path", path),
		zap.Duration("ttl", ttl),
	)

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, fingerprint string) (*cache.Entry, bool) {
	var (
		entry     cache.Entry
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT answer, source, created_at, response_time FROM cache_entries WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&entry.Answer, &entry.Source, &createdAt, &entry.ResponseTime)

	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false
	}
	if err != nil {
		// Storage trouble is a miss, never a query failure.
		logger.Warn("Cache read failed", zap.Error(err), zap.String("fingerprint", fingerprint))
		s.misses.Add(1)
		return nil, false
	}

	entry.CreatedAt = time.Unix(createdAt, 0)
	if s.now().Sub(entry.CreatedAt) >= s.ttl {
		s.purge(ctx, fingerprint)
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	logger.Debug("Cache hit", zap.String("fingerprint", fingerprint), zap.String("source", entry.Source))
	return &entry, true
}

func (s *Store) Put(ctx context.Context, fingerprint string, entry *cache.Entry) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (fingerprint, answer, source, created_at, response_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			answer = excluded.answer,
			source = excluded.source,
			created_at = excluded.created_at,
			response_time = excluded.response_time
	`, fingerprint, entry.Answer, entry.Source, createdAt.Unix(), entry.ResponseTime)

	if err != nil {
		logger.Warn("Cache write failed", zap.Error(err), zap.String("fingerprint", fingerprint))
		return
	}

	logger.Debug("Answer cached", zap.String("fingerprint", fingerprint), zap.String("source", entry.Source))
}

func (s *Store) ClearExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl).Unix()

	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE created_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired entries: %w", err)
	}

	removed, _ := res.RowsAffected()
	logger.Info("Expired cache entries cleared", zap.Int64("removed", removed))
	return int(removed), nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	logger.Info("Cache cleared")
	return nil
}

func (s *Store) Stats(ctx context.Context) (cache.Stats, error) {
	var entries int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&entries); err != nil {
		return cache.Stats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}

	return cache.Stats{
		Entries: entries,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

func (s *Store) purge(ctx context.Context, fingerprint string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint); err != nil {
		logger.Warn("Failed to purge expired cache entry", zap.Error(err))
	}
}

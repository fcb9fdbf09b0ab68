// Package cache defines the TTL-bounded answer store the query pipeline
// memoizes into. Caching is a performance optimization only: implementations
// must turn read failures into misses and swallow write failures, so a broken
// store can never fail a query.
package cache

import (
	"context"
	"time"
)

type Entry struct {
	Answer       string    `json:"answer"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	ResponseTime float64   `json:"response_time"`
}

type Stats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Store maps query fingerprints to cached answers. Expired entries are
// treated as absent. Concurrent writers to the same fingerprint follow
// last-write-wins.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, bool)
	Put(ctx context.Context, fingerprint string, entry *Entry)
	ClearExpired(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Package pipeline implements the multi-tier query resolution at the
// heart of the service: answer cache, structured metadata lookup,
// vector similarity search with LLM synthesis, and a literal text
// fallback scan. Later tiers run only when an earlier tier reports an
// explicit no-match; every failure past validation is absorbed into a
// fallthrough so the caller always gets an answer.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/s3ai/backend/internal/cache"
	"github.com/s3ai/backend/internal/fallback"
	"github.com/s3ai/backend/internal/metrics"
	"github.com/s3ai/backend/pkg/logger"
	"github.com/s3ai/backend/pkg/utils"
)

// ErrInvalidQuery is the only error Resolve returns to callers.
var ErrInvalidQuery = errors.New("invalid query")

// Source identifies the tier that produced an answer.
type Source string

const (
	SourceCache    Source = "cache"
	SourceQuick    Source = "quick"
	SourceVector   Source = "vector"
	SourceFallback Source = "fallback"
)

const defaultNoResultAnswer = "No relevant information found for your question."

// Result is a resolved answer with its provenance and timing.
type Result struct {
	ID           string        `json:"id"`
	Answer       string        `json:"answer"`
	Source       Source        `json:"source"`
	Cached       bool          `json:"cached"`
	ResponseTime float64       `json:"response_time"`
	Elapsed      time.Duration `json:"-"`
}

// ScoredChunk is a retrieved passage with its similarity score.
type ScoredChunk struct {
	Text   string
	Source string
	Score  float32
}

// Searcher retrieves the most similar document chunks for a query.
// Implementations apply their own top-K and minimum-score cuts; an
// empty result set means the vector tier has no match.
type Searcher interface {
	Search(ctx context.Context, query string) ([]ScoredChunk, error)
}

// Synthesizer produces an answer from a question and context passages.
type Synthesizer interface {
	Generate(ctx context.Context, question string, contextChunks []string) (string, error)
}

// QuickIndex answers structured metadata queries deterministically.
type QuickIndex interface {
	QuickSearch(normalizedQuery string) (string, bool)
}

// TextScanner performs the literal term scan of the fallback tier.
type TextScanner interface {
	Scan(normalizedQuery string) []fallback.Passage
}

// HistoryRecorder persists resolved queries. Failures are logged, never
// surfaced.
type HistoryRecorder interface {
	RecordQuery(ctx context.Context, question, answer, source string, responseTime float64) error
}

type Options struct {
	MaxQueryLength  int
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
	NoResultAnswer  string
}

// Resolver runs queries through the tiers in order. All collaborators
// except the cache may be nil; a nil collaborator disables its tier.
type Resolver struct {
	cache    cache.Store
	quick    QuickIndex
	searcher Searcher
	synth    Synthesizer
	scanner  TextScanner
	history  HistoryRecorder
	opts     Options

	group singleflight.Group
}

func NewResolver(store cache.Store, quick QuickIndex, searcher Searcher, synth Synthesizer, scanner TextScanner, history HistoryRecorder, opts Options) *Resolver {
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = 2000
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 15 * time.Second
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 60 * time.Second
	}
	if opts.NoResultAnswer == "" {
		opts.NoResultAnswer = defaultNoResultAnswer
	}
	return &Resolver{
		cache:    store,
		quick:    quick,
		searcher: searcher,
		synth:    synth,
		scanner:  scanner,
		history:  history,
		opts:     opts,
	}
}

// Normalize lower-cases the query, strips control characters and
// collapses runs of whitespace to single spaces.
func Normalize(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	space := false
	for _, r := range strings.ToLower(query) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r):
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

type resolution struct {
	answer       string
	source       Source
	responseTime float64
}

// Resolve answers a question through the tier chain. It returns
// ErrInvalidQuery for empty or oversized input; every other condition
// produces an answer.
func (r *Resolver) Resolve(ctx context.Context, question string, aiFormat bool) (*Result, error) {
	start := time.Now()

	if len(question) > r.opts.MaxQueryLength {
		metrics.QueryTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidQuery
	}
	normalized := Normalize(question)
	if normalized == "" {
		metrics.QueryTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidQuery
	}

	fingerprint := utils.Fingerprint(normalized, aiFormat)

	if entry, ok := r.cache.Get(ctx, fingerprint); ok {
		metrics.CacheHits.Inc()
		elapsed := time.Since(start)
		res := &Result{
			ID:           uuid.New().String(),
			Answer:       entry.Answer,
			Source:       SourceCache,
			Cached:       true,
			ResponseTime: elapsed.Seconds(),
			Elapsed:      elapsed,
		}
		r.observe(res)
		return res, nil
	}
	metrics.CacheMisses.Inc()

	// Identical in-flight misses share one resolution. The flight runs on a
	// context detached from the triggering caller: its disconnect must not
	// cancel the work for the other waiters or poison the cache with a
	// degraded answer. The per-tier timeouts still bound the flight.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(fingerprint, func() (interface{}, error) {
		tierStart := time.Now()
		answer, source := r.resolveMiss(flightCtx, normalized, aiFormat)
		responseTime := time.Since(tierStart).Seconds()

		r.store(flightCtx, fingerprint, answer, source, responseTime)
		r.record(flightCtx, normalized, answer, source, responseTime)

		return resolution{answer: answer, source: source, responseTime: responseTime}, nil
	})
	if err != nil {
		// The flight func never returns an error; keep the contract anyway.
		return nil, ErrInvalidQuery
	}
	rsl := v.(resolution)

	elapsed := time.Since(start)
	res := &Result{
		ID:           uuid.New().String(),
		Answer:       rsl.answer,
		Source:       rsl.source,
		Cached:       false,
		ResponseTime: elapsed.Seconds(),
		Elapsed:      elapsed,
	}
	r.observe(res)
	return res, nil
}

func (r *Resolver) resolveMiss(ctx context.Context, normalized string, aiFormat bool) (string, Source) {
	if r.quick != nil {
		if answer, ok := r.quick.QuickSearch(normalized); ok {
			logger.Debug("Quick tier match", zap.String("query", normalized))
			return answer, SourceQuick
		}
	}

	if answer, ok := r.vectorTier(ctx, normalized, aiFormat); ok {
		return answer, SourceVector
	}

	return r.fallbackTier(ctx, normalized, aiFormat)
}

func (r *Resolver) vectorTier(ctx context.Context, query string, aiFormat bool) (string, bool) {
	if r.searcher == nil || r.synth == nil {
		return "", false
	}

	sctx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
	defer cancel()

	chunks, err := r.searcher.Search(sctx, query)
	if err != nil {
		logger.Warn("Vector search failed, falling through", zap.Error(err))
		return "", false
	}
	if len(chunks) == 0 {
		return "", false
	}
	metrics.VectorResultsCount.Observe(float64(len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	answer, err := r.synthesize(ctx, query, texts, aiFormat)
	if err != nil {
		logger.Warn("Synthesis failed in vector tier, falling through", zap.Error(err))
		return "", false
	}
	if strings.TrimSpace(answer) == "" {
		return "", false
	}
	return answer, true
}

func (r *Resolver) fallbackTier(ctx context.Context, query string, aiFormat bool) (string, Source) {
	var passages []fallback.Passage
	if r.scanner != nil {
		passages = r.scanner.Scan(query)
	}
	if len(passages) == 0 {
		return r.opts.NoResultAnswer, SourceFallback
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.String()
	}

	if r.synth != nil {
		answer, err := r.synthesize(ctx, query, texts, aiFormat)
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer, SourceFallback
		}
		if err != nil {
			logger.Warn("Synthesis failed in fallback tier, returning passages", zap.Error(err))
		}
	}

	// Raw passages beat no answer.
	return strings.Join(texts, "\n\n"), SourceFallback
}

func (r *Resolver) synthesize(ctx context.Context, question string, texts []string, aiFormat bool) (string, error) {
	if aiFormat {
		question += "\n\nFormat the answer as concise Markdown."
	}
	gctx, cancel := context.WithTimeout(ctx, r.opts.GenerateTimeout)
	defer cancel()
	return r.synth.Generate(gctx, question, texts)
}

func (r *Resolver) store(ctx context.Context, fingerprint, answer string, source Source, responseTime float64) {
	r.cache.Put(ctx, fingerprint, &cache.Entry{
		Answer:       answer,
		Source:       string(source),
		CreatedAt:    time.Now(),
		ResponseTime: responseTime,
	})
}

func (r *Resolver) record(ctx context.Context, question, answer string, source Source, responseTime float64) {
	if r.history == nil {
		return
	}
	if err := r.history.RecordQuery(ctx, question, answer, string(source), responseTime); err != nil {
		logger.Warn("Failed to record query history", zap.Error(err))
	}
}

func (r *Resolver) observe(res *Result) {
	metrics.QueryTotal.WithLabelValues("ok").Inc()
	metrics.TierResolved.WithLabelValues(string(res.Source)).Inc()
	metrics.QueryDuration.WithLabelValues(string(res.Source)).Observe(res.ResponseTime)
}

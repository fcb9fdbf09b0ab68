// Package fallback is the last-resort retrieval tier: a literal term scan
// over the raw, unindexed document set.
package fallback

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/s3ai/backend/pkg/logger"
)

type Passage struct {
	Filename string
	Snippet  string
	Score    int
	Terms    []string
}

func (p Passage) String() string {
	return fmt.Sprintf("[%s] %s", p.Filename, p.Snippet)
}

type Options struct {
	MaxPassages  int
	SnippetSize  int
	MaxFileSize  int64
	MaxTotalSize int64
	MinTermLen   int
}

func DefaultOptions() Options {
	return Options{
		MaxPassages:  3,
		SnippetSize:  500,
		MaxFileSize:  10 * 1024 * 1024,
		MaxTotalSize: 100 * 1024 * 1024,
		MinTermLen:   3,
	}
}

type document struct {
	filename string
	content  string
	lower    string
}

// Scanner holds the raw corpus in memory. The byte caps applied at load time
// bound every subsequent scan, so Scan always terminates. Documents may be
// added while scans are in flight.
type Scanner struct {
	opts Options

	mu   sync.RWMutex
	docs []document
}

func NewScanner(opts Options) *Scanner {
	if opts.MaxPassages <= 0 {
		opts.MaxPassages = 3
	}
	if opts.SnippetSize <= 0 {
		opts.SnippetSize = 500
	}
	if opts.MinTermLen <= 0 {
		opts.MinTermLen = 3
	}
	return &Scanner{opts: opts}
}

// Load reads .txt and .md files under dir into memory. Unreadable files are
// skipped; a missing directory leaves the corpus empty and every scan
// reports no matches.
func (s *Scanner) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("Fallback corpus directory unavailable", zap.String("dir", dir), zap.Error(err))
		return nil
	}

	var loaded []document
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
			logger.Warn("Skipping oversized fallback document",
				zap.String("file", entry.Name()),
				zap.Int64("size", info.Size()),
			)
			continue
		}
		if s.opts.MaxTotalSize > 0 && total+info.Size() > s.opts.MaxTotalSize {
			logger.Warn("Fallback corpus size cap reached", zap.Int64("loaded", total))
			break
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("Failed to load fallback document", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		content := string(data)
		loaded = append(loaded, document{
			filename: entry.Name(),
			content:  content,
			lower:    strings.ToLower(content),
		})
		total += info.Size()
	}

	s.mu.Lock()
	s.docs = append(s.docs, loaded...)
	count := len(s.docs)
	s.mu.Unlock()

	logger.Info("Fallback corpus loaded",
		zap.String("dir", dir),
		zap.Int("documents", count),
		zap.Int64("bytes", total),
	)

	return nil
}

// LoadContent adds an in-memory document to the corpus.
func (s *Scanner) LoadContent(filename, content string) {
	doc := document{
		filename: filename,
		content:  content,
		lower:    strings.ToLower(content),
	}

	s.mu.Lock()
	s.docs = append(s.docs, doc)
	s.mu.Unlock()
}

func (s *Scanner) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Scan matches query terms against the corpus and returns snippet windows
// around the earliest match, ranked by total term occurrences. Ties break on
// filename so results are deterministic.
func (s *Scanner) Scan(normalizedQuery string) []Passage {
	terms := s.queryTerms(normalizedQuery)
	if len(terms) == 0 {
		return nil
	}

	s.mu.RLock()
	docs := s.docs
	s.mu.RUnlock()

	var passages []Passage
	for _, doc := range docs {
		score := 0
		var matched []string
		for _, term := range terms {
			if n := strings.Count(doc.lower, term); n > 0 {
				score += n
				matched = append(matched, term)
			}
		}
		if score == 0 {
			continue
		}

		passages = append(passages, Passage{
			Filename: doc.filename,
			Snippet:  s.snippet(doc, matched),
			Score:    score,
			Terms:    matched,
		})
	}

	sort.Slice(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].Filename < passages[j].Filename
	})

	if len(passages) > s.opts.MaxPassages {
		passages = passages[:s.opts.MaxPassages]
	}

	logger.Debug("Fallback scan completed",
		zap.Int("terms", len(terms)),
		zap.Int("passages", len(passages)),
	)

	return passages
}

// queryTerms tokenizes the query, dropping short and non-word tokens.
func (s *Scanner) queryTerms(query string) []string {
	var tokens []string

	doc, err := prose.NewDocument(query,
		prose.WithExtraction(false),
		prose.WithTagging(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		tokens = strings.Fields(query)
	} else {
		for _, tok := range doc.Tokens() {
			tokens = append(tokens, tok.Text)
		}
	}

	seen := make(map[string]bool, len(tokens))
	var terms []string
	for _, tok := range tokens {
		term := strings.ToLower(strings.Trim(tok, `.,;:!?"'`))
		if len(term) < s.opts.MinTermLen || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}

	return terms
}

// snippet extracts a bounded window around the earliest matching term.
func (s *Scanner) snippet(doc document, terms []string) string {
	best := -1
	for _, term := range terms {
		if pos := strings.Index(doc.lower, term); pos != -1 && (best == -1 || pos < best) {
			best = pos
		}
	}
	if best == -1 {
		if len(doc.content) <= s.opts.SnippetSize {
			return doc.content
		}
		cut := s.opts.SnippetSize
		for cut > 0 && !utf8.RuneStart(doc.content[cut]) {
			cut--
		}
		return doc.content[:cut] + "..."
	}

	start := best - s.opts.SnippetSize/2
	if start < 0 {
		start = 0
	}
	end := start + s.opts.SnippetSize
	if end > len(doc.content) {
		end = len(doc.content)
	}
	// Keep the window on rune boundaries so the snippet stays valid UTF-8.
	for start > 0 && !utf8.RuneStart(doc.content[start]) {
		start--
	}
	for end < len(doc.content) && !utf8.RuneStart(doc.content[end]) {
		end++
	}

	snippet := strings.TrimSpace(doc.content[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(doc.content) {
		snippet = snippet + "..."
	}

	return snippet
}

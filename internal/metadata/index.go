// Package metadata answers deterministic bucket-metadata lookups without
// touching the LLM. The index is an immutable snapshot behind an atomic
// pointer: rebuilds prepare a complete replacement off to the side and
// publish it in one swap, so concurrent readers never see partial state.
package metadata

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/s3ai/backend/pkg/logger"
)

var ErrBuildFailed = errors.New("metadata index build failed")

type Record struct {
	ID          string   `json:"name"`
	Department  string   `json:"department"`
	Owner       string   `json:"owner"`
	Labels      []string `json:"labels"`
	Description string   `json:"description"`
}

type snapshot struct {
	records []Record
	byDept  map[string][]int
	byLabel map[string][]int
	byOwner map[string][]int
	byName  map[string][]int
}

type Index struct {
	maxResults int
	snap       atomic.Pointer[snapshot]
}

var (
	namePattern  = regexp.MustCompile(`(?:bucket|name)\s*:\s*"?([a-zA-Z0-9_\-\.]+)"?`)
	deptPattern  = regexp.MustCompile(`dept(?:artment)?\s*:\s*"?([\w\-]+)"?`)
	labelPattern = regexp.MustCompile(`label(?:s)?\s*:\s*"?([\w\-:\.]+)"?`)
	ownerPattern = regexp.MustCompile(`owner\s*:\s*"?([\w\-\.@]+)"?`)
	descPattern  = regexp.MustCompile(`desc(?:ription)?\s*:\s*(.+)$`)

	// Quick search only engages when the query carries an explicit metadata
	// hint with a colon; general questions defer to later tiers.
	queryHintPattern = regexp.MustCompile(`\b(?:dept(?:artment)?|label(?:s)?|owner|bucket(?:\s*name)?)\s*:`)
)

func NewIndex(maxResults int) *Index {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Index{maxResults: maxResults}
}

// Build parses the flattened metadata source (newline-delimited key:value
// text, or a JSON array for .json files) and atomically replaces the active
// snapshot. On failure the previous snapshot keeps serving.
func (idx *Index) Build(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	defer f.Close()

	var records []Record
	if strings.EqualFold(filepath.Ext(path), ".json") {
		records, err = parseJSON(f)
	} else {
		records, err = parseFlattened(f)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	snap := buildSnapshot(records)
	idx.snap.Store(snap)

	logger.Info("Metadata index built",
		zap.String("path", path),
		zap.Int("records", len(snap.records)),
		zap.Int("departments", len(snap.byDept)),
		zap.Int("labels", len(snap.byLabel)),
	)

	return nil
}

func (idx *Index) Ready() bool {
	return idx.snap.Load() != nil
}

func (idx *Index) Len() int {
	snap := idx.snap.Load()
	if snap == nil {
		return 0
	}
	return len(snap.records)
}

// QuickSearch resolves explicit metadata patterns in the normalized query
// against the current snapshot. The outcome is binary: a formatted answer or
// no match. An unbuilt index never matches.
func (idx *Index) QuickSearch(normalizedQuery string) (string, bool) {
	snap := idx.snap.Load()
	if snap == nil {
		return "", false
	}

	if !queryHintPattern.MatchString(normalizedQuery) {
		return "", false
	}

	if m := deptPattern.FindStringSubmatch(normalizedQuery); m != nil {
		key := strings.TrimSpace(m[1])
		if ids := snap.byDept[key]; len(ids) > 0 {
			return idx.format(snap, fmt.Sprintf("Buckets in department %q", key), ids), true
		}
	}

	if m := labelPattern.FindStringSubmatch(normalizedQuery); m != nil {
		key := strings.TrimSpace(m[1])
		if ids := snap.byLabel[key]; len(ids) > 0 {
			return idx.format(snap, fmt.Sprintf("Buckets with label %q", key), ids), true
		}
	}

	if m := ownerPattern.FindStringSubmatch(normalizedQuery); m != nil {
		key := strings.TrimSpace(m[1])
		if ids := snap.byOwner[key]; len(ids) > 0 {
			return idx.format(snap, fmt.Sprintf("Buckets owned by %q", key), ids), true
		}
	}

	if m := namePattern.FindStringSubmatch(normalizedQuery); m != nil {
		key := strings.TrimSpace(m[1])
		if ids := snap.byName[key]; len(ids) > 0 {
			return idx.format(snap, fmt.Sprintf("Bucket %q", key), ids), true
		}
	}

	return "", false
}

func (idx *Index) format(snap *snapshot, heading string, ids []int) string {
	seen := make(map[string]bool, len(ids))
	lines := make([]string, 0, len(ids))
	for _, i := range ids {
		rec := snap.records[i]
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		line := "- " + rec.ID
		if rec.Description != "" {
			line += ": " + rec.Description
		}
		lines = append(lines, line)
	}

	sort.Strings(lines)
	if len(lines) > idx.maxResults {
		lines = lines[:idx.maxResults]
	}

	return fmt.Sprintf("%s (%d):\n%s", heading, len(lines), strings.Join(lines, "\n"))
}

func buildSnapshot(records []Record) *snapshot {
	snap := &snapshot{
		records: records,
		byDept:  make(map[string][]int),
		byLabel: make(map[string][]int),
		byOwner: make(map[string][]int),
		byName:  make(map[string][]int),
	}

	for i, rec := range records {
		if rec.Department != "" {
			key := strings.ToLower(rec.Department)
			snap.byDept[key] = append(snap.byDept[key], i)
		}
		if rec.Owner != "" {
			key := strings.ToLower(rec.Owner)
			snap.byOwner[key] = append(snap.byOwner[key], i)
		}
		for _, label := range rec.Labels {
			key := strings.ToLower(label)
			snap.byLabel[key] = append(snap.byLabel[key], i)
		}
		key := strings.ToLower(rec.ID)
		snap.byName[key] = append(snap.byName[key], i)
	}

	return snap
}

// parseFlattened reads one record per non-blank line. Lines without a
// recognizable bucket identifier are skipped, not fatal.
func parseFlattened(f *os.File) ([]Record, error) {
	var (
		records []Record
		skipped int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		nameMatch := namePattern.FindStringSubmatch(lower)
		if nameMatch == nil {
			skipped++
			continue
		}

		rec := Record{ID: strings.TrimSpace(nameMatch[1])}
		if m := deptPattern.FindStringSubmatch(lower); m != nil {
			rec.Department = strings.TrimSpace(m[1])
		}
		if m := ownerPattern.FindStringSubmatch(lower); m != nil {
			rec.Owner = strings.TrimSpace(m[1])
		}
		for _, m := range labelPattern.FindAllStringSubmatch(lower, -1) {
			rec.Labels = append(rec.Labels, strings.TrimSpace(m[1]))
		}
		if m := descPattern.FindStringSubmatch(line); m != nil {
			rec.Description = strings.TrimSpace(m[1])
		}

		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if skipped > 0 {
		logger.Warn("Skipped malformed metadata lines", zap.Int("skipped", skipped))
	}

	return records, nil
}

func parseJSON(f *os.File) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, err
	}

	valid := records[:0]
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		valid = append(valid, rec)
	}

	return valid, nil
}

package fallback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedScanner(t *testing.T) *Scanner {
	t.Helper()
	s := NewScanner(DefaultOptions())
	s.LoadContent("purge.txt", "To purge a bucket use the admin console. Purge removes all versions permanently.")
	s.LoadContent("quota.txt", "Quota limits apply per bucket. Raising the quota requires admin approval.")
	s.LoadContent("raid.md", "Storage nodes use erasure coding instead of RAID for data protection.")
	return s
}

func TestScanMatchesAndRanks(t *testing.T) {
	s := loadedScanner(t)

	passages := s.Scan("how do i purge a bucket")
	require.NotEmpty(t, passages)

	// purge.txt mentions both terms multiple times and must rank first.
	assert.Equal(t, "purge.txt", passages[0].Filename)
	assert.Contains(t, strings.ToLower(passages[0].Snippet), "purge")
	assert.Contains(t, passages[0].Terms, "purge")
}

func TestScanNoMatch(t *testing.T) {
	s := loadedScanner(t)

	passages := s.Scan("kubernetes ingress controllers")
	assert.Empty(t, passages)
}

func TestScanEmptyCorpus(t *testing.T) {
	s := NewScanner(DefaultOptions())

	assert.Empty(t, s.Scan("anything at all"))
}

func TestScanShortTermsIgnored(t *testing.T) {
	s := loadedScanner(t)

	// Terms below the minimum length never match anything.
	assert.Empty(t, s.Scan("a an to"))
}

func TestScanPassageCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxPassages = 2
	s := NewScanner(opts)
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		s.LoadContent(name, "every document mentions replication settings")
	}

	passages := s.Scan("replication settings")
	assert.Len(t, passages, 2)
}

func TestScanDeterministicTieBreak(t *testing.T) {
	s := NewScanner(DefaultOptions())
	s.LoadContent("zeta.txt", "replication factor three")
	s.LoadContent("alpha.txt", "replication factor three")

	passages := s.Scan("replication factor")
	require.Len(t, passages, 2)
	assert.Equal(t, "alpha.txt", passages[0].Filename)
	assert.Equal(t, "zeta.txt", passages[1].Filename)
}

func TestSnippetWindowBounded(t *testing.T) {
	opts := DefaultOptions()
	opts.SnippetSize = 100
	s := NewScanner(opts)

	long := strings.Repeat("padding words before the target. ", 50) +
		"versioning is enabled here" +
		strings.Repeat(" trailing filler content after the match.", 50)
	s.LoadContent("long.txt", long)

	passages := s.Scan("versioning enabled")
	require.Len(t, passages, 1)
	assert.LessOrEqual(t, len(passages[0].Snippet), opts.SnippetSize+6) // plus ellipses
	assert.Contains(t, passages[0].Snippet, "...")
}

func TestConcurrentLoadAndScan(t *testing.T) {
	s := loadedScanner(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.LoadContent(fmt.Sprintf("uploaded%d.txt", n), "replication settings for new buckets")
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.Scan("how do i purge a bucket")
				s.Len()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 11, s.Len())
	passages := s.Scan("replication settings")
	require.NotEmpty(t, passages)
}

func TestSnippetStaysValidUTF8(t *testing.T) {
	opts := DefaultOptions()
	opts.SnippetSize = 40
	s := NewScanner(opts)

	// Multi-byte runes on both sides of the match force the window edges
	// into the middle of encoded characters.
	content := strings.Repeat("日本語テキスト", 20) +
		" versioning policies " +
		strings.Repeat("日本語テキスト", 20)
	s.LoadContent("i18n.txt", content)

	passages := s.Scan("versioning policies")
	require.Len(t, passages, 1)
	assert.True(t, utf8.ValidString(passages[0].Snippet))
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("bucket lifecycle policies"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("lifecycle transitions"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.pdf"), []byte("binary"), 0644))

	s := NewScanner(DefaultOptions())
	require.NoError(t, s.Load(dir))
	assert.Equal(t, 2, s.Len())
}

func TestLoadMissingDirectory(t *testing.T) {
	s := NewScanner(DefaultOptions())

	// Missing corpus degrades to "no matches", never an error.
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "absent")))
	assert.Empty(t, s.Scan("anything"))
}

func TestLoadRespectsFileSizeCap(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), []byte(strings.Repeat("x", 2048)), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.txt"), []byte("fits fine"), 0644))

	opts := DefaultOptions()
	opts.MaxFileSize = 1024
	s := NewScanner(opts)
	require.NoError(t, s.Load(dir))
	assert.Equal(t, 1, s.Len())
}

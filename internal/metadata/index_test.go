package metadata

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMetadata = `bucket: eng-prod dept: engineering owner: alice labels: tier:gold description: Primary engineering workloads
bucket: eng-backup dept: engineering owner: alice labels: tier:silver description: Nightly engineering backups
bucket: fin-audit dept: finance owner: bob labels: tier:gold description: Audit trail archive
this line has no recognizable fields at all
bucket: media-cdn dept: marketing owner: carol labels: public
`

func writeMetadata(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func builtIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex(10)
	require.NoError(t, idx.Build(writeMetadata(t, "metadata.txt", sampleMetadata)))
	return idx
}

func TestBuildSkipsMalformedLines(t *testing.T) {
	idx := builtIndex(t)
	assert.Equal(t, 4, idx.Len())
	assert.True(t, idx.Ready())
}

func TestBuildMissingFile(t *testing.T) {
	idx := NewIndex(10)
	err := idx.Build(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.False(t, idx.Ready())
}

func TestBuildFailureKeepsOldIndex(t *testing.T) {
	idx := builtIndex(t)

	err := idx.Build(filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, ErrBuildFailed)

	// Old snapshot still serves.
	answer, ok := idx.QuickSearch("show all buckets under dept: engineering")
	require.True(t, ok)
	assert.Contains(t, answer, "eng-prod")
}

func TestQuickSearchDepartment(t *testing.T) {
	idx := builtIndex(t)

	answer, ok := idx.QuickSearch("show all buckets under dept: engineering")
	require.True(t, ok)
	assert.Contains(t, answer, "eng-prod")
	assert.Contains(t, answer, "eng-backup")
	assert.NotContains(t, answer, "fin-audit")
	assert.Contains(t, answer, "(2)")
}

func TestQuickSearchDepartmentLongForm(t *testing.T) {
	idx := builtIndex(t)

	answer, ok := idx.QuickSearch("department: finance")
	require.True(t, ok)
	assert.Contains(t, answer, "fin-audit")
	assert.Contains(t, answer, "Audit trail archive")
}

func TestQuickSearchLabel(t *testing.T) {
	idx := builtIndex(t)

	answer, ok := idx.QuickSearch("which buckets have label: tier:gold")
	require.True(t, ok)
	assert.Contains(t, answer, "eng-prod")
	assert.Contains(t, answer, "fin-audit")
	assert.NotContains(t, answer, "eng-backup")
}

func TestQuickSearchOwner(t *testing.T) {
	idx := builtIndex(t)

	answer, ok := idx.QuickSearch("owner: carol")
	require.True(t, ok)
	assert.Contains(t, answer, "media-cdn")
}

func TestQuickSearchBucketName(t *testing.T) {
	idx := builtIndex(t)

	answer, ok := idx.QuickSearch("bucket: eng-prod")
	require.True(t, ok)
	assert.Contains(t, answer, "Primary engineering workloads")
}

func TestQuickSearchRequiresExplicitPattern(t *testing.T) {
	idx := builtIndex(t)

	// General questions must defer to later tiers even when they mention
	// indexed words.
	_, ok := idx.QuickSearch("tell me about engineering best practices")
	assert.False(t, ok)

	_, ok = idx.QuickSearch("explain raid levels")
	assert.False(t, ok)
}

func TestQuickSearchUnknownKey(t *testing.T) {
	idx := builtIndex(t)

	_, ok := idx.QuickSearch("dept: shipping")
	assert.False(t, ok)
}

func TestQuickSearchUnbuiltIndex(t *testing.T) {
	idx := NewIndex(10)

	_, ok := idx.QuickSearch("dept: engineering")
	assert.False(t, ok)
}

func TestQuickSearchDeterministic(t *testing.T) {
	idx := builtIndex(t)

	first, ok := idx.QuickSearch("dept: engineering")
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, ok := idx.QuickSearch("dept: engineering")
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestBuildJSONSource(t *testing.T) {
	content := `[
		{"name": "eng-prod", "department": "Engineering", "owner": "alice", "labels": ["tier:gold"], "description": "Primary engineering workloads"},
		{"name": "", "department": "ignored"},
		{"name": "fin-audit", "department": "Finance", "owner": "bob", "labels": []}
	]`
	idx := NewIndex(10)
	require.NoError(t, idx.Build(writeMetadata(t, "metadata.json", content)))

	assert.Equal(t, 2, idx.Len())

	answer, ok := idx.QuickSearch("dept: engineering")
	require.True(t, ok)
	assert.Contains(t, answer, "eng-prod")
}

func TestRebuildAtomicity(t *testing.T) {
	idx := builtIndex(t)
	replacement := writeMetadata(t, "replacement.txt",
		"bucket: new-only dept: engineering owner: dave\n")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				answer, ok := idx.QuickSearch("dept: engineering")
				if !ok {
					t.Error("department lookup lost during rebuild")
					return
				}
				// Either fully old or fully new, never a blend.
				oldState := answer == "Buckets in department \"engineering\" (2):\n- eng-backup: Nightly engineering backups\n- eng-prod: Primary engineering workloads"
				newState := answer == "Buckets in department \"engineering\" (1):\n- new-only"
				if !oldState && !newState {
					t.Errorf("observed inconsistent snapshot: %q", answer)
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, idx.Build(replacement))
		require.NoError(t, idx.Build(writeMetadata(t, "orig.txt", sampleMetadata)))
	}
	close(stop)
	wg.Wait()
}

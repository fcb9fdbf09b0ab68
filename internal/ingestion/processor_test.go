package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3ai/backend/internal/fallback"
	"github.com/s3ai/backend/internal/storage/sqlite"
	"github.com/s3ai/backend/internal/vector/milvus"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) GenerateBatchEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

type fakeVectorStore struct {
	chunks []milvus.DocumentChunk
}

func (f *fakeVectorStore) Insert(_ context.Context, chunks []milvus.DocumentChunk) error {
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func setupProcessor(t *testing.T) (*Processor, *sqlite.Client, *fakeVectorStore, *fallback.Scanner) {
	t.Helper()
	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	store := &fakeVectorStore{}
	scanner := fallback.NewScanner(fallback.Options{})
	p := NewProcessor(db, store, &fakeEmbedder{dim: 8}, scanner, 200, 40)
	return p, db, store, scanner
}

func TestProcessDocumentPlainText(t *testing.T) {
	p, db, store, scanner := setupProcessor(t)
	ctx := context.Background()

	content := strings.Repeat("object storage versioning replication lifecycle ", 20)
	require.NoError(t, p.ProcessDocument(ctx, "admin-guide.txt", content))

	doc, err := db.GetDocumentByFilename(ctx, "admin-guide.txt")
	require.NoError(t, err)
	assert.Equal(t, "admin guide", doc.Title)
	assert.Equal(t, "txt", doc.DocType)
	assert.Greater(t, doc.ChunkCount, 1)
	assert.Len(t, store.chunks, doc.ChunkCount)

	// Fallback corpus picked up the text.
	assert.Equal(t, 1, scanner.Len())
	passages := scanner.Scan("replication")
	assert.NotEmpty(t, passages)
}

func TestProcessDocumentHTML(t *testing.T) {
	p, db, store, _ := setupProcessor(t)
	ctx := context.Background()

	html := `<html><head><title>Bucket Policies</title><script>nope()</script></head>
	<body><nav>menu</nav><p>Bucket policies control access to objects.</p><footer>foot</footer></body></html>`

	require.NoError(t, p.ProcessDocument(ctx, "policies.html", html))

	doc, err := db.GetDocumentByFilename(ctx, "policies.html")
	require.NoError(t, err)
	assert.Equal(t, "Bucket Policies", doc.Title)
	assert.Equal(t, "html", doc.DocType)
	assert.NotContains(t, doc.RawContent, "nope()")
	assert.NotContains(t, doc.RawContent, "menu")
	assert.Contains(t, doc.RawContent, "Bucket policies control access")
	require.Len(t, store.chunks, 1)
	assert.Equal(t, "policies.html", store.chunks[0].Source)
}

func TestProcessDocumentEmpty(t *testing.T) {
	p, _, _, _ := setupProcessor(t)
	err := p.ProcessDocument(context.Background(), "empty.txt", "   \n ")
	require.Error(t, err)
}

func TestProcessDirectorySkipsUnsupported(t *testing.T) {
	p, _, store, _ := setupProcessor(t)
	dir := t.TempDir()

	writeFile(t, dir, "a.txt", "alpha bucket content here")
	writeFile(t, dir, "b.md", "beta replication notes here")
	writeFile(t, dir, "c.pdf", "binary junk")
	writeFile(t, dir, "broken.txt", "")

	processed, err := p.ProcessDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Len(t, store.chunks, 2)
}

func TestChunkTextOverlap(t *testing.T) {
	p := &Processor{chunkSize: 50, chunkOverlap: 20}

	words := make([]string, 40)
	for i := range words {
		words[i] = "word"
	}
	chunks := p.chunkText(strings.Join(words, " "))

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 60)
	}

	// Consecutive chunks share trailing words.
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	assert.Equal(t, first[len(first)-1], second[0])
}

func TestChunkTextEmpty(t *testing.T) {
	p := &Processor{chunkSize: 100, chunkOverlap: 10}
	assert.Nil(t, p.chunkText("   "))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

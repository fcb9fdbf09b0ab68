// Package ingestion turns raw documentation files into indexed chunks:
// cleaned text goes to sqlite, embedded chunks go to the vector store,
// and the fallback corpus picks up the cleaned text.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/fallback"
	"github.com/s3ai/backend/internal/metrics"
	"github.com/s3ai/backend/internal/storage/models"
	"github.com/s3ai/backend/internal/storage/sqlite"
	"github.com/s3ai/backend/internal/vector/milvus"
	"github.com/s3ai/backend/pkg/logger"
)

// Embedder produces embeddings for a batch of chunks.
type Embedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore receives embedded chunks.
type VectorStore interface {
	Insert(ctx context.Context, chunks []milvus.DocumentChunk) error
}

type Processor struct {
	db           *sqlite.Client
	vectorDB     VectorStore
	embedder     Embedder
	scanner      *fallback.Scanner
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(db *sqlite.Client, vectorDB VectorStore, embedder Embedder, scanner *fallback.Scanner, chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 100
	}
	return &Processor{
		db:           db,
		vectorDB:     vectorDB,
		embedder:     embedder,
		scanner:      scanner,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ProcessDocument cleans, stores, chunks and indexes one document.
func (p *Processor) ProcessDocument(ctx context.Context, filename, content string) error {
	logger.Info("Processing document", zap.String("filename", filename))

	docType := docTypeFor(filename)
	text := content
	title := titleFromFilename(filename)
	if docType == "html" {
		text = cleanHTML(content)
		if t := extractHTMLTitle(content); t != "" {
			title = t
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("no content extracted from %s", filename)
	}

	chunks := p.chunkText(text)

	docID := uuid.New().String()
	now := time.Now()
	doc := &models.Document{
		ID:         docID,
		Filename:   filename,
		Title:      title,
		DocType:    docType,
		RawContent: text,
		ChunkCount: len(chunks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.db.InsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	embeddings, err := p.embedder.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	vectorChunks := make([]milvus.DocumentChunk, 0, len(chunks))
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_%d", docID, i)
		vectorChunks = append(vectorChunks, milvus.DocumentChunk{
			ID:         chunkID,
			Embedding:  embeddings[i],
			Text:       chunkText,
			Source:     filename,
			ChunkIndex: int64(i),
		})

		dbChunk := &models.DocumentChunk{
			ID:         chunkID,
			DocID:      docID,
			ChunkIndex: i,
			Text:       chunkText,
			CreatedAt:  now,
		}
		if err := p.db.InsertChunk(ctx, dbChunk); err != nil {
			logger.Warn("Failed to persist chunk", zap.String("chunk_id", chunkID), zap.Error(err))
		}
	}

	if len(vectorChunks) > 0 {
		if err := p.vectorDB.Insert(ctx, vectorChunks); err != nil {
			return fmt.Errorf("failed to insert into vector store: %w", err)
		}
	}

	if p.scanner != nil {
		p.scanner.LoadContent(filename, text)
	}

	metrics.DocumentsProcessed.Inc()
	metrics.ChunksIndexed.Add(float64(len(vectorChunks)))

	logger.Info("Document processed",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(vectorChunks)),
	)

	return nil
}

// ProcessDirectory ingests every supported file in dir. Individual file
// failures are logged and skipped.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read docs directory: %w", err)
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt", ".md", ".html", ".htm":
		default:
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("Failed to read document", zap.String("filename", name), zap.Error(err))
			continue
		}
		if err := p.ProcessDocument(ctx, name, string(data)); err != nil {
			logger.Warn("Failed to process document", zap.String("filename", name), zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func extractHTMLTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}
	return strings.TrimSpace(title)
}

func titleFromFilename(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return strings.ReplaceAll(strings.ReplaceAll(base, "_", " "), "-", " ")
}

func docTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		return "html"
	case ".md":
		return "markdown"
	default:
		return "txt"
	}
}

func (p *Processor) chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	size := 0

	for _, word := range words {
		wordLen := len(word) + 1

		if size+wordLen > p.chunkSize && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))

			overlapWords := strings.Fields(current.String())
			start := len(overlapWords) - p.chunkOverlap/10
			if start < 0 {
				start = 0
			}
			current.Reset()
			current.WriteString(strings.Join(overlapWords[start:], " ") + " ")
			size = current.Len()
		}

		current.WriteString(word + " ")
		size += wordLen
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

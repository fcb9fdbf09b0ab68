// Package vector implements similarity search over the documentation
// corpus backed by Milvus, with query embeddings from the LLM service.
package vector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/s3ai/backend/internal/vector/milvus"
	"github.com/s3ai/backend/pkg/logger"
)

// Embedder produces an embedding for a single piece of text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ScoredChunk is one retrieved passage with its similarity score.
type ScoredChunk struct {
	Text   string
	Source string
	Score  float32
}

// Searcher embeds a query and retrieves the nearest document chunks.
type Searcher struct {
	embedder Embedder
	store    *milvus.Client
	topK     int
	minScore float32
}

func NewSearcher(embedder Embedder, store *milvus.Client, topK int, minScore float32) *Searcher {
	return &Searcher{
		embedder: embedder,
		store:    store,
		topK:     topK,
		minScore: minScore,
	}
}

// Search returns up to topK chunks scoring at or above the minimum
// score, ordered most similar first.
func (s *Searcher) Search(ctx context.Context, query string) ([]ScoredChunk, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.store.Search(ctx, embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	chunks := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score < s.minScore {
			continue
		}
		chunks = append(chunks, ScoredChunk{
			Text:   r.Text,
			Source: r.Source,
			Score:  r.Score,
		})
	}

	logger.Debug("Similarity search",
		zap.Int("candidates", len(results)),
		zap.Int("kept", len(chunks)),
	)

	return chunks, nil
}

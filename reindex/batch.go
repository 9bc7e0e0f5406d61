package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/retry"
	"github.com/poiesic/ragnote/storage"
)

// BatchProcessor embeds batches of chunks and writes them to a vector index.
type BatchProcessor struct {
	index    storage.VectorIndex
	embedder ai.Embedder
	retry    retry.Policy
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding and index calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(index storage.VectorIndex, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		index:    index,
		embedder: embedder,
		retry:    retry.Policy{MaxAttempts: maxRetries, BaseDelay: retryBaseDelay},
	}
}

// Process embeds a batch of chunks and upserts the normalized vectors.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var embeddings [][]float32
	err := bp.retry.Do(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: embedding batch after %d attempts: %w", core.ErrEmbedding, bp.retry.MaxAttempts, err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(chunks), len(embeddings))
	}

	for i, chunk := range chunks {
		if len(embeddings[i]) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %d", core.ErrEmbedding, chunk.ID)
		}
		vector := NormalizeVector(embeddings[i])
		err := bp.retry.Do(ctx, func() error {
			return bp.index.Upsert(ctx, chunk.ID, vector)
		})
		if err != nil {
			return fmt.Errorf("%w: chunk %d: %w", core.ErrIndex, chunk.ID, err)
		}
	}

	return nil
}

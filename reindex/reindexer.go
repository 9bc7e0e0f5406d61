package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
)

// Config holds configuration for a reindex run.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every chunk and writes the vectors to an index.
type Reindexer struct {
	chunks    storage.ChunkRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
	logger    *slog.Logger
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(chunks storage.ChunkRepository, index storage.VectorIndex, embedder ai.Embedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}

	return &Reindexer{
		chunks:    chunks,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(index, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewChunkIterator(chunks, config.BatchSize),
		logger:    slog.Default().With("component", "reindex"),
	}
}

// Run re-embeds all chunks and returns how many were indexed.
// A failed batch stops the run; chunks indexed before it keep their new
// vectors.
func (r *Reindexer) Run(ctx context.Context) (int, error) {
	total, err := r.chunks.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", core.ErrStorage, err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found (0 chunks)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d chunks (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("processing batch after chunk %d: %w", chunks[0].ID, err)
		}
		processed += len(chunks)
		tracker.Increment(len(chunks))
		return nil
	})
	if err != nil {
		r.logger.Error("reindex stopped", "processed", processed, "total", total, "err", err)
		return processed, err
	}

	tracker.Finish(processed)

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Millisecond), float64(processed)/max(elapsed.Seconds(), 1e-9))

	return processed, nil
}

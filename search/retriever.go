package search

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
)

const (
	defaultTopK          = 10
	defaultMinScore      = 0.2
	defaultFallbackLimit = 10
)

// Source identifies which stage produced the chunks of a Retrieval.
type Source string

const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
	SourceNone    Source = "none"
)

// Retrieval is the result of one retrieval.
type Retrieval struct {
	Chunks []*core.Chunk
	Source Source
}

// Retriever finds knowledge-base chunks relevant to a question.
type Retriever struct {
	chunks           storage.ChunkRepository
	index            storage.VectorIndex
	embedder         ai.Embedder
	topK             int
	minScore         float32
	fallbackTriggers []string
	fallbackTerms    []string
	fallbackLimit    int
	logger           *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithTopK sets how many nearest neighbors are requested from the index.
// Default is 10.
func WithTopK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			return ErrInvalidTopK
		}
		r.topK = k
		return nil
	}
}

// WithMinScore sets the similarity a scored match must exceed to be kept.
// Default is 0.2.
func WithMinScore(score float32) Option {
	return func(r *Retriever) error {
		r.minScore = score
		return nil
	}
}

// WithFallback replaces the keyword fallback triggers and search terms.
// Empty triggers disable the fallback.
func WithFallback(triggers, terms []string) Option {
	return func(r *Retriever) error {
		r.fallbackTriggers = triggers
		r.fallbackTerms = terms
		return nil
	}
}

// WithFallbackLimit sets the maximum number of chunks the keyword fallback
// returns. Default is 10.
func WithFallbackLimit(limit int) Option {
	return func(r *Retriever) error {
		if limit < 1 {
			limit = defaultFallbackLimit
		}
		r.fallbackLimit = limit
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(
	chunks storage.ChunkRepository,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Retriever, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	triggers, terms := OwnerFallback("")
	r := &Retriever{
		chunks:           chunks,
		index:            index,
		embedder:         embedder,
		topK:             defaultTopK,
		minScore:         defaultMinScore,
		fallbackTriggers: triggers,
		fallbackTerms:    terms,
		fallbackLimit:    defaultFallbackLimit,
		logger:           slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// FilterMatches keeps the matches that are unscored or score strictly above
// minScore, preserving order.
func FilterMatches(matches []core.VectorMatch, minScore float32) []core.VectorMatch {
	kept := make([]core.VectorMatch, 0, len(matches))
	for _, match := range matches {
		if !match.Scored || match.Score > minScore {
			kept = append(kept, match)
		}
	}
	return kept
}

// Retrieve returns the chunks relevant to question.
// Failures of the embedder, index or store degrade to fewer chunks; the
// error is non-nil only when ctx is done.
func (r *Retriever) Retrieve(ctx context.Context, question string, monitor SearchMonitor) (*Retrieval, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(question)

	result := &Retrieval{Chunks: []*core.Chunk{}, Source: SourceNone}
	if chunks := r.vectorSearch(ctx, question, monitor); len(chunks) > 0 {
		result.Chunks = chunks
		result.Source = SourceVector
	} else if containsAny(question, r.fallbackTriggers) {
		monitor.FallbackTriggered(r.fallbackTerms)
		if chunks := r.keywordSearch(ctx); len(chunks) > 0 {
			result.Chunks = chunks
			result.Source = SourceKeyword
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("retrieval finished", "source", result.Source, "chunks", len(result.Chunks))
	monitor.Finish(result)
	return result, nil
}

func (r *Retriever) vectorSearch(ctx context.Context, question string, monitor SearchMonitor) []*core.Chunk {
	vector, err := r.embedder.EmbedText(ctx, question)
	monitor.AfterEmbedding(vector, err)
	if err != nil {
		r.logger.Error("error generating embedding for question", "err", err)
		return nil
	}
	if len(vector) == 0 {
		r.logger.Error("embedder returned an empty vector for question")
		return nil
	}

	matches, err := r.index.Query(ctx, vector, r.topK)
	if err != nil {
		r.logger.Error("error querying vector index", "err", err)
		matches = nil
	}
	monitor.AfterVectorSearch(matches)

	kept := FilterMatches(matches, r.minScore)
	monitor.AfterFilter(kept)
	if len(kept) == 0 {
		return nil
	}

	ids := make([]core.ID, len(kept))
	for i, match := range kept {
		ids[i] = match.ChunkID
	}
	chunks, err := r.chunks.GetChunks(ctx, ids...)
	if err != nil {
		r.logger.Error("error resolving chunks", "chunkCount", len(ids), "err", err)
		chunks = nil
	}
	if len(chunks) < len(ids) {
		r.logger.Debug("index references missing chunks", "requested", len(ids), "resolved", len(chunks))
	}
	monitor.AfterResolve(chunks)
	return chunks
}

func (r *Retriever) keywordSearch(ctx context.Context) []*core.Chunk {
	if len(r.fallbackTerms) == 0 {
		return nil
	}
	chunks, err := r.chunks.SearchChunks(ctx, r.fallbackTerms, r.fallbackLimit)
	if err != nil {
		r.logger.Error("error running keyword fallback", "err", err)
		return nil
	}
	r.logger.Debug("keyword fallback used", "chunks", len(chunks))
	return chunks
}

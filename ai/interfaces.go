package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a chat completion from an ordered message list.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the model's reply to messages, using at most maxTokens
	// output tokens. An empty reply is not an error at this level.
	Generate(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

// GeneratorFactory builds a Generator for one backend configuration.
// Factories are registered per provider name and invoked once at startup.
type GeneratorFactory func(cfg BackendConfig) (Generator, error)

// AIProvider aggregates the embedding service for convenient initialization
// and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

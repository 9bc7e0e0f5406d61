package ingestion

import "errors"

var (
	// ErrStepLogRequired is returned when a step log is not provided.
	ErrStepLogRequired = errors.New("step log required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmptyText is returned by Start when there is nothing to ingest.
	ErrEmptyText = errors.New("text is empty")

	// ErrEngineClosed is returned when work is submitted after Release.
	ErrEngineClosed = errors.New("ingestion engine released")
)

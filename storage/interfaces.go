package storage

import (
	"context"

	"github.com/poiesic/ragnote/core"
)

// ChunkRepository stores ingested chunks.
// Implementations must be thread-safe and support concurrent access.
type ChunkRepository interface {
	// AddChunk inserts a chunk and returns it with ID and CreatedAt populated.
	// When IngestKey is non-zero and a chunk with the same key already exists,
	// the existing chunk is returned and nothing is written.
	AddChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error)

	// GetChunks retrieves chunks by ID, in the order given.
	// Missing IDs are skipped (no error).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// DeleteChunk removes a chunk and its ingest key index entry.
	// Returns ErrNotFound if the chunk doesn't exist.
	DeleteChunk(ctx context.Context, id core.ID) error

	// SearchChunks returns up to limit chunks whose text contains any of the
	// terms, compared case-insensitively, ordered by ID.
	SearchChunks(ctx context.Context, terms []string, limit int) ([]*core.Chunk, error)

	// ListChunks returns up to limit chunks with ID greater than afterID, ordered by ID.
	ListChunks(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// Close releases repository resources.
	Close() error
}

// ProfileRepository stores user profiles, one per user id.
type ProfileRepository interface {
	// UpsertProfile creates or replaces the profile for profile.UserID.
	// Last write wins. UpdatedAt is set to the current time.
	UpsertProfile(ctx context.Context, profile *core.UserProfile) (*core.UserProfile, error)

	// GetProfile retrieves a profile.
	// Returns ErrNotFound if the user has no profile.
	GetProfile(ctx context.Context, userID string) (*core.UserProfile, error)
}

// ConversationRepository stores conversation bindings and their turns.
type ConversationRepository interface {
	// BindConversation binds conversationID to userID if it is unbound.
	// Returns core.ErrConversationOwnership if it is bound to another user.
	BindConversation(ctx context.Context, conversationID, userID string) (*core.Conversation, error)

	// GetConversation retrieves a binding.
	// Returns ErrNotFound if the conversation id was never bound.
	GetConversation(ctx context.Context, conversationID string) (*core.Conversation, error)

	// AppendTurns appends turns in order. Every turn is validated against the
	// binding of its conversation: unbound conversations are bound to the
	// turn's user, mismatches return core.ErrConversationOwnership and nothing
	// is written.
	AppendTurns(ctx context.Context, turns ...*core.ConversationTurn) error

	// RecentTurns returns the most recent limit turns of a conversation,
	// ordered oldest to newest.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]*core.ConversationTurn, error)
}

// StepLog persists ingestion workflow instances and memoized step results.
type StepLog interface {
	// CreateInstance records a new workflow instance.
	// Returns ErrDuplicateKey if the id is already in use.
	CreateInstance(ctx context.Context, instance *core.WorkflowInstance) error

	// UpdateInstance replaces an existing instance and refreshes UpdatedAt.
	// Returns ErrNotFound if the instance doesn't exist.
	UpdateInstance(ctx context.Context, instance *core.WorkflowInstance) error

	// GetInstance retrieves an instance.
	// Returns ErrNotFound if the instance doesn't exist.
	GetInstance(ctx context.Context, id string) (*core.WorkflowInstance, error)

	// ListInstances returns instances in the given states, oldest first.
	// An empty status list returns every instance.
	ListInstances(ctx context.Context, statuses ...core.WorkflowStatus) ([]*core.WorkflowInstance, error)

	// SaveStep records the result of a completed step.
	SaveStep(ctx context.Context, record *core.StepRecord) error

	// LoadStep retrieves a memoized step result.
	// Returns nil, nil if the step has not completed.
	LoadStep(ctx context.Context, instanceID string, step core.StepName, chunkIndex int) (*core.StepRecord, error)
}

// VectorIndex provides nearest-neighbor search over chunk embeddings.
type VectorIndex interface {
	// Upsert stores or replaces the vector for a chunk.
	Upsert(ctx context.Context, chunkID core.ID, vector []float32) error

	// Query returns up to topK matches ordered by descending similarity.
	Query(ctx context.Context, vector []float32, topK int) ([]core.VectorMatch, error)

	// Delete removes vectors by chunk id. Missing ids are ignored.
	Delete(ctx context.Context, chunkIDs ...core.ID) error
}

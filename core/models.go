package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// IngestKeyFor returns the idempotency key of the chunk produced at
// chunkIndex by a workflow instance.
func IngestKeyFor(instanceID string, chunkIndex int) ID {
	return IDFromContent(instanceID + "/" + strconv.Itoa(chunkIndex))
}

// Chunk is a bounded-length segment of ingested text, the unit of indexing.
type Chunk struct {
	ID        ID
	Text      string
	SourceURL string // Optional: the URL the text was extracted from
	IngestKey ID     // Unique per store; repeated inserts with the same key return the existing row
	CreatedAt time.Time
}

// UserProfile holds free-form personalization text for a user.
type UserProfile struct {
	UserID    string
	Info      string
	UpdatedAt time.Time
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation binds a conversation id to the user that owns it.
type Conversation struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// ConversationTurn is one role-tagged message of a conversation.
type ConversationTurn struct {
	ConversationID string
	UserID         string
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// WorkflowStatus is the lifecycle state of an ingestion workflow instance.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowPartial   WorkflowStatus = "partial"
)

// Terminal reports whether no further automatic processing happens in state s.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowPartial
}

// WorkflowInstance is one invocation of the ingestion workflow.
type WorkflowInstance struct {
	ID         string
	Text       string
	SourceURL  string
	Status     WorkflowStatus
	ChunkCount int
	Failed     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StepName names a memoized unit of the ingestion workflow.
type StepName string

const (
	StepSplit   StepName = "split"
	StepPersist StepName = "persist"
	StepEmbed   StepName = "embed"
	StepIndex   StepName = "index"
)

// SplitChunkIndex is the chunk index recorded for the split step, which is not per chunk.
const SplitChunkIndex = -1

// StepRecord is the memoized result of a completed workflow step.
// Only the field matching Step is populated.
type StepRecord struct {
	InstanceID  string
	Step        StepName
	ChunkIndex  int
	Texts       []string  // split
	ChunkID     ID        // persist
	Vector      []float32 // embed
	CompletedAt time.Time
}

// VectorMatch is a nearest-neighbor hit returned by a vector index.
// Scored is false for backends that do not report similarity.
type VectorMatch struct {
	ChunkID ID
	Score   float32
	Scored  bool
}

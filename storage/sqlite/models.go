package sqlite

import (
	"time"

	"github.com/poiesic/ragnote/core"
)

// Row types mapped by gorm. Identifiers derived from hashes can exceed the
// signed 64-bit range the driver accepts, so they are stored as int64 bit
// patterns and converted at the boundary.

type chunkRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Text      string `gorm:"not null"`
	SourceURL string
	IngestKey *int64 `gorm:"uniqueIndex"`
	CreatedAt time.Time
}

func (chunkRow) TableName() string { return "chunks" }

func chunkToRow(c *core.Chunk) *chunkRow {
	row := &chunkRow{
		ID:        int64(c.ID),
		Text:      c.Text,
		SourceURL: c.SourceURL,
		CreatedAt: c.CreatedAt,
	}
	if c.IngestKey != 0 {
		key := int64(c.IngestKey)
		row.IngestKey = &key
	}
	return row
}

func (r *chunkRow) toCore() *core.Chunk {
	c := &core.Chunk{
		ID:        core.ID(r.ID),
		Text:      r.Text,
		SourceURL: r.SourceURL,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.IngestKey != nil {
		c.IngestKey = core.ID(*r.IngestKey)
	}
	return c
}

type profileRow struct {
	UserID    string `gorm:"primaryKey"`
	Info      string
	UpdatedAt time.Time
}

func (profileRow) TableName() string { return "profiles" }

type conversationRow struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	CreatedAt time.Time
}

func (conversationRow) TableName() string { return "conversations" }

type turnRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"not null;index:idx_turns_conv_time"`
	UserID         string `gorm:"not null"`
	Role           string `gorm:"not null"`
	Content        string
	CreatedAt      time.Time `gorm:"index:idx_turns_conv_time"`
}

func (turnRow) TableName() string { return "turns" }

func (r *turnRow) toCore() *core.ConversationTurn {
	return &core.ConversationTurn{
		ConversationID: r.ConversationID,
		UserID:         r.UserID,
		Role:           core.Role(r.Role),
		Content:        r.Content,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type instanceRow struct {
	ID         string `gorm:"primaryKey"`
	Text       string
	SourceURL  string
	Status     string `gorm:"index"`
	ChunkCount int
	Failed     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (instanceRow) TableName() string { return "workflow_instances" }

func instanceToRow(w *core.WorkflowInstance) *instanceRow {
	return &instanceRow{
		ID:         w.ID,
		Text:       w.Text,
		SourceURL:  w.SourceURL,
		Status:     string(w.Status),
		ChunkCount: w.ChunkCount,
		Failed:     w.Failed,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
}

func (r *instanceRow) toCore() *core.WorkflowInstance {
	return &core.WorkflowInstance{
		ID:         r.ID,
		Text:       r.Text,
		SourceURL:  r.SourceURL,
		Status:     core.WorkflowStatus(r.Status),
		ChunkCount: r.ChunkCount,
		Failed:     r.Failed,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type stepRow struct {
	InstanceID  string    `gorm:"primaryKey"`
	Step        string    `gorm:"primaryKey"`
	ChunkIndex  int       `gorm:"primaryKey;autoIncrement:false"`
	Texts       []string  `gorm:"serializer:json"`
	ChunkID     int64
	Vector      []float32 `gorm:"serializer:json"`
	CompletedAt time.Time
}

func (stepRow) TableName() string { return "workflow_steps" }

func (r *stepRow) toCore() *core.StepRecord {
	return &core.StepRecord{
		InstanceID:  r.InstanceID,
		Step:        core.StepName(r.Step),
		ChunkIndex:  r.ChunkIndex,
		Texts:       r.Texts,
		ChunkID:     core.ID(r.ChunkID),
		Vector:      r.Vector,
		CompletedAt: r.CompletedAt.UTC(),
	}
}

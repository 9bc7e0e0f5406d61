package storage

import (
	"testing"
	"time"

	"github.com/poiesic/ragnote/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestStepRecordPreservesResults(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("split texts keep order and empty entries", func(t *testing.T) {
		record := &core.StepRecord{
			InstanceID:  "wf-1",
			Step:        core.StepSplit,
			ChunkIndex:  core.SplitChunkIndex,
			Texts:       []string{"first", "", "third"},
			CompletedAt: now,
		}
		decoded, err := UnmarshalStepRecord(MarshalStepRecord(record))
		require.NoError(t, err)
		assert.Equal(t, record, decoded)
	})

	t.Run("embed vector survives exactly", func(t *testing.T) {
		record := &core.StepRecord{
			InstanceID:  "wf-1",
			Step:        core.StepEmbed,
			ChunkIndex:  3,
			Vector:      []float32{0.125, -1.5, 3.25e-7},
			CompletedAt: now,
		}
		decoded, err := UnmarshalStepRecord(MarshalStepRecord(record))
		require.NoError(t, err)
		assert.Equal(t, record.Vector, decoded.Vector)
		assert.Equal(t, 3, decoded.ChunkIndex)
	})
}

func TestChunkZeroTimeRoundTripsAsZero(t *testing.T) {
	chunk := &core.Chunk{ID: 7, Text: "text", IngestKey: core.IngestKeyFor("wf", 0)}
	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.IsZero())
	assert.Equal(t, chunk.IngestKey, decoded.IngestKey)
}

func TestUnmarshalTruncated(t *testing.T) {
	data := MarshalTurn(&core.ConversationTurn{
		ConversationID: "conv-1",
		UserID:         "owner",
		Role:           core.RoleUser,
		Content:        "a message long enough to truncate",
		CreatedAt:      time.Now().UTC(),
	})
	_, err := UnmarshalTurn(data[:len(data)/2])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

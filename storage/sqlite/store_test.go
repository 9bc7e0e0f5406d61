package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ragnote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestChunks(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Hash-derived keys routinely have the high bit set.
	key := core.ID(0xF000_0000_0000_0001)
	first, err := store.AddChunk(ctx, &core.Chunk{Text: "Resume: Go engineer", IngestKey: key})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	again, err := store.AddChunk(ctx, &core.Chunk{Text: "Resume: Go engineer", IngestKey: key})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, key, again.IngestKey)

	second, err := store.AddChunk(ctx, &core.Chunk{Text: "100% literal_match", SourceURL: "https://example.com"})
	require.NoError(t, err)

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := store.GetChunks(ctx, second.ID, 12345, first.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, "https://example.com", got[0].SourceURL)

	found, err := store.SearchChunks(ctx, []string{"RESUME"}, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)

	literal, err := store.SearchChunks(ctx, []string{"0%"}, 10)
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, second.ID, literal[0].ID)

	page, err := store.ListChunks(ctx, first.ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	require.NoError(t, store.DeleteChunk(ctx, first.ID))
	assert.ErrorIs(t, store.DeleteChunk(ctx, first.ID), storage.ErrNotFound)
}

func TestProfiles(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.GetProfile(ctx, "owner")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.UpsertProfile(ctx, &core.UserProfile{UserID: "owner", Info: "v1"})
	require.NoError(t, err)
	_, err = store.UpsertProfile(ctx, &core.UserProfile{UserID: "owner", Info: "v2"})
	require.NoError(t, err)

	got, err := store.GetProfile(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Info)
}

func TestConversations(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 12; i++ {
		require.NoError(t, store.AppendTurns(ctx, &core.ConversationTurn{
			ConversationID: "conv-1",
			UserID:         "alice",
			Role:           core.RoleUser,
			Content:        fmt.Sprintf("turn %02d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	turns, err := store.RecentTurns(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 10)
	assert.Equal(t, "turn 02", turns[0].Content)
	assert.Equal(t, "turn 11", turns[9].Content)

	err = store.AppendTurns(ctx, &core.ConversationTurn{
		ConversationID: "conv-1",
		UserID:         "mallory",
		Role:           core.RoleUser,
		Content:        "hijack",
	})
	assert.ErrorIs(t, err, core.ErrConversationOwnership)

	turns, err = store.RecentTurns(ctx, "conv-1", 100)
	require.NoError(t, err)
	assert.Len(t, turns, 12)

	conv, err := store.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", conv.UserID)

	_, err = store.BindConversation(ctx, "conv-1", "mallory")
	assert.ErrorIs(t, err, core.ErrConversationOwnership)
}

func TestStepLog(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateInstance(ctx, &core.WorkflowInstance{ID: "wf-1", Text: "body"}))
	assert.ErrorIs(t, store.CreateInstance(ctx, &core.WorkflowInstance{ID: "wf-1"}), storage.ErrDuplicateKey)

	instance, err := store.GetInstance(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowPending, instance.Status)

	instance.Status = core.WorkflowPartial
	instance.Failed = 1
	require.NoError(t, store.UpdateInstance(ctx, instance))

	partial, err := store.ListInstances(ctx, core.WorkflowPartial)
	require.NoError(t, err)
	require.Len(t, partial, 1)
	assert.Equal(t, 1, partial[0].Failed)

	assert.ErrorIs(t, store.UpdateInstance(ctx, &core.WorkflowInstance{ID: "nope"}), storage.ErrNotFound)

	require.NoError(t, store.SaveStep(ctx, &core.StepRecord{
		InstanceID: "wf-1", Step: core.StepSplit, ChunkIndex: core.SplitChunkIndex, Texts: []string{"a", "b"},
	}))
	require.NoError(t, store.SaveStep(ctx, &core.StepRecord{
		InstanceID: "wf-1", Step: core.StepEmbed, ChunkIndex: 0, Vector: []float32{0.25, 0.75},
	}))
	// Saving again replaces the memo.
	require.NoError(t, store.SaveStep(ctx, &core.StepRecord{
		InstanceID: "wf-1", Step: core.StepEmbed, ChunkIndex: 0, Vector: []float32{1, 0},
	}))

	split, err := store.LoadStep(ctx, "wf-1", core.StepSplit, core.SplitChunkIndex)
	require.NoError(t, err)
	require.NotNil(t, split)
	assert.Equal(t, []string{"a", "b"}, split.Texts)

	embed, err := store.LoadStep(ctx, "wf-1", core.StepEmbed, 0)
	require.NoError(t, err)
	require.NotNil(t, embed)
	assert.Equal(t, []float32{1, 0}, embed.Vector)

	missing, err := store.LoadStep(ctx, "wf-1", core.StepIndex, 0)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

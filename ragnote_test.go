package ragnote

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/ai/mock"
	"github.com/poiesic/ragnote/chat"
	"github.com/poiesic/ragnote/config"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Generation.Preferred.APIKey = "test-key"
	cfg.Ingestion.RetryDelay = 0
	cfg.Persona.OwnerName = "Grace Hopper"
	return cfg
}

func openAssistant(t *testing.T, cfg *config.Config, generator *mock.MockGenerator) *Assistant {
	t.Helper()
	assistant, err := Open(cfg,
		WithEmbedder(mock.NewMockEmbedder()),
		WithGeneratorFactory(ai.ProviderMistral, generator.Factory()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { assistant.Close() })
	return assistant
}

func TestOpen_Backends(t *testing.T) {
	testCases := []struct {
		name    string
		backend string
	}{
		{"badger", config.BackendBadger},
		{"sqlite", config.BackendSQLite},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Storage.Backend = tc.backend
			assistant := openAssistant(t, cfg, mock.NewMockGenerator("Grace writes compilers."))

			ctx := context.Background()
			id, err := assistant.Ingest(ctx, "Grace Hopper wrote the first compiler and popularized COBOL.")
			require.NoError(t, err)
			assistant.Wait()

			instance, err := assistant.Instance(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, core.WorkflowCompleted, instance.Status)

			resp, err := assistant.Chat(ctx, chat.Request{Text: "What did Grace Hopper write?"})
			require.NoError(t, err)
			assert.Equal(t, "Grace writes compilers.", resp.Response)
			assert.True(t, resp.ContextUsed)
			assert.Equal(t, assistant.Model(), resp.Model)
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "postgres"
	_, err := Open(cfg, WithEmbedder(mock.NewMockEmbedder()))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestOpen_MissingCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.Backend = string(ai.BackendPreferred)
	cfg.Generation.Preferred.APIKey = ""
	_, err := Open(cfg, WithEmbedder(mock.NewMockEmbedder()))
	assert.ErrorIs(t, err, ai.ErrMissingCredentials)
}

func TestAssistant_UpdateProfile(t *testing.T) {
	generator := mock.NewMockGenerator("Hello Grace.")
	assistant := openAssistant(t, testConfig(t), generator)
	ctx := context.Background()

	profile, err := assistant.UpdateProfile(ctx, "", "Rear admiral, computer scientist.")
	require.NoError(t, err)
	assert.Equal(t, "owner", profile.UserID)

	_, err = assistant.Chat(ctx, chat.Request{Text: "Who am I?"})
	require.NoError(t, err)
	system := generator.LastRequest()[0]
	assert.Contains(t, system.Content, "Rear admiral, computer scientist.")
}

func TestAssistant_DeleteChunk(t *testing.T) {
	assistant := openAssistant(t, testConfig(t), mock.NewMockGenerator("ok"))
	ctx := context.Background()

	id, err := assistant.Ingest(ctx, "A note that will be removed.")
	require.NoError(t, err)
	assistant.Wait()

	instance, err := assistant.Instance(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.WorkflowCompleted, instance.Status)

	chunks, err := assistant.chunks.ListChunks(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	chunkID := chunks[0].ID

	require.NoError(t, assistant.DeleteChunk(ctx, chunkID))

	remaining, err := assistant.chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	matches, err := assistant.index.Query(ctx, mock.DeterministicVector("A note that will be removed.", mock.DefaultDimension), 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.ErrorIs(t, assistant.DeleteChunk(ctx, chunkID), storage.ErrNotFound)
}

func TestAssistant_DeleteChunkPartialFailure(t *testing.T) {
	qdrantSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(qdrantSrv.Close)

	cfg := testConfig(t)
	cfg.Storage.VectorIndex = config.BackendQdrant
	cfg.Storage.Qdrant.URL = qdrantSrv.URL
	assistant := openAssistant(t, cfg, mock.NewMockGenerator("ok"))
	ctx := context.Background()

	chunk, err := assistant.chunks.AddChunk(ctx, &core.Chunk{Text: "orphaned row"})
	require.NoError(t, err)

	err = assistant.DeleteChunk(ctx, chunk.ID)
	assert.ErrorIs(t, err, ErrPartialDelete)

	count, err := assistant.chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "the row is gone even though the vector delete failed")
}

func TestAssistant_Reindex(t *testing.T) {
	assistant := openAssistant(t, testConfig(t), mock.NewMockGenerator("ok"))
	ctx := context.Background()

	for _, text := range []string{"first note", "second note"} {
		_, err := assistant.Ingest(ctx, text)
		require.NoError(t, err)
	}
	assistant.Wait()

	var progress bytes.Buffer
	processed, err := assistant.Reindex(ctx, &progress)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Contains(t, progress.String(), "Reindex complete")
}

func TestAssistant_ResumeWithNothingPending(t *testing.T) {
	assistant := openAssistant(t, testConfig(t), mock.NewMockGenerator("ok"))

	resumed, err := assistant.Resume(context.Background(), true)
	require.NoError(t, err)
	assert.Zero(t, resumed)
}

func TestAssistant_ReopenKeepsData(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, err := Open(cfg, WithEmbedder(mock.NewMockEmbedder()),
		WithGeneratorFactory(ai.ProviderMistral, mock.NewMockGenerator("ok").Factory()))
	require.NoError(t, err)
	_, err = first.Ingest(ctx, "durable note")
	require.NoError(t, err)
	first.Wait()
	require.NoError(t, first.Close())

	second := openAssistant(t, cfg, mock.NewMockGenerator("ok"))
	count, err := second.chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

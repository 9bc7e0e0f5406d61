package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	backend, err := OpenBackend(path, false)
	assert.Error(t, err)
	assert.Nil(t, backend)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestSequenceSkipsZero(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("seq:test")
	require.NoError(t, err)
	defer seq.Release()

	first, err := nextID(seq)
	require.NoError(t, err)
	second, err := nextID(seq)
	require.NoError(t, err)

	assert.NotZero(t, first)
	assert.Greater(t, second, first)
}

func TestKeysDoNotCollideAcrossIDs(t *testing.T) {
	assert.False(t, hasPrefix(makeTurnKey("conv-1", nowMicros(), 1), makeTurnPrefix("conv-")))
	assert.False(t, hasPrefix(makeStepKey("wf-10", "split", -1), makeStepPrefix("wf-1")))
}

func TestOpenRepositories_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repos, err := OpenRepositories(dir, false)
	require.NoError(t, err)
	added, err := repos.Chunks.AddChunk(ctx, newChunk("persisted across restarts", 0))
	require.NoError(t, err)
	require.NoError(t, repos.Close())

	repos, err = OpenRepositories(dir, false)
	require.NoError(t, err)
	defer repos.Close()

	got, err := repos.Chunks.GetChunks(ctx, added.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persisted across restarts", got[0].Text)
}

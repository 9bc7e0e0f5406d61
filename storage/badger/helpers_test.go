package badger

import (
	"bytes"
	"testing"
	"time"

	"github.com/poiesic/ragnote/core"
	"github.com/stretchr/testify/require"
)

func setupRepositories(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func newChunk(text string, ingestKey core.ID) *core.Chunk {
	return &core.Chunk{Text: text, IngestKey: ingestKey}
}

func hasPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}

func nowMicros() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

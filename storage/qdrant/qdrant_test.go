package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/poiesic/ragnote/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQdrant struct {
	mu       sync.Mutex
	created  int
	requests []string
	points   map[uint64][]float32
	apiKeys  []string
}

func (f *fakeQdrant) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /collections/notes", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		f.created++
		f.mu.Unlock()
		w.Write([]byte(`{"result":true}`))
	})
	mux.HandleFunc("PUT /collections/notes/points", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body struct {
			Points []struct {
				ID     uint64    `json:"id"`
				Vector []float32 `json:"vector"`
			} `json:"points"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		for _, p := range body.Points {
			f.points[p.ID] = p.Vector
		}
		f.mu.Unlock()
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	mux.HandleFunc("POST /collections/notes/points/search", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"result":[{"id":18446744073709551615,"score":0.91},{"id":2,"score":0.15}]}`))
	})
	mux.HandleFunc("POST /collections/notes/points/delete", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body struct {
			Points []uint64 `json:"points"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		for _, id := range body.Points {
			delete(f.points, id)
		}
		f.mu.Unlock()
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	return mux
}

func (f *fakeQdrant) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))
}

func setup(t *testing.T) (*Index, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{points: make(map[uint64][]float32)}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	ix, err := NewIndex(Config{URL: server.URL + "/", APIKey: "secret", Collection: "notes"})
	require.NoError(t, err)
	return ix, fake
}

func TestNewIndex_RequiresCollection(t *testing.T) {
	_, err := NewIndex(Config{URL: "http://localhost:6333"})
	assert.ErrorIs(t, err, ErrCollectionRequired)
}

func TestUpsert_CreatesCollectionOnce(t *testing.T) {
	ix, fake := setup(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, 1, []float32{0.1, 0.2}))
	require.NoError(t, ix.Upsert(ctx, 2, []float32{0.3, 0.4}))

	assert.Equal(t, 1, fake.created)
	assert.Len(t, fake.points, 2)
	assert.Equal(t, []float32{0.3, 0.4}, fake.points[2])
	for _, key := range fake.apiKeys {
		assert.Equal(t, "secret", key)
	}

	err := ix.Upsert(ctx, 3, []float32{1, 2, 3})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestQuery_DecodesMatches(t *testing.T) {
	ix, _ := setup(t)

	matches, err := ix.Query(context.Background(), []float32{0.1, 0.2}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.EqualValues(t, uint64(18446744073709551615), matches[0].ChunkID)
	assert.InDelta(t, 0.91, matches[0].Score, 1e-6)
	assert.True(t, matches[0].Scored)

	_, err = ix.Query(context.Background(), []float32{0.1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestQuery_MissingCollectionIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	ix, err := NewIndex(Config{URL: server.URL, Collection: "absent"})
	require.NoError(t, err)

	matches, err := ix.Query(context.Background(), []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestQuery_ServerErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	ix, err := NewIndex(Config{URL: server.URL, Collection: "notes"})
	require.NoError(t, err)

	_, err = ix.Query(context.Background(), []float32{1}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestDelete(t *testing.T) {
	ix, fake := setup(t)
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, 7, []float32{1, 0}))
	require.NoError(t, ix.Delete(ctx, 7, 8))
	assert.Empty(t, fake.points)
	require.NoError(t, ix.Delete(ctx))
}

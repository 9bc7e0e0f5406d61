// Package qdrant implements storage.VectorIndex on a Qdrant collection,
// reached through its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
)

const defaultTimeout = 15 * time.Second

// ErrCollectionRequired is returned when no collection name is configured.
var ErrCollectionRequired = errors.New("qdrant collection name is required")

// Config describes how to reach the collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Index is a minimal REST client to one Qdrant collection.
// It assumes cosine distance and creates the collection on first upsert.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	dimension int
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates a client for cfg.Collection.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Collection == "" {
		return nil, ErrCollectionRequired
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Index{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "qdrant", "collection", cfg.Collection),
	}, nil
}

// EnsureCollection creates the collection for vectors of the given dimension.
// Qdrant answers 200 when the collection already exists with the same schema.
func (ix *Index) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", storage.ErrDimensionMismatch, dimension)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dimension == dimension {
		return nil
	}
	if ix.dimension != 0 {
		return fmt.Errorf("%w: collection has %d, got %d", storage.ErrDimensionMismatch, ix.dimension, dimension)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err := ix.do(ctx, http.MethodPut, ix.collectionURL(""), body, nil)
	if err != nil {
		var statusErr *statusError
		// 409 means someone else created it first.
		if !errors.As(err, &statusErr) || statusErr.code != http.StatusConflict {
			return err
		}
	}
	ix.dimension = dimension
	return nil
}

// Upsert implements storage.VectorIndex.
func (ix *Index) Upsert(ctx context.Context, chunkID core.ID, vector []float32) error {
	if err := ix.EnsureCollection(ctx, len(vector)); err != nil {
		return err
	}
	body := map[string]any{
		"points": []map[string]any{{
			"id":     uint64(chunkID),
			"vector": vector,
		}},
	}
	return ix.do(ctx, http.MethodPut, ix.collectionURL("/points?wait=true"), body, nil)
}

// Query implements storage.VectorIndex.
// A missing collection has no matches.
func (ix *Index) Query(ctx context.Context, vector []float32, topK int) ([]core.VectorMatch, error) {
	if topK <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": false,
	}
	var resp struct {
		Result []struct {
			ID    uint64   `json:"id"`
			Score *float32 `json:"score"`
		} `json:"result"`
	}
	err := ix.do(ctx, http.MethodPost, ix.collectionURL("/points/search"), req, &resp)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
			return []core.VectorMatch{}, nil
		}
		return nil, err
	}

	matches := make([]core.VectorMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		match := core.VectorMatch{ChunkID: core.ID(r.ID)}
		if r.Score != nil {
			match.Score = *r.Score
			match.Scored = true
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Delete implements storage.VectorIndex.
func (ix *Index) Delete(ctx context.Context, chunkIDs ...core.ID) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]uint64, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = uint64(id)
	}
	err := ix.do(ctx, http.MethodPost, ix.collectionURL("/points/delete?wait=true"), map[string]any{"points": ids}, nil)
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
		return nil
	}
	return err
}

func (ix *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", ix.url, ix.collection, suffix)
}

type statusError struct {
	method string
	url    string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.method, e.url, e.code, e.body)
}

func (ix *Index) do(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if ix.apiKey != "" {
		req.Header.Set("api-key", ix.apiKey)
	}

	resp, err := ix.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{method: method, url: url, code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

package badger

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
)

// VectorIndex implements storage.VectorIndex by brute-force cosine similarity
// over every stored vector. It suits personal knowledge bases; larger
// corpora should use the qdrant index.
type VectorIndex struct {
	backend *Backend
}

// NewVectorIndex creates a new BadgerDB-backed vector index.
func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{backend: backend}
}

// Upsert implements storage.VectorIndex.
func (v *VectorIndex) Upsert(ctx context.Context, chunkID core.ID, vector []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", storage.ErrDimensionMismatch)
	}
	return v.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeVectorKey(chunkID), storage.MarshalVector(vector)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Query implements storage.VectorIndex.
// Stored vectors whose length differs from the query are skipped.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]core.VectorMatch, error) {
	if topK <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches []core.VectorMatch
	skipped := 0
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var stored []float32
			err := item.Value(func(val []byte) error {
				var decodeErr error
				stored, decodeErr = storage.UnmarshalVector(val)
				return decodeErr
			})
			if err != nil {
				return err
			}
			if len(stored) != len(vector) {
				skipped++
				continue
			}
			matches = append(matches, core.VectorMatch{
				ChunkID: vectorIDFromKey(item.Key()),
				Score:   cosineSimilarity(vector, stored),
				Scored:  true,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		v.backend.logger.Warn("skipped vectors with mismatched dimension", "count", skipped, "dimension", len(vector))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete implements storage.VectorIndex.
func (v *VectorIndex) Delete(ctx context.Context, chunkIDs ...core.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunkIDs) == 0 {
		return nil
	}
	return v.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range chunkIDs {
			if err := tx.Delete(makeVectorKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// cosineSimilarity returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
)

// ChunkRepository implements storage.ChunkRepository using BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
	logger  *slog.Logger
}

// NewChunkRepository creates a new BadgerDB-backed chunk repository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	seq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}
	return &ChunkRepository{
		backend: backend,
		idSeq:   seq,
		logger:  backend.logger.With("repository", "chunk"),
	}, nil
}

// AddChunk implements storage.ChunkRepository.
func (r *ChunkRepository) AddChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.ValidateChunk(chunk); err != nil {
		return nil, err
	}

	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if chunk.IngestKey != 0 {
			existing, err := r.readByIngestKey(tx, chunk.IngestKey)
			if err != nil {
				return err
			}
			if existing != nil {
				result = existing
				return nil
			}
		}

		id, err := nextID(r.idSeq)
		if err != nil {
			return err
		}

		stored := *chunk
		stored.ID = core.ID(id)
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		if err := tx.Set(makeChunkKey(stored.ID), storage.MarshalChunk(&stored)); err != nil {
			return err
		}
		if stored.IngestKey != 0 {
			if err := tx.Set(makeChunkIngestKey(stored.IngestKey), storage.MarshalID(stored.ID)); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		result = &stored
		return nil
	}, true)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ChunkRepository) readByIngestKey(tx *badger.Txn, ingestKey core.ID) (*core.Chunk, error) {
	item, err := tx.Get(makeChunkIngestKey(ingestKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var id core.ID
	err = item.Value(func(val []byte) error {
		var decodeErr error
		id, decodeErr = storage.UnmarshalID(val)
		return decodeErr
	})
	if err != nil {
		return nil, err
	}
	return readValue(tx, makeChunkKey(id), storage.UnmarshalChunk)
}

// GetChunks implements storage.ChunkRepository.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]*core.Chunk, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readValue(tx, makeChunkKey(id), storage.UnmarshalChunk)
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteChunk implements storage.ChunkRepository.
func (r *ChunkRepository) DeleteChunk(ctx context.Context, id core.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		chunk, err := readValue(tx, makeChunkKey(id), storage.UnmarshalChunk)
		if err != nil {
			return err
		}
		if chunk == nil {
			return fmt.Errorf("chunk %d: %w", id, storage.ErrNotFound)
		}
		if err := tx.Delete(makeChunkKey(id)); err != nil {
			return err
		}
		if chunk.IngestKey != 0 {
			if err := tx.Delete(makeChunkIngestKey(chunk.IngestKey)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// SearchChunks implements storage.ChunkRepository.
// This is a full scan of the chunk keyspace.
func (r *ChunkRepository) SearchChunks(ctx context.Context, terms []string, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lowered := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			lowered = append(lowered, term)
		}
	}
	if len(lowered) == 0 {
		return []*core.Chunk{}, nil
	}

	results := make([]*core.Chunk, 0, limit)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(chunkPrefix), storage.UnmarshalChunk, func(chunk *core.Chunk) bool {
			text := strings.ToLower(chunk.Text)
			for _, term := range lowered {
				if strings.Contains(text, term) {
					results = append(results, chunk)
					break
				}
			}
			return len(results) < limit
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListChunks implements storage.ChunkRepository.
func (r *ChunkRepository) ListChunks(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*core.Chunk, 0, limit)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkKey(afterID + 1)); iter.Valid() && len(results) < limit; iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var decodeErr error
				chunk, decodeErr = storage.UnmarshalChunk(val)
				return decodeErr
			})
			if err != nil {
				return err
			}
			results = append(results, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CountChunks implements storage.ChunkRepository.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

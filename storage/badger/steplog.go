package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
)

// StepLog implements storage.StepLog using BadgerDB.
type StepLog struct {
	backend *Backend
}

// NewStepLog creates a new BadgerDB-backed step log.
func NewStepLog(backend *Backend) *StepLog {
	return &StepLog{backend: backend}
}

// CreateInstance implements storage.StepLog.
func (s *StepLog) CreateInstance(ctx context.Context, instance *core.WorkflowInstance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if instance == nil || instance.ID == "" {
		return storage.ErrInvalidQuery
	}

	stored := *instance
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Status == "" {
		stored.Status = core.WorkflowPending
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeInstanceKey(stored.ID)
		existing, err := readValue(tx, key, storage.UnmarshalWorkflowInstance)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("instance %q: %w", stored.ID, storage.ErrDuplicateKey)
		}
		if err := tx.Set(key, storage.MarshalWorkflowInstance(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UpdateInstance implements storage.StepLog.
func (s *StepLog) UpdateInstance(ctx context.Context, instance *core.WorkflowInstance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if instance == nil || instance.ID == "" {
		return storage.ErrInvalidQuery
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeInstanceKey(instance.ID)
		existing, err := readValue(tx, key, storage.UnmarshalWorkflowInstance)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("instance %q: %w", instance.ID, storage.ErrNotFound)
		}
		stored := *instance
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalWorkflowInstance(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetInstance implements storage.StepLog.
func (s *StepLog) GetInstance(ctx context.Context, id string) (*core.WorkflowInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var instance *core.WorkflowInstance
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		instance, err = readValue(tx, makeInstanceKey(id), storage.UnmarshalWorkflowInstance)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, fmt.Errorf("instance %q: %w", id, storage.ErrNotFound)
	}
	return instance, nil
}

// ListInstances implements storage.StepLog.
func (s *StepLog) ListInstances(ctx context.Context, statuses ...core.WorkflowStatus) ([]*core.WorkflowInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var results []*core.WorkflowInstance
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(instancePrefix), storage.UnmarshalWorkflowInstance, func(instance *core.WorkflowInstance) bool {
			if len(statuses) == 0 || slices.Contains(statuses, instance.Status) {
				results = append(results, instance)
			}
			return true
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *core.WorkflowInstance) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return results, nil
}

// SaveStep implements storage.StepLog.
func (s *StepLog) SaveStep(ctx context.Context, record *core.StepRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || record.InstanceID == "" || record.Step == "" {
		return storage.ErrInvalidQuery
	}

	stored := *record
	if stored.CompletedAt.IsZero() {
		stored.CompletedAt = time.Now().UTC()
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeStepKey(stored.InstanceID, stored.Step, stored.ChunkIndex)
		if err := tx.Set(key, storage.MarshalStepRecord(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadStep implements storage.StepLog.
func (s *StepLog) LoadStep(ctx context.Context, instanceID string, step core.StepName, chunkIndex int) (*core.StepRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record *core.StepRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readValue(tx, makeStepKey(instanceID, step, chunkIndex), storage.UnmarshalStepRecord)
		return err
	}, false)
	return record, err
}

// CountSteps returns the number of memoized steps of an instance.
func (s *StepLog) CountSteps(ctx context.Context, instanceID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeStepPrefix(instanceID)
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

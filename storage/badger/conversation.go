package badger

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
)

// ConversationRepository implements storage.ConversationRepository using BadgerDB.
// Bindings and turns are written in the same transaction, so a rejected turn
// never leaves a partial write behind.
type ConversationRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

// NewConversationRepository creates a new BadgerDB-backed conversation repository.
func NewConversationRepository(backend *Backend) (*ConversationRepository, error) {
	seq, err := backend.GetSequence(turnSeq)
	if err != nil {
		return nil, err
	}
	return &ConversationRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// bindTx returns the binding for conversationID, creating it for userID when absent.
func (r *ConversationRepository) bindTx(tx *badger.Txn, conversationID, userID string) (*core.Conversation, error) {
	conv, err := readValue(tx, makeConversationKey(conversationID), storage.UnmarshalConversation)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		if conv.UserID != userID {
			return nil, fmt.Errorf("%w: conversation %q", core.ErrConversationOwnership, conversationID)
		}
		return conv, nil
	}
	conv = &core.Conversation{
		ID:        conversationID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Set(makeConversationKey(conversationID), storage.MarshalConversation(conv)); err != nil {
		return nil, err
	}
	return conv, nil
}

// BindConversation implements storage.ConversationRepository.
func (r *ConversationRepository) BindConversation(ctx context.Context, conversationID, userID string) (*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, core.ErrEmptyConversationID
	}
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}

	var conv *core.Conversation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		if conv, err = r.bindTx(tx, conversationID, userID); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation implements storage.ConversationRepository.
func (r *ConversationRepository) GetConversation(ctx context.Context, conversationID string) (*core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var conv *core.Conversation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		conv, err = readValue(tx, makeConversationKey(conversationID), storage.UnmarshalConversation)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %q: %w", conversationID, storage.ErrNotFound)
	}
	return conv, nil
}

// AppendTurns implements storage.ConversationRepository.
func (r *ConversationRepository) AppendTurns(ctx context.Context, turns ...*core.ConversationTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	for _, turn := range turns {
		if err := core.ValidateTurn(turn); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, turn := range turns {
			if _, err := r.bindTx(tx, turn.ConversationID, turn.UserID); err != nil {
				return err
			}

			seq, err := nextID(r.seq)
			if err != nil {
				return err
			}
			stored := *turn
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = now
			}
			key := makeTurnKey(stored.ConversationID, stored.CreatedAt, seq)
			if err := tx.Set(key, storage.MarshalTurn(&stored)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// RecentTurns implements storage.ConversationRepository.
func (r *ConversationRepository) RecentTurns(ctx context.Context, conversationID string, limit int) ([]*core.ConversationTurn, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := makeTurnPrefix(conversationID)
	results := make([]*core.ConversationTurn, 0, limit)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration must start past the last key carrying the prefix.
		seekKey := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xFF}, 16)...)
		for iter.Seek(seekKey); iter.Valid() && len(results) < limit; iter.Next() {
			var turn *core.ConversationTurn
			err := iter.Item().Value(func(val []byte) error {
				var decodeErr error
				turn, decodeErr = storage.UnmarshalTurn(val)
				return decodeErr
			})
			if err != nil {
				return err
			}
			results = append(results, turn)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.Reverse(results)
	return results, nil
}

// Close releases the turn sequence.
func (r *ConversationRepository) Close() error {
	return r.seq.Release()
}

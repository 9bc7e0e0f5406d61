package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
)

// ProfileRepository implements storage.ProfileRepository using BadgerDB.
type ProfileRepository struct {
	backend *Backend
}

// NewProfileRepository creates a new BadgerDB-backed profile repository.
func NewProfileRepository(backend *Backend) *ProfileRepository {
	return &ProfileRepository{backend: backend}
}

// UpsertProfile implements storage.ProfileRepository.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile *core.UserProfile) (*core.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.ValidateProfile(profile); err != nil {
		return nil, err
	}

	stored := *profile
	stored.UpdatedAt = time.Now().UTC()
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeProfileKey(stored.UserID), storage.MarshalUserProfile(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetProfile implements storage.ProfileRepository.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*core.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var profile *core.UserProfile
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		profile, err = readValue(tx, makeProfileKey(userID), storage.UnmarshalUserProfile)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %q: %w", userID, storage.ErrNotFound)
	}
	return profile, nil
}

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store implements the relational repositories and the step log on SQLite.
// It has no vector index; pair it with badger.VectorIndex or qdrant.Index.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var (
	_ storage.ChunkRepository        = (*Store)(nil)
	_ storage.ProfileRepository      = (*Store)(nil)
	_ storage.ConversationRepository = (*Store)(nil)
	_ storage.StepLog                = (*Store)(nil)
)

// Open opens (creating if needed) the SQLite database at path and migrates its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows one writer; a single connection avoids "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&chunkRow{},
		&profileRow{},
		&conversationRow{},
		&turnRow{},
		&instanceRow{},
		&stepRow{},
	); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	store := &Store{
		db:     db,
		logger: slog.Default().With("component", "sqlite"),
	}
	store.logger.Debug("sqlite store opened", "path", path)
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, storage.ErrNotFound)...)
	}
	return err
}

// AddChunk implements storage.ChunkRepository.
func (s *Store) AddChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	if err := core.ValidateChunk(chunk); err != nil {
		return nil, err
	}

	row := chunkToRow(chunk)
	row.ID = 0
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.IngestKey != nil {
			var existing chunkRow
			err := tx.Where("ingest_key = ?", *row.IngestKey).First(&existing).Error
			if err == nil {
				*row = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toCore(), nil
}

// GetChunks implements storage.ChunkRepository.
func (s *Store) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	if len(ids) == 0 {
		return []*core.Chunk{}, nil
	}
	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	var rows []chunkRow
	if err := s.db.WithContext(ctx).Where("id IN ?", keys).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]*chunkRow, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	results := make([]*core.Chunk, 0, len(rows))
	for _, key := range keys {
		if row, ok := byID[key]; ok {
			results = append(results, row.toCore())
		}
	}
	return results, nil
}

// DeleteChunk implements storage.ChunkRepository.
func (s *Store) DeleteChunk(ctx context.Context, id core.ID) error {
	res := s.db.WithContext(ctx).Delete(&chunkRow{}, int64(id))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("chunk %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// likeEscaper escapes LIKE wildcards so terms match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchChunks implements storage.ChunkRepository.
// Case folding relies on SQLite's LOWER, which only folds ASCII.
func (s *Store) SearchChunks(ctx context.Context, terms []string, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var conds []string
	var args []any
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		conds = append(conds, `LOWER(text) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(term)+"%")
	}
	if len(conds) == 0 {
		return []*core.Chunk{}, nil
	}

	var rows []chunkRow
	err := s.db.WithContext(ctx).
		Where(strings.Join(conds, " OR "), args...).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return chunksFromRows(rows), nil
}

// ListChunks implements storage.ChunkRepository.
func (s *Store) ListChunks(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	var rows []chunkRow
	err := s.db.WithContext(ctx).
		Where("id > ?", int64(afterID)).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return chunksFromRows(rows), nil
}

// CountChunks implements storage.ChunkRepository.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&chunkRow{}).Count(&count).Error
	return int(count), err
}

func chunksFromRows(rows []chunkRow) []*core.Chunk {
	results := make([]*core.Chunk, len(rows))
	for i := range rows {
		results[i] = rows[i].toCore()
	}
	return results
}

// UpsertProfile implements storage.ProfileRepository.
func (s *Store) UpsertProfile(ctx context.Context, profile *core.UserProfile) (*core.UserProfile, error) {
	if err := core.ValidateProfile(profile); err != nil {
		return nil, err
	}
	row := &profileRow{
		UserID:    profile.UserID,
		Info:      profile.Info,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return &core.UserProfile{UserID: row.UserID, Info: row.Info, UpdatedAt: row.UpdatedAt}, nil
}

// GetProfile implements storage.ProfileRepository.
func (s *Store) GetProfile(ctx context.Context, userID string) (*core.UserProfile, error) {
	var row profileRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
		return nil, notFound(err, "profile %q", userID)
	}
	return &core.UserProfile{UserID: row.UserID, Info: row.Info, UpdatedAt: row.UpdatedAt.UTC()}, nil
}

func bindTx(tx *gorm.DB, conversationID, userID string) (*core.Conversation, error) {
	var row conversationRow
	err := tx.Where("id = ?", conversationID).First(&row).Error
	switch {
	case err == nil:
		if row.UserID != userID {
			return nil, fmt.Errorf("%w: conversation %q", core.ErrConversationOwnership, conversationID)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = conversationRow{ID: conversationID, UserID: userID, CreatedAt: time.Now().UTC()}
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return &core.Conversation{ID: row.ID, UserID: row.UserID, CreatedAt: row.CreatedAt.UTC()}, nil
}

// BindConversation implements storage.ConversationRepository.
func (s *Store) BindConversation(ctx context.Context, conversationID, userID string) (*core.Conversation, error) {
	if conversationID == "" {
		return nil, core.ErrEmptyConversationID
	}
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	var conv *core.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conv, err = bindTx(tx, conversationID, userID)
		return err
	})
	return conv, err
}

// GetConversation implements storage.ConversationRepository.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*core.Conversation, error) {
	var row conversationRow
	if err := s.db.WithContext(ctx).Where("id = ?", conversationID).First(&row).Error; err != nil {
		return nil, notFound(err, "conversation %q", conversationID)
	}
	return &core.Conversation{ID: row.ID, UserID: row.UserID, CreatedAt: row.CreatedAt.UTC()}, nil
}

// AppendTurns implements storage.ConversationRepository.
func (s *Store) AppendTurns(ctx context.Context, turns ...*core.ConversationTurn) error {
	for _, turn := range turns {
		if err := core.ValidateTurn(turn); err != nil {
			return err
		}
	}
	if len(turns) == 0 {
		return nil
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, turn := range turns {
			if _, err := bindTx(tx, turn.ConversationID, turn.UserID); err != nil {
				return err
			}
			row := &turnRow{
				ConversationID: turn.ConversationID,
				UserID:         turn.UserID,
				Role:           string(turn.Role),
				Content:        turn.Content,
				CreatedAt:      turn.CreatedAt,
			}
			if row.CreatedAt.IsZero() {
				row.CreatedAt = now
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentTurns implements storage.ConversationRepository.
func (s *Store) RecentTurns(ctx context.Context, conversationID string, limit int) ([]*core.ConversationTurn, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	var rows []turnRow
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]*core.ConversationTurn, len(rows))
	for i := range rows {
		results[len(rows)-1-i] = rows[i].toCore()
	}
	return results, nil
}

// CreateInstance implements storage.StepLog.
func (s *Store) CreateInstance(ctx context.Context, instance *core.WorkflowInstance) error {
	if instance == nil || instance.ID == "" {
		return storage.ErrInvalidQuery
	}
	row := instanceToRow(instance)
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	if row.Status == "" {
		row.Status = string(core.WorkflowPending)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&instanceRow{}).Where("id = ?", row.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("instance %q: %w", row.ID, storage.ErrDuplicateKey)
		}
		return tx.Create(row).Error
	})
}

// UpdateInstance implements storage.StepLog.
func (s *Store) UpdateInstance(ctx context.Context, instance *core.WorkflowInstance) error {
	if instance == nil || instance.ID == "" {
		return storage.ErrInvalidQuery
	}
	res := s.db.WithContext(ctx).Model(&instanceRow{}).Where("id = ?", instance.ID).Updates(map[string]any{
		"text":        instance.Text,
		"source_url":  instance.SourceURL,
		"status":      string(instance.Status),
		"chunk_count": instance.ChunkCount,
		"failed":      instance.Failed,
		"updated_at":  time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("instance %q: %w", instance.ID, storage.ErrNotFound)
	}
	return nil
}

// GetInstance implements storage.StepLog.
func (s *Store) GetInstance(ctx context.Context, id string) (*core.WorkflowInstance, error) {
	var row instanceRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "instance %q", id)
	}
	return row.toCore(), nil
}

// ListInstances implements storage.StepLog.
func (s *Store) ListInstances(ctx context.Context, statuses ...core.WorkflowStatus) ([]*core.WorkflowInstance, error) {
	q := s.db.WithContext(ctx).Order("created_at, id")
	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, status := range statuses {
			if !slices.Contains(names, string(status)) {
				names = append(names, string(status))
			}
		}
		q = q.Where("status IN ?", names)
	}

	var rows []instanceRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	results := make([]*core.WorkflowInstance, len(rows))
	for i := range rows {
		results[i] = rows[i].toCore()
	}
	return results, nil
}

// SaveStep implements storage.StepLog.
func (s *Store) SaveStep(ctx context.Context, record *core.StepRecord) error {
	if record == nil || record.InstanceID == "" || record.Step == "" {
		return storage.ErrInvalidQuery
	}
	row := &stepRow{
		InstanceID:  record.InstanceID,
		Step:        string(record.Step),
		ChunkIndex:  record.ChunkIndex,
		Texts:       record.Texts,
		ChunkID:     int64(record.ChunkID),
		Vector:      record.Vector,
		CompletedAt: record.CompletedAt,
	}
	if row.CompletedAt.IsZero() {
		row.CompletedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

// LoadStep implements storage.StepLog.
func (s *Store) LoadStep(ctx context.Context, instanceID string, step core.StepName, chunkIndex int) (*core.StepRecord, error) {
	var row stepRow
	err := s.db.WithContext(ctx).
		Where("instance_id = ? AND step = ? AND chunk_index = ?", instanceID, string(step), chunkIndex).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toCore(), nil
}

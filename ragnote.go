// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ragnote assembles the storage, AI and workflow components into a
// personal assistant that answers from its owner's notes.
package ragnote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/ai/gemini"
	"github.com/poiesic/ragnote/ai/mistral"
	"github.com/poiesic/ragnote/ai/openai"
	"github.com/poiesic/ragnote/chat"
	"github.com/poiesic/ragnote/chunker"
	"github.com/poiesic/ragnote/config"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/extract"
	"github.com/poiesic/ragnote/ingestion"
	"github.com/poiesic/ragnote/reindex"
	"github.com/poiesic/ragnote/search"
	"github.com/poiesic/ragnote/storage"
	"github.com/poiesic/ragnote/storage/badger"
	"github.com/poiesic/ragnote/storage/qdrant"
	"github.com/poiesic/ragnote/storage/sqlite"
)

// ErrPartialDelete is returned when a chunk row was removed but its vector
// could not be.
var ErrPartialDelete = errors.New("chunk deleted but its vector remains indexed")

type Assistant struct {
	config *config.Config

	chunks        storage.ChunkRepository
	profiles      storage.ProfileRepository
	conversations storage.ConversationRepository
	steps         storage.StepLog
	index         storage.VectorIndex
	closers       []io.Closer

	provider ai.AIProvider
	embedder ai.Embedder
	router   *ai.Router

	engine    *ingestion.Engine
	retriever *search.Retriever
	chat      *chat.Service

	logger *slog.Logger
}

// Option configures an Assistant.
type Option func(*options)

type options struct {
	embedder   ai.Embedder
	generators map[string]ai.GeneratorFactory
	logger     *slog.Logger
}

// WithEmbedder replaces the configured embedding service.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}

// WithGeneratorFactory registers factory for provider, replacing the
// built-in one.
func WithGeneratorFactory(provider string, factory ai.GeneratorFactory) Option {
	return func(o *options) {
		o.generators[provider] = factory
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open builds every component described by cfg. Close releases them.
func Open(cfg *config.Config, opts ...Option) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{
		generators: map[string]ai.GeneratorFactory{
			ai.ProviderMistral: mistral.NewGenerator,
			ai.ProviderGemini:  gemini.NewGenerator,
			ai.ProviderOpenAI:  openai.NewGenerator,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &Assistant{
		config: cfg,
		logger: o.logger.With("component", "assistant"),
	}
	if err := a.openStorage(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openAI(o); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildServices(o.logger); err != nil {
		a.Close()
		return nil, err
	}

	a.logger.Info("assistant ready",
		"storage", cfg.Storage.Backend,
		"vectorIndex", cfg.Storage.VectorIndex,
		"model", a.router.Model())
	return a, nil
}

func (a *Assistant) openStorage() error {
	cfg := a.config
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating data dir: %w", core.ErrStorage, err)
	}

	// Badger is opened when it backs either the records or the vectors.
	var badgerBackend *badger.Backend
	openBadger := func() (*badger.Backend, error) {
		if badgerBackend != nil {
			return badgerBackend, nil
		}
		backend, err := badger.OpenBackend(cfg.BadgerPath(), false)
		if err != nil {
			return nil, fmt.Errorf("%w: opening badger: %w", core.ErrStorage, err)
		}
		badgerBackend = backend
		a.closers = append(a.closers, backend)
		return backend, nil
	}

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath())
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrStorage, err)
		}
		a.closers = append(a.closers, store)
		a.chunks, a.profiles, a.conversations, a.steps = store, store, store, store
	default:
		backend, err := openBadger()
		if err != nil {
			return err
		}
		chunks, err := badger.NewChunkRepository(backend)
		if err != nil {
			return err
		}
		conversations, err := badger.NewConversationRepository(backend)
		if err != nil {
			chunks.Close()
			return err
		}
		// Sequences are released before the backend closes.
		a.closers = append(a.closers, chunks, conversations)
		a.chunks = chunks
		a.conversations = conversations
		a.profiles = badger.NewProfileRepository(backend)
		a.steps = badger.NewStepLog(backend)
	}

	switch cfg.Storage.VectorIndex {
	case config.BackendQdrant:
		index, err := qdrant.NewIndex(qdrant.Config{
			URL:        cfg.Storage.Qdrant.URL,
			APIKey:     cfg.Storage.Qdrant.APIKey,
			Collection: cfg.Storage.Qdrant.Collection,
			Timeout:    cfg.Storage.Qdrant.Timeout,
		})
		if err != nil {
			return err
		}
		a.index = index
	default:
		backend, err := openBadger()
		if err != nil {
			return err
		}
		a.index = badger.NewVectorIndex(backend)
	}
	return nil
}

func (a *Assistant) openAI(o *options) error {
	a.embedder = o.embedder
	if a.embedder == nil {
		provider, err := openai.NewProvider(a.config.AIConfig())
		if err != nil {
			return err
		}
		a.provider = provider
		a.embedder = provider.Embedder()
	}

	router, err := ai.NewRouter(a.config.GenerationConfig(), o.generators)
	if err != nil {
		return err
	}
	a.router = router
	return nil
}

func (a *Assistant) buildServices(logger *slog.Logger) error {
	cfg := a.config

	splitter, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithChunkOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return err
	}

	engineOpts := []ingestion.Option{
		ingestion.WithChunker(splitter),
		ingestion.WithRetry(cfg.Ingestion.RetryAttempts, cfg.Ingestion.RetryDelay),
		ingestion.WithLogger(logger),
	}
	if cfg.Ingestion.PoolSize > 0 {
		engineOpts = append(engineOpts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	a.engine, err = ingestion.NewEngine(a.steps, a.chunks, a.index, a.embedder, engineOpts...)
	if err != nil {
		return err
	}

	triggers, terms := search.OwnerFallback(cfg.Persona.OwnerName)
	a.retriever, err = search.NewRetriever(a.chunks, a.index, a.embedder,
		search.WithTopK(cfg.Retrieval.TopK),
		search.WithMinScore(cfg.Retrieval.MinScore),
		search.WithFallback(triggers, terms),
		search.WithFallbackLimit(cfg.Retrieval.FallbackLimit),
		search.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	extractor, err := extract.New(
		extract.WithTimeout(cfg.Extract.Timeout),
		extract.WithMaxChars(cfg.Extract.MaxChars),
		extract.WithMaxBytes(cfg.Extract.MaxBytes),
		extract.WithCache(cfg.Extract.CacheSize, cfg.Extract.CacheTTL),
		extract.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	a.chat, err = chat.NewService(a.profiles, a.conversations, a.retriever, a.router,
		chat.WithLinkIngestion(extractor, a.engine),
		chat.WithOwnerName(cfg.Persona.OwnerName),
		chat.WithDefaultUserID(cfg.Persona.DefaultUserID),
		chat.WithLinkDedupe(cfg.Extract.CacheSize, cfg.Extract.CacheTTL),
		chat.WithLogger(logger),
	)
	return err
}

// Ingest starts a background ingestion of text and returns its instance id.
func (a *Assistant) Ingest(ctx context.Context, text string) (string, error) {
	return a.engine.Start(ctx, text, "")
}

// Instance returns the workflow instance with the given id.
func (a *Assistant) Instance(ctx context.Context, instanceID string) (*core.WorkflowInstance, error) {
	return a.steps.GetInstance(ctx, instanceID)
}

// Chat answers a question.
func (a *Assistant) Chat(ctx context.Context, req chat.Request) (*chat.Response, error) {
	return a.chat.Chat(ctx, req)
}

// UpdateProfile replaces a user's profile.
func (a *Assistant) UpdateProfile(ctx context.Context, userID, info string) (*core.UserProfile, error) {
	return a.chat.UpdateProfile(ctx, userID, info)
}

// DeleteChunk removes the chunk row and then its vector. A missing chunk
// returns storage.ErrNotFound. When only the row is removed the error
// wraps ErrPartialDelete.
func (a *Assistant) DeleteChunk(ctx context.Context, id core.ID) error {
	if err := a.chunks.DeleteChunk(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: deleting chunk %d: %w", core.ErrStorage, id, err)
	}
	if err := a.index.Delete(ctx, id); err != nil {
		a.logger.Error("chunk row deleted but vector delete failed", "chunk", id, "err", err)
		return fmt.Errorf("%w: chunk %d: %w", ErrPartialDelete, id, err)
	}
	a.logger.Info("chunk deleted", "chunk", id)
	return nil
}

// Resume restarts pending and running ingestions, and partial ones too when
// retryPartial is set. It returns how many instances were submitted.
func (a *Assistant) Resume(ctx context.Context, retryPartial bool) (int, error) {
	resumed, err := a.engine.Resume(ctx)
	if err != nil || !retryPartial {
		return resumed, err
	}
	retried, err := a.engine.RetryPartial(ctx)
	return resumed + retried, err
}

// Reindex re-embeds every chunk into the vector index, writing progress to
// progress.
func (a *Assistant) Reindex(ctx context.Context, progress io.Writer) (int, error) {
	reindexConfig := reindex.DefaultConfig()
	reindexConfig.MaxRetries = a.config.Ingestion.RetryAttempts
	return reindex.NewReindexer(a.chunks, a.index, a.embedder, reindexConfig, progress).Run(ctx)
}

// Model returns the generation model in use.
func (a *Assistant) Model() string {
	return a.router.Model()
}

// Wait blocks until background link dispatches and ingestions finish.
func (a *Assistant) Wait() {
	a.chat.Wait()
	a.engine.Wait()
}

// Close releases workers, AI clients and storage, in that order.
func (a *Assistant) Close() error {
	if a.chat != nil {
		a.chat.Release()
	}
	if a.engine != nil {
		a.engine.Release()
	}
	if a.router != nil {
		if err := a.router.Close(); err != nil {
			a.logger.Error("error closing generator", "err", err)
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Error("error closing AI provider", "err", err)
		}
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("error closing storage", "err", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

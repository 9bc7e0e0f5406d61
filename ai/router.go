package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/poiesic/ragnote/core"
)

// Router sends every generation request to the single backend selected at
// construction. There is no retry on another backend.
type Router struct {
	generator Generator
	choice    BackendChoice
	backend   BackendConfig
	maxTokens int
	logger    *slog.Logger
}

// NewRouter resolves the configured backend and builds its generator with the
// factory registered for its provider.
func NewRouter(cfg *GenerationConfig, factories map[string]GeneratorFactory) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	choice, backend := cfg.Select()
	factory, ok := factories[backend.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q (%s backend)", ErrUnknownProvider, backend.Provider, choice)
	}
	if !backend.HasCredentials() {
		return nil, fmt.Errorf("%w: %s backend %q needs an API key", ErrMissingCredentials, choice, backend.Provider)
	}

	generator, err := factory(backend)
	if err != nil {
		return nil, fmt.Errorf("create %s generator: %w", backend.Provider, err)
	}

	logger := slog.Default().With("component", "router")
	logger.Info("generation backend selected", "backend", choice, "provider", backend.Provider, "model", backend.Model)

	return &Router{
		generator: generator,
		choice:    choice,
		backend:   backend,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Model returns the identifier of the selected model.
func (r *Router) Model() string { return r.backend.Model }

// Backend returns which configured backend was selected.
func (r *Router) Backend() BackendChoice { return r.choice }

// Generate invokes the selected backend. Transport failures and empty
// replies both wrap core.ErrGeneration.
func (r *Router) Generate(ctx context.Context, messages []Message) (*Generation, error) {
	text, err := r.generator.Generate(ctx, messages, r.maxTokens)
	if err != nil {
		r.logger.Error("generation failed", "model", r.backend.Model, "err", err)
		return nil, fmt.Errorf("%w: %s: %w", core.ErrGeneration, r.backend.Model, err)
	}
	if strings.TrimSpace(text) == "" {
		r.logger.Error("generation returned empty output", "model", r.backend.Model)
		return nil, fmt.Errorf("%w: %s returned no text", core.ErrGeneration, r.backend.Model)
	}
	return &Generation{Text: text, Model: r.backend.Model}, nil
}

// Close releases the generator when it holds resources.
func (r *Router) Close() error {
	if closer, ok := r.generator.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

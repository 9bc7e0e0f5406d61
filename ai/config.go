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


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names understood by the router.
const (
	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
)

const defaultLocalHost = "http://localhost:11434/v1"

// Config holds configuration for the embedding service.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// EmbeddingAPIKey authenticates against hosted services. Local servers
	// ignore it.
	EmbeddingAPIKey string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingAPIKey sets the embedding service API key.
func WithEmbeddingAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingAPIKey = key
	}
}

// DefaultConfig returns a Config with sensible defaults for a local OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:  defaultLocalHost,
		EmbeddingModel: "embeddinggemma",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithEmbeddingHost("https://api.openai.com"),
//       WithEmbeddingModel("text-embedding-3-small"),
//       WithEmbeddingAPIKey(os.Getenv("OPENAI_API_KEY")),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// normalizeHost adds the /v1 suffix required by most OpenAI-compatible APIs
// (Ollama, LocalAI, vLLM, etc).
func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Normalize ensures the configuration is in a canonical form.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	return nil
}

// BackendChoice selects which configured backend generates answers.
type BackendChoice string

const (
	// BackendAuto picks the preferred backend when its credentials are present.
	BackendAuto      BackendChoice = ""
	BackendPreferred BackendChoice = "preferred"
	BackendFallback  BackendChoice = "fallback"
)

// BackendConfig describes one generation backend.
type BackendConfig struct {
	Provider string
	// Host is only used by the openai provider.
	Host   string
	APIKey string
	Model  string
}

// RequiresAPIKey reports whether the provider refuses to run without an API key.
func (b BackendConfig) RequiresAPIKey() bool {
	return b.Provider == ProviderMistral || b.Provider == ProviderGemini
}

// HasCredentials reports whether the backend can be used as configured.
func (b BackendConfig) HasCredentials() bool {
	return !b.RequiresAPIKey() || b.APIKey != ""
}

func (b *BackendConfig) normalize() {
	if b.Model == "" {
		b.Model = DefaultModel(b.Provider)
	}
	if b.Provider == ProviderOpenAI {
		if b.Host == "" {
			b.Host = defaultLocalHost
		}
		b.Host = normalizeHost(b.Host)
	}
}

// DefaultModel returns the model used when a backend names none.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderMistral:
		return "mistral-large-latest"
	case ProviderGemini:
		return "gemini-1.5-flash"
	case ProviderOpenAI:
		return "llama3.1:8b"
	}
	return ""
}

// GenerationConfig is the configuration enumeration the router resolves once at startup.
type GenerationConfig struct {
	Backend   BackendChoice
	Preferred BackendConfig
	Fallback  BackendConfig
	// MaxTokens is the fixed output budget of every request.
	MaxTokens int
}

// DefaultGenerationConfig prefers hosted Mistral and falls back to a local
// OpenAI-compatible server.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		Preferred: BackendConfig{Provider: ProviderMistral},
		Fallback:  BackendConfig{Provider: ProviderOpenAI, Host: defaultLocalHost},
		MaxTokens: 2048,
	}
}

// Normalize fills default models and hosts.
func (c *GenerationConfig) Normalize() {
	c.Preferred.normalize()
	c.Fallback.normalize()
}

// Validate checks the enumeration itself. Provider names and credentials are
// checked by NewRouter against the selected backend only.
func (c *GenerationConfig) Validate() error {
	c.Normalize()

	switch c.Backend {
	case BackendAuto, BackendPreferred, BackendFallback:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
	if c.MaxTokens <= 0 {
		return errors.New("ai config: MaxTokens must be greater than 0")
	}
	return nil
}

// Select resolves the backend to use.
func (c *GenerationConfig) Select() (BackendChoice, BackendConfig) {
	switch c.Backend {
	case BackendPreferred:
		return BackendPreferred, c.Preferred
	case BackendFallback:
		return BackendFallback, c.Fallback
	}
	if c.Preferred.Provider != "" && c.Preferred.HasCredentials() {
		return BackendPreferred, c.Preferred
	}
	return BackendFallback, c.Fallback
}

// Package config loads the ragnote configuration from a YAML file, a .env
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/ragnote/ai"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when Load is given an empty path and the file exists.
const DefaultPath = "ragnote.yaml"

// Storage and index backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Tracing exporter protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Extract    ExtractConfig    `yaml:"extract"`
	Persona    PersonaConfig    `yaml:"persona"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	// Backend holds chunks, profiles, conversations and the step log.
	Backend string `yaml:"backend"`
	// SQLitePath defaults to ragnote.db inside DataDir.
	SQLitePath  string       `yaml:"sqlite_path"`
	VectorIndex string       `yaml:"vector_index"`
	Qdrant      QdrantConfig `yaml:"qdrant"`
}

type QdrantConfig struct {
	URL        string        `yaml:"url"`
	Collection string        `yaml:"collection"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

type EmbeddingConfig struct {
	Host   string `yaml:"host"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

type BackendConfig struct {
	Provider string `yaml:"provider"`
	Host     string `yaml:"host"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

type GenerationConfig struct {
	// Backend is "", "preferred" or "fallback". Empty picks the preferred
	// backend when its credentials are present.
	Backend   string        `yaml:"backend"`
	Preferred BackendConfig `yaml:"preferred"`
	Fallback  BackendConfig `yaml:"fallback"`
	MaxTokens int           `yaml:"max_tokens"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type IngestionConfig struct {
	PoolSize      int           `yaml:"pool_size"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinScore      float32 `yaml:"min_score"`
	FallbackLimit int     `yaml:"fallback_limit"`
}

type ExtractConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxChars  int           `yaml:"max_chars"`
	MaxBytes  int64         `yaml:"max_bytes"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type PersonaConfig struct {
	OwnerName     string `yaml:"owner_name"`
	DefaultUserID string `yaml:"default_user_id"`
}

type TracingConfig struct {
	// Endpoint enables OTLP export when set.
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used for every key the file leaves out.
func Default() *Config {
	embedding := ai.DefaultConfig()
	generation := ai.DefaultGenerationConfig()
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			DataDir:     "data",
			Backend:     BackendBadger,
			VectorIndex: BackendBadger,
			Qdrant: QdrantConfig{
				URL:        "http://localhost:6333",
				Collection: "ragnote",
				Timeout:    15 * time.Second,
			},
		},
		Embedding: EmbeddingConfig{
			Host:  embedding.EmbeddingHost,
			Model: embedding.EmbeddingModel,
		},
		Generation: GenerationConfig{
			Preferred: BackendConfig{Provider: generation.Preferred.Provider},
			Fallback: BackendConfig{
				Provider: generation.Fallback.Provider,
				Host:     generation.Fallback.Host,
			},
			MaxTokens: generation.MaxTokens,
		},
		Chunking: ChunkingConfig{Size: 1000, Overlap: 200},
		Ingestion: IngestionConfig{
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
		},
		Retrieval: RetrievalConfig{
			TopK:          10,
			MinScore:      0.2,
			FallbackLimit: 10,
		},
		Extract: ExtractConfig{
			Timeout:   15 * time.Second,
			MaxChars:  50000,
			MaxBytes:  5 << 20,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Persona: PersonaConfig{DefaultUserID: "owner"},
		Tracing: TracingConfig{
			Protocol:    ProtocolGRPC,
			ServiceName: "ragnote",
		},
	}
}

// Load reads path over the defaults, applies .env and environment overrides,
// and validates the result. An empty path reads DefaultPath when it exists.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Server.Addr, "RAGNOTE_ADDR")
	setFromEnv(&c.Storage.DataDir, "RAGNOTE_DATA_DIR")
	setFromEnv(&c.Storage.Qdrant.APIKey, "QDRANT_API_KEY")
	setFromEnv(&c.Embedding.APIKey, "OPENAI_API_KEY")

	for _, backend := range []*BackendConfig{&c.Generation.Preferred, &c.Generation.Fallback} {
		switch backend.Provider {
		case ai.ProviderMistral:
			setFromEnv(&backend.APIKey, "MISTRAL_API_KEY")
		case ai.ProviderGemini:
			setFromEnv(&backend.APIKey, "GEMINI_API_KEY")
		case ai.ProviderOpenAI:
			setFromEnv(&backend.APIKey, "OPENAI_API_KEY")
		}
	}
}

func setFromEnv(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

// Validate checks the values that no downstream constructor checks itself.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	switch c.Storage.VectorIndex {
	case BackendBadger:
	case BackendQdrant:
		if c.Storage.Qdrant.URL == "" || c.Storage.Qdrant.Collection == "" {
			return fmt.Errorf("%w: qdrant needs url and collection", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: storage.vector_index %q", ErrInvalidConfig, c.Storage.VectorIndex)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("%w: storage.data_dir is required", ErrInvalidConfig)
	}

	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking needs 0 <= overlap < size", ErrInvalidConfig)
	}
	if c.Ingestion.PoolSize < 0 {
		return fmt.Errorf("%w: ingestion.pool_size must not be negative", ErrInvalidConfig)
	}
	if c.Ingestion.RetryAttempts < 1 {
		return fmt.Errorf("%w: ingestion.retry_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: retrieval.top_k must be at least 1", ErrInvalidConfig)
	}
	if c.Persona.DefaultUserID == "" {
		return fmt.Errorf("%w: persona.default_user_id is required", ErrInvalidConfig)
	}
	switch c.Tracing.Protocol {
	case ProtocolGRPC, ProtocolHTTP:
	default:
		return fmt.Errorf("%w: tracing.protocol %q", ErrInvalidConfig, c.Tracing.Protocol)
	}

	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.GenerationConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SQLitePath returns the database file used by the sqlite backend.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.Storage.DataDir, "ragnote.db")
}

// BadgerPath returns the badger directory inside the data dir.
func (c *Config) BadgerPath() string {
	return filepath.Join(c.Storage.DataDir, "badger")
}

// AIConfig returns the embedding service configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithEmbeddingAPIKey(c.Embedding.APIKey),
	)
}

// GenerationConfig returns the router configuration.
func (c *Config) GenerationConfig() *ai.GenerationConfig {
	return &ai.GenerationConfig{
		Backend:   ai.BackendChoice(c.Generation.Backend),
		Preferred: ai.BackendConfig(c.Generation.Preferred),
		Fallback:  ai.BackendConfig(c.Generation.Fallback),
		MaxTokens: c.Generation.MaxTokens,
	}
}

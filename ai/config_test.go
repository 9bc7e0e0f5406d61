package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
		assert.Empty(t, cfg.EmbeddingAPIKey)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("https://api.openai.com"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithEmbeddingAPIKey("sk-test"),
		)

		assert.Equal(t, "https://api.openai.com", cfg.EmbeddingHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "sk-test", cfg.EmbeddingAPIKey)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config normalizes", func(t *testing.T) {
		cfg := &Config{EmbeddingHost: "http://localhost:11434", EmbeddingModel: "embeddinggemma"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("missing embedding host", func(t *testing.T) {
		err := (&Config{EmbeddingModel: "embeddinggemma"}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		err := (&Config{EmbeddingHost: "http://localhost:11434/v1"}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})
}

func TestGenerationConfig_Defaults(t *testing.T) {
	cfg := DefaultGenerationConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.Equal(t, ProviderMistral, cfg.Preferred.Provider)
	assert.Equal(t, "mistral-large-latest", cfg.Preferred.Model)
	assert.Equal(t, ProviderOpenAI, cfg.Fallback.Provider)
	assert.Equal(t, "llama3.1:8b", cfg.Fallback.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Fallback.Host)
}

func TestGenerationConfig_Validate(t *testing.T) {
	t.Run("unknown backend choice", func(t *testing.T) {
		cfg := DefaultGenerationConfig()
		cfg.Backend = "primary"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidBackend)
	})

	t.Run("non-positive max tokens", func(t *testing.T) {
		cfg := DefaultGenerationConfig()
		cfg.MaxTokens = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MaxTokens")
	})

	t.Run("gemini default model", func(t *testing.T) {
		cfg := DefaultGenerationConfig()
		cfg.Preferred = BackendConfig{Provider: ProviderGemini}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "gemini-1.5-flash", cfg.Preferred.Model)
	})
}

func TestGenerationConfig_Select(t *testing.T) {
	t.Run("auto picks preferred with credentials", func(t *testing.T) {
		cfg := DefaultGenerationConfig()
		cfg.Preferred.APIKey = "key"
		choice, backend := cfg.Select()
		assert.Equal(t, BackendPreferred, choice)
		assert.Equal(t, ProviderMistral, backend.Provider)
	})

	t.Run("auto falls back without credentials", func(t *testing.T) {
		cfg := DefaultGenerationConfig()
		choice, backend := cfg.Select()
		assert.Equal(t, BackendFallback, choice)
		assert.Equal(t, ProviderOpenAI, backend.Provider)
	})

	t.Run("explicit choice wins", func(t *testing.T) {
		cfg := DefaultGenerationConfig()
		cfg.Preferred.APIKey = "key"
		cfg.Backend = BackendFallback
		choice, _ := cfg.Select()
		assert.Equal(t, BackendFallback, choice)
	})
}

// Package mistral provides chat generation on the Mistral API.
package mistral

import (
	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/ai/langchain"
	"github.com/tmc/langchaingo/llms/mistral"
)

// NewGenerator creates a Mistral chat generator. It matches ai.GeneratorFactory.
// Host overrides the API endpoint when set.
func NewGenerator(cfg ai.BackendConfig) (ai.Generator, error) {
	if cfg.APIKey == "" {
		return nil, ai.ErrMissingCredentials
	}
	opts := []mistral.Option{
		mistral.WithAPIKey(cfg.APIKey),
		mistral.WithModel(cfg.Model),
	}
	if cfg.Host != "" {
		opts = append(opts, mistral.WithEndpoint(cfg.Host))
	}
	model, err := mistral.New(opts...)
	if err != nil {
		return nil, err
	}
	return langchain.NewGenerator(model, cfg.Model), nil
}

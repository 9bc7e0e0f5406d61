package openai

import (
	"github.com/poiesic/ragnote/ai"
	"github.com/poiesic/ragnote/ai/langchain"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewGenerator creates a chat generator for an OpenAI-compatible endpoint.
// It matches ai.GeneratorFactory.
func NewGenerator(cfg ai.BackendConfig) (ai.Generator, error) {
	client, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken(tokenOrNone(cfg.APIKey)),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return langchain.NewGenerator(client, cfg.Model), nil
}

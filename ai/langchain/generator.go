// Package langchain adapts langchaingo chat models to ai.Generator.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragnote/ai"
	"github.com/tmc/langchaingo/llms"
)

// ErrNoChoices is returned when a model answers without any choice.
var ErrNoChoices = errors.New("model returned no choices")

// Generator sends ai.Messages to a langchaingo model.
type Generator struct {
	model  llms.Model
	logger *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator wraps model. name tags log records.
func NewGenerator(model llms.Model, name string) *Generator {
	return &Generator{
		model:  model,
		logger: slog.Default().With("component", "generator", "model", name),
	}
}

// Generate implements ai.Generator.
func (g *Generator) Generate(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
	content, err := ToMessageContent(messages)
	if err != nil {
		return "", err
	}

	g.logger.Debug("generating", "messages", len(content), "maxTokens", maxTokens)
	resp, err := g.model.GenerateContent(ctx, content, llms.WithMaxTokens(maxTokens))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Content, nil
}

// ToMessageContent converts messages to langchaingo's representation.
func ToMessageContent(messages []ai.Message) ([]llms.MessageContent, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		var role llms.ChatMessageType
		switch msg.Role {
		case ai.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case ai.RoleUser:
			role = llms.ChatMessageTypeHuman
		case ai.RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return content, nil
}

// Package gemini provides chat generation on Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/ragnote/ai"
	"google.golang.org/api/option"
)

// ErrLastMessageNotUser is returned when a conversation does not end with a user message.
var ErrLastMessageNotUser = errors.New("last message must come from the user")

// Generator implements ai.Generator on a Gemini chat session.
type Generator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// NewGenerator creates a Gemini generator. It matches ai.GeneratorFactory.
func NewGenerator(cfg ai.BackendConfig) (ai.Generator, error) {
	if cfg.APIKey == "" {
		return nil, ai.ErrMissingCredentials
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Generator{
		client: client,
		model:  cfg.Model,
		logger: slog.Default().With("component", "gemini", "model", cfg.Model),
	}, nil
}

// Generate implements ai.Generator. System messages become the system
// instruction; the rest becomes chat history ending with the user's message.
func (g *Generator) Generate(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
	system, history, err := toContents(messages)
	if err != nil {
		return "", err
	}

	model := g.client.GenerativeModel(g.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	model.SetMaxOutputTokens(int32(maxTokens))

	chat := model.StartChat()
	last := history[len(history)-1]
	chat.History = history[:len(history)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini SendMessage: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		g.logger.Warn("gemini returned no candidates")
		return "", nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			g.logger.Debug("skipping non-text part", "type", fmt.Sprintf("%T", part))
		}
	}
	return text.String(), nil
}

// Close releases the client.
func (g *Generator) Close() error {
	return g.client.Close()
}

// toContents splits messages into a system instruction and Gemini chat
// contents. Gemini names the assistant role "model".
func toContents(messages []ai.Message) (string, []*genai.Content, error) {
	var system []string
	var history []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case ai.RoleSystem:
			system = append(system, msg.Content)
		case ai.RoleUser:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		case ai.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			return "", nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	if len(history) == 0 || history[len(history)-1].Role != "user" {
		return "", nil, ErrLastMessageNotUser
	}
	return strings.Join(system, "\n\n"), history, nil
}

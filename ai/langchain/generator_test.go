package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/ragnote/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGenerate(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "4"}}}}
	gen := NewGenerator(model, "fake")

	out, err := gen.Generate(context.Background(), []ai.Message{
		ai.SystemMessage("be brief"),
		ai.UserMessage("What is 2+2?"),
		ai.AssistantMessage("4"),
		ai.UserMessage("And 3+3?"),
	}, 2048)
	require.NoError(t, err)
	assert.Equal(t, "4", out)
	assert.Equal(t, 2048, model.opts.MaxTokens)

	require.Len(t, model.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, llms.TextContent{Text: "And 3+3?"}, model.messages[3].Parts[0])
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		gen := NewGenerator(&fakeModel{resp: &llms.ContentResponse{}}, "fake")
		_, err := gen.Generate(context.Background(), []ai.Message{ai.UserMessage("hi")}, 10)
		assert.ErrorIs(t, err, ErrNoChoices)
	})

	t.Run("model error", func(t *testing.T) {
		cause := errors.New("503")
		gen := NewGenerator(&fakeModel{err: cause}, "fake")
		_, err := gen.Generate(context.Background(), []ai.Message{ai.UserMessage("hi")}, 10)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := ToMessageContent([]ai.Message{{Role: "tool", Content: "x"}})
		assert.Error(t, err)
	})
}

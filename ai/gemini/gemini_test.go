package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/ragnote/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToContents(t *testing.T) {
	system, history, err := toContents([]ai.Message{
		ai.SystemMessage("You are helpful."),
		ai.UserMessage("hi"),
		ai.AssistantMessage("hello"),
		ai.UserMessage("What is 2+2?"),
	})
	require.NoError(t, err)

	assert.Equal(t, "You are helpful.", system)
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("What is 2+2?"), history[2].Parts[0])
}

func TestToContents_Errors(t *testing.T) {
	_, _, err := toContents([]ai.Message{ai.SystemMessage("only system")})
	assert.ErrorIs(t, err, ErrLastMessageNotUser)

	_, _, err = toContents([]ai.Message{ai.UserMessage("q"), ai.AssistantMessage("a")})
	assert.ErrorIs(t, err, ErrLastMessageNotUser)

	_, _, err = toContents([]ai.Message{{Role: "tool", Content: "x"}})
	assert.Error(t, err)
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	_, err := NewGenerator(ai.BackendConfig{Provider: ai.ProviderGemini, Model: "gemini-1.5-flash"})
	assert.ErrorIs(t, err, ai.ErrMissingCredentials)
}

package mistral

import (
	"testing"

	"github.com/poiesic/ragnote/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	_, err := NewGenerator(ai.BackendConfig{Provider: ai.ProviderMistral, Model: "mistral-large-latest"})
	assert.ErrorIs(t, err, ai.ErrMissingCredentials)

	gen, err := NewGenerator(ai.BackendConfig{Provider: ai.ProviderMistral, APIKey: "key", Model: "mistral-large-latest"})
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

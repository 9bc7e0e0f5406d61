package mock

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/ragnote/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ai.AIProvider = (*MockProvider)(nil)

func TestDeterministicVector(t *testing.T) {
	a := DeterministicVector("hello", 16)
	b := DeterministicVector("hello", 16)
	c := DeterministicVector("world", 16)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	v, err := m.EmbedText(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimension)

	vs, err := m.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)
	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []string{"x", "a", "b"}, m.Texts())

	m.Reset()
	assert.Zero(t, m.CallCount())
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator("42")
	out, err := g.Generate(context.Background(), []ai.Message{ai.UserMessage("q")}, 10)
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	assert.Equal(t, 1, g.CallCount())
	assert.Equal(t, "q", g.LastRequest()[0].Content)

	gen, err := g.Factory()(ai.BackendConfig{})
	require.NoError(t, err)
	assert.Same(t, g, gen)
}

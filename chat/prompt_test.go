package chat

import (
	"strings"
	"testing"

	"github.com/poiesic/ragnote/core"
	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want []string
	}{
		{"none", "What is 2+2?", nil},
		{"single", "Check https://example.com for details", []string{"https://example.com"}},
		{"trailing period", "Read https://example.com/cv.", []string{"https://example.com/cv"}},
		{"parenthesised", "(see http://example.org/a?b=c)", []string{"http://example.org/a?b=c"}},
		{"quoted", `he said "https://example.com/x!"`, []string{"https://example.com/x"}},
		{"duplicates", "https://a.example https://b.example https://a.example,", []string{"https://a.example", "https://b.example"}},
		{"bare scheme", "try https://.", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractURLs(tc.text))
		})
	}
}

func TestPersonalization(t *testing.T) {
	profile := &core.UserProfile{UserID: "owner", Info: "Lives in Lisbon."}

	assert.Equal(t,
		"You are a personalized AI assistant for Ada. Here is information about Ada:\nLives in Lisbon.\n\n",
		personalization("Ada", profile))
	assert.Equal(t, "You are a personalized AI assistant for Ada. ", personalization("Ada", nil))
	assert.Equal(t,
		"You are a helpful AI assistant. Here is information about the user:\nLives in Lisbon.\n\n",
		personalization("", profile))
	assert.Equal(t, "You are a helpful AI assistant. ", personalization("", nil))
}

func TestContextBlock(t *testing.T) {
	assert.Empty(t, contextBlock(nil))

	long := strings.Repeat("ü", 600)
	block := contextBlock([]*core.Chunk{{Text: "first"}, {Text: long}})

	lines := strings.Split(block, "\n")
	assert.Equal(t, contextHeader, lines[0])
	assert.Equal(t, "1. first", lines[1])
	assert.Equal(t, "2. "+strings.Repeat("ü", 500)+"...", lines[2])
}

func TestTruncateContext(t *testing.T) {
	exact := strings.Repeat("a", 500)
	assert.Equal(t, exact, truncateContext(exact))
	assert.Equal(t, exact+"...", truncateContext(exact+"b"))
}

func TestSystemPrompt(t *testing.T) {
	prompt := systemPrompt("", nil, nil)
	assert.Equal(t, "You are a helpful AI assistant. "+instructionText, prompt)

	prompt = systemPrompt("", nil, []*core.Chunk{{Text: "note"}})
	assert.Equal(t, "You are a helpful AI assistant. "+instructionText+"\n\n"+contextHeader+"\n1. note", prompt)
}

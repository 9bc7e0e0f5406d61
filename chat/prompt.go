package chat

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragnote/core"
)

const (
	contextHeader = "Relevant Context from Knowledge Base:"

	instructionText = "When answering questions, use the context provided from the knowledge base " +
		"if it is relevant. Remember previous parts of the conversation and maintain context. " +
		"Be helpful, accurate, and personalized. If the context doesn't contain relevant " +
		"information, say so but still try to be helpful."

	// Each chunk contributes at most this many runes to the context block.
	maxContextRunes = 500
)

// personalization returns the opening of the system prompt. profile may be
// nil.
func personalization(owner string, profile *core.UserProfile) string {
	hasInfo := profile != nil && strings.TrimSpace(profile.Info) != ""
	if owner != "" {
		if hasInfo {
			return fmt.Sprintf("You are a personalized AI assistant for %s. Here is information about %s:\n%s\n\n",
				owner, owner, profile.Info)
		}
		return fmt.Sprintf("You are a personalized AI assistant for %s. ", owner)
	}
	if hasInfo {
		return "You are a helpful AI assistant. Here is information about the user:\n" + profile.Info + "\n\n"
	}
	return "You are a helpful AI assistant. "
}

// contextBlock numbers the chunks under the knowledge base header, or
// returns "" when there are none.
func contextBlock(chunks []*core.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(contextHeader)
	for i, chunk := range chunks {
		sb.WriteByte('\n')
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(truncateContext(chunk.Text))
	}
	return sb.String()
}

func truncateContext(text string) string {
	if utf8.RuneCountInString(text) <= maxContextRunes {
		return text
	}
	return string([]rune(text)[:maxContextRunes]) + "..."
}

// systemPrompt assembles the single system message of a request.
func systemPrompt(owner string, profile *core.UserProfile, chunks []*core.Chunk) string {
	prompt := personalization(owner, profile) + instructionText
	if block := contextBlock(chunks); block != "" {
		prompt += "\n\n" + block
	}
	return prompt
}

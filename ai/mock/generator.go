package mock

import (
	"context"
	"sync"

	"github.com/poiesic/ragnote/ai"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, Reply is returned.
	GenerateFunc func(ctx context.Context, messages []ai.Message, maxTokens int) (string, error)

	// Reply is the default answer.
	Reply string

	mu       sync.Mutex
	requests [][]ai.Message
}

// NewMockGenerator creates a generator that always answers reply.
func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply}
}

// Generate records the request and returns the injected or default reply.
func (m *MockGenerator) Generate(ctx context.Context, messages []ai.Message, maxTokens int) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, append([]ai.Message(nil), messages...))
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, maxTokens)
	}
	return m.Reply, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the messages of the most recent call, or nil.
func (m *MockGenerator) LastRequest() []ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Factory returns an ai.GeneratorFactory that always yields m.
func (m *MockGenerator) Factory() ai.GeneratorFactory {
	return func(ai.BackendConfig) (ai.Generator, error) {
		return m, nil
	}
}

// Package mock provides test doubles for the ai interfaces.
//
// Behavior is injected through function fields:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//
//	generator := mock.NewMockGenerator("4")
//	count := generator.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockGenerator: Returns a fixed reply and records each request
//   - MockProvider: Aggregates a mock embedder
//
// All mocks are safe for concurrent use.
package mock

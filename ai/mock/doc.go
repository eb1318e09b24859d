// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.Provider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// Default behavior:
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockGenerator: Returns canned answers and summaries
//   - MockProvider: Aggregates mock embedder and generator
//
// Custom behavior is injected through the function fields:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
package mock

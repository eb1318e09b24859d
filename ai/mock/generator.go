package mock

import (
	"context"
	"fmt"

	"github.com/bookvision/bookvision/core"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// AnswerFunc is called by Answer if set.
	AnswerFunc func(ctx context.Context, question string, passages []*core.Chunk) (string, error)

	// SummarizeFunc is called by Summarize if set.
	SummarizeFunc func(ctx context.Context, title string, passages []*core.Chunk) (string, error)

	callCount int
}

// NewMockGenerator creates a mock generator with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Answer returns a canned response naming the question and passage count.
func (m *MockGenerator) Answer(ctx context.Context, question string, passages []*core.Chunk) (string, error) {
	m.callCount++

	if m.AnswerFunc != nil {
		return m.AnswerFunc(ctx, question, passages)
	}

	return fmt.Sprintf("mock answer to %q from %d passages", question, len(passages)), nil
}

// Summarize returns a canned summary naming the title and passage count.
func (m *MockGenerator) Summarize(ctx context.Context, title string, passages []*core.Chunk) (string, error) {
	m.callCount++

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, title, passages)
	}

	return fmt.Sprintf("mock summary of %q from %d passages", title, len(passages)), nil
}

// CallCount returns the number of times any method was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and any injected functions.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.AnswerFunc = nil
	m.SummarizeFunc = nil
}

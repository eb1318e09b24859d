package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizePicksFrequentTopics(t *testing.T) {
	s := NewExtractive()
	text := "Whales are marine mammals. Whales breathe air through blowholes. " +
		"Some trivia exists elsewhere. Whales sing complex songs across oceans. " +
		"Unrelated filler sentence goes here."

	summary := s.Summarize(text, 2)
	sentences := strings.Count(summary, ".")
	assert.Equal(t, 2, sentences)
	assert.Contains(t, strings.ToLower(summary), "whales")
}

func TestSummarizePreservesOriginalOrder(t *testing.T) {
	s := NewExtractive()
	text := "Alpha topic opens the story. Beta detail follows the opening. Gamma point closes it."

	summary := s.Summarize(text, 3)
	alpha := strings.Index(summary, "Alpha")
	beta := strings.Index(summary, "Beta")
	gamma := strings.Index(summary, "Gamma")
	require.True(t, alpha >= 0 && beta >= 0 && gamma >= 0)
	assert.Less(t, alpha, beta)
	assert.Less(t, beta, gamma)
}

func TestSummarizeShortInput(t *testing.T) {
	s := NewExtractive()

	assert.Equal(t, "One sentence only.", s.Summarize("One sentence only.", 5))
	assert.Equal(t, "no terminal punctuation", s.Summarize("  no terminal punctuation  ", 5))
	assert.Equal(t, "", s.Summarize("   ", 5))
}

func TestSummarizeDefaultCap(t *testing.T) {
	s := NewExtractive()
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("Another sentence about recurring subject matter. ")
	}

	summary := s.Summarize(sb.String(), 0)
	assert.Equal(t, DefaultMaxSentences, strings.Count(summary, "."))
}

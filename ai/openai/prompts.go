package openai

import (
	"fmt"
	"strings"

	"github.com/bookvision/bookvision/core"
)

const answerSystemPrompt = `You are a reading assistant for a digital library.
Answer the user's question using ONLY the numbered passages provided.
Every passage is labeled with its source page, like [p. 12].
Cite the page number for each claim you make, using the same [p. N] form.
If the passages do not contain enough information to answer, say so plainly.
Do not invent facts that are not in the passages.`

const summarySystemPrompt = `You are a reading assistant for a digital library.
Write a concise summary of the book using ONLY the numbered passages provided.
Cover the main topics in 3 to 5 sentences of plain prose.
Do not invent facts that are not in the passages.`

// formatPassages renders chunks as a numbered context block with page labels.
func formatPassages(passages []*core.Chunk) string {
	var sb strings.Builder
	for i, chunk := range passages {
		fmt.Fprintf(&sb, "%d. [p. %d] %s\n\n", i+1, chunk.PageNumber, chunk.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func buildAnswerPrompt(question string, passages []*core.Chunk) string {
	return fmt.Sprintf("Passages:\n\n%s\n\nQuestion: %s", formatPassages(passages), question)
}

func buildSummaryPrompt(title string, passages []*core.Chunk) string {
	header := "Passages"
	if title != "" {
		header = fmt.Sprintf("Passages from %q", title)
	}
	return fmt.Sprintf("%s:\n\n%s", header, formatPassages(passages))
}

// Copyright 2025 BookVision Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package chunk splits page text into sentence-aware passages sized for
// embedding. Chunks never cross page boundaries, so every passage keeps an
// exact page citation.
package chunk

import (
	"regexp"
	"strings"

	"github.com/bookvision/bookvision/core"
)

const (
	// DefaultTargetSize is the preferred chunk length in characters.
	DefaultTargetSize = 800

	// DefaultMinSize is the threshold below which page text is considered
	// too sparse to index.
	DefaultMinSize = 50
)

var sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Settings controls chunk sizing.
type Settings struct {
	// TargetSize is the soft upper bound on chunk length in characters.
	// Sentences are never split, so a single long sentence may exceed it.
	TargetSize int

	// MinSize is the minimum amount of text, after trimming, for a page
	// to produce chunks at all.
	MinSize int
}

// DefaultSettings returns the standard sizing.
func DefaultSettings() Settings {
	return Settings{TargetSize: DefaultTargetSize, MinSize: DefaultMinSize}
}

func (s Settings) normalized() Settings {
	if s.TargetSize <= 0 {
		s.TargetSize = DefaultTargetSize
	}
	if s.MinSize < 0 {
		s.MinSize = DefaultMinSize
	}
	return s
}

// Chunker splits documents into page-scoped chunks.
type Chunker struct {
	settings Settings
}

// NewChunker creates a chunker. Zero values in settings fall back to
// defaults.
func NewChunker(settings Settings) *Chunker {
	return &Chunker{settings: settings.normalized()}
}

// Split chunks every page of the document. Pages with less than MinSize
// characters of text produce nothing. The output is deterministic for a
// given document and settings.
func (c *Chunker) Split(doc *core.Document) []*core.Chunk {
	var chunks []*core.Chunk
	for i := range doc.Pages {
		chunks = append(chunks, c.SplitPage(doc, &doc.Pages[i])...)
	}
	return chunks
}

// SplitPage chunks a single page. Sequence indexes restart at 0 on every
// page.
func (c *Chunker) SplitPage(doc *core.Document, page *core.Page) []*core.Chunk {
	text := strings.TrimSpace(page.Text)
	if len(text) < c.settings.MinSize {
		return nil
	}

	parts := c.splitText(text)
	chunks := make([]*core.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, &core.Chunk{
			ID:            core.ChunkID(doc.BookID, page.Number, i, part),
			BookID:        doc.BookID,
			BookTitle:     doc.Title,
			Source:        doc.Source,
			PageNumber:    page.Number,
			SequenceIndex: i,
			Text:          part,
		})
	}
	return chunks
}

// splitText accumulates whole sentences greedily up to TargetSize. No
// returned part is shorter than MinSize; short parts are folded into a
// neighbor instead of emitted on their own.
func (c *Chunker) splitText(text string) []string {
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		// no terminal punctuation at all, keep the page as one chunk
		return []string{text}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	// text after the final sentence terminator still belongs to the page
	if tail := c.trailingFragment(text); tail != "" {
		sentences = append(sentences, tail)
	}

	var parts []string
	var current strings.Builder
	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > c.settings.TargetSize {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return c.mergeShortParts(parts)
}

// mergeShortParts folds every part below MinSize into its neighbor. A
// short sentence flushed by a following oversized sentence would
// otherwise slip through as its own chunk. Sentences stay intact, so a
// merge may push the neighbor past TargetSize.
func (c *Chunker) mergeShortParts(parts []string) []string {
	if len(parts) < 2 {
		return parts
	}
	merged := make([]string, 0, len(parts))
	for _, part := range parts {
		if len(merged) > 0 && len(part) < c.settings.MinSize {
			merged[len(merged)-1] += " " + part
			continue
		}
		merged = append(merged, part)
	}
	if len(merged) > 1 && len(merged[0]) < c.settings.MinSize {
		merged[1] = merged[0] + " " + merged[1]
		merged = merged[1:]
	}
	return merged
}

// trailingFragment returns trimmed text that follows the last sentence
// terminator, if any.
func (c *Chunker) trailingFragment(text string) string {
	last := strings.LastIndexAny(text, ".!?")
	if last < 0 || last == len(text)-1 {
		return ""
	}
	return strings.TrimSpace(text[last+1:])
}

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


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bookvision/bookvision/ai"
	"github.com/bookvision/bookvision/core"
	"github.com/bookvision/bookvision/storage"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of chunks to embed in each request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every book in the index with the configured
// embedder. Each book is swapped atomically, so a failure partway leaves
// already-processed books on the new embeddings and the rest on the old.
type Reindexer struct {
	index    storage.VectorIndex
	embedder ai.Embedder
	config   *Config
	progress io.Writer
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(index storage.VectorIndex, embedder ai.Embedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reindexer{
		index:    index,
		embedder: embedder,
		config:   config,
		progress: progress,
	}
}

// Run executes the reindexing operation over every indexed book.
// Progress is reported to the configured writer.
func (r *Reindexer) Run(ctx context.Context) error {
	books, err := r.index.Books(ctx)
	if err != nil {
		return fmt.Errorf("failed to list books: %w", err)
	}
	if len(books) == 0 {
		fmt.Fprintf(r.progress, "No books found in index (0 chunks)\n")
		return nil
	}

	totalChunks := 0
	for _, book := range books {
		totalChunks += book.ChunkCount
	}

	fmt.Fprintf(r.progress, "Starting reindexing of %d books, %d chunks (batch size: %d)\n",
		len(books), totalChunks, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, totalChunks, r.config.ReportInterval)
	tracker.Start()

	for _, book := range books {
		if err := r.reindexBook(ctx, book.BookID, tracker); err != nil {
			return fmt.Errorf("failed to reindex book %q: %w", book.BookID, err)
		}
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		totalChunks, elapsed.Round(time.Second), float64(totalChunks)/elapsed.Seconds())
	return nil
}

// reindexBook embeds all of one book's chunks and replaces its entries.
func (r *Reindexer) reindexBook(ctx context.Context, bookID string, tracker *ProgressTracker) error {
	chunks, err := r.index.BookChunks(ctx, bookID, 0)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var embedded [][]float32
		err := RetryWithBackoff(ctx, func() error {
			var embedErr error
			embedded, embedErr = r.embedder.EmbedTexts(ctx, texts)
			return embedErr
		}, r.config.MaxRetries, r.config.RetryDelay)
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
		}
		if len(embedded) != len(batch) {
			return fmt.Errorf("embedding result mismatch. expected %d, received %d",
				len(batch), len(embedded))
		}

		for _, vec := range embedded {
			vectors = append(vectors, core.Normalize(vec))
		}
		tracker.Increment(len(batch))
	}

	return r.index.ReplaceBook(ctx, bookID, chunks, vectors)
}

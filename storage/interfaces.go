package storage

import (
	"context"

	"github.com/bookvision/bookvision/core"
)

// SearchFilter restricts a similarity search to matching entries.
// A nil filter matches everything.
type SearchFilter struct {
	// BookID, when non-empty, restricts results to chunks of one book.
	BookID string
}

// VectorIndex is a persistent store of (embedding, chunk) pairs supporting
// similarity search. Implementations must be safe for concurrent use:
// a search in progress observes a consistent snapshot and never sees a
// partially applied batch.
//
// All vectors must share one dimension for the lifetime of an index;
// implementations reject mismatches with core.ErrDimensionMismatch.
type VectorIndex interface {
	// Add appends a single entry. Equivalent to AddBatch with one element.
	Add(ctx context.Context, chunk *core.Chunk, vector []float32) error

	// AddBatch appends entries atomically: after a crash either the whole
	// batch is durable or none of it is, and no concurrent search observes
	// a partially applied batch. chunks[i] pairs with vectors[i].
	AddBatch(ctx context.Context, chunks []*core.Chunk, vectors [][]float32) error

	// Search returns up to topK entries maximizing inner product with the
	// query vector (cosine similarity, since stored vectors are unit
	// length), ranked descending. Ties preserve insertion order, earliest
	// first. If fewer matching entries exist, all of them are returned.
	Search(ctx context.Context, vector []float32, topK int, filter *SearchFilter) ([]*core.SearchResult, error)

	// RemoveBook removes every entry belonging to the book and returns the
	// number removed. Removing an unknown book is not an error.
	RemoveBook(ctx context.Context, bookID string) (int, error)

	// ReplaceBook atomically removes all existing entries for the book and
	// adds the new ones in a single step, so no search ever observes a mix
	// of the old and new chunk sets. An empty chunk list clears the book.
	ReplaceBook(ctx context.Context, bookID string, chunks []*core.Chunk, vectors [][]float32) error

	// BookChunks returns the book's chunks ordered by (page, sequence
	// index). maxPages > 0 limits the result to the first maxPages distinct
	// pages; maxPages <= 0 returns everything.
	BookChunks(ctx context.Context, bookID string, maxPages int) ([]*core.Chunk, error)

	// Books lists every indexed book with chunk counts and page coverage.
	Books(ctx context.Context) ([]*core.BookInfo, error)

	// Stats reports total entries, per-book counts, and the vector
	// dimension the index is bound to (0 while empty).
	Stats(ctx context.Context) (*core.IndexStats, error)

	// Sync forces pending writes to durable storage.
	Sync(ctx context.Context) error

	// Close closes the index and releases resources. The index reloads
	// into an equivalent searchable state on the next open.
	Close() error
}

// Package reindex re-embeds every indexed book with a new or updated
// embedding model.
//
// It processes books one at a time, embedding their chunks in batches
// with retry and exponential backoff, and swaps each book's entries in a
// single atomic replace. The new model must produce vectors of the same
// dimension as the existing index; switching dimensions requires starting
// from an empty index.
package reindex

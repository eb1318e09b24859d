// Copyright 2026 BookVision Authors
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


package core

import "errors"

// Failure kinds. Callers distinguish them with errors.Is; lower layers wrap
// them with context via fmt.Errorf("%w: ...").
var (
	// ErrExtractionFailed indicates the input document is corrupt,
	// password-protected, oversized, or otherwise unreadable. No partial
	// document is created.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingFailed indicates the embedding capability is unreachable
	// or returned malformed output. Ingestion aborts without touching the
	// index; a query fails rather than searching with a zero vector.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrIndexUnavailable indicates the persistence layer is unreachable.
	// Queries fail closed instead of returning stale or empty results.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrBookNotFound indicates no indexed chunks exist for the book.
	ErrBookNotFound = errors.New("book not found")

	// ErrInvalidBookID indicates a book identifier failed validation.
	ErrInvalidBookID = errors.New("invalid book id")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidPage indicates a Page failed validation.
	ErrInvalidPage = errors.New("invalid page")

	// ErrEmptyQuery indicates a query with no usable text.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrDimensionMismatch indicates a vector whose dimension differs from
	// the one the index was created with. Scores are only comparable within
	// a single embedding space.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

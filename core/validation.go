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

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateBookID validates a book identifier.
//
// Validation rules:
//   - must not be empty
//   - must not contain ':' (reserved as the storage key separator)
//   - must not contain control characters or path separators
func ValidateBookID(bookID string) error {
	if bookID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidBookID)
	}
	if strings.ContainsAny(bookID, ":/\\") {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidBookID, bookID)
	}
	for _, r := range bookID {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidBookID, bookID)
		}
	}
	return nil
}

// ValidateChunk validates a Chunk against domain rules.
//
// Validation rules:
//   - BookID must be valid
//   - Text must not be empty
//   - PageNumber must be >= 1 (physical 1-indexed page)
//   - SequenceIndex must be >= 0
//
// NOT validated here:
//   - the minimum-length noise threshold (a chunker setting, not a domain
//     constant)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if err := ValidateBookID(chunk.BookID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidChunk)
	}
	if chunk.PageNumber < 1 {
		return fmt.Errorf("%w: page number %d is not 1-indexed", ErrInvalidChunk, chunk.PageNumber)
	}
	if chunk.SequenceIndex < 0 {
		return fmt.Errorf("%w: negative sequence index %d", ErrInvalidChunk, chunk.SequenceIndex)
	}
	return nil
}

// ValidatePage validates a Page. Empty text is legal; unreadable pages are
// emitted with empty text and filtered during chunking.
func ValidatePage(page *Page) error {
	if page == nil {
		return fmt.Errorf("%w: page is nil", ErrInvalidPage)
	}
	if page.Number < 1 {
		return fmt.Errorf("%w: page number %d is not 1-indexed", ErrInvalidPage, page.Number)
	}
	return nil
}

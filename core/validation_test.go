package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBookID(t *testing.T) {
	tests := []struct {
		name    string
		bookID  string
		wantErr bool
	}{
		{"simple id", "moby-dick", false},
		{"uuid style", "0b9d2b8e-6f0e-4d1a-9a53-237b1c6b9f10", false},
		{"empty", "", true},
		{"contains colon", "book:1", true},
		{"contains slash", "a/b", true},
		{"contains backslash", `a\b`, true},
		{"contains newline", "book\n1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBookID(tt.bookID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBookID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChunk(t *testing.T) {
	valid := func() *Chunk {
		return &Chunk{
			ID:            ChunkID("book-a", 1, 0, "enough text to be a chunk"),
			BookID:        "book-a",
			BookTitle:     "A Book",
			PageNumber:    1,
			SequenceIndex: 0,
			Text:          "enough text to be a chunk",
		}
	}

	t.Run("valid chunk", func(t *testing.T) {
		require.NoError(t, ValidateChunk(valid()))
	})

	t.Run("nil chunk", func(t *testing.T) {
		assert.ErrorIs(t, ValidateChunk(nil), ErrInvalidChunk)
	})

	t.Run("empty text", func(t *testing.T) {
		c := valid()
		c.Text = "   \n\t"
		assert.ErrorIs(t, ValidateChunk(c), ErrInvalidChunk)
	})

	t.Run("zero page number", func(t *testing.T) {
		c := valid()
		c.PageNumber = 0
		assert.ErrorIs(t, ValidateChunk(c), ErrInvalidChunk)
	})

	t.Run("negative sequence index", func(t *testing.T) {
		c := valid()
		c.SequenceIndex = -1
		assert.ErrorIs(t, ValidateChunk(c), ErrInvalidChunk)
	})

	t.Run("bad book id", func(t *testing.T) {
		c := valid()
		c.BookID = "a:b"
		err := ValidateChunk(c)
		assert.ErrorIs(t, err, ErrInvalidChunk)
		assert.ErrorIs(t, err, ErrInvalidBookID)
	})
}

func TestValidatePage(t *testing.T) {
	t.Run("valid page", func(t *testing.T) {
		assert.NoError(t, ValidatePage(&Page{Number: 1, Text: "hello"}))
	})

	t.Run("empty text is legal", func(t *testing.T) {
		assert.NoError(t, ValidatePage(&Page{Number: 2}))
	})

	t.Run("nil page", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePage(nil), ErrInvalidPage)
	})

	t.Run("zero page number", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePage(&Page{Number: 0, Text: "x"}), ErrInvalidPage)
	})
}

package extract

import (
	"context"
	"testing"

	"github.com/bookvision/bookvision/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOCR struct {
	text string
	err  error
}

func (s *stubOCR) RecognizeText(ctx context.Context, image []byte) (string, error) {
	return s.text, s.err
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		format   Format
		wantErr  bool
	}{
		{"book.pdf", FormatPDF, false},
		{"Book.PDF", FormatPDF, false},
		{"scan.png", FormatImage, false},
		{"scan.jpeg", FormatImage, false},
		{"scan.tiff", FormatImage, false},
		{"notes.txt", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		format, err := DetectFormat(tt.filename)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedFormat, tt.filename)
			continue
		}
		require.NoError(t, err, tt.filename)
		assert.Equal(t, tt.format, format)
	}
}

func TestExtractPDFTooLarge(t *testing.T) {
	e := NewExtractor(WithMaxPDFBytes(8))

	_, err := e.Extract(context.Background(), FormatPDF, make([]byte, 16), "book", "Book", "book.pdf")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestExtractPDFMalformed(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(context.Background(), FormatPDF, []byte("not a pdf at all"), "book", "Book", "book.pdf")
	assert.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestExtractInvalidBookID(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(context.Background(), FormatPDF, []byte("data"), "bad:id", "Book", "book.pdf")
	assert.ErrorIs(t, err, core.ErrInvalidBookID)
}

func TestExtractImageWithoutOCR(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(context.Background(), FormatImage, []byte("png bytes"), "book", "Book", "scan.png")
	assert.ErrorIs(t, err, ErrNoOCR)
}

func TestExtractImageWithOCR(t *testing.T) {
	e := NewExtractor(WithOCR(&stubOCR{text: "  Recognized   page text.  "}))

	doc, err := e.Extract(context.Background(), FormatImage, []byte("png bytes"), "book", "Book", "scan.png")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, "Recognized page text.", doc.Pages[0].Text)
	assert.Equal(t, "book", doc.BookID)
	assert.Equal(t, "scan.png", doc.Source)
}

func TestExtractImageTooLarge(t *testing.T) {
	e := NewExtractor(WithOCR(&stubOCR{text: "x"}), WithMaxImageBytes(4))

	_, err := e.Extract(context.Background(), FormatImage, make([]byte, 8), "book", "Book", "scan.png")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestExtractUnknownFormat(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(context.Background(), Format("docx"), []byte("data"), "book", "Book", "a.docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImageStoreRoundTrip(t *testing.T) {
	store := NewImageStore(t.TempDir())

	require.NoError(t, store.Put("book", 3, []byte("png data")))
	assert.True(t, store.Has("book", 3))
	assert.False(t, store.Has("book", 4))

	data, err := store.Get("book", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("png data"), data)

	_, err = store.Get("book", 4)
	assert.ErrorIs(t, err, ErrImageNotFound)

	require.NoError(t, store.RemoveBook("book"))
	assert.False(t, store.Has("book", 3))
}

func TestImageStoreValidation(t *testing.T) {
	store := NewImageStore(t.TempDir())

	assert.ErrorIs(t, store.Put("bad/id", 1, []byte("x")), core.ErrInvalidBookID)
	assert.ErrorIs(t, store.Put("book", 0, []byte("x")), core.ErrInvalidPage)

	_, err := store.Get("book", -1)
	assert.ErrorIs(t, err, core.ErrInvalidPage)
}

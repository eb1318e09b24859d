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


// Package extract turns source documents into page-indexed text. PDFs are
// read natively; scanned images go through an optional OCR engine. Page
// numbers always refer to the physical page of the source file.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bookvision/bookvision/core"
	"github.com/ledongthuc/pdf"
)

const (
	// DefaultMaxPDFBytes bounds PDF input size.
	DefaultMaxPDFBytes = 50 << 20

	// DefaultMaxImageBytes bounds image input size.
	DefaultMaxImageBytes = 10 << 20
)

// Format identifies a supported input format.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatImage Format = "image"
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".tiff": {},
	".bmp":  {},
}

// DetectFormat infers the input format from a file name.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return FormatPDF, nil
	}
	if _, ok := imageExtensions[ext]; ok {
		return FormatImage, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// OCR recognizes text in a scanned page image.
type OCR interface {
	RecognizeText(ctx context.Context, image []byte) (string, error)
}

// Renderer rasterizes a PDF page into an image preview.
type Renderer interface {
	RenderPage(ctx context.Context, pdfData []byte, pageNumber int) ([]byte, error)
}

// Extractor converts PDFs and images into core documents.
type Extractor struct {
	maxPDFBytes   int
	maxImageBytes int
	ocr           OCR
	logger        *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxPDFBytes overrides the PDF size limit.
func WithMaxPDFBytes(n int) Option {
	return func(e *Extractor) { e.maxPDFBytes = n }
}

// WithMaxImageBytes overrides the image size limit.
func WithMaxImageBytes(n int) Option {
	return func(e *Extractor) { e.maxImageBytes = n }
}

// WithOCR installs an OCR engine for image inputs.
func WithOCR(ocr OCR) Option {
	return func(e *Extractor) { e.ocr = ocr }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// NewExtractor creates an extractor with default limits.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxPDFBytes:   DefaultMaxPDFBytes,
		maxImageBytes: DefaultMaxImageBytes,
		logger:        slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract dispatches on format and returns a document whose pages carry
// cleaned text. A page that cannot be read stays in the document with
// empty text, so physical page numbering is never disturbed.
func (e *Extractor) Extract(ctx context.Context, format Format, data []byte, bookID, title, source string) (*core.Document, error) {
	if err := core.ValidateBookID(bookID); err != nil {
		return nil, err
	}
	switch format {
	case FormatPDF:
		return e.extractPDF(ctx, data, bookID, title, source)
	case FormatImage:
		return e.extractImage(ctx, data, bookID, title, source)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte, bookID, title, source string) (doc *core.Document, err error) {
	if len(data) > e.maxPDFBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), e.maxPDFBytes)
	}

	// the pdf library panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", core.ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExtractionFailed, err)
	}

	total := reader.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("%w: document has no pages", core.ErrExtractionFailed)
	}

	doc = &core.Document{
		BookID: bookID,
		Title:  title,
		Source: source,
		Pages:  make([]core.Page, 0, total),
	}
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, core.Page{
			Number: i,
			Text:   e.pageText(reader, i, bookID),
		})
	}
	return doc, nil
}

// pageText reads one page, returning empty text on any per-page failure.
func (e *Extractor) pageText(reader *pdf.Reader, number int, bookID string) string {
	page := reader.Page(number)
	if page.V.IsNull() {
		e.logger.Warn("skipping null page", "book_id", bookID, "page", number)
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		e.logger.Warn("failed to read page text", "book_id", bookID, "page", number, "error", err)
		return ""
	}
	return CleanText(text)
}

// extractImage treats the whole image as page 1 and runs it through OCR.
func (e *Extractor) extractImage(ctx context.Context, data []byte, bookID, title, source string) (*core.Document, error) {
	if len(data) > e.maxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), e.maxImageBytes)
	}
	if e.ocr == nil {
		return nil, ErrNoOCR
	}

	text, err := e.ocr.RecognizeText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExtractionFailed, err)
	}

	return &core.Document{
		BookID: bookID,
		Title:  title,
		Source: source,
		Pages:  []core.Page{{Number: 1, Text: CleanText(text)}},
	}, nil
}

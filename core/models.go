package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Chunk IDs are generated deterministically from content so that
// re-ingesting identical material produces identical identifiers.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document is an ingested book or scan. It is identified by BookID and is
// immutable once indexed: re-ingestion under the same BookID replaces the
// whole chunk set, it never merges.
type Document struct {
	BookID string
	Title  string
	Source string // original file name, carried onto every chunk
	Pages  []Page
}

// Page holds the raw extracted text of one physical page.
// Number is 1-indexed and always matches the physical page of the source
// document, never a running chunk counter. Pages with unreadable text are
// kept with empty Text and filtered out during chunking.
type Page struct {
	Number int
	Text   string
}

// Chunk is a retrieval unit sliced from one page. Every chunk maps to
// exactly one page; PageNumber is the citation returned to callers.
type Chunk struct {
	ID            ID
	BookID        string
	BookTitle     string
	Source        string
	PageNumber    int
	SequenceIndex int // chunk order within the page, starting at 0
	Text          string
}

// ChunkID derives the deterministic ID for a chunk from its provenance
// and text.
func ChunkID(bookID string, pageNumber, sequenceIndex int, text string) ID {
	return IDFromContent(fmt.Sprintf("%s|%d|%d|%s", bookID, pageNumber, sequenceIndex, text))
}

// IndexEntry is the persisted (embedding, chunk) pair inside the vector
// index. Seq is the global insertion sequence used to break ranking ties;
// earlier-inserted entries win. Entries are never mutated in place.
type IndexEntry struct {
	Seq        uint64
	Chunk      Chunk
	Vector     []float32 // unit length, so inner product == cosine similarity
	InsertedAt time.Time
}

// ConfidenceBand is a coarse display label derived from a similarity score.
type ConfidenceBand string

const (
	ConfidenceHigh   ConfidenceBand = "high"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceLow    ConfidenceBand = "low"
)

// Confidence band thresholds. Boundary values belong to the higher band.
const (
	HighConfidenceThreshold   float32 = 0.7
	MediumConfidenceThreshold float32 = 0.5
)

// BandForScore maps a raw similarity score to a confidence band.
func BandForScore(score float32) ConfidenceBand {
	switch {
	case score >= HighConfidenceThreshold:
		return ConfidenceHigh
	case score >= MediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SearchResult is one ranked hit from the vector index.
type SearchResult struct {
	Chunk      *Chunk
	Score      float32
	Confidence ConfidenceBand
}

// QueryResult is the ordered answer to one retrieval query. It is
// transient; only the ranked results are persisted, in the query cache.
type QueryResult struct {
	Query    string
	Results  []*SearchResult
	CacheHit bool
}

// Answer is a generated response to a question together with the ranked
// passages that grounded it.
type Answer struct {
	Question string
	Text     string
	Results  []*SearchResult
}

// IngestSummary reports what one ingestion call produced.
// ChunksIndexed may be zero for an empty-but-valid document.
type IngestSummary struct {
	BookID        string
	PagesCount    int
	ChunksIndexed int
}

// SummarySource tells how a book summary was produced. The generation
// capability may be unavailable, in which case the extractive fallback is
// a first-class outcome, not an error.
type SummarySource string

const (
	SummaryGenerated  SummarySource = "generated"
	SummaryExtractive SummarySource = "extractive"
)

// Summary is the outcome of a summarize call.
type Summary struct {
	BookID     string
	Text       string
	Source     SummarySource
	PagesUsed  int
	ChunksUsed int
}

// BookInfo aggregates index contents for one book.
type BookInfo struct {
	BookID     string
	Title      string
	ChunkCount int
	Pages      []int // distinct physical pages with indexed chunks, ascending
}

// IndexStats summarizes the vector index.
type IndexStats struct {
	TotalChunks int
	Dimension   int
	Books       map[string]int // chunk count per book
}

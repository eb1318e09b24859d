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


// Package retrieval orchestrates the ingestion and query pipeline:
// extraction, chunking, embedding, indexing, ranking, and summaries.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bookvision/bookvision/ai"
	"github.com/bookvision/bookvision/cache"
	"github.com/bookvision/bookvision/chunk"
	"github.com/bookvision/bookvision/core"
	"github.com/bookvision/bookvision/extract"
	"github.com/bookvision/bookvision/storage"
	"github.com/bookvision/bookvision/summarize"
	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultTopK is the result count when a query does not specify one.
	DefaultTopK = 5

	// DefaultBatchSize is the number of chunk texts per embedding request.
	DefaultBatchSize = 32

	// DefaultSummaryPages bounds the pages used for a summary when the
	// caller does not specify a limit.
	DefaultSummaryPages = 10

	// DefaultStageTimeout applies to each pipeline stage (extract,
	// embed, search) individually.
	DefaultStageTimeout = 2 * time.Minute
)

// Extractor converts raw document bytes into page-indexed text.
// Satisfied by *extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, format extract.Format, data []byte, bookID, title, source string) (*core.Document, error)
}

// Engine coordinates the full pipeline. All methods are safe for
// concurrent use; ingestions of the same book serialize on a per-book
// lock so replace semantics stay well defined.
type Engine struct {
	extractor Extractor
	chunker   *chunk.Chunker
	embedder  ai.Embedder
	generator ai.Generator
	index     storage.VectorIndex
	cache     cache.Store
	fallback  *summarize.Extractive

	pool         *ants.Pool
	batchSize    int
	cacheTTL     time.Duration
	stageTimeout time.Duration
	pageDedupe   bool
	logger       *slog.Logger

	mu        sync.Mutex
	bookLocks map[string]*sync.Mutex
	closed    bool
}

// Option configures an Engine.
type Option func(*Engine) error

// WithPoolSize sets the worker pool size for concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		if e.pool != nil {
			e.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		e.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithCache installs a query result cache. Without one every query runs
// the full embed-and-search path.
func WithCache(store cache.Store) Option {
	return func(e *Engine) error {
		e.cache = store
		return nil
	}
}

// WithGenerator installs a text generation service for summaries.
// Without one summaries fall back to extractive selection.
func WithGenerator(generator ai.Generator) Option {
	return func(e *Engine) error {
		e.generator = generator
		return nil
	}
}

// WithBatchSize sets the number of chunk texts per embedding request.
func WithBatchSize(size int) Option {
	return func(e *Engine) error {
		if size > 0 {
			e.batchSize = size
		}
		return nil
	}
}

// WithCacheTTL sets how long query results stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) error {
		if ttl > 0 {
			e.cacheTTL = ttl
		}
		return nil
	}
}

// WithStageTimeout bounds each pipeline stage individually.
func WithStageTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		if timeout > 0 {
			e.stageTimeout = timeout
		}
		return nil
	}
}

// WithPageDedupe keeps only the best-scoring chunk per (book, page) in
// query results.
func WithPageDedupe(enabled bool) Option {
	return func(e *Engine) error {
		e.pageDedupe = enabled
		return nil
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(
	extractor Extractor,
	chunker *chunk.Chunker,
	embedder ai.Embedder,
	index storage.VectorIndex,
	opts ...Option,
) (*Engine, error) {
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		extractor:    extractor,
		chunker:      chunker,
		embedder:     embedder,
		index:        index,
		fallback:     summarize.NewExtractive(),
		pool:         pool,
		batchSize:    DefaultBatchSize,
		cacheTTL:     cache.DefaultTTL,
		stageTimeout: DefaultStageTimeout,
		logger:       slog.Default(),
		bookLocks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		if optErr := opt(e); optErr != nil {
			e.pool.Release()
			return nil, optErr
		}
	}
	e.logger = e.logger.With("component", "retrieval-engine")
	return e, nil
}

// IngestRequest describes one document to index.
type IngestRequest struct {
	BookID string
	Title  string
	Source string // original file name
	Data   []byte
	Format extract.Format
}

// Ingest runs the full pipeline for one document and atomically replaces
// the book's entries in the index. A failed extraction or embedding
// leaves the previously indexed content untouched. A document whose pages
// all fall below the chunking threshold indexes zero chunks; that clears
// the book and is reported in the summary, not as an error.
func (e *Engine) Ingest(ctx context.Context, req *IngestRequest) (*core.IngestSummary, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := core.ValidateBookID(req.BookID); err != nil {
		return nil, err
	}

	lock := e.bookLock(req.BookID)
	lock.Lock()
	defer lock.Unlock()

	extractCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	doc, err := e.extractor.Extract(extractCtx, req.Format, req.Data, req.BookID, req.Title, req.Source)
	cancel()
	if err != nil {
		return nil, err
	}

	chunks := e.chunker.Split(doc)
	if len(chunks) == 0 {
		e.logger.Warn("document produced no indexable chunks",
			"book_id", req.BookID, "pages", len(doc.Pages))
		if err := e.index.ReplaceBook(ctx, req.BookID, nil, nil); err != nil {
			return nil, err
		}
		return &core.IngestSummary{
			BookID:     req.BookID,
			PagesCount: len(doc.Pages),
		}, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	vectors, err := e.embedChunks(embedCtx, chunks)
	cancel()
	if err != nil {
		// index untouched: replace only happens after embedding succeeds
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
	}

	if err := e.index.ReplaceBook(ctx, req.BookID, chunks, vectors); err != nil {
		return nil, err
	}

	e.logger.Info("book indexed",
		"book_id", req.BookID, "pages", len(doc.Pages), "chunks", len(chunks))
	return &core.IngestSummary{
		BookID:        req.BookID,
		PagesCount:    len(doc.Pages),
		ChunksIndexed: len(chunks),
	}, nil
}

// embedChunks embeds chunk texts in concurrent batches and returns unit
// length vectors in chunk order.
func (e *Engine) embedChunks(ctx context.Context, chunks []*core.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < len(chunks); start += e.batchSize {
		end := start + e.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		offset := start

		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				setErr(ctx.Err())
				return
			}
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			embedded, err := e.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				setErr(err)
				return
			}
			if len(embedded) != len(batch) {
				setErr(fmt.Errorf("embedding result mismatch. expected %d, received %d",
					len(batch), len(embedded)))
				return
			}
			for i, vec := range embedded {
				vectors[offset+i] = vec
			}
		})
		if submitErr != nil {
			wg.Done()
			setErr(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	for i := range vectors {
		normalized := core.Normalize(vectors[i])
		if core.IsZero(normalized) {
			return nil, fmt.Errorf("embedder returned zero vector for chunk %d", chunks[i].ID)
		}
		vectors[i] = normalized
	}
	return vectors, nil
}

// Query embeds the question and returns ranked, confidence-banded
// results. Cache failures degrade to a normal search; an embedding
// failure fails the query rather than searching with a junk vector.
func (e *Engine) Query(ctx context.Context, text string, topK int, bookID string) (*core.QueryResult, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, core.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if bookID != "" {
		if err := core.ValidateBookID(bookID); err != nil {
			return nil, err
		}
	}

	key := cache.Key(text, topK, bookID)
	if e.cache != nil {
		cached, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("cache lookup failed, querying index", "error", err)
		} else if ok {
			return &core.QueryResult{Query: text, Results: cached, CacheHit: true}, nil
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	vector, err := e.embedder.EmbedText(embedCtx, text)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
	}
	vector = core.Normalize(vector)
	if core.IsZero(vector) {
		return nil, fmt.Errorf("%w: embedder returned zero vector", core.ErrEmbeddingFailed)
	}

	var filter *storage.SearchFilter
	if bookID != "" {
		filter = &storage.SearchFilter{BookID: bookID}
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	results, err := e.index.Search(searchCtx, vector, topK, filter)
	cancel()
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		r.Confidence = core.BandForScore(r.Score)
	}
	if e.pageDedupe {
		results = dedupeByPage(results)
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, key, results, e.cacheTTL); err != nil {
			e.logger.Warn("cache write failed", "error", err)
		}
	}
	return &core.QueryResult{Query: text, Results: results}, nil
}

// dedupeByPage keeps the first (best-scoring) result per (book, page).
// Input order is preserved.
func dedupeByPage(results []*core.SearchResult) []*core.SearchResult {
	type pageKey struct {
		book string
		page int
	}
	seen := make(map[pageKey]struct{}, len(results))
	out := results[:0]
	for _, r := range results {
		k := pageKey{r.Chunk.BookID, r.Chunk.PageNumber}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Ask retrieves the top-ranked passages for the question and has the
// generator compose an answer grounded in them. Retrieval and generation
// failures both fail the call; a question that matches nothing returns
// ErrNoPassages rather than an unsourced answer.
func (e *Engine) Ask(ctx context.Context, question string, topK int, bookID string) (*core.Answer, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if e.generator == nil {
		return nil, ErrGeneratorRequired
	}

	result, err := e.Query(ctx, question, topK, bookID)
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoPassages, result.Query)
	}

	passages := make([]*core.Chunk, len(result.Results))
	for i, r := range result.Results {
		passages[i] = r.Chunk
	}

	genCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	text, err := e.generator.Answer(genCtx, result.Query, passages)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("answer generation: %w", err)
	}

	return &core.Answer{
		Question: result.Query,
		Text:     text,
		Results:  result.Results,
	}, nil
}

// Summarize produces a book summary from the first maxPages pages of
// indexed content. With a generator configured it produces model prose;
// otherwise, or when generation fails, it falls back to extractive
// sentence selection. The summary records which variant produced it.
func (e *Engine) Summarize(ctx context.Context, bookID string, maxPages int) (*core.Summary, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if err := core.ValidateBookID(bookID); err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = DefaultSummaryPages
	}

	chunks, err := e.index.BookChunks(ctx, bookID, maxPages)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %q", core.ErrBookNotFound, bookID)
	}

	pages := make(map[int]struct{})
	for _, c := range chunks {
		pages[c.PageNumber] = struct{}{}
	}
	summary := &core.Summary{
		BookID:     bookID,
		PagesUsed:  len(pages),
		ChunksUsed: len(chunks),
	}

	if e.generator != nil {
		genCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
		text, genErr := e.generator.Summarize(genCtx, chunks[0].BookTitle, chunks)
		cancel()
		if genErr == nil {
			summary.Text = text
			summary.Source = core.SummaryGenerated
			return summary, nil
		}
		e.logger.Warn("summary generation failed, using extractive fallback",
			"book_id", bookID, "error", genErr)
	}

	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
		sb.WriteByte(' ')
	}
	summary.Text = e.fallback.Summarize(sb.String(), summarize.DefaultMaxSentences)
	summary.Source = core.SummaryExtractive
	return summary, nil
}

// Stats reports index-wide counts.
func (e *Engine) Stats(ctx context.Context) (*core.IndexStats, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.index.Stats(ctx)
}

// Books lists indexed books.
func (e *Engine) Books(ctx context.Context) ([]*core.BookInfo, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.index.Books(ctx)
}

// Close releases the worker pool. The index and cache are closed by
// their owner.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.pool.Release()
	return nil
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

func (e *Engine) bookLock(bookID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.bookLocks[bookID]
	if !ok {
		lock = &sync.Mutex{}
		e.bookLocks[bookID] = lock
	}
	return lock
}

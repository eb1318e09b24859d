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


package bookvision

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bookvision/bookvision/ai"
	"github.com/bookvision/bookvision/ai/openai"
	"github.com/bookvision/bookvision/cache"
	"github.com/bookvision/bookvision/chunk"
	"github.com/bookvision/bookvision/core"
	"github.com/bookvision/bookvision/extract"
	"github.com/bookvision/bookvision/retrieval"
	"github.com/bookvision/bookvision/storage"
	"github.com/bookvision/bookvision/storage/badger"
)

// Library is the top-level handle. It wires extraction, chunking,
// embedding, indexing, caching, and summaries into one lifecycle and
// exposes the ingestion and retrieval boundary.
type Library struct {
	backend  *badger.Backend
	index    storage.VectorIndex
	provider ai.Provider
	store    cache.Store
	images   *extract.ImageStore
	renderer extract.Renderer
	engine   *retrieval.Engine
	logger   *slog.Logger
}

// LibraryOption configures a Library.
type LibraryOption func(*libraryOptions)

type libraryOptions struct {
	aiConfig      *ai.Config
	provider      ai.Provider
	chunkSettings chunk.Settings
	redisURL      string
	cacheTTL      time.Duration
	engineOpts    []retrieval.Option
	extractOpts   []extract.Option
	renderer      extract.Renderer
	inMemory      bool
}

// WithAIConfig sets the configuration for the OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) LibraryOption {
	return func(o *libraryOptions) {
		o.aiConfig = config
	}
}

// WithProvider installs a pre-built AI provider, bypassing the
// OpenAI-compatible default. Used by tests with the mock provider.
func WithProvider(provider ai.Provider) LibraryOption {
	return func(o *libraryOptions) {
		o.provider = provider
	}
}

// WithChunkSettings overrides chunk sizing.
func WithChunkSettings(settings chunk.Settings) LibraryOption {
	return func(o *libraryOptions) {
		o.chunkSettings = settings
	}
}

// WithRedisURL enables the shared Redis cache tier.
func WithRedisURL(url string) LibraryOption {
	return func(o *libraryOptions) {
		o.redisURL = url
	}
}

// WithCacheTTL sets how long query results stay cached.
func WithCacheTTL(ttl time.Duration) LibraryOption {
	return func(o *libraryOptions) {
		o.cacheTTL = ttl
	}
}

// WithExtractorOptions forwards options to the extractor, typically to
// install an OCR engine or adjust size limits.
func WithExtractorOptions(opts ...extract.Option) LibraryOption {
	return func(o *libraryOptions) {
		o.extractOpts = append(o.extractOpts, opts...)
	}
}

// WithEngineOptions forwards options to the retrieval engine.
func WithEngineOptions(opts ...retrieval.Option) LibraryOption {
	return func(o *libraryOptions) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// WithRenderer installs a page rasterizer. With one configured, ingesting
// a PDF stores a preview image for every page.
func WithRenderer(renderer extract.Renderer) LibraryOption {
	return func(o *libraryOptions) {
		o.renderer = renderer
	}
}

// WithInMemory keeps all index data in memory. Used by tests.
func WithInMemory() LibraryOption {
	return func(o *libraryOptions) {
		o.inMemory = true
	}
}

// Open creates a Library rooted at dataDir. The vector index lives under
// dataDir/index and page images under dataDir/page_images.
func Open(dataDir string, opts ...LibraryOption) (*Library, error) {
	options := &libraryOptions{
		aiConfig:      ai.DefaultConfig(),
		chunkSettings: chunk.DefaultSettings(),
		cacheTTL:      cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := slog.Default().With("component", "library")

	backend, err := badger.OpenBackend(filepath.Join(dataDir, "index"), options.inMemory)
	if err != nil {
		return nil, err
	}

	index, err := badger.NewIndex(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			index.Close()
			backend.Close()
			return nil, err
		}
	}

	// memory tier always exists; Redis is layered on when configured
	var primary cache.Store
	if options.redisURL != "" {
		redisStore, redisErr := cache.NewRedisStoreURL(context.Background(), options.redisURL)
		if redisErr != nil {
			logger.Warn("redis unavailable, using in-process cache only", "error", redisErr)
		} else {
			primary = redisStore
		}
	}
	store := cache.NewTiered(primary, cache.NewMemoryStore(cache.DefaultMemoryEntries, options.cacheTTL))

	engineOpts := append([]retrieval.Option{
		retrieval.WithCache(store),
		retrieval.WithGenerator(provider.Generator()),
		retrieval.WithCacheTTL(options.cacheTTL),
	}, options.engineOpts...)

	engine, err := retrieval.NewEngine(
		extract.NewExtractor(options.extractOpts...),
		chunk.NewChunker(options.chunkSettings),
		provider.Embedder(),
		index,
		engineOpts...,
	)
	if err != nil {
		provider.Close()
		store.Close()
		index.Close()
		backend.Close()
		return nil, err
	}

	return &Library{
		backend:  backend,
		index:    index,
		provider: provider,
		store:    store,
		images:   extract.NewImageStore(filepath.Join(dataDir, "page_images")),
		renderer: options.renderer,
		engine:   engine,
		logger:   logger,
	}, nil
}

// Ingest indexes one document, replacing any previous content under the
// same book id.
func (l *Library) Ingest(ctx context.Context, req *retrieval.IngestRequest) (*core.IngestSummary, error) {
	summary, err := l.engine.Ingest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := l.index.Sync(ctx); err != nil {
		l.logger.Warn("index sync failed", "book_id", req.BookID, "err", err)
	}
	l.storePageImages(ctx, req, summary)
	return summary, nil
}

// storePageImages persists page previews after a successful ingest.
// Preview failures are logged, never surfaced: the index is already
// consistent and previews are an optional convenience.
func (l *Library) storePageImages(ctx context.Context, req *retrieval.IngestRequest, summary *core.IngestSummary) {
	switch req.Format {
	case extract.FormatImage:
		// the scan itself is the page preview
		if err := l.images.Put(req.BookID, 1, req.Data); err != nil {
			l.logger.Warn("failed to store page image", "book_id", req.BookID, "page", 1, "err", err)
		}
	case extract.FormatPDF:
		if l.renderer == nil {
			return
		}
		for page := 1; page <= summary.PagesCount; page++ {
			img, err := l.renderer.RenderPage(ctx, req.Data, page)
			if err != nil {
				l.logger.Warn("failed to render page", "book_id", req.BookID, "page", page, "err", err)
				continue
			}
			if err := l.images.Put(req.BookID, page, img); err != nil {
				l.logger.Warn("failed to store page image", "book_id", req.BookID, "page", page, "err", err)
			}
		}
	}
}

// Query returns ranked, confidence-banded passages for the question.
// bookID restricts the search to one book when non-empty.
func (l *Library) Query(ctx context.Context, text string, topK int, bookID string) (*core.QueryResult, error) {
	return l.engine.Query(ctx, text, topK, bookID)
}

// Ask answers the question with generated prose grounded in the
// top-ranked passages.
func (l *Library) Ask(ctx context.Context, question string, topK int, bookID string) (*core.Answer, error) {
	return l.engine.Ask(ctx, question, topK, bookID)
}

// Summarize produces a summary of the book's opening pages.
func (l *Library) Summarize(ctx context.Context, bookID string, maxPages int) (*core.Summary, error) {
	return l.engine.Summarize(ctx, bookID, maxPages)
}

// Stats reports index-wide counts.
func (l *Library) Stats(ctx context.Context) (*core.IndexStats, error) {
	return l.engine.Stats(ctx)
}

// Books lists indexed books.
func (l *Library) Books(ctx context.Context) ([]*core.BookInfo, error) {
	return l.engine.Books(ctx)
}

// GetPageImage returns the stored preview for one physical page.
func (l *Library) GetPageImage(bookID string, pageNumber int) ([]byte, error) {
	return l.images.Get(bookID, pageNumber)
}

// PageImages exposes the preview store for callers that render pages.
func (l *Library) PageImages() *extract.ImageStore {
	return l.images
}

// Index exposes the vector index for maintenance tools.
func (l *Library) Index() storage.VectorIndex {
	return l.index
}

// Embedder exposes the embedding service for maintenance tools.
func (l *Library) Embedder() ai.Embedder {
	return l.provider.Embedder()
}

// Close releases every component.
func (l *Library) Close() error {
	if err := l.engine.Close(); err != nil {
		l.logger.Error("error closing engine", "err", err)
	}
	if err := l.provider.Close(); err != nil {
		l.logger.Error("error closing AI provider", "err", err)
	}
	if err := l.store.Close(); err != nil {
		l.logger.Error("error closing query cache", "err", err)
	}
	if err := l.index.Close(); err != nil {
		l.logger.Error("error closing vector index", "err", err)
		return err
	}
	if err := l.backend.Close(); err != nil {
		l.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

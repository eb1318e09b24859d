package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookvision/bookvision/ai/mock"
	"github.com/bookvision/bookvision/cache"
	"github.com/bookvision/bookvision/chunk"
	"github.com/bookvision/bookvision/core"
	"github.com/bookvision/bookvision/extract"
	"github.com/bookvision/bookvision/storage"
	"github.com/bookvision/bookvision/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExtractor returns canned documents keyed by book id.
type stubExtractor struct {
	docs map[string]*core.Document
	err  error
}

func (s *stubExtractor) Extract(ctx context.Context, format extract.Format, data []byte, bookID, title, source string) (*core.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	doc, ok := s.docs[bookID]
	if !ok {
		return nil, core.ErrExtractionFailed
	}
	return doc, nil
}

// axisEmbedder maps known phrases onto fixed axes so similarity is
// controlled exactly. Unknown text lands on a far axis.
type axisEmbedder struct {
	axes map[string]int
	err  error
}

func (a *axisEmbedder) vector(text string) []float32 {
	const dim = 8
	v := make([]float32, dim)
	if axis, ok := a.axes[text]; ok {
		v[axis%dim] = 1
	} else {
		v[dim-1] = 1
	}
	return v
}

func (a *axisEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.vector(text), nil
}

func (a *axisEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if a.err != nil {
		return nil, a.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = a.vector(t)
	}
	return out, nil
}

func newTestEngine(t *testing.T, extractor Extractor, embedder *mock.MockEmbedder, opts ...Option) (*Engine, storage.VectorIndex) {
	t.Helper()
	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})

	if embedder == nil {
		embedder = mock.NewMockEmbedder()
		embedder.Dimension = 8
	}
	engine, err := NewEngine(extractor, chunk.NewChunker(chunk.Settings{TargetSize: 200, MinSize: 20}), embedder, index, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine, index
}

func pageText(topic string) string {
	return fmt.Sprintf("This page talks at length about %s. It explains %s in enough detail to pass the chunk threshold.", topic, topic)
}

func TestIngestSkipsWhitespacePages(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"field-guide": {
			BookID: "field-guide",
			Title:  "Field Guide",
			Pages: []core.Page{
				{Number: 1, Text: pageText("alpine flowers")},
				{Number: 2, Text: "   \n\t  "},
				{Number: 3, Text: pageText("mountain birds")},
			},
		},
	}}
	engine, index := newTestEngine(t, extractor, nil)
	ctx := context.Background()

	summary, err := engine.Ingest(ctx, &IngestRequest{BookID: "field-guide", Title: "Field Guide", Format: extract.FormatPDF})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.PagesCount)
	assert.Equal(t, 2, summary.ChunksIndexed)

	chunks, err := index.BookChunks(ctx, "field-guide", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 3, chunks[1].PageNumber)
}

func TestIngestReplacesPreviousContent(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {
			BookID: "book",
			Pages:  []core.Page{{Number: 1, Text: pageText("first edition material")}},
		},
	}}
	engine, index := newTestEngine(t, extractor, nil)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	extractor.docs["book"] = &core.Document{
		BookID: "book",
		Pages:  []core.Page{{Number: 1, Text: pageText("second edition material")}},
	}
	_, err = engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	chunks, err := index.BookChunks(ctx, "book", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "second edition")
}

func TestIngestEmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {
			BookID: "book",
			Pages:  []core.Page{{Number: 1, Text: pageText("original content")}},
		},
	}}
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	engine, index := newTestEngine(t, extractor, embedder)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	extractor.docs["book"] = &core.Document{
		BookID: "book",
		Pages:  []core.Page{{Number: 1, Text: pageText("replacement content")}},
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}

	_, err = engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.ErrorIs(t, err, core.ErrEmbeddingFailed)

	chunks, err := index.BookChunks(ctx, "book", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "original content")
}

func TestIngestZeroChunksClearsBook(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {
			BookID: "book",
			Pages:  []core.Page{{Number: 1, Text: pageText("real content")}},
		},
	}}
	engine, index := newTestEngine(t, extractor, nil)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	extractor.docs["book"] = &core.Document{
		BookID: "book",
		Pages:  []core.Page{{Number: 1, Text: "  "}, {Number: 2, Text: "x"}},
	}
	summary, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PagesCount)
	assert.Zero(t, summary.ChunksIndexed)

	chunks, err := index.BookChunks(ctx, "book", 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestQueryRanksAndBandsResults(t *testing.T) {
	about := "Dolphins use echolocation to hunt."
	other := "Volcanoes erupt molten rock."
	embedder := &axisEmbedder{axes: map[string]int{
		"how do dolphins hunt?": 0,
		about:                   0,
		other:                   1,
	}}
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"nature": {
			BookID: "nature",
			Pages: []core.Page{
				{Number: 1, Text: about},
				{Number: 2, Text: other},
			},
		},
	}}

	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})
	engine, err := NewEngine(extractor, chunk.NewChunker(chunk.Settings{TargetSize: 200, MinSize: 5}), embedder, index)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	ctx := context.Background()

	_, err = engine.Ingest(ctx, &IngestRequest{BookID: "nature", Format: extract.FormatPDF})
	require.NoError(t, err)

	result, err := engine.Query(ctx, "how do dolphins hunt?", 2, "")
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.False(t, result.CacheHit)

	assert.Contains(t, result.Results[0].Chunk.Text, "Dolphins")
	assert.InDelta(t, 1.0, result.Results[0].Score, 1e-6)
	assert.Equal(t, core.ConfidenceHigh, result.Results[0].Confidence)

	assert.InDelta(t, 0.0, result.Results[1].Score, 1e-6)
	assert.Equal(t, core.ConfidenceLow, result.Results[1].Confidence)
}

func TestQueryBookFilter(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"alpha": {BookID: "alpha", Pages: []core.Page{{Number: 1, Text: pageText("shared subject")}}},
		"beta":  {BookID: "beta", Pages: []core.Page{{Number: 1, Text: pageText("shared subject")}}},
	}}
	engine, _ := newTestEngine(t, extractor, nil)
	ctx := context.Background()

	for _, book := range []string{"alpha", "beta"} {
		_, err := engine.Ingest(ctx, &IngestRequest{BookID: book, Format: extract.FormatPDF})
		require.NoError(t, err)
	}

	result, err := engine.Query(ctx, "shared subject", 10, "beta")
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)
	for _, r := range result.Results {
		assert.Equal(t, "beta", r.Chunk.BookID)
	}
}

func TestQueryValidation(t *testing.T) {
	engine, _ := newTestEngine(t, &stubExtractor{}, nil)
	ctx := context.Background()

	_, err := engine.Query(ctx, "   ", 5, "")
	assert.ErrorIs(t, err, core.ErrEmptyQuery)

	_, err = engine.Query(ctx, "fine", 5, "bad:book")
	assert.ErrorIs(t, err, core.ErrInvalidBookID)
}

func TestQueryEmbeddingFailureFailsQuery(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {BookID: "book", Pages: []core.Page{{Number: 1, Text: pageText("anything")}}},
	}}
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	engine, _ := newTestEngine(t, extractor, embedder)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("service down")
	}
	_, err = engine.Query(ctx, "a question", 5, "")
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)
}

func TestQueryCacheHit(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {BookID: "book", Pages: []core.Page{{Number: 1, Text: pageText("cacheable topics")}}},
	}}
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	store := cache.NewMemoryStore(16, time.Minute)
	engine, _ := newTestEngine(t, extractor, embedder, WithCache(store))
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	first, err := engine.Query(ctx, "cacheable topics", 5, "")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	calls := embedder.CallCount()
	second, err := engine.Query(ctx, "Cacheable   Topics", 5, "")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, calls, embedder.CallCount(), "cache hit skips embedding")

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Chunk.ID, second.Results[i].Chunk.ID)
	}
}

// brokenCache errors on every operation.
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string) ([]*core.SearchResult, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Put(ctx context.Context, key string, results []*core.SearchResult, ttl time.Duration) error {
	return errors.New("cache down")
}

func (brokenCache) Close() error { return nil }

func TestQueryCacheFailureDoesNotAffectResults(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {BookID: "book", Pages: []core.Page{{Number: 1, Text: pageText("resilient retrieval")}}},
	}}
	engine, _ := newTestEngine(t, extractor, nil, WithCache(brokenCache{}))
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	result, err := engine.Query(ctx, "resilient retrieval", 5, "")
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.NotEmpty(t, result.Results)
}

func TestAskGroundsAnswerInPassages(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {BookID: "book", Pages: []core.Page{{Number: 1, Text: pageText("lighthouse keeping")}}},
	}}
	generator := mock.NewMockGenerator()
	engine, _ := newTestEngine(t, extractor, nil, WithGenerator(generator))
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	answer, err := engine.Ask(ctx, "  who keeps the lighthouse?  ", 5, "")
	require.NoError(t, err)
	assert.Equal(t, "who keeps the lighthouse?", answer.Question)
	assert.Contains(t, answer.Text, "who keeps the lighthouse?")
	assert.Contains(t, answer.Text, "from 1 passages")
	require.Len(t, answer.Results, 1)
	assert.Contains(t, answer.Results[0].Chunk.Text, "lighthouse keeping")
}

func TestAskRequiresGenerator(t *testing.T) {
	engine, _ := newTestEngine(t, &stubExtractor{}, nil)

	_, err := engine.Ask(context.Background(), "anything", 5, "")
	assert.ErrorIs(t, err, ErrGeneratorRequired)
}

func TestAskNoMatchingPassages(t *testing.T) {
	engine, _ := newTestEngine(t, &stubExtractor{}, nil, WithGenerator(mock.NewMockGenerator()))

	_, err := engine.Ask(context.Background(), "anything at all", 5, "")
	assert.ErrorIs(t, err, ErrNoPassages)
}

func TestAskGenerationFailure(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {BookID: "book", Pages: []core.Page{{Number: 1, Text: pageText("anything indexed")}}},
	}}
	generator := mock.NewMockGenerator()
	generator.AnswerFunc = func(ctx context.Context, question string, passages []*core.Chunk) (string, error) {
		return "", errors.New("generation down")
	}
	engine, _ := newTestEngine(t, extractor, nil, WithGenerator(generator))
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	_, err = engine.Ask(ctx, "a question", 5, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation down")
}

func TestSummarizeGeneratedAndFallback(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {
			BookID: "book",
			Title:  "The Book",
			Pages: []core.Page{
				{Number: 1, Text: pageText("whale migration")},
				{Number: 2, Text: pageText("whale songs")},
			},
		},
	}}
	generator := mock.NewMockGenerator()
	engine, _ := newTestEngine(t, extractor, nil, WithGenerator(generator))
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Title: "The Book", Format: extract.FormatPDF})
	require.NoError(t, err)

	summary, err := engine.Summarize(ctx, "book", 10)
	require.NoError(t, err)
	assert.Equal(t, core.SummaryGenerated, summary.Source)
	assert.Contains(t, summary.Text, "The Book")
	assert.Equal(t, 2, summary.PagesUsed)
	assert.Equal(t, 2, summary.ChunksUsed)

	generator.SummarizeFunc = func(ctx context.Context, title string, passages []*core.Chunk) (string, error) {
		return "", errors.New("generation down")
	}
	summary, err = engine.Summarize(ctx, "book", 10)
	require.NoError(t, err)
	assert.Equal(t, core.SummaryExtractive, summary.Source)
	assert.NotEmpty(t, summary.Text)
}

func TestSummarizeWithoutGenerator(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"book": {BookID: "book", Pages: []core.Page{{Number: 1, Text: pageText("quiet libraries")}}},
	}}
	engine, _ := newTestEngine(t, extractor, nil)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, &IngestRequest{BookID: "book", Format: extract.FormatPDF})
	require.NoError(t, err)

	summary, err := engine.Summarize(ctx, "book", 10)
	require.NoError(t, err)
	assert.Equal(t, core.SummaryExtractive, summary.Source)
	assert.NotEmpty(t, summary.Text)
}

func TestSummarizeUnknownBook(t *testing.T) {
	engine, _ := newTestEngine(t, &stubExtractor{}, nil)

	_, err := engine.Summarize(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, core.ErrBookNotFound)
}

func TestStatsAndBooks(t *testing.T) {
	extractor := &stubExtractor{docs: map[string]*core.Document{
		"alpha": {BookID: "alpha", Title: "Alpha", Pages: []core.Page{{Number: 1, Text: pageText("alpha content")}}},
		"beta":  {BookID: "beta", Title: "Beta", Pages: []core.Page{{Number: 1, Text: pageText("beta content")}}},
	}}
	engine, _ := newTestEngine(t, extractor, nil)
	ctx := context.Background()

	for _, book := range []string{"alpha", "beta"} {
		_, err := engine.Ingest(ctx, &IngestRequest{BookID: book, Format: extract.FormatPDF})
		require.NoError(t, err)
	}

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Len(t, stats.Books, 2)

	books, err := engine.Books(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "alpha", books[0].BookID)
}

// versionExtractor keys documents by the raw payload so one book can
// carry different content per request.
type versionExtractor struct {
	docs map[string]*core.Document
}

func (v *versionExtractor) Extract(ctx context.Context, format extract.Format, data []byte, bookID, title, source string) (*core.Document, error) {
	doc, ok := v.docs[string(data)]
	if !ok {
		return nil, core.ErrExtractionFailed
	}
	return doc, nil
}

// slowEmbedder returns one fixed unit vector for everything, with a delay
// on batch embedding to widen the window a replace stays in flight.
type slowEmbedder struct {
	delay time.Duration
}

func (s *slowEmbedder) vec() []float32 {
	v := make([]float32, 8)
	v[0] = 1
	return v
}

func (s *slowEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return s.vec(), nil
}

func (s *slowEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	time.Sleep(s.delay)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec()
	}
	return out, nil
}

func TestConcurrentSameBookIngestsSerialize(t *testing.T) {
	const editions = 4
	docs := make(map[string]*core.Document, editions)
	for i := 0; i < editions; i++ {
		pages := make([]core.Page, i+1)
		for p := range pages {
			pages[p] = core.Page{Number: p + 1, Text: pageText(fmt.Sprintf("edition %d part %d", i, p))}
		}
		docs[fmt.Sprintf("v%d", i)] = &core.Document{BookID: "book", Pages: pages}
	}
	engine, index := newTestEngine(t, &versionExtractor{docs: docs}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, editions)
	for i := 0; i < editions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Ingest(ctx, &IngestRequest{
				BookID: "book",
				Data:   []byte(fmt.Sprintf("v%d", i)),
				Format: extract.FormatPDF,
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "ingest of edition %d", i)
	}

	// the index must hold exactly one edition in full, never a mix
	chunks, err := index.BookChunks(ctx, "book", 0)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	winner := -1
	for i := 0; i < editions; i++ {
		if strings.Contains(chunks[0].Text, fmt.Sprintf("edition %d part", i)) {
			winner = i
			break
		}
	}
	require.GreaterOrEqual(t, winner, 0, "chunk text names no edition: %q", chunks[0].Text)
	assert.Len(t, chunks, winner+1)
	for _, c := range chunks {
		assert.Contains(t, c.Text, fmt.Sprintf("edition %d part", winner))
	}
}

func TestQueryConcurrentWithReplaceSeesOneEdition(t *testing.T) {
	docs := map[string]*core.Document{
		"v1": {BookID: "book", Pages: []core.Page{
			{Number: 1, Text: pageText("alpha edition lore")},
			{Number: 2, Text: pageText("alpha edition maps")},
		}},
		"v2": {BookID: "book", Pages: []core.Page{
			{Number: 1, Text: pageText("bravo edition lore")},
			{Number: 2, Text: pageText("bravo edition maps")},
			{Number: 3, Text: pageText("bravo edition notes")},
		}},
	}
	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})
	engine, err := NewEngine(
		&versionExtractor{docs: docs},
		chunk.NewChunker(chunk.Settings{TargetSize: 200, MinSize: 20}),
		&slowEmbedder{delay: 2 * time.Millisecond},
		index,
		WithBatchSize(1),
	)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	ctx := context.Background()

	_, err = engine.Ingest(ctx, &IngestRequest{BookID: "book", Data: []byte("v1"), Format: extract.FormatPDF})
	require.NoError(t, err)

	done := make(chan struct{})
	var ingestErr error
	go func() {
		defer close(done)
		_, ingestErr = engine.Ingest(ctx, &IngestRequest{BookID: "book", Data: []byte("v2"), Format: extract.FormatPDF})
	}()

	// every query snapshot must be entirely one edition
	checkHomogeneous := func() {
		result, qErr := engine.Query(ctx, "which edition is this?", 10, "book")
		require.NoError(t, qErr)
		require.NotEmpty(t, result.Results)
		var alpha, bravo int
		for _, r := range result.Results {
			if strings.Contains(r.Chunk.Text, "alpha edition") {
				alpha++
			} else {
				bravo++
			}
		}
		assert.True(t, alpha == 0 || bravo == 0,
			"query saw a mixed snapshot: %d alpha, %d bravo", alpha, bravo)
	}

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			checkHomogeneous()
		}
	}
	require.NoError(t, ingestErr)

	final, err := engine.Query(ctx, "which edition is this?", 10, "book")
	require.NoError(t, err)
	require.Len(t, final.Results, 3)
	for _, r := range final.Results {
		assert.Contains(t, r.Chunk.Text, "bravo edition")
	}
}

func TestEngineClosed(t *testing.T) {
	engine, _ := newTestEngine(t, &stubExtractor{}, nil)
	require.NoError(t, engine.Close())

	_, err := engine.Query(context.Background(), "anything", 5, "")
	assert.ErrorIs(t, err, ErrEngineClosed)

	_, err = engine.Stats(context.Background())
	assert.ErrorIs(t, err, ErrEngineClosed)
}

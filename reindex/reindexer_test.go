package reindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bookvision/bookvision/ai/mock"
	"github.com/bookvision/bookvision/core"
	"github.com/bookvision/bookvision/storage"
	"github.com/bookvision/bookvision/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIndex(t *testing.T) storage.VectorIndex {
	t.Helper()
	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})

	ctx := context.Background()
	for _, book := range []string{"alpha", "beta"} {
		var chunks []*core.Chunk
		var vectors [][]float32
		for i := 0; i < 3; i++ {
			text := fmt.Sprintf("%s passage %d", book, i)
			chunks = append(chunks, &core.Chunk{
				ID:            core.ChunkID(book, 1, i, text),
				BookID:        book,
				PageNumber:    1,
				SequenceIndex: i,
				Text:          text,
			})
			vectors = append(vectors, []float32{1, 0, 0, 0})
		}
		require.NoError(t, index.AddBatch(ctx, chunks, vectors))
	}
	return index
}

func TestReindexerReplacesAllVectors(t *testing.T) {
	index := seedIndex(t)
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 4
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0, 1, 0, 0}
		}
		return out, nil
	}

	var buf bytes.Buffer
	r := NewReindexer(index, embedder, &Config{
		BatchSize:      2,
		ReportInterval: 2,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}, &buf)

	require.NoError(t, r.Run(ctx))
	assert.Contains(t, buf.String(), "Reindexing complete")

	// new vectors all point at the second axis
	results, err := index.Search(ctx, []float32{0, 1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 6)
	for _, res := range results {
		assert.InDelta(t, 1.0, res.Score, 1e-6)
	}

	// chunk content untouched
	chunks, err := index.BookChunks(ctx, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "alpha passage 0", chunks[0].Text)
}

func TestReindexerRetriesTransientFailures(t *testing.T) {
	index := seedIndex(t)
	ctx := context.Background()

	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0, 0, 1, 0}
		}
		return out, nil
	}

	var buf bytes.Buffer
	r := NewReindexer(index, embedder, &Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}, &buf)

	require.NoError(t, r.Run(ctx))
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestReindexerPersistentFailure(t *testing.T) {
	index := seedIndex(t)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("permanently down")
	}

	var buf bytes.Buffer
	r := NewReindexer(index, embedder, &Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}, &buf)

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)
}

func TestReindexerEmptyIndex(t *testing.T) {
	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		backend.Close()
	})

	var buf bytes.Buffer
	r := NewReindexer(index, mock.NewMockEmbedder(), nil, &buf)

	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, buf.String(), "No books found")
}

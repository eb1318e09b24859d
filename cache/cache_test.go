package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bookvision/bookvision/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []*core.SearchResult {
	return []*core.SearchResult{
		{
			Chunk: &core.Chunk{
				ID:         42,
				BookID:     "alpha",
				PageNumber: 3,
				Text:       "cached passage",
			},
			Score:      0.82,
			Confidence: core.ConfidenceHigh,
		},
	}
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"What Is Photosynthesis?", "what is photosynthesis?"},
		{"  spaced \t out\nquery  ", "spaced out query"},
		{"already normal", "already normal"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeQuery(tt.input))
	}
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("What is photosynthesis?", 5, "")
	b := Key("what  is photosynthesis?", 5, "")
	assert.Equal(t, a, b, "normalized phrasings share a key")

	assert.NotEqual(t, a, Key("What is photosynthesis?", 10, ""))
	assert.NotEqual(t, a, Key("What is photosynthesis?", 5, "alpha"))
	assert.Contains(t, a, "bookvision:query:")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	key := Key("roundtrip", 5, "")

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, key, sampleResults(), time.Minute))

	results, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "cached passage", results[0].Chunk.Text)
	assert.Equal(t, core.ConfidenceHigh, results[0].Confidence)
	assert.InDelta(t, 0.82, float64(results[0].Score), 1e-6)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	key := Key("expiring", 5, "")

	require.NoError(t, store.Put(ctx, key, sampleResults(), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreCorruptEntryIsMiss(t *testing.T) {
	store, mr := newRedisStore(t)
	key := Key("corrupt", 5, "")
	require.NoError(t, mr.Set(key, "not json"))

	_, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(8, time.Minute)
	defer store.Close()
	ctx := context.Background()
	key := Key("memory", 5, "")

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, key, sampleResults(), time.Minute))

	results, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cached passage", results[0].Chunk.Text)
}

func TestMemoryStorePerEntryTTL(t *testing.T) {
	store := NewMemoryStore(8, time.Minute)
	defer store.Close()
	ctx := context.Background()

	short := Key("short-lived", 5, "")
	long := Key("long-lived", 5, "")
	require.NoError(t, store.Put(ctx, short, sampleResults(), 10*time.Millisecond))
	require.NoError(t, store.Put(ctx, long, sampleResults(), time.Minute))

	time.Sleep(25 * time.Millisecond)

	_, ok, err := store.Get(ctx, short)
	require.NoError(t, err)
	assert.False(t, ok, "entry outlived its requested TTL")

	_, ok, err = store.Get(ctx, long)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreClosed(t *testing.T) {
	store := NewMemoryStore(8, time.Minute)
	require.NoError(t, store.Close())

	_, _, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Put(context.Background(), "k", nil, time.Minute), ErrStoreClosed)
}

// failingStore simulates an unreachable backend.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]*core.SearchResult, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingStore) Put(ctx context.Context, key string, results []*core.SearchResult, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingStore) Close() error { return nil }

func TestTieredFallsBackOnPrimaryFailure(t *testing.T) {
	fallback := NewMemoryStore(8, time.Minute)
	store := NewTiered(failingStore{}, fallback)
	defer store.Close()
	ctx := context.Background()
	key := Key("tiered", 5, "")

	// primary errors never surface
	require.NoError(t, store.Put(ctx, key, sampleResults(), time.Minute))

	results, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cached passage", results[0].Chunk.Text)
}

func TestTieredPrefersPrimary(t *testing.T) {
	primary, _ := newRedisStore(t)
	fallback := NewMemoryStore(8, time.Minute)
	store := NewTiered(primary, fallback)
	ctx := context.Background()
	key := Key("prefers-primary", 5, "")

	require.NoError(t, store.Put(ctx, key, sampleResults(), time.Minute))

	// present in both tiers after a tiered put
	_, ok, err := primary.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = fallback.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTieredNilPrimary(t *testing.T) {
	store := NewTiered(nil, NewMemoryStore(8, time.Minute))
	defer store.Close()
	ctx := context.Background()
	key := Key("nil-primary", 5, "")

	require.NoError(t, store.Put(ctx, key, sampleResults(), time.Minute))

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

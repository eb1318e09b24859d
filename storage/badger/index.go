package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/bookvision/bookvision/core"
	"github.com/bookvision/bookvision/storage"
	"github.com/dgraph-io/badger/v4"
)

// Index implements storage.VectorIndex on top of BadgerDB. Every entry is
// stored under a per-book key carrying a global insertion sequence, so
// prefix scans give both full-index and single-book iteration, and the
// sequence provides the insertion-order tie-break. BadgerDB's MVCC
// transactions give searches a consistent snapshot: a batch add commits as
// one transaction and is either fully visible or not at all.
type Index struct {
	backend *Backend
	seq     *badger.Sequence
	logger  *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates a vector index over an open backend.
//
// Returns storage.VectorIndex interface to enforce abstraction.
func NewIndex(backend *Backend) (storage.VectorIndex, error) {
	seq, err := backend.GetSequence(entryIDSeq)
	if err != nil {
		return nil, err
	}
	return &Index{
		backend: backend,
		seq:     seq,
		logger:  slog.Default().With("component", "vector-index"),
	}, nil
}

// Add appends a single entry.
func (x *Index) Add(ctx context.Context, chunk *core.Chunk, vector []float32) error {
	return x.AddBatch(ctx, []*core.Chunk{chunk}, [][]float32{vector})
}

// AddBatch appends entries in one transaction. The whole batch becomes
// visible and durable atomically.
func (x *Index) AddBatch(ctx context.Context, chunks []*core.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return storage.ErrBatchMismatch
	}
	if len(chunks) == 0 {
		return nil
	}
	for i, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		if len(vectors[i]) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %d", core.ErrDimensionMismatch, chunk.ID)
		}
	}

	return x.backend.WithTx(func(tx *badger.Txn) error {
		if err := x.writeEntries(tx, chunks, vectors); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// writeEntries validates dimensions and writes entries inside tx.
// Must run in a write transaction; does not commit.
func (x *Index) writeEntries(tx *badger.Txn, chunks []*core.Chunk, vectors [][]float32) error {
	dim, err := x.ensureDimension(tx, len(vectors[0]))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i, chunk := range chunks {
		if len(vectors[i]) != dim {
			return fmt.Errorf("%w: index holds %d-dimensional vectors, got %d",
				core.ErrDimensionMismatch, dim, len(vectors[i]))
		}
		seq, err := x.nextSeq()
		if err != nil {
			return err
		}
		entry := core.IndexEntry{
			Seq:        seq,
			Chunk:      *chunk,
			Vector:     vectors[i],
			InsertedAt: now,
		}
		if err := tx.Set(makeEntryKey(chunk.BookID, seq), storage.MarshalIndexEntry(&entry)); err != nil {
			return err
		}
	}
	return nil
}

// nextSeq returns the next global insertion sequence value.
func (x *Index) nextSeq() (uint64, error) {
	seq, err := x.seq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if seq == 0 {
		seq, err = x.seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return seq, nil
}

// ensureDimension pins the index to the dimension of the first batch and
// rejects later mismatches. Scores are only comparable within one
// embedding space.
func (x *Index) ensureDimension(tx *badger.Txn, dim int) (int, error) {
	item, err := tx.Get([]byte(dimensionKey))
	if err == badger.ErrKeyNotFound {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(dim))
		if err := tx.Set([]byte(dimensionKey), buf); err != nil {
			return 0, err
		}
		return dim, nil
	}
	if err != nil {
		return 0, err
	}
	var stored int
	err = item.Value(func(val []byte) error {
		stored = int(binary.BigEndian.Uint64(val))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

// readDimension returns the pinned dimension, or 0 if the index is empty.
func (x *Index) readDimension(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(dimensionKey))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		dim = int(binary.BigEndian.Uint64(val))
		return nil
	})
	return dim, err
}

// scored pairs a decoded entry with its similarity for ranking.
type scored struct {
	chunk *core.Chunk
	score float32
	seq   uint64
}

// Search scans entries (restricted to one book when filtered), ranks by
// inner product, and returns the top K. Runs inside a single read
// transaction, so the result reflects one consistent snapshot.
func (x *Index) Search(ctx context.Context, vector []float32, topK int, filter *storage.SearchFilter) ([]*core.SearchResult, error) {
	if topK <= 0 {
		return []*core.SearchResult{}, nil
	}

	prefix := makeEntryScanPrefix()
	if filter != nil && filter.BookID != "" {
		prefix = makeBookPrefix(filter.BookID)
	}

	var matches []scored
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := x.readDimension(tx)
		if err != nil {
			return err
		}
		if dim == 0 {
			return nil // empty index
		}
		if len(vector) != dim {
			return fmt.Errorf("%w: index holds %d-dimensional vectors, query has %d",
				core.ErrDimensionMismatch, dim, len(vector))
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry *core.IndexEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalIndexEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			chunk := entry.Chunk
			matches = append(matches, scored{
				chunk: &chunk,
				score: dotProduct(vector, entry.Vector),
				seq:   entry.Seq,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Rank by similarity descending; equal scores preserve insertion order
	slices.SortFunc(matches, func(a, b scored) int {
		if a.score > b.score {
			return -1
		}
		if a.score < b.score {
			return 1
		}
		if a.seq < b.seq {
			return -1
		}
		if a.seq > b.seq {
			return 1
		}
		return 0
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	results := make([]*core.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = &core.SearchResult{Chunk: m.chunk, Score: m.score}
	}
	return results, nil
}

// RemoveBook deletes every entry of the book in one transaction.
func (x *Index) RemoveBook(ctx context.Context, bookID string) (int, error) {
	if err := core.ValidateBookID(bookID); err != nil {
		return 0, err
	}
	removed := 0
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		n, err := x.deleteBookEntries(tx, bookID)
		if err != nil {
			return err
		}
		removed = n
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ReplaceBook removes the book's existing entries and writes the new chunk
// set in a single transaction, so no search observes a half-replaced book.
func (x *Index) ReplaceBook(ctx context.Context, bookID string, chunks []*core.Chunk, vectors [][]float32) error {
	if err := core.ValidateBookID(bookID); err != nil {
		return err
	}
	if len(chunks) != len(vectors) {
		return storage.ErrBatchMismatch
	}
	for i, chunk := range chunks {
		if chunk.BookID != bookID {
			return fmt.Errorf("%w: chunk %d belongs to book %q", core.ErrInvalidChunk, chunk.ID, chunk.BookID)
		}
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		if len(vectors[i]) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %d", core.ErrDimensionMismatch, chunk.ID)
		}
	}

	return x.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := x.deleteBookEntries(tx, bookID); err != nil {
			return err
		}
		if len(chunks) > 0 {
			if err := x.writeEntries(tx, chunks, vectors); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// deleteBookEntries deletes the book's entries inside tx; does not commit.
func (x *Index) deleteBookEntries(tx *badger.Txn, bookID string) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeBookPrefix(bookID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// BookChunks returns the book's chunks ordered by page then sequence
// index, optionally limited to the first maxPages distinct pages.
func (x *Index) BookChunks(ctx context.Context, bookID string, maxPages int) ([]*core.Chunk, error) {
	if err := core.ValidateBookID(bookID); err != nil {
		return nil, err
	}

	var chunks []*core.Chunk
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeBookPrefix(bookID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entry *core.IndexEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalIndexEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			chunk := entry.Chunk
			chunks = append(chunks, &chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].PageNumber != chunks[j].PageNumber {
			return chunks[i].PageNumber < chunks[j].PageNumber
		}
		return chunks[i].SequenceIndex < chunks[j].SequenceIndex
	})

	if maxPages > 0 {
		distinct := 0
		lastPage := 0
		for i, chunk := range chunks {
			if chunk.PageNumber != lastPage {
				distinct++
				lastPage = chunk.PageNumber
				if distinct > maxPages {
					chunks = chunks[:i]
					break
				}
			}
		}
	}
	return chunks, nil
}

// Books lists all indexed books with chunk counts and page coverage.
func (x *Index) Books(ctx context.Context) ([]*core.BookInfo, error) {
	infos := make(map[string]*core.BookInfo)
	pages := make(map[string]map[int]struct{})

	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntryScanPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entry *core.IndexEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalIndexEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			info, ok := infos[entry.Chunk.BookID]
			if !ok {
				info = &core.BookInfo{
					BookID: entry.Chunk.BookID,
					Title:  entry.Chunk.BookTitle,
				}
				infos[entry.Chunk.BookID] = info
				pages[entry.Chunk.BookID] = make(map[int]struct{})
			}
			info.ChunkCount++
			pages[entry.Chunk.BookID][entry.Chunk.PageNumber] = struct{}{}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	result := make([]*core.BookInfo, 0, len(infos))
	for bookID, info := range infos {
		for page := range pages[bookID] {
			info.Pages = append(info.Pages, page)
		}
		slices.Sort(info.Pages)
		result = append(result, info)
	}
	slices.SortFunc(result, func(a, b *core.BookInfo) int {
		if a.BookID < b.BookID {
			return -1
		}
		if a.BookID > b.BookID {
			return 1
		}
		return 0
	})
	return result, nil
}

// Stats reports total and per-book entry counts from a keys-only scan.
func (x *Index) Stats(ctx context.Context) (*core.IndexStats, error) {
	stats := &core.IndexStats{Books: make(map[string]int)}

	err := x.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := x.readDimension(tx)
		if err != nil {
			return err
		}
		stats.Dimension = dim

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntryScanPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			stats.TotalChunks++
			stats.Books[bookIDFromKey(iter.Item().Key())]++
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Sync delegates to the backend.
func (x *Index) Sync(ctx context.Context) error {
	return x.backend.Sync()
}

// Close releases the insertion sequence. The backend is closed by its
// owner.
func (x *Index) Close() error {
	return x.seq.Release()
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

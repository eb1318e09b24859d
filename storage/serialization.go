// Copyright 2026 BookVision Authors
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


package storage

import (
	"time"

	"github.com/bookvision/bookvision/core"
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// ChunkMUS serializes core.Chunk in MUS format.
var ChunkMUS = chunkSer{}

// IndexEntryMUS serializes core.IndexEntry in MUS format.
// Timestamps are stored as Unix microseconds.
var IndexEntryMUS = indexEntrySer{}

var (
	_ mus.Serializer[core.Chunk]      = ChunkMUS
	_ mus.Serializer[core.IndexEntry] = IndexEntryMUS
)

type chunkSer struct{}

func (chunkSer) Marshal(c core.Chunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.ID), bs)
	n += ord.String.Marshal(c.BookID, bs[n:])
	n += ord.String.Marshal(c.BookTitle, bs[n:])
	n += ord.String.Marshal(c.Source, bs[n:])
	n += varint.Int.Marshal(c.PageNumber, bs[n:])
	n += varint.Int.Marshal(c.SequenceIndex, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	return
}

func (chunkSer) Unmarshal(bs []byte) (c core.Chunk, n int, err error) {
	var (
		id uint64
		n1 int
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	c.ID = core.ID(id)
	c.BookID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.BookTitle, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.SequenceIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (chunkSer) Size(c core.Chunk) (size int) {
	size = varint.Uint64.Size(uint64(c.ID))
	size += ord.String.Size(c.BookID)
	size += ord.String.Size(c.BookTitle)
	size += ord.String.Size(c.Source)
	size += varint.Int.Size(c.PageNumber)
	size += varint.Int.Size(c.SequenceIndex)
	size += ord.String.Size(c.Text)
	return
}

func (chunkSer) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = varint.Uint64.Skip(bs)
	if err != nil {
		return
	}
	for range 3 {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	for range 2 {
		n1, err = varint.Int.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	return
}

type indexEntrySer struct{}

func (indexEntrySer) Marshal(e core.IndexEntry, bs []byte) (n int) {
	n = varint.Uint64.Marshal(e.Seq, bs)
	n += ChunkMUS.Marshal(e.Chunk, bs[n:])
	n += varint.Int.Marshal(len(e.Vector), bs[n:])
	for _, v := range e.Vector {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	n += varint.Int64.Marshal(e.InsertedAt.UnixMicro(), bs[n:])
	return
}

func (indexEntrySer) Unmarshal(bs []byte) (e core.IndexEntry, n int, err error) {
	var n1 int
	e.Seq, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	e.Chunk, n1, err = ChunkMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var dim int
	dim, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if dim < 0 {
		err = ErrCorruptEntry
		return
	}
	e.Vector = make([]float32, dim)
	for i := range dim {
		e.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.InsertedAt = time.UnixMicro(micros).UTC()
	return
}

func (indexEntrySer) Size(e core.IndexEntry) (size int) {
	size = varint.Uint64.Size(e.Seq)
	size += ChunkMUS.Size(e.Chunk)
	size += varint.Int.Size(len(e.Vector))
	for _, v := range e.Vector {
		size += raw.Float32.Size(v)
	}
	size += varint.Int64.Size(e.InsertedAt.UnixMicro())
	return
}

func (indexEntrySer) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = varint.Uint64.Skip(bs)
	if err != nil {
		return
	}
	n1, err = ChunkMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var dim int
	dim, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for range dim {
		n1, err = raw.Float32.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = varint.Int64.Skip(bs[n:])
	n += n1
	return
}

// MarshalIndexEntry serializes an IndexEntry to bytes.
func MarshalIndexEntry(entry *core.IndexEntry) []byte {
	buf := make([]byte, IndexEntryMUS.Size(*entry))
	IndexEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalIndexEntry deserializes an IndexEntry from bytes.
func UnmarshalIndexEntry(data []byte) (*core.IndexEntry, error) {
	entry, _, err := IndexEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

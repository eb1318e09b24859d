package badger

import "encoding/binary"

// Key prefixes for different data types
const (
	entryPrefix  = "ent"
	entryIDSeq   = "entseq"
	dimensionKey = "meta:dim"
)

// makeEntryKey generates a key for an index entry.
// Format: ent:<bookID>:<8-byte big-endian seq>. BookIDs never contain ':'
// (enforced by core.ValidateBookID), so per-book prefix scans are exact,
// and the big-endian sequence keeps iteration in insertion order.
func makeEntryKey(bookID string, seq uint64) []byte {
	prefix := entryPrefix + ":" + bookID + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeBookPrefix generates the key prefix covering all entries of one book.
func makeBookPrefix(bookID string) []byte {
	return []byte(entryPrefix + ":" + bookID + ":")
}

// makeEntryScanPrefix generates the key prefix covering all entries.
func makeEntryScanPrefix() []byte {
	return []byte(entryPrefix + ":")
}

// bookIDFromKey recovers the book ID from an entry key.
// The sequence is a fixed 8-byte suffix, so the book ID spans the bytes
// between the prefix and the final separator.
func bookIDFromKey(key []byte) string {
	start := len(entryPrefix) + 1
	end := len(key) - 9 // ':' plus 8 sequence bytes
	if end <= start {
		return ""
	}
	return string(key[start:end])
}

package cache

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

const keyPrefix = "bookvision:query:"

// NormalizeQuery lowercases the query and collapses internal whitespace so
// trivially different phrasings share a cache entry.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Key derives a deterministic cache key from the normalized query and the
// search parameters. Different topK values or book filters never collide.
func Key(query string, topK int, bookID string) string {
	material := fmt.Sprintf("%s|%d|%s", NormalizeQuery(query), topK, bookID)

	h, err := blake2b.New(16, nil)
	if err != nil {
		// only reachable with an invalid digest size
		panic(err)
	}
	h.Write([]byte(material))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

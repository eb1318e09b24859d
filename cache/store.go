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


// Package cache stores recent query results under a deterministic key so
// repeated questions skip the embedding and search stages. The cache is an
// accelerator only: a miss, an expired entry, or an unreachable backend
// must never change what a query returns, only how fast.
package cache

import (
	"context"
	"time"

	"github.com/bookvision/bookvision/core"
)

// DefaultTTL is how long cached query results stay valid.
const DefaultTTL = 15 * time.Minute

// Store caches ranked search results by query key.
type Store interface {
	// Get returns the cached results for the key. The second return
	// value reports whether a valid entry was found.
	Get(ctx context.Context, key string) ([]*core.SearchResult, bool, error)

	// Put stores results under the key for the given TTL.
	Put(ctx context.Context, key string, results []*core.SearchResult, ttl time.Duration) error

	// Close releases resources held by the store.
	Close() error
}

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


package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookvision/bookvision/core"
)

// Tiered layers a shared primary store (Redis) over an in-process
// fallback. Primary failures are logged and absorbed: callers see a cache
// miss, never an error, because caching must not affect query outcomes.
type Tiered struct {
	primary  Store
	fallback Store
	logger   *slog.Logger
}

var _ Store = (*Tiered)(nil)

// NewTiered combines a primary and a fallback store. primary may be nil,
// in which case only the fallback is used.
func NewTiered(primary, fallback Store) *Tiered {
	return &Tiered{
		primary:  primary,
		fallback: fallback,
		logger:   slog.Default().With("component", "tiered-cache"),
	}
}

// Get consults the primary first, then the fallback. Errors from either
// tier degrade to a miss.
func (t *Tiered) Get(ctx context.Context, key string) ([]*core.SearchResult, bool, error) {
	if t.primary != nil {
		results, ok, err := t.primary.Get(ctx, key)
		if err != nil {
			t.logger.Warn("primary cache unavailable, falling back", "error", err)
		} else if ok {
			return results, true, nil
		}
	}
	if t.fallback != nil {
		results, ok, err := t.fallback.Get(ctx, key)
		if err != nil {
			t.logger.Warn("fallback cache failed", "error", err)
			return nil, false, nil
		}
		return results, ok, nil
	}
	return nil, false, nil
}

// Put writes to both tiers, absorbing failures.
func (t *Tiered) Put(ctx context.Context, key string, results []*core.SearchResult, ttl time.Duration) error {
	if t.primary != nil {
		if err := t.primary.Put(ctx, key, results, ttl); err != nil {
			t.logger.Warn("primary cache write failed", "error", err)
		}
	}
	if t.fallback != nil {
		if err := t.fallback.Put(ctx, key, results, ttl); err != nil {
			t.logger.Warn("fallback cache write failed", "error", err)
		}
	}
	return nil
}

// Close closes both tiers, returning the first error.
func (t *Tiered) Close() error {
	var first error
	if t.primary != nil {
		if err := t.primary.Close(); err != nil {
			first = err
		}
	}
	if t.fallback != nil {
		if err := t.fallback.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

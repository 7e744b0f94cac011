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

// Package blob is a storage.Backend over an S3-compatible object store
// (via github.com/minio/minio-go/v7), one object per Entry keyed by
// "<treeID>/<entryID>.json". It suits archival or cross-region replicated
// trees where entries are written once and read relatively rarely; every
// traversal method pays the cost of listing and fetching a tree's objects
// (fetched concurrently via golang.org/x/sync/errgroup, bounded by
// graphFetchConcurrency) to rebuild a storage.Graph; callers with hot
// traversal paths should layer storage/redistips (for tips) or their own
// cache in front of it.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/metrics"
	"github.com/arcuru/eidetica/storage"
)

// graphFetchConcurrency bounds how many objects graphFor fetches at once;
// a tree can have thousands of entries and this backend has no resident
// cache, so an unbounded fan-out would open one connection per object.
const graphFetchConcurrency = 16

// Backend is a storage.Backend over a single bucket. The zero value is not
// usable; construct with New.
type Backend struct {
	client *minio.Client
	bucket string
}

// Config names the S3-compatible endpoint and bucket this Backend stores
// entries in.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
}

// New connects to cfg.Endpoint and ensures cfg.Bucket exists, returning a
// Backend over it.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: connecting to %s: %w", cfg.Endpoint, err)
	}
	b := &Backend{client: client, bucket: cfg.Bucket}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blob: checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("blob: creating bucket %s: %w", cfg.Bucket, err)
		}
	}
	return b, nil
}

func objectKey(treeID, id entry.ID) string {
	return fmt.Sprintf("%s/%s.json", treeID, id)
}

func (b *Backend) withRetry(ctx context.Context, op string, f func() error) error {
	start := time.Now()
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	err := backoff.Retry(func() error {
		return f()
	}, backoff.WithContext(bo, ctx))
	metrics.BackendOpDuration.WithLabelValues("blob", op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendOpErrorsTotal.WithLabelValues("blob", op).Inc()
	}
	return err
}

func treeOf(e *entry.Entry) (entry.ID, error) {
	if e.IsRoot() {
		return e.ID()
	}
	if !e.Tree.Root.Valid() {
		return "", fmt.Errorf("blob: non-root entry missing tree.root: %w", entry.ErrInvalidIDFormat)
	}
	return e.Tree.Root, nil
}

// Put implements storage.Backend. Verification status is carried as object
// user-metadata rather than in the body, so Get can recover it without a
// second round trip.
func (b *Backend) Put(ctx context.Context, status storage.VerificationStatus, e *entry.Entry) error {
	if e == nil {
		return fmt.Errorf("blob: put nil entry: %w", storage.ErrCorruptedEntry)
	}
	if err := entry.Validate(e); err != nil {
		return fmt.Errorf("blob: %w: %w", storage.ErrCorruptedEntry, err)
	}
	id, err := e.ID()
	if err != nil {
		return fmt.Errorf("blob: computing id: %w", err)
	}
	treeID, err := treeOf(e)
	if err != nil {
		return err
	}

	key := objectKey(treeID, id)
	if info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err == nil {
		// Idempotent re-put: the object at this content-addressed key is
		// already this exact entry. Only a status upgrade (Unverified ->
		// Verified) needs rewriting it, since minio-go has no
		// partial-metadata update.
		existingStatus := storage.Unverified
		if info.UserMetadata["Status"] == "verified" {
			existingStatus = storage.Verified
		}
		if status <= existingStatus {
			return nil
		}
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("blob: encoding %s: %w", id, err)
	}
	return b.withRetry(ctx, "Put", func() error {
		_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType:  "application/json",
			UserMetadata: map[string]string{"status": status.String()},
		})
		if err != nil {
			return fmt.Errorf("blob: put %s: %w", id, err)
		}
		return nil
	})
}

// Get implements storage.Backend. Object keys are "<treeID>/<id>.json", and
// a bare id doesn't carry its tree, so Get falls back to a bucket-wide scan
// matching on the id suffix. Callers on a hot Get path should prefer
// tracking treeID themselves (every traversal method already requires it)
// and reading the object directly instead of depending on this fallback.
func (b *Backend) Get(ctx context.Context, id entry.ID) (*entry.Entry, storage.VerificationStatus, error) {
	var found *entry.Entry
	var status storage.VerificationStatus
	err := b.withRetry(ctx, "Get", func() error {
		for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Recursive: true}) {
			if obj.Err != nil {
				return obj.Err
			}
			if obj.Key != "" && len(obj.Key) > len(id)+5 && obj.Key[len(obj.Key)-len(id)-5:] == string(id)+".json" {
				o, err := b.client.GetObject(ctx, b.bucket, obj.Key, minio.GetObjectOptions{})
				if err != nil {
					return err
				}
				defer o.Close()
				data, err := io.ReadAll(o)
				if err != nil {
					return err
				}
				var e entry.Entry
				if err := json.Unmarshal(data, &e); err != nil {
					return fmt.Errorf("blob: decoding %s: %w", id, storage.ErrCorruptedEntry)
				}
				found = &e
				info, _ := b.client.StatObject(ctx, b.bucket, obj.Key, minio.StatObjectOptions{})
				if info.UserMetadata["Status"] == "verified" {
					status = storage.Verified
				}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("blob: get %s: %w", id, err)
	}
	if found == nil {
		return nil, 0, fmt.Errorf("blob: %s: %w", id, storage.ErrNotFound)
	}
	return found, status, nil
}

// graphFor lists every object under treeID's prefix and loads it into a
// fresh storage.Graph; blob has no incremental traversal cache, trading
// per-call list-and-fetch cost for never holding a tree's full entry set
// resident between calls.
func (b *Backend) graphFor(ctx context.Context, treeID entry.ID) (*storage.Graph, error) {
	var keys []string
	err := b.withRetry(ctx, "graphFor.list", func() error {
		keys = keys[:0]
		prefix := string(treeID) + "/"
		for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
			if obj.Err != nil {
				return obj.Err
			}
			keys = append(keys, obj.Key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blob: listing tree %s: %w", treeID, err)
	}

	mu := make(chan struct{}, 1)
	entries := make(map[entry.ID]*entry.Entry, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(graphFetchConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return b.withRetry(gctx, "graphFor.fetch", func() error {
				o, err := b.client.GetObject(gctx, b.bucket, key, minio.GetObjectOptions{})
				if err != nil {
					return err
				}
				data, err := io.ReadAll(o)
				o.Close()
				if err != nil {
					return err
				}
				var e entry.Entry
				if err := json.Unmarshal(data, &e); err != nil {
					return fmt.Errorf("blob: decoding %s: %w", key, storage.ErrCorruptedEntry)
				}
				id, err := e.ID()
				if err != nil {
					return err
				}
				mu <- struct{}{}
				entries[id] = &e
				<-mu
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("blob: loading tree %s: %w", treeID, err)
	}
	return storage.NewGraph(entries), nil
}

// GetTips implements storage.Backend.
func (b *Backend) GetTips(ctx context.Context, treeID entry.ID) ([]entry.ID, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.Tips(storage.MainTree), nil
}

// GetSubtreeTips implements storage.Backend.
func (b *Backend) GetSubtreeTips(ctx context.Context, treeID entry.ID, subtree string) ([]entry.ID, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.Tips(subtree), nil
}

// GetSubtreeTipsUpTo implements storage.Backend.
func (b *Backend) GetSubtreeTipsUpTo(ctx context.Context, treeID entry.ID, subtree string, frontier []entry.ID) ([]entry.ID, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.TipsUpTo(frontier, subtree), nil
}

// AncestorsOf implements storage.Backend.
func (b *Backend) AncestorsOf(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) ([]entry.ID, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.Ancestors(ids, subtree), nil
}

// PathFromTo implements storage.Backend.
func (b *Backend) PathFromTo(ctx context.Context, treeID entry.ID, lower, upper []entry.ID, subtree string) ([]*entry.Entry, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return nil, err
	}
	return g.PathFromTo(lower, upper, subtree), nil
}

// MergeBase implements storage.Backend.
func (b *Backend) MergeBase(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) (entry.ID, bool, error) {
	g, err := b.graphFor(ctx, treeID)
	if err != nil {
		return "", false, err
	}
	id, ok := g.MergeBase(ids, subtree)
	return id, ok, nil
}

var _ storage.Backend = (*Backend)(nil)

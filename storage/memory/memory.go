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

// Package memory is the reference, authoritative in-memory implementation
// of storage.Backend (spec §4.2). Every other backend in this module is
// validated against it.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/storage"
	"github.com/golang/glog"
)

type stored struct {
	entry  *entry.Entry
	status storage.VerificationStatus
}

// Backend is a thread-safe, process-local storage.Backend. The zero value is
// not usable; construct with New.
type Backend struct {
	mu sync.RWMutex

	all map[entry.ID]*stored

	// byTree buckets every known entry ID by the tree it belongs to, so
	// Graph construction for a single tree doesn't have to scan all
	// entries in the backend.
	byTree map[entry.ID]map[entry.ID]bool

	// graphs caches a built Graph per tree, invalidated whenever Put adds a
	// new entry to that tree. Rebuilding is O(entries in tree); for the
	// reference backend that is an acceptable trade for simplicity and
	// correctness over incremental maintenance.
	graphs map[entry.ID]*storage.Graph
}

// New returns an empty in-memory Backend.
func New() *Backend {
	return &Backend{
		all:    make(map[entry.ID]*stored),
		byTree: make(map[entry.ID]map[entry.ID]bool),
		graphs: make(map[entry.ID]*storage.Graph),
	}
}

func treeOf(e *entry.Entry) (entry.ID, error) {
	if e.IsRoot() {
		return e.ID()
	}
	if !e.Tree.Root.Valid() {
		return "", fmt.Errorf("memory: non-root entry missing tree.root: %w", entry.ErrInvalidIDFormat)
	}
	return e.Tree.Root, nil
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, status storage.VerificationStatus, e *entry.Entry) error {
	if e == nil {
		return fmt.Errorf("memory: put nil entry: %w", storage.ErrCorruptedEntry)
	}
	if err := entry.Validate(e); err != nil {
		return fmt.Errorf("memory: %w: %w", storage.ErrCorruptedEntry, err)
	}
	id, err := e.ID()
	if err != nil {
		return fmt.Errorf("memory: computing id: %w", err)
	}
	treeID, err := treeOf(e)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.all[id]; ok {
		// Idempotent re-put: keep the higher of the two verification
		// statuses, never downgrade a Verified entry.
		if status > existing.status {
			existing.status = status
		}
		return nil
	}

	b.all[id] = &stored{entry: e, status: status}
	if b.byTree[treeID] == nil {
		b.byTree[treeID] = make(map[entry.ID]bool)
	}
	b.byTree[treeID][id] = true
	delete(b.graphs, treeID) // invalidate cached traversal graph
	glog.V(2).Infof("memory: put %s into tree %s (status=%s)", id, treeID, status)
	return nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, id entry.ID) (*entry.Entry, storage.VerificationStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.all[id]
	if !ok {
		return nil, 0, fmt.Errorf("memory: %s: %w", id, storage.ErrNotFound)
	}
	return s.entry, s.status, nil
}

// graphFor returns the (possibly cached) traversal Graph for treeID. It takes
// b.mu itself (read lock for a cache hit, write lock to build), so callers
// must not hold b.mu.
func (b *Backend) graphFor(treeID entry.ID) (*storage.Graph, error) {
	b.mu.RLock()
	if g, ok := b.graphs[treeID]; ok {
		b.mu.RUnlock()
		return g, nil
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.graphs[treeID]; ok {
		return g, nil
	}
	ids := b.byTree[treeID]
	entries := make(map[entry.ID]*entry.Entry, len(ids))
	for id := range ids {
		entries[id] = b.all[id].entry
	}
	g := storage.NewGraph(entries)
	b.graphs[treeID] = g
	return g, nil
}

// GetTips implements storage.Backend.
func (b *Backend) GetTips(ctx context.Context, treeID entry.ID) ([]entry.ID, error) {
	g, err := b.graphFor(treeID)
	if err != nil {
		return nil, err
	}
	return g.Tips(storage.MainTree), nil
}

// GetSubtreeTips implements storage.Backend.
func (b *Backend) GetSubtreeTips(ctx context.Context, treeID entry.ID, subtree string) ([]entry.ID, error) {
	g, err := b.graphFor(treeID)
	if err != nil {
		return nil, err
	}
	return g.Tips(subtree), nil
}

// GetSubtreeTipsUpTo implements storage.Backend.
func (b *Backend) GetSubtreeTipsUpTo(ctx context.Context, treeID entry.ID, subtree string, frontier []entry.ID) ([]entry.ID, error) {
	g, err := b.graphFor(treeID)
	if err != nil {
		return nil, err
	}
	return g.TipsUpTo(frontier, subtree), nil
}

// AncestorsOf implements storage.Backend.
func (b *Backend) AncestorsOf(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) ([]entry.ID, error) {
	g, err := b.graphFor(treeID)
	if err != nil {
		return nil, err
	}
	return g.Ancestors(ids, subtree), nil
}

// PathFromTo implements storage.Backend.
func (b *Backend) PathFromTo(ctx context.Context, treeID entry.ID, lower, upper []entry.ID, subtree string) ([]*entry.Entry, error) {
	g, err := b.graphFor(treeID)
	if err != nil {
		return nil, err
	}
	return g.PathFromTo(lower, upper, subtree), nil
}

// MergeBase implements storage.Backend.
func (b *Backend) MergeBase(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) (entry.ID, bool, error) {
	g, err := b.graphFor(treeID)
	if err != nil {
		return "", false, err
	}
	id, ok := g.MergeBase(ids, subtree)
	return id, ok, nil
}

var _ storage.Backend = (*Backend)(nil)

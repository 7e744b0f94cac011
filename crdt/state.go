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

package crdt

import (
	"context"
	"fmt"
	"sync"

	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/storage"
	"github.com/golang/glog"
	"golang.org/x/sync/singleflight"
)

// cacheKey is (entry_id, subtree) exactly as spec §4.3.3 defines the state
// cache's key. No tree ID is included: an entry is content-addressed and
// therefore belongs to exactly one tree, so the pair alone is unambiguous.
type cacheKey struct {
	id      entry.ID
	subtree string
}

// StateEngine computes and memoizes state(entry_id, subtree) per spec
// §4.3.3. It is owned by a single Database (spec §9 "no global mutable
// state"); the cache never needs invalidation because entries are immutable
// and IDs are content hashes.
type StateEngine struct {
	backend storage.Backend

	mu    sync.RWMutex
	cache map[cacheKey]*Doc

	// group collapses concurrent computations of the same cache key into a
	// single call to compute, satisfying the "single-producer per cache
	// key" requirement of spec §5.
	group singleflight.Group
}

// NewStateEngine returns a StateEngine reading entries through backend.
func NewStateEngine(backend storage.Backend) *StateEngine {
	return &StateEngine{
		backend: backend,
		cache:   make(map[cacheKey]*Doc),
	}
}

// State returns the merged Doc state of subtree as of entry id, within
// treeID. id must participate in subtree. The returned Doc is a private
// copy; callers may mutate it freely.
func (s *StateEngine) State(ctx context.Context, treeID, id entry.ID, subtree string) (*Doc, error) {
	key := cacheKey{id: id, subtree: subtree}

	if d, ok := s.cacheGet(key); ok {
		return d.Clone(), nil
	}

	sfKey := fmt.Sprintf("%s\x00%s", id, subtree)
	v, err, _ := s.group.Do(sfKey, func() (interface{}, error) {
		if d, ok := s.cacheGet(key); ok {
			return d, nil
		}
		d, err := s.computeEntry(ctx, treeID, id, subtree)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[key] = d
		s.mu.Unlock()
		glog.V(3).Infof("crdt: cached state(%s, %s)", id, subtree)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Doc).Clone(), nil
}

// FrontierState returns the merged Doc state of subtree as observed at an
// arbitrary set of subtree tips, without requiring those tips to belong to a
// single real entry. This is what a Store reads at the subtree parents a
// Transaction snapshotted when it first acquired that Store (spec §4.6 step
// 2): those parents are a frontier, not necessarily one entry's recorded
// subtree_parents.
func (s *StateEngine) FrontierState(ctx context.Context, treeID entry.ID, tips []entry.ID, subtree string) (*Doc, error) {
	d, err := s.baseState(ctx, treeID, tips, subtree)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

func (s *StateEngine) cacheGet(key cacheKey) (*Doc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.cache[key]
	return d, ok
}

// computeEntry implements the computation steps of spec §4.3.3 for entry id;
// the cache lookup and cache store are done by State.
func (s *StateEngine) computeEntry(ctx context.Context, treeID, id entry.ID, subtree string) (*Doc, error) {
	e, _, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("crdt: state(%s, %s): %w", id, subtree, err)
	}

	base, err := s.baseState(ctx, treeID, e.SubtreeParents(subtree), subtree)
	if err != nil {
		return nil, err
	}

	if data, ok := e.SubtreeData(subtree); ok {
		delta, err := Deserialize(data)
		if err != nil {
			return nil, fmt.Errorf("crdt: state(%s, %s): decoding local payload: %w", id, subtree, err)
		}
		base = base.Merge(delta).(*Doc)
	}
	return base, nil
}

// baseState implements steps 3-5 of spec §4.3.3: the state contributed by a
// set of subtree-scoped parents ps, before any "current entry" payload is
// applied on top. It is also exactly the computation a Store performs when
// reading at a snapshotted frontier of subtree tips (FrontierState).
func (s *StateEngine) baseState(ctx context.Context, treeID entry.ID, ps []entry.ID, subtree string) (*Doc, error) {
	switch len(ps) {
	case 0:
		return NewDoc(), nil
	case 1:
		return s.State(ctx, treeID, ps[0], subtree)
	default:
		return s.mergeFromBase(ctx, treeID, ps, subtree)
	}
}

// mergeFromBase implements step 5 of §4.3.3: find the merge-base (or
// deterministic LCA-set fallback, already resolved by storage.Graph.MergeBase)
// of ps, compute its state, then fold in every entry on the path from that
// base to each parent, in (height asc, ID asc) order.
func (s *StateEngine) mergeFromBase(ctx context.Context, treeID entry.ID, ps []entry.ID, subtree string) (*Doc, error) {
	m, ok, err := s.backend.MergeBase(ctx, treeID, ps, subtree)
	if err != nil {
		return nil, err
	}

	var base *Doc
	var lower []entry.ID
	if ok {
		base, err = s.State(ctx, treeID, m, subtree)
		if err != nil {
			return nil, err
		}
		lower = []entry.ID{m}
	} else {
		base = NewDoc()
	}

	path, err := s.backend.PathFromTo(ctx, treeID, lower, ps, subtree)
	if err != nil {
		return nil, err
	}
	for _, pe := range path {
		data, has := pe.SubtreeData(subtree)
		if !has {
			continue
		}
		delta, err := Deserialize(data)
		if err != nil {
			id, _ := pe.ID()
			return nil, fmt.Errorf("crdt: decoding payload of %s in subtree %s: %w", id, subtree, err)
		}
		base = base.Merge(delta).(*Doc)
	}
	return base, nil
}

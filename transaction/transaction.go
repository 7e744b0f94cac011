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

// Package transaction implements Transaction, the unit of atomicity spec
// §4.6 describes: snapshot tips, acquire typed Stores, stage mutations
// against them, then validate and commit a single signed Entry.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/arcuru/eidetica/auth"
	"github.com/arcuru/eidetica/crdt"
	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/storage"
	"github.com/arcuru/eidetica/store"
	"github.com/golang/glog"
)

// Sentinel errors, matching spec §6's transaction error category.
var (
	ErrAlreadyCommitted = errors.New("transaction: already committed")
	ErrNoSigningKey     = errors.New("transaction: no signing key configured for a signed-mode tree")
)

// IsAlreadyCommitted reports whether err is or wraps ErrAlreadyCommitted.
func IsAlreadyCommitted(err error) bool { return errors.Is(err, ErrAlreadyCommitted) }

// acquiredSubtree tracks the per-transaction bookkeeping for one subtree
// touched through a Store (spec §4.6 step 2-3).
type acquiredSubtree struct {
	parents    []entry.ID
	staged     *crdt.Doc
	modified   bool
	registered bool
}

// Transaction is the single-owner unit of atomicity a Database hands out
// (spec §4.6). Not safe for concurrent use by design: "single-owner: no
// cross-thread sharing of the builder."
type Transaction struct {
	ctx      context.Context
	backend  storage.Backend
	engine   *crdt.StateEngine
	resolver *auth.Resolver

	treeID         entry.ID // empty iff this transaction creates the tree's root
	isRootCreation bool
	basedOnCurrent bool // true unless the caller pinned an explicit tip set
	mainParents    []entry.ID

	signingKey *auth.SigningKey

	acquired  map[string]*acquiredSubtree
	committed bool
}

// New begins a transaction against treeID, basing it on the tree's current
// tips. signingKey may be nil for an unsigned-mode tree.
func New(ctx context.Context, backend storage.Backend, engine *crdt.StateEngine, resolver *auth.Resolver, treeID entry.ID, signingKey *auth.SigningKey) (*Transaction, error) {
	tips, err := backend.GetTips(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("transaction: begin: %w", err)
	}
	return &Transaction{
		ctx: ctx, backend: backend, engine: engine, resolver: resolver,
		treeID: treeID, basedOnCurrent: true, mainParents: tips,
		signingKey: signingKey, acquired: make(map[string]*acquiredSubtree),
	}, nil
}

// NewAt begins a transaction pinned to an explicit (possibly historical)
// main-tree tip set rather than the tree's live current tips.
func NewAt(ctx context.Context, backend storage.Backend, engine *crdt.StateEngine, resolver *auth.Resolver, treeID entry.ID, tips []entry.ID, signingKey *auth.SigningKey) *Transaction {
	return &Transaction{
		ctx: ctx, backend: backend, engine: engine, resolver: resolver,
		treeID: treeID, basedOnCurrent: false, mainParents: append([]entry.ID(nil), tips...),
		signingKey: signingKey, acquired: make(map[string]*acquiredSubtree),
	}
}

// NewRootCreation begins the special transaction Database.Create uses: no
// tree exists yet, so there are no main parents and no subtree to snapshot
// tips from.
func NewRootCreation(ctx context.Context, backend storage.Backend, engine *crdt.StateEngine, signingKey *auth.SigningKey) *Transaction {
	return &Transaction{
		ctx: ctx, backend: backend, engine: engine, isRootCreation: true,
		basedOnCurrent: true, signingKey: signingKey, acquired: make(map[string]*acquiredSubtree),
	}
}

func (t *Transaction) acquire(name string) (*acquiredSubtree, error) {
	if a, ok := t.acquired[name]; ok {
		return a, nil
	}
	var parents []entry.ID
	if !t.isRootCreation {
		var err error
		if t.basedOnCurrent {
			parents, err = t.backend.GetSubtreeTips(t.ctx, t.treeID, name)
		} else {
			parents, err = t.backend.GetSubtreeTipsUpTo(t.ctx, t.treeID, name, t.mainParents)
		}
		if err != nil {
			return nil, fmt.Errorf("transaction: acquiring subtree %q: %w", name, err)
		}
	}
	a := &acquiredSubtree{parents: parents, staged: crdt.NewDoc()}
	t.acquired[name] = a
	return a, nil
}

// State implements store.Host.
func (t *Transaction) State(subtree string) (*crdt.Doc, error) {
	a, err := t.acquire(subtree)
	if err != nil {
		return nil, err
	}
	var base *crdt.Doc
	if t.isRootCreation || len(a.parents) == 0 {
		base = crdt.NewDoc()
	} else {
		base, err = t.engine.FrontierState(t.ctx, t.treeID, a.parents, subtree)
		if err != nil {
			return nil, err
		}
	}
	return base.Merge(a.staged).(*crdt.Doc), nil
}

// Stage implements store.Host.
func (t *Transaction) Stage(subtree string) *crdt.Doc {
	a, err := t.acquire(subtree)
	if err != nil {
		// acquire only fails on a backend error; Host.Stage has no error
		// return (spec §4.4's Store API doesn't surface one for writes), so
		// fall back to an unattached Doc rather than panicking. The
		// subsequent Commit's own backend calls will surface the same error.
		glog.Warningf("transaction: Stage(%q): %v", subtree, err)
		return crdt.NewDoc()
	}
	a.modified = true
	return a.staged
}

// RecordIndexEntry implements store.Host.
func (t *Transaction) RecordIndexEntry(name, typeID string, defaultConfig *crdt.Doc) error {
	if entry.IsReservedSubtreeName(name) {
		return nil // system subtrees are never registered (spec §4.4.4)
	}
	a, err := t.acquire(name)
	if err != nil {
		return err
	}
	if a.registered {
		return nil
	}
	a.registered = true

	indexA, err := t.acquire(entry.SubtreeIndex)
	if err != nil {
		return err
	}
	current, err := t.State(entry.SubtreeIndex)
	if err != nil {
		return err
	}
	if _, already := store.Lookup(current, name); already {
		return nil
	}
	indexA.modified = true
	store.Register(indexA.staged, name, typeID, defaultConfig)
	return nil
}

// touchedSubtrees returns the names of every subtree actually modified in
// this transaction, sorted, implementing "drop subtrees that were read but
// never modified" (spec §4.6 step 4).
func (t *Transaction) touchedSubtrees() []string {
	names := make([]string, 0, len(t.acquired))
	for name, a := range t.acquired {
		if a.modified {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

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

package eidetica

import (
	"context"
	"fmt"

	"github.com/arcuru/eidetica/auth"
	"github.com/arcuru/eidetica/crdt"
	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/storage"
)

// delegationReader implements auth.DelegationReader over a shared Backend
// and CRDT StateEngine. Because entry IDs are content hashes unique across
// every tree, the state cache is safe to share across trees, so delegation
// resolution into a different root never needs its own StateEngine.
type delegationReader struct {
	backend storage.Backend
	engine  *crdt.StateEngine
}

// AuthCatalogueAt implements auth.DelegationReader. tips is a main-tree
// snapshot, not a _settings-subtree frontier: _settings has its own parent
// chain, and an entry in tips that never touched _settings has no subtree
// ancestry for FrontierState to walk. So this first resolves the actual
// _settings subtree tips reachable from tips, the same way Transaction.acquire
// does for a transaction pinned to historical tips.
func (r *delegationReader) AuthCatalogueAt(ctx context.Context, treeID entry.ID, tips []entry.ID) (map[string]auth.KeyEntry, error) {
	var settings *crdt.Doc
	if len(tips) == 0 {
		settings = crdt.NewDoc()
	} else {
		settingsTips, err := r.backend.GetSubtreeTipsUpTo(ctx, treeID, entry.SubtreeSettings, tips)
		if err != nil {
			return nil, fmt.Errorf("eidetica: resolving _settings tips of %s: %w", treeID, err)
		}
		settings, err = r.engine.FrontierState(ctx, treeID, settingsTips, entry.SubtreeSettings)
		if err != nil {
			return nil, fmt.Errorf("eidetica: reading _settings of %s: %w", treeID, err)
		}
	}
	authDoc, err := auth.ExtractAuthDoc(settings)
	if err != nil {
		return nil, err
	}
	return auth.ParseCatalogue(authDoc)
}

// Descends implements auth.DelegationReader: every ID in older must be an
// ancestor of (or a member of) newer within treeID's main tree.
func (r *delegationReader) Descends(ctx context.Context, treeID entry.ID, older, newer []entry.ID) (bool, error) {
	if len(older) == 0 {
		return true, nil
	}
	ancestors, err := r.backend.AncestorsOf(ctx, treeID, newer, storage.MainTree)
	if err != nil {
		return false, err
	}
	present := make(map[entry.ID]bool, len(ancestors))
	for _, id := range ancestors {
		present[id] = true
	}
	for _, o := range older {
		if !present[o] {
			return false, nil
		}
	}
	return true, nil
}

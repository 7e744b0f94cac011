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

package auth

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/arcuru/eidetica/entry"
)

// maxDelegationDepth bounds the recursion Resolve performs through nested
// delegations (spec §4.5.4 step 3).
const maxDelegationDepth = 10

// Resolver resolves (key_name, tips) pairs against a tree's key catalogue,
// following delegations and enforcing replay protection (spec §4.5.4). A
// Resolver is owned by one Database and is safe for concurrent use; the
// last-seen-tips bookkeeping is a small mutex-guarded map since resolution
// can run concurrently with commits advancing the tips it tracks.
type Resolver struct {
	reader DelegationReader

	mu        sync.Mutex
	lastSeen  map[string][]entry.ID // keyed by "root\x00keyName"
}

// DelegationReader is the interface Resolver actually depends on: fetching a
// tree's auth catalogue Doc at a tip snapshot, and checking whether a
// candidate set of tips has been superseded by (is a descendant of) a
// previous snapshot.
type DelegationReader interface {
	AuthCatalogueAt(ctx context.Context, treeID entry.ID, tips []entry.ID) (map[string]KeyEntry, error)
	// Descends reports whether every ID in older is an ancestor of (or
	// equal to a member of) newer within treeID's main tree.
	Descends(ctx context.Context, treeID entry.ID, older, newer []entry.ID) (bool, error)
}

// NewResolver returns a Resolver reading catalogues through reader.
func NewResolver(reader DelegationReader) *Resolver {
	return &Resolver{reader: reader, lastSeen: make(map[string][]entry.ID)}
}

// Resolved is the outcome of resolving a key name.
type Resolved struct {
	Permission Permission
	Status     KeyStatus
	// PubKey is the Ed25519 public key a signature over keyName must verify
	// against. Set from the catalogue's DirectKey even when resolution
	// passed through one or more delegations, since every delegation only
	// bounds the permission, never substitutes a different signing key.
	PubKey ed25519.PublicKey
}

// Resolve resolves keyName against root's key catalogue at tips (spec
// §4.5.4).
func (r *Resolver) Resolve(ctx context.Context, root entry.ID, tips []entry.ID, keyName string) (Resolved, error) {
	return r.resolve(ctx, root, tips, keyName, 0)
}

func (r *Resolver) resolve(ctx context.Context, root entry.ID, tips []entry.ID, keyName string, depth int) (Resolved, error) {
	if depth > maxDelegationDepth {
		return Resolved{}, ErrDelegationTooDeep
	}

	catalogue, err := r.reader.AuthCatalogueAt(ctx, root, tips)
	if err != nil {
		return Resolved{}, err
	}

	entryVal, ok := catalogue[keyName]
	if !ok {
		entryVal, ok = catalogue[WildcardKeyName]
		if !ok {
			return Resolved{}, fmt.Errorf("auth: %q: %w", keyName, ErrKeyNotFound)
		}
	}

	switch k := entryVal.(type) {
	case DirectKey:
		return Resolved{Permission: k.Permission, Status: k.Status, PubKey: k.PubKey}, nil
	case DelegationKey:
		if err := r.checkReplay(ctx, root, keyName, k.Database.Root, k.Database.Tips); err != nil {
			return Resolved{}, err
		}
		sub, err := r.resolve(ctx, k.Database.Root, k.Database.Tips, keyName, depth+1)
		if err != nil {
			return Resolved{}, err
		}
		sub.Permission = Clamp(sub.Permission, k.Bounds)
		return sub, nil
	default:
		return Resolved{}, fmt.Errorf("auth: %q: %w", keyName, ErrMalformedKeyEntry)
	}
}

func (r *Resolver) checkReplay(ctx context.Context, callerRoot entry.ID, keyName string, delegatedRoot entry.ID, tips []entry.ID) error {
	bookKey := fmt.Sprintf("%s\x00%s", callerRoot, keyName)

	r.mu.Lock()
	prev, seen := r.lastSeen[bookKey]
	r.mu.Unlock()

	if seen {
		ok, err := r.reader.Descends(ctx, delegatedRoot, prev, tips)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDelegationReplay
		}
	}

	r.mu.Lock()
	r.lastSeen[bookKey] = append([]entry.ID(nil), tips...)
	r.mu.Unlock()
	return nil
}

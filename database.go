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
	"crypto/ed25519"
	"fmt"
	"sort"

	"github.com/arcuru/eidetica/auth"
	"github.com/arcuru/eidetica/crdt"
	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/storage"
	"github.com/arcuru/eidetica/transaction"
)

// Database is a handle over one tree (spec §4.7). Per spec §9's redesign
// note it holds the Backend by interface value and its own root ID only —
// never a pointer back to the Instance that produced it — while owning its
// own CRDT cache (StateEngine), exactly as "the CRDT cache is owned by the
// Database instance; the backend is owned by the Instance."
type Database struct {
	backend  storage.Backend
	root     entry.ID
	engine   *crdt.StateEngine
	resolver *auth.Resolver
}

func newDatabase(backend storage.Backend, root entry.ID) *Database {
	engine := crdt.NewStateEngine(backend)
	return &Database{
		backend:  backend,
		root:     root,
		engine:   engine,
		resolver: auth.NewResolver(&delegationReader{backend: backend, engine: engine}),
	}
}

// Root returns the tree's root ID.
func (d *Database) Root() entry.ID { return d.root }

// NewTransaction begins a writable Transaction against this tree's current
// tips (spec §4.7 "new_transaction"). signingKey may be nil only for an
// unsigned-mode tree.
func (d *Database) NewTransaction(ctx context.Context, signingKey *auth.SigningKey) (*transaction.Transaction, error) {
	return transaction.New(ctx, d.backend, d.engine, d.resolver, d.root, signingKey)
}

// Read begins a read-only Transaction against this tree's current tips
// (spec §4.7 "read"). Callers must not call Commit on the result; Stores
// acquired from it only ever serve State/GetAll-style reads in practice,
// though nothing in Transaction enforces that at the type level (spec §4.6
// doesn't distinguish a separate read-only type, only usage).
func (d *Database) Read(ctx context.Context) (*transaction.Transaction, error) {
	return transaction.New(ctx, d.backend, d.engine, d.resolver, d.root, nil)
}

// SigKeyMatch is one entry of FindSigKeys' result.
type SigKeyMatch struct {
	Path       string
	Permission auth.Permission
}

// FindSigKeys enumerates every key-name (direct or delegated) in this tree's
// catalogue that resolves to pubkey, sorted by permission descending (spec
// §4.7 "find_sigkeys"). Delegated matches are reported as "keyName" too;
// distinguishing the delegation path taken is left to callers that need it
// via auth.Resolver directly.
func (d *Database) FindSigKeys(ctx context.Context, pubkey ed25519.PublicKey) ([]SigKeyMatch, error) {
	tips, err := d.backend.GetTips(ctx, d.root)
	if err != nil {
		return nil, fmt.Errorf("eidetica: find_sigkeys: %w", err)
	}
	catalogue, err := (&delegationReader{backend: d.backend, engine: d.engine}).AuthCatalogueAt(ctx, d.root, tips)
	if err != nil {
		return nil, fmt.Errorf("eidetica: find_sigkeys: %w", err)
	}

	var matches []SigKeyMatch
	for name, ke := range catalogue {
		switch k := ke.(type) {
		case auth.DirectKey:
			if ed25519Equal(k.PubKey, pubkey) {
				matches = append(matches, SigKeyMatch{Path: name, Permission: k.Permission})
			}
		case auth.DelegationKey:
			resolved, err := d.resolver.Resolve(ctx, d.root, tips, name)
			if err != nil {
				continue // unresolvable delegation (replay/depth) doesn't match
			}
			sub, err := newDatabaseAt(d.backend, k.Database.Root).FindSigKeysAt(ctx, k.Database.Tips, pubkey)
			if err != nil {
				continue
			}
			for range sub {
				matches = append(matches, SigKeyMatch{Path: name, Permission: resolved.Permission})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return permissionRank(matches[i].Permission) > permissionRank(matches[j].Permission)
	})
	return matches, nil
}

// FindSigKeysAt is FindSigKeys pinned to an explicit tip snapshot, used when
// walking into a delegated database.
func (d *Database) FindSigKeysAt(ctx context.Context, tips []entry.ID, pubkey ed25519.PublicKey) ([]SigKeyMatch, error) {
	catalogue, err := (&delegationReader{backend: d.backend, engine: d.engine}).AuthCatalogueAt(ctx, d.root, tips)
	if err != nil {
		return nil, err
	}
	var matches []SigKeyMatch
	for name, ke := range catalogue {
		if direct, ok := ke.(auth.DirectKey); ok && ed25519Equal(direct.PubKey, pubkey) {
			matches = append(matches, SigKeyMatch{Path: name, Permission: direct.Permission})
		}
	}
	return matches, nil
}

func newDatabaseAt(backend storage.Backend, root entry.ID) *Database {
	return newDatabase(backend, root)
}

func ed25519Equal(a, b ed25519.PublicKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// permissionRank gives Admin the highest rank, then Write, then Read, with
// lower Priority numbers ranking higher within a level — the same ordering
// auth.Permission.Satisfies uses, inverted into a single comparable score
// for sorting FindSigKeys results "descending".
func permissionRank(p auth.Permission) int64 {
	base := int64(p.Level) << 32
	return base - int64(p.Priority)
}

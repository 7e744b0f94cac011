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

// Package eidetica is the root façade (spec §4.7): Instance owns a shared
// Backend, and hands out Database handles that open or create trees against
// it.
package eidetica

import (
	"context"
	"fmt"
	"sync"

	"github.com/arcuru/eidetica/auth"
	"github.com/arcuru/eidetica/crdt"
	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/storage"
	"github.com/arcuru/eidetica/transaction"
)

// Instance owns the single Backend every Database handle it issues shares.
// Database never holds a pointer back to its Instance (spec §9 "Cyclic
// references (Database ↔ Instance)": a handle-plus-registry model, not
// back-pointers); it only holds the Backend interface value and its own
// root ID, so lifetimes are governed entirely by what references this
// Instance and its registry, never by a cycle.
type Instance struct {
	backend storage.Backend

	mu        sync.RWMutex
	databases map[entry.ID]*Database
}

// NewInstance returns an Instance backed by backend.
func NewInstance(backend storage.Backend) *Instance {
	return &Instance{backend: backend, databases: make(map[entry.ID]*Database)}
}

// Open loads an existing tree rooted at root (spec §4.7 "open").
func (i *Instance) Open(ctx context.Context, root entry.ID) (*Database, error) {
	i.mu.RLock()
	if db, ok := i.databases[root]; ok {
		i.mu.RUnlock()
		return db, nil
	}
	i.mu.RUnlock()

	if _, _, err := i.backend.Get(ctx, root); err != nil {
		return nil, fmt.Errorf("eidetica: open %s: %w", root, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if db, ok := i.databases[root]; ok {
		return db, nil
	}
	db := newDatabase(i.backend, root)
	i.databases[root] = db
	return db, nil
}

// Create creates a new tree's root entry and returns a handle to it (spec
// §4.7 "create"): main parents empty, subtree _root holding initialSettings,
// and a _settings.auth catalogue containing signingKey as Admin(0).
func (i *Instance) Create(ctx context.Context, initialSettings *crdt.Doc, signingKey auth.SigningKey) (*Database, error) {
	tx := transaction.NewRootCreation(ctx, i.backend, nil, &signingKey)

	root := tx.Stage(entry.SubtreeRoot)
	if initialSettings != nil {
		for k, v := range initialSettings.Fields {
			root.Set(k, v)
		}
	}

	settings := tx.Settings()
	if err := settings.SetAuthKey(signingKey.Name, auth.DirectKey{
		PubKey:     signingKey.PublicKey(),
		Permission: auth.Admin(0),
		Status:     auth.StatusActive,
	}); err != nil {
		return nil, fmt.Errorf("eidetica: create: bootstrapping admin key: %w", err)
	}

	id, err := tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("eidetica: create: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	db := newDatabase(i.backend, id)
	i.databases[id] = db
	return db, nil
}

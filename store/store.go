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

// Package store implements the typed views over a named subtree that spec
// §4.4 calls Stores: DocStore, Table, SettingsStore and IndexStore. A Store
// never touches a Backend directly; it only ever talks to the Host interface
// a Transaction implements, the same way a Trillian log/map storage layer
// never reaches past its owning TX.
package store

import (
	"fmt"

	"github.com/arcuru/eidetica/crdt"
)

// TypeID identifiers recorded into the _index registry (spec §4.4).
const (
	TypeIDDocStore = "docstore:v1"
	TypeIDTable    = "table:v1"
)

// Host is the subset of Transaction behavior a Store needs. A Transaction is
// the only implementation; the interface exists so this package never
// imports transaction (which imports store to construct typed handles),
// avoiding an import cycle.
type Host interface {
	// State returns the merge of historical state (as of the subtree parents
	// this transaction snapshotted on first access to subtree) with whatever
	// has been staged so far in this transaction. The returned Doc is a
	// private copy.
	State(subtree string) (*crdt.Doc, error)

	// Stage returns the transaction's live, mutable staged-delta Doc for
	// subtree, creating an empty one on first call. Mutations made through
	// the returned pointer are what Commit eventually serializes into the
	// entry's subtree_data (spec §4.6 step 3).
	Stage(subtree string) *crdt.Doc

	// RecordIndexEntry registers (name, typeID, defaultConfig) into the
	// _index subtree the first time name is accessed in this transaction
	// (spec §4.4 "init"). System subtrees must not be recorded; callers
	// operating on those skip this call entirely rather than relying on
	// RecordIndexEntry to filter them.
	RecordIndexEntry(name, typeID string, defaultConfig *crdt.Doc) error
}

// splitPath splits a dotted path into its component keys. An empty path is
// invalid; spec §4.4.1 requires at least one component.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty path")
	}
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("store: path %q has an empty component", path)
		}
	}
	return parts, nil
}

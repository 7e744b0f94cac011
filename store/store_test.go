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

package store_test

import (
	"github.com/arcuru/eidetica/crdt"
	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/store"
)

// fakeHost is a minimal store.Host: State is just a clone of whatever has
// been staged so far, with no separate historical layer. It exists so the
// store package's tests never need a real Transaction/Backend.
type fakeHost struct {
	staged map[string]*crdt.Doc
}

func newFakeHost() *fakeHost {
	return &fakeHost{staged: make(map[string]*crdt.Doc)}
}

func (h *fakeHost) State(subtree string) (*crdt.Doc, error) {
	return h.Stage(subtree).Clone(), nil
}

func (h *fakeHost) Stage(subtree string) *crdt.Doc {
	d, ok := h.staged[subtree]
	if !ok {
		d = crdt.NewDoc()
		h.staged[subtree] = d
	}
	return d
}

func (h *fakeHost) RecordIndexEntry(name, typeID string, defaultConfig *crdt.Doc) error {
	if entry.IsReservedSubtreeName(name) {
		return nil
	}
	index := h.Stage(entry.SubtreeIndex)
	if _, ok := store.Lookup(index, name); ok {
		return nil
	}
	store.Register(index, name, typeID, defaultConfig)
	return nil
}

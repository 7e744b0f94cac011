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

package store

import (
	"github.com/google/btree"

	"github.com/arcuru/eidetica/crdt"
)

// indexEntryKeyTypeID and indexEntryKeyConfig are the nested-Doc field names
// IndexStore stores each registration under.
const (
	indexEntryKeyTypeID = "type_id"
	indexEntryKeyConfig = "config"
)

// IndexRegistration describes one entry in the _index registry (spec §4.4.4).
type IndexRegistration struct {
	TypeID string
	Config *crdt.Doc
}

// Register writes (name -> {type_id, config}) into the _index Doc. System
// subtrees (_settings, _index, _root) must never be passed here; callers
// enforce that before calling Register, matching spec §4.4.4.
func Register(index *crdt.Doc, name, typeID string, config *crdt.Doc) {
	entry := crdt.NewDoc()
	entry.Set(indexEntryKeyTypeID, crdt.Text(typeID))
	if config != nil {
		entry.Set(indexEntryKeyConfig, config)
	}
	index.Set(name, entry)
}

// Lookup returns the registration for name, if any.
func Lookup(index *crdt.Doc, name string) (IndexRegistration, bool) {
	v, ok := index.GetLive(name)
	if !ok {
		return IndexRegistration{}, false
	}
	entry, ok := v.(*crdt.Doc)
	if !ok {
		return IndexRegistration{}, false
	}
	reg := IndexRegistration{}
	if t, ok := entry.GetLive(indexEntryKeyTypeID); ok {
		if text, ok := t.(crdt.Text); ok {
			reg.TypeID = string(text)
		}
	}
	if c, ok := entry.GetLive(indexEntryKeyConfig); ok {
		if doc, ok := c.(*crdt.Doc); ok {
			reg.Config = doc
		}
	}
	return reg, true
}

// IndexStore is a read-oriented typed view over the _index registry (spec
// §4.4.4). Writes happen implicitly through Host.RecordIndexEntry whenever a
// Store is first acquired in a transaction, so IndexStore itself exposes only
// lookups.
type IndexStore struct {
	host Host
}

// NewIndexStore returns an IndexStore. It does not call RecordIndexEntry:
// _index is a system subtree and is never registered within itself.
func NewIndexStore(host Host) *IndexStore {
	return &IndexStore{host: host}
}

// Get returns the registration for name.
func (i *IndexStore) Get(name string) (IndexRegistration, bool, error) {
	s, err := i.host.State("_index")
	if err != nil {
		return IndexRegistration{}, false, err
	}
	reg, ok := Lookup(s, name)
	return reg, ok, nil
}

// indexName is a btree.Item over a registered subtree name, used only to
// give All a deterministic iteration order over s.Fields (a Go map).
type indexName string

func (n indexName) Less(than btree.Item) bool { return n < than.(indexName) }

// All returns every registered subtree name, sorted.
func (i *IndexStore) All() ([]string, error) {
	s, err := i.host.State("_index")
	if err != nil {
		return nil, err
	}
	ordered := btree.New(32)
	for name := range s.Fields {
		if _, ok := s.GetLive(name); ok {
			ordered.ReplaceOrInsert(indexName(name))
		}
	}
	names := make([]string, 0, ordered.Len())
	ordered.Ascend(func(item btree.Item) bool {
		names = append(names, string(item.(indexName)))
		return true
	})
	return names, nil
}

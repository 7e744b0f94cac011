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

import "github.com/arcuru/eidetica/crdt"

// DocStore is a thin typed wrapper over a Doc-shaped subtree (spec §4.4.1).
type DocStore struct {
	host Host
	name string
}

// NewDocStore returns a DocStore over subtree name, registering it in the
// transaction's _index the first time it is acquired. defaultConfig may be
// nil.
func NewDocStore(host Host, name string, defaultConfig *crdt.Doc) (*DocStore, error) {
	d := &DocStore{host: host, name: name}
	if err := host.RecordIndexEntry(name, TypeIDDocStore, defaultConfig); err != nil {
		return nil, err
	}
	return d, nil
}

// TypeID implements the Store contract.
func (d *DocStore) TypeID() string { return TypeIDDocStore }

// Get returns the live (non-tombstoned) value at top-level key, or false if
// absent or deleted.
func (d *DocStore) Get(key string) (crdt.Value, bool, error) {
	s, err := d.host.State(d.name)
	if err != nil {
		return nil, false, err
	}
	v, ok := s.GetLive(key)
	return v, ok, nil
}

// Set stages value at key.
func (d *DocStore) Set(key string, value crdt.Value) {
	d.host.Stage(d.name).Set(key, value)
}

// Delete stages a tombstone at key.
func (d *DocStore) Delete(key string) {
	d.host.Stage(d.name).Delete(key)
}

// GetAll returns a snapshot of the merged Doc (historical + staged).
func (d *DocStore) GetAll() (*crdt.Doc, error) {
	return d.host.State(d.name)
}

// SetPath sets value at a dotted path, creating intermediate Docs along the
// way. Paths never create flat dotted keys (spec §4.4.1).
func (d *DocStore) SetPath(path string, value crdt.Value) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	root := d.host.Stage(d.name)
	cur := root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur.Fields[p].(*crdt.Doc)
		if !ok {
			next = crdt.NewDoc()
			cur.Set(p, next)
		}
		cur = next
	}
	cur.Set(parts[len(parts)-1], value)
	return nil
}

// GetPath reads the live value at a dotted path out of the merged state.
func (d *DocStore) GetPath(path string) (crdt.Value, bool, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, false, err
	}
	s, err := d.host.State(d.name)
	if err != nil {
		return nil, false, err
	}
	cur := s
	for _, p := range parts[:len(parts)-1] {
		v, ok := cur.GetLive(p)
		if !ok {
			return nil, false, nil
		}
		nested, ok := v.(*crdt.Doc)
		if !ok {
			return nil, false, nil
		}
		cur = nested
	}
	v, ok := cur.GetLive(parts[len(parts)-1])
	return v, ok, nil
}

// DeletePath stages a tombstone at a dotted path. Missing intermediate Docs
// are created so the deletion itself replicates (spec §4.3.2 applies to
// nested Docs too).
func (d *DocStore) DeletePath(path string) error {
	return d.SetPath(path, crdt.Tomb{})
}

// ContainsPath reports whether a live (non-tombstoned) value exists at path.
func (d *DocStore) ContainsPath(path string) (bool, error) {
	_, ok, err := d.GetPath(path)
	return ok, err
}

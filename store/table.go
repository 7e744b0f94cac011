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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arcuru/eidetica/crdt"
	"github.com/google/uuid"
)

// ErrRecordNotFound is returned by Table.Get/Set/Delete for an unknown ID.
var ErrRecordNotFound = errors.New("store: record not found")

// IsRecordNotFound reports whether err is or wraps ErrRecordNotFound.
func IsRecordNotFound(err error) bool { return errors.Is(err, ErrRecordNotFound) }

// Table is a record collection keyed by UUID, encoded as a Doc whose
// top-level keys are record IDs holding the JSON encoding of T (spec
// §4.4.2). Record IDs are generated with google/uuid so they stay globally
// unique and opaque across processes without any central allocator.
type Table[T any] struct {
	host Host
	name string
}

// NewTable returns a Table over subtree name.
func NewTable[T any](host Host, name string, defaultConfig *crdt.Doc) (*Table[T], error) {
	t := &Table[T]{host: host, name: name}
	if err := host.RecordIndexEntry(name, TypeIDTable, defaultConfig); err != nil {
		return nil, err
	}
	return t, nil
}

// TypeID implements the Store contract.
func (t *Table[T]) TypeID() string { return TypeIDTable }

func encodeRecord[T any](v T) (crdt.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encoding record: %w", err)
	}
	return crdt.Text(b), nil
}

func decodeRecord[T any](v crdt.Value) (T, error) {
	var zero T
	text, ok := v.(crdt.Text)
	if !ok {
		return zero, fmt.Errorf("store: record has unexpected type %T", v)
	}
	if err := json.Unmarshal([]byte(text), &zero); err != nil {
		return zero, fmt.Errorf("store: decoding record: %w", err)
	}
	return zero, nil
}

// Insert stores value under a freshly generated ID and returns it.
func (t *Table[T]) Insert(value T) (string, error) {
	encoded, err := encodeRecord(value)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	t.host.Stage(t.name).Set(id, encoded)
	return id, nil
}

// Get returns the record stored at id.
func (t *Table[T]) Get(id string) (T, error) {
	var zero T
	s, err := t.host.State(t.name)
	if err != nil {
		return zero, err
	}
	v, ok := s.GetLive(id)
	if !ok {
		return zero, fmt.Errorf("store: %s/%s: %w", t.name, id, ErrRecordNotFound)
	}
	return decodeRecord[T](v)
}

// Set overwrites the record at id.
func (t *Table[T]) Set(id string, value T) error {
	encoded, err := encodeRecord(value)
	if err != nil {
		return err
	}
	t.host.Stage(t.name).Set(id, encoded)
	return nil
}

// Delete tombstones the record at id.
func (t *Table[T]) Delete(id string) {
	t.host.Stage(t.name).Delete(id)
}

// Search returns every (id, record) pair for which predicate returns true,
// scanning the merged state. Order is unspecified.
func (t *Table[T]) Search(predicate func(T) bool) (map[string]T, error) {
	s, err := t.host.State(t.name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T)
	for id, v := range s.Fields {
		if _, isTomb := v.(crdt.Tomb); isTomb {
			continue
		}
		rec, err := decodeRecord[T](v)
		if err != nil {
			return nil, fmt.Errorf("store: %s/%s: %w", t.name, id, err)
		}
		if predicate(rec) {
			out[id] = rec
		}
	}
	return out, nil
}

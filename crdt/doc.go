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

package crdt

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Errors returned by the crdt package (spec §6 "crdt" error category).
var (
	ErrMergeTypeMismatch     = errors.New("crdt: merge type mismatch")
	ErrDeserializationFailed = errors.New("crdt: deserialization failed")
)

// IsMergeTypeMismatch reports whether err is or wraps ErrMergeTypeMismatch.
func IsMergeTypeMismatch(err error) bool { return errors.Is(err, ErrMergeTypeMismatch) }

// IsDeserializationFailed reports whether err is or wraps ErrDeserializationFailed.
func IsDeserializationFailed(err error) bool { return errors.Is(err, ErrDeserializationFailed) }

// Doc is a recursive string -> Value mapping, Eidetica's only built-in CRDT
// (spec §4.3.1). The zero value is not a usable Doc; use NewDoc.
type Doc struct {
	// Atomic marks this Doc as a last-writer-wins replacement rather than a
	// structurally mergeable map. The flag is contagious: once set by a
	// merge, it propagates through every subsequent merge so that later
	// structural merges correctly discard stale pre-replacement data,
	// preserving associativity (spec §4.3.1).
	Atomic bool
	Fields map[string]Value
}

// NewDoc returns an empty, non-atomic Doc.
func NewDoc() *Doc {
	return &Doc{Fields: make(map[string]Value)}
}

// NewAtomicDoc returns an empty Doc flagged as atomic (a last-writer-wins
// replacement value), for callers that want "set this whole document,
// replacing history" semantics (store.DocStore callers opt into this
// explicitly; it is never the default).
func NewAtomicDoc() *Doc {
	return &Doc{Atomic: true, Fields: make(map[string]Value)}
}

// Clone returns a deep copy of d.
func (d *Doc) Clone() *Doc {
	out := &Doc{Atomic: d.Atomic, Fields: make(map[string]Value, len(d.Fields))}
	for k, v := range d.Fields {
		out.Fields[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch t := v.(type) {
	case List:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case *Doc:
		return t.Clone()
	default:
		return v // Text, Int, Bool, Tomb are immutable value types
	}
}

// Get returns the value at top-level key k, or (nil, false) if absent. A
// Tomb is returned as-is (callers that want "deleted or absent" collapsed to
// one case should check GetLive).
func (d *Doc) Get(k string) (Value, bool) {
	v, ok := d.Fields[k]
	return v, ok
}

// GetLive returns the value at key k, or (nil, false) if absent or
// tombstoned. This is the semantics store.DocStore.Get exposes to callers.
func (d *Doc) GetLive(k string) (Value, bool) {
	v, ok := d.Fields[k]
	if !ok {
		return nil, false
	}
	if _, isTomb := v.(Tomb); isTomb {
		return nil, false
	}
	return v, true
}

// Set assigns value to key k.
func (d *Doc) Set(k string, value Value) {
	d.Fields[k] = value
}

// Delete writes a Tomb at key k. Tombstones are never physically removed by
// merge (spec §4.3.2); deleting an absent key still leaves a Tomb so the
// deletion itself propagates to replicas that had a value for k.
func (d *Doc) Delete(k string) {
	d.Fields[k] = Tomb{}
}

// Merge implements CRDT. See doc comments on CRDT.Merge for the argument
// order convention this method relies on.
func (d *Doc) Merge(other CRDT) CRDT {
	o, ok := other.(*Doc)
	if !ok {
		// The abstract CRDT contract permits other implementations, but
		// Doc only knows how to merge with itself.
		panic(fmt.Sprintf("crdt: Doc.Merge called with incompatible type %T", other))
	}
	return d.mergeDoc(o)
}

func (d *Doc) mergeDoc(other *Doc) *Doc {
	if other.Atomic {
		r := other.Clone()
		r.Atomic = true
		return r
	}

	r := &Doc{Atomic: d.Atomic || other.Atomic, Fields: make(map[string]Value)}
	for k := range unionKeys(d.Fields, other.Fields) {
		av, aok := d.Fields[k]
		bv, bok := other.Fields[k]
		switch {
		case aok && !bok:
			r.Fields[k] = cloneValue(av)
		case !aok && bok:
			r.Fields[k] = cloneValue(bv)
		default:
			r.Fields[k] = mergeValue(av, bv)
		}
	}
	return r
}

func unionKeys(a, b map[string]Value) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// mergeValue resolves a same-key conflict present on both sides. b is always
// the logically newer side (see CRDT.Merge doc comment). Tombstones win
// unconditionally; nested Docs recurse; everything else is last-writer-wins
// with b winning, whether or not a and b share a type (spec §4.3.1 "Mixed-type:
// the side from the newer entry in the ordering wins").
func mergeValue(a, b Value) Value {
	if _, isTomb := a.(Tomb); isTomb {
		return Tomb{}
	}
	if _, isTomb := b.(Tomb); isTomb {
		return Tomb{}
	}
	aDoc, aIsDoc := a.(*Doc)
	bDoc, bIsDoc := b.(*Doc)
	if aIsDoc && bIsDoc {
		return aDoc.mergeDoc(bDoc)
	}
	return cloneValue(b)
}

// docWire is the JSON wire representation of a Doc.
type docWire struct {
	Atomic bool                     `json:"atomic,omitempty"`
	Fields map[string]valueEnvelope `json:"fields"`
}

func (d *Doc) toWire() (*docWire, error) {
	w := &docWire{Atomic: d.Atomic, Fields: make(map[string]valueEnvelope, len(d.Fields))}
	for k, v := range d.Fields {
		env, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		w.Fields[k] = env
	}
	return w, nil
}

func fromWire(w *docWire) (*Doc, error) {
	d := &Doc{Atomic: w.Atomic, Fields: make(map[string]Value, len(w.Fields))}
	for k, env := range w.Fields {
		v, err := unmarshalValue(env)
		if err != nil {
			return nil, err
		}
		d.Fields[k] = v
	}
	return d, nil
}

// Serialize implements CRDT: encodes d to its canonical JSON wire form.
func (d *Doc) Serialize() (string, error) {
	w, err := d.toWire()
	if err != nil {
		return "", fmt.Errorf("crdt: serialize: %w", err)
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("crdt: serialize: %w", err)
	}
	return string(b), nil
}

// Deserialize decodes data (as produced by Serialize) into a new Doc. Empty
// input decodes to an empty, non-atomic Doc, matching the "empty/absent
// subtree data" convention of spec §3.
func Deserialize(data string) (*Doc, error) {
	if data == "" {
		return NewDoc(), nil
	}
	var w docWire
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("crdt: deserialize: %w: %v", ErrDeserializationFailed, err)
	}
	return fromWire(&w)
}

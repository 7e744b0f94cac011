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

// Package entry defines Eidetica's immutable, content-addressed unit of
// history: the Entry. An Entry is built once by a Builder, hashed into an
// ID, optionally signed, and from then on never mutated; everything above
// this package (stores, transactions, the CRDT engine) operates in terms of
// Entry and ID.
package entry

import (
	"fmt"
	"regexp"
	"sort"
)

// ID is the hex-encoded SHA-256 digest of an entry's canonical bytes.
type ID string

var idPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Valid reports whether id is a well-formed 64-character lowercase hex ID.
func (id ID) Valid() bool {
	return idPattern.MatchString(string(id))
}

func (id ID) String() string { return string(id) }

// Reserved subtree names. _settings, _index and _root are used by the core
// itself (§4.4, §4.7); the remainder belong to external collaborators (sync,
// multi-user account management) that are out of scope for this module but
// whose names are still reserved here to avoid future collisions (spec §6).
const (
	SubtreeSettings = "_settings"
	SubtreeIndex    = "_index"
	SubtreeRoot     = "_root"
)

var reservedSubtreeNames = map[string]bool{
	SubtreeSettings: true,
	SubtreeIndex:    true,
	SubtreeRoot:     true,
	"_device_key":   true,
	"_sync":         true,
	"_instance":     true,
	"_users":        true,
	"_databases":    true,
}

// IsReservedSubtreeName reports whether name is reserved for internal or
// external-collaborator use and therefore cannot be created by a caller via
// a Store, except for the core's own use of _settings/_index/_root.
func IsReservedSubtreeName(name string) bool {
	return reservedSubtreeNames[name]
}

// SigInfo is the signature envelope carried by every Entry. Sig is nil while
// computing canonical bytes for signing, and populated with a base64-encoded
// Ed25519 signature once the entry has been signed.
type SigInfo struct {
	// KeyRef is the logical key name (direct key) or delegation path
	// descriptor (including the delegated tree's tip snapshot) used to
	// resolve the public key that verifies Sig.
	KeyRef string `json:"key_ref"`

	// Sig is the base64-encoded Ed25519 signature over the entry's canonical
	// bytes with Sig itself set to nil.
	Sig *string `json:"sig"`
}

// TreeMeta carries an entry's position in the main tree DAG.
type TreeMeta struct {
	// Root is the ID of the tree's root entry. Empty only on the root entry
	// itself.
	Root ID `json:"root"`

	// Parents are this entry's main-tree predecessors. Empty iff this entry
	// is the tree root. Always stored sorted and deduplicated.
	Parents []ID `json:"parents"`

	// Metadata is an opaque, implementation-defined payload that travels
	// with the entry but is never CRDT-merged. Included in canonical bytes
	// (see DESIGN.md, "tree.metadata and canonical bytes").
	Metadata string `json:"metadata,omitempty"`

	// Height is this entry's topological height: 0 for the root, otherwise
	// 1 + max(height of main parents). Builder.Build stores the value given to
	// SetHeight as is; it does not compute it.
	Height uint64 `json:"height"`
}

// SubTreeNode is one named subtree's contribution within an entry.
type SubTreeNode struct {
	// Name identifies the subtree. Unique within an entry; reserved names
	// are rejected unless the entry is the tree root writing _root, or the
	// core itself writing _settings/_index.
	Name string `json:"name"`

	// Parents are this subtree's own predecessors, independent of the main
	// tree parents. Empty means "this entry is a subtree-root for Name".
	Parents []ID `json:"parents"`

	// Data is this entry's local contribution to the subtree, normally the
	// serialized bytes of a CRDT value. Empty string is a valid, distinct
	// payload (an explicit "touched but no local delta" marker); a subtree
	// accessed-but-never-written during a transaction is stripped before
	// signing rather than committed with no data at all.
	Data string `json:"data"`

	// Height is this subtree node's height within the subtree's own DAG. If
	// zero, SubtreeHeight falls back to TreeMeta.Height.
	Height uint64 `json:"height,omitempty"`
}

// Entry is an immutable, content-addressed unit of history.
type Entry struct {
	Tree     TreeMeta      `json:"tree"`
	Subtrees []SubTreeNode `json:"subtrees"`
	Sig      SigInfo       `json:"sig"`
}

// IsRoot reports whether e is a tree root entry (no main parents).
func (e *Entry) IsRoot() bool {
	return len(e.Tree.Parents) == 0
}

// Parents returns the entry's main-tree parent IDs.
func (e *Entry) Parents() []ID {
	return e.Tree.Parents
}

// SubtreeNames returns the names of every subtree this entry participates
// in, sorted.
func (e *Entry) SubtreeNames() []string {
	names := make([]string, 0, len(e.Subtrees))
	for _, s := range e.Subtrees {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// subtree returns the SubTreeNode named name, or nil if e does not
// participate in that subtree.
func (e *Entry) subtree(name string) *SubTreeNode {
	for i := range e.Subtrees {
		if e.Subtrees[i].Name == name {
			return &e.Subtrees[i]
		}
	}
	return nil
}

// HasSubtree reports whether e contains subtree name.
func (e *Entry) HasSubtree(name string) bool {
	return e.subtree(name) != nil
}

// SubtreeParents returns the subtree-scoped parents for name, or nil if e
// does not participate in that subtree. An empty, non-nil slice means e is
// the subtree root for name.
func (e *Entry) SubtreeParents(name string) []ID {
	st := e.subtree(name)
	if st == nil {
		return nil
	}
	return st.Parents
}

// SubtreeData returns the raw local payload e contributed to subtree name,
// and whether e participates in that subtree at all.
func (e *Entry) SubtreeData(name string) (string, bool) {
	st := e.subtree(name)
	if st == nil {
		return "", false
	}
	return st.Data, true
}

// SubtreeHeight returns the height of subtree name within its own DAG,
// falling back to the main tree height when the subtree node didn't record
// one of its own (spec §4.1 accessors).
func (e *Entry) SubtreeHeight(name string) uint64 {
	st := e.subtree(name)
	if st == nil {
		return e.Tree.Height
	}
	if st.Height == 0 {
		return e.Tree.Height
	}
	return st.Height
}

// IsSubtreeRoot reports whether e is a subtree-root for name: it contains
// the subtree with zero subtree-scoped parents.
func (e *Entry) IsSubtreeRoot(name string) bool {
	st := e.subtree(name)
	return st != nil && len(st.Parents) == 0
}

// ID computes this entry's content-addressed ID. Equivalent to
// ID(CanonicalBytes(e)) but provided as a convenience; see canonical.go.
func (e *Entry) ID() (ID, error) {
	b, err := CanonicalBytes(e)
	if err != nil {
		return "", err
	}
	return idFromBytes(b), nil
}

func validateID(id ID, field string) error {
	if !id.Valid() {
		return fmt.Errorf("%s: %q: %w", field, id, ErrInvalidIDFormat)
	}
	return nil
}

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

package entry

import (
	"fmt"

	"github.com/c2h5oh/datasize"
)

// MaxEntrySize bounds an entry's canonical encoding (spec §6,
// ErrEntrySizeExceeded). 1 MiB comfortably holds any _settings catalogue or
// typical Doc delta; a Store writing larger payloads belongs in a blob
// subtree instead of inline subtree data.
var MaxEntrySize = 1 * datasize.MB

// Builder accumulates the parts of an Entry before Build validates and
// freezes them. A Transaction owns exactly one Builder (spec §4.6).
type Builder struct {
	root     ID
	parents  []ID
	metadata string
	height   uint64
	subtrees map[string]*SubTreeNode
	// allowReserved permits writing one or more reserved subtree names; set
	// only by the root-entry and _settings/_index bootstrap paths in
	// database and transaction.
	allowReserved map[string]bool
}

// NewBuilder returns an empty Builder for a tree rooted at root. Pass an
// empty root only when building the root entry itself.
func NewBuilder(root ID) *Builder {
	return &Builder{
		root:          root,
		subtrees:      make(map[string]*SubTreeNode),
		allowReserved: make(map[string]bool),
	}
}

// SetParents sets the entry's main-tree parents.
func (b *Builder) SetParents(parents []ID) *Builder {
	b.parents = append([]ID(nil), parents...)
	return b
}

// SetMetadata sets the entry's opaque, non-merged metadata payload.
func (b *Builder) SetMetadata(metadata string) *Builder {
	b.metadata = metadata
	return b
}

// SetHeight sets the entry's main-tree height. Normally computed by the
// caller (Transaction) from the chosen parents' heights, not guessed here.
func (b *Builder) SetHeight(height uint64) *Builder {
	b.height = height
	return b
}

// AllowReservedSubtree permits this builder to stage the given reserved
// subtree name. Used only by the root-entry bootstrap and by the core's own
// _settings/_index writers.
func (b *Builder) AllowReservedSubtree(name string) *Builder {
	b.allowReserved[name] = true
	return b
}

// SetSubtree stages subtree name's parents, data and height for this entry.
// Overwrites any prior staging for the same name.
func (b *Builder) SetSubtree(name string, parents []ID, data string, height uint64) *Builder {
	b.subtrees[name] = &SubTreeNode{
		Name:    name,
		Parents: append([]ID(nil), parents...),
		Data:    data,
		Height:  height,
	}
	return b
}

// Build validates the accumulated parts and returns the frozen Entry. See
// spec §4.1 for the full invariant list; any violation returns one of the
// sentinel errors in errors.go.
func (b *Builder) Build() (*Entry, error) {
	isRoot := len(b.parents) == 0
	if isRoot && b.root != "" {
		return nil, fmt.Errorf("build: entry with tree.root %s has no parents: %w", b.root, ErrNonRootWithoutParents)
	}

	if !isRoot {
		for _, p := range b.parents {
			if p == "" || !p.Valid() {
				return nil, fmt.Errorf("build: parent %q: %w", p, ErrEmptyParentID)
			}
		}
	}
	if b.root == "" && !isRoot {
		return nil, fmt.Errorf("build: non-root entry missing tree.root: %w", ErrInvalidIDFormat)
	}

	names := make([]string, 0, len(b.subtrees))
	for name := range b.subtrees {
		names = append(names, name)
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("build: %q: %w", name, ErrDuplicateSubtreeName)
		}
		seen[name] = true
		if IsReservedSubtreeName(name) && !b.allowReserved[name] {
			return nil, fmt.Errorf("build: %q: %w", name, ErrReservedSubtreeName)
		}
	}

	e := &Entry{
		Tree: TreeMeta{
			Root:     b.root,
			Parents:  append([]ID(nil), b.parents...),
			Metadata: b.metadata,
			Height:   b.height,
		},
		Sig: SigInfo{},
	}
	e.Subtrees = make([]SubTreeNode, 0, len(b.subtrees))
	for _, name := range names {
		e.Subtrees = append(e.Subtrees, *b.subtrees[name])
	}
	// cloneForCanonicalization (invoked by ID()/CanonicalBytes) sorts
	// subtrees and parents again; Build itself doesn't need to, but callers
	// inspecting e.Subtrees before signing should see a stable order too.
	e.Tree.Parents = sortedDedupedIDs(e.Tree.Parents)
	for i := range e.Subtrees {
		e.Subtrees[i].Parents = sortedDedupedIDs(e.Subtrees[i].Parents)
	}
	sortSubtrees(e.Subtrees)

	if err := Validate(e); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	return e, nil
}

func sortSubtrees(s []SubTreeNode) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Name < s[j-1].Name; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

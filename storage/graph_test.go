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

package storage

import (
	"testing"

	"github.com/arcuru/eidetica/entry"
)

func build(t *testing.T, root entry.ID, parents []entry.ID, height uint64) *entry.Entry {
	t.Helper()
	b := entry.NewBuilder(root).SetHeight(height)
	if len(parents) > 0 {
		b.SetParents(parents)
	}
	if root == "" {
		b.AllowReservedSubtree(entry.SubtreeRoot).SetSubtree(entry.SubtreeRoot, nil, "{}", 0)
	}
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	return e
}

func mustID(t *testing.T, e *entry.Entry) entry.ID {
	t.Helper()
	id, err := e.ID()
	if err != nil {
		t.Fatalf("ID() = %v", err)
	}
	return id
}

// buildDiamond returns a Graph for R -> A -> {B1,B2} -> M, exercising the LCA
// fallback path of MergeBase (A is the deepest common ancestor of B1,B2).
func buildDiamond(t *testing.T) (g *Graph, r, a, b1, b2, m entry.ID) {
	t.Helper()
	root := build(t, "", nil, 0)
	r = mustID(t, root)

	ae := build(t, r, []entry.ID{r}, 1)
	a = mustID(t, ae)

	b1e := build(t, r, []entry.ID{a}, 2)
	b1 = mustID(t, b1e)
	// b2 differs from b1 only in metadata, so the two are distinct entries.
	b2e, err := entry.NewBuilder(r).SetParents([]entry.ID{a}).SetHeight(2).SetMetadata("b2").Build()
	if err != nil {
		t.Fatal(err)
	}
	b2 = mustID(t, b2e)

	me := build(t, r, []entry.ID{b1, b2}, 3)
	m = mustID(t, me)

	entries := map[entry.ID]*entry.Entry{
		r:  root,
		a:  ae,
		b1: b1e,
		b2: b2e,
		m:  me,
	}
	return NewGraph(entries), r, a, b1, b2, m
}

func TestGraphTipsSingle(t *testing.T) {
	g, _, _, _, _, m := buildDiamond(t)
	tips := g.Tips(MainTree)
	if len(tips) != 1 || tips[0] != m {
		t.Fatalf("Tips() = %v, want [%s]", tips, m)
	}
}

func TestGraphMergeBaseDiamond(t *testing.T) {
	g, _, a, b1, b2, _ := buildDiamond(t)
	mb, ok := g.MergeBase([]entry.ID{b1, b2}, MainTree)
	if !ok {
		t.Fatalf("MergeBase() ok = false, want true")
	}
	if mb != a {
		t.Fatalf("MergeBase() = %s, want %s (the deepest common ancestor)", mb, a)
	}
}

func TestGraphMergeBaseSingleInput(t *testing.T) {
	g, _, a, _, _, _ := buildDiamond(t)
	mb, ok := g.MergeBase([]entry.ID{a}, MainTree)
	if !ok || mb != a {
		t.Fatalf("MergeBase([a]) = (%s, %v), want (%s, true)", mb, ok, a)
	}
}

func TestGraphAncestorsInclusive(t *testing.T) {
	g, r, a, b1, _, _ := buildDiamond(t)
	anc := g.Ancestors([]entry.ID{b1}, MainTree)
	want := map[entry.ID]bool{r: true, a: true, b1: true}
	if len(anc) != len(want) {
		t.Fatalf("Ancestors(b1) = %v, want exactly %v", anc, want)
	}
	for _, id := range anc {
		if !want[id] {
			t.Errorf("Ancestors(b1) contains unexpected %s", id)
		}
	}
}

func TestGraphPathFromToExcludesLowerIncludesUpper(t *testing.T) {
	g, _, a, b1, b2, _ := buildDiamond(t)
	path := g.PathFromTo([]entry.ID{a}, []entry.ID{b1, b2}, MainTree)
	if len(path) != 2 {
		t.Fatalf("PathFromTo(a, [b1,b2]) = %d entries, want 2", len(path))
	}
	for _, e := range path {
		id, _ := e.ID()
		if id != b1 && id != b2 {
			t.Errorf("PathFromTo returned unexpected entry %s", id)
		}
	}
}

// buildSubtreeChain returns a Graph for R -> S (writes "data") -> D (writes
// "data" again) -> N (a main-tree-only commit that never touches "data"),
// exercising TipsUpTo("data") across a main-tree frontier whose tip doesn't
// itself carry "data".
func buildSubtreeChain(t *testing.T) (g *Graph, r, s, d, n entry.ID) {
	t.Helper()
	root := build(t, "", nil, 0)
	r = mustID(t, root)

	se, err := entry.NewBuilder(r).SetParents([]entry.ID{r}).SetHeight(1).
		SetSubtree("data", nil, "{}", 0).Build()
	if err != nil {
		t.Fatal(err)
	}
	s = mustID(t, se)

	de, err := entry.NewBuilder(r).SetParents([]entry.ID{s}).SetHeight(2).
		SetSubtree("data", []entry.ID{s}, "{}", 1).Build()
	if err != nil {
		t.Fatal(err)
	}
	d = mustID(t, de)

	// N never touches "data" at all: a plain main-tree-only commit.
	ne := build(t, r, []entry.ID{d}, 3)
	n = mustID(t, ne)

	entries := map[entry.ID]*entry.Entry{r: root, s: se, d: de, n: ne}
	return NewGraph(entries), r, s, d, n
}

func TestGraphTipsUpToNamedSubtreeSkipsNonParticipating(t *testing.T) {
	g, _, _, d, n := buildSubtreeChain(t)
	tips := g.TipsUpTo([]entry.ID{n}, "data")
	if len(tips) != 1 || tips[0] != d {
		t.Fatalf("TipsUpTo([n], data) = %v, want [%s] (n itself never touched data)", tips, d)
	}
}

func TestGraphTipsUpToNamedSubtreeDirectHit(t *testing.T) {
	g, _, _, d, _ := buildSubtreeChain(t)
	tips := g.TipsUpTo([]entry.ID{d}, "data")
	if len(tips) != 1 || tips[0] != d {
		t.Fatalf("TipsUpTo([d], data) = %v, want [%s]", tips, d)
	}
}

func TestGraphOrderingIsHeightThenID(t *testing.T) {
	g, r, a, b1, b2, m := buildDiamond(t)
	anc := g.Ancestors([]entry.ID{m}, MainTree)
	// Expect strictly non-decreasing height across the returned order.
	heights := map[entry.ID]uint64{r: 0, a: 1, b1: 2, b2: 2, m: 3}
	for i := 1; i < len(anc); i++ {
		if heights[anc[i-1]] > heights[anc[i]] {
			t.Fatalf("Ancestors() not sorted by height: %v", anc)
		}
	}
}

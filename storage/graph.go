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
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/arcuru/eidetica/entry"
)

// Graph is a shared, backend-agnostic implementation of the traversal
// primitives required by spec §4.2 (tips, ancestors, path-between,
// merge-base), operating over a fully materialized set of entries for one
// tree. Every Backend implementation builds (or incrementally maintains) a
// Graph per tree and delegates its traversal methods to it, so traversal
// logic is written and tested once instead of once per backend.
//
// Graph assigns each entry a dense sequence number so that large ancestor
// sets can be tracked with a compressed roaring.Bitmap instead of a
// map[entry.ID]bool, keeping memory and set-operation cost manageable for
// trees with many thousands of entries.
type Graph struct {
	entries map[entry.ID]*entry.Entry
	seq     map[entry.ID]uint32
	ids     []entry.ID // seq -> ID
}

// NewGraph builds a Graph over entries. entries need not be in any
// particular order; Graph assigns sequence numbers in iteration order,
// which only needs to be stable within a single Graph instance.
func NewGraph(entries map[entry.ID]*entry.Entry) *Graph {
	g := &Graph{
		entries: entries,
		seq:     make(map[entry.ID]uint32, len(entries)),
		ids:     make([]entry.ID, 0, len(entries)),
	}
	for id := range entries {
		g.seq[id] = uint32(len(g.ids))
		g.ids = append(g.ids, id)
	}
	return g
}

func (g *Graph) get(id entry.ID) (*entry.Entry, bool) {
	e, ok := g.entries[id]
	return e, ok
}

// parentsOf returns id's parents in the given scope (MainTree or a named
// subtree). An entry not participating in subtree contributes no parents
// and is treated as absent from that subtree's DAG.
func parentsOf(e *entry.Entry, subtree string) []entry.ID {
	if subtree == MainTree {
		return e.Parents()
	}
	return e.SubtreeParents(subtree)
}

func heightOf(e *entry.Entry, subtree string) uint64 {
	if subtree == MainTree {
		return e.Tree.Height
	}
	return e.SubtreeHeight(subtree)
}

func participates(e *entry.Entry, subtree string) bool {
	if subtree == MainTree {
		return true
	}
	return e.HasSubtree(subtree)
}

// byHeightThenID sorts IDs by (height asc, ID asc), the total order spec §4.2
// requires of every returned sequence.
func (g *Graph) byHeightThenID(ids []entry.ID, subtree string) []entry.ID {
	out := append([]entry.ID(nil), ids...)
	sort.Slice(out, func(i, j int) bool {
		ei, oki := g.get(out[i])
		ej, okj := g.get(out[j])
		var hi, hj uint64
		if oki {
			hi = heightOf(ei, subtree)
		}
		if okj {
			hj = heightOf(ej, subtree)
		}
		if hi != hj {
			return hi < hj
		}
		return out[i] < out[j]
	})
	return out
}

// Tips returns the IDs with no children within subtree, sorted.
func (g *Graph) Tips(subtree string) []entry.ID {
	hasChild := roaring.New()
	for _, e := range g.entries {
		if !participates(e, subtree) {
			continue
		}
		for _, p := range parentsOf(e, subtree) {
			if ps, ok := g.seq[p]; ok {
				hasChild.Add(ps)
			}
		}
	}
	var tips []entry.ID
	for id, e := range g.entries {
		if !participates(e, subtree) {
			continue
		}
		if !hasChild.Contains(g.seq[id]) {
			tips = append(tips, id)
		}
	}
	return g.byHeightThenID(tips, subtree)
}

// TipsUpTo returns the tips of subtree reachable from frontier, a set of
// main-tree entries. For MainTree this is entries within Ancestors(frontier)
// with no child also in that ancestor set. For a named subtree, frontier
// entries generally won't themselves carry the subtree (most entries never
// touch most subtrees), so a plain subtree-parent walk from frontier would
// dead-end immediately; instead this walks frontier's main-tree ancestry,
// and for each path returns the first entry encountered that does carry
// subtree — that entry's own subtree-parent chain already covers everything
// further back, so the walk along that path stops there.
func (g *Graph) TipsUpTo(frontier []entry.ID, subtree string) []entry.ID {
	if subtree == MainTree {
		reachable := g.ancestorSet(frontier, MainTree)
		hasChild := roaring.New()
		it := reachable.Iterator()
		for it.HasNext() {
			seq := it.Next()
			e, ok := g.get(g.ids[seq])
			if !ok {
				continue
			}
			for _, p := range e.Parents() {
				if ps, ok := g.seq[p]; ok && reachable.Contains(ps) {
					hasChild.Add(ps)
				}
			}
		}
		var tips []entry.ID
		it = reachable.Iterator()
		for it.HasNext() {
			seq := it.Next()
			if !hasChild.Contains(seq) {
				tips = append(tips, g.ids[seq])
			}
		}
		return g.byHeightThenID(tips, subtree)
	}

	visited := roaring.New()
	var tips []entry.ID
	queue := append([]entry.ID(nil), frontier...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		seq, ok := g.seq[id]
		if !ok || visited.Contains(seq) {
			continue
		}
		visited.Add(seq)
		e, ok := g.get(id)
		if !ok {
			continue
		}
		if participates(e, subtree) {
			tips = append(tips, id)
			continue
		}
		queue = append(queue, e.Parents()...)
	}
	return g.byHeightThenID(tips, subtree)
}

// ancestorSet returns the set (as a roaring bitmap of sequence numbers) of
// every entry reachable from ids by following parent edges within subtree,
// inclusive of ids themselves.
func (g *Graph) ancestorSet(ids []entry.ID, subtree string) *roaring.Bitmap {
	visited := roaring.New()
	queue := make([]entry.ID, 0, len(ids))
	for _, id := range ids {
		if seq, ok := g.seq[id]; ok && !visited.Contains(seq) {
			visited.Add(seq)
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		e, ok := g.get(id)
		if !ok || !participates(e, subtree) {
			continue
		}
		for _, p := range parentsOf(e, subtree) {
			seq, ok := g.seq[p]
			if !ok || visited.Contains(seq) {
				continue
			}
			visited.Add(seq)
			queue = append(queue, p)
		}
	}
	return visited
}

// Ancestors returns every ancestor (inclusive) of ids within subtree, sorted.
func (g *Graph) Ancestors(ids []entry.ID, subtree string) []entry.ID {
	set := g.ancestorSet(ids, subtree)
	out := make([]entry.ID, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		out = append(out, g.ids[it.Next()])
	}
	return g.byHeightThenID(out, subtree)
}

// PathFromTo returns every entry reachable from upper whose ancestor set
// does not also reach below lower, i.e. the entries strictly "after" lower
// and at-or-before upper: Ancestors(upper) minus (Ancestors(lower) minus
// lower itself is kept out since lower is exclusive).
func (g *Graph) PathFromTo(lower, upper []entry.ID, subtree string) []*entry.Entry {
	upperSet := g.ancestorSet(upper, subtree)
	lowerSet := g.ancestorSet(lower, subtree)
	// lower entries themselves are excluded (lower is exclusive), but any
	// of *their* ancestors that upperSet also reaches must be excluded too.
	result := roaring.AndNot(upperSet, lowerSet)
	out := make([]*entry.Entry, 0, result.GetCardinality())
	it := result.Iterator()
	for it.HasNext() {
		id := g.ids[it.Next()]
		if e, ok := g.get(id); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		hi, hj := heightOf(out[i], subtree), heightOf(out[j], subtree)
		if hi != hj {
			return hi < hj
		}
		idi, _ := out[i].ID()
		idj, _ := out[j].ID()
		return idi < idj
	})
	return out
}

// MergeBase returns the deepest common ancestor (inclusive) of ids, the last
// one in (height, ID) order. It does not test for a dominator: when several
// deepest common ancestors exist, it returns the greatest of them even if a
// shallower entry is the one every path back to the root passes through.
// Returns ok=false if none of ids are present in the graph.
func (g *Graph) MergeBase(ids []entry.ID, subtree string) (entry.ID, bool) {
	present := make([]entry.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := g.seq[id]; ok {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return "", false
	}
	if len(present) == 1 {
		return present[0], true
	}

	// Intersect the ancestor sets (inclusive) of every input; the
	// candidates for "merge base" are exactly this intersection.
	var common *roaring.Bitmap
	for _, id := range present {
		set := g.ancestorSet([]entry.ID{id}, subtree)
		if common == nil {
			common = set
		} else {
			common = roaring.And(common, set)
		}
	}
	if common == nil || common.IsEmpty() {
		return "", false
	}

	candidates := make([]entry.ID, 0, common.GetCardinality())
	it := common.Iterator()
	for it.HasNext() {
		candidates = append(candidates, g.ids[it.Next()])
	}
	ordered := g.byHeightThenID(candidates, subtree)

	// The last element of `ordered` is the deepest common ancestor by
	// (height, ID); no dominance check is made.
	return ordered[len(ordered)-1], true
}

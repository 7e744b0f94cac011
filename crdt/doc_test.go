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

import "testing"

func docsEqual(t *testing.T, a, b *Doc) bool {
	t.Helper()
	sa, err := a.Serialize()
	if err != nil {
		t.Fatalf("Serialize() = %v", err)
	}
	sb, err := b.Serialize()
	if err != nil {
		t.Fatalf("Serialize() = %v", err)
	}
	return sa == sb
}

// TestStructuralMergeDisjointCommutes mirrors spec §8 scenario 2: two
// concurrent writers touching disjoint keys converge regardless of merge
// order.
func TestStructuralMergeDisjointCommutes(t *testing.T) {
	a := NewDoc()
	a.Set("a", Text("x"))
	b := NewDoc()
	b.Set("b", Text("y"))

	ab := a.Merge(b).(*Doc)
	ba := b.Merge(a).(*Doc)

	if !docsEqual(t, ab, ba) {
		t.Fatalf("merge(a,b) = %+v, merge(b,a) = %+v, want equal for disjoint keys", ab.Fields, ba.Fields)
	}
	av, _ := ab.GetLive("a")
	bv, _ := ab.GetLive("b")
	if av != Text("x") || bv != Text("y") {
		t.Fatalf("merged doc = %+v, want {a:x, b:y}", ab.Fields)
	}
}

// TestAssociativityAlongFixedOrder verifies merge(merge(A,B),C) ≡
// merge(A,merge(B,C)) when A, B, C are merged in the same left-to-right
// order both times (the order the state engine always uses, per §4.3.3).
func TestAssociativityAlongFixedOrder(t *testing.T) {
	a := NewDoc()
	a.Set("k", Text("from-a"))
	b := NewDoc()
	b.Set("k", Text("from-b"))
	b.Set("only-b", Int(1))
	c := NewDoc()
	c.Set("k", Text("from-c"))

	left := a.Merge(b).(*Doc).Merge(c).(*Doc)
	right := a.Merge(b.Merge(c).(*Doc)).(*Doc)

	if !docsEqual(t, left, right) {
		t.Fatalf("associativity violated: left=%+v right=%+v", left.Fields, right.Fields)
	}
}

func TestIdempotence(t *testing.T) {
	a := NewDoc()
	a.Set("k", Text("v"))
	a.Set("nested", NewDoc())

	merged := a.Merge(a.Clone()).(*Doc)
	if !docsEqual(t, merged, a) {
		t.Fatalf("merge(A,A) = %+v, want == A = %+v", merged.Fields, a.Fields)
	}
}

// TestTombstonePersistence mirrors spec §8 scenario 4.
func TestTombstonePersistence(t *testing.T) {
	a := NewDoc()
	a.Set("k", Text("v"))
	del := NewDoc()
	del.Delete("k")

	merged := a.Merge(del).(*Doc)
	v, ok := merged.Get("k")
	if !ok {
		t.Fatalf("expected tombstoned key to remain present in Fields")
	}
	if _, isTomb := v.(Tomb); !isTomb {
		t.Fatalf("Get(k) = %v, want Tomb", v)
	}
	if _, live := merged.GetLive("k"); live {
		t.Fatalf("GetLive(k) returned a value, want absent")
	}

	// Tombstone wins regardless of which side carries it.
	reversed := del.Merge(a).(*Doc)
	if _, isTomb := reversed.Fields["k"].(Tomb); !isTomb {
		t.Fatalf("tombstone did not win when on the left side")
	}
}

// TestAtomicContagion mirrors spec §8 scenario 3: an atomic replacement
// merged with a later structural update keeps atomic=true so that a further
// merge with older structural data still discards it correctly.
func TestAtomicContagion(t *testing.T) {
	atomic := NewAtomicDoc()
	atomic.Set("n", Text("1"))

	structural := NewDoc()
	structural.Set("m", Text("2"))

	merged := atomic.Merge(structural).(*Doc)
	if !merged.Atomic {
		t.Fatalf("expected contagion: merged.Atomic = false, want true")
	}
	v, ok := merged.GetLive("m")
	if !ok || v != Text("2") {
		t.Fatalf("structural merge into atomic = %+v, want m=2 present", merged.Fields)
	}

	// A further merge against stale structural data must still discard it,
	// because the atomic flag propagated.
	stale := NewDoc()
	stale.Set("n", Text("stale"))
	stale.Set("old-only", Bool(true))
	final := stale.Merge(merged).(*Doc)
	if !final.Atomic {
		t.Fatalf("final.Atomic = false, want true (contagion must survive a further merge)")
	}
	if _, present := final.GetLive("old-only"); present {
		t.Fatalf("final retained pre-replacement key old-only, contagion failed to discard it")
	}
}

func TestMixedTypeConflictNewerWins(t *testing.T) {
	a := NewDoc()
	a.Set("k", Int(1))
	b := NewDoc()
	b.Set("k", Text("two"))

	merged := a.Merge(b).(*Doc)
	v, _ := merged.GetLive("k")
	if v != Text("two") {
		t.Fatalf("mixed-type merge = %v, want Text(two) (newer side wins)", v)
	}
}

func TestNestedDocMergeRecurses(t *testing.T) {
	a := NewDoc()
	inner := NewDoc()
	inner.Set("x", Int(1))
	a.Set("nested", inner)

	b := NewDoc()
	innerB := NewDoc()
	innerB.Set("y", Int(2))
	b.Set("nested", innerB)

	merged := a.Merge(b).(*Doc)
	nested, ok := merged.GetLive("nested")
	if !ok {
		t.Fatalf("expected nested doc to survive merge")
	}
	nd, ok := nested.(*Doc)
	if !ok {
		t.Fatalf("nested value is %T, want *Doc", nested)
	}
	if _, ok := nd.GetLive("x"); !ok {
		t.Errorf("nested doc lost key x from merge")
	}
	if _, ok := nd.GetLive("y"); !ok {
		t.Errorf("nested doc lost key y from merge")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	d := NewDoc()
	d.Set("text", Text("hi"))
	d.Set("int", Int(42))
	d.Set("bool", Bool(true))
	d.Set("list", List{Text("a"), Int(1)})
	d.Delete("gone")
	nested := NewDoc()
	nested.Set("inner", Text("v"))
	d.Set("nested", nested)

	s, err := d.Serialize()
	if err != nil {
		t.Fatalf("Serialize() = %v", err)
	}
	back, err := Deserialize(s)
	if err != nil {
		t.Fatalf("Deserialize() = %v", err)
	}
	if !docsEqual(t, d, back) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back.Fields, d.Fields)
	}
}

func TestDeserializeEmptyStringIsEmptyDoc(t *testing.T) {
	d, err := Deserialize("")
	if err != nil {
		t.Fatalf("Deserialize(\"\") = %v", err)
	}
	if len(d.Fields) != 0 || d.Atomic {
		t.Fatalf("Deserialize(\"\") = %+v, want empty non-atomic doc", d)
	}
}

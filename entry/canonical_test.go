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

import "testing"

// TestCanonicalIDStable verifies scenario 1 of spec §8: re-serializing and
// re-hashing an entry with sig.sig=nil always yields the same ID, regardless
// of the order parents/subtrees were supplied in.
func TestCanonicalIDStable(t *testing.T) {
	build := func(parentOrder []ID) *Entry {
		e, err := NewBuilder(fakeID(9)).
			SetParents(parentOrder).
			SetSubtree("b", nil, "2", 0).
			SetSubtree("a", nil, "1", 0).
			Build()
		if err != nil {
			t.Fatalf("Build() = %v", err)
		}
		return e
	}

	e1 := build([]ID{fakeID(1), fakeID(2)})
	e2 := build([]ID{fakeID(2), fakeID(1)})

	id1, err := ComputeID(e1)
	if err != nil {
		t.Fatalf("ComputeID(e1) = %v", err)
	}
	id2, err := ComputeID(e2)
	if err != nil {
		t.Fatalf("ComputeID(e2) = %v", err)
	}
	if id1 != id2 {
		t.Errorf("ComputeID differs under parent reordering: %s != %s", id1, id2)
	}
	if !id1.Valid() {
		t.Errorf("ComputeID() = %q is not a valid ID", id1)
	}
}

func TestCanonicalBytesExcludeSignature(t *testing.T) {
	e, err := NewBuilder(fakeID(1)).SetParents([]ID{fakeID(1)}).Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	before, err := CanonicalBytes(e)
	if err != nil {
		t.Fatalf("CanonicalBytes() = %v", err)
	}
	sig := "c2lnbmF0dXJl"
	e.Sig.Sig = &sig
	e.Sig.KeyRef = "k1"
	after, err := CanonicalBytes(e)
	if err != nil {
		t.Fatalf("CanonicalBytes() = %v", err)
	}
	// KeyRef is part of canonical bytes (spec §9 "safer interpretation"),
	// but the signature itself never is.
	if string(before) == string(after) {
		t.Fatalf("expected canonical bytes to change once key_ref was set")
	}
	sigFreeAfter := after
	e.Sig.Sig = nil
	recomputed, err := CanonicalBytes(e)
	if err != nil {
		t.Fatalf("CanonicalBytes() = %v", err)
	}
	if string(recomputed) != string(sigFreeAfter) {
		t.Fatalf("setting sig.sig changed canonical bytes: got %s, want %s", sigFreeAfter, recomputed)
	}
}

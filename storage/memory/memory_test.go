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

package memory

import (
	"context"
	"testing"

	"github.com/arcuru/eidetica/entry"
	"github.com/arcuru/eidetica/storage"
)

func buildEntry(t *testing.T, root entry.ID, parents []entry.ID, height uint64) *entry.Entry {
	t.Helper()
	b := entry.NewBuilder(root).SetHeight(height)
	if len(parents) > 0 {
		b.SetParents(parents)
	} else {
		b.AllowReservedSubtree(entry.SubtreeRoot).SetSubtree(entry.SubtreeRoot, nil, "{}", 0)
	}
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}
	return e
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New()
	root := buildEntry(t, "", nil, 0)
	rootID, _ := root.ID()

	if err := b.Put(ctx, storage.Verified, root); err != nil {
		t.Fatalf("Put() = %v", err)
	}
	got, status, err := b.Get(ctx, rootID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if status != storage.Verified {
		t.Errorf("status = %v, want Verified", status)
	}
	gotID, _ := got.ID()
	if gotID != rootID {
		t.Errorf("Get() id = %s, want %s", gotID, rootID)
	}
}

func TestGetNotFound(t *testing.T) {
	b := New()
	_, _, err := b.Get(context.Background(), entry.ID("deadbeef"))
	if !storage.IsNotFound(err) {
		t.Fatalf("Get() err = %v, want ErrNotFound", err)
	}
}

func TestPutIsIdempotentAndNeverDowngrades(t *testing.T) {
	ctx := context.Background()
	b := New()
	root := buildEntry(t, "", nil, 0)
	rootID, _ := root.ID()

	if err := b.Put(ctx, storage.Verified, root); err != nil {
		t.Fatalf("Put() = %v", err)
	}
	if err := b.Put(ctx, storage.Unverified, root); err != nil {
		t.Fatalf("Put() (second) = %v", err)
	}
	_, status, _ := b.Get(ctx, rootID)
	if status != storage.Verified {
		t.Errorf("status after re-put = %v, want Verified (must not downgrade)", status)
	}
}

func TestTipsAfterFork(t *testing.T) {
	ctx := context.Background()
	b := New()
	root := buildEntry(t, "", nil, 0)
	rootID, _ := root.ID()
	if err := b.Put(ctx, storage.Verified, root); err != nil {
		t.Fatal(err)
	}

	t1 := buildEntry(t, rootID, []entry.ID{rootID}, 1)
	t1ID, _ := t1.ID()
	// t2 differs from t1 only in metadata, so the two are distinct siblings.
	t2, err := entry.NewBuilder(rootID).SetParents([]entry.ID{rootID}).SetHeight(1).SetMetadata("t2").Build()
	if err != nil {
		t.Fatal(err)
	}
	t2ID, _ := t2.ID()
	if err := b.Put(ctx, storage.Verified, t1); err != nil {
		t.Fatal(err)
	}
	if err := b.Put(ctx, storage.Verified, t2); err != nil {
		t.Fatal(err)
	}

	tips, err := b.GetTips(ctx, rootID)
	if err != nil {
		t.Fatalf("GetTips() = %v", err)
	}
	if len(tips) != 2 {
		t.Fatalf("GetTips() = %v, want 2 tips (sibling fork)", tips)
	}
	seen := map[entry.ID]bool{tips[0]: true, tips[1]: true}
	if !seen[t1ID] || !seen[t2ID] {
		t.Errorf("GetTips() = %v, want {%s, %s}", tips, t1ID, t2ID)
	}
}

func TestPutRejectsTamperedStructure(t *testing.T) {
	ctx := context.Background()
	b := New()
	root := buildEntry(t, "", nil, 0)

	// A non-root entry missing tree.root could never come out of Builder.Build,
	// but Put must still catch it if it somehow reaches the backend directly
	// (e.g. a corrupted replication payload).
	tampered := &entry.Entry{Tree: entry.TreeMeta{Parents: []entry.ID{mustID(t, root)}}}
	if err := b.Put(ctx, storage.Unverified, tampered); !storage.IsCorruption(err) {
		t.Fatalf("Put(tampered) = %v, want ErrCorruptedEntry", err)
	}
}

func mustID(t *testing.T, e *entry.Entry) entry.ID {
	t.Helper()
	id, err := e.ID()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

var _ storage.Backend = (*Backend)(nil)

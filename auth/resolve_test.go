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

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/arcuru/eidetica/auth"
	"github.com/arcuru/eidetica/entry"
)

// fakeReader is an in-memory auth.DelegationReader for resolver tests: one
// catalogue per tree root, and a configurable Descends verdict.
type fakeReader struct {
	catalogues map[entry.ID]map[string]auth.KeyEntry
	descends   bool
}

func (f *fakeReader) AuthCatalogueAt(_ context.Context, treeID entry.ID, _ []entry.ID) (map[string]auth.KeyEntry, error) {
	return f.catalogues[treeID], nil
}

func (f *fakeReader) Descends(_ context.Context, _ entry.ID, older, newer []entry.ID) (bool, error) {
	if len(older) == 0 {
		return true, nil
	}
	return f.descends, nil
}

func TestResolveDirectKey(t *testing.T) {
	root := entry.ID("root1")
	key, err := auth.GenerateSigningKey("alice")
	if err != nil {
		t.Fatal(err)
	}
	reader := &fakeReader{catalogues: map[entry.ID]map[string]auth.KeyEntry{
		root: {"alice": auth.DirectKey{PubKey: key.PublicKey(), Permission: auth.Write(3), Status: auth.StatusActive}},
	}}
	resolver := auth.NewResolver(reader)

	resolved, err := resolver.Resolve(context.Background(), root, []entry.ID{"tip"}, "alice")
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if resolved.Permission != auth.Write(3) {
		t.Errorf("Resolve() = %s, want write:3", resolved.Permission)
	}
	if !bytes.Equal(resolved.PubKey, key.PublicKey()) {
		t.Errorf("Resolve() PubKey = %x, want %x", resolved.PubKey, key.PublicKey())
	}
}

func TestResolveWildcardFallback(t *testing.T) {
	root := entry.ID("root1")
	reader := &fakeReader{catalogues: map[entry.ID]map[string]auth.KeyEntry{
		root: {auth.WildcardKeyName: auth.DirectKey{Permission: auth.Read, Status: auth.StatusActive}},
	}}
	resolver := auth.NewResolver(reader)

	resolved, err := resolver.Resolve(context.Background(), root, []entry.ID{"tip"}, "unknown-key")
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if resolved.Permission != auth.Read {
		t.Errorf("Resolve() = %s, want read", resolved.Permission)
	}
}

func TestResolveKeyNotFound(t *testing.T) {
	root := entry.ID("root1")
	reader := &fakeReader{catalogues: map[entry.ID]map[string]auth.KeyEntry{root: {}}}
	resolver := auth.NewResolver(reader)

	if _, err := resolver.Resolve(context.Background(), root, []entry.ID{"tip"}, "nobody"); !errors.Is(err, auth.ErrKeyNotFound) {
		t.Fatalf("Resolve() = %v, want ErrKeyNotFound", err)
	}
}

func TestResolveDelegationClamped(t *testing.T) {
	root := entry.ID("root1")
	sub := entry.ID("sub1")
	bobKey, err := auth.GenerateSigningKey("bob")
	if err != nil {
		t.Fatal(err)
	}
	reader := &fakeReader{descends: true, catalogues: map[entry.ID]map[string]auth.KeyEntry{
		root: {"bob": auth.DelegationKey{
			Bounds:   auth.Bounds{Max: auth.Write(10), Min: auth.Read},
			Database: auth.DelegationKeyRef{Root: sub, Tips: []entry.ID{"subtip"}},
		}},
		sub: {"bob": auth.DirectKey{PubKey: bobKey.PublicKey(), Permission: auth.Admin(0), Status: auth.StatusActive}},
	}}
	resolver := auth.NewResolver(reader)

	resolved, err := resolver.Resolve(context.Background(), root, []entry.ID{"tip"}, "bob")
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if resolved.Permission != auth.Write(10) {
		t.Errorf("Resolve() = %s, want write:10 (admin:0 clamped to bounds.Max)", resolved.Permission)
	}
	if !bytes.Equal(resolved.PubKey, bobKey.PublicKey()) {
		t.Errorf("Resolve() PubKey = %x, want the delegated tree's catalogued key %x", resolved.PubKey, bobKey.PublicKey())
	}
}

func TestResolveDelegationTooDeep(t *testing.T) {
	// Every tree in the chain delegates "x" straight back to itself, so
	// depth grows without bound until the guard fires.
	root := entry.ID("loop")
	reader := &fakeReader{descends: true, catalogues: map[entry.ID]map[string]auth.KeyEntry{
		root: {"x": auth.DelegationKey{
			Bounds:   auth.Bounds{Max: auth.Admin(0), Min: auth.Read},
			Database: auth.DelegationKeyRef{Root: root, Tips: []entry.ID{"tip"}},
		}},
	}}
	resolver := auth.NewResolver(reader)

	if _, err := resolver.Resolve(context.Background(), root, []entry.ID{"tip"}, "x"); !errors.Is(err, auth.ErrDelegationTooDeep) {
		t.Fatalf("Resolve() = %v, want ErrDelegationTooDeep", err)
	}
}

func TestResolveDelegationReplayRejected(t *testing.T) {
	root := entry.ID("root1")
	sub := entry.ID("sub1")
	reader := &fakeReader{descends: false, catalogues: map[entry.ID]map[string]auth.KeyEntry{
		root: {"bob": auth.DelegationKey{
			Bounds:   auth.Bounds{Max: auth.Admin(0), Min: auth.Read},
			Database: auth.DelegationKeyRef{Root: sub, Tips: []entry.ID{"subtip-v1"}},
		}},
		sub: {"bob": auth.DirectKey{Permission: auth.Admin(0), Status: auth.StatusActive}},
	}}
	resolver := auth.NewResolver(reader)

	if _, err := resolver.Resolve(context.Background(), root, []entry.ID{"tip"}, "bob"); err != nil {
		t.Fatalf("first Resolve() = %v, want nil", err)
	}

	// A second resolution with tips that don't descend from the first
	// observed snapshot must be rejected as a replay.
	reader.catalogues[root] = map[string]auth.KeyEntry{"bob": auth.DelegationKey{
		Bounds:   auth.Bounds{Max: auth.Admin(0), Min: auth.Read},
		Database: auth.DelegationKeyRef{Root: sub, Tips: []entry.ID{"subtip-v2-not-descended"}},
	}}
	if _, err := resolver.Resolve(context.Background(), root, []entry.ID{"tip"}, "bob"); !errors.Is(err, auth.ErrDelegationReplay) {
		t.Fatalf("second Resolve() = %v, want ErrDelegationReplay", err)
	}
}

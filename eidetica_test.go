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

package eidetica_test

import (
	"context"
	"testing"

	"github.com/arcuru/eidetica/auth"
	"github.com/arcuru/eidetica/crdt"
	"github.com/arcuru/eidetica/storage/memory"

	"github.com/arcuru/eidetica"
)

func TestInstanceCreateAndOpen(t *testing.T) {
	ctx := context.Background()
	inst := eidetica.NewInstance(memory.New())

	adminKey, err := auth.GenerateSigningKey("admin")
	if err != nil {
		t.Fatal(err)
	}

	db, err := inst.Create(ctx, nil, adminKey)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	reopened, err := inst.Open(ctx, db.Root())
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if reopened != db {
		t.Fatal("Open() of a live root should return the cached *Database handle")
	}
}

func TestInstanceOpenUnknownRoot(t *testing.T) {
	ctx := context.Background()
	inst := eidetica.NewInstance(memory.New())
	if _, err := inst.Open(ctx, "does-not-exist"); err == nil {
		t.Fatal("Open(unknown root) = nil, want error")
	}
}

func TestDatabaseTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	inst := eidetica.NewInstance(memory.New())

	adminKey, err := auth.GenerateSigningKey("admin")
	if err != nil {
		t.Fatal(err)
	}
	db, err := inst.Create(ctx, nil, adminKey)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := db.NewTransaction(ctx, &adminKey)
	if err != nil {
		t.Fatalf("NewTransaction() = %v", err)
	}
	tx.Stage("profile").Set("name", crdt.Text("alice"))
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("Commit() = %v", err)
	}

	read, err := db.Read(ctx)
	if err != nil {
		t.Fatalf("Read() = %v", err)
	}
	state, err := read.State("profile")
	if err != nil {
		t.Fatalf("State() = %v", err)
	}
	v, ok := state.GetLive("name")
	if !ok || v != crdt.Text("alice") {
		t.Fatalf("State() = %+v, want name=alice", state.Fields)
	}
}

func TestDatabaseFindSigKeys(t *testing.T) {
	ctx := context.Background()
	inst := eidetica.NewInstance(memory.New())

	adminKey, err := auth.GenerateSigningKey("admin")
	if err != nil {
		t.Fatal(err)
	}
	db, err := inst.Create(ctx, nil, adminKey)
	if err != nil {
		t.Fatal(err)
	}

	writerKey, err := auth.GenerateSigningKey("writer")
	if err != nil {
		t.Fatal(err)
	}
	tx, err := db.NewTransaction(ctx, &adminKey)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Settings().SetAuthKey("writer", auth.DirectKey{
		PubKey:     writerKey.PublicKey(),
		Permission: auth.Write(0),
		Status:     auth.StatusActive,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("Commit(grant writer) = %v", err)
	}

	matches, err := db.FindSigKeys(ctx, writerKey.PublicKey())
	if err != nil {
		t.Fatalf("FindSigKeys() = %v", err)
	}
	if len(matches) != 1 || matches[0].Path != "writer" {
		t.Fatalf("FindSigKeys() = %+v, want exactly one match named \"writer\"", matches)
	}
	if matches[0].Permission.Level != auth.LevelWrite {
		t.Fatalf("FindSigKeys() permission = %+v, want Write", matches[0].Permission)
	}
}

func TestDatabaseSignedModeRequiresKey(t *testing.T) {
	ctx := context.Background()
	inst := eidetica.NewInstance(memory.New())

	adminKey, err := auth.GenerateSigningKey("admin")
	if err != nil {
		t.Fatal(err)
	}
	db, err := inst.Create(ctx, nil, adminKey)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := db.NewTransaction(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	tx.Stage("data").Set("k", crdt.Text("v"))
	if _, err := tx.Commit(); err == nil {
		t.Fatal("Commit(unsigned tx against signed-mode tree) = nil, want error")
	}
}

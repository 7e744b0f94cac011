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

package store_test

import (
	"testing"

	"github.com/arcuru/eidetica/store"
)

type person struct {
	Name string
	Age  int
}

func TestTableInsertGetSetDelete(t *testing.T) {
	host := newFakeHost()
	tbl, err := store.NewTable[person](host, "people", nil)
	if err != nil {
		t.Fatalf("NewTable() = %v", err)
	}

	id, err := tbl.Insert(person{Name: "alice", Age: 30})
	if err != nil {
		t.Fatalf("Insert() = %v", err)
	}

	got, err := tbl.Get(id)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got != (person{Name: "alice", Age: 30}) {
		t.Fatalf("Get() = %+v, want {alice 30}", got)
	}

	if err := tbl.Set(id, person{Name: "alice", Age: 31}); err != nil {
		t.Fatalf("Set() = %v", err)
	}
	got, err = tbl.Get(id)
	if err != nil || got.Age != 31 {
		t.Fatalf("Get() after Set = %+v, %v, want Age 31", got, err)
	}

	tbl.Delete(id)
	if _, err := tbl.Get(id); !store.IsRecordNotFound(err) {
		t.Fatalf("Get(deleted) = %v, want ErrRecordNotFound", err)
	}
}

func TestTableSearch(t *testing.T) {
	host := newFakeHost()
	tbl, err := store.NewTable[person](host, "people", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Insert(person{Name: "alice", Age: 30}); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Insert(person{Name: "bob", Age: 17}); err != nil {
		t.Fatal(err)
	}

	adults, err := tbl.Search(func(p person) bool { return p.Age >= 18 })
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(adults) != 1 {
		t.Fatalf("Search(adults) = %+v, want exactly one match", adults)
	}
	for _, p := range adults {
		if p.Name != "alice" {
			t.Fatalf("Search(adults) matched %q, want alice", p.Name)
		}
	}
}

func TestTableGetMissing(t *testing.T) {
	host := newFakeHost()
	tbl, err := store.NewTable[person](host, "people", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Get("does-not-exist"); !store.IsRecordNotFound(err) {
		t.Fatalf("Get(missing) = %v, want ErrRecordNotFound", err)
	}
}

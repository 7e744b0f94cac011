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

package transaction

import "github.com/arcuru/eidetica/store"

// DocStore acquires (or re-returns) a DocStore handle over subtree name
// (spec §4.6 step 2). Reserved names are rejected by the eventual Commit,
// not here: a read-only viewer legitimately opens one over _settings.
func (t *Transaction) DocStore(name string) (*store.DocStore, error) {
	return store.NewDocStore(t, name, nil)
}

// Table acquires a Table[T] handle over subtree name. Go methods can't carry
// their own type parameters, so this is a package-level function rather than
// a Transaction method.
func Table[T any](t *Transaction, name string) (*store.Table[T], error) {
	return store.NewTable[T](t, name, nil)
}

// Settings returns the SettingsStore for this transaction's tree.
func (t *Transaction) Settings() *store.SettingsStore {
	return store.NewSettingsStore(t)
}

// Index returns a read-only IndexStore view for this transaction's tree.
func (t *Transaction) Index() *store.IndexStore {
	return store.NewIndexStore(t)
}

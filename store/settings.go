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

package store

import (
	"fmt"

	"github.com/arcuru/eidetica/auth"
	"github.com/arcuru/eidetica/crdt"
	"github.com/arcuru/eidetica/entry"
)

const settingsNameKey = "name"

// SettingsStore wraps the _settings DocStore, the system subtree holding a
// tree's display name and its key catalogue (spec §4.4.3). It is never
// registered in _index: _settings is a system subtree.
type SettingsStore struct {
	doc *DocStore
}

// NewSettingsStore returns a SettingsStore. Unlike other Stores it does not
// call RecordIndexEntry.
func NewSettingsStore(host Host) *SettingsStore {
	return &SettingsStore{doc: &DocStore{host: host, name: entry.SubtreeSettings}}
}

// SetName sets the tree's display name.
func (s *SettingsStore) SetName(name string) {
	s.doc.Set(settingsNameKey, crdt.Text(name))
}

// GetName returns the tree's display name, or "" if unset.
func (s *SettingsStore) GetName() (string, error) {
	v, ok, err := s.doc.Get(settingsNameKey)
	if err != nil || !ok {
		return "", err
	}
	text, ok := v.(crdt.Text)
	if !ok {
		return "", nil
	}
	return string(text), nil
}

// authDoc returns the live auth catalogue Doc, applying spec §4.5.3's
// corruption rules.
func (s *SettingsStore) authDoc() (*crdt.Doc, error) {
	merged, err := s.doc.GetAll()
	if err != nil {
		return nil, err
	}
	return auth.ExtractAuthDoc(merged)
}

// GetAuthKey returns the catalogue entry named keyName.
func (s *SettingsStore) GetAuthKey(keyName string) (auth.KeyEntry, bool, error) {
	authDoc, err := s.authDoc()
	if err != nil {
		return nil, false, err
	}
	v, ok := authDoc.GetLive(keyName)
	if !ok {
		return nil, false, nil
	}
	k, err := auth.ParseKeyEntry(v)
	if err != nil {
		return nil, false, err
	}
	return k, true, nil
}

// SetAuthKey stages keyName -> entry into the auth catalogue.
func (s *SettingsStore) SetAuthKey(keyName string, k auth.KeyEntry) error {
	var encoded *crdt.Doc
	switch t := k.(type) {
	case auth.DirectKey:
		encoded = auth.EncodeDirectKey(t)
	case auth.DelegationKey:
		encoded = auth.EncodeDelegationKey(t)
	default:
		return fmt.Errorf("store: unknown key entry type %T", k)
	}
	authStage := s.doc.host.Stage(entry.SubtreeSettings)
	nested, ok := authStage.Fields[auth.AuthDocKey].(*crdt.Doc)
	if !ok {
		nested = crdt.NewDoc()
		authStage.Set(auth.AuthDocKey, nested)
	}
	nested.Set(keyName, encoded)
	return nil
}

// RevokeAuthKey marks keyName's status as revoked without removing the
// entry, so permission history stays auditable.
func (s *SettingsStore) RevokeAuthKey(keyName string) error {
	existing, ok, err := s.GetAuthKey(keyName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("store: %q: %w", keyName, auth.ErrKeyNotFound)
	}
	direct, ok := existing.(auth.DirectKey)
	if !ok {
		return fmt.Errorf("store: %q is a delegation, cannot revoke directly", keyName)
	}
	direct.Status = auth.StatusRevoked
	return s.SetAuthKey(keyName, direct)
}

// UpdateAuth reads the current auth catalogue Doc, lets mutate edit it in
// place, and stages the result. This is the primitive key-management
// operations (bootstrap, bulk edits) build on.
func (s *SettingsStore) UpdateAuth(mutate func(authDoc *crdt.Doc)) error {
	authDoc, err := s.authDoc()
	if err != nil {
		return err
	}
	clone := authDoc.Clone()
	mutate(clone)
	s.doc.host.Stage(entry.SubtreeSettings).Set(auth.AuthDocKey, clone)
	return nil
}

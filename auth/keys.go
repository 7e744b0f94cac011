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

package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/arcuru/eidetica/crdt"
	"github.com/arcuru/eidetica/entry"
)

// KeyStatus is a direct key's activation state (spec §4.5.1).
type KeyStatus int

const (
	StatusActive KeyStatus = iota
	StatusRevoked
)

// WildcardKeyName is the catalogue entry applied to keys with no explicit
// entry (spec §4.5.1).
const WildcardKeyName = "*"

const keyFieldPubkey = "pubkey"
const keyFieldPermissions = "permissions"
const keyFieldStatus = "status"
const keyFieldBounds = "permission_bounds"
const keyFieldBoundsMax = "max"
const keyFieldBoundsMin = "min"
const keyFieldDatabase = "database"
const keyFieldDatabaseRoot = "root"
const keyFieldDatabaseTips = "tips"

// DirectKey is a catalogue entry naming a public key directly.
type DirectKey struct {
	PubKey     ed25519.PublicKey
	Permission Permission
	Status     KeyStatus
}

// DelegationKeyRef identifies the delegated database and the tip snapshot
// its sub-key catalogue is resolved against (spec §4.5.1).
type DelegationKeyRef struct {
	Root entry.ID
	Tips []entry.ID
}

// DelegationKey is a catalogue entry that defers resolution to another
// database's own key catalogue, clamped into Bounds (spec §4.5.1, §4.5.4).
type DelegationKey struct {
	Bounds   Bounds
	Database DelegationKeyRef
}

// KeyEntry is either a DirectKey or a DelegationKey.
type KeyEntry interface{ isKeyEntry() }

func (DirectKey) isKeyEntry()     {}
func (DelegationKey) isKeyEntry() {}

// ParseKeyPubKey decodes the "ed25519:<base64>" key format (spec §6).
func ParseKeyPubKey(s string) (ed25519.PublicKey, error) {
	const prefix = "ed25519:"
	if !strings.HasPrefix(s, prefix) {
		return nil, fmt.Errorf("auth: pubkey %q: %w", s, ErrMalformedKeyEntry)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, prefix))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("auth: pubkey %q: %w", s, ErrMalformedKeyEntry)
	}
	return ed25519.PublicKey(raw), nil
}

// FormatKeyPubKey encodes a public key back to its wire form.
func FormatKeyPubKey(pub ed25519.PublicKey) string {
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub)
}

// ParseKeyEntry decodes one _settings.auth value into a KeyEntry.
func ParseKeyEntry(v crdt.Value) (KeyEntry, error) {
	doc, ok := v.(*crdt.Doc)
	if !ok {
		return nil, fmt.Errorf("auth: key entry is %T, want a Doc: %w", v, ErrMalformedKeyEntry)
	}
	if _, ok := doc.GetLive(keyFieldDatabase); ok {
		return parseDelegationKey(doc)
	}
	return parseDirectKey(doc)
}

func parseDirectKey(doc *crdt.Doc) (DirectKey, error) {
	pubkeyV, ok := doc.GetLive(keyFieldPubkey)
	if !ok {
		return DirectKey{}, fmt.Errorf("auth: missing %q: %w", keyFieldPubkey, ErrMalformedKeyEntry)
	}
	pubkeyText, ok := pubkeyV.(crdt.Text)
	if !ok {
		return DirectKey{}, fmt.Errorf("auth: %q not text: %w", keyFieldPubkey, ErrMalformedKeyEntry)
	}
	pub, err := ParseKeyPubKey(string(pubkeyText))
	if err != nil {
		return DirectKey{}, err
	}

	permV, ok := doc.GetLive(keyFieldPermissions)
	if !ok {
		return DirectKey{}, fmt.Errorf("auth: missing %q: %w", keyFieldPermissions, ErrMalformedKeyEntry)
	}
	permText, ok := permV.(crdt.Text)
	if !ok {
		return DirectKey{}, fmt.Errorf("auth: %q not text: %w", keyFieldPermissions, ErrMalformedKeyEntry)
	}
	perm, err := ParsePermission(string(permText))
	if err != nil {
		return DirectKey{}, err
	}

	status := StatusActive
	if statusV, ok := doc.GetLive(keyFieldStatus); ok {
		if statusText, ok := statusV.(crdt.Text); ok && string(statusText) == "revoked" {
			status = StatusRevoked
		}
	}
	return DirectKey{PubKey: pub, Permission: perm, Status: status}, nil
}

func parseDelegationKey(doc *crdt.Doc) (DelegationKey, error) {
	boundsV, ok := doc.GetLive(keyFieldBounds)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: missing %q: %w", keyFieldBounds, ErrMalformedKeyEntry)
	}
	boundsDoc, ok := boundsV.(*crdt.Doc)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: %q not a Doc: %w", keyFieldBounds, ErrMalformedKeyEntry)
	}
	maxV, ok := boundsDoc.GetLive(keyFieldBoundsMax)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: missing %q.%q: %w", keyFieldBounds, keyFieldBoundsMax, ErrMalformedKeyEntry)
	}
	maxText, ok := maxV.(crdt.Text)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: %q.%q not text: %w", keyFieldBounds, keyFieldBoundsMax, ErrMalformedKeyEntry)
	}
	maxPerm, err := ParsePermission(string(maxText))
	if err != nil {
		return DelegationKey{}, err
	}
	minPerm := Read
	if minV, ok := boundsDoc.GetLive(keyFieldBoundsMin); ok {
		minText, ok := minV.(crdt.Text)
		if !ok {
			return DelegationKey{}, fmt.Errorf("auth: %q.%q not text: %w", keyFieldBounds, keyFieldBoundsMin, ErrMalformedKeyEntry)
		}
		minPerm, err = ParsePermission(string(minText))
		if err != nil {
			return DelegationKey{}, err
		}
	}

	dbV, _ := doc.GetLive(keyFieldDatabase)
	dbDoc, ok := dbV.(*crdt.Doc)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: %q not a Doc: %w", keyFieldDatabase, ErrMalformedKeyEntry)
	}
	rootV, ok := dbDoc.GetLive(keyFieldDatabaseRoot)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: missing %q.%q: %w", keyFieldDatabase, keyFieldDatabaseRoot, ErrMalformedKeyEntry)
	}
	rootText, ok := rootV.(crdt.Text)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: %q.%q not text: %w", keyFieldDatabase, keyFieldDatabaseRoot, ErrMalformedKeyEntry)
	}
	tipsV, ok := dbDoc.GetLive(keyFieldDatabaseTips)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: missing %q.%q: %w", keyFieldDatabase, keyFieldDatabaseTips, ErrMalformedKeyEntry)
	}
	tipsList, ok := tipsV.(crdt.List)
	if !ok {
		return DelegationKey{}, fmt.Errorf("auth: %q.%q not a list: %w", keyFieldDatabase, keyFieldDatabaseTips, ErrMalformedKeyEntry)
	}
	tips := make([]entry.ID, 0, len(tipsList))
	for _, item := range tipsList {
		text, ok := item.(crdt.Text)
		if !ok {
			return DelegationKey{}, fmt.Errorf("auth: tip entry not text: %w", ErrMalformedKeyEntry)
		}
		tips = append(tips, entry.ID(text))
	}

	return DelegationKey{
		Bounds:   Bounds{Max: maxPerm, Min: minPerm},
		Database: DelegationKeyRef{Root: entry.ID(rootText), Tips: tips},
	}, nil
}

// EncodeDirectKey renders k into the Doc shape ParseKeyEntry understands, for
// SettingsStore writers (spec §4.5.1).
func EncodeDirectKey(k DirectKey) *crdt.Doc {
	d := crdt.NewDoc()
	d.Set(keyFieldPubkey, crdt.Text(FormatKeyPubKey(k.PubKey)))
	d.Set(keyFieldPermissions, crdt.Text(k.Permission.String()))
	status := "active"
	if k.Status == StatusRevoked {
		status = "revoked"
	}
	d.Set(keyFieldStatus, crdt.Text(status))
	return d
}

// EncodeDelegationKey renders k into the Doc shape ParseKeyEntry understands.
func EncodeDelegationKey(k DelegationKey) *crdt.Doc {
	bounds := crdt.NewDoc()
	bounds.Set(keyFieldBoundsMax, crdt.Text(k.Bounds.Max.String()))
	bounds.Set(keyFieldBoundsMin, crdt.Text(k.Bounds.Min.String()))

	tips := make(crdt.List, 0, len(k.Database.Tips))
	for _, t := range k.Database.Tips {
		tips = append(tips, crdt.Text(t))
	}
	database := crdt.NewDoc()
	database.Set(keyFieldDatabaseRoot, crdt.Text(k.Database.Root))
	database.Set(keyFieldDatabaseTips, tips)

	d := crdt.NewDoc()
	d.Set(keyFieldBounds, bounds)
	d.Set(keyFieldDatabase, database)
	return d
}

// AuthDocKey is the DocStore key under which _settings holds the auth
// catalogue Doc.
const AuthDocKey = "auth"

// ParseCatalogue decodes every live entry of an auth catalogue Doc.
func ParseCatalogue(authDoc *crdt.Doc) (map[string]KeyEntry, error) {
	out := make(map[string]KeyEntry, len(authDoc.Fields))
	for name := range authDoc.Fields {
		v, ok := authDoc.GetLive(name)
		if !ok {
			continue
		}
		k, err := ParseKeyEntry(v)
		if err != nil {
			return nil, fmt.Errorf("auth: catalogue entry %q: %w", name, err)
		}
		out[name] = k
	}
	return out, nil
}

// ExtractAuthDoc pulls the nested auth catalogue Doc out of a _settings
// state Doc, applying spec §4.5.3's corruption rules: missing/absent is the
// unsigned-mode empty catalogue; present-but-wrong-shaped is corruption.
func ExtractAuthDoc(settings *crdt.Doc) (*crdt.Doc, error) {
	v, ok := settings.Get(AuthDocKey)
	if !ok {
		return crdt.NewDoc(), nil
	}
	if _, isTomb := v.(crdt.Tomb); isTomb {
		return nil, fmt.Errorf("auth: settings.auth deleted: %w", ErrCorruptedAuthConfiguration)
	}
	doc, ok := v.(*crdt.Doc)
	if !ok {
		return nil, fmt.Errorf("auth: settings.auth is %T, want a Doc: %w", v, ErrCorruptedAuthConfiguration)
	}
	return doc, nil
}

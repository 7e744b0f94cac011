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
	"errors"
	"testing"

	"github.com/arcuru/eidetica/auth"
	"github.com/arcuru/eidetica/entry"
)

func TestSignAndVerify(t *testing.T) {
	key, err := auth.GenerateSigningKey("alice")
	if err != nil {
		t.Fatalf("GenerateSigningKey() = %v", err)
	}
	msg := []byte("canonical bytes go here")
	sig := key.Sign(msg)

	if err := auth.VerifySignature(key.PublicKey(), msg, sig); err != nil {
		t.Fatalf("VerifySignature() = %v", err)
	}

	other, err := auth.GenerateSigningKey("mallory")
	if err != nil {
		t.Fatal(err)
	}
	if err := auth.VerifySignature(other.PublicKey(), msg, sig); !errors.Is(err, auth.ErrInvalidSignature) {
		t.Fatalf("VerifySignature() with wrong key = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyEntrySignature(t *testing.T) {
	key, err := auth.GenerateSigningKey("alice")
	if err != nil {
		t.Fatal(err)
	}

	e, err := entry.NewBuilder("").AllowReservedSubtree(entry.SubtreeRoot).
		SetSubtree(entry.SubtreeRoot, nil, "{}", 0).Build()
	if err != nil {
		t.Fatal(err)
	}
	e.Sig.KeyRef = key.Name
	unsigned := *e
	unsigned.Sig = entry.SigInfo{KeyRef: key.Name}
	b, err := entry.CanonicalBytes(&unsigned)
	if err != nil {
		t.Fatal(err)
	}
	sig := key.Sign(b)
	e.Sig.Sig = &sig

	if err := auth.VerifyEntrySignature(e, key.PublicKey()); err != nil {
		t.Fatalf("VerifyEntrySignature() = %v", err)
	}

	tampered := *e
	tampered.Sig.KeyRef = "someone-else"
	if err := auth.VerifyEntrySignature(&tampered, key.PublicKey()); !errors.Is(err, auth.ErrInvalidSignature) {
		t.Fatalf("VerifyEntrySignature(tampered) = %v, want ErrInvalidSignature", err)
	}

	unsignedEntry, err := entry.NewBuilder("").AllowReservedSubtree(entry.SubtreeRoot).
		SetSubtree(entry.SubtreeRoot, nil, "{}", 0).Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := auth.VerifyEntrySignature(unsignedEntry, key.PublicKey()); !errors.Is(err, auth.ErrInvalidSignature) {
		t.Fatalf("VerifyEntrySignature(no signature) = %v, want ErrInvalidSignature", err)
	}
}

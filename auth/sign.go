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

	"github.com/arcuru/eidetica/entry"
)

// SigningKey is a named Ed25519 key pair a Transaction signs commits with.
// crypto/ed25519 in the standard library already provides generation,
// signing, and verification; this type only adds the key-name Eidetica's
// key catalogue addresses keys by.
type SigningKey struct {
	Name    string
	Private ed25519.PrivateKey
}

// GenerateSigningKey creates a fresh Ed25519 key pair named name.
func GenerateSigningKey(name string) (SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return SigningKey{}, fmt.Errorf("auth: generating key: %w", err)
	}
	return SigningKey{Name: name, Private: priv}, nil
}

// Sign signs canonicalBytes (an entry's canonical bytes with sig.sig unset)
// and returns the base64 signature to store in sig.sig (spec §4.5.5).
func (k SigningKey) Sign(canonicalBytes []byte) string {
	sig := ed25519.Sign(k.Private, canonicalBytes)
	return base64.StdEncoding.EncodeToString(sig)
}

// PublicKey returns the public half of k.
func (k SigningKey) PublicKey() ed25519.PublicKey {
	return k.Private.Public().(ed25519.PublicKey)
}

// VerifySignature checks sigB64 against canonicalBytes under pub.
func VerifySignature(pub ed25519.PublicKey, canonicalBytes []byte, sigB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("auth: decoding signature: %w", ErrInvalidSignature)
	}
	if !ed25519.Verify(pub, canonicalBytes, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyEntrySignature recomputes e's canonical bytes with sig.sig cleared
// and verifies e.Sig.Sig against pub (spec §4.5.5 "to verify").
func VerifyEntrySignature(e *entry.Entry, pub ed25519.PublicKey) error {
	if e.Sig.Sig == nil {
		return fmt.Errorf("auth: entry has no signature: %w", ErrInvalidSignature)
	}
	unsigned := *e
	unsigned.Sig = entry.SigInfo{KeyRef: e.Sig.KeyRef}
	b, err := entry.CanonicalBytes(&unsigned)
	if err != nil {
		return fmt.Errorf("auth: recomputing canonical bytes: %w", err)
	}
	return VerifySignature(pub, b, *e.Sig.Sig)
}

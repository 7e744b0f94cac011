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

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalBytes produces the deterministic byte serialization of e used
// both for content addressing and as the payload signed by Ed25519: sorted
// parents, sorted subtrees, and Sig.Sig forced to nil, encoded as UTF-8
// JSON with HTML-escaping disabled so the bytes are stable regardless of
// what the Go standard library's default escaping happens to do to angle
// brackets or ampersands in user data.
//
// tree.metadata is included in the hashed bytes: spec.md leaves this as an
// open question, and this implementation takes the "safer interpretation"
// the spec itself recommends for sig.key_ref (commit more, not less, to the
// ID) — see DESIGN.md.
func CanonicalBytes(e *Entry) ([]byte, error) {
	clone := cloneForCanonicalization(e)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(clone); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; strip it so the bytes
	// are exactly the JSON document with no incidental whitespace.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// cloneForCanonicalization returns a deep copy of e with Sig.Sig cleared and
// all parent/subtree orderings normalized, ready for deterministic encoding.
func cloneForCanonicalization(e *Entry) *Entry {
	clone := &Entry{
		Tree: TreeMeta{
			Root:     e.Tree.Root,
			Parents:  sortedDedupedIDs(e.Tree.Parents),
			Metadata: e.Tree.Metadata,
			Height:   e.Tree.Height,
		},
		Sig: SigInfo{
			KeyRef: e.Sig.KeyRef,
			Sig:    nil,
		},
	}
	clone.Subtrees = make([]SubTreeNode, len(e.Subtrees))
	for i, st := range e.Subtrees {
		clone.Subtrees[i] = SubTreeNode{
			Name:    st.Name,
			Parents: sortedDedupedIDs(st.Parents),
			Data:    st.Data,
			Height:  st.Height,
		}
	}
	sort.Slice(clone.Subtrees, func(i, j int) bool {
		return clone.Subtrees[i].Name < clone.Subtrees[j].Name
	})
	return clone
}

func sortedDedupedIDs(ids []ID) []ID {
	if len(ids) == 0 {
		return []ID{}
	}
	out := make([]ID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	deduped := out[:1]
	for _, id := range out[1:] {
		if id != deduped[len(deduped)-1] {
			deduped = append(deduped, id)
		}
	}
	return deduped
}

// idFromBytes hashes canonical bytes into an ID.
func idFromBytes(b []byte) ID {
	sum := sha256.Sum256(b)
	return ID(hex.EncodeToString(sum[:]))
}

// ComputeID is CanonicalBytes followed by SHA-256 and hex-encoding, i.e.
// id(entry) = hex(sha256(canonical_bytes(entry))) from spec §4.1.
func ComputeID(e *Entry) (ID, error) {
	b, err := CanonicalBytes(e)
	if err != nil {
		return "", err
	}
	return idFromBytes(b), nil
}

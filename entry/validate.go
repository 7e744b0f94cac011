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
	"fmt"

	"github.com/c2h5oh/datasize"
)

// Validate re-checks the structural invariants Builder.Build already
// enforced before an entry was signed and handed to a Backend (spec §7: a
// storage backend must re-validate structure on Put, independent of however
// the entry reached it). It does not repeat reserved-subtree-writer or
// permission checks, which depend on auth context a Backend doesn't have;
// it only rejects entries that could never have come out of Build.
func Validate(e *Entry) error {
	isRoot := len(e.Tree.Parents) == 0
	if !isRoot {
		for _, p := range e.Tree.Parents {
			if p == "" || !p.Valid() {
				return fmt.Errorf("validate: parent %q: %w", p, ErrEmptyParentID)
			}
		}
		if err := validateID(e.Tree.Root, "validate: tree.root"); err != nil {
			return err
		}
	} else if e.Tree.Root != "" {
		if err := validateID(e.Tree.Root, "validate: tree.root"); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(e.Subtrees))
	for _, st := range e.Subtrees {
		if seen[st.Name] {
			return fmt.Errorf("validate: %q: %w", st.Name, ErrDuplicateSubtreeName)
		}
		seen[st.Name] = true
		for _, p := range st.Parents {
			if p == "" || !p.Valid() {
				return fmt.Errorf("validate: subtree %q parent %q: %w", st.Name, p, ErrEmptyParentID)
			}
		}
	}

	b, err := CanonicalBytes(e)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if datasize.ByteSize(len(b)) > MaxEntrySize {
		return fmt.Errorf("validate: %d bytes exceeds %s: %w", len(b), MaxEntrySize, ErrEntrySizeExceeded)
	}
	return nil
}

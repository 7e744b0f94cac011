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
	"fmt"

	"github.com/arcuru/eidetica/entry"
)

// anyPriority is the least-strict priority within a level: any actual
// priority value satisfies a requirement pinned to it, since Satisfies
// compares p.Priority <= required.Priority.
const anyPriority = ^uint32(0)

// RequireAdmin, RequireWrite and RequireRead are the fixed per-operation
// requirements of spec §4.5.2: "read = Read; data write = Write; _settings
// write = Admin; key management = Admin". None of them pin a specific
// priority — priority-sensitive checks only arise between two Admin keys
// (see Permission.Dominates), not between an operation and a key.
var (
	RequireRead  = Read
	RequireWrite = Permission{Level: LevelWrite, Priority: anyPriority}
	RequireAdmin = Permission{Level: LevelAdmin, Priority: anyPriority}
)

// RequiredPermission returns the permission a mutation to subtree requires
// (spec §4.5.2).
func RequiredPermission(subtree string) Permission {
	if subtree == entry.SubtreeSettings {
		return RequireAdmin
	}
	return RequireWrite
}

// CheckMutation verifies that resolved satisfies the requirement for
// mutating subtree.
func CheckMutation(resolved Resolved, subtree string) error {
	if resolved.Status == StatusRevoked {
		return fmt.Errorf("auth: key: %w", ErrKeyRevoked)
	}
	required := RequiredPermission(subtree)
	if !resolved.Permission.Satisfies(required) {
		return fmt.Errorf("auth: permission %s does not satisfy %s required for %q: %w",
			resolved.Permission, required, subtree, ErrPermissionDenied)
	}
	return nil
}

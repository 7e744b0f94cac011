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

import "errors"

// Structural validation errors, returned by Build and by Backend.Put when
// re-validating an entry before it is persisted.
var (
	// ErrInvalidIDFormat is returned when an ID is not a 64-character lowercase
	// hex string.
	ErrInvalidIDFormat = errors.New("entry: invalid id format")

	// ErrNonRootWithoutParents is returned when a non-root entry has no main
	// tree parents.
	ErrNonRootWithoutParents = errors.New("entry: non-root entry has no parents")

	// ErrEmptyParentID is returned when a parent slice contains an empty or
	// malformed ID.
	ErrEmptyParentID = errors.New("entry: empty or malformed parent id")

	// ErrDuplicateSubtreeName is returned when two subtree nodes in the same
	// entry share a name.
	ErrDuplicateSubtreeName = errors.New("entry: duplicate subtree name")

	// ErrReservedSubtreeName is returned when a caller attempts to write to a
	// subtree name reserved for internal or external-collaborator use.
	ErrReservedSubtreeName = errors.New("entry: reserved subtree name")

	// ErrEntrySizeExceeded is returned when an entry's canonical encoding
	// exceeds the configured maximum entry size.
	ErrEntrySizeExceeded = errors.New("entry: size exceeds configured maximum")
)

// IsInvalidIDFormat reports whether err is or wraps ErrInvalidIDFormat.
func IsInvalidIDFormat(err error) bool { return errors.Is(err, ErrInvalidIDFormat) }

// IsStructuralError reports whether err is one of the structural validation
// sentinels defined in this package, for callers that only need to know
// "was this a malformed entry" without matching every variant.
func IsStructuralError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidIDFormat),
		errors.Is(err, ErrNonRootWithoutParents),
		errors.Is(err, ErrEmptyParentID),
		errors.Is(err, ErrDuplicateSubtreeName),
		errors.Is(err, ErrReservedSubtreeName),
		errors.Is(err, ErrEntrySizeExceeded):
		return true
	default:
		return false
	}
}

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

// Package storage defines the backend contract entries are persisted
// through, and the DAG traversal primitives (tips, ancestors, merge-base)
// that the CRDT engine and transactions build on. See spec §4.2.
package storage

import (
	"context"
	"errors"

	"github.com/arcuru/eidetica/entry"
)

// VerificationStatus records whether a stored entry's signature has been
// checked against the auth configuration visible at the time it was put.
type VerificationStatus int

const (
	// Unverified entries have not had their signature checked against an
	// auth configuration; used for speculative/staged writes.
	Unverified VerificationStatus = iota
	// Verified entries were checked against _settings.auth at commit time.
	Verified
)

func (s VerificationStatus) String() string {
	if s == Verified {
		return "verified"
	}
	return "unverified"
}

// Sentinel errors, matching spec §6's storage error category.
var (
	ErrNotFound           = errors.New("storage: entry not found")
	ErrStorageUnavailable = errors.New("storage: backend unavailable")
	ErrCorruptedEntry     = errors.New("storage: corrupted entry")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnavailable reports whether err is or wraps ErrStorageUnavailable.
func IsUnavailable(err error) bool { return errors.Is(err, ErrStorageUnavailable) }

// IsCorruption reports whether err is or wraps ErrCorruptedEntry.
func IsCorruption(err error) bool { return errors.Is(err, ErrCorruptedEntry) }

// MainTree is the sentinel subtree name meaning "the main tree DAG, not a
// named subtree", accepted by every subtree-scoped parameter below.
const MainTree = ""

// Backend is the storage contract every persistence layer (in-memory, SQL,
// Redis-fronted, ...) must satisfy. All methods are safe for concurrent use.
type Backend interface {
	// Put stores e with the given verification status. Put re-validates e's
	// structure (spec §4.1) and is idempotent: putting the same ID twice is
	// a no-op returning nil, even if the verification status differs (the
	// higher of the two statuses wins).
	Put(ctx context.Context, status VerificationStatus, e *entry.Entry) error

	// Get retrieves the entry stored under id, or ErrNotFound.
	Get(ctx context.Context, id entry.ID) (*entry.Entry, VerificationStatus, error)

	// GetTips returns the IDs of every entry in treeID with no main-tree
	// children, sorted by (height asc, ID asc).
	GetTips(ctx context.Context, treeID entry.ID) ([]entry.ID, error)

	// GetSubtreeTips returns the tips of the named subtree within treeID.
	GetSubtreeTips(ctx context.Context, treeID entry.ID, subtree string) ([]entry.ID, error)

	// GetSubtreeTipsUpTo returns the subtree's tips reachable from frontier,
	// a chosen set of main-tree entries, rather than from the tree's current
	// tips. Used by transactions basing themselves on non-current tips.
	GetSubtreeTipsUpTo(ctx context.Context, treeID entry.ID, subtree string, frontier []entry.ID) ([]entry.ID, error)

	// AncestorsOf returns every ancestor (inclusive) of ids within treeID,
	// restricted to entries participating in subtree when subtree != MainTree,
	// sorted by (height asc, ID asc).
	AncestorsOf(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) ([]entry.ID, error)

	// PathFromTo returns every entry on a path from lower (exclusive) to
	// upper (inclusive) within treeID/subtree, sorted by (height asc, ID asc).
	PathFromTo(ctx context.Context, treeID entry.ID, lower, upper []entry.ID, subtree string) ([]*entry.Entry, error)

	// MergeBase returns the merge-base of ids within treeID/subtree: the
	// deepest common ancestor by (height, ID); the backends in this module
	// do not check that it is a dominator. ok is false if ids is empty or the
	// tree contains none of them.
	MergeBase(ctx context.Context, treeID entry.ID, ids []entry.ID, subtree string) (id entry.ID, ok bool, err error)
}

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
	"strconv"
	"strings"
)

// Level is a permission's position in the Read < Write < Admin lattice
// (spec §4.5.2).
type Level int

const (
	LevelRead Level = iota
	LevelWrite
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Permission is a level plus, for Write/Admin, a priority where a *lower*
// numeric value means *higher* privilege within that level (spec §4.5.2).
// Read carries no priority.
type Permission struct {
	Level    Level
	Priority uint32
}

// Read is the fixed Read permission.
var Read = Permission{Level: LevelRead}

// Write returns a Write permission at the given priority.
func Write(priority uint32) Permission { return Permission{Level: LevelWrite, Priority: priority} }

// Admin returns an Admin permission at the given priority.
func Admin(priority uint32) Permission { return Permission{Level: LevelAdmin, Priority: priority} }

// Satisfies reports whether p meets a requirement of required: p's level
// must be at least required's, and, when both carry a priority (leveled
// permissions), p's priority must be numerically <= required's (spec
// §4.5.2).
func (p Permission) Satisfies(required Permission) bool {
	if p.Level < required.Level {
		return false
	}
	if p.Level > required.Level {
		return true
	}
	if p.Level == LevelRead {
		return true
	}
	return p.Priority <= required.Priority
}

// Dominates reports whether p may administer a key carrying other: a key may
// only modify keys whose priority number is >= its own (spec §4.5.2), and
// only at Admin level or above.
func (p Permission) Dominates(other Permission) bool {
	if p.Level != LevelAdmin {
		return false
	}
	if other.Level == LevelRead {
		return true
	}
	return p.Priority <= other.Priority
}

func (p Permission) String() string {
	switch p.Level {
	case LevelRead:
		return "read"
	case LevelWrite:
		return fmt.Sprintf("write:%d", p.Priority)
	case LevelAdmin:
		return fmt.Sprintf("admin:%d", p.Priority)
	default:
		return "unknown"
	}
}

// ParsePermission decodes the wire representation used in _settings.auth
// ("admin:<u32>" | "write:<u32>" | "read").
func ParsePermission(s string) (Permission, error) {
	if s == "read" {
		return Read, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Permission{}, fmt.Errorf("auth: permission %q: %w", s, ErrMalformedKeyEntry)
	}
	priority, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Permission{}, fmt.Errorf("auth: permission %q: %w", s, ErrMalformedKeyEntry)
	}
	switch parts[0] {
	case "write":
		return Write(uint32(priority)), nil
	case "admin":
		return Admin(uint32(priority)), nil
	default:
		return Permission{}, fmt.Errorf("auth: permission %q: %w", s, ErrMalformedKeyEntry)
	}
}

// less reports whether a is strictly less privileged than b, under the full
// Read < Write < Admin lattice with lower Priority meaning higher privilege
// within a level.
func less(a, b Permission) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.Level == LevelRead {
		return false
	}
	return a.Priority > b.Priority
}

// Clamp restricts p to lie within [bounds.Min, bounds.Max] (spec §4.5.4 step
// 2). The zero Bounds.Min is Read, the least-privileged floor.
func Clamp(p Permission, bounds Bounds) Permission {
	if less(p, bounds.Min) {
		p = bounds.Min
	}
	if less(bounds.Max, p) {
		p = bounds.Max
	}
	return p
}

// Bounds clamps a delegated permission into a caller-chosen range (spec
// §4.5.1 "permission_bounds").
type Bounds struct {
	Max Permission
	Min Permission
}

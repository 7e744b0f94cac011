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

// Package auth implements Eidetica's key catalogue, permission lattice,
// delegation resolution and Ed25519 signing/verification (spec §4.5).
package auth

import "errors"

// Sentinel errors, matching spec §6's auth error category.
var (
	// ErrCorruptedAuthConfiguration is returned whenever _settings.auth
	// exists but is not a well-formed Doc, or has been tombstoned (spec
	// §4.5.3). Commits that would produce such a state must fail instead.
	ErrCorruptedAuthConfiguration = errors.New("auth: corrupted auth configuration")

	ErrKeyNotFound          = errors.New("auth: key not found")
	ErrKeyRevoked           = errors.New("auth: key revoked")
	ErrUnsignedNotPermitted = errors.New("auth: unsigned entry not permitted under signed mode")
	ErrPermissionDenied     = errors.New("auth: permission denied")
	ErrInvalidSignature     = errors.New("auth: invalid signature")
	ErrDelegationTooDeep    = errors.New("auth: delegation depth exceeded")
	ErrDelegationReplay     = errors.New("auth: delegation tips do not descend from previously observed tips")
	ErrMalformedKeyEntry    = errors.New("auth: malformed key entry")
)

// IsCorruptedAuthConfiguration reports whether err is or wraps
// ErrCorruptedAuthConfiguration.
func IsCorruptedAuthConfiguration(err error) bool {
	return errors.Is(err, ErrCorruptedAuthConfiguration)
}

// IsPermissionDenied reports whether err is or wraps ErrPermissionDenied,
// ErrKeyNotFound, ErrKeyRevoked or ErrUnsignedNotPermitted — the family of
// errors that mean "this operation is not authorized", as opposed to
// ErrCorruptedAuthConfiguration which means the configuration itself is
// broken.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrKeyRevoked) ||
		errors.Is(err, ErrUnsignedNotPermitted)
}

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

// Package crdt implements Eidetica's CRDT engine: the Doc CRDT (structural
// merge with tombstones and atomic-replacement contagion) and the recursive,
// memoized state computation described in spec §4.3.
package crdt

// CRDT is the capability contract every mergeable subtree payload type must
// satisfy (spec §9: "a capability contract over subtree payloads, not
// inheritance"). Doc is the only implementation required by this module;
// external collaborators (e.g. a Y-CRDT integration) may provide others.
type CRDT interface {
	// Merge returns the deterministic merge of the receiver with other.
	// By convention, other is always the logically newer side: callers merge in ascending (height, ID)
	// order along the path produced by the state engine, never in
	// arbitrary order.
	Merge(other CRDT) CRDT

	// Serialize encodes the CRDT to its wire representation.
	Serialize() (string, error)
}

// Default returns an empty Doc, the zero value of the only CRDT this module
// ships. Defined as a function rather than a method since Go has no static
// dispatch on an interface's "default constructor".
func Default() *Doc {
	return NewDoc()
}

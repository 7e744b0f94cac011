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

package crdt

import (
	"fmt"
)

// Value is the sum type a Doc's fields take: Text, Int, Bool, List, a nested
// Doc, or Tombstone (spec §4.3.1). Implemented by the concrete types below
// rather than by inheritance, per spec §9.
type Value interface {
	isValue()
}

// Text is a UTF-8 string value.
type Text string

// Int is a signed integer value.
type Int int64

// Bool is a boolean value.
type Bool bool

// List is an ordered list of values.
type List []Value

// Tomb is the deletion sentinel. A key set to Tomb is never dropped by
// merge; it is carried forward so concurrent replicas converge on "deleted"
// rather than resurrecting a value (spec §4.3.2).
type Tomb struct{}

func (Text) isValue()  {}
func (Int) isValue()   {}
func (Bool) isValue()  {}
func (List) isValue()  {}
func (Tomb) isValue()  {}
func (*Doc) isValue()  {}

// valueEnvelope is the wire representation of a Value: a type discriminator
// plus exactly one populated payload field.
type valueEnvelope struct {
	Type string          `json:"type"`
	Text *string         `json:"text,omitempty"`
	Int  *int64          `json:"int,omitempty"`
	Bool *bool           `json:"bool,omitempty"`
	List []valueEnvelope `json:"list,omitempty"`
	Doc  *docWire        `json:"doc,omitempty"`
}

func marshalValue(v Value) (valueEnvelope, error) {
	switch t := v.(type) {
	case Text:
		s := string(t)
		return valueEnvelope{Type: "text", Text: &s}, nil
	case Int:
		i := int64(t)
		return valueEnvelope{Type: "int", Int: &i}, nil
	case Bool:
		bl := bool(t)
		return valueEnvelope{Type: "bool", Bool: &bl}, nil
	case List:
		items := make([]valueEnvelope, len(t))
		for i, item := range t {
			env, err := marshalValue(item)
			if err != nil {
				return valueEnvelope{}, err
			}
			items[i] = env
		}
		return valueEnvelope{Type: "list", List: items}, nil
	case Tomb:
		return valueEnvelope{Type: "tombstone"}, nil
	case *Doc:
		w, err := t.toWire()
		if err != nil {
			return valueEnvelope{}, err
		}
		return valueEnvelope{Type: "doc", Doc: w}, nil
	default:
		return valueEnvelope{}, fmt.Errorf("crdt: unknown value type %T", v)
	}
}

func unmarshalValue(env valueEnvelope) (Value, error) {
	switch env.Type {
	case "text":
		if env.Text == nil {
			return nil, fmt.Errorf("crdt: text value missing text field")
		}
		return Text(*env.Text), nil
	case "int":
		if env.Int == nil {
			return nil, fmt.Errorf("crdt: int value missing int field")
		}
		return Int(*env.Int), nil
	case "bool":
		if env.Bool == nil {
			return nil, fmt.Errorf("crdt: bool value missing bool field")
		}
		return Bool(*env.Bool), nil
	case "list":
		out := make(List, len(env.List))
		for i, item := range env.List {
			v, err := unmarshalValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case "tombstone":
		return Tomb{}, nil
	case "doc":
		if env.Doc == nil {
			return nil, fmt.Errorf("crdt: doc value missing doc field")
		}
		return fromWire(env.Doc)
	default:
		return nil, fmt.Errorf("crdt: unknown value type %q: %w", env.Type, ErrDeserializationFailed)
	}
}


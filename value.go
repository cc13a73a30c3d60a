// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import "fmt"

// ValueType identifies the shape of a property value.
// The numeric values are the offset-indexed wire tags.
type ValueType uint8

const (
	TypeUnassigned   ValueType = 0
	TypeUInt32       ValueType = 1
	TypeFloat32      ValueType = 2
	TypeString       ValueType = 3
	TypeVec2         ValueType = 4
	TypeVec3         ValueType = 5
	TypeVec4         ValueType = 6
	TypeMat3x3       ValueType = 7
	TypeMat4x4       ValueType = 8
	TypeUInt32Array  ValueType = 9
	TypeFloat32Array ValueType = 10
	TypeByteArray    ValueType = 11
	TypeDeprecated   ValueType = 12
	TypeObjectID     ValueType = 13
	TypeEvent        ValueType = 14

	// TypeMat3x4 only occurs in inline containers, where it uses wire tag 8.
	TypeMat3x4 ValueType = 0x80 | 8
)

var typeNames = map[ValueType]string{
	TypeUnassigned:   "none",
	TypeUInt32:       "uint32",
	TypeFloat32:      "f32",
	TypeString:       "str",
	TypeVec2:         "vec2",
	TypeVec3:         "vec3",
	TypeVec4:         "vec4",
	TypeMat3x3:       "mat3",
	TypeMat4x4:       "mat4",
	TypeMat3x4:       "mat3x4",
	TypeUInt32Array:  "a[uint32]",
	TypeFloat32Array: "a[f32]",
	TypeByteArray:    "a[bytes]",
	TypeDeprecated:   "dep",
	TypeObjectID:     "o_id",
	TypeEvent:        "event",
}

var typesByName = func() map[string]ValueType {
	m := make(map[string]ValueType, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}
	return m
}()

// String returns the lowercase symbolic name used in the text form.
func (t ValueType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseValueType maps a symbolic name back to its type.
func ParseValueType(name string) (ValueType, bool) {
	t, ok := typesByName[name]
	return t, ok
}

// Value is a typed property payload. The set of implementations is closed;
// the concrete type always matches the value's tag.
type Value interface {
	Type() ValueType
	isValue()
}

type (
	U32 uint32
	F32 float32
	Str string

	Vec2   [2]float32
	Vec3   [3]float32
	Vec4   [4]float32
	Mat3x3 [9]float32
	Mat3x4 [12]float32
	Mat4x4 [16]float32

	U32Array []uint32
	F32Array []float32
	Bytes    []byte

	// ObjectID is a 64-bit engine object identifier.
	ObjectID uint64

	// Event is a list of (u32, u32) pairs.
	Event []EventPair

	// Unassigned has no payload. Raw keeps the 4-byte slot as found on
	// disk so it re-encodes unchanged.
	Unassigned struct{ Raw uint32 }
)

// EventPair is one entry of an Event value.
type EventPair struct {
	A, B uint32
}

func (U32) Type() ValueType        { return TypeUInt32 }
func (F32) Type() ValueType        { return TypeFloat32 }
func (Str) Type() ValueType        { return TypeString }
func (Vec2) Type() ValueType       { return TypeVec2 }
func (Vec3) Type() ValueType       { return TypeVec3 }
func (Vec4) Type() ValueType       { return TypeVec4 }
func (Mat3x3) Type() ValueType     { return TypeMat3x3 }
func (Mat3x4) Type() ValueType     { return TypeMat3x4 }
func (Mat4x4) Type() ValueType     { return TypeMat4x4 }
func (U32Array) Type() ValueType   { return TypeUInt32Array }
func (F32Array) Type() ValueType   { return TypeFloat32Array }
func (Bytes) Type() ValueType      { return TypeByteArray }
func (ObjectID) Type() ValueType   { return TypeObjectID }
func (Event) Type() ValueType      { return TypeEvent }
func (Unassigned) Type() ValueType { return TypeUnassigned }

func (U32) isValue()        {}
func (F32) isValue()        {}
func (Str) isValue()        {}
func (Vec2) isValue()       {}
func (Vec3) isValue()       {}
func (Vec4) isValue()       {}
func (Mat3x3) isValue()     {}
func (Mat3x4) isValue()     {}
func (Mat4x4) isValue()     {}
func (U32Array) isValue()   {}
func (F32Array) isValue()   {}
func (Bytes) isValue()      {}
func (ObjectID) isValue()   {}
func (Event) isValue()      {}
func (Unassigned) isValue() {}

// Flatten returns the pairs as a flat list a0, b0, a1, b1, ...
func (e Event) Flatten() []uint32 {
	out := make([]uint32, 0, 2*len(e))
	for _, p := range e {
		out = append(out, p.A, p.B)
	}
	return out
}

// zeroValue returns the empty value of a type, used for empty text bodies.
func zeroValue(t ValueType) (Value, bool) {
	switch t {
	case TypeUnassigned:
		return Unassigned{}, true
	case TypeUInt32:
		return U32(0), true
	case TypeFloat32:
		return F32(0), true
	case TypeString:
		return Str(""), true
	case TypeVec2:
		return Vec2{}, true
	case TypeVec3:
		return Vec3{}, true
	case TypeVec4:
		return Vec4{}, true
	case TypeMat3x3:
		return Mat3x3{}, true
	case TypeMat3x4:
		return Mat3x4{}, true
	case TypeMat4x4:
		return Mat4x4{}, true
	case TypeUInt32Array:
		return U32Array{}, true
	case TypeFloat32Array:
		return F32Array{}, true
	case TypeByteArray:
		return Bytes{}, true
	case TypeObjectID:
		return ObjectID(0), true
	case TypeEvent:
		return Event{}, true
	}
	return nil, false
}

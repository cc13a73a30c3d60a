// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"fmt"
	"math"
)

// tagTable maps between wire tags and value types for one addressing variant.
type tagTable struct {
	toType map[uint8]ValueType
	toTag  map[ValueType]uint8
}

func newTagTable(types ...ValueType) tagTable {
	t := tagTable{toType: map[uint8]ValueType{}, toTag: map[ValueType]uint8{}}
	for _, vt := range types {
		tag := uint8(vt) &^ 0x80
		t.toType[tag] = vt
		t.toTag[vt] = tag
	}
	return t
}

var (
	// Deprecated has a tag but no known payload; it decodes as unsupported.
	indexedTags = newTagTable(
		TypeUnassigned, TypeUInt32, TypeFloat32, TypeString,
		TypeVec2, TypeVec3, TypeVec4, TypeMat3x3, TypeMat4x4,
		TypeUInt32Array, TypeFloat32Array, TypeByteArray,
		TypeDeprecated, TypeObjectID, TypeEvent,
	)
	inlineTags = newTagTable(
		TypeUInt32, TypeFloat32, TypeString,
		TypeVec2, TypeVec3, TypeVec4, TypeMat3x4, TypeEvent,
	)
)

// Tags for a given addressing variant.
func tagsFor(a Addressing) tagTable {
	if a == InlineLinear {
		return inlineTags
	}
	return indexedTags
}

// SupportsType reports whether values of type t can be stored with the
// given addressing.
func SupportsType(a Addressing, t ValueType) bool {
	if t == TypeDeprecated {
		return false
	}
	_, ok := tagsFor(a).toTag[t]
	return ok
}

func unsupported(a Addressing, v Value) error {
	return fmt.Errorf("%w: %s in %s container", ErrUnsupportedValueType, v.Type(), a)
}

// readIndexedValue decodes an offset-indexed value from its header slot.
// Deferred payloads are read at slot and the cursor is restored afterwards;
// the returned offset is the end of the payload, or 0 for slot values.
func readIndexedValue(c *Cursor, tag uint8, slot uint32) (Value, int, error) {
	t, ok := indexedTags.toType[tag]
	if !ok {
		return nil, 0, fmt.Errorf("%w: tag %d", ErrUnknownValueType, tag)
	}
	switch t {
	case TypeUnassigned:
		return Unassigned{Raw: slot}, 0, nil
	case TypeUInt32:
		return U32(slot), 0, nil
	case TypeFloat32:
		return F32(math.Float32frombits(slot)), 0, nil
	case TypeDeprecated:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedValueType, t)
	}

	ret := c.Tell()
	defer c.Seek(ret)
	c.Seek(int(slot))
	v, err := readPayload(c, t)
	return v, c.Tell(), err
}

// readPayload reads the deferred payload of an offset-indexed value.
func readPayload(c *Cursor, t ValueType) (Value, error) {
	switch t {
	case TypeString:
		b, err := c.ReadUntil(NulByte)
		if err != nil {
			return nil, err
		}
		return Str(b), nil
	case TypeVec2, TypeVec3, TypeVec4, TypeMat3x3, TypeMat4x4:
		return readFloats(c, t)
	case TypeObjectID:
		v, err := c.ReadU64()
		return ObjectID(v), err
	case TypeUInt32Array:
		n, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		vs, err := c.ReadU32s(int(n))
		return U32Array(vs), err
	case TypeFloat32Array:
		n, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		vs, err := c.ReadF32s(int(n))
		return F32Array(vs), err
	case TypeByteArray:
		n, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		b, err := c.ReadFixedBytes(int(n))
		return Bytes(b), err
	case TypeEvent:
		return readEvent(c)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownValueType, t)
}

func readFloats(c *Cursor, t ValueType) (Value, error) {
	fs, err := c.ReadF32s(floatCount(t))
	if err != nil {
		return nil, err
	}
	return floatValue(t, fs), nil
}

// floatCount returns the number of components of a fixed vector or matrix.
func floatCount(t ValueType) int {
	switch t {
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	case TypeMat3x3:
		return 9
	case TypeMat3x4:
		return 12
	case TypeMat4x4:
		return 16
	}
	return 0
}

// floatValue wraps exactly floatCount(t) components as a value of type t.
func floatValue(t ValueType, fs []float32) Value {
	switch t {
	case TypeVec2:
		return Vec2(fs)
	case TypeVec3:
		return Vec3(fs)
	case TypeVec4:
		return Vec4(fs)
	case TypeMat3x3:
		return Mat3x3(fs)
	case TypeMat3x4:
		return Mat3x4(fs)
	default:
		return Mat4x4(fs)
	}
}

func readEvent(c *Cursor) (Value, error) {
	n, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	words, err := c.ReadU32s(2 * int(n))
	if err != nil {
		return nil, err
	}
	ev := make(Event, n)
	for i := range ev {
		ev[i] = EventPair{A: words[2*i], B: words[2*i+1]}
	}
	return ev, nil
}

// writeIndexedSlot writes the tag-dependent 4-byte slot of a property header.
// Deferred values get a placeholder whose token is returned with deferred set.
func writeIndexedSlot(c *Cursor, p *Patcher, v Value) (tok Token, deferred bool, err error) {
	if !SupportsType(OffsetIndexed, v.Type()) {
		return Token{}, false, unsupported(OffsetIndexed, v)
	}
	switch v := v.(type) {
	case U32:
		c.WriteU32(uint32(v))
	case F32:
		c.WriteF32(float32(v))
	case Unassigned:
		c.WriteU32(v.Raw)
	default:
		return p.Reserve(c), true, nil
	}
	return Token{}, false, nil
}

// writePayload writes the deferred payload of v, resolving tok to the
// payload's first byte.
func writePayload(c *Cursor, p *Patcher, tok Token, v Value) error {
	if _, ok := v.(Mat4x4); ok {
		c.WriteAlign(PadByte, false)
	}
	p.Resolve(tok, c)

	switch v := v.(type) {
	case Str:
		c.Write([]byte(v))
		c.WriteU8(NulByte)
		c.WriteAlign(PadByte, false)
	case Vec2:
		c.WriteF32s(v[:])
	case Vec3:
		c.WriteF32s(v[:])
	case Vec4:
		c.WriteF32s(v[:])
	case Mat3x3:
		c.WriteF32s(v[:])
	case Mat4x4:
		c.WriteF32s(v[:])
	case ObjectID:
		c.WriteU64(uint64(v))
	case U32Array:
		if err := writeCount32(c, len(v)); err != nil {
			return err
		}
		c.WriteU32s(v)
	case F32Array:
		if err := writeCount32(c, len(v)); err != nil {
			return err
		}
		c.WriteF32s(v)
	case Bytes:
		if err := writeCount32(c, len(v)); err != nil {
			return err
		}
		c.Write(v)
	case Event:
		if err := writeEvent(c, v); err != nil {
			return err
		}
	default:
		return unsupported(OffsetIndexed, v)
	}
	return nil
}

func writeCount32(c *Cursor, n int) error {
	if uint64(n) > math.MaxUint32 {
		return fmt.Errorf("%w: %d elements", ErrCountOverflow, n)
	}
	c.WriteU32(uint32(n))
	return nil
}

func writeEvent(c *Cursor, ev Event) error {
	if err := writeCount32(c, len(ev)); err != nil {
		return err
	}
	for _, pair := range ev {
		c.WriteU32(pair.A)
		c.WriteU32(pair.B)
	}
	return nil
}

// readInlineValue decodes an inline-linear value directly after its tag.
func readInlineValue(c *Cursor, tag uint8) (Value, error) {
	t, ok := inlineTags.toType[tag]
	if !ok {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownValueType, tag)
	}
	switch t {
	case TypeUInt32:
		v, err := c.ReadU32()
		return U32(v), err
	case TypeFloat32:
		v, err := c.ReadF32()
		return F32(v), err
	case TypeString:
		n, err := c.ReadU16()
		if err != nil {
			return nil, err
		}
		b, err := c.ReadFixedBytes(int(n))
		if err != nil {
			return nil, err
		}
		return Str(b), nil
	case TypeEvent:
		return readEvent(c)
	default:
		return readFloats(c, t)
	}
}

// writeInlineValue writes an inline-linear tag and value.
func writeInlineValue(c *Cursor, v Value) error {
	tag, ok := inlineTags.toTag[v.Type()]
	if !ok {
		return unsupported(InlineLinear, v)
	}
	c.WriteU8(tag)
	switch v := v.(type) {
	case U32:
		c.WriteU32(uint32(v))
	case F32:
		c.WriteF32(float32(v))
	case Str:
		if len(v) > math.MaxUint16 {
			return fmt.Errorf("%w: string of %d bytes", ErrCountOverflow, len(v))
		}
		c.WriteU16(uint16(len(v)))
		c.Write([]byte(v))
	case Vec2:
		c.WriteF32s(v[:])
	case Vec3:
		c.WriteF32s(v[:])
	case Vec4:
		c.WriteF32s(v[:])
	case Mat3x4:
		c.WriteF32s(v[:])
	case Event:
		return writeEvent(c, v)
	}
	return nil
}

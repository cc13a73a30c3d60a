// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

// smallIndexedTree is a root with one uint32 and one child holding a string.
func smallIndexedTree() *Tree {
	child := &Container{Hash: 0x33333333, HasHash: true,
		Properties: []*Property{{Hash: 0x44444444, Value: Str("Hello")}}}
	root := &Container{Hash: 0x11111111, HasHash: true,
		Properties: []*Property{{Hash: 0x22222222, Value: U32(5)}},
		Children:   []*Container{child}}
	return NewTree(OffsetIndexed, root)
}

var smallIndexedBytes = []byte{
	'R', 'T', 'P', 'C', 0x01, 0x00, 0x00, 0x00,
	// root header: hash, data offset 0x14, 1 property, 1 child
	0x11, 0x11, 0x11, 0x11, 0x14, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	// root property: hash, value 5, tag uint32, padding
	0x22, 0x22, 0x22, 0x22, 0x05, 0x00, 0x00, 0x00, 0x01, 'P', 'P', 'P',
	// child header: hash, data offset 0x2C, 1 property, 0 children
	0x33, 0x33, 0x33, 0x33, 0x2C, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
	// child property: hash, string at 0x38, tag str, padding
	0x44, 0x44, 0x44, 0x44, 0x38, 0x00, 0x00, 0x00, 0x03, 'P', 'P', 'P',
	'H', 'e', 'l', 'l', 'o', 0x00, 'P', 'P',
}

// fullIndexedTree uses every offset-indexed value type across three levels.
func fullIndexedTree() *Tree {
	leaf := NewContainer("leaf")
	leaf.Properties = []*Property{
		NewProperty("blob", Bytes{1, 2, 3}),
		NewProperty("transform", Mat4x4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 10, 20, 30, 1}),
		NewProperty("events", Event{{A: 1, B: 2}, {A: 0xFFFFFFFF, B: 0x80000000}}),
	}
	mid := NewContainer("mid")
	mid.Properties = []*Property{
		NewProperty("label", Str("odd")),
		NewProperty("ids", U32Array{1, 2, 3, 4}),
		NewProperty("weights", F32Array{0.25, 0.5}),
		NewProperty("object", ObjectID(0x0123456789ABCDEF)),
	}
	mid.Children = []*Container{leaf}
	empty := NewContainer("empty")

	root := NewContainer("root")
	root.Properties = []*Property{
		NewProperty("count", U32(42)),
		NewProperty("scale", F32(1.5)),
		NewProperty("name", Str("Hello")),
		NewProperty("uv", Vec2{0.5, 0.25}),
		NewProperty("position", Vec3{1, 2, 3}),
		NewProperty("color", Vec4{1, 0, 0, 1}),
		NewProperty("rotation", Mat3x3{1, 0, 0, 0, 1, 0, 0, 0, 1}),
		NewProperty("reserved", Unassigned{Raw: 0xABCD}),
	}
	root.Children = []*Container{mid, empty}
	return NewTree(OffsetIndexed, root)
}

func treeDictionary(root *Container) *Dictionary {
	d := NewDictionary()
	root.Walk(func(c *Container) {
		if c.Named {
			d.Set(c.Hash, c.Name)
		}
		for _, p := range c.Properties {
			if p.Named {
				d.Set(p.Hash, p.Name)
			}
		}
	})
	return d
}

// assertSameContainer compares two trees, treating nil and empty slices
// alike.
func assertSameContainer(t *testing.T, path string, want, got *Container) {
	t.Helper()
	if want.Hash != got.Hash || want.Name != got.Name || want.Named != got.Named || want.HasHash != got.HasHash {
		t.Fatalf("%s: container %s/%q/%v, want %s/%q/%v", path,
			FormatHash(got.Hash), got.Name, got.Named, FormatHash(want.Hash), want.Name, want.Named)
	}
	if want.Unk1 != got.Unk1 || want.Unk2 != got.Unk2 {
		t.Errorf("%s: unk %d/%d, want %d/%d", path, got.Unk1, got.Unk2, want.Unk1, want.Unk2)
	}
	if len(want.Properties) != len(got.Properties) {
		t.Fatalf("%s: %d properties, want %d", path, len(got.Properties), len(want.Properties))
	}
	for i, wp := range want.Properties {
		gp := got.Properties[i]
		if wp.Hash != gp.Hash || wp.Name != gp.Name || wp.Named != gp.Named {
			t.Errorf("%s: property %d is %s/%q, want %s/%q", path, i, FormatHash(gp.Hash), gp.Name, FormatHash(wp.Hash), wp.Name)
		}
		if !reflect.DeepEqual(wp.Value, gp.Value) {
			t.Errorf("%s: property %s = %#v, want %#v", path, FormatHash(wp.Hash), gp.Value, wp.Value)
		}
	}
	if len(want.Children) != len(got.Children) {
		t.Fatalf("%s: %d children, want %d", path, len(got.Children), len(want.Children))
	}
	for i := range want.Children {
		assertSameContainer(t, path+"/"+FormatHash(want.Children[i].Hash), want.Children[i], got.Children[i])
	}
}

func TestEncodeOffsetIndexedBytes(t *testing.T) {
	got, err := smallIndexedTree().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(got, smallIndexedBytes) {
		t.Errorf("Encode =\n% X\nwant\n% X", got, smallIndexedBytes)
	}
}

func TestDecodeOffsetIndexedBytes(t *testing.T) {
	tree, err := DecodeOffsetIndexed(smallIndexedBytes, nil)
	if err != nil {
		t.Fatalf("DecodeOffsetIndexed: %v", err)
	}
	assertSameContainer(t, "root", smallIndexedTree().Root, tree.Root)
	if tree.Version != 1 || tree.Addressing != OffsetIndexed {
		t.Errorf("tree = %+v", tree)
	}
}

func TestOffsetIndexedRoundTrip(t *testing.T) {
	tree := fullIndexedTree()
	data, err := tree.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data, treeDictionary(tree.Root))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertSameContainer(t, "root", tree.Root, decoded.Root)

	again, err := decoded.Encode()
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("re-encoded bytes differ: %d vs %d bytes", len(again), len(data))
	}
}

func TestOffsetIndexedLayout(t *testing.T) {
	data, err := fullIndexedTree().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Every container's data offset is aligned, in range, and past its own
	// header.
	var check func(hdr int)
	check = func(hdr int) {
		off := int(binary.LittleEndian.Uint32(data[hdr+4:]))
		props := int(binary.LittleEndian.Uint16(data[hdr+8:]))
		children := int(binary.LittleEndian.Uint16(data[hdr+10:]))
		if off%4 != 0 || off > len(data) || off < hdr+containerHeaderSize {
			t.Fatalf("container at 0x%X has data offset 0x%X", hdr, off)
		}
		for i := 0; i < props; i++ {
			p := off + i*propertyHeaderSize
			tag := data[p+8]
			slot := int(binary.LittleEndian.Uint32(data[p+4:]))
			if tag == uint8(TypeMat4x4) && slot%4 != 0 {
				t.Errorf("mat4 payload at unaligned 0x%X", slot)
			}
		}
		first := off + props*propertyHeaderSize
		first += alignPad(first)
		for i := 0; i < children; i++ {
			check(first + i*containerHeaderSize)
		}
	}
	check(rtpcFileHeaderSize)
}

func TestStringPayloadPadding(t *testing.T) {
	// "Hello" is NUL terminated, then padded with 'P' to a 4-byte boundary.
	tail := smallIndexedBytes[len(smallIndexedBytes)-8:]
	if !bytes.Equal(tail, []byte("Hello\x00PP")) {
		t.Errorf("string payload = %q", tail)
	}
}

func TestMat4x4PayloadAlignment(t *testing.T) {
	root := &Container{Hash: 1, HasHash: true, Properties: []*Property{
		{Hash: 2, Value: Bytes{1, 2, 3}},
		{Hash: 3, Value: Mat4x4{}},
	}}
	data, err := NewTree(OffsetIndexed, root).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Properties at 0x14..0x26, padded to 0x28. Bytes payload is
	// 0x28..0x2F, then one 'P' before the matrix.
	slot := binary.LittleEndian.Uint32(data[0x14+propertyHeaderSize+4:])
	if slot != 0x30 {
		t.Errorf("mat4 offset = 0x%X, want 0x30", slot)
	}
	if data[0x2F] != PadByte {
		t.Errorf("padding byte = %#x, want 'P'", data[0x2F])
	}
	if len(data) != 0x30+64 {
		t.Errorf("length = %d, want %d", len(data), 0x30+64)
	}

	tree, err := DecodeOffsetIndexed(data, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertSameContainer(t, "root", root, tree.Root)
}

// siblingBytes is a root with two children of one uint32 each.
func siblingBytes(t *testing.T) []byte {
	t.Helper()
	root := &Container{Hash: 1, HasHash: true, Children: []*Container{
		{Hash: 2, HasHash: true, Properties: []*Property{{Hash: 10, Value: U32(1)}}},
		{Hash: 3, HasHash: true, Properties: []*Property{{Hash: 11, Value: U32(2)}}},
	}}
	data, err := NewTree(OffsetIndexed, root).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != 68 {
		t.Fatalf("sibling fixture is %d bytes, want 68", len(data))
	}
	return data
}

// payloadSiblingBytes is a root with two children; the first holds a
// string payload and a uint32, the second a uint32.
//
//	0x14 child A header (property count at 0x1C), 0x20 child B header
//	0x2C A properties, 0x40 "Hello", 0x48 B properties, 0x54 end
func payloadSiblingBytes(t *testing.T) []byte {
	t.Helper()
	root := &Container{Hash: 1, HasHash: true, Children: []*Container{
		{Hash: 2, HasHash: true, Properties: []*Property{
			{Hash: 10, Value: Str("Hello")},
			{Hash: 11, Value: U32(7)},
		}},
		{Hash: 3, HasHash: true, Properties: []*Property{{Hash: 12, Value: U32(9)}}},
	}}
	data, err := NewTree(OffsetIndexed, root).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != 84 {
		t.Fatalf("payload fixture is %d bytes, want 84", len(data))
	}
	if _, err := DecodeOffsetIndexed(data, nil); err != nil {
		t.Fatalf("payload fixture does not decode: %v", err)
	}
	return data
}

func TestDecodeOffsetIndexedErrors(t *testing.T) {
	tests := []struct {
		name    string
		fixture func(*testing.T) []byte
		mutate  func([]byte) []byte
		want    error
	}{
		{"bad magic", nil, func(b []byte) []byte { b[0] = 'X'; return b }, ErrBadMagic},
		{"bad version", nil, func(b []byte) []byte { b[4] = 2; return b }, ErrUnsupportedVersion},
		{"short header", nil, func(b []byte) []byte { return b[:6] }, ErrTruncatedInput},
		{"root offset past end", nil, func(b []byte) []byte { b[12] = 0xF0; return b }, ErrBadOffset},
		{"root property count", nil, func(b []byte) []byte { b[16] = 0xFF; b[17] = 0xFF; return b }, ErrCountMismatch},
		{"child overlaps sibling", nil, func(b []byte) []byte { b[28] = 2; return b }, ErrCountMismatch},
		{"child offset into parent", nil, func(b []byte) []byte { b[24] = 0x08; return b }, ErrBadOffset},
		{"understated property count", payloadSiblingBytes, func(b []byte) []byte { b[28] = 1; return b }, ErrCountMismatch},
		{"overstated property count", payloadSiblingBytes, func(b []byte) []byte { b[28] = 3; return b }, ErrCountMismatch},
		{"understated child count", payloadSiblingBytes, func(b []byte) []byte { b[18] = 1; return b }, ErrCountMismatch},
		{"sibling inside previous child", payloadSiblingBytes, func(b []byte) []byte { b[36] = 68; return b }, ErrCountMismatch},
		{"trailing bytes", payloadSiblingBytes, func(b []byte) []byte { return append(b, make([]byte, 8)...) }, ErrCountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := tt.fixture
			if fixture == nil {
				fixture = siblingBytes
			}
			data := tt.mutate(fixture(t))
			_, err := DecodeOffsetIndexed(data, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("error %T is not a *DecodeError", err)
			}
		})
	}
}

func TestDecodeOffsetIndexedValueErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"unknown tag", func(b []byte) []byte { b[28] = 0x20; return b }, ErrUnknownValueType},
		{"deprecated tag", func(b []byte) []byte { b[28] = uint8(TypeDeprecated); return b }, ErrUnsupportedValueType},
		{"unterminated string", func(b []byte) []byte { return b[:61] }, ErrTruncatedInput},
		{"string offset past end", func(b []byte) []byte { b[48] = 0xF0; return b }, ErrTruncatedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(smallIndexedBytes))
			if _, err := DecodeOffsetIndexed(data, nil); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEncodeOffsetIndexedErrors(t *testing.T) {
	tests := []struct {
		name string
		root *Container
		want error
	}{
		{"nil value", &Container{Properties: []*Property{{Hash: 1}}}, ErrUnsupportedValueType},
		{"inline-only type", &Container{Properties: []*Property{{Hash: 1, Value: Mat3x4{}}}}, ErrUnsupportedValueType},
		{"too many properties", &Container{Properties: make([]*Property, 0x10000)}, ErrCountOverflow},
		{"no root", nil, ErrUnsupportedLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTree(OffsetIndexed, tt.root).Encode()
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnassignedKeepsSlot(t *testing.T) {
	root := &Container{Hash: 1, HasHash: true, Properties: []*Property{{Hash: 2, Value: Unassigned{Raw: 0xCAFE}}}}
	data, err := NewTree(OffsetIndexed, root).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tree, err := DecodeOffsetIndexed(data, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := tree.Root.Properties[0].Value; got != (Unassigned{Raw: 0xCAFE}) {
		t.Errorf("value = %#v", got)
	}
}

func BenchmarkOffsetIndexedRoundTrip(b *testing.B) {
	tree := fullIndexedTree()
	for i := 0; i < b.N; i++ {
		data, err := tree.Encode()
		if err != nil {
			b.Fatal(err)
		}
		if _, err := DecodeOffsetIndexed(data, nil); err != nil {
			b.Fatal(err)
		}
	}
}

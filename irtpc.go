// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"fmt"
	"math"
)

// Inline-linear (IRTPC) layout constants
const (
	irtpcVersion2 = 4 // the only supported second version field

	irtpcRootHeaderSize      = 5 // u8 version, u16 version2, u16 container count
	irtpcContainerHeaderSize = 9 // s32 hash, u8 unk1, u16 unk2, u16 property count
)

// DecodeInline decodes an IRTPC file. The root is synthetic: its header is
// the two version fields followed by the number of top-level containers,
// and each container holds its properties inline.
func DecodeInline(data []byte, r NameResolver) (*Tree, error) {
	c := NewCursor(data)
	version, err := c.ReadU8()
	if err != nil {
		return nil, decodeErr("version", 0, err)
	}
	version2, err := c.ReadU16()
	if err != nil {
		return nil, decodeErr("version_02", 1, err)
	}
	if version2 != irtpcVersion2 {
		return nil, &DecodeError{
			Field:    "version_02",
			Offset:   1,
			Expected: fmt.Sprint(irtpcVersion2),
			Actual:   fmt.Sprint(version2),
			Err:      ErrUnsupportedVersion,
		}
	}
	count, err := c.ReadU16()
	if err != nil {
		return nil, decodeErr("container count", 3, err)
	}
	if need := int(count) * irtpcContainerHeaderSize; need > c.Len()-c.Tell() {
		return nil, &DecodeError{
			Field:    "container count",
			Offset:   3,
			Expected: fmt.Sprintf("at least %d bytes for %d containers", need, count),
			Actual:   fmt.Sprintf("%d bytes", c.Len()-c.Tell()),
			Err:      ErrCountMismatch,
		}
	}

	root := &Container{Unk1: version, Unk2: version2}
	root.Children = make([]*Container, 0, count)
	for range count {
		cont, err := readInlineContainer(c, r)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, cont)
	}
	if c.Tell() != c.Len() {
		return nil, &DecodeError{
			Field:    "container count",
			Offset:   3,
			Expected: fmt.Sprintf("%d containers ending at 0x%X", count, c.Len()),
			Actual:   fmt.Sprintf("end at 0x%X", c.Tell()),
			Err:      ErrCountMismatch,
		}
	}
	return &Tree{
		Addressing: InlineLinear,
		Version:    uint32(version),
		Version2:   version2,
		Root:       root,
	}, nil
}

func readInlineContainer(c *Cursor, r NameResolver) (*Container, error) {
	pos := c.Tell()
	hash, err := c.ReadS32()
	if err != nil {
		return nil, decodeErr("container hash", pos, err)
	}
	unk1, err := c.ReadU8()
	if err != nil {
		return nil, decodeErr("container unk01", pos+4, err)
	}
	unk2, err := c.ReadU16()
	if err != nil {
		return nil, decodeErr("container unk02", pos+5, err)
	}
	n, err := c.ReadU16()
	if err != nil {
		return nil, decodeErr("container property count", pos+7, err)
	}

	cont := &Container{Hash: hash, HasHash: true, Unk1: unk1, Unk2: unk2}
	cont.Name, cont.Named = resolveName(r, hash)
	cont.Properties = make([]*Property, 0, n)
	for range n {
		ppos := c.Tell()
		phash, err := c.ReadS32()
		if err != nil {
			return nil, decodeErr("property hash", ppos, err)
		}
		tag, err := c.ReadU8()
		if err != nil {
			return nil, decodeErr("property type", ppos+4, err)
		}
		v, err := readInlineValue(c, tag)
		if err != nil {
			return nil, decodeErr(fmt.Sprintf("property %s value", FormatHash(phash)), ppos, err)
		}
		p := &Property{Hash: phash, Value: v}
		p.Name, p.Named = resolveName(r, phash)
		cont.Properties = append(cont.Properties, p)
	}
	return cont, nil
}

// encodeInline writes t in IRTPC layout. Only one level of containers
// below the synthetic root is representable.
func encodeInline(t *Tree) ([]byte, error) {
	root := t.Root
	if root == nil {
		return nil, fmt.Errorf("%w: tree has no root", ErrUnsupportedLayout)
	}
	if t.Version > math.MaxUint8 {
		return nil, fmt.Errorf("%w: inline version %d", ErrUnsupportedVersion, t.Version)
	}
	if len(root.Properties) > 0 {
		return nil, fmt.Errorf("%w: inline root cannot hold properties", ErrUnsupportedLayout)
	}
	if len(root.Children) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d containers", ErrCountOverflow, len(root.Children))
	}

	c := NewCursor(make([]byte, 0, 1024))
	c.WriteU8(uint8(t.Version))
	c.WriteU16(t.Version2)
	c.WriteU16(uint16(len(root.Children)))
	for _, cont := range root.Children {
		if err := writeInlineContainer(c, cont); err != nil {
			return nil, err
		}
	}
	return c.Bytes(), nil
}

func writeInlineContainer(c *Cursor, cont *Container) error {
	if len(cont.Children) > 0 {
		return fmt.Errorf("%w: inline container %s has child containers", ErrUnsupportedLayout, FormatHash(cont.Hash))
	}
	if len(cont.Properties) > math.MaxUint16 {
		return fmt.Errorf("%w: container %s has %d properties", ErrCountOverflow, FormatHash(cont.Hash), len(cont.Properties))
	}
	c.WriteS32(cont.Hash)
	c.WriteU8(cont.Unk1)
	c.WriteU16(cont.Unk2)
	c.WriteU16(uint16(len(cont.Properties)))
	for _, prop := range cont.Properties {
		if prop.Value == nil {
			return fmt.Errorf("property %s: %w: no value", FormatHash(prop.Hash), ErrUnsupportedValueType)
		}
		c.WriteS32(prop.Hash)
		if err := writeInlineValue(c, prop.Value); err != nil {
			return fmt.Errorf("property %s: %w", FormatHash(prop.Hash), err)
		}
	}
	return nil
}

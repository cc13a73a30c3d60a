// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Offset-indexed (RTPC) layout constants
const (
	rtpcMagic   = "RTPC"
	rtpcVersion = 1

	rtpcFileHeaderSize  = 8  // magic + version
	containerHeaderSize = 12 // s32 hash, u32 data offset, u16 properties, u16 children
	propertyHeaderSize  = 9  // s32 hash, u32 slot, u8 tag
)

// containerHeader is an offset-indexed container header as read from disk
type containerHeader struct {
	pos        int
	hash       int32
	dataOffset uint32
	properties uint16
	children   uint16
}

type indexedDecoder struct {
	c     *Cursor
	r     NameResolver
	spans []span // every byte range read so far
	high  int    // end of the furthest read in the current subtree
}

// span is a half-open byte range [start, end).
type span struct{ start, end int }

// consume records that [start, end) holds decoded data.
func (d *indexedDecoder) consume(start, end int) {
	d.spans = append(d.spans, span{start, end})
	d.high = max(d.high, end)
}

// checkCoverage fails when declared counts left a run of 4 or more bytes
// unread. Alignment padding is always shorter.
func (d *indexedDecoder) checkCoverage(size int) error {
	slices.SortFunc(d.spans, func(a, b span) int { return cmp.Compare(a.start, b.start) })
	covered := 0
	for _, s := range d.spans {
		if s.start-covered >= 4 {
			return unreadErr(covered, s.start)
		}
		covered = max(covered, s.end)
	}
	if size-covered >= 4 {
		return unreadErr(covered, size)
	}
	return nil
}

func unreadErr(from, to int) error {
	return &DecodeError{
		Field:    "container counts",
		Offset:   from,
		Expected: fmt.Sprintf("data at 0x%X", from),
		Actual:   fmt.Sprintf("%d unread bytes up to 0x%X", to-from, to),
		Err:      ErrCountMismatch,
	}
}

// DecodeOffsetIndexed decodes an RTPC file. Names are looked up with r,
// which may be nil.
func DecodeOffsetIndexed(data []byte, r NameResolver) (*Tree, error) {
	c := NewCursor(data)
	magic, err := c.ReadFixedBytes(len(rtpcMagic))
	if err != nil {
		return nil, decodeErr("magic", 0, err)
	}
	if string(magic) != rtpcMagic {
		return nil, &DecodeError{
			Field:    "magic",
			Expected: fmt.Sprintf("%q", rtpcMagic),
			Actual:   fmt.Sprintf("%q", magic),
			Err:      ErrBadMagic,
		}
	}
	version, err := c.ReadU32()
	if err != nil {
		return nil, decodeErr("version", 4, err)
	}
	if version != rtpcVersion {
		return nil, &DecodeError{
			Field:    "version",
			Offset:   4,
			Expected: fmt.Sprint(rtpcVersion),
			Actual:   fmt.Sprint(version),
			Err:      ErrUnsupportedVersion,
		}
	}

	d := &indexedDecoder{c: c, r: r}
	d.consume(0, rtpcFileHeaderSize)
	h, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	root, err := d.readContainer(h, c.Tell(), len(data))
	if err != nil {
		return nil, err
	}
	if err := d.checkCoverage(len(data)); err != nil {
		return nil, err
	}
	return &Tree{Addressing: OffsetIndexed, Version: version, Root: root}, nil
}

func (d *indexedDecoder) readHeader() (containerHeader, error) {
	h := containerHeader{pos: d.c.Tell()}
	var err error
	if h.hash, err = d.c.ReadS32(); err != nil {
		return h, decodeErr("container hash", h.pos, err)
	}
	if h.dataOffset, err = d.c.ReadU32(); err != nil {
		return h, decodeErr("container data offset", h.pos+4, err)
	}
	if h.properties, err = d.c.ReadU16(); err != nil {
		return h, decodeErr("container property count", h.pos+8, err)
	}
	if h.children, err = d.c.ReadU16(); err != nil {
		return h, decodeErr("container child count", h.pos+10, err)
	}
	d.consume(h.pos, h.pos+containerHeaderSize)
	return h, nil
}

// readContainer decodes the container described by h. Its data region must
// start at or after floor, and its header region must end by bound. The
// cursor is left just past h.
func (d *indexedDecoder) readContainer(h containerHeader, floor, bound int) (*Container, error) {
	c := d.c
	defer c.Seek(h.pos + containerHeaderSize)

	cont := &Container{Hash: h.hash, HasHash: true}
	cont.Name, cont.Named = resolveName(d.r, h.hash)

	start := int(h.dataOffset)
	if start < floor || start > bound {
		return nil, &DecodeError{
			Field:    "container data offset",
			Offset:   h.pos + 4,
			Expected: fmt.Sprintf("0x%X..0x%X", floor, bound),
			Actual:   fmt.Sprintf("0x%X", start),
			Err:      ErrBadOffset,
		}
	}

	// Property and child headers must fit before the next sibling's data.
	end := start + propertyHeaderSize*int(h.properties)
	end += alignPad(end)
	end += containerHeaderSize * int(h.children)
	if end > bound {
		return nil, &DecodeError{
			Field:    "container counts",
			Offset:   h.pos + 8,
			Expected: fmt.Sprintf("headers ending by 0x%X", bound),
			Actual:   fmt.Sprintf("%d properties, %d children ending at 0x%X", h.properties, h.children, end),
			Err:      ErrCountMismatch,
		}
	}

	c.Seek(start)
	d.high = max(d.high, start)

	// Property headers end before the first payload they point at.
	lowest := bound
	cont.Properties = make([]*Property, 0, h.properties)
	for range h.properties {
		if pos := c.Tell(); pos+propertyHeaderSize > lowest {
			return nil, payloadOverlapErr(h, pos+propertyHeaderSize, lowest)
		}
		p, slot, err := d.readProperty()
		if err != nil {
			return nil, err
		}
		if slot >= start && slot < lowest {
			lowest = slot
		}
		cont.Properties = append(cont.Properties, p)
	}
	if end > lowest {
		return nil, payloadOverlapErr(h, end, lowest)
	}
	c.Align()

	// Sibling headers first, so each child knows where the next one starts.
	headers := make([]containerHeader, h.children)
	for i := range headers {
		var err error
		if headers[i], err = d.readHeader(); err != nil {
			return nil, err
		}
	}
	cont.Children = make([]*Container, 0, len(headers))
	for i, ch := range headers {
		childBound := bound
		if i+1 < len(headers) && int(headers[i+1].dataOffset) > int(ch.dataOffset) {
			childBound = int(headers[i+1].dataOffset)
		}
		outer := d.high
		d.high = int(ch.dataOffset)
		child, err := d.readContainer(ch, end, childBound)
		if err != nil {
			return nil, err
		}
		childEnd := d.high + alignPad(d.high)
		d.high = max(outer, d.high)

		// The next sibling starts where this child's data ends.
		if i+1 < len(headers) && int(headers[i+1].dataOffset) != childEnd {
			return nil, &DecodeError{
				Field:    "container data offset",
				Offset:   headers[i+1].pos + 4,
				Expected: fmt.Sprintf("0x%X", childEnd),
				Actual:   fmt.Sprintf("0x%X", headers[i+1].dataOffset),
				Err:      ErrCountMismatch,
			}
		}
		cont.Children = append(cont.Children, child)
	}
	return cont, nil
}

func payloadOverlapErr(h containerHeader, end, payload int) error {
	return &DecodeError{
		Field:    "container counts",
		Offset:   h.pos + 8,
		Expected: fmt.Sprintf("headers ending by 0x%X", payload),
		Actual:   fmt.Sprintf("%d properties, %d children reaching 0x%X", h.properties, h.children, end),
		Err:      ErrCountMismatch,
	}
}

// readProperty decodes one property header and its value. It returns the
// payload offset, or -1 for values held in the slot.
func (d *indexedDecoder) readProperty() (*Property, int, error) {
	c := d.c
	pos := c.Tell()
	hash, err := c.ReadS32()
	if err != nil {
		return nil, 0, decodeErr("property hash", pos, err)
	}
	slot, err := c.ReadU32()
	if err != nil {
		return nil, 0, decodeErr("property slot", pos+4, err)
	}
	tag, err := c.ReadU8()
	if err != nil {
		return nil, 0, decodeErr("property type", pos+8, err)
	}
	d.consume(pos, pos+propertyHeaderSize)
	v, end, err := readIndexedValue(c, tag, slot)
	if err != nil {
		return nil, 0, decodeErr(fmt.Sprintf("property %s value", FormatHash(hash)), pos, err)
	}
	payload := -1
	if end > 0 {
		payload = int(slot)
		d.consume(payload, end)
	}
	p := &Property{Hash: hash, Value: v}
	p.Name, p.Named = resolveName(d.r, hash)
	return p, payload, nil
}

type indexedEncoder struct {
	c *Cursor
	p *Patcher
}

// deferredValue is a payload written after its container's header region
type deferredValue struct {
	tok Token
	v   Value
}

// encodeOffsetIndexed writes t in RTPC layout.
//
// Each level is written in two phases: first the property headers and the
// headers of all children, then the deferred payloads followed by each
// child in full. Offsets of one level are resolved before the next begins.
func encodeOffsetIndexed(t *Tree) ([]byte, error) {
	if t.Root == nil {
		return nil, fmt.Errorf("%w: tree has no root", ErrUnsupportedLayout)
	}
	c := NewCursor(make([]byte, 0, 4096))
	c.Write([]byte(rtpcMagic))
	c.WriteU32(t.Version)

	e := &indexedEncoder{c: c, p: &Patcher{}}
	tok, err := e.writeHeader(t.Root)
	if err != nil {
		return nil, err
	}
	if err := e.writeContainer(t.Root, tok); err != nil {
		return nil, err
	}
	e.p.Finalize()
	return c.Bytes(), nil
}

func (e *indexedEncoder) writeHeader(cont *Container) (Token, error) {
	if len(cont.Properties) > math.MaxUint16 || len(cont.Children) > math.MaxUint16 {
		return Token{}, fmt.Errorf("%w: container %s has %d properties and %d children",
			ErrCountOverflow, FormatHash(cont.Hash), len(cont.Properties), len(cont.Children))
	}
	e.c.WriteS32(cont.Hash)
	tok := e.p.Reserve(e.c)
	e.c.WriteU16(uint16(len(cont.Properties)))
	e.c.WriteU16(uint16(len(cont.Children)))
	return tok, nil
}

func (e *indexedEncoder) writeContainer(cont *Container, tok Token) error {
	c := e.c

	// The gap left by a childless predecessor is zero filled.
	c.WriteAlign(NulByte, false)
	e.p.Resolve(tok, c)

	var pending []deferredValue
	for _, prop := range cont.Properties {
		if prop.Value == nil {
			return fmt.Errorf("property %s: %w: no value", FormatHash(prop.Hash), ErrUnsupportedValueType)
		}
		c.WriteS32(prop.Hash)
		ptok, deferred, err := writeIndexedSlot(c, e.p, prop.Value)
		if err != nil {
			return fmt.Errorf("property %s: %w", FormatHash(prop.Hash), err)
		}
		c.WriteU8(indexedTags.toTag[prop.Value.Type()])
		if deferred {
			pending = append(pending, deferredValue{tok: ptok, v: prop.Value})
		}
	}
	c.WriteAlign(PadByte, false)

	childTokens := make([]Token, len(cont.Children))
	for i, child := range cont.Children {
		var err error
		if childTokens[i], err = e.writeHeader(child); err != nil {
			return err
		}
	}

	for _, d := range pending {
		if err := writePayload(c, e.p, d.tok, d.v); err != nil {
			return err
		}
	}

	for i, child := range cont.Children {
		if err := e.writeContainer(child, childTokens[i]); err != nil {
			return err
		}
	}
	return nil
}

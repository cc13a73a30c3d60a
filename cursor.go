// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Filler bytes for WriteAlign.
const (
	PadByte = 'P'  // default pad used by the engine's writers
	NulByte = 0x00 // zero fill, used where the engine seeks instead of writing
)

// Cursor is a random-access little-endian byte buffer with a single
// read/write position. Writes past the end grow the buffer; writes inside
// it overwrite.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of data.
// The cursor takes ownership of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{buf: data}
}

// Tell returns the current position.
func (c *Cursor) Tell() int { return c.pos }

// Len returns the buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Bytes returns the underlying buffer.
func (c *Cursor) Bytes() []byte { return c.buf }

// Seek moves the position. Seeking past the end is allowed; a later read
// fails and a later write zero-fills the gap.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 {
		return fmt.Errorf("seek to negative position %d", pos)
	}
	c.pos = pos
	return nil
}

// Align advances the read position to the next 4-byte boundary without
// consuming or writing data.
func (c *Cursor) Align() {
	c.pos += alignPad(c.pos)
}

// alignPad returns the number of bytes needed to reach a 4-byte boundary.
func alignPad(pos int) int {
	return (4 - pos%4) % 4
}

// next returns the next n bytes and advances the position.
func (c *Cursor) next(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read length %d", n)
	}
	have := len(c.buf) - c.pos
	if have < 0 {
		have = 0
	}
	if have < n {
		return nil, &TruncatedError{Offset: c.pos, Want: n, Have: have}
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadFixedBytes reads exactly n bytes. The result is a copy.
func (c *Cursor) ReadFixedBytes(n int) ([]byte, error) {
	b, err := c.next(n)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// ReadUntil reads up to and including delim and returns the bytes before it.
// A missing delimiter is a truncation.
func (c *Cursor) ReadUntil(delim byte) ([]byte, error) {
	if c.pos >= len(c.buf) {
		return nil, &TruncatedError{Offset: c.pos, Want: 1, Have: 0}
	}
	i := bytes.IndexByte(c.buf[c.pos:], delim)
	if i < 0 {
		return nil, &TruncatedError{Offset: c.pos, Want: len(c.buf) - c.pos + 1, Have: len(c.buf) - c.pos}
	}
	b := bytes.Clone(c.buf[c.pos : c.pos+i])
	c.pos += i + 1
	return b, nil
}

func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadS8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) ReadS16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) ReadS32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

func (c *Cursor) ReadU64() (uint64, error) {
	b, err := c.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *Cursor) ReadS64() (int64, error) {
	v, err := c.ReadU64()
	return int64(v), err
}

func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	return math.Float32frombits(v), err
}

func (c *Cursor) ReadF64() (float64, error) {
	v, err := c.ReadU64()
	return math.Float64frombits(v), err
}

// ReadU32s reads n consecutive uint32 values.
func (c *Cursor) ReadU32s(n int) ([]uint32, error) {
	b, err := c.next(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out, nil
}

// ReadF32s reads n consecutive float32 values.
func (c *Cursor) ReadF32s(n int) ([]float32, error) {
	words, err := c.ReadU32s(n)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i, w := range words {
		out[i] = math.Float32frombits(w)
	}
	return out, nil
}

// Write writes p at the current position.
func (c *Cursor) Write(p []byte) (int, error) {
	end := c.pos + len(p)
	if end > len(c.buf) {
		if end > cap(c.buf) {
			grown := make([]byte, len(c.buf), max(end, 2*cap(c.buf)))
			copy(grown, c.buf)
			c.buf = grown
		}
		// Zero the gap left by a seek past the end.
		clear(c.buf[len(c.buf):end])
		c.buf = c.buf[:end]
	}
	copy(c.buf[c.pos:], p)
	c.pos = end
	return len(p), nil
}

func (c *Cursor) put(n int, fill func([]byte)) {
	var scratch [8]byte
	fill(scratch[:n])
	c.Write(scratch[:n])
}

func (c *Cursor) WriteU8(v uint8) { c.Write([]byte{v}) }

func (c *Cursor) WriteS8(v int8) { c.WriteU8(uint8(v)) }

func (c *Cursor) WriteU16(v uint16) {
	c.put(2, func(b []byte) { binary.LittleEndian.PutUint16(b, v) })
}

func (c *Cursor) WriteS16(v int16) { c.WriteU16(uint16(v)) }

func (c *Cursor) WriteU32(v uint32) {
	c.put(4, func(b []byte) { binary.LittleEndian.PutUint32(b, v) })
}

func (c *Cursor) WriteS32(v int32) { c.WriteU32(uint32(v)) }

func (c *Cursor) WriteU64(v uint64) {
	c.put(8, func(b []byte) { binary.LittleEndian.PutUint64(b, v) })
}

func (c *Cursor) WriteS64(v int64) { c.WriteU64(uint64(v)) }

func (c *Cursor) WriteF32(v float32) { c.WriteU32(math.Float32bits(v)) }

func (c *Cursor) WriteF64(v float64) { c.WriteU64(math.Float64bits(v)) }

func (c *Cursor) WriteU32s(vs []uint32) {
	for _, v := range vs {
		c.WriteU32(v)
	}
}

func (c *Cursor) WriteF32s(vs []float32) {
	for _, v := range vs {
		c.WriteF32(v)
	}
}

// WriteAlign writes fill bytes up to the next 4-byte boundary. With force
// set, an already aligned position gets a full 4 bytes of fill.
func (c *Cursor) WriteAlign(fill byte, force bool) {
	n := alignPad(c.pos)
	if n == 0 && force {
		n = 4
	}
	if n == 0 {
		return
	}
	c.Write(bytes.Repeat([]byte{fill}, n))
}

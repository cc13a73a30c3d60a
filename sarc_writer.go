// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import "fmt"

// Bytes encodes the archive. In read mode it returns the original data.
//
// The directory comes first, with a placeholder for each inline entry's
// offset. Payloads follow in directory order, NUL-aligned between files.
func (a *Archive) Bytes() ([]byte, error) {
	if a.mode == "r" {
		return a.data, nil
	}

	c := NewCursor(make([]byte, 0, a.estimateSize()))
	p := &Patcher{}

	// Header; the directory size is patched once the entries are written
	c.WriteU32(sarcHeaderLength)
	c.Write([]byte(sarcMagic))
	c.WriteU32(sarcVersion)
	sizeTok := p.Reserve(c)

	offsets := make([]Token, len(a.pending))
	for i, f := range a.pending {
		name := []byte(f.name)
		padded := len(name) + alignPad(len(name))
		if uint64(padded) > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: name of %d bytes", ErrCountOverflow, len(name))
		}
		c.WriteU32(uint32(padded))
		c.Write(name)
		c.WriteAlign(NulByte, false)
		if f.ref {
			c.WriteU32(0)
		} else {
			offsets[i] = p.Reserve(c)
		}
		c.WriteU32(f.size)
	}
	p.ResolveValue(sizeTok, c, uint32(c.Tell()-sarcHeaderSize))

	// File data
	for i, f := range a.pending {
		if !f.ref {
			p.Resolve(offsets[i], c)
			c.Write(f.data)
		}
		if i+1 < len(a.pending) {
			c.WriteAlign(NulByte, false)
		}
	}
	p.Finalize()
	return c.Bytes(), nil
}

func (a *Archive) estimateSize() int {
	n := sarcHeaderSize
	for _, f := range a.pending {
		n += sarcEntryMinSize + len(f.name) + 3 + len(f.data) + 3
	}
	return n
}

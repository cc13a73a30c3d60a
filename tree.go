// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Addressing selects how a container locates its children on disk.
type Addressing int

const (
	// OffsetIndexed is the RTPC layout: containers store a forward offset
	// to their property and child headers.
	OffsetIndexed Addressing = iota

	// InlineLinear is the IRTPC layout: everything follows its header in
	// depth-first order.
	InlineLinear
)

func (a Addressing) String() string {
	if a == InlineLinear {
		return "irtpc"
	}
	return "rtpc"
}

// Tree is a decoded property file.
type Tree struct {
	Addressing Addressing
	Version    uint32 // RTPC version, or the first IRTPC version byte
	Version2   uint16 // second IRTPC version field
	Extension  string // source file extension without the dot, kept for re-export
	Root       *Container
}

// NewTree returns an empty tree with the current versions for a.
func NewTree(a Addressing, root *Container) *Tree {
	t := &Tree{Addressing: a, Root: root}
	if a == InlineLinear {
		t.Version2 = irtpcVersion2
	} else {
		t.Version = rtpcVersion
	}
	return t
}

// Sniff identifies the layout of data from its first bytes.
func Sniff(data []byte) (Addressing, error) {
	if bytes.HasPrefix(data, []byte(rtpcMagic)) {
		return OffsetIndexed, nil
	}
	if len(data) >= irtpcRootHeaderSize && binary.LittleEndian.Uint16(data[1:]) == irtpcVersion2 {
		return InlineLinear, nil
	}
	return 0, &DecodeError{
		Field:    "magic",
		Expected: fmt.Sprintf("%q or inline version %d", rtpcMagic, irtpcVersion2),
		Actual:   fmt.Sprintf("% X", data[:min(len(data), 4)]),
		Err:      ErrBadMagic,
	}
}

// Decode sniffs the layout of data and decodes it.
func Decode(data []byte, r NameResolver) (*Tree, error) {
	a, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	if a == InlineLinear {
		return DecodeInline(data, r)
	}
	return DecodeOffsetIndexed(data, r)
}

// Encode serializes t in its own layout.
func (t *Tree) Encode() ([]byte, error) {
	if t.Addressing == InlineLinear {
		return encodeInline(t)
	}
	return encodeOffsetIndexed(t)
}

// ReadFile decodes the property file at path. Errors carry the path.
func ReadFile(path string, r NameResolver) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	t, err := Decode(data, r)
	if err != nil {
		return nil, withPath(path, err)
	}
	t.Extension = strings.TrimPrefix(filepath.Ext(path), ".")
	return t, nil
}

// WriteFile encodes t and writes it to path through a temp file in the
// same directory, so a failed write never leaves a partial file behind.
func (t *Tree) WriteFile(path string) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to a temp file next to path, then renames it.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "apex_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

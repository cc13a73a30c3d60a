// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
)

// AAF v1 layout constants
const (
	aafMagic       = "AAF\x00"
	aafVersion     = 1
	aafComment     = "AVALANCHEARCHIVEFORMATISCOOL" // 28 bytes
	aafHeaderSize  = 48
	aafBlockMagic  = "EWAM"
	aafBlockHeader = 16 // compressed size, uncompressed size, next offset, magic
	aafBlockAlign  = 16

	// AAFMaxBlockSize is the largest uncompressed block.
	AAFMaxBlockSize = 32 << 20
)

// IsAAF reports whether data starts with the AAF magic.
func IsAAF(data []byte) bool {
	return bytes.HasPrefix(data, []byte(aafMagic))
}

// DecompressAAF returns the stream held in an AAF archive.
func DecompressAAF(data []byte) ([]byte, error) {
	c := NewCursor(data)
	magic, err := c.ReadFixedBytes(len(aafMagic))
	if err != nil {
		return nil, decodeErr("magic", 0, err)
	}
	if string(magic) != aafMagic {
		return nil, &DecodeError{
			Field:    "magic",
			Expected: fmt.Sprintf("%q", aafMagic),
			Actual:   fmt.Sprintf("%q", magic),
			Err:      ErrBadMagic,
		}
	}
	version, err := c.ReadU32()
	if err != nil {
		return nil, decodeErr("version", 4, err)
	}
	if version != aafVersion {
		return nil, &DecodeError{
			Field:    "version",
			Offset:   4,
			Expected: fmt.Sprint(aafVersion),
			Actual:   fmt.Sprint(version),
			Err:      ErrUnsupportedVersion,
		}
	}
	if _, err := c.ReadFixedBytes(len(aafComment)); err != nil {
		return nil, decodeErr("comment", 8, err)
	}
	total, err := c.ReadU32()
	if err != nil {
		return nil, decodeErr("uncompressed size", 36, err)
	}
	if _, err := c.ReadU32(); err != nil {
		return nil, decodeErr("compressed size", 40, err)
	}
	blocks, err := c.ReadU32()
	if err != nil {
		return nil, decodeErr("block count", 44, err)
	}

	out := make([]byte, 0, min(int(total), len(data)*8))
	for i := range int(blocks) {
		start := c.Tell()
		block, next, err := readAAFBlock(c)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, block...)
		if next == 0 {
			break
		}
		c.Seek(start + int(next))
	}
	if len(out) != int(total) {
		return nil, &DecodeError{
			Field:    "uncompressed size",
			Offset:   36,
			Expected: fmt.Sprintf("%d bytes", total),
			Actual:   fmt.Sprintf("%d bytes", len(out)),
			Err:      ErrCountMismatch,
		}
	}
	return out, nil
}

func readAAFBlock(c *Cursor) ([]byte, uint32, error) {
	start := c.Tell()
	compressed, err := c.ReadU32()
	if err != nil {
		return nil, 0, decodeErr("block compressed size", start, err)
	}
	size, err := c.ReadU32()
	if err != nil {
		return nil, 0, decodeErr("block uncompressed size", start+4, err)
	}
	if size > AAFMaxBlockSize {
		return nil, 0, &DecodeError{
			Field:    "block uncompressed size",
			Offset:   start + 4,
			Expected: fmt.Sprintf("at most %d", AAFMaxBlockSize),
			Actual:   fmt.Sprint(size),
			Err:      ErrCountMismatch,
		}
	}
	next, err := c.ReadU32()
	if err != nil {
		return nil, 0, decodeErr("next block offset", start+8, err)
	}
	magic, err := c.ReadFixedBytes(len(aafBlockMagic))
	if err != nil {
		return nil, 0, decodeErr("block magic", start+12, err)
	}
	if string(magic) != aafBlockMagic {
		return nil, 0, &DecodeError{
			Field:    "block magic",
			Offset:   start + 12,
			Expected: fmt.Sprintf("%q", aafBlockMagic),
			Actual:   fmt.Sprintf("%q", magic),
			Err:      ErrBadMagic,
		}
	}
	payload, err := c.ReadFixedBytes(int(compressed))
	if err != nil {
		return nil, 0, decodeErr("block data", start+aafBlockHeader, err)
	}

	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, 0, fmt.Errorf("inflate: %w", err)
	}
	return out, next, nil
}

// CompressAAF wraps stream in an AAF archive of raw DEFLATE blocks.
func CompressAAF(stream []byte) ([]byte, error) {
	if uint64(len(stream)) > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: stream of %d bytes", ErrCountOverflow, len(stream))
	}
	c := NewCursor(make([]byte, 0, aafHeaderSize+len(stream)/2))
	p := &Patcher{}

	c.Write([]byte(aafMagic))
	c.WriteU32(aafVersion)
	c.Write([]byte(aafComment))
	c.WriteU32(uint32(len(stream)))
	compressedTok := p.Reserve(c)
	blocks := (len(stream) + AAFMaxBlockSize - 1) / AAFMaxBlockSize
	c.WriteU32(uint32(blocks))

	var totalCompressed uint32
	for i := 0; i < blocks; i++ {
		chunk := stream[i*AAFMaxBlockSize : min((i+1)*AAFMaxBlockSize, len(stream))]
		deflated, err := deflate(chunk)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}

		start := c.Tell()
		c.WriteU32(uint32(len(deflated)))
		c.WriteU32(uint32(len(chunk)))
		nextTok := p.Reserve(c)
		c.Write([]byte(aafBlockMagic))
		c.Write(deflated)
		for c.Tell()%aafBlockAlign != 0 {
			c.WriteU8(NulByte)
		}
		p.ResolveValue(nextTok, c, uint32(c.Tell()-start))
		totalCompressed += uint32(len(deflated))
	}
	p.ResolveValue(compressedTok, c, totalCompressed)
	p.Finalize()
	return c.Bytes(), nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate close: %w", err)
	}
	return buf.Bytes(), nil
}

// UnpackAAF extracts the SARC archive wrapped in the AAF file at path into
// dir, as Unpack does.
func UnpackAAF(path, dir string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	stream, err := DecompressAAF(data)
	if err != nil {
		return nil, withPath(path, err)
	}
	a, err := ReadArchive(stream)
	if err != nil {
		return nil, withPath(path, err)
	}
	a.path = path
	if err := a.Unpack(dir); err != nil {
		return nil, err
	}
	return a, nil
}

// PackAAF builds a SARC archive from a directory written by Unpack and
// stores it at outPath wrapped in AAF.
func PackAAF(dir, outPath string) (ManifestInfo, error) {
	a := newArchiveWriter()
	info, err := a.addManifest(dir)
	if err != nil {
		return info, err
	}
	stream, err := a.Bytes()
	if err != nil {
		return info, err
	}
	data, err := CompressAAF(stream)
	if err != nil {
		return info, err
	}
	return info, writeFileAtomic(outPath, data)
}

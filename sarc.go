// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SARC v2 layout constants
const (
	sarcMagic        = "SARC"
	sarcVersion      = 2
	sarcHeaderLength = 4  // header length field, in 4-byte words
	sarcHeaderSize   = 16 // length, magic, version, directory size
	sarcEntryMinSize = 12 // name length, offset, size with an empty name
)

// ErrReferenceEntry is returned when reading the data of an entry that only
// references a file stored in another archive.
var ErrReferenceEntry = errors.New("reference entry has no data")

// Entry is a SARC directory entry.
type Entry struct {
	Name   string
	Offset uint32 // 0 for references
	Size   uint32
}

// IsRef reports whether the entry refers to data held by another archive.
func (e Entry) IsRef() bool { return e.Offset == 0 }

// Archive is a SARC v2 file archive.
type Archive struct {
	path     string
	tempPath string
	mode     string // "r" for read, "w" for write
	data     []byte
	entries  []Entry
	index    map[string]int // normalized name -> entry index
	pending  []pendingFile
}

// pendingFile is a file queued for writing.
type pendingFile struct {
	name string
	data []byte
	size uint32
	ref  bool
}

// normalizeName normalizes an archive path for lookup: forward slashes,
// case-insensitive.
func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
}

// OpenArchive reads the SARC archive at path.
func OpenArchive(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	a, err := ReadArchive(data)
	if err != nil {
		return nil, withPath(path, err)
	}
	a.path = path
	return a, nil
}

// ReadArchive parses a SARC archive held in memory.
func ReadArchive(data []byte) (*Archive, error) {
	c := NewCursor(data)
	length, err := c.ReadU32()
	if err != nil {
		return nil, decodeErr("header length", 0, err)
	}
	magic, err := c.ReadFixedBytes(len(sarcMagic))
	if err != nil {
		return nil, decodeErr("magic", 4, err)
	}
	if length != sarcHeaderLength || string(magic) != sarcMagic {
		return nil, &DecodeError{
			Field:    "magic",
			Expected: fmt.Sprintf("length %d, %q", sarcHeaderLength, sarcMagic),
			Actual:   fmt.Sprintf("length %d, %q", length, magic),
			Err:      ErrBadMagic,
		}
	}
	version, err := c.ReadU32()
	if err != nil {
		return nil, decodeErr("version", 8, err)
	}
	if version != sarcVersion {
		return nil, &DecodeError{
			Field:    "version",
			Offset:   8,
			Expected: fmt.Sprint(sarcVersion),
			Actual:   fmt.Sprint(version),
			Err:      ErrUnsupportedVersion,
		}
	}
	size, err := c.ReadU32()
	if err != nil {
		return nil, decodeErr("directory size", 12, err)
	}
	end := sarcHeaderSize + int(size)
	if end > len(data) {
		return nil, &DecodeError{
			Field:    "directory size",
			Offset:   12,
			Expected: fmt.Sprintf("at most %d bytes", len(data)-sarcHeaderSize),
			Actual:   fmt.Sprintf("%d bytes", size),
			Err:      ErrTruncatedInput,
		}
	}

	a := &Archive{mode: "r", data: data, index: make(map[string]int)}
	for c.Tell()+sarcEntryMinSize <= end {
		pos := c.Tell()
		var e Entry
		nameLen, err := c.ReadU32()
		if err != nil {
			return nil, decodeErr("entry name length", pos, err)
		}
		name, err := c.ReadFixedBytes(int(nameLen))
		if err != nil {
			return nil, decodeErr("entry name", pos+4, err)
		}
		e.Name = strings.TrimRight(string(name), "\x00")
		if e.Offset, err = c.ReadU32(); err != nil {
			return nil, decodeErr("entry offset", c.Tell(), err)
		}
		if e.Size, err = c.ReadU32(); err != nil {
			return nil, decodeErr("entry size", c.Tell(), err)
		}
		if !e.IsRef() && int(e.Offset)+int(e.Size) > len(data) {
			return nil, &DecodeError{
				Field:    "entry " + e.Name,
				Offset:   pos,
				Expected: fmt.Sprintf("data within 0x%X", len(data)),
				Actual:   fmt.Sprintf("0x%X+0x%X", e.Offset, e.Size),
				Err:      ErrBadOffset,
			}
		}
		a.addEntry(e)
	}
	return a, nil
}

func (a *Archive) addEntry(e Entry) {
	key := normalizeName(e.Name)
	if _, dup := a.index[key]; !dup {
		a.index[key] = len(a.entries)
	}
	a.entries = append(a.entries, e)
}

// CreateArchive starts a new archive written to path on Close.
func CreateArchive(path string) (*Archive, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	// Create temp file in same directory for atomic write
	tempFile, err := os.CreateTemp(dir, "sarc_*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	tempFile.Close()

	a := newArchiveWriter()
	a.path = path
	a.tempPath = tempPath
	return a, nil
}

// newArchiveWriter returns a write-mode archive that is only encoded in
// memory through Bytes.
func newArchiveWriter() *Archive {
	return &Archive{mode: "w", index: make(map[string]int)}
}

// AddFile queues the file at srcPath under name.
// This method is only valid for archives opened with CreateArchive.
func (a *Archive) AddFile(srcPath, name string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", srcPath, err)
	}
	return a.AddData(name, data)
}

// AddData queues data under name.
func (a *Archive) AddData(name string, data []byte) error {
	if a.mode != "w" {
		return fmt.Errorf("archive not opened for writing")
	}
	if uint64(len(data)) > 0xFFFFFFFF {
		return fmt.Errorf("%w: %s is %d bytes", ErrCountOverflow, name, len(data))
	}
	a.pending = append(a.pending, pendingFile{name: name, data: data, size: uint32(len(data))})
	return nil
}

// AddRef queues a reference entry: the data lives in another archive and
// only its size is recorded.
func (a *Archive) AddRef(name string, size uint32) error {
	if a.mode != "w" {
		return fmt.Errorf("archive not opened for writing")
	}
	a.pending = append(a.pending, pendingFile{name: name, size: size, ref: true})
	return nil
}

// HasFile reports whether the archive has an entry called name, inline or
// reference.
func (a *Archive) HasFile(name string) bool {
	if a.mode == "w" {
		for _, f := range a.pending {
			if normalizeName(f.name) == normalizeName(name) {
				return true
			}
		}
		return false
	}
	_, ok := a.index[normalizeName(name)]
	return ok
}

// findFile returns the entry called name.
func (a *Archive) findFile(name string) (Entry, error) {
	i, ok := a.index[normalizeName(name)]
	if !ok {
		return Entry{}, fmt.Errorf("file not found: %s", name)
	}
	return a.entries[i], nil
}

// ReadFile returns the data of the entry called name.
// Reference entries return ErrReferenceEntry.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if a.mode != "r" {
		return nil, fmt.Errorf("archive not opened for reading")
	}
	e, err := a.findFile(name)
	if err != nil {
		return nil, err
	}
	if e.IsRef() {
		return nil, fmt.Errorf("%s: %w", name, ErrReferenceEntry)
	}
	return a.data[e.Offset : e.Offset+e.Size], nil
}

// ExtractFile writes the data of the entry called name to destPath.
func (a *Archive) ExtractFile(name, destPath string) error {
	data, err := a.ReadFile(name)
	if err != nil {
		return err
	}

	// Ensure destination directory exists
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// ListFiles returns entry names in directory order.
func (a *Archive) ListFiles() []string {
	if a.mode == "w" {
		names := make([]string, len(a.pending))
		for i, f := range a.pending {
			names[i] = f.name
		}
		return names
	}
	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns the directory in on-disk order.
func (a *Archive) Entries() []Entry {
	return append([]Entry(nil), a.entries...)
}

// Path returns the archive's file path, if any.
func (a *Archive) Path() string { return a.path }

// Close releases the archive. For archives opened with CreateArchive, this
// writes the archive to disk.
func (a *Archive) Close() error {
	if a.mode == "r" {
		a.data = nil
		return nil
	}

	data, err := a.Bytes()
	if err != nil {
		os.Remove(a.tempPath)
		return err
	}
	if err := os.WriteFile(a.tempPath, data, 0644); err != nil {
		os.Remove(a.tempPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	// Move temp file to final path
	if err := os.Rename(a.tempPath, a.path); err != nil {
		os.Remove(a.tempPath)
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}

// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ManifestName is the file written next to unpacked archive contents.
const ManifestName = "@files.xml"

// sarcManifest lists an unpacked archive's entries in directory order.
type sarcManifest struct {
	XMLName   xml.Name
	Extension string         `xml:"extension,attr"`
	Version   string         `xml:"version,attr"`
	Filename  string         `xml:"filename,attr"`
	Files     []manifestFile `xml:"file"`
}

type manifestFile struct {
	Ref  string `xml:"ref,attr"`
	Size string `xml:"size,attr,omitempty"`
	Name string `xml:",chardata"`
}

// localPath maps an entry name to a path under dir, rejecting names that
// would escape it.
func localPath(dir, name string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, "\\", "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("entry name %q escapes the output directory", name)
	}
	return filepath.Join(dir, rel), nil
}

// Unpack writes every inline entry under dir and records the directory in
// dir/@files.xml. Reference entries are listed but have no file.
func (a *Archive) Unpack(dir string) error {
	return a.UnpackResolved(dir, nil)
}

// UnpackResolved is Unpack, except that reference entries are also written,
// with data found through refs. The manifest still marks them as
// references, so PackDir rebuilds the same archive. A nil refs leaves
// references without files.
func (a *Archive) UnpackResolved(dir string, refs *ArchiveChain) error {
	if a.mode != "r" {
		return fmt.Errorf("archive not opened for reading")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	base := filepath.Base(a.path)
	ext := filepath.Ext(base)
	m := sarcManifest{
		XMLName:   xml.Name{Local: "sarc"},
		Extension: strings.TrimPrefix(ext, "."),
		Version:   strconv.Itoa(sarcVersion),
		Filename:  strings.TrimSuffix(base, ext),
	}
	for _, e := range a.entries {
		ref := "0"
		if e.IsRef() {
			ref = "1"
			if refs != nil {
				if err := a.writeRef(refs, dir, e.Name); err != nil {
					return err
				}
			}
		} else {
			dest, err := localPath(dir, e.Name)
			if err != nil {
				return err
			}
			if err := a.ExtractFile(e.Name, dest); err != nil {
				return fmt.Errorf("extract %s: %w", e.Name, err)
			}
		}
		m.Files = append(m.Files, manifestFile{Ref: ref, Size: strconv.FormatUint(uint64(e.Size), 10), Name: e.Name})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "\t")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	buf.WriteByte('\n')
	return writeFileAtomic(filepath.Join(dir, ManifestName), buf.Bytes())
}

func (a *Archive) writeRef(refs *ArchiveChain, dir, name string) error {
	dest, err := localPath(dir, name)
	if err != nil {
		return err
	}
	data, err := refs.ResolveRef(a, name)
	if err != nil {
		return err
	}
	return writeFileAtomic(dest, data)
}

// ManifestInfo is the identity of the archive a directory was unpacked from.
type ManifestInfo struct {
	Filename  string
	Extension string
}

// PackDir rebuilds an archive at outPath from a directory written by Unpack.
// Entries keep their manifest order; sizes recorded for inline entries must
// match the files on disk.
func PackDir(dir, outPath string) (ManifestInfo, error) {
	a, err := CreateArchive(outPath)
	if err != nil {
		return ManifestInfo{}, err
	}
	info, err := a.addManifest(dir)
	if err != nil {
		os.Remove(a.tempPath)
		return info, err
	}
	return info, a.Close()
}

// addManifest queues every entry listed in dir's manifest.
func (a *Archive) addManifest(dir string) (ManifestInfo, error) {
	m, err := readManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		return ManifestInfo{}, err
	}
	info := ManifestInfo{Filename: m.Filename, Extension: m.Extension}
	for _, f := range m.Files {
		name := strings.TrimSpace(f.Name)
		size, err := strconv.ParseUint(f.Size, 10, 32)
		if f.Size != "" && err != nil {
			return info, fmt.Errorf("%w: size of %s: %q", ErrMalformedValue, name, f.Size)
		}
		if isRef(f.Ref) {
			err = a.AddRef(name, uint32(size))
		} else {
			err = addManifestFile(a, dir, name, f.Size != "", uint32(size))
		}
		if err != nil {
			return info, err
		}
	}
	return info, nil
}

// isRef reads the manifest's ref flag. A missing flag means reference, the
// same default older manifests relied on.
func isRef(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || (s != "0" && !strings.EqualFold(s, "false"))
}

func addManifestFile(a *Archive, dir, name string, checkSize bool, size uint32) error {
	src, err := localPath(dir, name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read file %s: %w", src, err)
	}
	if checkSize && uint64(len(data)) != uint64(size) {
		return fmt.Errorf("%s: manifest size %d, file has %d bytes", src, size, len(data))
	}
	return a.AddData(name, data)
}

func readManifest(path string) (*sarcManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m sarcManifest
	if err := xml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformedDocument, err)
	}
	if m.XMLName.Local != "sarc" {
		return nil, fmt.Errorf("%s: %w: <%s>", path, ErrUnsupportedRootTag, m.XMLName.Local)
	}
	v, err := strconv.Atoi(strings.TrimSpace(m.Version))
	if err != nil || v != sarcVersion {
		return nil, fmt.Errorf("%s: %w: sarc version %q", path, ErrUnsupportedVersion, m.Version)
	}
	return &m, nil
}

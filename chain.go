// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"errors"
	"fmt"
	"slices"
)

// ArchiveChain is a prioritized list of SARC archives. Reference entries in
// one archive are resolved against the others.
type ArchiveChain struct {
	archives   []*Archive
	fileMap    map[string]int // cache: normalized name -> archive index with inline data
	cacheBuilt bool
}

// OpenArchiveChain opens archives in order of increasing priority.
// The last archive in the list has the highest priority.
func OpenArchiveChain(paths []string) (*ArchiveChain, error) {
	archives := make([]*Archive, 0, len(paths))
	for _, path := range paths {
		archive, err := OpenArchive(path)
		if err != nil {
			for _, opened := range archives {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("open archive %s: %w", path, err)
		}
		archives = append(archives, archive)
	}
	return NewArchiveChain(archives...), nil
}

// NewArchiveChain builds a chain from already opened archives, lowest
// priority first.
func NewArchiveChain(archives ...*Archive) *ArchiveChain {
	return &ArchiveChain{archives: archives}
}

// Add appends an archive with the highest priority so far.
func (p *ArchiveChain) Add(a *Archive) {
	p.archives = append(p.archives, a)
	p.cacheBuilt = false
}

// Close closes all archives in the chain.
func (p *ArchiveChain) Close() error {
	var firstErr error
	for _, archive := range p.archives {
		if err := archive.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len returns the number of archives in the chain.
func (p *ArchiveChain) Len() int { return len(p.archives) }

// HasFile reports whether any archive holds inline data for name.
func (p *ArchiveChain) HasFile(name string) bool {
	_, ok := p.lookup(name)
	return ok
}

// ReadFile returns the highest-priority inline data for name. A reference
// entry in a higher-priority archive resolves to the data in a lower one.
func (p *ArchiveChain) ReadFile(name string) ([]byte, error) {
	i, ok := p.lookup(name)
	if !ok {
		return nil, fmt.Errorf("file not found in archive chain: %s", name)
	}
	return p.archives[i].ReadFile(name)
}

// ExtractFile writes the highest-priority inline data for name to destPath.
func (p *ArchiveChain) ExtractFile(name, destPath string) error {
	i, ok := p.lookup(name)
	if !ok {
		return fmt.Errorf("file not found in archive chain: %s", name)
	}
	return p.archives[i].ExtractFile(name, destPath)
}

// ResolveRef returns the data for a reference entry of from, searching the
// other archives in priority order.
func (p *ArchiveChain) ResolveRef(from *Archive, name string) ([]byte, error) {
	for i := len(p.archives) - 1; i >= 0; i-- {
		a := p.archives[i]
		if a == from {
			continue
		}
		data, err := a.ReadFile(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrReferenceEntry) && a.HasFile(name) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("unresolved reference: %s", name)
}

// ListFiles returns the union of entry names across the chain, in order of
// first appearance.
func (p *ArchiveChain) ListFiles() []string {
	seen := make(map[string]struct{})
	var result []string
	for _, archive := range p.archives {
		for _, name := range archive.ListFiles() {
			key := normalizeName(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, name)
		}
	}
	return result
}

func (p *ArchiveChain) lookup(name string) (int, bool) {
	if !p.cacheBuilt {
		p.rebuildFileMap()
	}
	i, ok := p.fileMap[normalizeName(name)]
	return i, ok
}

// rebuildFileMap maps every name with inline data to its highest-priority
// archive.
func (p *ArchiveChain) rebuildFileMap() {
	p.fileMap = make(map[string]int)

	// Highest priority first, so earlier hits win
	for i, archive := range slices.Backward(p.archives) {
		for _, e := range archive.entries {
			if e.IsRef() {
				continue
			}
			key := normalizeName(e.Name)
			if _, exists := p.fileMap[key]; !exists {
				p.fileMap[key] = i
			}
		}
	}
	p.cacheBuilt = true
}

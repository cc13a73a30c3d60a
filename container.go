// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"cmp"
	"slices"
	"strings"
)

// Property is a named, typed leaf value. Hash is the identity written to
// disk; Name is display-only and is set when the hash resolved.
type Property struct {
	Name  string
	Named bool
	Hash  int32
	Value Value
}

// Container is a node holding ordered properties and ordered child containers.
type Container struct {
	Name    string
	Named   bool
	Hash    int32
	HasHash bool // false only for the synthetic inline root

	Properties []*Property
	Children   []*Container

	// Unk1 and Unk2 are opaque header fields of inline containers.
	Unk1 uint8
	Unk2 uint16
}

// NewProperty returns a property identified by the hash of name.
func NewProperty(name string, v Value) *Property {
	return &Property{Name: name, Named: true, Hash: HashString(name), Value: v}
}

// NewContainer returns a container identified by the hash of name.
func NewContainer(name string) *Container {
	return &Container{Name: name, Named: true, Hash: HashString(name), HasHash: true}
}

// resolveName fills in a display name for hash when the resolver knows it.
func resolveName(r NameResolver, hash int32) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.Lookup(hash)
}

// FindProperty returns the first property with the given hash, searching
// children depth-first when recurse is set.
func (c *Container) FindProperty(hash int32, recurse bool) *Property {
	for _, p := range c.Properties {
		if p.Hash == hash {
			return p
		}
	}
	if recurse {
		for _, child := range c.Children {
			if p := child.FindProperty(hash, true); p != nil {
				return p
			}
		}
	}
	return nil
}

// FindContainer returns the first child with the given hash. With recurse
// set, direct children are checked before descending.
func (c *Container) FindContainer(hash int32, recurse bool) *Container {
	for _, child := range c.Children {
		if child.HasHash && child.Hash == hash {
			return child
		}
	}
	if recurse {
		for _, child := range c.Children {
			if found := child.FindContainer(hash, true); found != nil {
				return found
			}
		}
	}
	return nil
}

// Walk calls fn for c and every descendant in depth-first order.
func (c *Container) Walk(fn func(*Container)) {
	fn(c)
	for _, child := range c.Children {
		child.Walk(fn)
	}
}

// sortKey orders named entries first, then by lowercase name, then by hash.
func sortKey(aNamed bool, aName string, aHash int32, bNamed bool, bName string, bHash int32) int {
	if aNamed != bNamed {
		if aNamed {
			return -1
		}
		return 1
	}
	if r := strings.Compare(strings.ToLower(aName), strings.ToLower(bName)); r != 0 {
		return r
	}
	return cmp.Compare(aHash, bHash)
}

// SortCanonical reorders properties and children into canonical order.
// The sort is stable, so applying it twice gives the same result as once.
// Byte-exact round trips need the original order; sort only for export.
func (c *Container) SortCanonical(recurse bool) {
	slices.SortStableFunc(c.Properties, func(a, b *Property) int {
		return sortKey(a.Named, a.Name, a.Hash, b.Named, b.Name, b.Hash)
	})
	slices.SortStableFunc(c.Children, func(a, b *Container) int {
		return sortKey(a.Named, a.Name, a.Hash, b.Named, b.Name, b.Hash)
	})
	if recurse {
		for _, child := range c.Children {
			child.SortCanonical(true)
		}
	}
}

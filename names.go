// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"fmt"
	"strconv"
)

// NameResolver recovers display names from name hashes.
// A miss is not an error; the hash stays the only identity.
type NameResolver interface {
	Lookup(hash int32) (string, bool)
}

// NopResolver resolves nothing.
type NopResolver struct{}

func (NopResolver) Lookup(int32) (string, bool) { return "", false }

// FormatHash returns the 8-digit uppercase hex form of a name hash,
// most significant byte first.
func FormatHash(h int32) string {
	return fmt.Sprintf("%08X", uint32(h))
}

// ParseHash parses the form produced by FormatHash.
func ParseHash(s string) (int32, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("%w: hash %q is not 8 hex digits", ErrMalformedValue, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: hash %q: %v", ErrMalformedValue, s, err)
	}
	return int32(uint32(v)), nil
}

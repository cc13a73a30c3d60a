// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import "math/bits"

// hashSeed is the initial value of the three working words before the
// length and seed are added
const hashSeed = 0xDEADBEEF

// HashString returns the engine's 32-bit name hash of s with seed 0.
// Property and container names on disk are identified by this value.
// The input is the UTF-8 encoding of s, so a name outside ASCII hashes
// differently from tools that feed one byte per code point.
func HashString(s string) int32 {
	return HashBytes([]byte(s), 0)
}

// HashBytes computes the legacy name hash of b with the given seed.
//
// The algorithm is Jenkins' lookup3 hashlittle over 12-byte blocks, except
// that the final mix is always applied, even for empty input. Names hashed
// by older tooling depend on that quirk.
func HashBytes(b []byte, seed uint32) int32 {
	a := hashSeed + uint32(len(b)) + seed
	bb, c := a, a

	// Full blocks. The last 1..12 bytes are always left for the tail.
	i := 0
	for ; i+12 < len(b); i += 12 {
		a += le32(b[i:])
		bb += le32(b[i+4:])
		c += le32(b[i+8:])
		a, bb, c = hashMix(a, bb, c)
	}

	// Tail, little-endian and zero-extended
	var tail [12]byte
	copy(tail[:], b[i:])
	a += le32(tail[0:])
	bb += le32(tail[4:])
	c += le32(tail[8:])

	_, _, c = hashFinal(a, bb, c)
	return int32(c)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// hashMix is the reversible block mix
func hashMix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= bits.RotateLeft32(c, 4)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 6)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 8)
	b += a
	a -= c
	a ^= bits.RotateLeft32(c, 16)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 19)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 4)
	b += a
	return a, b, c
}

// hashFinal is the final avalanche mix
func hashFinal(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= bits.RotateLeft32(b, 14)
	a ^= c
	a -= bits.RotateLeft32(c, 11)
	b ^= a
	b -= bits.RotateLeft32(a, 25)
	c ^= b
	c -= bits.RotateLeft32(b, 16)
	a ^= c
	a -= bits.RotateLeft32(c, 4)
	b ^= a
	b -= bits.RotateLeft32(a, 14)
	c ^= b
	c -= bits.RotateLeft32(b, 24)
	return a, b, c
}

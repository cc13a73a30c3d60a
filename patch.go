// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import "fmt"

// placeholderOffset marks a reserved, not yet resolved offset slot.
const placeholderOffset = 0xFFFFFFFF

// Token identifies a reserved 4-byte offset slot.
type Token struct {
	id  int
	pos int
}

// Pos returns the position of the reserved slot.
func (t Token) Pos() int { return t.pos }

// Patcher tracks forward offsets written before their target is known.
//
// Reserve writes a placeholder and hands out a token; Resolve later writes
// the cursor's position at resolution time into that slot. Every token must
// be resolved exactly once before Finalize. Violations panic: they are bugs
// in the writer, not bad input.
type Patcher struct {
	slots    []int  // token id -> slot position
	resolved []bool // token id -> resolved
	pending  int
}

// Reserve writes a placeholder at the cursor's position and returns its token.
func (p *Patcher) Reserve(c *Cursor) Token {
	tok := Token{id: len(p.slots), pos: c.Tell()}
	p.slots = append(p.slots, tok.pos)
	p.resolved = append(p.resolved, false)
	p.pending++
	c.WriteU32(placeholderOffset)
	return tok
}

// Resolve writes the cursor's current absolute position into the token's
// slot and restores the cursor.
func (p *Patcher) Resolve(tok Token, c *Cursor) {
	p.ResolveValue(tok, c, uint32(c.Tell()))
}

// ResolveValue writes v into the token's slot and restores the cursor.
// It is used where the slot holds a size rather than an offset.
func (p *Patcher) ResolveValue(tok Token, c *Cursor, v uint32) {
	if tok.id < 0 || tok.id >= len(p.slots) || p.slots[tok.id] != tok.pos {
		panic(fmt.Sprintf("apex: unknown patch token at 0x%X", tok.pos))
	}
	if p.resolved[tok.id] {
		panic(fmt.Sprintf("apex: patch token at 0x%X resolved twice", tok.pos))
	}
	end := c.Tell()
	c.Seek(tok.pos)
	c.WriteU32(v)
	c.Seek(end)
	p.resolved[tok.id] = true
	p.pending--
}

// Pending returns the number of unresolved tokens.
func (p *Patcher) Pending() int { return p.pending }

// Finalize panics if any reserved token is still unresolved.
func (p *Patcher) Finalize() {
	if p.pending == 0 {
		return
	}
	for id, done := range p.resolved {
		if !done {
			panic(fmt.Sprintf("apex: %d unresolved patch token(s), first at 0x%X", p.pending, p.slots[id]))
		}
	}
}

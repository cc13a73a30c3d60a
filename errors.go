// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match them with errors.Is.
var (
	// Structural decode errors.
	ErrBadMagic         = errors.New("bad magic")
	ErrCountMismatch    = errors.New("count mismatch")
	ErrTruncatedInput   = errors.New("truncated input")
	ErrUnknownValueType = errors.New("unknown value type")
	ErrBadOffset        = errors.New("offset out of range")

	// Encode errors.
	ErrUnsupportedValueType = errors.New("unsupported value type")
	ErrCountOverflow        = errors.New("count overflow")
	ErrUnsupportedLayout    = errors.New("unsupported layout")

	// Text import errors.
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrMalformedDocument  = errors.New("malformed document")
	ErrUnsupportedRootTag = errors.New("unsupported root tag")
	ErrMalformedValue     = errors.New("malformed value")
)

// DecodeError describes a structural failure at a specific field.
type DecodeError struct {
	Path     string // file path, empty for in-memory input
	Field    string // field being decoded
	Offset   int    // byte offset of the field
	Expected string
	Actual   string
	Err      error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s at 0x%X", e.Field, e.Offset)
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(" (expected %s, got %s)", e.Expected, e.Actual)
	}
	return msg + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TruncatedError is returned by Cursor when fewer bytes remain than requested.
type TruncatedError struct {
	Offset int
	Want   int
	Have   int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated input at 0x%X: want %d bytes, have %d", e.Offset, e.Want, e.Have)
}

func (e *TruncatedError) Unwrap() error {
	return ErrTruncatedInput
}

// decodeErr wraps err with the field it occurred in. A TruncatedError keeps
// its own sizes as expected/actual.
func decodeErr(field string, offset int, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	e := &DecodeError{Field: field, Offset: offset, Err: err}
	var te *TruncatedError
	if errors.As(err, &te) {
		e.Offset = te.Offset
		e.Expected = fmt.Sprintf("%d bytes", te.Want)
		e.Actual = fmt.Sprintf("%d bytes", te.Have)
	}
	return e
}

// withPath attaches a file path to a DecodeError anywhere in err's chain.
func withPath(path string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		if de.Path == "" {
			de.Path = path
		}
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}

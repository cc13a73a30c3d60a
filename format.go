// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bytes"
	"encoding/binary"
)

// Format identifies a file kind handled by this package.
type Format int

const (
	FormatUnknown Format = iota
	FormatRTPC           // offset-indexed property container
	FormatIRTPC          // inline property container
	FormatSARC           // SARC v2 file archive
	FormatAAF            // AAF v1 compressed archive
	FormatXML            // text form of a property container
)

func (f Format) String() string {
	switch f {
	case FormatRTPC:
		return "rtpc"
	case FormatIRTPC:
		return "irtpc"
	case FormatSARC:
		return "sarc"
	case FormatAAF:
		return "aaf"
	case FormatXML:
		return "xml"
	}
	return "unknown"
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat identifies data by its leading bytes. The inline container
// has no magic and is recognised by its version field, so it is checked
// last.
func DetectFormat(data []byte) Format {
	switch {
	case IsAAF(data):
		return FormatAAF
	case len(data) >= 8 && binary.LittleEndian.Uint32(data) == sarcHeaderLength && string(data[4:8]) == sarcMagic:
		return FormatSARC
	case bytes.HasPrefix(data, []byte(rtpcMagic)):
		return FormatRTPC
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return FormatXML
	}
	if a, err := Sniff(data); err == nil && a == InlineLinear {
		return FormatIRTPC
	}
	return FormatUnknown
}

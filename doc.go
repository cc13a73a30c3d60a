// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package apex reads and writes the property container files of the Apex
game engine, and the archives they are shipped in.

Property containers come in two layouts that share one tree model:

  - RTPC (offset-indexed): every container stores a forward offset to its
    property headers and child headers; complex values sit at deferred
    offsets after the header region.
  - IRTPC (inline-linear): a synthetic root holds one level of containers,
    each followed by its properties with values written inline.

Names on disk are 32-bit hashes. A [NameResolver] such as [Dictionary]
recovers display names; the hash always stays authoritative, so decoding
and re-encoding without edits reproduces the input byte for byte.

# Basic Usage

Converting a binary file to its editable XML form:

	dict, err := apex.LoadDictionary("names.txt")
	if err != nil {
		log.Fatal(err)
	}

	tree, err := apex.ReadFile("settings.bin", dict)
	if err != nil {
		log.Fatal(err)
	}
	tree.Root.SortCanonical(true)
	err = tree.WriteXMLFile("settings.xml")

And back:

	tree, err := apex.ReadXMLFile("settings.xml")
	if err != nil {
		log.Fatal(err)
	}
	err = tree.WriteFile("settings_serial.bin")

# Archives

[OpenArchive] reads SARC v2 archives. Entries with a zero offset are
references to data held by another archive; an [ArchiveChain] resolves them
across archives in priority order. [CreateArchive] writes new archives
atomically on Close. [DecompressAAF] and [CompressAAF] handle the AAF
wrapper, a sequence of raw DEFLATE blocks of at most 32 MiB.

# Errors

Structural decode failures are reported as [*DecodeError] with the field,
offset and expected and actual values. Match causes with errors.Is against
[ErrBadMagic], [ErrCountMismatch], [ErrTruncatedInput] and the other
sentinels.
*/
package apex

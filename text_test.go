// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func exportString(t *testing.T, tree *Tree) string {
	t.Helper()
	var buf bytes.Buffer
	if err := tree.ExportXML(&buf); err != nil {
		t.Fatalf("ExportXML: %v", err)
	}
	return buf.String()
}

func TestExportXMLOffsetIndexed(t *testing.T) {
	d := NewDictionary()
	d.Set(0x22222222, "count")
	tree, err := DecodeOffsetIndexed(smallIndexedBytes, d)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tree.Extension = "bin"

	want := `<?xml version="1.0" encoding="UTF-8"?>
<rtpc version="1" extension="bin">
	<container hash="11111111" name="none">
		<property hash="22222222" type="uint32" name="count">5</property>
		<container hash="33333333" name="none">
			<property hash="44444444" type="str" name="none">Hello</property>
		</container>
	</container>
</rtpc>
`
	if got := exportString(t, tree); got != want {
		t.Errorf("ExportXML =\n%s\nwant\n%s", got, want)
	}
}

func TestExportXMLInline(t *testing.T) {
	tree, err := DecodeInline(smallInlineBytes, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tree.Extension = "blo"

	want := `<?xml version="1.0" encoding="UTF-8"?>
<irtpc version="1" version_02="4" extension="blo">
	<container hash="01020304" name="none" unk01="7" unk02="2057">
		<property hash="0A0A0A0A" type="uint32" name="none">5</property>
		<property hash="0B0B0B0B" type="str" name="none">Hi</property>
	</container>
</irtpc>
`
	if got := exportString(t, tree); got != want {
		t.Errorf("ExportXML =\n%s\nwant\n%s", got, want)
	}
}

func TestXMLRoundTripBinary(t *testing.T) {
	for _, tt := range []struct {
		name string
		tree *Tree
	}{
		{"rtpc", fullIndexedTree()},
		{"irtpc", fullInlineTree()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.tree.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(data, treeDictionary(tt.tree.Root))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			decoded.Extension = "bin"

			imported, err := ImportXML(strings.NewReader(exportString(t, decoded)))
			if err != nil {
				t.Fatalf("ImportXML: %v", err)
			}
			if imported.Extension != "bin" || imported.Version != decoded.Version || imported.Version2 != decoded.Version2 {
				t.Errorf("imported header = %+v", imported)
			}
			assertSameContainer(t, "root", decoded.Root, imported.Root)

			again, err := imported.Encode()
			if err != nil {
				t.Fatalf("Encode imported: %v", err)
			}
			if !bytes.Equal(data, again) {
				t.Error("binary -> xml -> binary changed the bytes")
			}
		})
	}
}

func TestXMLRoundTripNaNBits(t *testing.T) {
	quiet := math.Float32frombits(0x7FC00001)
	negative := math.Float32frombits(0xFFC00000)
	signalling := math.Float32frombits(0x7F800001)

	indexed := &Container{Hash: 1, HasHash: true, Properties: []*Property{
		{Hash: 2, Value: F32(quiet)},
		{Hash: 3, Value: Vec3{1, negative, 2}},
		{Hash: 4, Value: F32Array{signalling, 0.5}},
	}}
	inline := &Container{Hash: 5, HasHash: true, Properties: []*Property{
		{Hash: 6, Value: F32(signalling)},
		{Hash: 7, Value: Mat3x4{quiet, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, negative}},
	}}
	for _, tt := range []struct {
		name string
		tree *Tree
	}{
		{"rtpc", NewTree(OffsetIndexed, indexed)},
		{"irtpc", NewTree(InlineLinear, &Container{Unk2: irtpcVersion2, Children: []*Container{inline}})},
	} {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.tree.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(data, nil)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			text := exportString(t, decoded)
			if !strings.Contains(text, "nan:") {
				t.Errorf("NaN bits not written:\n%s", text)
			}
			imported, err := ImportXML(strings.NewReader(text))
			if err != nil {
				t.Fatalf("ImportXML: %v", err)
			}
			again, err := imported.Encode()
			if err != nil {
				t.Fatalf("Encode imported: %v", err)
			}
			if !bytes.Equal(data, again) {
				t.Errorf("NaN payloads changed:\n% X\n% X", data, again)
			}
		})
	}
}

func TestImportExportIntegralFloat(t *testing.T) {
	doc := `<rtpc version="1" extension="bin">
	<container hash="00000001">
		<property hash="00000002" type="f32">1.0</property>
	</container>
</rtpc>`
	tree, err := ImportXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportXML: %v", err)
	}
	if got := exportString(t, tree); !strings.Contains(got, `<property hash="00000002" type="f32" name="none">1</property>`) {
		t.Errorf("ExportXML =\n%s", got)
	}
}

func TestImportInlineRootWrapper(t *testing.T) {
	doc := `<?xml version='1.0' encoding='utf-8'?>
<irtpc extension="blo" version_01="1" version_02="4">
	<root unk01="1" unk02="4">
		<container hash="01020304" name="none" unk01="7" unk02="2057">
			<property hash="0A0A0A0A" type="uint32" name="none">5</property>
			<property hash="0B0B0B0B" type="str" name="none">Hi</property>
		</container>
	</root>
</irtpc>`
	tree, err := ImportXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportXML: %v", err)
	}
	if tree.Extension != "blo" || tree.Version != 1 {
		t.Errorf("header = %+v", tree)
	}
	data, err := tree.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(data, smallInlineBytes) {
		t.Errorf("Encode = % X\nwant     % X", data, smallInlineBytes)
	}
}

func TestImportUnnamedSentinel(t *testing.T) {
	none := FormatHash(HashString("none"))
	doc := `<rtpc version="1" extension="bin">
	<container hash="00000001" name="none">
		<property hash="` + none + `" type="uint32" name="none">1</property>
		<property hash="00000002" type="uint32">2</property>
	</container>
</rtpc>`
	tree, err := ImportXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportXML: %v", err)
	}
	if tree.Root.Named {
		t.Error("container with sentinel name is named")
	}
	if p := tree.Root.Properties[0]; !p.Named || p.Name != "none" {
		t.Errorf("property really called none: %q named=%v", p.Name, p.Named)
	}
	if tree.Root.Properties[1].Named {
		t.Error("property without a name attribute is named")
	}
}

func TestImportXMLEmptyBodies(t *testing.T) {
	doc := `<rtpc version="1">
	<container hash="00000001">
		<property hash="00000002" type="a[uint32]"></property>
		<property hash="00000003" type="vec3"/>
		<property hash="00000004" type="none"/>
		<property hash="00000005" type="str">  spaced  </property>
	</container>
</rtpc>`
	tree, err := ImportXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ImportXML: %v", err)
	}
	props := tree.Root.Properties
	if v, ok := props[0].Value.(U32Array); !ok || len(v) != 0 {
		t.Errorf("empty array = %#v", props[0].Value)
	}
	if props[1].Value != (Vec3{}) {
		t.Errorf("empty vec3 = %#v", props[1].Value)
	}
	if props[2].Value != (Unassigned{}) {
		t.Errorf("empty none = %#v", props[2].Value)
	}
	if props[3].Value != Str("  spaced  ") {
		t.Errorf("string = %q", props[3].Value)
	}
}

func TestImportXMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"not xml", `not xml at all`, ErrMalformedDocument},
		{"unclosed", `<rtpc version="1"><container hash="00000001">`, ErrMalformedDocument},
		{"root tag", `<sarc version="1"/>`, ErrUnsupportedRootTag},
		{"rtpc version", `<rtpc version="2"><container hash="00000001"/></rtpc>`, ErrUnsupportedVersion},
		{"missing version", `<rtpc><container hash="00000001"/></rtpc>`, ErrUnsupportedVersion},
		{"irtpc version_02", `<irtpc version="1" version_02="3"/>`, ErrUnsupportedVersion},
		{"irtpc version range", `<irtpc version="300" version_02="4"/>`, ErrUnsupportedVersion},
		{"two roots", `<rtpc version="1"><container hash="00000001"/><container hash="00000002"/></rtpc>`, ErrMalformedDocument},
		{"no container", `<rtpc version="1"/>`, ErrMalformedDocument},
		{"missing hash", `<rtpc version="1"><container/></rtpc>`, ErrMalformedDocument},
		{"bad hash", `<rtpc version="1"><container hash="xyz"/></rtpc>`, ErrMalformedValue},
		{"unknown type", `<rtpc version="1"><container hash="00000001"><property hash="00000002" type="vec9">1</property></container></rtpc>`, ErrUnknownValueType},
		{"mat3x4 in rtpc", `<rtpc version="1"><container hash="00000001"><property hash="00000002" type="mat3x4"/></container></rtpc>`, ErrUnsupportedValueType},
		{"mat4 in irtpc", `<irtpc version="1" version_02="4"><container hash="00000001"><property hash="00000002" type="mat4"/></container></irtpc>`, ErrUnsupportedValueType},
		{"dep", `<rtpc version="1"><container hash="00000001"><property hash="00000002" type="dep"/></container></rtpc>`, ErrUnsupportedValueType},
		{"nested irtpc", `<irtpc version="1" version_02="4"><container hash="00000001"><container hash="00000002"/></container></irtpc>`, ErrMalformedDocument},
		{"bad value", `<rtpc version="1"><container hash="00000001"><property hash="00000002" type="uint32">x</property></container></rtpc>`, ErrMalformedValue},
		{"bad unk01", `<irtpc version="1" version_02="4"><container hash="00000001" unk01="256"/></irtpc>`, ErrMalformedValue},
		{"root wrapper mismatch", `<irtpc version_01="1" version_02="4"><root unk01="1" unk02="5"/></irtpc>`, ErrMalformedDocument},
		{"version_01 in rtpc", `<rtpc version_01="1"><container hash="00000001"/></rtpc>`, ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportXML(strings.NewReader(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestXMLFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "settings.bin")
	if err := smallIndexedTree().WriteFile(src); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tree, err := ReadFile(src, nil)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tree.Extension != "bin" {
		t.Errorf("Extension = %q, want bin", tree.Extension)
	}

	xmlPath := filepath.Join(dir, "settings.xml")
	if err := tree.WriteXMLFile(xmlPath); err != nil {
		t.Fatalf("WriteXMLFile: %v", err)
	}
	back, err := ReadXMLFile(xmlPath)
	if err != nil {
		t.Fatalf("ReadXMLFile: %v", err)
	}
	data, err := back.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(data, smallIndexedBytes) {
		t.Error("file round trip changed the bytes")
	}
}

func TestReadFileErrorPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.bin")
	if err := writeFileAtomic(path, smallIndexedBytes[:20]); err != nil {
		t.Fatal(err)
	}
	_, err := ReadFile(path, nil)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if de.Path != path {
		t.Errorf("Path = %q, want %q", de.Path, path)
	}
	if !strings.HasPrefix(err.Error(), path+": ") {
		t.Errorf("message %q does not start with the path", err.Error())
	}
}

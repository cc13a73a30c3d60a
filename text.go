// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package apex

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Element and attribute names of the text form
const (
	tagRTPC      = "rtpc"
	tagIRTPC     = "irtpc"
	tagContainer = "container"
	tagProperty  = "property"
	tagRoot      = "root" // older irtpc documents wrap containers in it

	attrVersion   = "version"
	attrVersion1  = "version_01" // older irtpc spelling of version
	attrVersion2  = "version_02"
	attrExtension = "extension"
	attrHash      = "hash"
	attrName      = "name"
	attrType      = "type"
	attrUnk1      = "unk01"
	attrUnk2      = "unk02"

	// unnamedSentinel is written as the name of entries whose hash did not
	// resolve.
	unnamedSentinel = "none"
)

// xmlNode is a generic element. The text form is small enough that a
// typed schema would only restate the attribute list.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func newNode(tag string, attrs ...string) xmlNode {
	n := xmlNode{XMLName: xml.Name{Local: tag}}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return n
}

func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// ExportXML writes the text form of t.
func (t *Tree) ExportXML(w io.Writer) error {
	if t.Root == nil {
		return fmt.Errorf("%w: tree has no root", ErrUnsupportedLayout)
	}
	var root xmlNode
	if t.Addressing == InlineLinear {
		root = newNode(tagIRTPC,
			attrVersion, strconv.FormatUint(uint64(t.Version), 10),
			attrVersion2, strconv.FormatUint(uint64(t.Version2), 10),
			attrExtension, t.Extension)
		for _, cont := range t.Root.Children {
			root.Children = append(root.Children, exportContainer(cont, true))
		}
	} else {
		root = newNode(tagRTPC,
			attrVersion, strconv.FormatUint(uint64(t.Version), 10),
			attrExtension, t.Extension)
		root.Children = []xmlNode{exportContainer(t.Root, false)}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func displayName(name string, named bool) string {
	if !named {
		return unnamedSentinel
	}
	return name
}

func exportContainer(c *Container, inline bool) xmlNode {
	n := newNode(tagContainer, attrHash, FormatHash(c.Hash), attrName, displayName(c.Name, c.Named))
	if inline {
		n.Attrs = append(n.Attrs,
			xml.Attr{Name: xml.Name{Local: attrUnk1}, Value: strconv.Itoa(int(c.Unk1))},
			xml.Attr{Name: xml.Name{Local: attrUnk2}, Value: strconv.Itoa(int(c.Unk2))})
	}
	for _, p := range c.Properties {
		v := p.Value
		if v == nil {
			v = Unassigned{}
		}
		pn := newNode(tagProperty,
			attrHash, FormatHash(p.Hash),
			attrType, v.Type().String(),
			attrName, displayName(p.Name, p.Named))
		pn.Text = FormatValue(v)
		n.Children = append(n.Children, pn)
	}
	for _, child := range c.Children {
		n.Children = append(n.Children, exportContainer(child, inline))
	}
	return n
}

// ImportXML parses the text form produced by ExportXML.
func ImportXML(r io.Reader) (*Tree, error) {
	var root xmlNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	t := &Tree{}
	switch root.XMLName.Local {
	case tagRTPC:
		t.Addressing = OffsetIndexed
	case tagIRTPC:
		t.Addressing = InlineLinear
	default:
		return nil, fmt.Errorf("%w: <%s>", ErrUnsupportedRootTag, root.XMLName.Local)
	}

	versionName := attrVersion
	if _, ok := root.attr(attrVersion); !ok && t.Addressing == InlineLinear {
		if _, ok := root.attr(attrVersion1); ok {
			versionName = attrVersion1
		}
	}
	version, err := versionAttr(&root, versionName, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	t.Version = uint32(version)
	t.Extension, _ = root.attr(attrExtension)

	if t.Addressing == OffsetIndexed {
		if t.Version != rtpcVersion {
			return nil, fmt.Errorf("%w: rtpc version %d", ErrUnsupportedVersion, t.Version)
		}
		var containers []*xmlNode
		for i := range root.Children {
			if root.Children[i].XMLName.Local == tagContainer {
				containers = append(containers, &root.Children[i])
			} else {
				return nil, fmt.Errorf("%w: unexpected <%s> in <%s>", ErrMalformedDocument, root.Children[i].XMLName.Local, tagRTPC)
			}
		}
		if len(containers) != 1 {
			return nil, fmt.Errorf("%w: <%s> needs exactly one <%s>, found %d", ErrMalformedDocument, tagRTPC, tagContainer, len(containers))
		}
		if t.Root, err = importContainer(containers[0], OffsetIndexed); err != nil {
			return nil, err
		}
		return t, nil
	}

	version2, err := versionAttr(&root, attrVersion2, math.MaxUint16)
	if err != nil {
		return nil, err
	}
	if version2 != irtpcVersion2 {
		return nil, fmt.Errorf("%w: irtpc version_02 %d", ErrUnsupportedVersion, version2)
	}
	if t.Version > math.MaxUint8 {
		return nil, fmt.Errorf("%w: irtpc version %d", ErrUnsupportedVersion, t.Version)
	}
	t.Version2 = uint16(version2)
	t.Root = &Container{Unk1: uint8(t.Version), Unk2: t.Version2}
	children, err := inlineContainers(&root, t.Root)
	if err != nil {
		return nil, err
	}
	for i := range children {
		child := &children[i]
		if child.XMLName.Local != tagContainer {
			return nil, fmt.Errorf("%w: unexpected <%s> in <%s>", ErrMalformedDocument, child.XMLName.Local, tagIRTPC)
		}
		cont, err := importContainer(child, InlineLinear)
		if err != nil {
			return nil, err
		}
		t.Root.Children = append(t.Root.Children, cont)
	}
	return t, nil
}

// inlineContainers returns the container elements of an irtpc document,
// looking through a <root> wrapper whose unk01 and unk02, when given, must
// repeat the header versions.
func inlineContainers(doc *xmlNode, header *Container) ([]xmlNode, error) {
	if len(doc.Children) != 1 || doc.Children[0].XMLName.Local != tagRoot {
		return doc.Children, nil
	}
	wrapper := &doc.Children[0]
	for _, a := range []struct {
		name string
		want uint64
	}{{attrUnk1, uint64(header.Unk1)}, {attrUnk2, uint64(header.Unk2)}} {
		s, ok := wrapper.attr(a.name)
		if !ok {
			continue
		}
		if v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16); err != nil || v != a.want {
			return nil, fmt.Errorf("%w: <%s %s=%q> does not match the header value %d",
				ErrMalformedDocument, tagRoot, a.name, s, a.want)
		}
	}
	return wrapper.Children, nil
}

// versionAttr reads a required numeric version attribute.
func versionAttr(n *xmlNode, name string, limit uint64) (uint64, error) {
	s, ok := n.attr(name)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s attribute", ErrUnsupportedVersion, name)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v > limit {
		return 0, fmt.Errorf("%w: %s=%q", ErrUnsupportedVersion, name, s)
	}
	return v, nil
}

// importName maps the name attribute back to a name. The sentinel means
// unnamed unless the entry really is called "none".
func importName(n *xmlNode, hash int32) (string, bool) {
	name, ok := n.attr(attrName)
	if !ok {
		return "", false
	}
	if name == unnamedSentinel && HashString(name) != hash {
		return "", false
	}
	return name, true
}

func importHash(n *xmlNode) (int32, error) {
	s, ok := n.attr(attrHash)
	if !ok {
		return 0, fmt.Errorf("%w: <%s> without %s", ErrMalformedDocument, n.XMLName.Local, attrHash)
	}
	return ParseHash(strings.TrimSpace(s))
}

func importContainer(n *xmlNode, a Addressing) (*Container, error) {
	hash, err := importHash(n)
	if err != nil {
		return nil, err
	}
	c := &Container{Hash: hash, HasHash: true}
	c.Name, c.Named = importName(n, hash)

	if a == InlineLinear {
		if s, ok := n.attr(attrUnk1); ok {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: container %s %s=%q", ErrMalformedValue, FormatHash(hash), attrUnk1, s)
			}
			c.Unk1 = uint8(v)
		}
		if s, ok := n.attr(attrUnk2); ok {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
			if err != nil {
				return nil, fmt.Errorf("%w: container %s %s=%q", ErrMalformedValue, FormatHash(hash), attrUnk2, s)
			}
			c.Unk2 = uint16(v)
		}
	}

	for i := range n.Children {
		child := &n.Children[i]
		switch {
		case child.XMLName.Local == tagProperty:
			p, err := importProperty(child, a)
			if err != nil {
				return nil, fmt.Errorf("container %s: %w", FormatHash(hash), err)
			}
			c.Properties = append(c.Properties, p)
		case child.XMLName.Local == tagContainer && a == OffsetIndexed:
			sub, err := importContainer(child, a)
			if err != nil {
				return nil, err
			}
			c.Children = append(c.Children, sub)
		default:
			return nil, fmt.Errorf("%w: unexpected <%s> in container %s", ErrMalformedDocument, child.XMLName.Local, FormatHash(hash))
		}
	}
	return c, nil
}

func importProperty(n *xmlNode, a Addressing) (*Property, error) {
	hash, err := importHash(n)
	if err != nil {
		return nil, err
	}
	typeName, _ := n.attr(attrType)
	t, ok := ParseValueType(typeName)
	if !ok {
		return nil, fmt.Errorf("property %s: %w: type %q", FormatHash(hash), ErrUnknownValueType, typeName)
	}
	if !SupportsType(a, t) {
		return nil, fmt.Errorf("property %s: %w: %s in %s", FormatHash(hash), ErrUnsupportedValueType, t, a)
	}
	v, err := ParseValue(t, n.Text)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", FormatHash(hash), err)
	}
	p := &Property{Hash: hash, Value: v}
	p.Name, p.Named = importName(n, hash)
	return p, nil
}

// ReadXMLFile imports the text form at path.
func ReadXMLFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	t, err := ImportXML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteXMLFile exports t to path.
func (t *Tree) WriteXMLFile(path string) error {
	var buf bytes.Buffer
	if err := t.ExportXML(&buf); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return writeFileAtomic(path, buf.Bytes())
}

// canonicalNaN is the NaN written as plain "NaN".
const canonicalNaN = 0x7FC00000

// nanPrefix introduces the bit pattern of any other NaN, e.g. "nan:7FC00001".
const nanPrefix = "nan:"

// FormatFloat formats a float for the text form. Integral values print
// without a fraction; others use four decimals when that parses back to
// the same value, and the shortest exact form otherwise. NaNs other than
// the canonical one keep their bits.
func FormatFloat(f float32) string {
	if math.IsNaN(float64(f)) {
		if bits := math.Float32bits(f); bits != canonicalNaN {
			return fmt.Sprintf("%s%08X", nanPrefix, bits)
		}
		return "NaN"
	}
	d := float64(f)
	if d == math.Trunc(d) && !math.IsInf(d, 0) {
		return strconv.FormatFloat(d, 'f', 0, 64)
	}
	s := strconv.FormatFloat(d, 'f', 4, 32)
	if v, err := strconv.ParseFloat(s, 32); err == nil && math.Float32bits(float32(v)) == math.Float32bits(f) {
		return s
	}
	return strconv.FormatFloat(d, 'f', -1, 32)
}

func joinFloats(fs []float32, perRow int) string {
	var sb strings.Builder
	for i, f := range fs {
		if i > 0 {
			if perRow > 0 && i%perRow == 0 {
				sb.WriteByte(' ')
			} else {
				sb.WriteByte(',')
			}
		}
		sb.WriteString(FormatFloat(f))
	}
	return sb.String()
}

// FormatValue returns the text literal of v.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case U32:
		return strconv.FormatUint(uint64(v), 10)
	case F32:
		return FormatFloat(float32(v))
	case Str:
		return string(v)
	case Vec2:
		return joinFloats(v[:], 0)
	case Vec3:
		return joinFloats(v[:], 0)
	case Vec4:
		return joinFloats(v[:], 0)
	case Mat3x3:
		return joinFloats(v[:], 3)
	case Mat3x4:
		return joinFloats(v[:], 3)
	case Mat4x4:
		return joinFloats(v[:], 4)
	case U32Array:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = strconv.FormatUint(uint64(x), 10)
		}
		return strings.Join(parts, ",")
	case F32Array:
		return joinFloats(v, 0)
	case Bytes:
		parts := make([]string, len(v))
		for i, b := range v {
			parts[i] = fmt.Sprintf("%02X", b)
		}
		return strings.Join(parts, ",")
	case ObjectID:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		return strings.ToUpper(hex.EncodeToString(b[:]))
	case Event:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprintf("%08X=%08X", p.A, p.B)
		}
		return strings.Join(parts, ", ")
	case Unassigned:
		if v.Raw == 0 {
			return ""
		}
		return strconv.FormatUint(uint64(v.Raw), 10)
	}
	return ""
}

func malformed(t ValueType, text string, err error) error {
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) {
			err = ne.Err
		}
		return fmt.Errorf("%w: %s %q: %v", ErrMalformedValue, t, text, err)
	}
	return fmt.Errorf("%w: %s %q", ErrMalformedValue, t, text)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseFloats(t ValueType, text string, n int) ([]float32, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if n >= 0 && len(fields) != n {
		return nil, fmt.Errorf("%w: %s needs %d components, got %d", ErrMalformedValue, t, n, len(fields))
	}
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := parseFloat32(f)
		if err != nil {
			return nil, malformed(t, f, err)
		}
		out[i] = v
	}
	return out, nil
}

// parseFloat32 reads a float written by FormatFloat.
func parseFloat32(s string) (float32, error) {
	if len(s) > len(nanPrefix) && strings.EqualFold(s[:len(nanPrefix)], nanPrefix) {
		bits, err := strconv.ParseUint(s[len(nanPrefix):], 16, 32)
		if err != nil {
			return 0, err
		}
		f := math.Float32frombits(uint32(bits))
		if !math.IsNaN(float64(f)) {
			return 0, fmt.Errorf("%08X is not a NaN", bits)
		}
		return f, nil
	}
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

// ParseValue parses the text literal of a value of type t. Empty text gives
// the empty value of t. Text of strings is kept verbatim; other literals
// ignore surrounding whitespace.
func ParseValue(t ValueType, text string) (Value, error) {
	if t == TypeString {
		return Str(text), nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		if v, ok := zeroValue(t); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedValueType, t)
	}

	switch t {
	case TypeUnassigned:
		v, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, malformed(t, text, err)
		}
		return Unassigned{Raw: uint32(v)}, nil
	case TypeUInt32:
		v, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, malformed(t, text, err)
		}
		return U32(v), nil
	case TypeFloat32:
		v, err := parseFloat32(text)
		if err != nil {
			return nil, malformed(t, text, err)
		}
		return F32(v), nil
	case TypeVec2, TypeVec3, TypeVec4, TypeMat3x3, TypeMat3x4, TypeMat4x4:
		return parseFixed(t, text)
	case TypeUInt32Array:
		parts := splitList(text)
		out := make(U32Array, len(parts))
		for i, s := range parts {
			v, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return nil, malformed(t, s, err)
			}
			out[i] = uint32(v)
		}
		return out, nil
	case TypeFloat32Array:
		fs, err := parseFloats(t, text, -1)
		if err != nil {
			return nil, err
		}
		return F32Array(fs), nil
	case TypeByteArray:
		parts := splitList(text)
		out := make(Bytes, len(parts))
		for i, s := range parts {
			v, err := strconv.ParseUint(s, 16, 8)
			if err != nil {
				return nil, malformed(t, s, err)
			}
			out[i] = byte(v)
		}
		return out, nil
	case TypeObjectID:
		b, err := hex.DecodeString(text)
		if err != nil || len(b) != 8 {
			return nil, malformed(t, text, err)
		}
		return ObjectID(binary.LittleEndian.Uint64(b)), nil
	case TypeEvent:
		parts := splitList(text)
		out := make(Event, len(parts))
		for i, s := range parts {
			left, right, ok := strings.Cut(s, "=")
			if !ok {
				return nil, malformed(t, s, nil)
			}
			a, err := strconv.ParseUint(strings.TrimSpace(left), 16, 32)
			if err != nil {
				return nil, malformed(t, s, err)
			}
			b, err := strconv.ParseUint(strings.TrimSpace(right), 16, 32)
			if err != nil {
				return nil, malformed(t, s, err)
			}
			out[i] = EventPair{A: uint32(a), B: uint32(b)}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedValueType, t)
}

func parseFixed(t ValueType, text string) (Value, error) {
	fs, err := parseFloats(t, text, floatCount(t))
	if err != nil {
		return nil, err
	}
	return floatValue(t, fs), nil
}

package classfile

import (
	"fmt"
)

// AttributeKind identifies an interpreted attribute variant. In the
// stripped form the kind replaces the attribute name on the wire.
type AttributeKind uint16

const (
	KindRaw AttributeKind = iota
	KindConstantValue
	KindExceptions
	KindCode
	KindLineNumberTable
	KindLocalVariableTable
	KindStackMapTable
	KindSourceFile
)

var attributeNames = map[AttributeKind]string{
	KindConstantValue:      "ConstantValue",
	KindExceptions:         "Exceptions",
	KindCode:               "Code",
	KindLineNumberTable:    "LineNumberTable",
	KindLocalVariableTable: "LocalVariableTable",
	KindStackMapTable:      "StackMapTable",
	KindSourceFile:         "SourceFile",
}

func (k AttributeKind) String() string {
	if name, ok := attributeNames[k]; ok {
		return name
	}
	return "Raw"
}

// attributeParser decodes one attribute payload. The decoder is bounded to
// exactly the declared length.
type attributeParser func(h attrHeader, d *decoder, ctx *readContext) (Attribute, error)

var attributeReaders map[string]attributeParser

var attributeKinds map[string]AttributeKind

func init() {
	attributeReaders = map[string]attributeParser{
		"ConstantValue":      parseConstantValue,
		"Exceptions":         parseExceptions,
		"Code":               parseCode,
		"LineNumberTable":    parseLineNumberTable,
		"LocalVariableTable": parseLocalVariableTable,
		"StackMapTable":      parseStackMapTable,
		"SourceFile":         parseSourceFile,
	}
	attributeKinds = make(map[string]AttributeKind, len(attributeNames))
	for kind, name := range attributeNames {
		attributeKinds[name] = kind
	}
}

// RefVisitor is called with a pointer to every pool ref an entity holds.
// It may rewrite the ref in place. Absent (zero) refs are never visited.
type RefVisitor func(ref *Ref) error

// Attribute is one attribute of a class, member or code body.
type Attribute interface {
	// NameRef is the Utf8 slot holding the attribute name.
	NameRef() Ref
	Kind() AttributeKind
	// DeclaredLength is the payload length recorded in the header.
	DeclaredLength() uint32
	// VisitRefs walks every pool ref the attribute holds, recursing into
	// nested attributes. The name ref is visited only when withName is set.
	VisitRefs(visit RefVisitor, withName bool) error

	header() *attrHeader
	writePayload(e *encoder, opts WriteOptions) error
}

type attrHeader struct {
	Name   Ref
	Length uint32
}

func (h *attrHeader) NameRef() Ref           { return h.Name }
func (h *attrHeader) DeclaredLength() uint32 { return h.Length }
func (h *attrHeader) header() *attrHeader    { return h }
func (h *attrHeader) visitName(visit RefVisitor, withName bool) error {
	if !withName {
		return nil
	}
	return visitRef(visit, &h.Name)
}

func visitRef(visit RefVisitor, ref *Ref) error {
	if *ref == 0 {
		return nil
	}
	return visit(ref)
}

// RawAttribute preserves an attribute this package does not interpret.
type RawAttribute struct {
	attrHeader
	Data []byte
}

func (a *RawAttribute) Kind() AttributeKind { return KindRaw }

func (a *RawAttribute) VisitRefs(visit RefVisitor, withName bool) error {
	return a.visitName(visit, withName)
}

func (a *RawAttribute) writePayload(e *encoder, opts WriteOptions) error {
	if opts.StripNames {
		return formatErrorf("write", "uninterpreted attribute #%d cannot be written without its name", a.Name)
	}
	e.raw(a.Data)
	return nil
}

// ConstantValueAttribute names the initial value of a static field.
type ConstantValueAttribute struct {
	attrHeader
	Value Ref
}

func (a *ConstantValueAttribute) Kind() AttributeKind { return KindConstantValue }

func (a *ConstantValueAttribute) VisitRefs(visit RefVisitor, withName bool) error {
	if err := a.visitName(visit, withName); err != nil {
		return err
	}
	return visitRef(visit, &a.Value)
}

func (a *ConstantValueAttribute) writePayload(e *encoder, _ WriteOptions) error {
	e.ref(a.Value)
	return nil
}

func parseConstantValue(h attrHeader, d *decoder, _ *readContext) (Attribute, error) {
	v, err := d.ref()
	if err != nil {
		return nil, err
	}
	return &ConstantValueAttribute{attrHeader: h, Value: v}, nil
}

// ExceptionsAttribute lists the checked exceptions a method declares.
type ExceptionsAttribute struct {
	attrHeader
	Classes []Ref
}

func (a *ExceptionsAttribute) Kind() AttributeKind { return KindExceptions }

func (a *ExceptionsAttribute) VisitRefs(visit RefVisitor, withName bool) error {
	if err := a.visitName(visit, withName); err != nil {
		return err
	}
	for i := range a.Classes {
		if err := visitRef(visit, &a.Classes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *ExceptionsAttribute) writePayload(e *encoder, _ WriteOptions) error {
	e.u2(uint16(len(a.Classes)))
	for _, r := range a.Classes {
		e.ref(r)
	}
	return nil
}

func parseExceptions(h attrHeader, d *decoder, _ *readContext) (Attribute, error) {
	n, err := d.u2()
	if err != nil {
		return nil, err
	}
	a := &ExceptionsAttribute{attrHeader: h, Classes: make([]Ref, n)}
	for i := range a.Classes {
		if a.Classes[i], err = d.ref(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// SourceFileAttribute names the source file a class was compiled from.
type SourceFileAttribute struct {
	attrHeader
	File Ref
}

func (a *SourceFileAttribute) Kind() AttributeKind { return KindSourceFile }

func (a *SourceFileAttribute) VisitRefs(visit RefVisitor, withName bool) error {
	if err := a.visitName(visit, withName); err != nil {
		return err
	}
	return visitRef(visit, &a.File)
}

func (a *SourceFileAttribute) writePayload(e *encoder, _ WriteOptions) error {
	e.ref(a.File)
	return nil
}

func parseSourceFile(h attrHeader, d *decoder, _ *readContext) (Attribute, error) {
	v, err := d.ref()
	if err != nil {
		return nil, err
	}
	return &SourceFileAttribute{attrHeader: h, File: v}, nil
}

// LineNumber maps a bytecode offset to a source line.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// LineNumberTableAttribute is debug line information for a code body.
type LineNumberTableAttribute struct {
	attrHeader
	Lines []LineNumber
}

func (a *LineNumberTableAttribute) Kind() AttributeKind { return KindLineNumberTable }

func (a *LineNumberTableAttribute) VisitRefs(visit RefVisitor, withName bool) error {
	return a.visitName(visit, withName)
}

func (a *LineNumberTableAttribute) writePayload(e *encoder, _ WriteOptions) error {
	e.u2(uint16(len(a.Lines)))
	for _, l := range a.Lines {
		e.u2(l.StartPC)
		e.u2(l.Line)
	}
	return nil
}

func parseLineNumberTable(h attrHeader, d *decoder, _ *readContext) (Attribute, error) {
	n, err := d.u2()
	if err != nil {
		return nil, err
	}
	a := &LineNumberTableAttribute{attrHeader: h, Lines: make([]LineNumber, n)}
	for i := range a.Lines {
		if a.Lines[i].StartPC, err = d.u2(); err != nil {
			return nil, err
		}
		if a.Lines[i].Line, err = d.u2(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// LocalVariable describes one local variable's live range.
type LocalVariable struct {
	StartPC uint16
	Length  uint16
	Name    Ref
	Desc    Ref
	Slot    uint16
}

// LocalVariableTableAttribute is debug local-variable information.
type LocalVariableTableAttribute struct {
	attrHeader
	Vars []LocalVariable
}

func (a *LocalVariableTableAttribute) Kind() AttributeKind { return KindLocalVariableTable }

func (a *LocalVariableTableAttribute) VisitRefs(visit RefVisitor, withName bool) error {
	if err := a.visitName(visit, withName); err != nil {
		return err
	}
	for i := range a.Vars {
		if err := visitRef(visit, &a.Vars[i].Name); err != nil {
			return err
		}
		if err := visitRef(visit, &a.Vars[i].Desc); err != nil {
			return err
		}
	}
	return nil
}

func (a *LocalVariableTableAttribute) writePayload(e *encoder, _ WriteOptions) error {
	e.u2(uint16(len(a.Vars)))
	for _, v := range a.Vars {
		e.u2(v.StartPC)
		e.u2(v.Length)
		e.ref(v.Name)
		e.ref(v.Desc)
		e.u2(v.Slot)
	}
	return nil
}

func parseLocalVariableTable(h attrHeader, d *decoder, _ *readContext) (Attribute, error) {
	n, err := d.u2()
	if err != nil {
		return nil, err
	}
	a := &LocalVariableTableAttribute{attrHeader: h, Vars: make([]LocalVariable, n)}
	for i := range a.Vars {
		v := &a.Vars[i]
		if v.StartPC, err = d.u2(); err != nil {
			return nil, err
		}
		if v.Length, err = d.u2(); err != nil {
			return nil, err
		}
		if v.Name, err = d.ref(); err != nil {
			return nil, err
		}
		if v.Desc, err = d.ref(); err != nil {
			return nil, err
		}
		if v.Slot, err = d.u2(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func readAttributes(d *decoder, ctx *readContext) ([]Attribute, error) {
	n, err := d.u2()
	if err != nil {
		return nil, fmt.Errorf("attribute count: %w", err)
	}
	attrs := make([]Attribute, 0, n)
	for i := 0; i < int(n); i++ {
		a, err := readAttribute(d, ctx)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func readAttribute(d *decoder, ctx *readContext) (Attribute, error) {
	nameField, err := d.u2()
	if err != nil {
		return nil, err
	}
	length, err := d.u4()
	if err != nil {
		return nil, err
	}
	payload, err := d.bytes(int(length))
	if err != nil {
		return nil, err
	}
	h := attrHeader{Name: Ref(nameField), Length: length}

	var name string
	if ctx.opts.StripNames {
		kind := AttributeKind(nameField)
		known, ok := attributeNames[kind]
		if !ok {
			return nil, fmt.Errorf("unknown stripped attribute kind %d", nameField)
		}
		name = known
		h.Name = 0
	} else {
		name, err = ctx.pool.Utf8At(h.Name)
		if err != nil {
			return nil, fmt.Errorf("attribute name: %w", err)
		}
	}

	parse, ok := attributeReaders[name]
	if !ok {
		return &RawAttribute{attrHeader: h, Data: payload}, nil
	}
	sub := newDecoder(payload)
	a, err := parse(h, sub, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if sub.remaining() != 0 {
		return nil, formatErrorf("read", "%s attribute: declared length %d leaves %d bytes unread", name, length, sub.remaining())
	}
	return a, nil
}

func writeAttributes(e *encoder, attrs []Attribute, opts WriteOptions) error {
	e.u2(uint16(len(attrs)))
	for _, a := range attrs {
		if err := writeAttribute(e, a, opts); err != nil {
			return err
		}
	}
	return nil
}

// writeAttribute emits header and payload and enforces that the payload is
// exactly as long as the header declares.
func writeAttribute(e *encoder, a Attribute, opts WriteOptions) error {
	var payload encoder
	if err := a.writePayload(&payload, opts); err != nil {
		return err
	}
	if uint32(payload.len()) != a.DeclaredLength() {
		return formatErrorf("write", "%s attribute: declared length %d, payload is %d bytes", a.Kind(), a.DeclaredLength(), payload.len())
	}
	if opts.StripNames {
		e.u2(uint16(a.Kind()))
	} else {
		if a.NameRef() == 0 {
			return formatErrorf("write", "%s attribute has no name ref", a.Kind())
		}
		e.ref(a.NameRef())
	}
	e.u4(a.DeclaredLength())
	e.raw(payload.bytes())
	return nil
}

// Seal recomputes the declared length of a (possibly nested) attribute from
// its current payload. It is used for synthesized attributes and after an
// edit changes a payload's size.
func Seal(a Attribute) error {
	if code, ok := a.(*CodeAttribute); ok {
		for _, nested := range code.Attributes {
			if err := Seal(nested); err != nil {
				return err
			}
		}
	}
	var payload encoder
	if err := a.writePayload(&payload, WriteOptions{}); err != nil {
		return err
	}
	a.header().Length = uint32(payload.len())
	return nil
}

// NewAttribute builds an empty attribute of the given kind whose name ref is
// added to pool. Callers fill the payload and then Seal it.
func NewAttribute(pool *Pool, kind AttributeKind) (Attribute, error) {
	name, ok := attributeNames[kind]
	if !ok {
		return nil, fmt.Errorf("new attribute: kind %d has no name", kind)
	}
	ref, err := pool.Utf8(name)
	if err != nil {
		return nil, err
	}
	h := attrHeader{Name: ref}
	var a Attribute
	switch kind {
	case KindConstantValue:
		a = &ConstantValueAttribute{attrHeader: h}
	case KindExceptions:
		a = &ExceptionsAttribute{attrHeader: h}
	case KindCode:
		a = &CodeAttribute{attrHeader: h}
	case KindLineNumberTable:
		a = &LineNumberTableAttribute{attrHeader: h}
	case KindLocalVariableTable:
		a = &LocalVariableTableAttribute{attrHeader: h}
	case KindStackMapTable:
		a = &StackMapTableAttribute{attrHeader: h}
	case KindSourceFile:
		a = &SourceFileAttribute{attrHeader: h}
	}
	return a, nil
}

// NewRawAttribute builds a sealed uninterpreted attribute.
func NewRawAttribute(pool *Pool, name string, data []byte) (*RawAttribute, error) {
	ref, err := pool.Utf8(name)
	if err != nil {
		return nil, err
	}
	return &RawAttribute{attrHeader: attrHeader{Name: ref, Length: uint32(len(data))}, Data: data}, nil
}

// Package classtest builds small class units for tests.
package classtest

import (
	"testing"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// OpReturn is the bytecode for a void return.
const OpReturn = 0xb1

// Builder assembles a class in memory. Every helper fails the test on error.
type Builder struct {
	tb         testing.TB
	Pool       *classfile.Pool
	access     classfile.AccessFlags
	this       classfile.Ref
	super      classfile.Ref
	interfaces []classfile.Ref
	fields     []*classfile.Field
	methods    []*classfile.Method
	attrs      []classfile.Attribute
}

// New starts a public class. An empty super leaves super_class zero.
func New(tb testing.TB, name, super string, interfaces ...string) *Builder {
	tb.Helper()
	b := &Builder{tb: tb, Pool: classfile.NewPool(), access: classfile.AccPublic | classfile.AccSuper}
	b.this = b.Class(name)
	if super != "" {
		b.super = b.Class(super)
	}
	for _, iface := range interfaces {
		b.interfaces = append(b.interfaces, b.Class(iface))
	}
	return b
}

// Interface marks the class as an interface.
func (b *Builder) Interface() *Builder {
	b.access = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
	return b
}

func (b *Builder) must(ref classfile.Ref, err error) classfile.Ref {
	b.tb.Helper()
	if err != nil {
		b.tb.Fatalf("classtest: %v", err)
	}
	return ref
}

// Utf8 adds a Utf8 constant.
func (b *Builder) Utf8(s string) classfile.Ref {
	b.tb.Helper()
	return b.must(b.Pool.Utf8(s))
}

// Class adds a Class constant.
func (b *Builder) Class(name string) classfile.Ref {
	b.tb.Helper()
	return b.must(b.Pool.Class(name))
}

// String adds a String constant.
func (b *Builder) String(s string) classfile.Ref {
	b.tb.Helper()
	return b.must(b.Pool.String(s))
}

// Fieldref adds a field reference.
func (b *Builder) Fieldref(class, name, desc string) classfile.Ref {
	b.tb.Helper()
	return b.must(b.Pool.Fieldref(class, name, desc))
}

// Methodref adds a method reference.
func (b *Builder) Methodref(class, name, desc string) classfile.Ref {
	b.tb.Helper()
	return b.must(b.Pool.Methodref(class, name, desc))
}

// Field declares a field.
func (b *Builder) Field(access classfile.AccessFlags, name, desc string) *Builder {
	b.tb.Helper()
	b.fields = append(b.fields, &classfile.Field{
		Member: classfile.Member{Access: access, NameRef: b.Utf8(name), DescRef: b.Utf8(desc)},
		Offset: -1,
	})
	return b
}

// ConstantField declares a static field initialized from an Integer
// constant.
func (b *Builder) ConstantField(name string, v int32) *Builder {
	b.tb.Helper()
	a := b.attribute(classfile.KindConstantValue).(*classfile.ConstantValueAttribute)
	a.Value = b.must(b.Pool.Integer(v))
	b.seal(a)
	b.fields = append(b.fields, &classfile.Field{
		Member: classfile.Member{
			Access:     classfile.AccPublic | classfile.AccStatic | classfile.AccFinal,
			NameRef:    b.Utf8(name),
			DescRef:    b.Utf8("I"),
			Attributes: []classfile.Attribute{a},
		},
		Offset: -1,
	})
	return b
}

// Method declares a method without a body.
func (b *Builder) Method(access classfile.AccessFlags, name, desc string) *Builder {
	b.tb.Helper()
	b.methods = append(b.methods, &classfile.Method{
		Member:     classfile.Member{Access: access, NameRef: b.Utf8(name), DescRef: b.Utf8(desc)},
		TableIndex: -1,
	})
	return b
}

// MethodCode declares a method whose body is code. Nested attributes are
// attached to the code body.
func (b *Builder) MethodCode(access classfile.AccessFlags, name, desc string, code []byte, nested ...classfile.Attribute) *Builder {
	b.tb.Helper()
	a := b.attribute(classfile.KindCode).(*classfile.CodeAttribute)
	a.MaxStack = 4
	a.MaxLocals = 4
	a.Code = code
	a.Attributes = nested
	b.seal(a)
	b.methods = append(b.methods, &classfile.Method{
		Member: classfile.Member{
			Access:     access,
			NameRef:    b.Utf8(name),
			DescRef:    b.Utf8(desc),
			Attributes: []classfile.Attribute{a},
		},
		TableIndex: -1,
	})
	return b
}

// LineNumbers builds a LineNumberTable for use as a nested code attribute.
func (b *Builder) LineNumbers(lines ...classfile.LineNumber) classfile.Attribute {
	b.tb.Helper()
	a := b.attribute(classfile.KindLineNumberTable).(*classfile.LineNumberTableAttribute)
	a.Lines = lines
	b.seal(a)
	return a
}

// SourceFile attaches a SourceFile attribute to the class.
func (b *Builder) SourceFile(name string) *Builder {
	b.tb.Helper()
	a := b.attribute(classfile.KindSourceFile).(*classfile.SourceFileAttribute)
	a.File = b.Utf8(name)
	b.seal(a)
	b.attrs = append(b.attrs, a)
	return b
}

// Raw attaches an uninterpreted attribute to the class.
func (b *Builder) Raw(name string, data []byte) *Builder {
	b.tb.Helper()
	a, err := classfile.NewRawAttribute(b.Pool, name, data)
	if err != nil {
		b.tb.Fatalf("classtest: %v", err)
	}
	b.attrs = append(b.attrs, a)
	return b
}

func (b *Builder) attribute(kind classfile.AttributeKind) classfile.Attribute {
	b.tb.Helper()
	a, err := classfile.NewAttribute(b.Pool, kind)
	if err != nil {
		b.tb.Fatalf("classtest: %v", err)
	}
	return a
}

func (b *Builder) seal(a classfile.Attribute) {
	b.tb.Helper()
	if err := classfile.Seal(a); err != nil {
		b.tb.Fatalf("classtest: seal %s: %v", a.Kind(), err)
	}
}

// Bytes serializes the class.
func (b *Builder) Bytes() []byte {
	b.tb.Helper()
	c := &classfile.Class{
		MajorVersion:  52,
		Pool:          b.Pool,
		Access:        b.access,
		ThisRef:       b.this,
		SuperRef:      b.super,
		InterfaceRefs: b.interfaces,
		Fields:        b.fields,
		Methods:       b.methods,
		Attributes:    b.attrs,
	}
	if err := c.Resolve(); err != nil {
		b.tb.Fatalf("classtest: %v", err)
	}
	data, err := c.Marshal(classfile.WriteOptions{})
	if err != nil {
		b.tb.Fatalf("classtest: marshal: %v", err)
	}
	return data
}

// Build serializes the class and parses it back, so the result is exactly
// what a reader sees.
func (b *Builder) Build() *classfile.Class {
	b.tb.Helper()
	c, err := classfile.Parse(b.Bytes(), classfile.ReadOptions{})
	if err != nil {
		b.tb.Fatalf("classtest: parse: %v", err)
	}
	return c
}

// Insn encodes an instruction with a two-byte pool operand.
func Insn(op uint8, ref classfile.Ref) []byte {
	return []byte{op, byte(ref >> 8), byte(ref)}
}

// Ldc encodes a one-byte ldc of ref.
func Ldc(ref classfile.Ref) []byte {
	return []byte{classfile.OpLdc, byte(ref)}
}

// Body concatenates instructions and appends a return.
func Body(insns ...[]byte) []byte {
	var out []byte
	for _, in := range insns {
		out = append(out, in...)
	}
	return append(out, OpReturn)
}

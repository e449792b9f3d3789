package classfile_test

import (
	"bytes"
	"testing"

	"github.com/odvcencio/romlink/pkg/classfile"
	"github.com/odvcencio/romlink/pkg/classfile/classtest"
)

// handWritten is a minimal class A whose pool holds one String that nothing
// references: [1 Class->3, 2 String->4, 3 Utf8 "A", 4 Utf8 "unused"].
var handWritten = []byte{
	0xca, 0xfe, 0xba, 0xbe,
	0x00, 0x00, 0x00, 0x34,
	0x00, 0x05,
	0x07, 0x00, 0x03,
	0x08, 0x00, 0x04,
	0x01, 0x00, 0x01, 'A',
	0x01, 0x00, 0x06, 'u', 'n', 'u', 's', 'e', 'd',
	0x00, 0x21,
	0x00, 0x01,
	0x00, 0x00,
	0x00, 0x00,
	0x00, 0x00,
	0x00, 0x00,
	0x00, 0x00,
}

func TestParseHandWrittenClass(t *testing.T) {
	c, err := classfile.Parse(handWritten, classfile.ReadOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Name != "A" {
		t.Fatalf("Name = %q, want %q", c.Name, "A")
	}
	if c.SuperName != "" {
		t.Fatalf("SuperName = %q, want empty", c.SuperName)
	}
	if c.Pool.Len() != 5 {
		t.Fatalf("pool Len = %d, want 5", c.Pool.Len())
	}
	out, err := c.Marshal(classfile.WriteOptions{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(out, handWritten) {
		t.Fatalf("round trip = %x, want %x", out, handWritten)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "bad-magic", data: append([]byte{0xde, 0xad}, handWritten[2:]...)},
		{name: "truncated", data: handWritten[:20]},
		{name: "trailing", data: append(append([]byte{}, handWritten...), 0x00)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := classfile.Parse(tt.data, classfile.ReadOptions{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func sampleClass(t *testing.T) *classtest.Builder {
	t.Helper()
	b := classtest.New(t, "demo/Shape", "java/lang/Object", "demo/Drawable")
	b.Field(classfile.AccPrivate, "x", "I").
		Field(classfile.AccPrivate, "area", "D").
		ConstantField("SIDES", 4).
		SourceFile("Shape.java").
		Raw("Custom", []byte{1, 2, 3})
	draw := b.Methodref("demo/Canvas", "paint", "(Ldemo/Shape;)V")
	b.MethodCode(classfile.AccPublic, "draw", "()V",
		classtest.Body(classtest.Insn(classfile.OpInvokestatic, draw)),
		b.LineNumbers(classfile.LineNumber{StartPC: 0, Line: 10}))
	b.Method(classfile.AccPublic|classfile.AccAbstract, "scale", "(I)V")
	return b
}

func TestMarshalRoundTripIsByteIdentical(t *testing.T) {
	data := sampleClass(t).Bytes()
	c, err := classfile.Parse(data, classfile.ReadOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Name != "demo/Shape" || c.SuperName != "java/lang/Object" {
		t.Fatalf("names = %q/%q", c.Name, c.SuperName)
	}
	if len(c.InterfaceNames) != 1 || c.InterfaceNames[0] != "demo/Drawable" {
		t.Fatalf("InterfaceNames = %v", c.InterfaceNames)
	}
	out, err := c.Marshal(classfile.WriteOptions{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("round trip changed bytes")
	}
}

func TestParseResolvesMembers(t *testing.T) {
	c := sampleClass(t).Build()
	if len(c.Fields) != 3 || len(c.Methods) != 2 {
		t.Fatalf("fields/methods = %d/%d, want 3/2", len(c.Fields), len(c.Methods))
	}
	for _, f := range c.Fields {
		if f.Class != c {
			t.Fatalf("field %s owner not set", f.Name)
		}
		if f.Offset != -1 {
			t.Fatalf("field %s Offset = %d, want -1", f.Name, f.Offset)
		}
	}
	area := c.Fields[1]
	if area.Width() != 2 {
		t.Fatalf("area width = %d, want 2", area.Width())
	}
	if area.ID != classfile.SignatureHash("area", "D") {
		t.Fatal("field ID does not match SignatureHash")
	}
	if c.Fields[2].ConstantValue() == nil {
		t.Fatal("SIDES lost its ConstantValue attribute")
	}
	draw := c.LocalMethod(classfile.SignatureHash("draw", "()V"))
	if draw == nil || draw.Code() == nil {
		t.Fatal("draw not found or has no code")
	}
	insns, err := draw.Code().Instructions()
	if err != nil {
		t.Fatalf("Instructions: %v", err)
	}
	mr, err := c.Pool.MemberRefAt(insns[0].Ref)
	if err != nil {
		t.Fatalf("MemberRefAt: %v", err)
	}
	if mr.Class != "demo/Canvas" || mr.Name != "paint" {
		t.Fatalf("invokestatic target = %+v", mr)
	}
	if c.Methods[1].TableIndex != -1 {
		t.Fatalf("TableIndex = %d, want -1", c.Methods[1].TableIndex)
	}
}

func TestVisitRefsWithNamesCoversEveryAttribute(t *testing.T) {
	c := sampleClass(t).Build()
	count := func(withName bool) int {
		n := 0
		if err := c.VisitRefs(func(*classfile.Ref) error { n++; return nil }, withName); err != nil {
			t.Fatalf("VisitRefs: %v", err)
		}
		return n
	}
	// SourceFile, Custom, ConstantValue, Code, LineNumberTable
	if diff := count(true) - count(false); diff != 5 {
		t.Fatalf("name visits = %d, want 5", diff)
	}
}

func TestStripUninterpreted(t *testing.T) {
	c := sampleClass(t).Build()
	n, err := c.StripUninterpreted()
	if err != nil {
		t.Fatalf("StripUninterpreted: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	for _, a := range c.Attributes {
		if a.Kind() == classfile.KindRaw {
			t.Fatal("raw attribute survived")
		}
	}
}

func TestStrippedNamesRoundTrip(t *testing.T) {
	c := sampleClass(t).Build()
	if _, err := c.Marshal(classfile.WriteOptions{StripNames: true}); err == nil {
		t.Fatal("expected error writing a raw attribute in stripped form")
	}
	if _, err := c.StripUninterpreted(); err != nil {
		t.Fatalf("StripUninterpreted: %v", err)
	}
	c.ClearAttributeNames()
	data, err := c.Marshal(classfile.WriteOptions{StripNames: true})
	if err != nil {
		t.Fatalf("Marshal stripped: %v", err)
	}
	if _, err := c.Marshal(classfile.WriteOptions{}); err == nil {
		t.Fatal("expected error writing cleared names in named form")
	}
	back, err := classfile.Parse(data, classfile.ReadOptions{StripNames: true})
	if err != nil {
		t.Fatalf("Parse stripped: %v", err)
	}
	if len(back.Attributes) != 1 || back.Attributes[0].Kind() != classfile.KindSourceFile {
		t.Fatalf("class attributes = %v", back.Attributes)
	}
	code := back.Methods[0].Code()
	if code == nil || len(code.Attributes) != 1 || code.Attributes[0].Kind() != classfile.KindLineNumberTable {
		t.Fatal("code body lost its line numbers")
	}
	again, err := back.Marshal(classfile.WriteOptions{StripNames: true})
	if err != nil {
		t.Fatalf("Marshal again: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Fatal("stripped round trip changed bytes")
	}
}

func TestExternalPool(t *testing.T) {
	c := sampleClass(t).Build()
	data, err := c.Marshal(classfile.WriteOptions{ExternalPool: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := classfile.Parse(data, classfile.ReadOptions{}); err == nil {
		t.Fatal("expected error without a shared pool")
	}
	back, err := classfile.Parse(data, classfile.ReadOptions{Pool: c.Pool})
	if err != nil {
		t.Fatalf("Parse with pool: %v", err)
	}
	if back.Pool != c.Pool || back.Name != c.Name {
		t.Fatalf("back = %s with pool %p, want %s with %p", back.Name, back.Pool, c.Name, c.Pool)
	}
}

func TestMarshalDetectsLengthMismatch(t *testing.T) {
	c := sampleClass(t).Build()
	for _, a := range c.Attributes {
		if raw, ok := a.(*classfile.RawAttribute); ok {
			raw.Data = append(raw.Data, 0xff)
		}
	}
	_, err := c.Marshal(classfile.WriteOptions{})
	if !classfile.IsFormatError(err) {
		t.Fatalf("err = %v, want FormatError", err)
	}
}

func TestSignatureHash(t *testing.T) {
	a := classfile.SignatureHash("run", "()V")
	if a != classfile.SignatureHash("run", "()V") {
		t.Fatal("hash is not stable")
	}
	if a == classfile.SignatureHash("run", "(I)V") {
		t.Fatal("descriptor does not affect hash")
	}
	if classfile.SignatureHash("ab", "c") == classfile.SignatureHash("a", "bc") {
		t.Fatal("name/descriptor boundary does not affect hash")
	}
}

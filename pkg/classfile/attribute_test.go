package classfile

import "testing"

func TestReadAttributeRejectsUnreadPayload(t *testing.T) {
	p := NewPool()
	if _, err := p.Utf8("SourceFile"); err != nil {
		t.Fatalf("Utf8: %v", err)
	}
	if _, err := p.Utf8("A.java"); err != nil {
		t.Fatalf("Utf8: %v", err)
	}
	// declared length 3, SourceFile consumes 2
	data := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00}
	_, err := readAttribute(newDecoder(data), &readContext{pool: p})
	if err == nil {
		t.Fatal("expected error for unread payload")
	}
	if !IsFormatError(err) {
		t.Fatalf("err = %v, want FormatError", err)
	}
}

func TestReadAttributeKeepsUnknownAsRaw(t *testing.T) {
	p := NewPool()
	if _, err := p.Utf8("Custom"); err != nil {
		t.Fatalf("Utf8: %v", err)
	}
	data := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0xbe, 0xef}
	a, err := readAttribute(newDecoder(data), &readContext{pool: p})
	if err != nil {
		t.Fatalf("readAttribute: %v", err)
	}
	raw, ok := a.(*RawAttribute)
	if !ok {
		t.Fatalf("attribute = %T, want *RawAttribute", a)
	}
	if string(raw.Data) != "\xbe\xef" {
		t.Fatalf("Data = %x, want beef", raw.Data)
	}
}

func TestWriteAttributeChecksDeclaredLength(t *testing.T) {
	p := NewPool()
	a, err := NewAttribute(p, KindExceptions)
	if err != nil {
		t.Fatalf("NewAttribute: %v", err)
	}
	exc := a.(*ExceptionsAttribute)
	cls, err := p.Class("java/io/IOException")
	if err != nil {
		t.Fatalf("Class: %v", err)
	}
	exc.Classes = []Ref{cls}
	var e encoder
	if err := writeAttribute(&e, exc, WriteOptions{}); !IsFormatError(err) {
		t.Fatalf("unsealed write err = %v, want FormatError", err)
	}
	if err := Seal(exc); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if exc.DeclaredLength() != 4 {
		t.Fatalf("DeclaredLength = %d, want 4", exc.DeclaredLength())
	}
	if err := writeAttribute(&e, exc, WriteOptions{}); err != nil {
		t.Fatalf("sealed write: %v", err)
	}
}

func TestRawAttributeCannotBeStripped(t *testing.T) {
	p := NewPool()
	raw, err := NewRawAttribute(p, "Custom", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("NewRawAttribute: %v", err)
	}
	var e encoder
	if err := writeAttribute(&e, raw, WriteOptions{StripNames: true}); err == nil {
		t.Fatal("expected error writing raw attribute without its name")
	}
}

func TestStackMapTableRoundTrip(t *testing.T) {
	obj := VerificationType{Tag: VTObject, Class: 3}
	want := &StackMapTableAttribute{Frames: []StackMapFrame{
		{Type: 0},
		{Type: 64, Stack: []VerificationType{obj}},
		{Type: 247, OffsetDelta: 300, Stack: []VerificationType{{Tag: VTUninitialized, Offset: 12}}},
		{Type: 250, OffsetDelta: 2},
		{Type: 252, OffsetDelta: 5, Locals: []VerificationType{{Tag: VTInteger}}},
		{Type: 255, OffsetDelta: 9, Locals: []VerificationType{obj, {Tag: VTLong}}, Stack: []VerificationType{{Tag: VTNull}}},
	}}
	var e encoder
	if err := want.writePayload(&e, WriteOptions{}); err != nil {
		t.Fatalf("writePayload: %v", err)
	}
	got, err := parseStackMapTable(attrHeader{}, newDecoder(e.bytes()), nil)
	if err != nil {
		t.Fatalf("parseStackMapTable: %v", err)
	}
	frames := got.(*StackMapTableAttribute).Frames
	if len(frames) != len(want.Frames) {
		t.Fatalf("frames = %d, want %d", len(frames), len(want.Frames))
	}
	for i, f := range frames {
		w := want.Frames[i]
		if f.Type != w.Type || f.OffsetDelta != w.OffsetDelta || len(f.Locals) != len(w.Locals) || len(f.Stack) != len(w.Stack) {
			t.Fatalf("frame %d = %+v, want %+v", i, f, w)
		}
		for j := range f.Locals {
			if f.Locals[j] != w.Locals[j] {
				t.Fatalf("frame %d local %d = %+v, want %+v", i, j, f.Locals[j], w.Locals[j])
			}
		}
		for j := range f.Stack {
			if f.Stack[j] != w.Stack[j] {
				t.Fatalf("frame %d stack %d = %+v, want %+v", i, j, f.Stack[j], w.Stack[j])
			}
		}
	}

	visited := 0
	err = want.VisitRefs(func(ref *Ref) error {
		visited++
		*ref = 9
		return nil
	}, false)
	if err != nil {
		t.Fatalf("VisitRefs: %v", err)
	}
	if visited != 2 {
		t.Fatalf("visited = %d, want 2", visited)
	}
	if want.Frames[1].Stack[0].Class != 9 {
		t.Fatalf("class ref = #%d, want #9 after rewrite", want.Frames[1].Stack[0].Class)
	}
}

func TestStackMapRejectsReservedFrameType(t *testing.T) {
	if _, err := readFrame(newDecoder([]byte{200})); err == nil {
		t.Fatal("expected error for reserved frame type")
	}
}

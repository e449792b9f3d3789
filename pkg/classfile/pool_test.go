package classfile

import "testing"

func TestPoolAddDeduplicates(t *testing.T) {
	p := NewPool()
	a, err := p.Utf8("java/lang/Object")
	if err != nil {
		t.Fatalf("Utf8: %v", err)
	}
	b, err := p.Utf8("java/lang/Object")
	if err != nil {
		t.Fatalf("Utf8: %v", err)
	}
	if a != b {
		t.Fatalf("second Utf8 = #%d, want #%d", b, a)
	}
	c1, err := p.Class("java/lang/Object")
	if err != nil {
		t.Fatalf("Class: %v", err)
	}
	c2, err := p.Class("java/lang/Object")
	if err != nil {
		t.Fatalf("Class: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("second Class = #%d, want #%d", c2, c1)
	}
	if p.Len() != 3 {
		t.Fatalf("Len = %d, want 3", p.Len())
	}
}

func TestPoolWideConstantsTakeTwoSlots(t *testing.T) {
	p := NewPool()
	l, err := p.Long(1 << 40)
	if err != nil {
		t.Fatalf("Long: %v", err)
	}
	if l != 1 {
		t.Fatalf("Long ref = #%d, want #1", l)
	}
	u, err := p.Utf8("x")
	if err != nil {
		t.Fatalf("Utf8: %v", err)
	}
	if u != 3 {
		t.Fatalf("Utf8 after Long = #%d, want #3", u)
	}
	if _, err := p.At(2); err == nil {
		t.Fatal("expected error for upper half of a wide constant")
	}
	c, err := p.At(l)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if c.Long() != 1<<40 {
		t.Fatalf("Long value = %d, want %d", c.Long(), int64(1<<40))
	}
}

func TestPoolAtRejectsReservedSlot(t *testing.T) {
	p := NewPool()
	if _, err := p.At(0); err == nil {
		t.Fatal("expected error for #0")
	}
	if _, err := p.At(7); err == nil {
		t.Fatal("expected error for out of range ref")
	}
}

func TestPoolDupCopiesDependencies(t *testing.T) {
	src := NewPool()
	if _, err := src.Utf8("padding"); err != nil {
		t.Fatalf("Utf8: %v", err)
	}
	ref, err := src.Methodref("A", "run", "()V")
	if err != nil {
		t.Fatalf("Methodref: %v", err)
	}

	dst := NewSharedPool()
	got, err := dst.Dup(src, ref)
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	mr, err := dst.MemberRefAt(got)
	if err != nil {
		t.Fatalf("MemberRefAt: %v", err)
	}
	if mr.Class != "A" || mr.Name != "run" || mr.Descriptor != "()V" {
		t.Fatalf("dup = %+v, want A.run()V", mr)
	}
	again, err := dst.Dup(src, ref)
	if err != nil {
		t.Fatalf("Dup again: %v", err)
	}
	if again != got {
		t.Fatalf("second Dup = #%d, want #%d", again, got)
	}
	for _, c := range dst.Constants() {
		if !c.Shared {
			t.Fatalf("constant %s in shared pool not marked shared", c)
		}
	}
}

func TestPoolReferenceCountsPropagate(t *testing.T) {
	p := NewPool()
	ref, err := p.Methodref("A", "run", "()V")
	if err != nil {
		t.Fatalf("Methodref: %v", err)
	}
	if err := p.IncRef(ref); err != nil {
		t.Fatalf("IncRef: %v", err)
	}
	for _, c := range p.Constants() {
		if c.References != 1 {
			t.Fatalf("%s References = %d, want 1", c, c.References)
		}
	}
	if err := p.DecRef(ref); err != nil {
		t.Fatalf("DecRef: %v", err)
	}
	if err := p.DecRef(ref); err == nil {
		t.Fatal("expected error when a count goes below zero")
	}
	for _, c := range p.Constants() {
		if c.References != 0 {
			t.Fatalf("%s References = %d after failed DecRef, want 0", c, c.References)
		}
	}
}

func TestFailedDecRefLeavesCountsUnchanged(t *testing.T) {
	p := NewPool()
	ref, err := p.Methodref("A", "run", "()V")
	if err != nil {
		t.Fatalf("Methodref: %v", err)
	}
	class, err := p.Class("A")
	if err != nil {
		t.Fatalf("Class: %v", err)
	}
	if err := p.IncRef(ref); err != nil {
		t.Fatalf("IncRef: %v", err)
	}
	if err := p.DecRef(class); err != nil {
		t.Fatalf("DecRef(class): %v", err)
	}
	before := map[*Constant]int{}
	for _, c := range p.Constants() {
		before[c] = c.References
	}
	// The member ref still holds a use, but its class no longer does.
	if err := p.DecRef(ref); err == nil {
		t.Fatal("expected error when a dependency count goes below zero")
	}
	for _, c := range p.Constants() {
		if c.References != before[c] {
			t.Fatalf("%s References = %d, want %d", c, c.References, before[c])
		}
	}
	m, _ := p.At(ref)
	if m.References != 1 {
		t.Fatalf("Methodref References = %d, want 1", m.References)
	}
}

func TestWriteRejectsUnresolvedConstant(t *testing.T) {
	p := NewPool()
	c := newConstant(TagClass)
	c.Refs[0] = 5
	if err := p.place(c); err != nil {
		t.Fatalf("place: %v", err)
	}
	_, err := MarshalPool(p)
	if err == nil {
		t.Fatal("expected error writing unresolved constant")
	}
	if !IsFormatError(err) {
		t.Fatalf("err = %v, want FormatError", err)
	}
}

func TestParsePoolRoundTrip(t *testing.T) {
	p := NewPool()
	for _, add := range []func() (Ref, error){
		func() (Ref, error) { return p.Fieldref("A", "count", "I") },
		func() (Ref, error) { return p.Double(2.5) },
		func() (Ref, error) { return p.String("hello") },
		func() (Ref, error) { return p.Integer(-7) },
		func() (Ref, error) { return p.Float(1.5) },
		func() (Ref, error) { return p.InterfaceMethodref("I", "call", "()V") },
	} {
		if _, err := add(); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	data, err := MarshalPool(p)
	if err != nil {
		t.Fatalf("MarshalPool: %v", err)
	}
	got, err := ParsePool(data, true)
	if err != nil {
		t.Fatalf("ParsePool: %v", err)
	}
	if got.Len() != p.Len() {
		t.Fatalf("Len = %d, want %d", got.Len(), p.Len())
	}
	if !got.IsShared() {
		t.Fatal("parsed pool not marked shared")
	}
	again, err := MarshalPool(got)
	if err != nil {
		t.Fatalf("MarshalPool again: %v", err)
	}
	if string(again) != string(data) {
		t.Fatal("pool bytes changed across round trip")
	}
}

func TestParsePoolRejectsZeroCount(t *testing.T) {
	if _, err := ParsePool([]byte{0, 0}, false); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestPoolCanonicalPrefersFirstDuplicate(t *testing.T) {
	// Two identical Utf8 entries, as a compiler may emit.
	data := []byte{
		0x00, 0x03,
		0x01, 0x00, 0x01, 'A',
		0x01, 0x00, 0x01, 'A',
	}
	p, err := ParsePool(data, false)
	if err != nil {
		t.Fatalf("ParsePool: %v", err)
	}
	second, err := p.At(2)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if got := p.Canonical(second); got.Index != 1 {
		t.Fatalf("Canonical index = %d, want 1", got.Index)
	}
}

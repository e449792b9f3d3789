package classfile

import "testing"

func TestDecodeInstructionsHandlesSwitchPadding(t *testing.T) {
	code := []byte{
		0xaa, 0, 0, 0, // tableswitch + padding
		0, 0, 0, 0, // default
		0, 0, 0, 0, // low
		0, 0, 0, 1, // high
		0, 0, 0, 0,
		0, 0, 0, 0,
		0xb1,
	}
	insns, err := DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if len(insns) != 2 {
		t.Fatalf("instructions = %d, want 2", len(insns))
	}
	if insns[1].PC != 24 {
		t.Fatalf("return pc = %d, want 24", insns[1].PC)
	}

	// An empty lookupswitch ending the body needs only default and npairs.
	code = []byte{
		0x03,       // iconst_0
		0xab, 0, 0, // lookupswitch + padding
		0xff, 0xff, 0xff, 0xff, // default
		0, 0, 0, 0, // npairs
	}
	insns, err = DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions(lookupswitch): %v", err)
	}
	if len(insns) != 2 || insns[1].Len != 11 {
		t.Fatalf("instructions = %+v, want iconst_0 and an 11-byte lookupswitch", insns)
	}

	if _, err := DecodeInstructions([]byte{0xaa, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Fatal("expected error for tableswitch without high")
	}
}

func TestDecodeInstructionsWide(t *testing.T) {
	code := []byte{0xc4, 0x84, 0, 1, 0, 1, 0xc4, 0x15, 0, 2, 0xb1}
	insns, err := DecodeInstructions(code)
	if err != nil {
		t.Fatalf("DecodeInstructions: %v", err)
	}
	if len(insns) != 3 || insns[1].PC != 6 || insns[2].PC != 10 {
		t.Fatalf("instructions = %+v", insns)
	}
}

func TestDecodeInstructionsRejectsUndefinedOpcode(t *testing.T) {
	if _, err := DecodeInstructions([]byte{0xd0}); err == nil {
		t.Fatal("expected error for undefined opcode")
	}
}

func TestVisitCodeRefsRewritesOperands(t *testing.T) {
	code := []byte{
		0x2a,             // aload_0
		0xb6, 0x00, 0x07, // invokevirtual #7
		0x12, 0x03, // ldc #3
		0xb1,
	}
	var seen []Ref
	err := visitCodeRefs(code, func(ref *Ref) error {
		seen = append(seen, *ref)
		*ref++
		return nil
	})
	if err != nil {
		t.Fatalf("visitCodeRefs: %v", err)
	}
	if len(seen) != 2 || seen[0] != 7 || seen[1] != 3 {
		t.Fatalf("seen = %v, want [7 3]", seen)
	}
	if code[3] != 8 || code[5] != 4 {
		t.Fatalf("code = %x, want operands 8 and 4", code)
	}
}

func TestVisitCodeRefsLdcOverflow(t *testing.T) {
	code := []byte{0x12, 0x03, 0xb1}
	err := visitCodeRefs(code, func(ref *Ref) error {
		*ref = 300
		return nil
	})
	if !IsFormatError(err) {
		t.Fatalf("err = %v, want FormatError", err)
	}
}

func TestVisitCodeRefsRejectsZeroOperand(t *testing.T) {
	code := []byte{0xbb, 0x00, 0x00, 0xb1}
	err := visitCodeRefs(code, func(*Ref) error { return nil })
	if !IsFormatError(err) {
		t.Fatalf("err = %v, want FormatError", err)
	}
}

package classfile

import (
	"encoding/binary"
	"fmt"
)

// Opcodes that carry a constant pool operand.
const (
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpGetstatic       = 0xb2
	OpPutstatic       = 0xb3
	OpGetfield        = 0xb4
	OpPutfield        = 0xb5
	OpInvokevirtual   = 0xb6
	OpInvokespecial   = 0xb7
	OpInvokestatic    = 0xb8
	OpInvokeinterface = 0xb9
	OpInvokedynamic   = 0xba
	OpNew             = 0xbb
	OpAnewarray       = 0xbd
	OpCheckcast       = 0xc0
	OpInstanceof      = 0xc1
	OpMultianewarray  = 0xc5
)

const (
	opTableswitch  = 0xaa
	opLookupswitch = 0xab
	opWide         = 0xc4
	opIinc         = 0x84
)

var poolOpNames = map[uint8]string{
	OpLdc:             "ldc",
	OpLdcW:            "ldc_w",
	OpLdc2W:           "ldc2_w",
	OpGetstatic:       "getstatic",
	OpPutstatic:       "putstatic",
	OpGetfield:        "getfield",
	OpPutfield:        "putfield",
	OpInvokevirtual:   "invokevirtual",
	OpInvokespecial:   "invokespecial",
	OpInvokestatic:    "invokestatic",
	OpInvokeinterface: "invokeinterface",
	OpInvokedynamic:   "invokedynamic",
	OpNew:             "new",
	OpAnewarray:       "anewarray",
	OpCheckcast:       "checkcast",
	OpInstanceof:      "instanceof",
	OpMultianewarray:  "multianewarray",
}

// fixedLength holds the encoded length of every fixed-size opcode; 0 marks
// variable-length or undefined opcodes.
var fixedLength [256]uint8

func init() {
	for op := 0x00; op <= 0xc9; op++ {
		fixedLength[op] = 1
	}
	for _, op := range []int{0x10, 0x12, 0x15, 0x16, 0x17, 0x18, 0x19, 0x36, 0x37, 0x38, 0x39, 0x3a, 0xa9, 0xbc} {
		fixedLength[op] = 2
	}
	for _, op := range []int{0x11, 0x13, 0x14, 0x84, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6, 0xb7, 0xb8, 0xbb, 0xbd, 0xc0, 0xc1, 0xc6, 0xc7} {
		fixedLength[op] = 3
	}
	for op := 0x99; op <= 0xa8; op++ {
		fixedLength[op] = 3
	}
	fixedLength[OpMultianewarray] = 4
	fixedLength[OpInvokeinterface] = 5
	fixedLength[OpInvokedynamic] = 5
	fixedLength[0xc8] = 5 // goto_w
	fixedLength[0xc9] = 5 // jsr_w
	fixedLength[0xca] = 1 // breakpoint
	fixedLength[0xfe] = 1
	fixedLength[0xff] = 1
	fixedLength[opTableswitch] = 0
	fixedLength[opLookupswitch] = 0
	fixedLength[opWide] = 0
}

// Instruction is one decoded instruction. Ref is zero for instructions
// without a pool operand.
type Instruction struct {
	PC  int
	Op  uint8
	Len int
	Ref Ref
}

// Mnemonic names pool-referencing opcodes; others render as hex.
func (in Instruction) Mnemonic() string {
	if name, ok := poolOpNames[in.Op]; ok {
		return name
	}
	return fmt.Sprintf("op_%02x", in.Op)
}

func instructionLength(code []byte, pc int) (int, error) {
	op := code[pc]
	if n := fixedLength[op]; n != 0 {
		return int(n), nil
	}
	switch op {
	case opTableswitch, opLookupswitch:
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		need := 8
		if op == opTableswitch {
			need = 12
		}
		if base+need > len(code) {
			return 0, fmt.Errorf("pc %d: truncated switch", pc)
		}
		if op == opTableswitch {
			low := int32(binary.BigEndian.Uint32(code[base+4:]))
			high := int32(binary.BigEndian.Uint32(code[base+8:]))
			if high < low {
				return 0, fmt.Errorf("pc %d: tableswitch high %d < low %d", pc, high, low)
			}
			return 1 + pad + 12 + int(int64(high)-int64(low)+1)*4, nil
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("pc %d: lookupswitch with %d pairs", pc, npairs)
		}
		return 1 + pad + 8 + int(npairs)*8, nil
	case opWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("pc %d: truncated wide", pc)
		}
		if code[pc+1] == opIinc {
			return 6, nil
		}
		return 4, nil
	}
	return 0, fmt.Errorf("pc %d: undefined opcode 0x%02x", pc, op)
}

// DecodeInstructions splits a code body into instructions.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	var out []Instruction
	for pc := 0; pc < len(code); {
		n, err := instructionLength(code, pc)
		if err != nil {
			return nil, err
		}
		if pc+n > len(code) {
			return nil, fmt.Errorf("pc %d: instruction overruns code length %d", pc, len(code))
		}
		in := Instruction{PC: pc, Op: code[pc], Len: n}
		switch {
		case in.Op == OpLdc:
			in.Ref = Ref(code[pc+1])
		case poolOpNames[in.Op] != "":
			in.Ref = Ref(binary.BigEndian.Uint16(code[pc+1:]))
		}
		out = append(out, in)
		pc += n
	}
	return out, nil
}

// visitCodeRefs calls visit for every pool operand in code and stores the
// possibly rewritten value back into the instruction stream.
func visitCodeRefs(code []byte, visit RefVisitor) error {
	insns, err := DecodeInstructions(code)
	if err != nil {
		return formatErrorf("bytecode", "%v", err)
	}
	for _, in := range insns {
		if _, ok := poolOpNames[in.Op]; !ok {
			continue
		}
		if in.Ref == 0 {
			return formatErrorf("bytecode", "pc %d: %s operand names reserved slot #0", in.PC, in.Mnemonic())
		}
		ref := in.Ref
		if err := visit(&ref); err != nil {
			return fmt.Errorf("pc %d: %s: %w", in.PC, in.Mnemonic(), err)
		}
		if in.Op == OpLdc {
			if ref > 0xff {
				return formatErrorf("bytecode", "pc %d: ldc operand #%d no longer fits in one byte", in.PC, ref)
			}
			code[in.PC+1] = byte(ref)
			continue
		}
		binary.BigEndian.PutUint16(code[in.PC+1:], uint16(ref))
	}
	return nil
}

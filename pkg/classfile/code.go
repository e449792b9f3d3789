package classfile

import "fmt"

// ExceptionHandler is one row of a code body's exception table. CatchType
// zero catches everything.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType Ref
}

// CodeAttribute holds a method body.
type CodeAttribute struct {
	attrHeader
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionHandler
	Attributes     []Attribute
}

func (a *CodeAttribute) Kind() AttributeKind { return KindCode }

// VisitRefs walks the name, every bytecode pool operand, the exception
// table's catch types and the nested attributes.
func (a *CodeAttribute) VisitRefs(visit RefVisitor, withName bool) error {
	if err := a.visitName(visit, withName); err != nil {
		return err
	}
	if err := visitCodeRefs(a.Code, visit); err != nil {
		return err
	}
	for i := range a.ExceptionTable {
		if err := visitRef(visit, &a.ExceptionTable[i].CatchType); err != nil {
			return fmt.Errorf("exception handler %d: %w", i, err)
		}
	}
	for _, nested := range a.Attributes {
		if err := nested.VisitRefs(visit, withName); err != nil {
			return err
		}
	}
	return nil
}

// Instructions decodes the body.
func (a *CodeAttribute) Instructions() ([]Instruction, error) {
	return DecodeInstructions(a.Code)
}

func (a *CodeAttribute) writePayload(e *encoder, opts WriteOptions) error {
	e.u2(a.MaxStack)
	e.u2(a.MaxLocals)
	e.u4(uint32(len(a.Code)))
	e.raw(a.Code)
	e.u2(uint16(len(a.ExceptionTable)))
	for _, h := range a.ExceptionTable {
		e.u2(h.StartPC)
		e.u2(h.EndPC)
		e.u2(h.HandlerPC)
		e.ref(h.CatchType)
	}
	return writeAttributes(e, a.Attributes, opts)
}

func parseCode(h attrHeader, d *decoder, ctx *readContext) (Attribute, error) {
	a := &CodeAttribute{attrHeader: h}
	var err error
	if a.MaxStack, err = d.u2(); err != nil {
		return nil, err
	}
	if a.MaxLocals, err = d.u2(); err != nil {
		return nil, err
	}
	n, err := d.u4()
	if err != nil {
		return nil, err
	}
	if a.Code, err = d.bytes(int(n)); err != nil {
		return nil, fmt.Errorf("code bytes: %w", err)
	}
	count, err := d.u2()
	if err != nil {
		return nil, err
	}
	a.ExceptionTable = make([]ExceptionHandler, count)
	for i := range a.ExceptionTable {
		x := &a.ExceptionTable[i]
		if x.StartPC, err = d.u2(); err != nil {
			return nil, err
		}
		if x.EndPC, err = d.u2(); err != nil {
			return nil, err
		}
		if x.HandlerPC, err = d.u2(); err != nil {
			return nil, err
		}
		if x.CatchType, err = d.ref(); err != nil {
			return nil, err
		}
	}
	if a.Attributes, err = readAttributes(d, ctx); err != nil {
		return nil, err
	}
	return a, nil
}

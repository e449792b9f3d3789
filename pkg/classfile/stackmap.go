package classfile

import "fmt"

// Verification type tags.
const (
	VTTop               = 0
	VTInteger           = 1
	VTFloat             = 2
	VTDouble            = 3
	VTLong              = 4
	VTNull              = 5
	VTUninitializedThis = 6
	VTObject            = 7
	VTUninitialized     = 8
)

// VerificationType is one stack-map slot type. Class is set for VTObject,
// Offset for VTUninitialized.
type VerificationType struct {
	Tag    uint8
	Class  Ref
	Offset uint16
}

// StackMapFrame is one frame of a StackMapTable. Type is the raw
// frame_type byte; it decides which of the other fields are on the wire.
type StackMapFrame struct {
	Type        uint8
	OffsetDelta uint16
	Locals      []VerificationType
	Stack       []VerificationType
}

// StackMapTableAttribute carries the type-checking frames of a code body.
type StackMapTableAttribute struct {
	attrHeader
	Frames []StackMapFrame
}

func (a *StackMapTableAttribute) Kind() AttributeKind { return KindStackMapTable }

func (a *StackMapTableAttribute) VisitRefs(visit RefVisitor, withName bool) error {
	if err := a.visitName(visit, withName); err != nil {
		return err
	}
	for i := range a.Frames {
		f := &a.Frames[i]
		for _, types := range [][]VerificationType{f.Locals, f.Stack} {
			for j := range types {
				if types[j].Tag != VTObject {
					continue
				}
				if err := visitRef(visit, &types[j].Class); err != nil {
					return fmt.Errorf("stack map frame %d: %w", i, err)
				}
			}
		}
	}
	return nil
}

func (a *StackMapTableAttribute) writePayload(e *encoder, _ WriteOptions) error {
	e.u2(uint16(len(a.Frames)))
	for i, f := range a.Frames {
		if err := writeFrame(e, f); err != nil {
			return fmt.Errorf("stack map frame %d: %w", i, err)
		}
	}
	return nil
}

func writeFrame(e *encoder, f StackMapFrame) error {
	e.u1(f.Type)
	switch t := f.Type; {
	case t <= 63:
	case t <= 127:
		if len(f.Stack) != 1 {
			return fmt.Errorf("frame type %d needs one stack item, have %d", t, len(f.Stack))
		}
		writeVerificationType(e, f.Stack[0])
	case t < 247:
		return formatErrorf("write", "reserved stack map frame type %d", t)
	case t == 247:
		if len(f.Stack) != 1 {
			return fmt.Errorf("frame type %d needs one stack item, have %d", t, len(f.Stack))
		}
		e.u2(f.OffsetDelta)
		writeVerificationType(e, f.Stack[0])
	case t <= 251:
		e.u2(f.OffsetDelta)
	case t <= 254:
		if len(f.Locals) != int(t)-251 {
			return fmt.Errorf("frame type %d needs %d locals, have %d", t, int(t)-251, len(f.Locals))
		}
		e.u2(f.OffsetDelta)
		for _, vt := range f.Locals {
			writeVerificationType(e, vt)
		}
	default:
		e.u2(f.OffsetDelta)
		e.u2(uint16(len(f.Locals)))
		for _, vt := range f.Locals {
			writeVerificationType(e, vt)
		}
		e.u2(uint16(len(f.Stack)))
		for _, vt := range f.Stack {
			writeVerificationType(e, vt)
		}
	}
	return nil
}

func writeVerificationType(e *encoder, vt VerificationType) {
	e.u1(vt.Tag)
	switch vt.Tag {
	case VTObject:
		e.ref(vt.Class)
	case VTUninitialized:
		e.u2(vt.Offset)
	}
}

func parseStackMapTable(h attrHeader, d *decoder, _ *readContext) (Attribute, error) {
	n, err := d.u2()
	if err != nil {
		return nil, err
	}
	a := &StackMapTableAttribute{attrHeader: h, Frames: make([]StackMapFrame, n)}
	for i := range a.Frames {
		if a.Frames[i], err = readFrame(d); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return a, nil
}

func readFrame(d *decoder) (StackMapFrame, error) {
	var f StackMapFrame
	t, err := d.u1()
	if err != nil {
		return f, err
	}
	f.Type = t
	switch {
	case t <= 63:
	case t <= 127:
		vt, err := readVerificationType(d)
		if err != nil {
			return f, err
		}
		f.Stack = []VerificationType{vt}
	case t < 247:
		return f, fmt.Errorf("reserved frame type %d", t)
	case t == 247:
		if f.OffsetDelta, err = d.u2(); err != nil {
			return f, err
		}
		vt, err := readVerificationType(d)
		if err != nil {
			return f, err
		}
		f.Stack = []VerificationType{vt}
	case t <= 251:
		if f.OffsetDelta, err = d.u2(); err != nil {
			return f, err
		}
	case t <= 254:
		if f.OffsetDelta, err = d.u2(); err != nil {
			return f, err
		}
		if f.Locals, err = readVerificationTypes(d, int(t)-251); err != nil {
			return f, err
		}
	default:
		if f.OffsetDelta, err = d.u2(); err != nil {
			return f, err
		}
		nl, err := d.u2()
		if err != nil {
			return f, err
		}
		if f.Locals, err = readVerificationTypes(d, int(nl)); err != nil {
			return f, err
		}
		ns, err := d.u2()
		if err != nil {
			return f, err
		}
		if f.Stack, err = readVerificationTypes(d, int(ns)); err != nil {
			return f, err
		}
	}
	return f, nil
}

func readVerificationTypes(d *decoder, n int) ([]VerificationType, error) {
	out := make([]VerificationType, n)
	for i := range out {
		vt, err := readVerificationType(d)
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

func readVerificationType(d *decoder) (VerificationType, error) {
	var vt VerificationType
	tag, err := d.u1()
	if err != nil {
		return vt, err
	}
	vt.Tag = tag
	switch tag {
	case VTObject:
		vt.Class, err = d.ref()
	case VTUninitialized:
		vt.Offset, err = d.u2()
	default:
		if tag > VTUninitialized {
			return vt, fmt.Errorf("unknown verification type tag %d", tag)
		}
	}
	return vt, err
}

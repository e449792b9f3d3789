package classfile

import (
	"fmt"
	"math"
	"strconv"
)

// Tag identifies the kind of a constant pool entry. Values match the
// class-file wire encoding.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
)

func (t Tag) String() string {
	switch t {
	case TagUtf8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	default:
		return "Tag(" + strconv.Itoa(int(t)) + ")"
	}
}

// Wide reports whether constants of this kind occupy two pool slots.
func (t Tag) Wide() bool {
	return t == TagLong || t == TagDouble
}

// IsMemberRef reports whether t is a field, method or interface-method
// reference.
func (t Tag) IsMemberRef() bool {
	return t == TagFieldref || t == TagMethodref || t == TagInterfaceMethodref
}

// Ref is a handle to a constant: its slot index in the owning pool. Zero
// means "absent".
type Ref uint16

// Constant is one constant pool entry.
//
// Refs hold the symbolic slots this constant depends on:
//   - Class, String: Refs[0] names a Utf8
//   - NameAndType: Refs[0] name, Refs[1] descriptor
//   - Fieldref, Methodref, InterfaceMethodref: Refs[0] Class, Refs[1] NameAndType
type Constant struct {
	Tag  Tag
	Text string // Utf8 bytes, kept verbatim
	Bits uint64 // scalar bits; 32-bit kinds use the low word
	Refs [2]Ref

	Index      int // slot in the owning pool, -1 when unplaced or dead
	Resolved   bool
	References int
	Shared     bool
}

func newConstant(tag Tag) *Constant {
	return &Constant{Tag: tag, Index: -1}
}

// Width is the number of pool slots the constant occupies.
func (c *Constant) Width() int {
	if c.Tag.Wide() {
		return 2
	}
	return 1
}

// Deps returns the refs this constant depends on, in wire order.
func (c *Constant) Deps() []Ref {
	switch c.Tag {
	case TagClass, TagString:
		return c.Refs[:1]
	case TagNameAndType, TagFieldref, TagMethodref, TagInterfaceMethodref:
		return c.Refs[:2]
	default:
		return nil
	}
}

// depTags lists the kind each dependency must have.
func (c *Constant) depTags() []Tag {
	switch c.Tag {
	case TagClass, TagString:
		return []Tag{TagUtf8}
	case TagNameAndType:
		return []Tag{TagUtf8, TagUtf8}
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		return []Tag{TagClass, TagNameAndType}
	default:
		return nil
	}
}

func readConstant(d *decoder) (*Constant, error) {
	t, err := d.u1()
	if err != nil {
		return nil, err
	}
	c := newConstant(Tag(t))
	switch c.Tag {
	case TagUtf8:
		n, err := d.u2()
		if err != nil {
			return nil, err
		}
		raw, err := d.bytes(int(n))
		if err != nil {
			return nil, err
		}
		c.Text = string(raw)
		c.Resolved = true
	case TagInteger, TagFloat:
		v, err := d.u4()
		if err != nil {
			return nil, err
		}
		c.Bits = uint64(v)
		c.Resolved = true
	case TagLong, TagDouble:
		v, err := d.u8()
		if err != nil {
			return nil, err
		}
		c.Bits = v
		c.Resolved = true
	case TagClass, TagString:
		if c.Refs[0], err = d.ref(); err != nil {
			return nil, err
		}
	case TagNameAndType, TagFieldref, TagMethodref, TagInterfaceMethodref:
		if c.Refs[0], err = d.ref(); err != nil {
			return nil, err
		}
		if c.Refs[1], err = d.ref(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported constant tag %d", t)
	}
	return c, nil
}

// Resolve checks that every symbolic ref names a constant of the expected
// kind in p and marks the constant resolved. A second call is a no-op.
func (c *Constant) Resolve(p *Pool) error {
	if c.Resolved {
		return nil
	}
	want := c.depTags()
	for i, ref := range c.Deps() {
		dep, err := p.At(ref)
		if err != nil {
			return fmt.Errorf("resolve %s #%d: %w", c.Tag, c.Index, err)
		}
		if dep.Tag != want[i] {
			return fmt.Errorf("resolve %s #%d: ref #%d is %s, want %s", c.Tag, c.Index, ref, dep.Tag, want[i])
		}
	}
	c.Resolved = true
	return nil
}

func (c *Constant) write(e *encoder) error {
	if !c.Resolved {
		return formatErrorf("write", "constant #%d (%s) is unresolved", c.Index, c.Tag)
	}
	e.u1(uint8(c.Tag))
	switch c.Tag {
	case TagUtf8:
		if len(c.Text) > math.MaxUint16 {
			return formatErrorf("write", "utf8 constant #%d too long: %d bytes", c.Index, len(c.Text))
		}
		e.u2(uint16(len(c.Text)))
		e.raw([]byte(c.Text))
	case TagInteger, TagFloat:
		e.u4(uint32(c.Bits))
	case TagLong, TagDouble:
		e.u8(c.Bits)
	default:
		for _, r := range c.Deps() {
			e.ref(r)
		}
	}
	return nil
}

// Int returns the value of an Integer constant.
func (c *Constant) Int() int32 { return int32(uint32(c.Bits)) }

// Float returns the value of a Float constant.
func (c *Constant) Float() float32 { return math.Float32frombits(uint32(c.Bits)) }

// Long returns the value of a Long constant.
func (c *Constant) Long() int64 { return int64(c.Bits) }

// Double returns the value of a Double constant.
func (c *Constant) Double() float64 { return math.Float64frombits(c.Bits) }

// String renders the constant's own payload, without following refs.
func (c *Constant) String() string {
	switch c.Tag {
	case TagUtf8:
		return fmt.Sprintf("Utf8 %q", c.Text)
	case TagInteger:
		return fmt.Sprintf("Integer %d", c.Int())
	case TagFloat:
		return fmt.Sprintf("Float %g", c.Float())
	case TagLong:
		return fmt.Sprintf("Long %d", c.Long())
	case TagDouble:
		return fmt.Sprintf("Double %g", c.Double())
	case TagClass, TagString:
		return fmt.Sprintf("%s #%d", c.Tag, c.Refs[0])
	default:
		return fmt.Sprintf("%s #%d.#%d", c.Tag, c.Refs[0], c.Refs[1])
	}
}

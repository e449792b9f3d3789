package classfile

import "fmt"

// AccessFlags is the access_flags bit set of a class or member.
type AccessFlags uint16

const (
	AccPublic     AccessFlags = 0x0001
	AccPrivate    AccessFlags = 0x0002
	AccProtected  AccessFlags = 0x0004
	AccStatic     AccessFlags = 0x0008
	AccFinal      AccessFlags = 0x0010
	AccSuper      AccessFlags = 0x0020
	AccVolatile   AccessFlags = 0x0040
	AccTransient  AccessFlags = 0x0080
	AccNative     AccessFlags = 0x0100
	AccInterface  AccessFlags = 0x0200
	AccAbstract   AccessFlags = 0x0400
	AccSynthetic  AccessFlags = 0x1000
	AccAnnotation AccessFlags = 0x2000
	AccEnum       AccessFlags = 0x4000
)

// Has reports whether every bit of flag is set.
func (f AccessFlags) Has(flag AccessFlags) bool {
	return f&flag == flag
}

// Member is the part common to fields and methods.
type Member struct {
	Access     AccessFlags
	NameRef    Ref
	DescRef    Ref
	Attributes []Attribute

	// Derived when the owning class is resolved.
	Name       string
	Descriptor string
	ID         uint64
	Class      *Class
}

func (m *Member) IsStatic() bool  { return m.Access.Has(AccStatic) }
func (m *Member) IsPrivate() bool { return m.Access.Has(AccPrivate) }

// QualifiedName renders owner.name:descriptor.
func (m *Member) QualifiedName() string {
	owner := "?"
	if m.Class != nil {
		owner = m.Class.Name
	}
	return fmt.Sprintf("%s.%s:%s", owner, m.Name, m.Descriptor)
}

func (m *Member) resolve(p *Pool) error {
	name, err := p.Utf8At(m.NameRef)
	if err != nil {
		return fmt.Errorf("member name: %w", err)
	}
	desc, err := p.Utf8At(m.DescRef)
	if err != nil {
		return fmt.Errorf("member %s descriptor: %w", name, err)
	}
	m.Name = name
	m.Descriptor = desc
	m.ID = SignatureHash(name, desc)
	return nil
}

// VisitRefs walks the name, descriptor and every attribute ref.
func (m *Member) VisitRefs(visit RefVisitor, withName bool) error {
	if err := visitRef(visit, &m.NameRef); err != nil {
		return err
	}
	if err := visitRef(visit, &m.DescRef); err != nil {
		return err
	}
	for _, a := range m.Attributes {
		if err := a.VisitRefs(visit, withName); err != nil {
			return err
		}
	}
	return nil
}

// Field is a field record. Offset is the instance slot assigned by the
// table builder, -1 until then.
type Field struct {
	Member
	Offset int
}

// Width is 2 for long and double fields, 1 otherwise.
func (f *Field) Width() int {
	if f.Descriptor == "J" || f.Descriptor == "D" {
		return 2
	}
	return 1
}

// ConstantValue returns the field's ConstantValue attribute, if any.
func (f *Field) ConstantValue() *ConstantValueAttribute {
	for _, a := range f.Attributes {
		if cv, ok := a.(*ConstantValueAttribute); ok {
			return cv
		}
	}
	return nil
}

// Method is a method record. TableIndex is the virtual dispatch slot, -1
// until assigned.
type Method struct {
	Member
	TableIndex int
}

// IsConstructor reports instance and class initializers, which never take
// part in virtual dispatch.
func (m *Method) IsConstructor() bool {
	return m.Name == "<init>" || m.Name == "<clinit>"
}

// Code returns the method body, or nil for abstract and native methods.
func (m *Method) Code() *CodeAttribute {
	for _, a := range m.Attributes {
		if code, ok := a.(*CodeAttribute); ok {
			return code
		}
	}
	return nil
}

func readMember(d *decoder, ctx *readContext) (Member, error) {
	var m Member
	access, err := d.u2()
	if err != nil {
		return m, err
	}
	m.Access = AccessFlags(access)
	if m.NameRef, err = d.ref(); err != nil {
		return m, err
	}
	if m.DescRef, err = d.ref(); err != nil {
		return m, err
	}
	if m.Attributes, err = readAttributes(d, ctx); err != nil {
		return m, err
	}
	return m, nil
}

func (m *Member) write(e *encoder, opts WriteOptions) error {
	e.u2(uint16(m.Access))
	e.ref(m.NameRef)
	e.ref(m.DescRef)
	return writeAttributes(e, m.Attributes, opts)
}

package classfile

import "fmt"

// Class is one class unit: the structure read from the wire plus the state
// the linking phases derive from it.
type Class struct {
	MinorVersion  uint16
	MajorVersion  uint16
	Pool          *Pool
	Access        AccessFlags
	ThisRef       Ref
	SuperRef      Ref
	InterfaceRefs []Ref
	Fields        []*Field
	Methods       []*Method
	Attributes    []Attribute

	// Symbolic names, derived by Resolve.
	Name           string
	SuperName      string
	InterfaceNames []string

	// Set by the registry. Super stays nil when the superclass is absent
	// or could not be found.
	Super      *Class
	Interfaces []*Class

	// Set by the table builder. A non-nil table means "already built".
	FieldTable  []*Field
	MethodTable []*Method
}

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool {
	return c.Access.Has(AccInterface)
}

// Resolve derives the symbolic names of the class and its members from the
// pool and computes member signature hashes. Linking state is untouched.
func (c *Class) Resolve() error {
	if c.Pool == nil {
		return fmt.Errorf("resolve class: no constant pool")
	}
	name, err := c.Pool.ClassNameAt(c.ThisRef)
	if err != nil {
		return fmt.Errorf("resolve this_class: %w", err)
	}
	c.Name = name
	c.SuperName = ""
	if c.SuperRef != 0 {
		if c.SuperName, err = c.Pool.ClassNameAt(c.SuperRef); err != nil {
			return fmt.Errorf("resolve %s super_class: %w", name, err)
		}
	}
	c.InterfaceNames = make([]string, len(c.InterfaceRefs))
	for i, ref := range c.InterfaceRefs {
		if c.InterfaceNames[i], err = c.Pool.ClassNameAt(ref); err != nil {
			return fmt.Errorf("resolve %s interface %d: %w", name, i, err)
		}
	}
	for i, f := range c.Fields {
		if err := f.resolve(c.Pool); err != nil {
			return fmt.Errorf("resolve %s field %d: %w", name, i, err)
		}
		f.Class = c
	}
	for i, m := range c.Methods {
		if err := m.resolve(c.Pool); err != nil {
			return fmt.Errorf("resolve %s method %d: %w", name, i, err)
		}
		m.Class = c
	}
	return nil
}

// VisitRefs walks every pool ref the class holds: this, super, interfaces,
// member names and descriptors, and all attributes with their code bodies.
// Attribute names are visited only when withName is set.
func (c *Class) VisitRefs(visit RefVisitor, withName bool) error {
	if err := visitRef(visit, &c.ThisRef); err != nil {
		return fmt.Errorf("this_class: %w", err)
	}
	if err := visitRef(visit, &c.SuperRef); err != nil {
		return fmt.Errorf("super_class: %w", err)
	}
	for i := range c.InterfaceRefs {
		if err := visitRef(visit, &c.InterfaceRefs[i]); err != nil {
			return fmt.Errorf("interface %d: %w", i, err)
		}
	}
	for _, f := range c.Fields {
		if err := f.VisitRefs(visit, withName); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	for _, m := range c.Methods {
		if err := m.VisitRefs(visit, withName); err != nil {
			return fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
		}
	}
	for _, a := range c.Attributes {
		if err := a.VisitRefs(visit, withName); err != nil {
			return fmt.Errorf("%s attribute: %w", a.Kind(), err)
		}
	}
	return nil
}

// LocalField finds a field declared by c itself by signature hash.
func (c *Class) LocalField(id uint64) *Field {
	for _, f := range c.Fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// LocalMethod finds a method declared by c itself by signature hash.
func (c *Class) LocalMethod(id uint64) *Method {
	for _, m := range c.Methods {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// StripUninterpreted removes raw attributes from the class, its members and
// its code bodies, resealing every code body it changed. It returns the
// number of attributes removed.
func (c *Class) StripUninterpreted() (int, error) {
	removed := 0
	var err error
	strip := func(attrs []Attribute) []Attribute {
		kept := attrs[:0]
		for _, a := range attrs {
			if a.Kind() == KindRaw {
				removed++
				continue
			}
			if code, ok := a.(*CodeAttribute); ok {
				before := removed
				nested := code.Attributes[:0]
				for _, n := range code.Attributes {
					if n.Kind() == KindRaw {
						removed++
						continue
					}
					nested = append(nested, n)
				}
				code.Attributes = nested
				if removed != before && err == nil {
					err = Seal(code)
				}
			}
			kept = append(kept, a)
		}
		return kept
	}
	c.Attributes = strip(c.Attributes)
	for _, f := range c.Fields {
		f.Attributes = strip(f.Attributes)
	}
	for _, m := range c.Methods {
		m.Attributes = strip(m.Attributes)
	}
	return removed, err
}

// ClearAttributeNames zeroes every attribute name ref. It is applied when
// names are not kept live, so that stale slots cannot be written.
func (c *Class) ClearAttributeNames() {
	var zero func(attrs []Attribute)
	zero = func(attrs []Attribute) {
		for _, a := range attrs {
			a.header().Name = 0
			if code, ok := a.(*CodeAttribute); ok {
				zero(code.Attributes)
			}
		}
	}
	zero(c.Attributes)
	for _, f := range c.Fields {
		zero(f.Attributes)
	}
	for _, m := range c.Methods {
		zero(m.Attributes)
	}
}

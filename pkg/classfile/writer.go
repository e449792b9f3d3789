package classfile

import (
	"fmt"
)

// WriteOptions configure Marshal.
type WriteOptions struct {
	// StripNames writes each attribute's AttributeKind in place of its name
	// ref. Uninterpreted attributes cannot be written in this form.
	StripNames bool
	// ExternalPool writes a constant_pool_count of zero and no entries; the
	// unit then refers into a shared pool stored separately.
	ExternalPool bool
}

// Marshal serializes the class in the same nesting order Parse reads it.
func (c *Class) Marshal(opts WriteOptions) ([]byte, error) {
	var e encoder
	if err := c.write(&e, opts); err != nil {
		return nil, withClass(err, c.Name)
	}
	return e.bytes(), nil
}

func (c *Class) write(e *encoder, opts WriteOptions) error {
	e.u4(Magic)
	e.u2(c.MinorVersion)
	e.u2(c.MajorVersion)
	if opts.ExternalPool {
		e.u2(0)
	} else if err := c.Pool.write(e); err != nil {
		return err
	}
	e.u2(uint16(c.Access))
	e.ref(c.ThisRef)
	e.ref(c.SuperRef)
	e.u2(uint16(len(c.InterfaceRefs)))
	for _, r := range c.InterfaceRefs {
		e.ref(r)
	}
	e.u2(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		if err := f.write(e, opts); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	e.u2(uint16(len(c.Methods)))
	for _, m := range c.Methods {
		if err := m.write(e, opts); err != nil {
			return fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
		}
	}
	return writeAttributes(e, c.Attributes, opts)
}

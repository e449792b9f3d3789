package classfile

import (
	"fmt"
)

// Magic is the class-file signature.
const Magic uint32 = 0xCAFEBABE

// ReadOptions configure Parse.
type ReadOptions struct {
	// StripNames expects attribute headers carrying an AttributeKind in
	// place of a name ref.
	StripNames bool
	// Pool is used when the unit was written against an external shared
	// pool (constant_pool_count of zero).
	Pool *Pool
}

type readContext struct {
	pool *Pool
	opts ReadOptions
}

// Parse decodes one class unit and resolves its constants and names.
func Parse(data []byte, opts ReadOptions) (*Class, error) {
	c, err := parse(newDecoder(data), opts)
	if err != nil {
		return nil, withClass(err, "")
	}
	return c, nil
}

func parse(d *decoder, opts ReadOptions) (*Class, error) {
	magic, err := d.u4()
	if err != nil {
		return nil, fmt.Errorf("read class: magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("read class: bad magic 0x%08x", magic)
	}
	c := &Class{}
	if c.MinorVersion, err = d.u2(); err != nil {
		return nil, fmt.Errorf("read class: version: %w", err)
	}
	if c.MajorVersion, err = d.u2(); err != nil {
		return nil, fmt.Errorf("read class: version: %w", err)
	}

	if c.Pool, err = readPool(d); err != nil {
		return nil, fmt.Errorf("read class: %w", err)
	}
	if c.Pool == nil {
		if opts.Pool == nil {
			return nil, fmt.Errorf("read class: unit uses an external constant pool and none was supplied")
		}
		c.Pool = opts.Pool
	}
	ctx := &readContext{pool: c.Pool, opts: opts}

	access, err := d.u2()
	if err != nil {
		return nil, fmt.Errorf("read class: access flags: %w", err)
	}
	c.Access = AccessFlags(access)
	if c.ThisRef, err = d.ref(); err != nil {
		return nil, fmt.Errorf("read class: this_class: %w", err)
	}
	if c.SuperRef, err = d.ref(); err != nil {
		return nil, fmt.Errorf("read class: super_class: %w", err)
	}

	n, err := d.u2()
	if err != nil {
		return nil, fmt.Errorf("read class: interface count: %w", err)
	}
	c.InterfaceRefs = make([]Ref, n)
	for i := range c.InterfaceRefs {
		if c.InterfaceRefs[i], err = d.ref(); err != nil {
			return nil, fmt.Errorf("read class: interface %d: %w", i, err)
		}
	}

	if n, err = d.u2(); err != nil {
		return nil, fmt.Errorf("read class: field count: %w", err)
	}
	c.Fields = make([]*Field, 0, n)
	for i := 0; i < int(n); i++ {
		m, err := readMember(d, ctx)
		if err != nil {
			return nil, fmt.Errorf("read class: field %d: %w", i, err)
		}
		c.Fields = append(c.Fields, &Field{Member: m, Offset: -1})
	}

	if n, err = d.u2(); err != nil {
		return nil, fmt.Errorf("read class: method count: %w", err)
	}
	c.Methods = make([]*Method, 0, n)
	for i := 0; i < int(n); i++ {
		m, err := readMember(d, ctx)
		if err != nil {
			return nil, fmt.Errorf("read class: method %d: %w", i, err)
		}
		c.Methods = append(c.Methods, &Method{Member: m, TableIndex: -1})
	}

	if c.Attributes, err = readAttributes(d, ctx); err != nil {
		return nil, fmt.Errorf("read class: %w", err)
	}
	if d.remaining() != 0 {
		return nil, fmt.Errorf("read class: %d trailing bytes", d.remaining())
	}
	if err := c.Resolve(); err != nil {
		return nil, fmt.Errorf("read class: %w", err)
	}
	return c, nil
}

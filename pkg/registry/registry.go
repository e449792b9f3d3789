// Package registry maps class names to class records for one link run and
// resolves the superclass and interface links between them.
package registry

import (
	"fmt"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// Registry is the name to class map of one batch run. It is append-only while
// units are loaded.
type Registry struct {
	classes map[string]*classfile.Class
	order   []*classfile.Class

	// signature hash -> "name:descriptor" of the first member seen with it
	signatures map[uint64]string
	collisions []error
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		classes:    make(map[string]*classfile.Class),
		signatures: make(map[uint64]string),
	}
}

// Register adds c under its resolved name. A second class with the same name
// is rejected and the first registration is kept.
func (r *Registry) Register(c *classfile.Class) error {
	if c.Name == "" {
		return fmt.Errorf("register: class has no name")
	}
	if _, ok := r.classes[c.Name]; ok {
		return &ResolutionError{Kind: ErrDuplicate, Class: c.Name, Detail: "already registered"}
	}
	r.classes[c.Name] = c
	r.order = append(r.order, c)
	for _, f := range c.Fields {
		r.recordSignature(c.Name, &f.Member)
	}
	for _, m := range c.Methods {
		r.recordSignature(c.Name, &m.Member)
	}
	return nil
}

func (r *Registry) recordSignature(class string, m *classfile.Member) {
	sig := m.Name + ":" + m.Descriptor
	prev, ok := r.signatures[m.ID]
	if !ok {
		r.signatures[m.ID] = sig
		return
	}
	if prev != sig {
		r.collisions = append(r.collisions, &ResolutionError{
			Kind:   ErrHashCollision,
			Class:  class,
			Target: sig,
			Detail: fmt.Sprintf("hash %016x already used by %s", m.ID, prev),
		})
	}
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (*classfile.Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Classes returns the registered classes in registration order.
func (r *Registry) Classes() []*classfile.Class {
	return append([]*classfile.Class(nil), r.order...)
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	return len(r.order)
}

// Collisions returns the signature hash collisions seen so far. Override
// decisions still follow the hash.
func (r *Registry) Collisions() []error {
	return append([]error(nil), r.collisions...)
}

// ResolveSuperclasses links every registered class to its superclass record.
// A missing superclass leaves the class rootless. A cycle is cut at the class
// where it closes, which also becomes rootless.
func (r *Registry) ResolveSuperclasses() []error {
	var errs []error
	for _, c := range r.order {
		c.Super = nil
		if c.SuperName == "" {
			continue
		}
		super, ok := r.classes[c.SuperName]
		if !ok {
			errs = append(errs, &ResolutionError{Kind: ErrMissingSuper, Class: c.Name, Target: c.SuperName})
			continue
		}
		c.Super = super
	}
	for _, c := range r.order {
		onPath := map[*classfile.Class]bool{}
		for k := c; k != nil && k.Super != nil; k = k.Super {
			onPath[k] = true
			if onPath[k.Super] {
				errs = append(errs, &ResolutionError{
					Kind:   ErrCycle,
					Class:  k.Name,
					Target: k.Super.Name,
					Detail: "superclass link cut",
				})
				k.Super = nil
				break
			}
		}
	}
	return errs
}

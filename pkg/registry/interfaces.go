package registry

import "github.com/odvcencio/romlink/pkg/classfile"

// ResolveInterfaces computes, for every registered class, the transitive set
// of interfaces it implements: its direct interfaces, their superinterfaces,
// and everything its superclasses implement. Superclass links must already be
// resolved.
func (r *Registry) ResolveInterfaces() []error {
	res := &closure{
		reg:    r,
		done:   make(map[*classfile.Class][]*classfile.Class),
		active: make(map[*classfile.Class]bool),
	}
	for _, c := range r.order {
		c.Interfaces = res.of(c)
	}
	return res.errs
}

type closure struct {
	reg    *Registry
	done   map[*classfile.Class][]*classfile.Class
	active map[*classfile.Class]bool
	errs   []error
}

func (cl *closure) of(c *classfile.Class) []*classfile.Class {
	if set, ok := cl.done[c]; ok {
		return set
	}
	if cl.active[c] {
		cl.errs = append(cl.errs, &ResolutionError{Kind: ErrCycle, Class: c.Name, Detail: "interface closure re-entered"})
		return nil
	}
	cl.active[c] = true
	defer delete(cl.active, c)

	var out []*classfile.Class
	seen := make(map[*classfile.Class]bool)
	add := func(i *classfile.Class) {
		if i != c && !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	for _, name := range c.InterfaceNames {
		iface, ok := cl.reg.classes[name]
		if !ok {
			cl.errs = append(cl.errs, &ResolutionError{Kind: ErrMissingInterface, Class: c.Name, Target: name})
			continue
		}
		add(iface)
		for _, sup := range cl.of(iface) {
			add(sup)
		}
	}
	if c.Super != nil {
		for _, sup := range cl.of(c.Super) {
			add(sup)
		}
	}
	cl.done[c] = out
	return out
}

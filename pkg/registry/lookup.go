package registry

import (
	"fmt"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// FindField looks a field up by signature hash in c and then its
// superclasses.
func (r *Registry) FindField(c *classfile.Class, id uint64) *classfile.Field {
	for k := c; k != nil; k = k.Super {
		if f := k.LocalField(id); f != nil {
			return f
		}
	}
	return nil
}

// FindMethod looks a method up by signature hash in c, its superclasses, and
// then the interfaces c implements.
func (r *Registry) FindMethod(c *classfile.Class, id uint64) *classfile.Method {
	for k := c; k != nil; k = k.Super {
		if m := k.LocalMethod(id); m != nil {
			return m
		}
	}
	for _, iface := range c.Interfaces {
		if m := iface.LocalMethod(id); m != nil {
			return m
		}
	}
	return nil
}

// VerifyMemberRef checks that a member reference whose owner is registered
// names a member that exists. References to classes outside the run are
// not checked.
func (r *Registry) VerifyMemberRef(from string, ref classfile.MemberRef) error {
	owner, ok := r.classes[ref.Class]
	if !ok {
		return nil
	}
	id := classfile.SignatureHash(ref.Name, ref.Descriptor)
	var found bool
	if ref.Tag == classfile.TagFieldref {
		found = r.FindField(owner, id) != nil
	} else {
		found = r.FindMethod(owner, id) != nil
	}
	if found {
		return nil
	}
	return &ResolutionError{
		Kind:   ErrMissingMember,
		Class:  from,
		Target: fmt.Sprintf("%s.%s:%s", ref.Class, ref.Name, ref.Descriptor),
	}
}

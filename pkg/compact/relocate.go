package compact

import (
	"errors"
	"fmt"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// Relocate rewrites every ref of c through reloc and moves c onto pool, the
// pool reloc was computed for. When relocatable is false attribute names
// are not kept and are cleared. A ref that maps to a dead or missing slot
// is a FormatError and leaves c unusable. A reloc computed from a pool of
// another size is rejected before c is touched.
func Relocate(c *classfile.Class, reloc *Relocation, pool *classfile.Pool, relocatable bool) error {
	if reloc.Len() != c.Pool.Len() {
		err := fmt.Errorf("relocation covers %d slots, pool has %d", reloc.Len(), c.Pool.Len())
		return stamp(&classfile.FormatError{Op: "relocate", Err: err}, c.Name)
	}
	err := c.VisitRefs(func(ref *classfile.Ref) error {
		n, err := reloc.Map(*ref)
		if err != nil {
			return &classfile.FormatError{Op: "relocate", Err: err}
		}
		*ref = n
		return nil
	}, relocatable)
	if err != nil {
		return stamp(err, c.Name)
	}
	c.Pool = pool
	if !relocatable {
		c.ClearAttributeNames()
	}
	if err := c.Resolve(); err != nil {
		return stamp(&classfile.FormatError{Op: "relocate", Err: err}, c.Name)
	}
	return nil
}

func stamp(err error, class string) error {
	var fe *classfile.FormatError
	if errors.As(err, &fe) && fe.Class == "" {
		fe.Class = class
	}
	return err
}

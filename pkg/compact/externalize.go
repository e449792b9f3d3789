package compact

import (
	"fmt"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// Externalize copies every constant c reaches into shared, rewrites c's refs
// to the shared slots and makes shared c's pool. Attribute names are copied
// only when relocatable is set; otherwise they are cleared.
func Externalize(c *classfile.Class, shared *classfile.Pool, relocatable bool) error {
	if !shared.IsShared() {
		return fmt.Errorf("externalize %s: target pool is not shared", c.Name)
	}
	local := c.Pool
	moved := make(map[classfile.Ref]classfile.Ref)
	err := c.VisitRefs(func(ref *classfile.Ref) error {
		if n, ok := moved[*ref]; ok {
			*ref = n
			return nil
		}
		n, err := shared.Dup(local, *ref)
		if err != nil {
			return err
		}
		moved[*ref] = n
		*ref = n
		return nil
	}, relocatable)
	if err != nil {
		return stamp(fmt.Errorf("externalize %s: %w", c.Name, err), c.Name)
	}
	c.Pool = shared
	if !relocatable {
		c.ClearAttributeNames()
	}
	return c.Resolve()
}

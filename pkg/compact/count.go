// Package compact counts constant pool references, drops dead constants,
// and rewrites every ref of a class to the compacted numbering.
package compact

import (
	"fmt"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// CountReferences adds one use to every constant c reaches: its own name,
// super, interfaces, member names and descriptors, attribute payloads and
// bytecode operands. Attribute names count only when relocatable is set.
// Counts accumulate; call Pool.ResetReferences to start over.
func CountReferences(c *classfile.Class, relocatable bool) error {
	err := c.VisitRefs(func(ref *classfile.Ref) error {
		return c.Pool.IncRef(*ref)
	}, relocatable)
	if err != nil {
		return fmt.Errorf("count references in %s: %w", c.Name, err)
	}
	return nil
}

// Live reports whether a constant survives compaction.
func Live(c *classfile.Constant) bool {
	return c.Shared || c.References > 0
}

package layout

import (
	"slices"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// MethodTable returns the virtual dispatch table of c. It starts from the
// superclass table when the superclass is of the same interface kind. Each
// virtual method of c either overrides the slot whose signature hash it
// shares or is appended. The result is memoized on c.
func (b *Builder) MethodTable(c *classfile.Class) []*classfile.Method {
	if c.MethodTable != nil {
		return c.MethodTable
	}
	if b.activeMethods[c] {
		b.cycle(c, "method")
		return nil
	}
	b.activeMethods[c] = true
	defer delete(b.activeMethods, c)

	var table []*classfile.Method
	if c.Super != nil && c.Super.IsInterface() == c.IsInterface() {
		table = slices.Clone(b.MethodTable(c.Super))
	}
	for _, m := range c.Methods {
		if m.IsStatic() || m.IsPrivate() || m.IsConstructor() {
			continue
		}
		slot := slices.IndexFunc(table, func(inherited *classfile.Method) bool {
			return inherited.ID == m.ID
		})
		if slot < 0 {
			slot = len(table)
			table = append(table, m)
		} else {
			table[slot] = m
		}
		if m.TableIndex >= 0 && m.TableIndex != slot {
			b.report.Warnf("%s: dispatch slot changed from %d to %d", m.QualifiedName(), m.TableIndex, slot)
		}
		m.TableIndex = slot
	}
	if table == nil {
		table = []*classfile.Method{}
	}
	c.MethodTable = slices.Clip(table)
	return c.MethodTable
}

// MethodAt returns the method dispatched through slot of c's table, or nil.
func MethodAt(c *classfile.Class, slot int) *classfile.Method {
	if slot < 0 || slot >= len(c.MethodTable) {
		return nil
	}
	return c.MethodTable[slot]
}

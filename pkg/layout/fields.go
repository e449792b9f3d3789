package layout

import "github.com/odvcencio/romlink/pkg/classfile"

// FieldTable returns the instance layout of c: the superclass layout
// followed by c's own non-static fields in declaration order. Offsets
// advance by field width. The result is memoized on c.
func (b *Builder) FieldTable(c *classfile.Class) []*classfile.Field {
	if c.FieldTable != nil {
		return c.FieldTable
	}
	if b.activeFields[c] {
		b.cycle(c, "field")
		return nil
	}
	b.activeFields[c] = true
	defer delete(b.activeFields, c)

	var inherited []*classfile.Field
	if c.Super != nil {
		inherited = b.FieldTable(c.Super)
	}
	table := make([]*classfile.Field, 0, len(inherited)+len(c.Fields))
	table = append(table, inherited...)
	offset := size(inherited)
	for _, f := range c.Fields {
		if f.IsStatic() {
			continue
		}
		if f.Offset >= 0 && f.Offset != offset {
			b.report.Warnf("%s: offset changed from %d to %d", f.QualifiedName(), f.Offset, offset)
		}
		f.Offset = offset
		offset += f.Width()
		table = append(table, f)
	}
	c.FieldTable = table
	return table
}

// InstanceSize is the number of slots an instance of c occupies. The field
// table must already be built.
func InstanceSize(c *classfile.Class) int {
	return size(c.FieldTable)
}

func size(table []*classfile.Field) int {
	if len(table) == 0 {
		return 0
	}
	last := table[len(table)-1]
	return last.Offset + last.Width()
}

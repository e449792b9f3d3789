package compact

import (
	"fmt"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// Relocation maps slots of a pool before compaction to slots after it.
type Relocation struct {
	table []int // old slot -> new slot, -1 when dead
}

// Map returns the new slot of old. Zero maps to zero.
func (r *Relocation) Map(old classfile.Ref) (classfile.Ref, error) {
	if old == 0 {
		return 0, nil
	}
	if int(old) >= len(r.table) {
		return 0, fmt.Errorf("ref #%d outside the relocated pool (%d slots)", old, len(r.table))
	}
	n := r.table[old]
	if n < 0 {
		return 0, fmt.Errorf("ref #%d names a dead constant", old)
	}
	return classfile.Ref(n), nil
}

// Len is the slot count of the pool the relocation was computed from.
func (r *Relocation) Len() int {
	return len(r.table)
}

// Compact builds a new pool holding only the live constants of p, numbered
// densely from 1 in their original order. Later duplicates of a live
// constant are merged into it. Dead constants of p get Index -1; p is
// otherwise untouched.
func Compact(p *classfile.Pool) (*classfile.Pool, *Relocation, error) {
	return compactOrdered(p, nil)
}

// compactOrdered is Compact with the live constants selected by first
// numbered ahead of all others. A nil first keeps pool order.
func compactOrdered(p *classfile.Pool, first func(*classfile.Constant) bool) (*classfile.Pool, *Relocation, error) {
	order := p.Constants()
	if first != nil {
		var head, tail []*classfile.Constant
		for _, c := range order {
			if first(c) {
				head = append(head, c)
			} else {
				tail = append(tail, c)
			}
		}
		order = append(head, tail...)
	}

	reloc := &Relocation{table: make([]int, p.Len())}
	for i := range reloc.table {
		reloc.table[i] = -1
	}
	reloc.table[0] = 0

	var (
		kept []*classfile.Constant
		dead []*classfile.Constant
	)
	survivors := make(map[*classfile.Constant]*classfile.Constant) // canonical -> copy
	next := 1
	for _, c := range order {
		if !Live(c) {
			dead = append(dead, c)
			continue
		}
		canon := p.Canonical(c)
		if merged, ok := survivors[canon]; ok {
			merged.References += c.References
			reloc.table[c.Index] = merged.Index
			continue
		}
		n := *c
		n.Index = next
		kept = append(kept, &n)
		survivors[canon] = &n
		reloc.table[c.Index] = next
		next += c.Width()
	}

	for _, n := range kept {
		deps := n.Deps()
		for i, dep := range deps {
			mapped, err := reloc.Map(dep)
			if err != nil {
				return nil, nil, fmt.Errorf("compact: %s #%d: %w", n.Tag, n.Index, err)
			}
			deps[i] = mapped
		}
	}
	out, err := classfile.NewPoolFrom(kept, p.IsShared())
	if err != nil {
		return nil, nil, fmt.Errorf("compact: %w", err)
	}
	for _, c := range dead {
		c.Index = -1
	}
	return out, reloc, nil
}

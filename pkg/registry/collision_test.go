package registry_test

import (
	"testing"

	"github.com/odvcencio/romlink/pkg/classfile"
	"github.com/odvcencio/romlink/pkg/classfile/classtest"
	"github.com/odvcencio/romlink/pkg/layout"
	"github.com/odvcencio/romlink/pkg/registry"
)

func TestHashCollisionIsReportedAndOverrideKeepsID(t *testing.T) {
	base := classtest.New(t, "Base", "").Method(classfile.AccPublic, "draw", "()V").Build()
	sub := classtest.New(t, "Sub", "Base").Method(classfile.AccPublic, "paint", "(I)V").Build()
	// Force two different signatures onto one hash.
	sub.Methods[0].ID = base.Methods[0].ID

	r := registry.New()
	for _, c := range []*classfile.Class{base, sub} {
		if err := r.Register(c); err != nil {
			t.Fatalf("Register(%s): %v", c.Name, err)
		}
	}
	if errs := r.ResolveSuperclasses(); len(errs) != 0 {
		t.Fatalf("ResolveSuperclasses = %v", errs)
	}

	collisions := r.Collisions()
	if len(collisions) != 1 {
		t.Fatalf("Collisions = %v, want 1", collisions)
	}
	if !registry.IsKind(collisions[0], registry.ErrHashCollision) {
		t.Fatalf("collision = %v, want hash collision", collisions[0])
	}
	re, ok := collisions[0].(*registry.ResolutionError)
	if !ok || re.Class != "Sub" || re.Target != "paint:(I)V" {
		t.Fatalf("collision = %+v, want Sub paint:(I)V", re)
	}

	table := layout.New(nil).MethodTable(sub)
	if len(table) != 1 || table[0] != sub.Methods[0] {
		t.Fatalf("method table = %d slot(s), want Sub.paint overriding slot 0", len(table))
	}
	if sub.Methods[0].TableIndex != base.Methods[0].TableIndex {
		t.Fatalf("paint slot = %d, want draw's slot %d", sub.Methods[0].TableIndex, base.Methods[0].TableIndex)
	}
}

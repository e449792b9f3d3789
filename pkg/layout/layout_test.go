package layout

import (
	"fmt"
	"testing"

	"github.com/odvcencio/romlink/pkg/classfile"
	"github.com/odvcencio/romlink/pkg/classfile/classtest"
	"github.com/odvcencio/romlink/pkg/registry"
)

type recorder struct {
	errs     []error
	warnings []string
}

func (r *recorder) Report(err error) { r.errs = append(r.errs, err) }
func (r *recorder) Warnf(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func linked(t *testing.T, classes ...*classfile.Class) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, c := range classes {
		if err := reg.Register(c); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if errs := reg.ResolveSuperclasses(); len(errs) != 0 {
		t.Fatalf("ResolveSuperclasses: %v", errs)
	}
	return reg
}

func TestFieldTableThreeLevels(t *testing.T) {
	a := classtest.New(t, "A", "").
		Field(classfile.AccPrivate, "f1", "I").
		Field(classfile.AccPrivate, "f2", "J").
		Field(classfile.AccStatic, "counter", "I").Build()
	b := classtest.New(t, "B", "A").
		Field(classfile.AccPrivate, "f1", "I").Build()
	c := classtest.New(t, "C", "B").Build()
	linked(t, a, b, c)

	rec := &recorder{}
	table := New(rec).FieldTable(c)

	want := []struct {
		owner  string
		name   string
		offset int
		width  int
	}{
		{"A", "f1", 0, 1},
		{"A", "f2", 1, 2},
		{"B", "f1", 3, 1},
	}
	if len(table) != len(want) {
		t.Fatalf("table len = %d, want %d", len(table), len(want))
	}
	for i, w := range want {
		f := table[i]
		if f.Class.Name != w.owner || f.Name != w.name || f.Offset != w.offset || f.Width() != w.width {
			t.Fatalf("slot %d = %s.%s@%d width %d, want %s.%s@%d width %d",
				i, f.Class.Name, f.Name, f.Offset, f.Width(), w.owner, w.name, w.offset, w.width)
		}
	}
	if InstanceSize(c) != 4 {
		t.Fatalf("InstanceSize = %d, want 4", InstanceSize(c))
	}
	if a.Fields[2].Offset != -1 {
		t.Fatalf("static field Offset = %d, want -1", a.Fields[2].Offset)
	}
	if len(rec.errs) != 0 || len(rec.warnings) != 0 {
		t.Fatalf("diagnostics = %v %v, want none", rec.errs, rec.warnings)
	}
}

func TestFieldTableIsMemoized(t *testing.T) {
	a := classtest.New(t, "A", "").Field(classfile.AccPrivate, "x", "D").Build()
	b := classtest.New(t, "B", "A").Field(classfile.AccPrivate, "y", "I").Build()
	linked(t, a, b)

	builder := New(nil)
	first := builder.FieldTable(b)
	second := builder.FieldTable(b)
	if &first[0] != &second[0] {
		t.Fatal("second build produced a new table")
	}
	if b.Fields[0].Offset != 2 {
		t.Fatalf("y Offset = %d, want 2", b.Fields[0].Offset)
	}
	// A fresh builder rebuilding from scratch gives the same layout.
	b.FieldTable = nil
	a.FieldTable = nil
	rec := &recorder{}
	again := New(rec).FieldTable(b)
	if len(again) != 2 || again[1].Offset != 2 {
		t.Fatalf("rebuilt table = %v", again)
	}
	if len(rec.warnings) != 0 {
		t.Fatalf("warnings = %v, want none", rec.warnings)
	}
}

func TestMethodTableOverrideReusesSlot(t *testing.T) {
	a := classtest.New(t, "A", "").
		MethodCode(classfile.AccPublic, "run", "()V", classtest.Body()).
		MethodCode(classfile.AccPublic, "stop", "()V", classtest.Body()).
		MethodCode(classfile.AccStatic, "helper", "()V", classtest.Body()).
		MethodCode(classfile.AccPrivate, "secret", "()V", classtest.Body()).
		MethodCode(classfile.AccPublic, "<init>", "()V", classtest.Body()).Build()
	b := classtest.New(t, "B", "A").
		MethodCode(classfile.AccPublic, "run", "()V", classtest.Body()).
		MethodCode(classfile.AccPublic, "jump", "()V", classtest.Body()).Build()
	c := classtest.New(t, "C", "A").
		MethodCode(classfile.AccPublic, "stop", "()V", classtest.Body()).Build()
	linked(t, a, b, c)

	builder := New(nil)
	ta := builder.MethodTable(a)
	if len(ta) != 2 || ta[0].Name != "run" || ta[1].Name != "stop" {
		t.Fatalf("A table = %v", names(ta))
	}

	tb := builder.MethodTable(b)
	if len(tb) != 3 {
		t.Fatalf("B table len = %d, want 3", len(tb))
	}
	if tb[0].Class != b || tb[0].Name != "run" {
		t.Fatalf("B slot 0 = %s, want B.run", tb[0].QualifiedName())
	}
	if tb[1].Class != a || tb[2].Name != "jump" {
		t.Fatalf("B table = %v", names(tb))
	}
	if b.Methods[0].TableIndex != 0 || b.Methods[1].TableIndex != 2 {
		t.Fatalf("B indices = %d,%d, want 0,2", b.Methods[0].TableIndex, b.Methods[1].TableIndex)
	}

	tc := builder.MethodTable(c)
	if len(tc) != len(ta) {
		t.Fatalf("C table len = %d, want %d", len(tc), len(ta))
	}
	if tc[1].Class != c || c.Methods[0].TableIndex != 1 {
		t.Fatalf("C slot 1 = %s", tc[1].QualifiedName())
	}
	if ta[1].Class != a {
		t.Fatal("building C mutated A's table")
	}
	if MethodAt(c, 1) != c.Methods[0] || MethodAt(c, 5) != nil {
		t.Fatal("MethodAt mismatch")
	}
	for _, m := range a.Methods[2:] {
		if m.TableIndex != -1 {
			t.Fatalf("%s TableIndex = %d, want -1", m.Name, m.TableIndex)
		}
	}
}

func TestMethodTableIgnoresSuperOfOtherKind(t *testing.T) {
	iface := classtest.New(t, "I", "").Interface().
		Method(classfile.AccPublic|classfile.AccAbstract, "call", "()V").Build()
	odd := classtest.New(t, "Odd", "I").
		MethodCode(classfile.AccPublic, "other", "()V", classtest.Body()).Build()
	linked(t, iface, odd)

	table := New(nil).MethodTable(odd)
	if len(table) != 1 || table[0].Name != "other" {
		t.Fatalf("table = %v, want [other]", names(table))
	}
}

func TestEmptyTablesAreMemoized(t *testing.T) {
	a := classtest.New(t, "A", "").Build()
	builder := New(nil)
	builder.Build(a)
	if a.FieldTable == nil || a.MethodTable == nil {
		t.Fatal("empty tables not recorded")
	}
}

func TestTablesSurviveCycle(t *testing.T) {
	a := classtest.New(t, "A", "").Field(classfile.AccPrivate, "x", "I").Build()
	b := classtest.New(t, "B", "").Field(classfile.AccPrivate, "y", "I").Build()
	a.Super = b
	b.Super = a

	rec := &recorder{}
	builder := New(rec)
	builder.Build(a)
	if len(rec.errs) != 2 {
		t.Fatalf("errs = %v, want field and method cycle", rec.errs)
	}
	for _, err := range rec.errs {
		if !registry.IsKind(err, registry.ErrCycle) {
			t.Fatalf("err = %v, want cycle", err)
		}
	}
	if a.FieldTable == nil || b.FieldTable == nil {
		t.Fatal("tables not built after cycle")
	}
}

func TestRebuildWarnsOnChangedSlot(t *testing.T) {
	a := classtest.New(t, "A", "").
		MethodCode(classfile.AccPublic, "run", "()V", classtest.Body()).Build()
	a.Methods[0].TableIndex = 4

	rec := &recorder{}
	New(rec).MethodTable(a)
	if len(rec.warnings) != 1 {
		t.Fatalf("warnings = %v, want one", rec.warnings)
	}
	if a.Methods[0].TableIndex != 0 {
		t.Fatalf("TableIndex = %d, want 0", a.Methods[0].TableIndex)
	}
}

func names(table []*classfile.Method) []string {
	out := make([]string, len(table))
	for i, m := range table {
		out[i] = m.QualifiedName()
	}
	return out
}

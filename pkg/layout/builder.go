// Package layout computes instance field layouts and virtual dispatch
// tables across the inheritance chain.
package layout

import (
	"fmt"

	"github.com/odvcencio/romlink/pkg/classfile"
	"github.com/odvcencio/romlink/pkg/registry"
)

// Reporter receives the resolution errors and consistency warnings found
// while building tables. Neither aborts a build.
type Reporter interface {
	Report(err error)
	Warnf(format string, args ...any)
}

type discard struct{}

func (discard) Report(error)         {}
func (discard) Warnf(string, ...any) {}

// Builder builds and memoizes the tables of classes whose superclass links
// are resolved. A class's tables are stored on the class itself.
type Builder struct {
	report        Reporter
	activeFields  map[*classfile.Class]bool
	activeMethods map[*classfile.Class]bool
}

// New returns a builder. A nil reporter discards diagnostics.
func New(report Reporter) *Builder {
	if report == nil {
		report = discard{}
	}
	return &Builder{
		report:        report,
		activeFields:  make(map[*classfile.Class]bool),
		activeMethods: make(map[*classfile.Class]bool),
	}
}

// Build computes both tables of c.
func (b *Builder) Build(c *classfile.Class) {
	b.FieldTable(c)
	b.MethodTable(c)
}

func (b *Builder) cycle(c *classfile.Class, table string) {
	b.report.Report(&registry.ResolutionError{
		Kind:   registry.ErrCycle,
		Class:  c.Name,
		Detail: fmt.Sprintf("%s table re-entered; treated as rootless", table),
	})
}

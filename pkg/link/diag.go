package link

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/odvcencio/romlink/pkg/registry"
)

// Diagnostics receives progress messages, consistency warnings and the
// errors that cost a unit its place in the output or leave it degraded.
type Diagnostics interface {
	Verbosef(format string, args ...any)
	Warnf(format string, args ...any)
	Report(err error)
}

// LogDiagnostics writes diagnostics to a commonlog logger.
type LogDiagnostics struct {
	log commonlog.Logger
}

// NewLogDiagnostics returns diagnostics logged under name.
func NewLogDiagnostics(name string) *LogDiagnostics {
	return &LogDiagnostics{log: commonlog.GetLogger(name)}
}

func (d *LogDiagnostics) Verbosef(format string, args ...any) {
	d.log.Infof(format, args...)
}

func (d *LogDiagnostics) Warnf(format string, args ...any) {
	d.log.Warningf(format, args...)
}

// Report logs resolution errors as warnings, since the run continues, and
// everything else as errors.
func (d *LogDiagnostics) Report(err error) {
	var re *registry.ResolutionError
	if errors.As(err, &re) {
		d.log.Warning(re.Error(), "kind", re.Kind.String(), "class", re.Class)
		return
	}
	d.log.Error(err.Error())
}

// Collector keeps diagnostics in memory and optionally forwards them.
type Collector struct {
	Messages []string
	Warnings []string
	Errors   []error
	Next     Diagnostics
}

func (c *Collector) Verbosef(format string, args ...any) {
	c.Messages = append(c.Messages, fmt.Sprintf(format, args...))
	if c.Next != nil {
		c.Next.Verbosef(format, args...)
	}
}

func (c *Collector) Warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
	if c.Next != nil {
		c.Next.Warnf(format, args...)
	}
}

func (c *Collector) Report(err error) {
	c.Errors = append(c.Errors, err)
	if c.Next != nil {
		c.Next.Report(err)
	}
}

// Count returns how many reported errors match kind.
func (c *Collector) Count(kind registry.ErrorKind) int {
	n := 0
	for _, err := range c.Errors {
		if registry.IsKind(err, kind) {
			n++
		}
	}
	return n
}

// Summary renders a one-line tally.
func (c *Collector) Summary() string {
	var parts []string
	if len(c.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", len(c.Errors)))
	}
	if len(c.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", len(c.Warnings)))
	}
	if len(parts) == 0 {
		return "no diagnostics"
	}
	return strings.Join(parts, ", ")
}

type nopDiagnostics struct{}

func (nopDiagnostics) Verbosef(string, ...any) {}
func (nopDiagnostics) Warnf(string, ...any)    {}
func (nopDiagnostics) Report(error)            {}

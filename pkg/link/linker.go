// Package link drives the batch pipeline: read units, register them,
// resolve superclass links, build tables, compact pools, relocate and emit
// an image.
package link

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/romlink/pkg/classfile"
	"github.com/odvcencio/romlink/pkg/compact"
	"github.com/odvcencio/romlink/pkg/config"
	"github.com/odvcencio/romlink/pkg/layout"
	"github.com/odvcencio/romlink/pkg/registry"
)

// Options select how units are linked.
type Options struct {
	// Relocatable keeps attribute names live. Without it attribute names
	// are dropped from the pools and units are written in stripped form.
	Relocatable bool
	// SharedPool moves every unit's constants into one pool stored as its
	// own image entry.
	SharedPool bool
	// KeepUnknownAttributes keeps uninterpreted attributes. Their payloads
	// are copied verbatim, so any pool index inside them is not relocated.
	KeepUnknownAttributes bool
	// VerifyMembers checks every member reference into a registered class.
	VerifyMembers bool
}

// OptionsFrom reads link options from a configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Relocatable:           cfg.Link.Relocatable,
		SharedPool:            cfg.Link.SharedPool,
		KeepUnknownAttributes: cfg.Link.KeepUnknownAttributes,
		VerifyMembers:         cfg.Link.VerifyMembers,
	}
}

// WriteOptions returns the class writer options matching o.
func (o Options) WriteOptions() classfile.WriteOptions {
	return classfile.WriteOptions{StripNames: !o.Relocatable, ExternalPool: o.SharedPool}
}

// Unit is one class unit moving through the pipeline.
type Unit struct {
	Source     string
	Class      *classfile.Class
	PoolBefore int // slot count when read
	PoolAfter  int // slot count after compaction; 0 until then
	Err        error
}

// Linker runs one batch. It is not safe for concurrent use.
type Linker struct {
	Options Options
	Diag    Diagnostics
	// OnRegistered is called once per unit that parsed and registered.
	OnRegistered func(*classfile.Class)

	Registry  *registry.Registry
	units     []*Unit
	shared    *classfile.Pool
	tables    *layout.Builder
	compacted bool
}

// New returns a linker. A nil diag discards diagnostics.
func New(opts Options, diag Diagnostics) *Linker {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	return &Linker{
		Options:  opts,
		Diag:     diag,
		Registry: registry.New(),
		tables:   layout.New(diag),
	}
}

// Load parses one unit and registers it. A unit that fails to parse or
// duplicates a registered name is reported and left out.
func (l *Linker) Load(source string, data []byte) error {
	c, err := classfile.Parse(data, classfile.ReadOptions{})
	if err != nil {
		err = fmt.Errorf("%s: %w", source, err)
		l.Diag.Report(err)
		return err
	}
	if err := l.Registry.Register(c); err != nil {
		l.Diag.Report(err)
		return err
	}
	l.units = append(l.units, &Unit{Source: source, Class: c, PoolBefore: c.Pool.Len()})
	l.Diag.Verbosef("read %s from %s (%d pool slots)", c.Name, source, c.Pool.Len())
	if l.OnRegistered != nil {
		l.OnRegistered(c)
	}
	return nil
}

// LoadFile reads and loads one file.
func (l *Linker) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read unit: %w", err)
	}
	return l.Load(path, data)
}

// LoadPaths loads files and, recursively, every .class file under
// directories, in lexical order. Units that fail to load are reported and
// skipped; only unreadable paths are returned as errors.
func (l *Linker) LoadPaths(paths []string) error {
	files, err := CollectInputs(paths)
	if err != nil {
		return err
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read unit: %w", err)
		}
		_ = l.Load(f, data)
	}
	return nil
}

// CollectInputs expands paths into the class files they name.
func CollectInputs(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".class") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// Resolve links superclasses and interfaces and reports what could not be
// linked, along with any signature hash collisions.
func (l *Linker) Resolve() {
	for _, err := range l.Registry.ResolveSuperclasses() {
		l.Diag.Report(err)
	}
	for _, err := range l.Registry.ResolveInterfaces() {
		l.Diag.Report(err)
	}
	for _, err := range l.Registry.Collisions() {
		l.Diag.Report(err)
	}
}

// VerifyMembers checks every member reference in every unit's pool against
// the registry. It must run before compaction.
func (l *Linker) VerifyMembers() int {
	missing := 0
	for _, u := range l.Units() {
		for _, k := range u.Class.Pool.Constants() {
			if !k.Tag.IsMemberRef() {
				continue
			}
			mr, err := u.Class.Pool.MemberRefAt(classfile.Ref(k.Index))
			if err != nil {
				l.Diag.Report(fmt.Errorf("%s: %w", u.Class.Name, err))
				continue
			}
			if err := l.Registry.VerifyMemberRef(u.Class.Name, mr); err != nil {
				l.Diag.Report(err)
				missing++
			}
		}
	}
	return missing
}

// BuildTables builds the field and method tables of every unit.
func (l *Linker) BuildTables() {
	for _, u := range l.Units() {
		l.tables.Build(u.Class)
		l.Diag.Verbosef("%s: %d field slot(s), %d method slot(s)", u.Class.Name, layout.InstanceSize(u.Class), len(u.Class.MethodTable))
	}
}

func (l *Linker) fail(u *Unit, err error) {
	u.Err = err
	l.Diag.Report(err)
}

func (l *Linker) strip(u *Unit) error {
	if l.Options.KeepUnknownAttributes && l.Options.Relocatable {
		return nil
	}
	n, err := u.Class.StripUninterpreted()
	if err != nil {
		return fmt.Errorf("%s: strip attributes: %w", u.Class.Name, err)
	}
	if n > 0 {
		l.Diag.Warnf("%s: dropped %d uninterpreted attribute(s)", u.Class.Name, n)
	}
	return nil
}

// Compact counts references, compacts pools and relocates every unit. A
// unit that fails is reported and skipped; the others continue.
func (l *Linker) Compact() {
	if l.compacted {
		return
	}
	l.compacted = true
	if l.Options.SharedPool {
		l.compactShared()
		return
	}
	relocatable := l.Options.Relocatable
	for _, u := range l.Units() {
		if err := l.strip(u); err != nil {
			l.fail(u, err)
			continue
		}
		c := u.Class
		c.Pool.ResetReferences()
		if err := compact.CountReferences(c, relocatable); err != nil {
			l.fail(u, err)
			continue
		}
		pool, reloc, err := compact.Compact(c.Pool)
		if err != nil {
			l.fail(u, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		if err := compact.Relocate(c, reloc, pool, relocatable); err != nil {
			l.fail(u, err)
			continue
		}
		u.PoolAfter = pool.Len()
		l.Diag.Verbosef("%s: pool %d -> %d slots", c.Name, u.PoolBefore, u.PoolAfter)
	}
}

func (l *Linker) compactShared() {
	relocatable := l.Options.Relocatable
	loads := compact.NewLoadSet()
	for _, u := range l.Units() {
		if err := l.strip(u); err != nil {
			l.fail(u, err)
			continue
		}
		if err := loads.Add(u.Class); err != nil {
			l.fail(u, err)
		}
	}
	// Past 255 ldc targets some units cannot be linked; they fail one by
	// one during externalization and the rest still link.
	if err := loads.Check(); err != nil {
		l.Diag.Report(err)
	}
	shared, err := loads.Pool()
	if err != nil {
		for _, u := range l.Units() {
			l.fail(u, fmt.Errorf("%s: shared pool: %w", u.Class.Name, err))
		}
		return
	}
	l.Diag.Verbosef("shared pool: %d ldc constant(s) placed first", loads.Len())
	for _, u := range l.Units() {
		if err := compact.Externalize(u.Class, shared, relocatable); err != nil {
			l.fail(u, err)
		}
	}
	for _, u := range l.Units() {
		if err := compact.CountReferences(u.Class, relocatable); err != nil {
			l.fail(u, err)
		}
	}
	pool, reloc, err := compact.Compact(shared)
	if err != nil {
		for _, u := range l.Units() {
			l.fail(u, fmt.Errorf("%s: shared pool: %w", u.Class.Name, err))
		}
		return
	}
	for _, u := range l.Units() {
		if err := compact.Relocate(u.Class, reloc, pool, relocatable); err != nil {
			l.fail(u, err)
			continue
		}
		u.PoolAfter = pool.Len()
	}
	l.shared = pool
	l.Diag.Verbosef("shared pool: %d slots", pool.Len())
}

// Units returns the units still in the batch, in registration order.
func (l *Linker) Units() []*Unit {
	out := make([]*Unit, 0, len(l.units))
	for _, u := range l.units {
		if u.Err == nil {
			out = append(out, u)
		}
	}
	return out
}

// Failed returns the units dropped after registration.
func (l *Linker) Failed() []*Unit {
	var out []*Unit
	for _, u := range l.units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}

// SharedPool returns the compacted shared pool, or nil when units keep
// their own pools.
func (l *Linker) SharedPool() *classfile.Pool {
	return l.shared
}

// Run loads the inputs and runs every phase up to emission: resolve,
// verify when enabled, build tables, compact and relocate.
func (l *Linker) Run(paths []string) error {
	if err := l.LoadPaths(paths); err != nil {
		return err
	}
	l.Resolve()
	if l.Options.VerifyMembers {
		l.VerifyMembers()
	}
	l.BuildTables()
	l.Compact()
	return nil
}

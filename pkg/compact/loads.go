package compact

import (
	"fmt"

	"github.com/odvcencio/romlink/pkg/classfile"
)

// maxLdcSlot is the highest slot a one-byte ldc operand can name.
const maxLdcSlot = 0xff

// LoadSet gathers the constants that one-byte ldc instructions load across
// a batch, so that a shared pool can place them below slot 256 before any
// unit is externalized into it.
type LoadSet struct {
	stage   *classfile.Pool
	targets map[classfile.Ref]bool
	width   int
}

func NewLoadSet() *LoadSet {
	return &LoadSet{
		stage:   classfile.NewSharedPool(),
		targets: make(map[classfile.Ref]bool),
	}
}

// Add collects the ldc targets of c. Nothing is collected when c's code
// cannot be decoded.
func (s *LoadSet) Add(c *classfile.Class) error {
	var refs []classfile.Ref
	for _, m := range c.Methods {
		code := m.Code()
		if code == nil {
			continue
		}
		insns, err := code.Instructions()
		if err != nil {
			err = &classfile.FormatError{Op: "bytecode", Msg: fmt.Sprintf("method %s%s", m.Name, m.Descriptor), Err: err}
			return stamp(err, c.Name)
		}
		for _, in := range insns {
			if in.Op == classfile.OpLdc && in.Ref != 0 {
				refs = append(refs, in.Ref)
			}
		}
	}
	for _, ref := range refs {
		n, err := s.stage.Dup(c.Pool, ref)
		if err != nil {
			return fmt.Errorf("collect ldc constants of %s: %w", c.Name, err)
		}
		if s.targets[n] {
			continue
		}
		k, err := s.stage.At(n)
		if err != nil {
			return err
		}
		s.targets[n] = true
		s.width += k.Width()
	}
	return nil
}

// Len returns the number of distinct constants collected.
func (s *LoadSet) Len() int {
	return len(s.targets)
}

// Check fails with a FormatError when the collected constants cannot all
// sit at or below slot 255.
func (s *LoadSet) Check() error {
	if s.width > maxLdcSlot {
		return &classfile.FormatError{
			Op:  "externalize",
			Msg: fmt.Sprintf("%d constants loaded by ldc need %d slots, one-byte operands reach #%d", len(s.targets), s.width, maxLdcSlot),
		}
	}
	return nil
}

// Pool returns a new shared pool holding every collected constant and its
// dependencies, with the ldc targets in the lowest slots. The set must not
// be used afterwards.
func (s *LoadSet) Pool() (*classfile.Pool, error) {
	p, _, err := compactOrdered(s.stage, func(c *classfile.Constant) bool {
		return s.targets[classfile.Ref(c.Index)]
	})
	if err != nil {
		return nil, fmt.Errorf("place ldc constants: %w", err)
	}
	return p, nil
}

package classfile

import (
	"fmt"
	"math"
)

// maxPoolSlots is the largest slot count a u2 constant_pool_count allows.
const maxPoolSlots = math.MaxUint16

// constKey is the value identity of a constant. Refs are replaced by the
// text they lead to, so equality does not depend on slot numbering.
type constKey struct {
	tag  Tag
	text string
	name string
	desc string
	bits uint64
}

// Pool is an append-only, deduplicating constant pool. Slot 0 is reserved
// and the slot after a Long or Double is empty.
type Pool struct {
	slots  []*Constant
	index  map[constKey]*Constant
	shared bool
}

// NewPool returns an empty pool holding only the reserved slot 0.
func NewPool() *Pool {
	return &Pool{
		slots: make([]*Constant, 1),
		index: make(map[constKey]*Constant),
	}
}

// NewSharedPool returns an empty pool whose constants are marked Shared and
// therefore survive compaction regardless of their reference counts.
func NewSharedPool() *Pool {
	p := NewPool()
	p.shared = true
	return p
}

// IsShared reports whether p is a cross-unit shared pool.
func (p *Pool) IsShared() bool {
	return p.shared
}

// Len returns the slot count, including slot 0. It is the value written as
// constant_pool_count.
func (p *Pool) Len() int {
	return len(p.slots)
}

// At returns the constant stored at ref.
func (p *Pool) At(ref Ref) (*Constant, error) {
	if ref == 0 {
		return nil, fmt.Errorf("constant ref #0 is reserved")
	}
	if int(ref) >= len(p.slots) {
		return nil, fmt.Errorf("constant ref #%d out of range (pool size %d)", ref, len(p.slots))
	}
	c := p.slots[ref]
	if c == nil {
		return nil, fmt.Errorf("constant ref #%d names the upper half of a wide constant", ref)
	}
	return c, nil
}

// Constants returns the stored constants in slot order.
func (p *Pool) Constants() []*Constant {
	out := make([]*Constant, 0, len(p.slots))
	for _, c := range p.slots {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pool) place(c *Constant) error {
	if len(p.slots)+c.Width() > maxPoolSlots {
		return fmt.Errorf("constant pool overflow: %d slots", len(p.slots)+c.Width())
	}
	c.Index = len(p.slots)
	p.slots = append(p.slots, c)
	if c.Tag.Wide() {
		p.slots = append(p.slots, nil)
	}
	if p.shared {
		c.Shared = true
	}
	return nil
}

// keyOf computes the value identity of c. Every ref of c must already name
// a constant in p.
func (p *Pool) keyOf(c *Constant) (constKey, error) {
	k := constKey{tag: c.Tag}
	switch c.Tag {
	case TagUtf8:
		k.text = c.Text
	case TagInteger, TagFloat, TagLong, TagDouble:
		k.bits = c.Bits
	case TagClass, TagString:
		text, err := p.Utf8At(c.Refs[0])
		if err != nil {
			return k, err
		}
		k.text = text
	case TagNameAndType:
		name, err := p.Utf8At(c.Refs[0])
		if err != nil {
			return k, err
		}
		desc, err := p.Utf8At(c.Refs[1])
		if err != nil {
			return k, err
		}
		k.name, k.desc = name, desc
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		class, name, desc, err := p.refParts(c)
		if err != nil {
			return k, err
		}
		k.text, k.name, k.desc = class, name, desc
	default:
		return k, fmt.Errorf("unsupported constant tag %d", c.Tag)
	}
	return k, nil
}

// Add inserts c unless an equal constant is already present, and returns the
// stored instance. c's refs must name slots of p.
func (p *Pool) Add(c *Constant) (*Constant, error) {
	if c.Index >= 0 {
		return nil, fmt.Errorf("add %s: constant already placed at #%d", c.Tag, c.Index)
	}
	if err := c.Resolve(p); err != nil {
		return nil, err
	}
	key, err := p.keyOf(c)
	if err != nil {
		return nil, err
	}
	if existing, ok := p.index[key]; ok {
		return existing, nil
	}
	if err := p.place(c); err != nil {
		return nil, err
	}
	p.index[key] = c
	return c, nil
}

// Dup copies the constant at ref in src into p, duplicating its
// dependencies first, and returns the slot of the stored instance in p.
// Equal constants already in p are reused.
func (p *Pool) Dup(src *Pool, ref Ref) (Ref, error) {
	c, err := src.At(ref)
	if err != nil {
		return 0, err
	}
	n := newConstant(c.Tag)
	n.Text = c.Text
	n.Bits = c.Bits
	for i, dep := range c.Deps() {
		r, err := p.Dup(src, dep)
		if err != nil {
			return 0, err
		}
		n.Refs[i] = r
	}
	stored, err := p.Add(n)
	if err != nil {
		return 0, err
	}
	return Ref(stored.Index), nil
}

// Canonical returns the first stored constant equal to c, or c itself when
// c is the canonical instance or cannot be keyed.
func (p *Pool) Canonical(c *Constant) *Constant {
	key, err := p.keyOf(c)
	if err != nil {
		return c
	}
	if existing, ok := p.index[key]; ok {
		return existing
	}
	return c
}

// Resolve resolves every constant and rebuilds the dedup index. When the
// input held duplicate entries the first occurrence becomes canonical.
func (p *Pool) Resolve() error {
	for _, c := range p.slots {
		if c == nil {
			continue
		}
		if err := c.Resolve(p); err != nil {
			return err
		}
	}
	return p.reindex()
}

func (p *Pool) reindex() error {
	p.index = make(map[constKey]*Constant, len(p.slots))
	for _, c := range p.slots {
		if c == nil {
			continue
		}
		key, err := p.keyOf(c)
		if err != nil {
			return err
		}
		if _, ok := p.index[key]; !ok {
			p.index[key] = c
		}
	}
	return nil
}

// NewPoolFrom assembles a pool from constants that already carry their final
// Index and rewritten refs, as produced by compaction. Indices must be dense
// from 1, honoring wide constants.
func NewPoolFrom(constants []*Constant, shared bool) (*Pool, error) {
	p := NewPool()
	p.shared = shared
	for _, c := range constants {
		if c.Index != len(p.slots) {
			return nil, fmt.Errorf("assemble pool: %s has index %d, next slot is %d", c.Tag, c.Index, len(p.slots))
		}
		if len(p.slots)+c.Width() > maxPoolSlots {
			return nil, fmt.Errorf("constant pool overflow: %d slots", len(p.slots)+c.Width())
		}
		p.slots = append(p.slots, c)
		if c.Tag.Wide() {
			p.slots = append(p.slots, nil)
		}
		if shared {
			c.Shared = true
		}
	}
	for _, c := range constants {
		c.Resolved = false
		if err := c.Resolve(p); err != nil {
			return nil, fmt.Errorf("assemble pool: %w", err)
		}
	}
	if err := p.reindex(); err != nil {
		return nil, fmt.Errorf("assemble pool: %w", err)
	}
	return p, nil
}

// IncRef records one use of the constant at ref and, transitively, of every
// constant it depends on.
func (p *Pool) IncRef(ref Ref) error {
	return p.adjustRefs(ref, 1)
}

// DecRef undoes one IncRef.
func (p *Pool) DecRef(ref Ref) error {
	return p.adjustRefs(ref, -1)
}

// adjustRefs validates the whole dependency chain before touching any
// counter, so a failed call leaves every count as it was.
func (p *Pool) adjustRefs(ref Ref, delta int) error {
	chain, err := p.refChain(ref, nil)
	if err != nil {
		return err
	}
	pending := make(map[*Constant]int, len(chain))
	for _, c := range chain {
		pending[c] += delta
		if c.References+pending[c] < 0 {
			return fmt.Errorf("constant #%d (%s): reference count below zero", c.Index, c.Tag)
		}
	}
	for _, c := range chain {
		c.References += delta
	}
	return nil
}

// refChain lists the constant at ref and its dependencies, depth first.
// A constant reached along two paths appears twice.
func (p *Pool) refChain(ref Ref, out []*Constant) ([]*Constant, error) {
	c, err := p.At(ref)
	if err != nil {
		return nil, err
	}
	out = append(out, c)
	for _, dep := range c.Deps() {
		if out, err = p.refChain(dep, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ResetReferences zeroes every reference counter.
func (p *Pool) ResetReferences() {
	for _, c := range p.slots {
		if c != nil {
			c.References = 0
		}
	}
}

// Utf8At returns the text of the Utf8 constant at ref.
func (p *Pool) Utf8At(ref Ref) (string, error) {
	c, err := p.At(ref)
	if err != nil {
		return "", err
	}
	if c.Tag != TagUtf8 {
		return "", fmt.Errorf("constant #%d is %s, want Utf8", ref, c.Tag)
	}
	return c.Text, nil
}

// ClassNameAt returns the internal name of the Class constant at ref.
func (p *Pool) ClassNameAt(ref Ref) (string, error) {
	c, err := p.At(ref)
	if err != nil {
		return "", err
	}
	if c.Tag != TagClass {
		return "", fmt.Errorf("constant #%d is %s, want Class", ref, c.Tag)
	}
	return p.Utf8At(c.Refs[0])
}

// NameAndTypeAt returns the name and descriptor of the NameAndType at ref.
func (p *Pool) NameAndTypeAt(ref Ref) (string, string, error) {
	c, err := p.At(ref)
	if err != nil {
		return "", "", err
	}
	if c.Tag != TagNameAndType {
		return "", "", fmt.Errorf("constant #%d is %s, want NameAndType", ref, c.Tag)
	}
	name, err := p.Utf8At(c.Refs[0])
	if err != nil {
		return "", "", err
	}
	desc, err := p.Utf8At(c.Refs[1])
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef is the symbolic target of a field or method reference.
type MemberRef struct {
	Tag        Tag
	Class      string
	Name       string
	Descriptor string
}

// MemberRefAt decodes the field, method or interface-method ref at ref.
func (p *Pool) MemberRefAt(ref Ref) (MemberRef, error) {
	c, err := p.At(ref)
	if err != nil {
		return MemberRef{}, err
	}
	if !c.Tag.IsMemberRef() {
		return MemberRef{}, fmt.Errorf("constant #%d is %s, want a member ref", ref, c.Tag)
	}
	class, name, desc, err := p.refParts(c)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Tag: c.Tag, Class: class, Name: name, Descriptor: desc}, nil
}

func (p *Pool) refParts(c *Constant) (string, string, string, error) {
	class, err := p.ClassNameAt(c.Refs[0])
	if err != nil {
		return "", "", "", err
	}
	name, desc, err := p.NameAndTypeAt(c.Refs[1])
	if err != nil {
		return "", "", "", err
	}
	return class, name, desc, nil
}

func (p *Pool) addNew(c *Constant) (Ref, error) {
	stored, err := p.Add(c)
	if err != nil {
		return 0, err
	}
	return Ref(stored.Index), nil
}

// Utf8 adds a Utf8 constant.
func (p *Pool) Utf8(s string) (Ref, error) {
	if len(s) > math.MaxUint16 {
		return 0, fmt.Errorf("utf8 constant too long: %d bytes", len(s))
	}
	c := newConstant(TagUtf8)
	c.Text = s
	return p.addNew(c)
}

func (p *Pool) wrapUtf8(tag Tag, s string) (Ref, error) {
	u, err := p.Utf8(s)
	if err != nil {
		return 0, err
	}
	c := newConstant(tag)
	c.Refs[0] = u
	return p.addNew(c)
}

// Class adds a Class constant for the given internal name.
func (p *Pool) Class(name string) (Ref, error) {
	return p.wrapUtf8(TagClass, name)
}

// String adds a String constant.
func (p *Pool) String(s string) (Ref, error) {
	return p.wrapUtf8(TagString, s)
}

// NameAndType adds a NameAndType constant.
func (p *Pool) NameAndType(name, desc string) (Ref, error) {
	n, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.Utf8(desc)
	if err != nil {
		return 0, err
	}
	c := newConstant(TagNameAndType)
	c.Refs = [2]Ref{n, d}
	return p.addNew(c)
}

func (p *Pool) memberRef(tag Tag, class, name, desc string) (Ref, error) {
	cls, err := p.Class(class)
	if err != nil {
		return 0, err
	}
	nat, err := p.NameAndType(name, desc)
	if err != nil {
		return 0, err
	}
	c := newConstant(tag)
	c.Refs = [2]Ref{cls, nat}
	return p.addNew(c)
}

// Fieldref adds a Fieldref constant.
func (p *Pool) Fieldref(class, name, desc string) (Ref, error) {
	return p.memberRef(TagFieldref, class, name, desc)
}

// Methodref adds a Methodref constant.
func (p *Pool) Methodref(class, name, desc string) (Ref, error) {
	return p.memberRef(TagMethodref, class, name, desc)
}

// InterfaceMethodref adds an InterfaceMethodref constant.
func (p *Pool) InterfaceMethodref(class, name, desc string) (Ref, error) {
	return p.memberRef(TagInterfaceMethodref, class, name, desc)
}

func (p *Pool) scalar(tag Tag, bits uint64) (Ref, error) {
	c := newConstant(tag)
	c.Bits = bits
	return p.addNew(c)
}

// Integer adds an Integer constant.
func (p *Pool) Integer(v int32) (Ref, error) {
	return p.scalar(TagInteger, uint64(uint32(v)))
}

// Float adds a Float constant.
func (p *Pool) Float(v float32) (Ref, error) {
	return p.scalar(TagFloat, uint64(math.Float32bits(v)))
}

// Long adds a Long constant.
func (p *Pool) Long(v int64) (Ref, error) {
	return p.scalar(TagLong, uint64(v))
}

// Double adds a Double constant.
func (p *Pool) Double(v float64) (Ref, error) {
	return p.scalar(TagDouble, math.Float64bits(v))
}

// readPool returns a nil pool for a zero count, the marker of a unit
// written against an external pool.
func readPool(d *decoder) (*Pool, error) {
	count, err := d.u2()
	if err != nil {
		return nil, fmt.Errorf("constant pool count: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	p := NewPool()
	for len(p.slots) < int(count) {
		c, err := readConstant(d)
		if err != nil {
			return nil, fmt.Errorf("constant #%d: %w", len(p.slots), err)
		}
		if len(p.slots)+c.Width() > int(count) {
			return nil, fmt.Errorf("constant #%d: wide constant overruns pool count %d", len(p.slots), count)
		}
		if err := p.place(c); err != nil {
			return nil, err
		}
	}
	if err := p.Resolve(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) write(e *encoder) error {
	if len(p.slots) > maxPoolSlots {
		return formatErrorf("write", "constant pool too large: %d slots", len(p.slots))
	}
	e.u2(uint16(len(p.slots)))
	for _, c := range p.slots {
		if c == nil {
			continue
		}
		if err := c.write(e); err != nil {
			return err
		}
	}
	return nil
}

// MarshalPool serializes a pool on its own (count followed by entries), the
// form used for a shared pool stored next to the units that reference it.
func MarshalPool(p *Pool) ([]byte, error) {
	var e encoder
	if err := p.write(&e); err != nil {
		return nil, err
	}
	return e.bytes(), nil
}

// ParsePool decodes a pool written by MarshalPool. The result is marked
// shared when shared is true.
func ParsePool(data []byte, shared bool) (*Pool, error) {
	d := newDecoder(data)
	p, err := readPool(d)
	if err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("parse pool: count is zero")
	}
	if d.remaining() != 0 {
		return nil, fmt.Errorf("parse pool: %d trailing bytes", d.remaining())
	}
	if shared {
		p.shared = true
		for _, c := range p.Constants() {
			c.Shared = true
		}
	}
	return p, nil
}

package link

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/odvcencio/romlink/pkg/layout"
)

// LinkMapVersion is bumped when the link map encoding changes.
const LinkMapVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("link: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// LinkMap records the tables and pool sizes a link produced, for tools
// that inspect an image without re-linking it.
type LinkMap struct {
	Version    int        `cbor:"1,keyasint"`
	SharedPool int        `cbor:"2,keyasint,omitempty"` // slot count, 0 without a shared pool
	Classes    []ClassMap `cbor:"3,keyasint"`
}

// ClassMap is the link result for one class.
type ClassMap struct {
	Name         string       `cbor:"1,keyasint"`
	Super        string       `cbor:"2,keyasint,omitempty"`
	Interfaces   []string     `cbor:"3,keyasint,omitempty"`
	InstanceSize int          `cbor:"4,keyasint"`
	Fields       []FieldSlot  `cbor:"5,keyasint,omitempty"`
	Methods      []MethodSlot `cbor:"6,keyasint,omitempty"`
	PoolBefore   int          `cbor:"7,keyasint"`
	PoolAfter    int          `cbor:"8,keyasint"`
}

// FieldSlot is one row of a field table.
type FieldSlot struct {
	Name       string `cbor:"1,keyasint"`
	Descriptor string `cbor:"2,keyasint"`
	Owner      string `cbor:"3,keyasint"`
	Offset     int    `cbor:"4,keyasint"`
	Width      int    `cbor:"5,keyasint"`
}

// MethodSlot is one row of a method table.
type MethodSlot struct {
	Slot       int    `cbor:"1,keyasint"`
	Name       string `cbor:"2,keyasint"`
	Descriptor string `cbor:"3,keyasint"`
	Owner      string `cbor:"4,keyasint"`
}

// BuildLinkMap collects the link map of the surviving units. Tables must
// have been built.
func (l *Linker) BuildLinkMap() *LinkMap {
	m := &LinkMap{Version: LinkMapVersion}
	if l.shared != nil {
		m.SharedPool = l.shared.Len()
	}
	for _, u := range l.Units() {
		c := u.Class
		cm := ClassMap{
			Name:         c.Name,
			Super:        c.SuperName,
			Interfaces:   c.InterfaceNames,
			InstanceSize: layout.InstanceSize(c),
			PoolBefore:   u.PoolBefore,
			PoolAfter:    u.PoolAfter,
		}
		for _, f := range c.FieldTable {
			cm.Fields = append(cm.Fields, FieldSlot{
				Name:       f.Name,
				Descriptor: f.Descriptor,
				Owner:      f.Class.Name,
				Offset:     f.Offset,
				Width:      f.Width(),
			})
		}
		for i, mt := range c.MethodTable {
			cm.Methods = append(cm.Methods, MethodSlot{
				Slot:       i,
				Name:       mt.Name,
				Descriptor: mt.Descriptor,
				Owner:      mt.Class.Name,
			})
		}
		m.Classes = append(m.Classes, cm)
	}
	return m
}

// Find returns the entry for a class.
func (m *LinkMap) Find(name string) (ClassMap, bool) {
	for _, c := range m.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return ClassMap{}, false
}

// MarshalLinkMap serializes a link map to canonical CBOR.
func MarshalLinkMap(m *LinkMap) ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalLinkMap deserializes a link map.
func UnmarshalLinkMap(data []byte) (*LinkMap, error) {
	var m LinkMap
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("link: unmarshal link map: %w", err)
	}
	if m.Version != LinkMapVersion {
		return nil, fmt.Errorf("link: unsupported link map version %d", m.Version)
	}
	return &m, nil
}

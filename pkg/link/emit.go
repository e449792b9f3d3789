package link

import (
	"fmt"
	"io"

	"github.com/odvcencio/romlink/pkg/classfile"
	"github.com/odvcencio/romlink/pkg/image"
)

// SharedPoolEntry is the image entry name of the shared pool.
const SharedPoolEntry = "$pool"

// Emitted describes a written image.
type Emitted struct {
	Checksum string
	Index    []image.IndexEntry
}

// ImageFlags returns the image header flags for the linker's options.
func (l *Linker) ImageFlags(compress bool) uint32 {
	var flags uint32
	if compress {
		flags |= image.FlagCompressed
	}
	if !l.Options.Relocatable {
		flags |= image.FlagStripped
	}
	return flags
}

// Emit writes the surviving units, preceded by the shared pool when there
// is one, as an image.
func (l *Linker) Emit(w io.Writer, compress bool) (*Emitted, error) {
	if !l.compacted {
		return nil, fmt.Errorf("emit: units are not compacted")
	}
	units := l.Units()
	n := len(units)
	if l.shared != nil {
		n++
	}
	iw, err := image.NewWriter(w, uint32(n), l.ImageFlags(compress))
	if err != nil {
		return nil, err
	}
	if l.shared != nil {
		data, err := classfile.MarshalPool(l.shared)
		if err != nil {
			return nil, fmt.Errorf("emit shared pool: %w", err)
		}
		if err := iw.WriteEntry(image.EntrySharedPool, SharedPoolEntry, data); err != nil {
			return nil, err
		}
	}
	opts := l.Options.WriteOptions()
	for _, u := range units {
		data, err := u.Class.Marshal(opts)
		if err != nil {
			return nil, fmt.Errorf("emit: %w", err)
		}
		if err := iw.WriteEntry(image.EntryClass, u.Class.Name, data); err != nil {
			return nil, err
		}
	}
	sum, err := iw.Finish()
	if err != nil {
		return nil, err
	}
	l.Diag.Verbosef("emitted %d unit(s), checksum %s", len(units), sum)
	return &Emitted{Checksum: sum, Index: iw.Index()}, nil
}

// ReadImage decodes every class of an image, reading stripped units and
// units bound to the shared pool as the header and entries say. The shared
// pool is nil when the image has none.
func ReadImage(img *image.Image) ([]*classfile.Class, *classfile.Pool, error) {
	var shared *classfile.Pool
	if e, ok := img.SharedPool(); ok {
		p, err := classfile.ParsePool(e.Data, true)
		if err != nil {
			return nil, nil, fmt.Errorf("entry %s: %w", e.Name, err)
		}
		shared = p
	}
	opts := classfile.ReadOptions{StripNames: img.Header.Stripped(), Pool: shared}
	var classes []*classfile.Class
	for _, e := range img.Entries {
		if e.Kind != image.EntryClass {
			continue
		}
		c, err := classfile.Parse(e.Data, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("entry %s: %w", e.Name, err)
		}
		if c.Name != e.Name {
			return nil, nil, fmt.Errorf("entry %s holds class %s", e.Name, c.Name)
		}
		classes = append(classes, c)
	}
	return classes, shared, nil
}

package image

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

const (
	indexVersion     = 1
	indexHeaderSize  = 8
	indexFanoutSize  = 256 * 4
	indexRowSize     = sha256.Size + 1 + 8 + 4
	indexTrailerSize = 2 * sha256.Size
)

var indexMagic = [4]byte{0xff, 'R', 'I', 'x'}

// IndexEntry locates one entry inside an image by name.
type IndexEntry struct {
	Name   string
	Kind   EntryKind
	Offset uint64 // of the entry header, from the start of the image
	Size   uint32 // decoded size
}

type indexRow struct {
	IndexEntry
	key [sha256.Size]byte
}

func nameKey(name string) [sha256.Size]byte {
	return sha256.Sum256([]byte(name))
}

func sortedRows(entries []IndexEntry) ([]indexRow, error) {
	rows := make([]indexRow, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate index name %q", e.Name)
		}
		seen[e.Name] = true
		rows[i] = indexRow{IndexEntry: e, key: nameKey(e.Name)}
	}
	sort.Slice(rows, func(i, j int) bool {
		return bytes.Compare(rows[i].key[:], rows[j].key[:]) < 0
	})
	return rows, nil
}

// WriteIndex writes a name index for an image with the given checksum and
// returns the index checksum.
//
// Layout: magic, version, 256-entry fan-out over the first byte of each
// name's SHA-256, fixed rows (name hash, kind, offset, size) sorted by hash,
// names in row order, image checksum, index checksum.
func WriteIndex(w io.Writer, entries []IndexEntry, imageChecksum string) (string, error) {
	rows, err := sortedRows(entries)
	if err != nil {
		return "", err
	}
	imageSum, err := hex.DecodeString(imageChecksum)
	if err != nil || len(imageSum) != sha256.Size {
		return "", fmt.Errorf("image checksum %q is not a SHA-256 hex digest", imageChecksum)
	}

	var buf bytes.Buffer
	buf.Write(indexMagic[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(indexVersion))

	var fanout [256]uint32
	for _, r := range rows {
		fanout[r.key[0]]++
	}
	var total uint32
	for i := range fanout {
		total += fanout[i]
		_ = binary.Write(&buf, binary.BigEndian, total)
	}
	for _, r := range rows {
		buf.Write(r.key[:])
		buf.WriteByte(byte(r.Kind))
		_ = binary.Write(&buf, binary.BigEndian, r.Offset)
		_ = binary.Write(&buf, binary.BigEndian, r.Size)
	}
	for _, r := range rows {
		if len(r.Name) > 0xffff {
			return "", fmt.Errorf("index name too long: %d bytes", len(r.Name))
		}
		_ = binary.Write(&buf, binary.BigEndian, uint16(len(r.Name)))
		buf.WriteString(r.Name)
	}
	buf.Write(imageSum)
	sum := sha256.Sum256(buf.Bytes())
	buf.Write(sum[:])

	if _, err := w.Write(buf.Bytes()); err != nil {
		return "", fmt.Errorf("write image index: %w", err)
	}
	return hex.EncodeToString(sum[:]), nil
}

// Index is a decoded image index.
type Index struct {
	ImageChecksum string
	fanout        [256]uint32
	rows          []indexRow
}

// ReadIndex parses and verifies an index written by WriteIndex.
func ReadIndex(data []byte) (*Index, error) {
	if len(data) < indexHeaderSize+indexFanoutSize+indexTrailerSize {
		return nil, fmt.Errorf("image index too short: %d", len(data))
	}
	payload := data[:len(data)-sha256.Size]
	sum := sha256.Sum256(payload)
	if !bytes.Equal(sum[:], data[len(payload):]) {
		return nil, fmt.Errorf("image index checksum mismatch")
	}
	if !bytes.Equal(payload[:4], indexMagic[:]) {
		return nil, fmt.Errorf("invalid image index magic %q", payload[:4])
	}
	if v := binary.BigEndian.Uint32(payload[4:8]); v != indexVersion {
		return nil, fmt.Errorf("unsupported image index version %d", v)
	}

	idx := &Index{}
	off := indexHeaderSize
	var prev uint32
	for i := range idx.fanout {
		idx.fanout[i] = binary.BigEndian.Uint32(payload[off:])
		if idx.fanout[i] < prev {
			return nil, fmt.Errorf("image index fan-out not monotonic at %d", i)
		}
		prev = idx.fanout[i]
		off += 4
	}
	n := int(idx.fanout[255])
	body := payload[:len(payload)-sha256.Size]
	if len(body) < off+n*indexRowSize {
		return nil, fmt.Errorf("image index truncated: %d rows declared", n)
	}
	idx.rows = make([]indexRow, n)
	for i := range idx.rows {
		r := &idx.rows[i]
		copy(r.key[:], body[off:])
		off += sha256.Size
		r.Kind = EntryKind(body[off])
		off++
		r.Offset = binary.BigEndian.Uint64(body[off:])
		off += 8
		r.Size = binary.BigEndian.Uint32(body[off:])
		off += 4
	}
	for i := range idx.rows {
		if len(body) < off+2 {
			return nil, fmt.Errorf("image index names truncated")
		}
		l := int(binary.BigEndian.Uint16(body[off:]))
		off += 2
		if len(body) < off+l {
			return nil, fmt.Errorf("image index names truncated")
		}
		idx.rows[i].Name = string(body[off : off+l])
		off += l
		if nameKey(idx.rows[i].Name) != idx.rows[i].key {
			return nil, fmt.Errorf("image index row %d: name does not match its hash", i)
		}
	}
	if off != len(body) {
		return nil, fmt.Errorf("image index has %d trailing bytes", len(body)-off)
	}
	idx.ImageChecksum = hex.EncodeToString(payload[len(body):])
	return idx, nil
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	return len(idx.rows)
}

// Lookup finds the entry stored under name.
func (idx *Index) Lookup(name string) (IndexEntry, bool) {
	key := nameKey(name)
	lo := 0
	if key[0] > 0 {
		lo = int(idx.fanout[key[0]-1])
	}
	hi := int(idx.fanout[key[0]])
	bucket := idx.rows[lo:hi]
	i := sort.Search(len(bucket), func(i int) bool {
		return bytes.Compare(bucket[i].key[:], key[:]) >= 0
	})
	if i < len(bucket) && bucket[i].key == key {
		return bucket[i].IndexEntry, true
	}
	return IndexEntry{}, false
}

// Entries returns every indexed entry in hash order.
func (idx *Index) Entries() []IndexEntry {
	out := make([]IndexEntry, len(idx.rows))
	for i, r := range idx.rows {
		out[i] = r.IndexEntry
	}
	return out
}

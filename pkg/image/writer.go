package image

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

type countedWriter struct {
	w io.Writer
	n uint64
}

func (cw *countedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

// Writer writes an image stream. The trailer checksum is SHA-256 over all
// bytes preceding the trailer.
type Writer struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *countedWriter
	flags    uint32
	expected uint32
	written  uint32
	finished bool
	index    []IndexEntry
}

// NewWriter writes the header for numEntries entries and returns a writer
// for them.
func NewWriter(out io.Writer, numEntries uint32, flags uint32) (*Writer, error) {
	hasher := sha256.New()
	counter := &countedWriter{w: out}
	w := &Writer{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		flags:    flags,
		expected: numEntries,
	}
	header := Header{Version: supportedVersion, NumEntries: numEntries, Flags: flags}
	if _, err := w.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write image header: %w", err)
	}
	return w, nil
}

// WriteEntry appends one entry.
func (w *Writer) WriteEntry(kind EntryKind, name string, data []byte) error {
	if w.finished {
		return fmt.Errorf("image writer already finished")
	}
	if w.written >= w.expected {
		return fmt.Errorf("image entry count exceeded: expected %d", w.expected)
	}
	stored := data
	if w.flags&FlagCompressed != 0 {
		var err error
		if stored, err = compressZstd(data); err != nil {
			return fmt.Errorf("compress entry %s: %w", name, err)
		}
	}
	header, err := encodeEntryHeader(kind, name, len(stored))
	if err != nil {
		return err
	}
	offset := w.counter.n
	if _, err := w.hashedW.Write(header); err != nil {
		return fmt.Errorf("write entry header %s: %w", name, err)
	}
	if _, err := w.hashedW.Write(stored); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	w.index = append(w.index, IndexEntry{Name: name, Kind: kind, Offset: offset, Size: uint32(len(data))})
	w.written++
	return nil
}

// Finish validates the entry count, writes the checksum trailer and returns
// it as a hex digest.
func (w *Writer) Finish() (string, error) {
	if w.finished {
		return "", fmt.Errorf("image writer already finished")
	}
	if w.written != w.expected {
		return "", fmt.Errorf("image entry count mismatch: wrote %d, expected %d", w.written, w.expected)
	}
	sum := w.hasher.Sum(nil)
	if _, err := w.out.Write(sum); err != nil {
		return "", fmt.Errorf("write image trailer checksum: %w", err)
	}
	w.finished = true
	return hex.EncodeToString(sum), nil
}

// Index returns the index rows of the entries written so far.
func (w *Writer) Index() []IndexEntry {
	return append([]IndexEntry(nil), w.index...)
}

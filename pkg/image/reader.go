package image

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Entry is one decoded image entry.
type Entry struct {
	Kind   EntryKind
	Name   string
	Offset uint64
	Data   []byte
}

// Image is the decoded content of an image file.
type Image struct {
	Header   Header
	Entries  []Entry
	Checksum string
}

// Read parses an image, verifies its trailer checksum, and returns the
// decoded entries.
func Read(data []byte) (*Image, error) {
	if len(data) < headerSize+sha256.Size {
		return nil, fmt.Errorf("image too short: %d", len(data))
	}

	payload := data[:len(data)-sha256.Size]
	trailer := data[len(data)-sha256.Size:]

	sum := sha256.Sum256(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("image checksum mismatch")
	}

	header, err := UnmarshalHeader(payload[:headerSize])
	if err != nil {
		return nil, err
	}

	offset := headerSize
	entries := make([]Entry, 0, header.NumEntries)
	pools := 0
	for i := uint32(0); i < header.NumEntries; i++ {
		kind, name, stored, n, err := decodeEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		start := offset
		offset += n
		if uint64(offset)+uint64(stored) > uint64(len(payload)) {
			return nil, fmt.Errorf("entry %d (%s): payload truncated", i, name)
		}
		raw := payload[offset : offset+int(stored)]
		offset += int(stored)

		if header.Compressed() {
			if raw, err = decompressZstd(raw); err != nil {
				return nil, fmt.Errorf("entry %d (%s): decompress: %w", i, name, err)
			}
		} else {
			raw = append([]byte(nil), raw...)
		}
		switch kind {
		case EntryClass:
		case EntrySharedPool:
			if pools++; pools > 1 {
				return nil, fmt.Errorf("entry %d (%s): second shared pool", i, name)
			}
		default:
			return nil, fmt.Errorf("entry %d (%s): unknown kind %d", i, name, kind)
		}
		entries = append(entries, Entry{Kind: kind, Name: name, Offset: uint64(start), Data: raw})
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("image has trailing undecoded bytes: %d", len(payload)-offset)
	}

	return &Image{
		Header:   *header,
		Entries:  entries,
		Checksum: hex.EncodeToString(trailer),
	}, nil
}

// SharedPool returns the shared pool entry, if the image has one.
func (img *Image) SharedPool() (Entry, bool) {
	for _, e := range img.Entries {
		if e.Kind == EntrySharedPool {
			return e, true
		}
	}
	return Entry{}, false
}

// ReadEntryAt decodes the single entry an index row points at, without
// verifying the whole image.
func ReadEntryAt(data []byte, at IndexEntry) (Entry, error) {
	header, err := UnmarshalHeader(data)
	if err != nil {
		return Entry{}, err
	}
	if at.Offset < headerSize || at.Offset >= uint64(len(data)) {
		return Entry{}, fmt.Errorf("entry %s: offset %d out of range", at.Name, at.Offset)
	}
	kind, name, stored, n, err := decodeEntryHeader(data[at.Offset:])
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", at.Name, err)
	}
	if name != at.Name || kind != at.Kind {
		return Entry{}, fmt.Errorf("entry at offset %d is %s %s, index says %s %s", at.Offset, kind, name, at.Kind, at.Name)
	}
	start := at.Offset + uint64(n)
	if start+uint64(stored) > uint64(len(data)) {
		return Entry{}, fmt.Errorf("entry %s: payload truncated", name)
	}
	raw := data[start : start+uint64(stored)]
	if header.Compressed() {
		if raw, err = decompressZstd(raw); err != nil {
			return Entry{}, fmt.Errorf("entry %s: decompress: %w", name, err)
		}
	} else {
		raw = append([]byte(nil), raw...)
	}
	if uint32(len(raw)) != at.Size {
		return Entry{}, fmt.Errorf("entry %s: size mismatch index=%d decoded=%d", name, at.Size, len(raw))
	}
	return Entry{Kind: kind, Name: name, Offset: at.Offset, Data: raw}, nil
}

// Find returns the entry named name.
func (img *Image) Find(name string) (Entry, bool) {
	for _, e := range img.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Package image stores linked class units in a single checksummed file.
package image

import (
	"encoding/binary"
	"fmt"
)

const (
	headerSize       = 16
	supportedVersion = 1
)

var magic = [4]byte{'R', 'O', 'M', 'I'}

// IsImage reports whether data starts with the image magic.
func IsImage(data []byte) bool {
	return len(data) >= len(magic) && string(data[:len(magic)]) == string(magic[:])
}

// Header flags.
const (
	// FlagCompressed marks entries stored zstd-compressed.
	FlagCompressed uint32 = 1 << iota
	// FlagStripped marks class units written with attribute kinds in place
	// of attribute names.
	FlagStripped
)

// EntryKind tells what an entry holds.
type EntryKind uint8

const (
	EntryClass EntryKind = 1
	// EntrySharedPool is a constant pool that class entries written with an
	// external pool refer into. An image holds at most one.
	EntrySharedPool EntryKind = 2
)

func (k EntryKind) String() string {
	switch k {
	case EntryClass:
		return "class"
	case EntrySharedPool:
		return "pool"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Header is the fixed-size image header.
//
// Bytes:
//   - 0..3:   "ROMI"
//   - 4..7:   version (big-endian)
//   - 8..11:  number of entries (big-endian)
//   - 12..15: flags (big-endian)
type Header struct {
	Version    uint32
	NumEntries uint32
	Flags      uint32
}

// Marshal serializes the header.
func (h Header) Marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[:4], magic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.NumEntries)
	binary.BigEndian.PutUint32(buf[12:16], h.Flags)
	return buf
}

// UnmarshalHeader parses an image header.
func UnmarshalHeader(data []byte) (*Header, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("image header too short: got %d bytes", len(data))
	}
	if string(data[:4]) != string(magic[:]) {
		return nil, fmt.Errorf("invalid image magic %q", data[:4])
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != supportedVersion {
		return nil, fmt.Errorf("unsupported image version %d", version)
	}
	return &Header{
		Version:    version,
		NumEntries: binary.BigEndian.Uint32(data[8:12]),
		Flags:      binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// Compressed reports whether entries are zstd-compressed.
func (h Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// Stripped reports whether class entries carry attribute kinds instead of
// names.
func (h Header) Stripped() bool { return h.Flags&FlagStripped != 0 }

// entry header: kind u8, name length u16, name, stored length u32
func encodeEntryHeader(kind EntryKind, name string, stored int) ([]byte, error) {
	if name == "" || len(name) > 0xffff {
		return nil, fmt.Errorf("entry name length %d out of range", len(name))
	}
	if uint64(stored) > 0xffffffff {
		return nil, fmt.Errorf("entry %s too large: %d bytes", name, stored)
	}
	out := make([]byte, 0, 7+len(name))
	out = append(out, byte(kind))
	out = binary.BigEndian.AppendUint16(out, uint16(len(name)))
	out = append(out, name...)
	out = binary.BigEndian.AppendUint32(out, uint32(stored))
	return out, nil
}

func decodeEntryHeader(data []byte) (EntryKind, string, uint32, int, error) {
	if len(data) < 3 {
		return 0, "", 0, 0, fmt.Errorf("entry header truncated")
	}
	kind := EntryKind(data[0])
	n := int(binary.BigEndian.Uint16(data[1:3]))
	if len(data) < 3+n+4 {
		return 0, "", 0, 0, fmt.Errorf("entry header truncated")
	}
	name := string(data[3 : 3+n])
	stored := binary.BigEndian.Uint32(data[3+n:])
	return kind, name, stored, 3 + n + 4, nil
}

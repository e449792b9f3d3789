package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// decoder walks a big-endian class-file byte slice. Every accessor checks
// bounds and reports truncation with the failing offset.
type decoder struct {
	data []byte
	off  int
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) need(n int) error {
	if n < 0 || d.remaining() < n {
		return fmt.Errorf("truncated at offset %d: need %d bytes, have %d", d.off, n, d.remaining())
	}
	return nil
}

func (d *decoder) u1() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.data[d.off]
	d.off++
	return v, nil
}

func (d *decoder) u2() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.data[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) u4() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u8() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) ref() (Ref, error) {
	v, err := d.u2()
	return Ref(v), err
}

// bytes returns a copy of the next n bytes.
func (d *decoder) bytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.data[d.off:d.off+n])
	d.off += n
	return out, nil
}

// encoder accumulates big-endian class-file bytes.
type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u1(v uint8) {
	e.buf.WriteByte(v)
}

func (e *encoder) u2(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) u4(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) u8(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) ref(r Ref) {
	e.u2(uint16(r))
}

func (e *encoder) raw(p []byte) {
	e.buf.Write(p)
}

func (e *encoder) len() int {
	return e.buf.Len()
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

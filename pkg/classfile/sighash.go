package classfile

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// SignatureHash derives the 64-bit member identity used for override and
// shadowing checks. It is a BLAKE2b-64 digest of name and descriptor.
func SignatureHash(name, descriptor string) uint64 {
	h, err := blake2b.New(8, nil)
	if err != nil {
		// Only reachable with an invalid digest size or key.
		panic(err)
	}
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(descriptor))
	return binary.BigEndian.Uint64(h.Sum(nil))
}

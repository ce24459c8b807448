// Package checksum provides payload checksums for checkpoint parts and the
// _last_checkpoint pointer file.
//
// XXH3-64 is used throughout: it is fast, has excellent dispersion for the
// short JSON payloads written here, and a stable cross-language definition,
// so checksums written by this implementation can be verified by others.
//
// Reference: https://github.com/Cyan4973/xxHash/blob/dev/doc/xxhash_spec.md
package checksum

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Size is the size in bytes of an encoded checksum trailer.
const Size = 8

// Sum64 computes the XXH3-64 hash of data.
func Sum64(data []byte) uint64 {
	return xxh3.Hash(data)
}

// Hex returns the XXH3-64 hash of data as a fixed-width lowercase hex string.
func Hex(data []byte) string {
	var buf [Size]byte
	binary.BigEndian.PutUint64(buf[:], xxh3.Hash(data))
	return hex.EncodeToString(buf[:])
}

// Append appends the little-endian XXH3-64 trailer of data to dst.
// The trailer covers exactly the bytes passed in, typically the compressed
// payload of a checkpoint part.
func Append(dst, data []byte) []byte {
	var buf [Size]byte
	binary.LittleEndian.PutUint64(buf[:], xxh3.Hash(data))
	return append(dst, buf[:]...)
}

// Verify checks that trailer (8 bytes, little-endian) matches the XXH3-64
// hash of data. It returns false for a short trailer.
func Verify(data, trailer []byte) bool {
	if len(trailer) < Size {
		return false
	}
	return binary.LittleEndian.Uint64(trailer[:Size]) == xxh3.Hash(data)
}

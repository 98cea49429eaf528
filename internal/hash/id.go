package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Digest computes the xxHash64 of data, used by the frame trailer's
// integrity check.
func Digest(data []byte) uint64 {
	return xxhash.Sum64(data)
}

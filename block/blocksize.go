// Package block implements the per-block pipeline: the forward
// filter chain + optional split + codec that runs once per block, and
// its dual on the way back.
package block

import "github.com/blosc2/b2go/format"

// AutoSize picks a blocksize from typesize, clevel, and the total
// chunk size when the caller hasn't configured one explicitly. Higher
// clevel biases toward smaller blocks (more, slower-but-tighter codec
// calls); the result is always clamped to [typesize, format.MaxBlockSize]
// and, when any bit-level filter is in play, rounded down to a
// multiple of 8*typesize.
func AutoSize(typesize, clevel int, nbytes int64, bitLevelFilter bool) int {
	if typesize < 1 {
		typesize = 1
	}

	target := int64(128 * 1024) // a reasonable default quantum
	switch {
	case clevel >= 8:
		target = 32 * 1024
	case clevel >= 5:
		target = 64 * 1024
	case clevel >= 1:
		target = 128 * 1024
	default:
		target = 256 * 1024
	}

	// Never ask for more blocks than bytes, and never exceed the chunk.
	if target > nbytes && nbytes > 0 {
		target = nbytes
	}

	size := int(target)
	if size < typesize {
		size = typesize
	}
	if size > format.MaxBlockSize {
		size = format.MaxBlockSize
	}

	if bitLevelFilter {
		quantum := 8 * typesize
		size -= size % quantum
		if size == 0 {
			size = quantum
		}
	}

	return size
}

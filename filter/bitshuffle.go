package filter

import (
	"fmt"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// bitShuffleFilter is the bit-granularity generalization of shuffleFilter:
// instead of grouping same byte-lanes together, it groups same bit-planes
// together. Only the leading run of the block that is a multiple of
// 8*typesize is bit-transposed; any trailing remainder passes through
// untouched via a scalar trailing-remainder path.
type bitShuffleFilter struct{}

func (bitShuffleFilter) ID() format.FilterID { return format.FilterBitShuffle }

func (bitShuffleFilter) Forward(dst, src []byte, typesize int) error {
	if err := checkBitshuffleLen(dst, src, typesize); err != nil {
		return err
	}

	quantum := 8 * typesize
	w := len(src) - (len(src) % quantum)

	bitTranspose(dst[:w], src[:w])
	copy(dst[w:], src[w:]) // scalar remainder path

	return nil
}

func (bitShuffleFilter) Inverse(dst, src []byte, typesize int) error {
	if err := checkBitshuffleLen(dst, src, typesize); err != nil {
		return err
	}

	quantum := 8 * typesize
	w := len(src) - (len(src) % quantum)

	bitTransposeInverse(dst[:w], src[:w])
	copy(dst[w:], src[w:])

	return nil
}

func checkBitshuffleLen(dst, src []byte, typesize int) error {
	if typesize < 1 {
		return errs.New(errs.InvalidParam, "bitshuffle: typesize must be >= 1")
	}
	if len(dst) != len(src) {
		return errs.New(errs.FilterPipeline, fmt.Sprintf("bitshuffle: dst/src length mismatch (%d != %d)", len(dst), len(src)))
	}

	return nil
}

// bitTranspose transposes an 8w-bit-plane matrix: w bytes (rows, 8 bits
// each) become 8 bit-plane rows of w/8 bytes each, concatenated. w must
// be a multiple of 8.
func bitTranspose(dst, src []byte) {
	w := len(src)
	if w == 0 {
		return
	}

	for i := range dst {
		dst[i] = 0
	}

	rowBytes := w / 8
	for r := 0; r < w; r++ {
		b := src[r]
		byteIdx := r / 8
		bitIdx := uint(r % 8)
		for c := 0; c < 8; c++ {
			bit := (b >> uint(c)) & 1
			dst[c*rowBytes+byteIdx] |= bit << bitIdx
		}
	}
}

// bitTransposeInverse undoes bitTranspose.
func bitTransposeInverse(dst, src []byte) {
	w := len(src)
	if w == 0 {
		return
	}

	rowBytes := w / 8
	for r := 0; r < w; r++ {
		byteIdx := r / 8
		bitIdx := uint(r % 8)
		var out byte
		for c := 0; c < 8; c++ {
			bit := (src[c*rowBytes+byteIdx] >> bitIdx) & 1
			out |= bit << uint(c)
		}
		dst[r] = out
	}
}

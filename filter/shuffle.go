package filter

import (
	"fmt"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// shuffleFilter reorders bytes so that all byte-lane-0 bytes of every
// element come first, then all byte-lane-1 bytes, and so on. This
// typically clusters similar-magnitude bytes together, which helps the
// downstream codec.
type shuffleFilter struct{}

func (shuffleFilter) ID() format.FilterID { return format.FilterShuffle }

func (shuffleFilter) Forward(dst, src []byte, typesize int) error {
	if err := checkShuffleLen(dst, src, typesize); err != nil {
		return err
	}

	n := len(src) / typesize
	for lane := 0; lane < typesize; lane++ {
		out := dst[lane*n : (lane+1)*n]
		for i := 0; i < n; i++ {
			out[i] = src[i*typesize+lane]
		}
	}

	return nil
}

func (shuffleFilter) Inverse(dst, src []byte, typesize int) error {
	if err := checkShuffleLen(dst, src, typesize); err != nil {
		return err
	}

	n := len(src) / typesize
	for lane := 0; lane < typesize; lane++ {
		in := src[lane*n : (lane+1)*n]
		for i := 0; i < n; i++ {
			dst[i*typesize+lane] = in[i]
		}
	}

	return nil
}

func checkShuffleLen(dst, src []byte, typesize int) error {
	if typesize < 1 {
		return errs.New(errs.InvalidParam, "shuffle: typesize must be >= 1")
	}
	if len(src)%typesize != 0 {
		return errs.New(errs.FilterPipeline, fmt.Sprintf("shuffle: block length %d not a multiple of typesize %d", len(src), typesize))
	}
	if len(dst) != len(src) {
		return errs.New(errs.FilterPipeline, "shuffle: dst/src length mismatch")
	}

	return nil
}

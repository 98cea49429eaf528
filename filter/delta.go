package filter

import (
	"fmt"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// deltaFilter replaces each typesize-byte element with its difference
// from the previous element (the first element's "previous" is the
// zero element), using little-endian multi-byte borrow/carry
// arithmetic modulo 2^(8*typesize) so any typesize works.
type deltaFilter struct{}

func (deltaFilter) ID() format.FilterID { return format.FilterDelta }

func (deltaFilter) Forward(dst, src []byte, typesize int) error {
	if err := checkDeltaLen(dst, src, typesize); err != nil {
		return err
	}

	n := len(src) / typesize
	prev := make([]byte, typesize) // zero element
	for i := 0; i < n; i++ {
		cur := src[i*typesize : (i+1)*typesize]
		subLE(dst[i*typesize:(i+1)*typesize], cur, prev)
		prev = cur
	}

	return nil
}

func (deltaFilter) Inverse(dst, src []byte, typesize int) error {
	if err := checkDeltaLen(dst, src, typesize); err != nil {
		return err
	}

	n := len(src) / typesize
	acc := make([]byte, typesize) // running value, starts at zero
	for i := 0; i < n; i++ {
		out := dst[i*typesize : (i+1)*typesize]
		addLE(out, acc, src[i*typesize:(i+1)*typesize])
		copy(acc, out)
	}

	return nil
}

func checkDeltaLen(dst, src []byte, typesize int) error {
	if typesize < 1 {
		return errs.New(errs.InvalidParam, "delta: typesize must be >= 1")
	}
	if len(src)%typesize != 0 {
		return errs.New(errs.FilterPipeline, fmt.Sprintf("delta: block length %d not a multiple of typesize %d", len(src), typesize))
	}
	if len(dst) != len(src) {
		return errs.New(errs.FilterPipeline, "delta: dst/src length mismatch")
	}

	return nil
}

// subLE computes dst = a - b as little-endian multi-byte integers,
// wrapping modulo 2^(8*len(a)).
func subLE(dst, a, b []byte) {
	var borrow int
	for i := range a {
		d := int(a[i]) - int(b[i]) - borrow
		if d < 0 {
			d += 256
			borrow = 1
		} else {
			borrow = 0
		}
		dst[i] = byte(d)
	}
}

// addLE computes dst = a + b as little-endian multi-byte integers,
// wrapping modulo 2^(8*len(a)).
func addLE(dst, a, b []byte) {
	var carry int
	for i := range a {
		s := int(a[i]) + int(b[i]) + carry
		dst[i] = byte(s & 0xff)
		carry = s >> 8
	}
}

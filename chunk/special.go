package chunk

import (
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// EncodeSpecial produces a special chunk: 32 bytes for ZERO, NAN, and
// UNINIT, or 32+typesize for VALUE, with no offset table and
// no block payloads. value is only consulted for SpecialValue and must
// be exactly typesize bytes long.
func EncodeSpecial(kind format.SpecialKind, nbytes int64, typesize int, value []byte) ([]byte, error) {
	if typesize < 1 || typesize > format.MaxTypesize {
		return nil, errs.New(errs.InvalidParam, "typesize out of range")
	}
	if nbytes < 0 || nbytes > format.MaxBufferSize {
		return nil, errs.New(errs.InvalidParam, "nbytes out of range")
	}
	if kind == format.SpecialNaN && typesize != 4 && typesize != 8 {
		return nil, errs.New(errs.InvalidParam, "NaN special chunks require typesize 4 or 8")
	}
	if kind == format.SpecialValue && len(value) != typesize {
		return nil, errs.New(errs.InvalidParam, "value must be exactly typesize bytes")
	}

	h := Header{
		Version:  format.ChunkFormatVersion,
		Flags:    format.FlagMemcpyBit,
		Typesize: uint8(typesize),
		Nbytes:   int32(nbytes),
		Special:  kind,
	}

	extra := 0
	if kind == format.SpecialValue {
		extra = typesize
	}
	h.Cbytes = int32(format.ChunkHeaderLen + extra)

	out := h.Encode()
	if kind == format.SpecialValue {
		out = append(out, value...)
	}

	return out, nil
}

// DecodeSpecial synthesizes the nbytes this special chunk represents
// into dest, which must be at least h.Nbytes long. chunkBytes is the
// full encoded chunk (header plus the trailing value byte run for
// SpecialValue).
func DecodeSpecial(h Header, chunkBytes []byte, dest []byte) error {
	n := int(h.Nbytes)
	if len(dest) < n {
		return errs.New(errs.WriteBufferTooSmall, "destination shorter than special chunk's nbytes")
	}

	switch h.Special {
	case format.SpecialZero, format.SpecialUninit:
		if h.Special == format.SpecialZero {
			clear(dest[:n])
		}
		// UNINIT: destination is left exactly as the caller provided it.
		return nil
	case format.SpecialNaN:
		return fillNaN(dest[:n], int(h.Typesize))
	case format.SpecialValue:
		ts := int(h.Typesize)
		if len(chunkBytes) < format.ChunkHeaderLen+ts {
			return errs.New(errs.InvalidHeader, "VALUE special chunk missing its value bytes")
		}
		value := chunkBytes[format.ChunkHeaderLen : format.ChunkHeaderLen+ts]
		for off := 0; off+ts <= n; off += ts {
			copy(dest[off:off+ts], value)
		}

		return nil
	default:
		return errs.New(errs.RunLength, "unknown special chunk kind")
	}
}

func fillNaN(dest []byte, typesize int) error {
	switch typesize {
	case 4:
		// IEEE-754 float32 NaN: 0x7fc00000, little-endian bytes.
		pattern := [4]byte{0x00, 0x00, 0xc0, 0x7f}
		for off := 0; off+4 <= len(dest); off += 4 {
			copy(dest[off:off+4], pattern[:])
		}
	case 8:
		// IEEE-754 float64 NaN: 0x7ff8000000000000, little-endian bytes.
		pattern := [8]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf8, 0x7f}
		for off := 0; off+8 <= len(dest); off += 8 {
			copy(dest[off:off+8], pattern[:])
		}
	default:
		return errs.New(errs.InvalidParam, "NaN special chunks require typesize 4 or 8")
	}

	return nil
}

// IsSpecial reports whether h describes a special (payload-free) chunk.
func IsSpecial(h Header) bool { return h.Special != format.SpecialNone }

// Zeros builds a chunk representing nbytes of zero bytes.
func Zeros(nbytes int64, typesize int) ([]byte, error) {
	return EncodeSpecial(format.SpecialZero, nbytes, typesize, nil)
}

// NaNs builds a chunk representing nbytes of NaN values; typesize must
// be 4 or 8.
func NaNs(nbytes int64, typesize int) ([]byte, error) {
	return EncodeSpecial(format.SpecialNaN, nbytes, typesize, nil)
}

// Uninit builds a chunk representing nbytes of uninitialized content:
// decoding it leaves the destination buffer untouched.
func Uninit(nbytes int64, typesize int) ([]byte, error) {
	return EncodeSpecial(format.SpecialUninit, nbytes, typesize, nil)
}

// RepeatVal builds a chunk representing nbytes filled with one
// repeated element of exactly typesize bytes.
func RepeatVal(nbytes int64, value []byte) ([]byte, error) {
	return EncodeSpecial(format.SpecialValue, nbytes, len(value), value)
}

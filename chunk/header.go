// Package chunk implements the self-describing compressed chunk
// format: a 32-byte header, a per-block offset table, and per-block
// payloads, plus the four special (constant-size) chunk kinds that
// skip both entirely.
package chunk

import (
	"encoding/binary"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Header is the 32-byte fixed chunk header. Layout on the wire:
//
//	0  version            (1B)
//	1  codecVersion        (1B)
//	2  flags               (1B)  shuffle/memcpy/bitshuffle/delta bits
//	3  typesize            (1B)
//	4  nbytes              (int32 LE)
//	8  blocksize           (int32 LE)
//	12 cbytes              (int32 LE)
//	16 filterCodes         (6B)
//	22 filterMetas         (6B)
//	28 b2Flags             (1B)  bigendian + split mode, format.PackSplitMode
//	29 codecID             (1B)
//	30 special             (1B)  format.SpecialKind, SpecialNone for regular chunks
//	31 reserved            (1B)
type Header struct {
	Version      uint8
	CodecVersion uint8
	Flags        uint8
	Typesize     uint8
	Nbytes       int32
	Blocksize    int32
	Cbytes       int32
	FilterCodes  [format.MaxFiltersInPipeline]format.FilterID
	FilterMetas  [format.MaxFiltersInPipeline]uint8
	B2Flags      uint8
	CodecID      format.CodecID
	Special      format.SpecialKind
}

func (h Header) Memcpy() bool { return h.Flags&format.FlagMemcpyBit != 0 }

func (h Header) BigEndian() bool { return h.B2Flags&format.B2FlagBigEndian != 0 }

func (h Header) Split() format.SplitMode { return format.UnpackSplitMode(h.B2Flags) }

// NBlocks returns the number of blocks implied by Nbytes/Blocksize, the
// last one possibly shorter.
func (h Header) NBlocks() int {
	if h.Blocksize <= 0 {
		return 0
	}

	return int((int64(h.Nbytes) + int64(h.Blocksize) - 1) / int64(h.Blocksize))
}

// BlockLen returns the uncompressed length of block i: Blocksize for
// every block but the last, which may be shorter.
func (h Header) BlockLen(i int) int {
	n := h.NBlocks()
	if i < n-1 {
		return int(h.Blocksize)
	}

	last := int(h.Nbytes) - (n-1)*int(h.Blocksize)
	if last < 0 {
		last = 0
	}

	return last
}

// Encode serializes h into exactly format.ChunkHeaderLen bytes.
func (h Header) Encode() []byte {
	b := make([]byte, format.ChunkHeaderLen)
	b[0] = h.Version
	b[1] = h.CodecVersion
	b[2] = h.Flags
	b[3] = h.Typesize
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.Nbytes))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.Blocksize))
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.Cbytes))
	for i := 0; i < format.MaxFiltersInPipeline; i++ {
		b[16+i] = uint8(h.FilterCodes[i])
		b[22+i] = h.FilterMetas[i]
	}
	b[28] = h.B2Flags
	b[29] = uint8(h.CodecID)
	b[30] = uint8(h.Special)
	// b[31] reserved, left zero

	return b
}

// DecodeHeader parses a chunk header from buf, accepting either the
// current 32-byte extended header or the legacy 16-byte minimum header
// recognized for backward compatibility; the legacy form carries
// no filter arrays, codec id, or special-kind byte, so the filter and
// special-kind fields come back zeroed and the codec id is set to LZ4.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) >= format.ChunkHeaderLen {
		return decodeExtended(buf), nil
	}
	if len(buf) >= format.ChunkMinHeaderLen {
		return decodeLegacy(buf), nil
	}

	return Header{}, errs.New(errs.InvalidHeader, "chunk header shorter than the legacy minimum")
}

func decodeExtended(b []byte) Header {
	var h Header
	h.Version = b[0]
	h.CodecVersion = b[1]
	h.Flags = b[2]
	h.Typesize = b[3]
	h.Nbytes = int32(binary.LittleEndian.Uint32(b[4:8]))
	h.Blocksize = int32(binary.LittleEndian.Uint32(b[8:12]))
	h.Cbytes = int32(binary.LittleEndian.Uint32(b[12:16]))
	for i := 0; i < format.MaxFiltersInPipeline; i++ {
		h.FilterCodes[i] = format.FilterID(b[16+i])
		h.FilterMetas[i] = b[22+i]
	}
	h.B2Flags = b[28]
	h.CodecID = format.CodecID(b[29])
	h.Special = format.SpecialKind(b[30])

	return h
}

// decodeLegacy parses the pre-blosc2 16-byte header: version,
// versionlz, flags, typesize, nbytes, blocksize, cbytes (all the same
// field widths as the extended header's first 16 bytes).
func decodeLegacy(b []byte) Header {
	var h Header
	h.Version = b[0]
	h.CodecVersion = b[1]
	h.Flags = b[2]
	h.Typesize = b[3]
	h.Nbytes = int32(binary.LittleEndian.Uint32(b[4:8]))
	h.Blocksize = int32(binary.LittleEndian.Uint32(b[8:12]))
	h.Cbytes = int32(binary.LittleEndian.Uint32(b[12:16]))
	h.CodecID = format.CodecLZ4

	return h
}

// ValidateHeader checks internal header consistency: the compressed
// size recorded in the header must equal the chunk's total length, and
// typesize/blocksize must be sane.
func ValidateHeader(h Header, chunkLen int) error {
	if h.Typesize < 1 {
		return errs.New(errs.InvalidHeader, "typesize must be >= 1")
	}
	if int(h.Cbytes) != chunkLen {
		return errs.New(errs.InvalidHeader, "header cbytes does not match chunk length")
	}
	if h.Special == format.SpecialNone && h.Blocksize <= 0 {
		return errs.New(errs.InvalidHeader, "blocksize must be > 0 for a non-special chunk")
	}

	return nil
}

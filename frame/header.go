// Package frame implements the frame serialization layer: a
// contiguous byte layout ([header][chunks][trailer]) and a sparse
// directory layout (one file per chunk plus a small index file
// carrying the same header/trailer), both built on top of schunk's
// public chunk/meta/vlmeta accessors so neither storage shape needs
// access to schunk's private fields.
package frame

import (
	"encoding/binary"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

const headerLen = 72

// header is the fixed-size frame header: magic, format version,
// the schunk fields needed to reconstruct CParams/DParams, and the
// byte offset of the trailer (filled in once chunk payloads are
// written). A sparse frame's index file carries the identical header
// with NChunks payloads elided on disk (the chunks live in their own
// files instead).
type header struct {
	Typesize      uint8
	Codec         format.CodecID
	Clevel        uint8
	Split         format.SplitMode
	BackendID     format.BackendID
	Filters       [format.MaxFiltersInPipeline]format.FilterID
	FilterMetas   [format.MaxFiltersInPipeline]uint8
	ChunkSize     int64
	NChunks       int32
	NBytes        int64
	CBytes        int64
	TrailerOffset int64
}

func (h header) encode() []byte {
	b := make([]byte, headerLen)
	copy(b[0:16], format.FrameMagic)
	b[16] = format.FrameFormatVersion
	b[17] = h.Typesize
	b[18] = uint8(h.Codec)
	b[19] = h.Clevel
	b[20] = uint8(h.Split)
	b[21] = uint8(h.BackendID)
	for i := 0; i < format.MaxFiltersInPipeline; i++ {
		b[22+i] = uint8(h.Filters[i])
		b[28+i] = h.FilterMetas[i]
	}
	binary.LittleEndian.PutUint64(b[34:42], uint64(h.ChunkSize))
	binary.LittleEndian.PutUint32(b[42:46], uint32(h.NChunks))
	binary.LittleEndian.PutUint64(b[46:54], uint64(h.NBytes))
	binary.LittleEndian.PutUint64(b[54:62], uint64(h.CBytes))
	binary.LittleEndian.PutUint64(b[62:70], uint64(h.TrailerOffset))
	// b[70:72] reserved, left zero

	return b
}

func decodeHeader(b []byte) (header, error) {
	if len(b) < headerLen {
		return header{}, errs.New(errs.InvalidHeader, "frame header shorter than expected")
	}
	if string(b[0:16]) != format.FrameMagic {
		return header{}, errs.New(errs.InvalidHeader, "bad frame magic")
	}
	if b[16] != format.FrameFormatVersion && b[16] != 1 {
		return header{}, errs.New(errs.InvalidHeader, "unsupported frame format version")
	}

	var h header
	h.Typesize = b[17]
	h.Codec = format.CodecID(b[18])
	h.Clevel = b[19]
	h.Split = format.SplitMode(b[20])
	h.BackendID = format.BackendID(b[21])
	for i := 0; i < format.MaxFiltersInPipeline; i++ {
		h.Filters[i] = format.FilterID(b[22+i])
		h.FilterMetas[i] = b[28+i]
	}
	h.ChunkSize = int64(binary.LittleEndian.Uint64(b[34:42]))
	h.NChunks = int32(binary.LittleEndian.Uint32(b[42:46]))
	h.NBytes = int64(binary.LittleEndian.Uint64(b[46:54]))
	h.CBytes = int64(binary.LittleEndian.Uint64(b[54:62]))
	h.TrailerOffset = int64(binary.LittleEndian.Uint64(b[62:70]))

	return h, nil
}

func putUint64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

func getUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// activeFilters strips the format.FilterNone padding entries back down
// to a plain slice for chunk.CParams.
func activeFilters(filters [format.MaxFiltersInPipeline]format.FilterID) []format.FilterID {
	out := make([]format.FilterID, 0, format.MaxFiltersInPipeline)
	for _, f := range filters {
		if f != format.FilterNone {
			out = append(out, f)
		}
	}

	return out
}

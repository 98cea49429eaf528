package chunk

import (
	"context"
	"encoding/binary"

	"github.com/blosc2/b2go/block"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// PayloadSource fetches n bytes at absolute offset off from whatever
// backs a lazy chunk (frame buffer, file, mmap region).
type PayloadSource interface {
	ReadAt(off int64, n int) ([]byte, error)
}

// LazyChunk carries only the header and offset table of a
// frame-backed chunk: block payloads are fetched from src on demand,
// one getitem/decompress call at a time, instead of being
// materialized up front. base is the absolute offset of this chunk's
// header within src.
type LazyChunk struct {
	Header Header
	base   int64
	table  []byte // raw offset table bytes, ChunkHeaderLen relative
	src    PayloadSource
}

// NewLazyChunk parses the header and offset table starting at base in
// src, without reading any block payload.
func NewLazyChunk(src PayloadSource, base int64) (*LazyChunk, error) {
	hdr, err := src.ReadAt(base, format.ChunkHeaderLen)
	if err != nil {
		return nil, err
	}
	h, err := DecodeHeader(hdr)
	if err != nil {
		return nil, err
	}

	lc := &LazyChunk{Header: h, base: base, src: src}
	if IsSpecial(h) || h.Memcpy() {
		return lc, nil
	}

	tableLen := 4 * h.NBlocks()
	table, err := src.ReadAt(base+format.ChunkHeaderLen, tableLen)
	if err != nil {
		return nil, err
	}
	lc.table = table

	return lc, nil
}

func (lc *LazyChunk) blockOffset(i int) int32 {
	return int32(binary.LittleEndian.Uint32(lc.table[4*i:]))
}

// Decompress materializes the full chunk into dest, fetching only the
// block payloads it needs from the backing PayloadSource.
func (lc *LazyChunk) Decompress(ctx context.Context, dp DParams, dest []byte) (int, error) {
	h := lc.Header
	if len(dest) < int(h.Nbytes) {
		return 0, errs.New(errs.WriteBufferTooSmall, "destination shorter than chunk's nbytes")
	}

	if IsSpecial(h) {
		full, err := lc.fullChunkBytes()
		if err != nil {
			return 0, err
		}
		if err := DecodeSpecial(h, full, dest); err != nil {
			return 0, err
		}

		return int(h.Nbytes), nil
	}

	if h.Memcpy() {
		full, err := lc.fullChunkBytes()
		if err != nil {
			return 0, err
		}

		return Decompress(ctx, dp, full, dest)
	}

	cfg := block.Config{Filters: h.FilterCodes[:], Codec: h.CodecID, Typesize: int(h.Typesize), Split: h.Split()}

	for i := 0; i < h.NBlocks(); i++ {
		off := lc.blockOffset(i)
		if off < 0 {
			return 0, errs.New(errs.InvalidHeader, "special block offsets are not supported by lazy decompress")
		}

		lenBytes, err := lc.src.ReadAt(lc.base+int64(off), 4)
		if err != nil {
			return 0, err
		}
		n := int(binary.LittleEndian.Uint32(lenBytes))

		payload, err := lc.src.ReadAt(lc.base+int64(off)+4, n)
		if err != nil {
			return 0, err
		}

		outLen := h.BlockLen(i)
		decoded, err := block.Inverse(cfg, payload, outLen)
		if err != nil {
			return 0, err
		}

		start := i * int(h.Blocksize)
		if dp.Postfilter != nil {
			perr := dp.Postfilter(PostfilterParams{
				NBlock: i,
				Offset: start,
				Input:  decoded,
				Output: dest[start : start+outLen],
			})
			if perr != nil {
				return 0, errs.Wrap(errs.Postfilter, "postfilter callback", perr)
			}
			continue
		}
		copy(dest[start:start+outLen], decoded)
	}

	return int(h.Nbytes), nil
}

// GetItem decodes only the blocks intersecting the requested item
// range, reading only those blocks' payloads from the backing
// source.
func (lc *LazyChunk) GetItem(ctx context.Context, dp DParams, startItem, nItems int, dest []byte) error {
	h := lc.Header
	if IsSpecial(h) || h.Memcpy() {
		full, err := lc.fullChunkBytes()
		if err != nil {
			return err
		}

		return GetItem(ctx, dp, full, startItem, nItems, dest)
	}

	typesize := int(h.Typesize)
	startByte := startItem * typesize
	nBytes := nItems * typesize
	if len(dest) < nBytes {
		return errs.New(errs.WriteBufferTooSmall, "destination shorter than requested item range")
	}
	if startByte < 0 || startByte+nBytes > int(h.Nbytes) {
		return errs.New(errs.InvalidParam, "item range out of bounds")
	}

	blocksize := int(h.Blocksize)
	startBlock := startByte / blocksize
	stopBlock := (startByte + nBytes - 1) / blocksize
	cfg := block.Config{Filters: h.FilterCodes[:], Codec: h.CodecID, Typesize: typesize, Split: h.Split()}

	for i := startBlock; i <= stopBlock; i++ {
		off := lc.blockOffset(i)
		if off < 0 {
			return errs.New(errs.InvalidHeader, "special block offsets are not supported by lazy getitem")
		}

		lenBytes, err := lc.src.ReadAt(lc.base+int64(off), 4)
		if err != nil {
			return err
		}
		n := int(binary.LittleEndian.Uint32(lenBytes))

		payload, err := lc.src.ReadAt(lc.base+int64(off)+4, n)
		if err != nil {
			return err
		}

		outLen := h.BlockLen(i)
		decoded, err := block.Inverse(cfg, payload, outLen)
		if err != nil {
			return err
		}

		if dp.Postfilter != nil {
			post := make([]byte, outLen)
			perr := dp.Postfilter(PostfilterParams{NBlock: i, Offset: i * blocksize, Input: decoded, Output: post})
			if perr != nil {
				return errs.Wrap(errs.Postfilter, "postfilter callback", perr)
			}
			decoded = post
		}

		blockStart := i * blocksize
		lo := max(startByte, blockStart) - blockStart
		hi := min(startByte+nBytes, blockStart+outLen) - blockStart
		destOff := (blockStart + lo) - startByte
		copy(dest[destOff:destOff+(hi-lo)], decoded[lo:hi])
	}

	return nil
}

// fullChunkBytes reads the whole chunk (header through cbytes) in one
// shot, used for the special/memcpy fast paths that Decompress already
// knows how to handle given a contiguous buffer.
func (lc *LazyChunk) fullChunkBytes() ([]byte, error) {
	return lc.src.ReadAt(lc.base, int(lc.Header.Cbytes))
}

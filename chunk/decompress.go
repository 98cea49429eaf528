package chunk

import (
	"context"
	"encoding/binary"

	"github.com/blosc2/b2go/block"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/internal/envcfg"
	"github.com/blosc2/b2go/internal/pool"
)

// PostfilterParams is the per-block view handed to a Postfilter
// callback: the worker slot, the block's index, the block's
// byte offset within the chunk, the freshly decoded input, and the
// output whose bytes replace the decoded ones for this call.
type PostfilterParams struct {
	Thread int
	NBlock int
	Offset int
	Input  []byte
	Output []byte
}

// Postfilter transforms one block of output after the final inverse
// filter has run. A non-nil error aborts the whole decompress call.
type Postfilter func(PostfilterParams) error

// DParams carries decompression parameters: Threads feeds the worker
// pool, Mask (if non-nil) marks blocks to skip and is consumed
// (cleared) by the call that uses it, Postfilter (if non-nil) runs
// once per decoded block.
type DParams struct {
	Threads    int
	Mask       []bool
	Postfilter Postfilter
}

// Decompress parses the chunk header, handles the special/memcpy
// bypasses, and otherwise dispatches one inverse-pipeline task per
// unmasked block. It returns the number of bytes written to dest.
func Decompress(ctx context.Context, dp DParams, chunkBytes []byte, dest []byte) (n int, err error) {
	defer func() { envcfg.TraceErr(err) }()

	dp, err = applyDParamsOverrides(dp)
	if err != nil {
		return 0, err
	}

	h, err := DecodeHeader(chunkBytes)
	if err != nil {
		return 0, err
	}
	if err := ValidateHeader(h, len(chunkBytes)); err != nil {
		return 0, err
	}
	if len(dest) < int(h.Nbytes) {
		return 0, errs.New(errs.WriteBufferTooSmall, "destination shorter than chunk's nbytes")
	}

	if IsSpecial(h) {
		if err := DecodeSpecial(h, chunkBytes, dest); err != nil {
			return 0, err
		}

		return int(h.Nbytes), nil
	}

	if h.Memcpy() {
		body := chunkBytes[format.ChunkHeaderLen:]
		if len(body) < 8 {
			return 0, errs.New(errs.InvalidHeader, "memcpy chunk missing payload length header")
		}
		n := int(binary.LittleEndian.Uint32(body[4:8]))
		if len(body) < 8+n {
			return 0, errs.New(errs.ReadBufferTooSmall, "memcpy chunk payload truncated")
		}
		if dp.Postfilter != nil {
			if err := dp.Postfilter(PostfilterParams{Input: body[8 : 8+n], Output: dest[:n]}); err != nil {
				return 0, errs.Wrap(errs.Postfilter, "postfilter callback", err)
			}

			return n, nil
		}
		copy(dest, body[8:8+n])

		return n, nil
	}

	nblocks := h.NBlocks()
	mask := dp.Mask
	defer func() {
		for i := range mask {
			mask[i] = false
		}
	}()

	cfg := block.Config{
		Filters:  h.FilterCodes[:],
		Codec:    h.CodecID,
		Typesize: int(h.Typesize),
		Split:    h.Split(),
	}

	wp := pool.NewWorkerPool(dp.Threads)
	err = wp.Run(ctx, nblocks, func(_ context.Context, i int) error {
		if i < len(mask) && mask[i] {
			return nil
		}

		payload, perr := readBlockPayload(chunkBytes, i)
		if perr != nil {
			return perr
		}

		outLen := h.BlockLen(i)
		decoded, derr := block.Inverse(cfg, payload, outLen)
		if derr != nil {
			return derr
		}

		start := i * int(h.Blocksize)
		if dp.Postfilter != nil {
			perr := dp.Postfilter(PostfilterParams{
				Thread: i % wp.NThreads(),
				NBlock: i,
				Offset: start,
				Input:  decoded,
				Output: dest[start : start+outLen],
			})
			if perr != nil {
				return errs.Wrap(errs.Postfilter, "postfilter callback", perr)
			}

			return nil
		}
		copy(dest[start:start+outLen], decoded)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return int(h.Nbytes), nil
}

// readBlockPayload slices out block i's payload (int32 length prefix
// skipped) using the offset table entry at chunkBytes[32+4i:].
func readBlockPayload(chunkBytes []byte, i int) ([]byte, error) {
	tableOff := format.ChunkHeaderLen + 4*i
	if len(chunkBytes) < tableOff+4 {
		return nil, errs.New(errs.InvalidHeader, "offset table truncated")
	}

	off := int32(binary.LittleEndian.Uint32(chunkBytes[tableOff:]))
	if off < 0 {
		return nil, errs.New(errs.InvalidHeader, "special block offsets are not supported by this decoder path")
	}
	if int(off)+4 > len(chunkBytes) {
		return nil, errs.New(errs.ReadBufferTooSmall, "block offset beyond chunk length")
	}

	n := int(binary.LittleEndian.Uint32(chunkBytes[off:]))
	if int(off)+4+n > len(chunkBytes) {
		return nil, errs.New(errs.ReadBufferTooSmall, "block payload truncated")
	}

	return chunkBytes[off+4 : off+4+int32(n)], nil
}

// GetItem decodes only the blocks intersecting the requested item
// range and copies the requested slice into dest. Special chunks are
// served directly without decoding any block, and memcpy chunks are
// sliced straight out of their stored bytes.
func GetItem(ctx context.Context, dp DParams, chunkBytes []byte, startItem, nItems int, dest []byte) (err error) {
	defer func() { envcfg.TraceErr(err) }()

	h, err := DecodeHeader(chunkBytes)
	if err != nil {
		return err
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

	if IsSpecial(h) {
		// The synthesized pattern repeats per element, so an
		// element-aligned sub-range decodes the same as the full run.
		sub := h
		sub.Nbytes = int32(nBytes)
		if err := DecodeSpecial(sub, chunkBytes, dest[:nBytes]); err != nil {
			return err
		}

		return nil
	}

	if h.Memcpy() {
		body := chunkBytes[format.ChunkHeaderLen:]
		if len(body) < 8 || len(body) < 8+int(h.Nbytes) || int(binary.LittleEndian.Uint32(body[4:8])) < int(h.Nbytes) {
			return errs.New(errs.ReadBufferTooSmall, "memcpy chunk payload truncated")
		}
		data := body[8 : 8+int(h.Nbytes)]
		if dp.Postfilter != nil {
			post := make([]byte, len(data))
			if perr := dp.Postfilter(PostfilterParams{Input: data, Output: post}); perr != nil {
				return errs.Wrap(errs.Postfilter, "postfilter callback", perr)
			}
			data = post
		}
		copy(dest[:nBytes], data[startByte:startByte+nBytes])

		return nil
	}

	blocksize := int(h.Blocksize)
	startBlock := startByte / blocksize
	stopBlock := (startByte + nBytes - 1) / blocksize

	cfg := block.Config{
		Filters:  h.FilterCodes[:],
		Codec:    h.CodecID,
		Typesize: typesize,
		Split:    h.Split(),
	}

	for i := startBlock; i <= stopBlock; i++ {
		payload, err := readBlockPayload(chunkBytes, i)
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
			perr := dp.Postfilter(PostfilterParams{
				NBlock: i,
				Offset: i * blocksize,
				Input:  decoded,
				Output: post,
			})
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

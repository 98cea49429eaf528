package chunk

import (
	"context"
	"encoding/binary"

	"github.com/blosc2/b2go/block"
	"github.com/blosc2/b2go/codec"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/internal/envcfg"
	"github.com/blosc2/b2go/internal/pool"
)

// PrefilterParams is the per-block view handed to a Prefilter
// callback: the worker slot running the block, the block's index,
// the source slice, the destination slice whose bytes replace the
// source for this chunk only, and a per-thread scratch at least one
// block long.
type PrefilterParams struct {
	Thread  int
	NBlock  int
	Input   []byte
	Output  []byte
	Scratch []byte
}

// Prefilter transforms one block of input before compression. A
// non-nil error aborts the whole chunk operation.
type Prefilter func(PrefilterParams) error

// CParams carries the compression parameters a chunk is built with,
// the super-chunk defaults applied per chunk.
type CParams struct {
	Typesize   int
	Clevel     int
	Codec      format.CodecID
	Filters    []format.FilterID
	FilterMeta []uint8
	Blocksize  int // 0 means auto-size, see block.AutoSize
	Split      format.SplitMode
	Threads    int
	Prefilter  Prefilter
}

func (p CParams) blockConfig() block.Config {
	return block.Config{
		Filters:  p.Filters,
		Codec:    p.Codec,
		CLevel:   p.Clevel,
		Typesize: p.Typesize,
		Split:    p.Split,
	}
}

func (p CParams) resolveBlocksize(nbytes int64) int {
	if p.Blocksize > 0 {
		return p.Blocksize
	}

	return block.AutoSize(p.Typesize, p.Clevel, nbytes, block.HasBitLevelFilter(p.blockConfig()))
}

// Compress turns src into one fully serialized chunk. Blocks are
// dispatched to a bounded worker pool; on a filter/codec failure the
// whole operation is retried in memcpy mode rather than failing
// outright.
func Compress(ctx context.Context, p CParams, src []byte) (out []byte, err error) {
	defer func() { envcfg.TraceErr(err) }()

	p, err = applyCParamsOverrides(p)
	if err != nil {
		return nil, err
	}
	if err := validateCParams(p, len(src)); err != nil {
		return nil, err
	}

	if p.Prefilter != nil {
		src, err = runPrefilter(ctx, p, src)
		if err != nil {
			return nil, err
		}
	}

	out, err = compressPipelined(ctx, p, src)
	if err == nil {
		memcpy := compressMemcpy(p, src)
		// If the pipelined encoding didn't beat storing the input
		// verbatim (as happens when every block turned out
		// incompressible), fall back to whole-chunk memcpy, which
		// carries far less per-block bookkeeping overhead.
		if len(out) >= len(memcpy) {
			return memcpy, nil
		}

		return out, nil
	}

	var pipelineErr *errs.Error
	if e, ok := err.(*errs.Error); ok {
		pipelineErr = e
	}
	if pipelineErr == nil || (pipelineErr.Code != errs.FilterPipeline && pipelineErr.Code != errs.CodecUnsupported) {
		return nil, err
	}

	return compressMemcpy(p, src), nil
}

func validateCParams(p CParams, nbytes int) error {
	if int64(nbytes) > format.MaxBufferSize {
		return errs.New(errs.TwoGBLimit, "source exceeds MAX_BUFFERSIZE")
	}
	if p.Typesize < 1 || p.Typesize > format.MaxTypesize {
		return errs.New(errs.InvalidParam, "typesize out of range")
	}
	if p.Clevel < 0 || p.Clevel > 9 {
		return errs.New(errs.InvalidParam, "clevel out of range [0,9]")
	}
	if len(p.Filters) > format.MaxFiltersInPipeline {
		return errs.New(errs.InvalidParam, "too many filters in pipeline")
	}

	return nil
}

// runPrefilter applies the prefilter callback block by block, in
// parallel, and returns the transformed buffer that replaces
// src for the rest of this chunk operation (including a later memcpy
// fallback, which must store the prefiltered bytes, not the originals).
func runPrefilter(ctx context.Context, p CParams, src []byte) ([]byte, error) {
	blocksize := p.resolveBlocksize(int64(len(src)))
	nblocks := 0
	if len(src) > 0 {
		nblocks = (len(src) + blocksize - 1) / blocksize
	}

	out := make([]byte, len(src))
	wp := pool.NewWorkerPool(p.Threads)

	err := wp.Run(ctx, nblocks, func(_ context.Context, i int) error {
		start := i * blocksize
		end := start + blocksize
		if end > len(src) {
			end = len(src)
		}

		scratch := pool.GetBlockBuffer()
		defer pool.PutBlockBuffer(scratch)
		scratch.ExtendOrGrow(end - start)

		perr := p.Prefilter(PrefilterParams{
			Thread:  i % wp.NThreads(),
			NBlock:  i,
			Input:   src[start:end],
			Output:  out[start:end],
			Scratch: scratch.Bytes(),
		})
		if perr != nil {
			return errs.Wrap(errs.Postfilter, "prefilter callback", perr)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func compressPipelined(ctx context.Context, p CParams, src []byte) ([]byte, error) {
	blocksize := p.resolveBlocksize(int64(len(src)))
	nblocks := 0
	if len(src) > 0 {
		nblocks = (len(src) + blocksize - 1) / blocksize
	}

	payloads := make([][]byte, nblocks)
	wp := pool.NewWorkerPool(p.Threads)

	runErr := wp.Run(ctx, nblocks, func(_ context.Context, i int) error {
		start := i * blocksize
		end := start + blocksize
		if end > len(src) {
			end = len(src)
		}

		payload, _, err := block.Forward(p.blockConfig(), src[start:end])
		if err != nil {
			return err
		}
		payloads[i] = payload

		return nil
	})
	if runErr != nil {
		return nil, runErr
	}

	offsetTableLen := 4 * nblocks
	bodyLen := 0
	for _, pl := range payloads {
		bodyLen += 4 + len(pl)
	}

	total := format.ChunkHeaderLen + offsetTableLen + bodyLen
	out := make([]byte, total)

	off := format.ChunkHeaderLen + offsetTableLen
	for i, pl := range payloads {
		binary.LittleEndian.PutUint32(out[format.ChunkHeaderLen+4*i:], uint32(off))
		binary.LittleEndian.PutUint32(out[off:], uint32(len(pl)))
		copy(out[off+4:], pl)
		off += 4 + len(pl)
	}

	h := Header{
		Version:      format.ChunkFormatVersion,
		CodecVersion: 1,
		Typesize:     uint8(p.Typesize),
		Nbytes:       int32(len(src)),
		Blocksize:    int32(blocksize),
		Cbytes:       int32(total),
		CodecID:      p.Codec,
	}
	for i, f := range activeFilterCodes(p.Filters) {
		h.FilterCodes[i] = f
	}
	for i, m := range p.FilterMeta {
		if i < format.MaxFiltersInPipeline {
			h.FilterMetas[i] = m
		}
	}
	h.B2Flags = format.PackSplitMode(0, p.Split)
	h.Flags = filterFlagBits(p.Filters)

	copy(out[:format.ChunkHeaderLen], h.Encode())

	return out, nil
}

func activeFilterCodes(filters []format.FilterID) []format.FilterID {
	out := make([]format.FilterID, 0, len(filters))
	for _, f := range filters {
		if f != format.FilterNone {
			out = append(out, f)
		}
	}
	if len(out) > format.MaxFiltersInPipeline {
		out = out[:format.MaxFiltersInPipeline]
	}

	return out
}

func filterFlagBits(filters []format.FilterID) uint8 {
	var flags uint8
	for _, f := range filters {
		switch f {
		case format.FilterShuffle:
			flags |= format.FlagShuffleBit
		case format.FilterBitShuffle:
			flags |= format.FlagBitShuffleBit
		case format.FilterDelta:
			flags |= format.FlagDeltaBit
		}
	}

	return flags
}

// compressMemcpy stores src verbatim with the memcpy flag set: one
// "block" the size of the whole chunk, no codec, no filters.
func compressMemcpy(p CParams, src []byte) []byte {
	total := format.ChunkHeaderLen + 4 + 4 + len(src)
	out := make([]byte, total)

	binary.LittleEndian.PutUint32(out[format.ChunkHeaderLen:], uint32(format.ChunkHeaderLen+4))
	binary.LittleEndian.PutUint32(out[format.ChunkHeaderLen+4:], uint32(len(src)))
	copy(out[format.ChunkHeaderLen+8:], src)

	h := Header{
		Version:      format.ChunkFormatVersion,
		CodecVersion: 1,
		Flags:        format.FlagMemcpyBit,
		Typesize:     uint8(p.Typesize),
		Nbytes:       int32(len(src)),
		Blocksize:    int32(len(src)),
		Cbytes:       int32(total),
		CodecID:      codec.NoOp().ID(),
	}
	copy(out[:format.ChunkHeaderLen], h.Encode())

	return out
}

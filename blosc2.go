// Package blosc2 is the thin convenience layer over chunk/schunk for
// the common case: build a CParams/DParams pair with functional
// options, then either drive a single chunk through Compress/
// Decompress or open a full Schunk for the ordered multi-chunk case.
// Callers who need the full surface (frame serialization, custom I/O
// backends, the slice engine) use the chunk/schunk/frame/ioback
// packages directly.
package blosc2

import (
	"context"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/internal/options"
	"github.com/blosc2/b2go/schunk"
)

// CParamsOption configures a chunk.CParams via NewCParams.
type CParamsOption = options.Option[*chunk.CParams]

// WithTypesize sets the item size in bytes.
func WithTypesize(n int) CParamsOption {
	return options.NoError(func(p *chunk.CParams) { p.Typesize = n })
}

// WithClevel sets the compression level (0..9).
func WithClevel(n int) CParamsOption {
	return options.NoError(func(p *chunk.CParams) { p.Clevel = n })
}

// WithCodec selects the codec used for every block.
func WithCodec(id format.CodecID) CParamsOption {
	return options.NoError(func(p *chunk.CParams) { p.Codec = id })
}

// WithFilters sets the filter pipeline, applied in order.
func WithFilters(f ...format.FilterID) CParamsOption {
	return options.NoError(func(p *chunk.CParams) { p.Filters = f })
}

// WithBlocksize overrides the auto-sizing heuristic. 0 restores it.
func WithBlocksize(n int) CParamsOption {
	return options.NoError(func(p *chunk.CParams) { p.Blocksize = n })
}

// WithSplit overrides the split-mode heuristic.
func WithSplit(mode format.SplitMode) CParamsOption {
	return options.NoError(func(p *chunk.CParams) { p.Split = mode })
}

// WithThreads sets the worker pool size driving block compression.
func WithThreads(n int) CParamsOption {
	return options.NoError(func(p *chunk.CParams) { p.Threads = n })
}

// WithPrefilter installs a callback run once per block before
// compression; its output replaces the source for that chunk only.
func WithPrefilter(f chunk.Prefilter) CParamsOption {
	return options.NoError(func(p *chunk.CParams) { p.Prefilter = f })
}

// NewCParams builds a chunk.CParams from defaults (typesize 1, clevel
// 5, LZ4, no filters, auto blocksize, serial) plus opts in order.
func NewCParams(opts ...CParamsOption) (chunk.CParams, error) {
	p := chunk.CParams{Typesize: 1, Clevel: 5, Codec: format.CodecLZ4}
	if err := options.Apply(&p, opts...); err != nil {
		return chunk.CParams{}, err
	}

	return p, nil
}

// DParamsOption configures a chunk.DParams via NewDParams.
type DParamsOption = options.Option[*chunk.DParams]

// WithDThreads sets the worker pool size driving block decompression.
func WithDThreads(n int) DParamsOption {
	return options.NoError(func(p *chunk.DParams) { p.Threads = n })
}

// WithMask sets the maskout array: true entries skip decoding
// that block and leave the destination untouched there. The mask is
// cleared by the call that consumes it.
func WithMask(mask []bool) DParamsOption {
	return options.NoError(func(p *chunk.DParams) { p.Mask = mask })
}

// WithPostfilter installs a callback run once per decoded block after
// the final inverse filter; its output replaces the decoded bytes for
// that call.
func WithPostfilter(f chunk.Postfilter) DParamsOption {
	return options.NoError(func(p *chunk.DParams) { p.Postfilter = f })
}

// NewDParams builds a chunk.DParams from opts.
func NewDParams(opts ...DParamsOption) (chunk.DParams, error) {
	var p chunk.DParams
	if err := options.Apply(&p, opts...); err != nil {
		return chunk.DParams{}, err
	}

	return p, nil
}

// Compress is the single-chunk convenience path: build cparams from
// opts and compress src into one self-describing chunk.
func Compress(ctx context.Context, src []byte, opts ...CParamsOption) ([]byte, error) {
	p, err := NewCParams(opts...)
	if err != nil {
		return nil, err
	}

	return chunk.Compress(ctx, p, src)
}

// Decompress is the single-chunk convenience path.
func Decompress(ctx context.Context, chunkBytes []byte, dest []byte, opts ...DParamsOption) (int, error) {
	p, err := NewDParams(opts...)
	if err != nil {
		return 0, err
	}

	return chunk.Decompress(ctx, p, chunkBytes, dest)
}

// NewSchunk builds an empty super-chunk with the given chunksize and
// cparams/dparams options.
func NewSchunk(chunksize int64, cpOpts []CParamsOption, dpOpts []DParamsOption) (*schunk.Schunk, error) {
	cp, err := NewCParams(cpOpts...)
	if err != nil {
		return nil, err
	}
	dp, err := NewDParams(dpOpts...)
	if err != nil {
		return nil, err
	}

	return schunk.New(cp, dp, chunksize), nil
}

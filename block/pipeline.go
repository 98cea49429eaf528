package block

import (
	"encoding/binary"
	"fmt"

	"github.com/blosc2/b2go/codec"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/filter"
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/internal/pool"
)

// Config carries everything the pipeline needs to run one block: the
// filter pipeline (at most 6 slots, applied first-to-last forward and
// last-to-first inverse), the codec, its compression level, the
// logical element size, and the configured split mode.
type Config struct {
	Filters  []format.FilterID // empty/FilterNone entries are skipped
	Codec    format.CodecID
	CLevel   int
	Typesize int
	Split    format.SplitMode
}

const (
	blockFlagIncompressible uint8 = 1 << 0
	blockFlagSplit          uint8 = 1 << 1
)

func activeFilters(cfg Config) []format.FilterID {
	out := make([]format.FilterID, 0, len(cfg.Filters))
	for _, id := range cfg.Filters {
		if id != format.FilterNone {
			out = append(out, id)
		}
	}
	if len(out) > format.MaxFiltersInPipeline {
		out = out[:format.MaxFiltersInPipeline]
	}

	return out
}

// HasBitLevelFilter reports whether cfg's active filters include one
// that operates below byte granularity, so callers sizing blocks via
// AutoSize know to round to a multiple of 8*typesize.
func HasBitLevelFilter(cfg Config) bool {
	for _, id := range activeFilters(cfg) {
		if id == format.FilterBitShuffle {
			return true
		}
	}

	return false
}

// shouldSplit decides whether the codec runs per byte lane: the AUTO
// heuristic splits when typesize is one of the classic SIMD lane
// widths and the block has at least two elements per lane.
// FORWARD_COMPAT uses the same rule as ALWAYS so that old readers
// never need to guess it.
func shouldSplit(mode format.SplitMode, typesize, blockLen int) bool {
	switch mode {
	case format.SplitNever:
		return false
	case format.SplitAlways, format.SplitForwardCompat:
		return canSplit(typesize, blockLen)
	case format.SplitAuto:
		return canSplit(typesize, blockLen) && blockLen/typesize >= 2
	default:
		return false
	}
}

func canSplit(typesize, blockLen int) bool {
	switch typesize {
	case 2, 4, 8, 16:
	default:
		return false
	}

	return blockLen%typesize == 0 && blockLen/typesize > 0
}

// Forward runs the filter chain, optional split, and codec over a
// single block and returns the wire payload. When the codec fails to
// shrink the block, the original bytes are carried verbatim behind the
// returned incompressible flag and the decoder skips both codec and
// filters.
func Forward(cfg Config, src []byte) (payload []byte, incompressible bool, err error) {
	filters := activeFilters(cfg)

	bufA := pool.GetBlockBuffer()
	bufB := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(bufA)
	defer pool.PutBlockBuffer(bufB)

	bufA.ExtendOrGrow(len(src))
	work := bufA.Bytes()
	copy(work, src)

	bufB.ExtendOrGrow(len(src))
	scratch := bufB.Bytes()
	for _, id := range filters {
		f, ferr := filter.Get(id)
		if ferr != nil {
			return nil, false, errs.Wrap(errs.FilterPipeline, "forward filter lookup", ferr)
		}
		if ferr := f.Forward(scratch, work, cfg.Typesize); ferr != nil {
			return nil, false, errs.Wrap(errs.FilterPipeline, "forward filter apply", ferr)
		}
		work, scratch = scratch, work
	}

	split := shouldSplit(cfg.Split, cfg.Typesize, len(work))

	c, err := codec.Get(cfg.Codec)
	if err != nil {
		return nil, false, errs.Wrap(errs.CodecUnsupported, "codec lookup", err)
	}

	var body []byte
	if split {
		body, err = encodeSplit(c, cfg.CLevel, work, cfg.Typesize)
	} else {
		body, err = encodeSingle(c, cfg.CLevel, work)
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.CodecUnsupported, "codec encode", err)
	}

	if len(body)+1 >= len(src) {
		// Incompressible, not an error.
		out := make([]byte, 1+len(src))
		out[0] = blockFlagIncompressible
		copy(out[1:], src)

		return out, true, nil
	}

	flags := byte(0)
	if split {
		flags |= blockFlagSplit
	}
	out := make([]byte, 1+len(body))
	out[0] = flags
	copy(out[1:], body)

	return out, false, nil
}

// Inverse undoes Forward: it parses the block flag byte, decodes
// (bypassing codec+filters entirely for an incompressible block), and
// runs the inverse filter chain in reverse order. outLen is the
// expected decompressed length of this block (blocksize, except
// possibly shorter for the chunk's last block).
func Inverse(cfg Config, payload []byte, outLen int) ([]byte, error) {
	if len(payload) < 1 {
		return nil, errs.New(errs.InvalidHeader, "block payload too short")
	}

	flags := payload[0]
	body := payload[1:]

	if flags&blockFlagIncompressible != 0 {
		if len(body) != outLen {
			return nil, errs.New(errs.ReadBufferTooSmall, fmt.Sprintf("incompressible block length %d != expected %d", len(body), outLen))
		}
		out := make([]byte, outLen)
		copy(out, body)

		return out, nil
	}

	c, err := codec.Get(cfg.Codec)
	if err != nil {
		return nil, errs.Wrap(errs.CodecUnsupported, "codec lookup", err)
	}

	var filtered []byte
	if flags&blockFlagSplit != 0 {
		filtered, err = decodeSplit(c, body, cfg.Typesize)
	} else {
		filtered, err = decodeSingle(c, body)
	}
	if err != nil {
		return nil, errs.Wrap(errs.CodecUnsupported, "codec decode", err)
	}

	filters := activeFilters(cfg)
	if len(filters) == 0 {
		if len(filtered) != outLen {
			return nil, errs.New(errs.ReadBufferTooSmall, fmt.Sprintf("decoded block length %d != expected %d", len(filtered), outLen))
		}

		return filtered, nil
	}

	bufA := pool.GetBlockBuffer()
	bufB := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(bufA)
	defer pool.PutBlockBuffer(bufB)

	bufA.ExtendOrGrow(len(filtered))
	work := bufA.Bytes()
	copy(work, filtered)

	bufB.ExtendOrGrow(len(filtered))
	scratch := bufB.Bytes()
	for i := len(filters) - 1; i >= 0; i-- {
		f, ferr := filter.Get(filters[i])
		if ferr != nil {
			return nil, errs.Wrap(errs.FilterPipeline, "inverse filter lookup", ferr)
		}
		if ferr := f.Inverse(scratch, work, cfg.Typesize); ferr != nil {
			return nil, errs.Wrap(errs.FilterPipeline, "inverse filter apply", ferr)
		}
		work, scratch = scratch, work
	}

	if len(work) != outLen {
		return nil, errs.New(errs.ReadBufferTooSmall, fmt.Sprintf("decoded block length %d != expected %d", len(work), outLen))
	}

	out := make([]byte, len(work))
	copy(out, work)

	return out, nil
}

func encodeSingle(c codec.Codec, clevel int, data []byte) ([]byte, error) {
	out, err := c.Compress(data, clevel)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+len(out))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(out)))
	copy(buf[4:], out)

	return buf, nil
}

func decodeSingle(c codec.Codec, payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, errs.New(errs.InvalidHeader, "codec sub-stream length header truncated")
	}
	n := binary.LittleEndian.Uint32(payload[0:4])
	if len(payload) < int(4+n) {
		return nil, errs.New(errs.ReadBufferTooSmall, "codec sub-stream payload truncated")
	}

	return c.Decompress(payload[4 : 4+n])
}

// encodeSplit runs the codec over typesize independent sub-streams,
// one per byte lane, each framed with its own int32
// length.
func encodeSplit(c codec.Codec, clevel int, data []byte, typesize int) ([]byte, error) {
	n := len(data) / typesize
	var out []byte
	for lane := 0; lane < typesize; lane++ {
		sub := data[lane*n : (lane+1)*n]
		enc, err := encodeSingle(c, clevel, sub)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}

	return out, nil
}

func decodeSplit(c codec.Codec, payload []byte, typesize int) ([]byte, error) {
	streams := make([][]byte, typesize)
	laneLen := -1
	off := 0
	for lane := 0; lane < typesize; lane++ {
		if len(payload) < off+4 {
			return nil, errs.New(errs.InvalidHeader, "split sub-stream length header truncated")
		}
		n := int(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		if len(payload) < off+n {
			return nil, errs.New(errs.ReadBufferTooSmall, "split sub-stream payload truncated")
		}

		dec, err := c.Decompress(payload[off : off+n])
		if err != nil {
			return nil, err
		}
		off += n

		if laneLen == -1 {
			laneLen = len(dec)
		} else if len(dec) != laneLen {
			return nil, errs.New(errs.InvalidHeader, "split sub-stream lane length mismatch")
		}
		streams[lane] = dec
	}

	out := make([]byte, laneLen*typesize)
	for lane, s := range streams {
		copy(out[lane*laneLen:], s)
	}

	return out, nil
}

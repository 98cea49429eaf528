package chunk

import (
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/internal/envcfg"
)

// applyCParamsOverrides routes every BLOSC_* override through one
// validation step at this package's public entry points, returning the
// effective cparams for this call only; p itself is never mutated.
func applyCParamsOverrides(p CParams) (CParams, error) {
	o, err := envcfg.Read()
	if err != nil {
		return CParams{}, err
	}

	if o.HasClevel {
		p.Clevel = o.Clevel
	}
	if o.HasTypesize {
		p.Typesize = o.Typesize
	}
	if o.HasCompressor {
		p.Codec = o.Compressor
	}
	if o.HasNThreads {
		p.Threads = o.NThreads
	}
	if o.HasBlocksize {
		p.Blocksize = o.Blocksize
	}
	if o.HasShuffle {
		p.Filters = replaceShuffleFilter(p.Filters, o.Shuffle)
	}
	if o.HasDelta {
		p.Filters = setDeltaFilter(p.Filters, o.Delta)
	}

	return p, nil
}

// applyDParamsOverrides applies the subset of BLOSC_* overrides that
// affect decompression (only BLOSC_NTHREADS).
func applyDParamsOverrides(p DParams) (DParams, error) {
	o, err := envcfg.Read()
	if err != nil {
		return DParams{}, err
	}
	if o.HasNThreads {
		p.Threads = o.NThreads
	}

	return p, nil
}

// replaceShuffleFilter drops any existing shuffle/bitshuffle filter
// from the pipeline and, unless shuffle is FilterNone, prepends the
// requested one, matching BLOSC_SHUFFLE's "NOSHUFFLE|SHUFFLE|BITSHUFFLE"
// override of the whole shuffle stage.
func replaceShuffleFilter(filters []format.FilterID, shuffle format.FilterID) []format.FilterID {
	out := make([]format.FilterID, 0, len(filters)+1)
	if shuffle != format.FilterNone {
		out = append(out, shuffle)
	}
	for _, f := range filters {
		if f == format.FilterShuffle || f == format.FilterBitShuffle {
			continue
		}
		out = append(out, f)
	}

	return out
}

// setDeltaFilter adds or removes format.FilterDelta from the pipeline
// to match BLOSC_DELTA. When enabled, delta is appended as the last
// stage of the pipeline, so in the forward direction it runs after any
// shuffle stage, on the already shuffled bytes.
func setDeltaFilter(filters []format.FilterID, enabled bool) []format.FilterID {
	out := make([]format.FilterID, 0, len(filters)+1)
	for _, f := range filters {
		if f != format.FilterDelta {
			out = append(out, f)
		}
	}
	if enabled {
		out = append(out, format.FilterDelta)
	}

	return out
}

// Package envcfg centralizes the BLOSC_* environment-variable
// overrides into one Read step so every public entry point validates
// them the same way.
package envcfg

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Overrides holds the subset of compression parameters that BLOSC_*
// environment variables can override for the duration of a single call.
// Zero values mean "not set".
type Overrides struct {
	Clevel    int
	HasClevel bool

	Shuffle    format.FilterID
	HasShuffle bool

	Delta    bool
	HasDelta bool

	Typesize    int
	HasTypesize bool

	Compressor    format.CodecID
	HasCompressor bool

	NThreads    int
	HasNThreads bool

	Blocksize    int
	HasBlocksize bool

	NoLock bool

	Blosc1Compat bool
}

var compressorNames = map[string]format.CodecID{
	"bloscslz": format.CodecBloscLZ,
	"blosclz":  format.CodecBloscLZ,
	"lz4":      format.CodecLZ4,
	"lz4hc":    format.CodecLZ4HC,
	"zlib":     format.CodecZlib,
	"zstd":     format.CodecZstd,
	"s2":       format.CodecS2,
}

// Read parses every recognized BLOSC_* environment variable.
// Out-of-range or unparsable values cause the calling operation to
// fail rather than being silently ignored.
func Read() (Overrides, error) {
	var o Overrides

	if v, ok := os.LookupEnv("BLOSC_CLEVEL"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 9 {
			return Overrides{}, errs.New(errs.InvalidParam, fmt.Sprintf("BLOSC_CLEVEL=%q out of range [0,9]", v))
		}
		o.Clevel, o.HasClevel = n, true
	}

	if v, ok := os.LookupEnv("BLOSC_SHUFFLE"); ok {
		switch v {
		case "NOSHUFFLE":
			o.Shuffle = format.FilterNone
		case "SHUFFLE":
			o.Shuffle = format.FilterShuffle
		case "BITSHUFFLE":
			o.Shuffle = format.FilterBitShuffle
		default:
			return Overrides{}, errs.New(errs.InvalidParam, fmt.Sprintf("BLOSC_SHUFFLE=%q invalid", v))
		}
		o.HasShuffle = true
	}

	if v, ok := os.LookupEnv("BLOSC_DELTA"); ok {
		switch v {
		case "0":
			o.Delta = false
		case "1":
			o.Delta = true
		default:
			return Overrides{}, errs.New(errs.InvalidParam, fmt.Sprintf("BLOSC_DELTA=%q must be 0 or 1", v))
		}
		o.HasDelta = true
	}

	if v, ok := os.LookupEnv("BLOSC_TYPESIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > format.MaxTypesize {
			return Overrides{}, errs.New(errs.InvalidParam, fmt.Sprintf("BLOSC_TYPESIZE=%q out of range", v))
		}
		o.Typesize, o.HasTypesize = n, true
	}

	if v, ok := os.LookupEnv("BLOSC_COMPRESSOR"); ok {
		id, ok := compressorNames[v]
		if !ok {
			return Overrides{}, errs.New(errs.InvalidParam, fmt.Sprintf("BLOSC_COMPRESSOR=%q unknown", v))
		}
		o.Compressor, o.HasCompressor = id, true
	}

	if v, ok := os.LookupEnv("BLOSC_NTHREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Overrides{}, errs.New(errs.InvalidParam, fmt.Sprintf("BLOSC_NTHREADS=%q out of range", v))
		}
		o.NThreads, o.HasNThreads = n, true
	}

	if v, ok := os.LookupEnv("BLOSC_BLOCKSIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > format.MaxBlockSize {
			return Overrides{}, errs.New(errs.InvalidParam, fmt.Sprintf("BLOSC_BLOCKSIZE=%q out of range", v))
		}
		o.Blocksize, o.HasBlocksize = n, true
	}

	o.NoLock = os.Getenv("BLOSC_NOLOCK") == "1"
	o.Blosc1Compat = os.Getenv("BLOSC_BLOSC1_COMPAT") == "1"

	return o, nil
}

// traceEnabled caches whether BLOSC_TRACE is set; it is read once per
// process since env vars are not expected to flip mid-run for tracing.
var traceEnabled = os.Getenv("BLOSC_TRACE") != ""

// Trace writes one diagnostic line to stderr if BLOSC_TRACE is set.
// It never panics and never touches the schunk's own worker pool.
func Trace(code errs.Code, msg string) {
	if !traceEnabled {
		return
	}

	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	log.Printf("blosc2: %s: %s", code, msg)
}

// TraceErr is Trace's convenience form for a function's named error
// return: call it via defer so every public entry point gets one
// BLOSC_TRACE line per failing call without repeating the code/message
// split at each call site.
func TraceErr(err error) {
	if err == nil || !traceEnabled {
		return
	}

	if e, ok := err.(*errs.Error); ok {
		Trace(e.Code, e.Msg)

		return
	}

	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	log.Printf("blosc2: %v", err)
}

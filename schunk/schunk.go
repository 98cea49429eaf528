// Package schunk implements the super-chunk layer: an ordered,
// editable sequence of chunks sharing compression parameters, with
// aggregate counters, fixed/variable-length metadata registries, and a
// random-access slice engine over the logical byte stream the chunks
// concatenate to.
//
// A Schunk does not lock across API calls: concurrent mutating calls
// on the same schunk are undefined behavior, and the caller must
// order mutations against reads. The embedded mutex only protects
// Go's own slice/map internals from a torn read during concurrent
// misuse; it is not a substitute for the caller serializing mutating
// calls as the contract requires.
package schunk

import (
	"context"
	"sync"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Schunk is an ordered sequence of compressed chunks plus metadata
// registries and aggregate counters.
type Schunk struct {
	mu sync.Mutex

	CParams chunk.CParams
	DParams chunk.DParams

	// ChunkSize is the uncompressed size shared by every non-terminal
	// chunk; the terminal (trailing) chunk may be shorter.
	ChunkSize int64

	chunks []entry
	sealed bool

	nbytes int64
	cbytes int64

	meta   *Meta
	vlmeta *VLMeta
}

type entry struct {
	bytes []byte
}

// New builds an empty super-chunk. chunksize is the uncompressed size
// every non-terminal chunk must equal.
func New(cp chunk.CParams, dp chunk.DParams, chunksize int64) *Schunk {
	return &Schunk{
		CParams:   cp,
		DParams:   dp,
		ChunkSize: chunksize,
		meta:      newMeta(),
		vlmeta:    newVLMeta(),
	}
}

func (s *Schunk) NChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.chunks)
}

func (s *Schunk) NBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nbytes
}

func (s *Schunk) CBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cbytes
}

// Meta returns the fixed-metalayer registry.
func (s *Schunk) Meta() *Meta { return s.meta }

// VLMeta returns the variable-length metalayer registry.
func (s *Schunk) VLMeta() *VLMeta { return s.vlmeta }

// Sealed reports whether the super-chunk refuses further
// AppendBuffer/AppendChunk calls.
func (s *Schunk) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sealed
}

// Seal marks the super-chunk as closed to further AppendBuffer/
// AppendChunk calls. It is idempotent. Appending after a trailing
// (short) chunk is always refused; Seal is how a caller records that
// the trailing chunk is final on purpose.
func (s *Schunk) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

func headerOf(b []byte) (chunk.Header, error) {
	return chunk.DecodeHeader(b)
}

// hasTrailingChunk reports whether the last stored chunk is shorter
// than ChunkSize, which blocks further appends.
func (s *Schunk) hasTrailingChunk() (bool, error) {
	if len(s.chunks) == 0 {
		return false, nil
	}
	h, err := headerOf(s.chunks[len(s.chunks)-1].bytes)
	if err != nil {
		return false, err
	}

	return int64(h.Nbytes) < s.ChunkSize, nil
}

// DecompressChunk fetches chunk nchunk and decompresses it into dest.
func (s *Schunk) DecompressChunk(ctx context.Context, nchunk int, dest []byte) (int, error) {
	s.mu.Lock()
	if nchunk < 0 || nchunk >= len(s.chunks) {
		s.mu.Unlock()
		return 0, errs.New(errs.NotFound, "chunk index out of range")
	}
	b := s.chunks[nchunk].bytes
	dp := s.DParams
	s.mu.Unlock()

	return chunk.Decompress(ctx, dp, b, dest)
}

// ChunkView is a borrowed-or-owned view of one chunk's raw bytes:
// Bytes is always a valid view; Owned reports whether the caller got a
// private copy (true) or a view into the schunk's own storage that
// must not be retained past the next mutating call (false).
type ChunkView struct {
	Bytes []byte
	Owned bool
}

// GetChunk returns the raw bytes of chunk nchunk; for an in-memory
// schunk this is always a zero-copy borrow.
func (s *Schunk) GetChunk(nchunk int) (ChunkView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nchunk < 0 || nchunk >= len(s.chunks) {
		return ChunkView{}, errs.New(errs.NotFound, "chunk index out of range")
	}

	return ChunkView{Bytes: s.chunks[nchunk].bytes, Owned: false}, nil
}

// sliceSource adapts a Schunk's in-memory chunk bytes to
// chunk.PayloadSource so GetLazyChunk can share the same decode path a
// frame-backed schunk would use.
type sliceSource struct{ data []byte }

func (s sliceSource) ReadAt(off int64, n int) ([]byte, error) {
	if off < 0 || int(off)+n > len(s.data) {
		return nil, errs.New(errs.ReadBufferTooSmall, "lazy chunk read out of range")
	}

	return s.data[off : int(off)+n], nil
}

// GetLazyChunk returns a chunk.LazyChunk backed by this chunk's own
// bytes, deferring block-payload reads.
func (s *Schunk) GetLazyChunk(nchunk int) (*chunk.LazyChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if nchunk < 0 || nchunk >= len(s.chunks) {
		return nil, errs.New(errs.NotFound, "chunk index out of range")
	}

	return chunk.NewLazyChunk(sliceSource{data: s.chunks[nchunk].bytes}, 0)
}

// FillSpecial bulk-appends chunks made entirely of one special kind
// in O(1) per chunk. nitems counts typesize-sized items, so the result is
// ceil(nitems / (chunksize/typesize)) chunks, the last one shorter
// when nitems doesn't fill a whole chunk. Returns the number of chunks
// added.
func (s *Schunk) FillSpecial(kind format.SpecialKind, nitems int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return 0, errs.New(errs.ChunkAppend, "schunk is sealed")
	}
	if trailing, err := s.hasTrailingChunk(); err != nil {
		return 0, err
	} else if trailing {
		return 0, errs.New(errs.ChunkAppend, "cannot append after a trailing chunk")
	}

	typesize := s.CParams.Typesize
	added := 0
	remaining := nitems * int64(typesize)
	for remaining > 0 {
		n := s.ChunkSize
		if n > remaining {
			n = remaining
		}

		enc, err := chunk.EncodeSpecial(kind, n, typesize, nil)
		if err != nil {
			return added, err
		}

		s.chunks = append(s.chunks, entry{bytes: enc})
		s.nbytes += n
		s.cbytes += int64(len(enc))
		added++
		remaining -= n
	}

	return added, nil
}

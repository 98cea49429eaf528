package schunk

import (
	"context"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/internal/pool"
)

// chunkRange returns [startChunk, stopChunk] (inclusive) for the logical
// byte range [start, stop), given the chunk layout currently in s.
func (s *Schunk) chunkRange(start, stop int64) (int, int, error) {
	if start < 0 || stop < start {
		return 0, 0, errs.New(errs.InvalidParam, "invalid slice range")
	}
	if s.ChunkSize <= 0 {
		return 0, 0, errs.New(errs.InvalidParam, "schunk has no chunks to slice")
	}

	total := s.totalBytesLocked()
	if stop > total {
		return 0, 0, errs.New(errs.InvalidParam, "slice range exceeds schunk length")
	}
	if start == stop {
		return 0, -1, nil
	}

	startChunk := int(start / s.ChunkSize)
	stopChunk := int((stop - 1) / s.ChunkSize)

	return startChunk, stopChunk, nil
}

// totalBytesLocked returns the logical byte length,
// (nchunks-1)*chunksize + the last chunk's size. Caller must hold s.mu.
func (s *Schunk) totalBytesLocked() int64 {
	n := len(s.chunks)
	if n == 0 {
		return 0
	}

	h, err := headerOf(s.chunks[n-1].bytes)
	if err != nil {
		return 0
	}

	return int64(n-1)*s.ChunkSize + int64(h.Nbytes)
}

// GetSliceNChunks returns the set of chunk indices intersecting
// [start, stop), without materializing any of it.
func (s *Schunk) GetSliceNChunks(start, stop int64) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startChunk, stopChunk, err := s.chunkRange(start, stop)
	if err != nil {
		return nil, err
	}
	if stopChunk < startChunk {
		return nil, nil
	}

	out := make([]int, 0, stopChunk-startChunk+1)
	for i := startChunk; i <= stopChunk; i++ {
		out = append(out, i)
	}

	return out, nil
}

// GetSliceBuffer reads logical bytes [start, stop) across chunk
// boundaries into dst, decoding each affected chunk into scratch and
// copying the intersecting range out.
func (s *Schunk) GetSliceBuffer(ctx context.Context, start, stop int64, dst []byte) error {
	s.mu.Lock()
	startChunk, stopChunk, err := s.chunkRange(start, stop)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if stopChunk < startChunk {
		s.mu.Unlock()
		return nil
	}
	if int64(len(dst)) < stop-start {
		s.mu.Unlock()
		return errs.New(errs.ReadBufferTooSmall, "dst shorter than requested slice")
	}

	chunksize := s.ChunkSize
	dp := s.DParams
	bufs := s.chunksSnapshot()
	s.mu.Unlock()

	for i := startChunk; i <= stopChunk; i++ {
		chunkStart := int64(i) * chunksize
		h, herr := headerOf(bufs[i])
		if herr != nil {
			return herr
		}
		chunkEnd := chunkStart + int64(h.Nbytes)

		lo := max64(start, chunkStart)
		hi := min64(stop, chunkEnd)

		buf := pool.GetChunkBuffer()
		buf.ExtendOrGrow(int(h.Nbytes))
		scratch := buf.Bytes()
		if _, derr := chunk.Decompress(ctx, dp, bufs[i], scratch); derr != nil {
			pool.PutChunkBuffer(buf)
			return derr
		}

		copy(dst[lo-start:hi-start], scratch[lo-chunkStart:hi-chunkStart])
		pool.PutChunkBuffer(buf)
	}

	return nil
}

// SetSliceBuffer writes logical bytes [start, stop), re-compressing
// every chunk the slice touches (whole-chunk-aligned slices are
// compressed directly from src; partial chunks are decompressed,
// patched, and re-compressed) and replacing them via UpdateChunk.
func (s *Schunk) SetSliceBuffer(ctx context.Context, start, stop int64, src []byte) error {
	s.mu.Lock()
	startChunk, stopChunk, err := s.chunkRange(start, stop)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if stopChunk < startChunk {
		s.mu.Unlock()
		return nil
	}
	if int64(len(src)) < stop-start {
		s.mu.Unlock()
		return errs.New(errs.ReadBufferTooSmall, "src shorter than the slice being written")
	}

	chunksize := s.ChunkSize
	cp := s.CParams
	dp := s.DParams
	bufs := s.chunksSnapshot()
	s.mu.Unlock()

	for i := startChunk; i <= stopChunk; i++ {
		chunkStart := int64(i) * chunksize
		h, herr := headerOf(bufs[i])
		if herr != nil {
			return herr
		}
		chunkEnd := chunkStart + int64(h.Nbytes)

		lo := max64(start, chunkStart)
		hi := min64(stop, chunkEnd)

		var newChunk []byte
		if lo == chunkStart && hi == chunkEnd {
			newChunk, err = chunk.Compress(ctx, cp, src[lo-start:hi-start])
		} else {
			buf := pool.GetChunkBuffer()
			buf.ExtendOrGrow(int(h.Nbytes))
			plain := buf.Bytes()
			if _, derr := chunk.Decompress(ctx, dp, bufs[i], plain); derr != nil {
				pool.PutChunkBuffer(buf)
				return derr
			}
			copy(plain[lo-chunkStart:hi-chunkStart], src[lo-start:hi-start])
			newChunk, err = chunk.Compress(ctx, cp, plain)
			pool.PutChunkBuffer(buf)
		}
		if err != nil {
			return err
		}

		if err := s.UpdateChunk(i, newChunk, false); err != nil {
			return err
		}
	}

	return nil
}

// chunksSnapshot returns a shallow copy of the stored chunk byte
// slices under s.mu, so callers can release the lock before running
// potentially-slow decompress/compress work.
func (s *Schunk) chunksSnapshot() [][]byte {
	out := make([][]byte, len(s.chunks))
	for i, e := range s.chunks {
		out[i] = e.bytes
	}

	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}

	return b
}

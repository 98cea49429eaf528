package schunk

import (
	"context"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/errs"
)

// AppendBuffer compresses src into a new chunk and appends it. The
// buffer length must equal ChunkSize
// unless this is the super-chunk's first chunk, in which case
// ChunkSize is also permitted to be unset; once a trailing (shorter)
// chunk exists, further appends are rejected until it is removed; a
// sealed schunk rejects every append.
func (s *Schunk) AppendBuffer(ctx context.Context, src []byte) (int, error) {
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
	if len(s.chunks) > 0 && int64(len(src)) > s.ChunkSize {
		return 0, errs.New(errs.ChunkAppend, "buffer larger than chunksize")
	}
	if len(s.chunks) == 0 {
		s.ChunkSize = int64(len(src))
	}

	enc, err := chunk.Compress(ctx, s.CParams, src)
	if err != nil {
		return 0, errs.Wrap(errs.ChunkAppend, "compress for append", err)
	}

	s.chunks = append(s.chunks, entry{bytes: enc})
	s.nbytes += int64(len(src))
	s.cbytes += int64(len(enc))

	return len(s.chunks), nil
}

// AppendChunk appends an already-compressed chunk, validating that
// its typesize and
// uncompressed size are consistent with the super-chunk.
func (s *Schunk) AppendChunk(chunkBytes []byte, doCopy bool) (int, error) {
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

	h, err := headerOf(chunkBytes)
	if err != nil {
		return 0, err
	}
	if int(h.Typesize) != s.CParams.Typesize {
		return 0, errs.New(errs.ChunkAppend, "typesize mismatch")
	}
	if len(s.chunks) > 0 && int64(h.Nbytes) > s.ChunkSize {
		return 0, errs.New(errs.ChunkAppend, "chunk larger than chunksize")
	}
	if len(s.chunks) == 0 {
		s.ChunkSize = int64(h.Nbytes)
	}

	stored := chunkBytes
	if doCopy {
		stored = append([]byte(nil), chunkBytes...)
	}

	s.chunks = append(s.chunks, entry{bytes: stored})
	s.nbytes += int64(h.Nbytes)
	s.cbytes += int64(len(stored))

	return len(s.chunks), nil
}

// InsertChunk places an already-compressed chunk at pos, shifting
// every chunk at or after pos one slot right.
func (s *Schunk) InsertChunk(pos int, chunkBytes []byte, doCopy bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 || pos > len(s.chunks) {
		return errs.New(errs.ChunkInsert, "position out of range")
	}

	h, err := headerOf(chunkBytes)
	if err != nil {
		return err
	}
	if int(h.Typesize) != s.CParams.Typesize {
		return errs.New(errs.ChunkInsert, "typesize mismatch")
	}

	stored := chunkBytes
	if doCopy {
		stored = append([]byte(nil), chunkBytes...)
	}

	s.chunks = append(s.chunks, entry{})
	copy(s.chunks[pos+1:], s.chunks[pos:])
	s.chunks[pos] = entry{bytes: stored}

	s.nbytes += int64(h.Nbytes)
	s.cbytes += int64(len(stored))

	return nil
}

// UpdateChunk replaces the chunk at pos; the old one's bytes are
// simply dropped (Go's GC reclaims them).
func (s *Schunk) UpdateChunk(pos int, chunkBytes []byte, doCopy bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.chunks) {
		return errs.New(errs.ChunkUpdate, "position out of range")
	}

	h, err := headerOf(chunkBytes)
	if err != nil {
		return err
	}
	if int(h.Typesize) != s.CParams.Typesize {
		return errs.New(errs.ChunkUpdate, "typesize mismatch")
	}

	old, err := headerOf(s.chunks[pos].bytes)
	if err != nil {
		return err
	}

	stored := chunkBytes
	if doCopy {
		stored = append([]byte(nil), chunkBytes...)
	}

	s.nbytes += int64(h.Nbytes) - int64(old.Nbytes)
	s.cbytes += int64(len(stored)) - int64(len(s.chunks[pos].bytes))
	s.chunks[pos] = entry{bytes: stored}

	return nil
}

// DeleteChunk removes the chunk at pos, shifting later chunks left.
func (s *Schunk) DeleteChunk(pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.chunks) {
		return errs.New(errs.NotFound, "position out of range")
	}

	h, err := headerOf(s.chunks[pos].bytes)
	if err != nil {
		return err
	}

	s.nbytes -= int64(h.Nbytes)
	s.cbytes -= int64(len(s.chunks[pos].bytes))
	s.chunks = append(s.chunks[:pos], s.chunks[pos+1:]...)

	return nil
}

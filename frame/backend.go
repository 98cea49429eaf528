package frame

import (
	"context"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/ioback"
	"github.com/blosc2/b2go/schunk"
)

// ToFileBackend writes the contiguous frame through the I/O backend
// identified by id instead of the default atomic-rename path of
// ToFile. The two built-in backends (stdio and mmap) produce
// byte-identical files for the same schunk:
// both record BackendStdio in the header, since either can open the
// other's output. A custom backend (global/user id range) records its
// own id so Open can dispatch back to it.
func ToFileBackend(ctx context.Context, s *schunk.Schunk, path string, id format.BackendID) (err error) {
	buf, err := toBuffer(ctx, s, recordedBackendID(id))
	if err != nil {
		return err
	}

	be, err := ioback.New(id)
	if err != nil {
		return err
	}
	if err := be.Open(cleanPath(path), ioback.ModeWriteCreate); err != nil {
		return err
	}
	defer func() {
		if cerr := be.Close(); err == nil {
			err = cerr
		}
	}()

	return be.WriteAt(0, buf)
}

// recordedBackendID maps the built-in backends onto the single id they
// share on the wire; custom backends keep their own.
func recordedBackendID(id format.BackendID) format.BackendID {
	if id == format.BackendStdio || id == format.BackendMmap {
		return format.BackendStdio
	}

	return id
}

// OpenBackend reads a whole contiguous frame through the given backend
// and reconstructs the super-chunk, copying every chunk out of the
// backend's memory before closing it.
func OpenBackend(ctx context.Context, path string, id format.BackendID) (*schunk.Schunk, error) {
	be, err := ioback.New(id)
	if err != nil {
		return nil, err
	}
	if err := be.Open(cleanPath(path), ioback.ModeRead); err != nil {
		return nil, err
	}
	defer be.Close()

	size, err := be.Size()
	if err != nil {
		return nil, err
	}
	buf, err := be.ReadAt(0, int(size))
	if err != nil {
		return nil, err
	}

	return FromBuffer(ctx, buf, true)
}

// Reader serves lazy chunks out of an on-disk contiguous frame: it
// reads only the header and trailer up front, and each GetLazyChunk
// reads just that chunk's header and offset table, leaving block
// payloads on disk until a decompress/getitem call asks for them.
// The whole-frame digest is not verified here,
// since doing so would read every payload and defeat the point; use
// Open/OpenBackend when integrity verification matters more than
// latency.
type Reader struct {
	be   ioback.Backend
	base int64
	hdr  header
	tr   trailer
}

// NewReader opens the frame at path (rooted at offset within the file,
// 0 for a file holding a single frame) through the given backend.
func NewReader(path string, id format.BackendID, offset int64) (*Reader, error) {
	be, err := ioback.New(id)
	if err != nil {
		return nil, err
	}
	if err := be.Open(cleanPath(path), ioback.ModeRead); err != nil {
		return nil, err
	}

	r := &Reader{be: be, base: offset}
	if err := r.load(); err != nil {
		be.Close()
		return nil, err
	}

	return r, nil
}

func (r *Reader) load() error {
	hb, err := r.be.ReadAt(r.base, headerLen)
	if err != nil {
		return err
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return err
	}

	size, err := r.be.Size()
	if err != nil {
		return err
	}
	trailerStart := r.base + h.TrailerOffset
	if trailerStart < r.base+int64(headerLen) || trailerStart >= size {
		return errs.New(errs.InvalidHeader, "frame trailer offset out of range")
	}

	tb, err := r.be.ReadAt(trailerStart, int(size-trailerStart))
	if err != nil {
		return err
	}
	t, _, err := decodeTrailer(tb)
	if err != nil {
		return err
	}
	if len(t.offsets) != int(h.NChunks) {
		return errs.New(errs.InvalidHeader, "frame offset index length mismatch")
	}

	r.hdr = h
	r.tr = t

	return nil
}

// NChunks returns the number of chunks recorded in the frame's index.
func (r *Reader) NChunks() int { return int(r.hdr.NChunks) }

// GetLazyChunk returns a lazy view of chunk i, backed by this Reader's
// I/O backend. The returned chunk stays valid until Close.
func (r *Reader) GetLazyChunk(i int) (*chunk.LazyChunk, error) {
	if i < 0 || i >= len(r.tr.offsets) {
		return nil, errs.New(errs.NotFound, "chunk index out of range")
	}
	off := r.tr.offsets[i]
	if off < 0 {
		return nil, errs.New(errs.InvalidHeader, "negative chunk offset in frame index")
	}

	return chunk.NewLazyChunk(r.be, r.base+off)
}

// Close releases the underlying backend.
func (r *Reader) Close() error {
	return r.be.Close()
}

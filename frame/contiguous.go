package frame

import (
	"context"
	"encoding/binary"
	"os"

	"github.com/google/renameio"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/schunk"
)

// ToBuffer serializes s into a single
// contiguous byte range, [header][chunks][trailer][digest].
func ToBuffer(ctx context.Context, s *schunk.Schunk) ([]byte, error) {
	return toBuffer(ctx, s, format.BackendStdio)
}

func toBuffer(ctx context.Context, s *schunk.Schunk, beID format.BackendID) ([]byte, error) {
	nchunks := s.NChunks()

	chunks := make([][]byte, nchunks)
	for i := 0; i < nchunks; i++ {
		v, err := s.GetChunk(i)
		if err != nil {
			return nil, err
		}
		chunks[i] = v.Bytes
	}

	offsets := make([]int64, nchunks)
	off := int64(headerLen)
	for i, c := range chunks {
		offsets[i] = off
		off += int64(len(c))
	}
	trailerOffset := off

	var filters [format.MaxFiltersInPipeline]format.FilterID
	var filterMetas [format.MaxFiltersInPipeline]uint8
	for i, f := range s.CParams.Filters {
		if i < format.MaxFiltersInPipeline {
			filters[i] = f
		}
	}
	for i, m := range s.CParams.FilterMeta {
		if i < format.MaxFiltersInPipeline {
			filterMetas[i] = m
		}
	}

	h := header{
		Typesize:      uint8(s.CParams.Typesize),
		Codec:         s.CParams.Codec,
		Clevel:        uint8(s.CParams.Clevel),
		Split:         s.CParams.Split,
		BackendID:     beID,
		Filters:       filters,
		FilterMetas:   filterMetas,
		ChunkSize:     s.ChunkSize,
		NChunks:       int32(nchunks),
		NBytes:        s.NBytes(),
		CBytes:        s.CBytes(),
		TrailerOffset: trailerOffset,
	}

	t, err := buildTrailer(ctx, s, offsets)
	if err != nil {
		return nil, err
	}
	trailerBytes := t.encode()

	buf := make([]byte, 0, trailerOffset+int64(len(trailerBytes))+8)
	buf = append(buf, h.encode()...)
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	buf = append(buf, trailerBytes...)

	var d [8]byte
	binary.LittleEndian.PutUint64(d[:], digest(buf))
	buf = append(buf, d[:]...)

	return buf, nil
}

// FromBuffer reconstructs
// a super-chunk from a contiguous frame byte range. When doCopy is
// false, the returned schunk's chunk bytes alias buf and the caller
// must keep buf alive for the schunk's lifetime.
func FromBuffer(ctx context.Context, buf []byte, doCopy bool) (*schunk.Schunk, error) {
	if len(buf) < headerLen+8 {
		return nil, errs.New(errs.InvalidHeader, "frame buffer too short")
	}

	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	if h.TrailerOffset < int64(headerLen) || h.TrailerOffset > int64(len(buf)-8) {
		return nil, errs.New(errs.InvalidHeader, "frame trailer offset out of range")
	}
	t, trailerLen, err := decodeTrailer(buf[h.TrailerOffset:])
	if err != nil {
		return nil, err
	}

	// The frame ends at trailer + digest; buf may extend past it when
	// several frames are concatenated in one file (see OpenOffset).
	frameEnd := h.TrailerOffset + int64(trailerLen) + 8
	if frameEnd > int64(len(buf)) {
		return nil, errs.New(errs.InvalidHeader, "frame trailer digest truncated")
	}
	want := binary.LittleEndian.Uint64(buf[frameEnd-8 : frameEnd])
	got := digest(buf[:frameEnd-8])
	if want != got {
		return nil, errs.New(errs.InvalidHeader, "frame trailer digest mismatch")
	}

	if len(t.offsets) != int(h.NChunks) {
		return nil, errs.New(errs.InvalidHeader, "frame offset index length mismatch")
	}

	cp := chunk.CParams{
		Typesize: int(h.Typesize),
		Clevel:   int(h.Clevel),
		Codec:    h.Codec,
		Filters:  activeFilters(h.Filters),
		Split:    h.Split,
	}
	s := schunk.New(cp, chunk.DParams{}, h.ChunkSize)

	for i := 0; i < int(h.NChunks); i++ {
		start := t.offsets[i]
		if start < 0 || start+int64(format.ChunkHeaderLen) > int64(len(buf)) {
			return nil, errs.New(errs.InvalidHeader, "chunk offset out of range")
		}
		ch, err := chunk.DecodeHeader(buf[start : start+int64(format.ChunkHeaderLen)])
		if err != nil {
			return nil, err
		}
		end := start + int64(ch.Cbytes)
		if end > int64(len(buf)) {
			return nil, errs.New(errs.ReadBufferTooSmall, "chunk payload truncated")
		}

		if _, err := s.AppendChunk(buf[start:end], doCopy); err != nil {
			return nil, err
		}
	}

	if err := restoreMetalayers(ctx, s, t); err != nil {
		return nil, err
	}

	return s, nil
}

// ToFile writes the frame to path
// atomically (write-new-then-rename via renameio) so a crash mid-write
// never corrupts an existing .b2frame file.
func ToFile(ctx context.Context, s *schunk.Schunk, path string) error {
	buf, err := ToBuffer(ctx, s)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(cleanPath(path), buf, 0o644); err != nil {
		return errs.Wrap(errs.PluginIO, "frame to_file", err)
	}

	return nil
}

// Open reads the contiguous frame stored in the file at path and
// reconstructs its super-chunk.
func Open(ctx context.Context, path string) (*schunk.Schunk, error) {
	return OpenOffset(ctx, path, 0)
}

// OpenOffset is Open for a frame that starts at a non-zero byte
// offset, supporting multiple concatenated frames in a single file.
func OpenOffset(ctx context.Context, path string, offset int64) (*schunk.Schunk, error) {
	buf, err := os.ReadFile(cleanPath(path))
	if err != nil {
		return nil, errs.Wrap(errs.PluginIO, "frame open", err)
	}
	if offset < 0 || offset > int64(len(buf)) {
		return nil, errs.New(errs.InvalidParam, "offset out of range")
	}

	return FromBuffer(ctx, buf[offset:], true)
}

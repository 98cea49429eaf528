package frame

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/schunk"
)

const indexFileName = "schunk.b2frame"

func chunkFileName(i int) string {
	return fmt.Sprintf("chunk.%010d.b2frame", i)
}

// ToDir writes the sparse form of the frame: one file per
// chunk plus a small index file carrying the same header/trailer as a
// contiguous frame, with chunk payloads elided (each chunk's offset
// entry is its own index, since the chunk's position is its filename,
// not a byte offset within a shared region).
func ToDir(ctx context.Context, s *schunk.Schunk, dir string) error {
	dir = cleanPath(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.PluginIO, "sparse frame mkdir", err)
	}

	nchunks := s.NChunks()
	offsets := make([]int64, nchunks)
	for i := 0; i < nchunks; i++ {
		v, err := s.GetChunk(i)
		if err != nil {
			return err
		}
		offsets[i] = int64(i)

		path := filepath.Join(dir, chunkFileName(i))
		if err := renameio.WriteFile(path, v.Bytes, 0o644); err != nil {
			return errs.Wrap(errs.PluginIO, "sparse frame chunk write", err)
		}
	}

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
		BackendID:     format.BackendStdio,
		Filters:       filters,
		FilterMetas:   filterMetas,
		ChunkSize:     s.ChunkSize,
		NChunks:       int32(nchunks),
		NBytes:        s.NBytes(),
		CBytes:        s.CBytes(),
		TrailerOffset: int64(headerLen),
	}

	t, err := buildTrailer(ctx, s, offsets)
	if err != nil {
		return err
	}

	buf := append(h.encode(), t.encode()...)
	sum := digest(buf)
	var d [8]byte
	putUint64(d[:], sum)
	buf = append(buf, d[:]...)

	if err := renameio.WriteFile(filepath.Join(dir, indexFileName), buf, 0o644); err != nil {
		return errs.Wrap(errs.PluginIO, "sparse frame index write", err)
	}

	return nil
}

// OpenDir opens a sparse frame directory: reads the index
// file for schunk metadata, then reads each chunk file in turn.
func OpenDir(ctx context.Context, dir string) (*schunk.Schunk, error) {
	dir = cleanPath(dir)
	buf, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, errs.Wrap(errs.PluginIO, "sparse frame index read", err)
	}
	if len(buf) < headerLen+8 {
		return nil, errs.New(errs.InvalidHeader, "sparse frame index too short")
	}

	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	want := getUint64(buf[len(buf)-8:])
	got := digest(buf[:len(buf)-8])
	if want != got {
		return nil, errs.New(errs.InvalidHeader, "sparse frame index digest mismatch")
	}

	t, _, err := decodeTrailer(buf[h.TrailerOffset : len(buf)-8])
	if err != nil {
		return nil, err
	}
	if len(t.offsets) != int(h.NChunks) {
		return nil, errs.New(errs.InvalidHeader, "sparse frame index length mismatch")
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
		cb, err := os.ReadFile(filepath.Join(dir, chunkFileName(i)))
		if err != nil {
			return nil, errs.Wrap(errs.PluginIO, "sparse frame chunk read", err)
		}
		if _, err := s.AppendChunk(cb, false); err != nil {
			return nil, err
		}
	}

	if err := restoreMetalayers(ctx, s, t); err != nil {
		return nil, err
	}

	return s, nil
}

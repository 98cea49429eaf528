package schunk

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/format"
)

func testCParams() chunk.CParams {
	return chunk.CParams{Typesize: 4, Clevel: 5, Codec: format.CodecLZ4, Threads: 1}
}

func seqBuffer(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)*3 + seed
	}

	return out
}

func appendN(t *testing.T, s *Schunk, chunksize, n int) [][]byte {
	t.Helper()

	srcs := make([][]byte, n)
	for i := 0; i < n; i++ {
		srcs[i] = seqBuffer(chunksize, byte(i))
		nchunks, err := s.AppendBuffer(context.Background(), srcs[i])
		require.NoError(t, err)
		require.Equal(t, i+1, nchunks)
	}

	return srcs
}

func TestAppendBuffer_RoundtripAcrossChunks(t *testing.T) {
	s := New(testCParams(), chunk.DParams{Threads: 1}, 256)
	srcs := appendN(t, s, 256, 4)

	assert.EqualValues(t, 4*256, s.NBytes())
	assert.Greater(t, s.CBytes(), int64(0))

	for i, src := range srcs {
		dest := make([]byte, 256)
		n, err := s.DecompressChunk(context.Background(), i, dest)
		require.NoError(t, err)
		assert.Equal(t, 256, n)
		assert.Equal(t, src, dest)
	}
}

func TestAppendBuffer_TrailingChunkBlocksFurtherAppends(t *testing.T) {
	s := New(testCParams(), chunk.DParams{}, 256)
	appendN(t, s, 256, 2)

	_, err := s.AppendBuffer(context.Background(), seqBuffer(100, 9))
	require.NoError(t, err)

	_, err = s.AppendBuffer(context.Background(), seqBuffer(256, 1))
	require.Error(t, err)

	require.NoError(t, s.DeleteChunk(2))
	_, err = s.AppendBuffer(context.Background(), seqBuffer(256, 1))
	require.NoError(t, err)
}

func TestSeal_RejectsAppends(t *testing.T) {
	s := New(testCParams(), chunk.DParams{}, 256)
	appendN(t, s, 256, 1)

	s.Seal()
	require.True(t, s.Sealed())

	_, err := s.AppendBuffer(context.Background(), seqBuffer(256, 1))
	require.Error(t, err)
	_, err = s.FillSpecial(format.SpecialZero, 256)
	require.Error(t, err)
}

// Appending then deleting the same index restores a state that
// decompresses identically to the original.
func TestAppendThenDelete_RestoresOriginal(t *testing.T) {
	s := New(testCParams(), chunk.DParams{}, 256)
	srcs := appendN(t, s, 256, 3)

	nbytesBefore := s.NBytes()
	cbytesBefore := s.CBytes()

	extra, err := chunk.Compress(context.Background(), testCParams(), seqBuffer(256, 77))
	require.NoError(t, err)
	_, err = s.AppendChunk(extra, true)
	require.NoError(t, err)
	require.NoError(t, s.DeleteChunk(3))

	assert.Equal(t, 3, s.NChunks())
	assert.Equal(t, nbytesBefore, s.NBytes())
	assert.Equal(t, cbytesBefore, s.CBytes())

	for i, src := range srcs {
		dest := make([]byte, 256)
		_, err := s.DecompressChunk(context.Background(), i, dest)
		require.NoError(t, err)
		assert.Equal(t, src, dest)
	}
}

func TestInsertUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New(testCParams(), chunk.DParams{}, 256)
	appendN(t, s, 256, 2)

	inserted := seqBuffer(256, 42)
	insertedChunk, err := chunk.Compress(ctx, testCParams(), inserted)
	require.NoError(t, err)
	require.NoError(t, s.InsertChunk(1, insertedChunk, false))
	require.Equal(t, 3, s.NChunks())

	dest := make([]byte, 256)
	_, err = s.DecompressChunk(ctx, 1, dest)
	require.NoError(t, err)
	assert.Equal(t, inserted, dest)

	updated := seqBuffer(256, 99)
	updatedChunk, err := chunk.Compress(ctx, testCParams(), updated)
	require.NoError(t, err)
	require.NoError(t, s.UpdateChunk(1, updatedChunk, false))

	_, err = s.DecompressChunk(ctx, 1, dest)
	require.NoError(t, err)
	assert.Equal(t, updated, dest)

	require.NoError(t, s.DeleteChunk(1))
	require.Equal(t, 2, s.NChunks())
}

func TestAppendChunk_RejectsTypesizeMismatch(t *testing.T) {
	s := New(testCParams(), chunk.DParams{}, 256)

	other := chunk.CParams{Typesize: 8, Clevel: 5, Codec: format.CodecLZ4}
	enc, err := chunk.Compress(context.Background(), other, seqBuffer(256, 0))
	require.NoError(t, err)

	_, err = s.AppendChunk(enc, false)
	require.Error(t, err)
}

// FillSpecial yields ceil(nitems / (chunksize/typesize)) chunks.
// typesize is 8 and the chunksize 1000 B here, so 125 items fill one
// chunk.
func TestFillSpecial_ChunkCount(t *testing.T) {
	tests := []struct {
		name   string
		nitems int64
		want   int
	}{
		{"exact multiple", 625, 5},
		{"trailing chunk", 700, 6},
		{"single short", 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(chunk.CParams{Typesize: 8, Clevel: 5, Codec: format.CodecLZ4}, chunk.DParams{}, 1000)
			added, err := s.FillSpecial(format.SpecialZero, tt.nitems)
			require.NoError(t, err)
			assert.Equal(t, tt.want, added)
			assert.Equal(t, tt.nitems*8, s.NBytes())
		})
	}
}

func TestGetSliceNChunks(t *testing.T) {
	s := New(testCParams(), chunk.DParams{}, 256)
	appendN(t, s, 256, 4)

	got, err := s.GetSliceNChunks(200, 600)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)

	got, err = s.GetSliceNChunks(256, 512)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)

	got, err = s.GetSliceNChunks(100, 100)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.GetSliceNChunks(0, 5000)
	require.Error(t, err)
}

func TestGetSliceBuffer_SpansChunks(t *testing.T) {
	s := New(testCParams(), chunk.DParams{Threads: 1}, 256)
	srcs := appendN(t, s, 256, 4)

	logical := make([]byte, 0, 4*256)
	for _, src := range srcs {
		logical = append(logical, src...)
	}

	dst := make([]byte, 500)
	require.NoError(t, s.GetSliceBuffer(context.Background(), 200, 700, dst))
	assert.Equal(t, logical[200:700], dst)
}

// A slice write followed by a read of the same range returns the
// written bytes.
func TestSetSliceBuffer_ThenGet(t *testing.T) {
	ctx := context.Background()
	s := New(testCParams(), chunk.DParams{Threads: 1}, 256)
	appendN(t, s, 256, 4)

	written := make([]byte, 500)
	for i := range written {
		written[i] = byte(200 - i)
	}
	require.NoError(t, s.SetSliceBuffer(ctx, 200, 700, written))

	got := make([]byte, 500)
	require.NoError(t, s.GetSliceBuffer(ctx, 200, 700, got))
	assert.Equal(t, written, got)
}

func TestSetSliceBuffer_WholeChunkAligned(t *testing.T) {
	ctx := context.Background()
	s := New(testCParams(), chunk.DParams{Threads: 1}, 256)
	appendN(t, s, 256, 2)

	written := seqBuffer(256, 123)
	require.NoError(t, s.SetSliceBuffer(ctx, 256, 512, written))

	dest := make([]byte, 256)
	_, err := s.DecompressChunk(ctx, 1, dest)
	require.NoError(t, err)
	assert.Equal(t, written, dest)
}

func TestGetLazyChunk_DecompressAndGetItem(t *testing.T) {
	ctx := context.Background()
	s := New(testCParams(), chunk.DParams{Threads: 1}, 4096)

	src := make([]byte, 4096)
	for i := 0; i < 1024; i++ {
		binary.LittleEndian.PutUint32(src[i*4:], uint32(i))
	}
	_, err := s.AppendBuffer(ctx, src)
	require.NoError(t, err)

	lc, err := s.GetLazyChunk(0)
	require.NoError(t, err)

	dest := make([]byte, 4096)
	n, err := lc.Decompress(ctx, chunk.DParams{Threads: 1}, dest)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, src, dest)

	item := make([]byte, 8)
	require.NoError(t, lc.GetItem(ctx, chunk.DParams{}, 100, 2, item))
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(item[0:4]))
	assert.Equal(t, uint32(101), binary.LittleEndian.Uint32(item[4:8]))
}

func TestMeta_AddGetUpdateLimits(t *testing.T) {
	m := newMeta()

	require.NoError(t, m.Add("units", []byte("meters")))
	require.Error(t, m.Add("units", []byte("twice")))
	require.Error(t, m.Add("", nil))
	require.Error(t, m.Add("this-name-is-definitely-longer-than-31-chars", nil))

	got, ok := m.Get("units")
	require.True(t, ok)
	assert.Equal(t, []byte("meters"), got)

	require.NoError(t, m.Update("units", []byte("feet")))
	require.Error(t, m.Update("units", []byte("a-much-longer-content-than-before")))
	require.Error(t, m.Update("missing", nil))

	assert.True(t, m.Exists("units"))
	assert.False(t, m.Exists("missing"))
	assert.Equal(t, []string{"units"}, m.Names())
}

func TestMeta_TableCap(t *testing.T) {
	m := newMeta()
	for i := 0; i < format.MaxFixedMetalayers; i++ {
		require.NoError(t, m.Add(string(rune('a'+i)), []byte{byte(i)}))
	}
	require.Error(t, m.Add("overflow", nil))
}

func TestVLMeta_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	v := newVLMeta()

	require.NoError(t, v.Add(ctx, "provenance", []byte("sensor-7")))
	require.Error(t, v.Add(ctx, "provenance", []byte("twice")))

	got, err := v.Get(ctx, "provenance")
	require.NoError(t, err)
	assert.Equal(t, []byte("sensor-7"), got)

	// vlmeta content may grow freely, unlike a fixed metalayer.
	bigger := make([]byte, 10_000)
	for i := range bigger {
		bigger[i] = byte(i % 5)
	}
	require.NoError(t, v.Update(ctx, "provenance", bigger))
	got, err = v.Get(ctx, "provenance")
	require.NoError(t, err)
	assert.Equal(t, bigger, got)

	assert.True(t, v.Exists("provenance"))
	assert.Equal(t, []string{"provenance"}, v.Names())

	require.NoError(t, v.Delete("provenance"))
	assert.False(t, v.Exists("provenance"))
	require.Error(t, v.Delete("provenance"))
	_, err = v.Get(ctx, "provenance")
	require.Error(t, err)
}

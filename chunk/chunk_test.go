package chunk

import (
	"context"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/blosc2/b2go/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int32Arange(n int) []byte {
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(i))
	}

	return out
}

// scenario 1: incompressible block falls back to memcpy.
func TestCompress_IncompressibleFallsBackToMemcpy(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	src := make([]byte, 64*1024)
	r.Read(src)

	p := CParams{Typesize: 1, Clevel: 5, Codec: format.CodecLZ4, Threads: 1}
	out, err := Compress(context.Background(), p, src)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), len(src)+format.ChunkHeaderLen+8)

	dest := make([]byte, len(src))
	n, err := Decompress(context.Background(), DParams{Threads: 1}, out, dest)
	require.NoError(t, err)
	assert.Equal(t, len(src), n)
	assert.Equal(t, src, dest)
}

// scenario 2: byte-shuffle preserves an arange.
func TestCompress_ShufflePreservesArange(t *testing.T) {
	src := int32Arange(200000)
	p := CParams{
		Typesize: 4,
		Clevel:   9,
		Codec:    format.CodecLZ4,
		Filters:  []format.FilterID{format.FilterShuffle},
		Threads:  2,
	}

	out, err := Compress(context.Background(), p, src)
	require.NoError(t, err)
	assert.Less(t, len(out), 100*1024)

	dest := make([]byte, len(src))
	_, err = Decompress(context.Background(), DParams{Threads: 2}, out, dest)
	require.NoError(t, err)
	assert.Equal(t, src, dest)

	item := make([]byte, 5*4)
	require.NoError(t, GetItem(context.Background(), DParams{Threads: 1}, out, 1000, 5, item))
	for i := 0; i < 5; i++ {
		assert.Equal(t, uint32(1000+i), binary.LittleEndian.Uint32(item[i*4:]))
	}
}

// scenario 4: bitshuffle with a non-multiple-of-8 buffer.
func TestCompress_BitshuffleNonMultipleOf8(t *testing.T) {
	n := 641092 / 4
	src := int32Arange(n)[:641092]
	p := CParams{
		Typesize: 4,
		Clevel:   9,
		Codec:    format.CodecLZ4,
		Filters:  []format.FilterID{format.FilterBitShuffle},
		Threads:  1,
	}

	out, err := Compress(context.Background(), p, src)
	require.NoError(t, err)

	dest := make([]byte, len(src))
	_, err = Decompress(context.Background(), DParams{Threads: 1}, out, dest)
	require.NoError(t, err)
	assert.Equal(t, src, dest)
}

// scenario 6: maskout then unmasked.
func TestDecompress_MaskoutThenFull(t *testing.T) {
	n := 1024 * 128 // 1 MiB of int64
	src := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(src[i*8:], uint64(i))
	}

	p := CParams{
		Typesize:  8,
		Clevel:    5,
		Codec:     format.CodecLZ4,
		Blocksize: 32 * 1024,
		Threads:   1,
	}

	out, err := Compress(context.Background(), p, src)
	require.NoError(t, err)

	h, err := DecodeHeader(out)
	require.NoError(t, err)
	nblocks := h.NBlocks()
	require.Greater(t, nblocks, 1)

	sentinel := byte(0xAB)
	dest := make([]byte, len(src))
	for i := range dest {
		dest[i] = sentinel
	}

	mask := make([]bool, nblocks)
	for i := range mask {
		mask[i] = i%2 == 0 // skip even blocks
	}

	_, err = Decompress(context.Background(), DParams{Threads: 1, Mask: mask}, out, dest)
	require.NoError(t, err)

	for i := 0; i < nblocks; i++ {
		start := i * int(h.Blocksize)
		end := start + h.BlockLen(i)
		if i%2 == 0 {
			for _, b := range dest[start:end] {
				assert.Equal(t, sentinel, b)
			}
		} else {
			assert.Equal(t, src[start:end], dest[start:end])
		}
	}

	for i := range mask {
		assert.False(t, mask[i], "mask must be cleared after use")
	}

	_, err = Decompress(context.Background(), DParams{Threads: 1}, out, dest)
	require.NoError(t, err)
	assert.Equal(t, src, dest)
}

func TestSpecialChunk_Sizes(t *testing.T) {
	z, err := EncodeSpecial(format.SpecialZero, 1_000_000, 8, nil)
	require.NoError(t, err)
	assert.Len(t, z, format.ChunkHeaderLen)

	nanChunk, err := EncodeSpecial(format.SpecialNaN, 1_000_000, 8, nil)
	require.NoError(t, err)
	assert.Len(t, nanChunk, format.ChunkHeaderLen)

	u, err := EncodeSpecial(format.SpecialUninit, 1_000_000, 8, nil)
	require.NoError(t, err)
	assert.Len(t, u, format.ChunkHeaderLen)

	val, err := EncodeSpecial(format.SpecialValue, 1_000_000, 8, make([]byte, 8))
	require.NoError(t, err)
	assert.Len(t, val, format.ChunkHeaderLen+8)
}

func TestSpecialChunk_Zero_Decodes(t *testing.T) {
	enc, err := EncodeSpecial(format.SpecialZero, 1_000_000, 8, nil)
	require.NoError(t, err)

	h, err := DecodeHeader(enc)
	require.NoError(t, err)

	dest := make([]byte, 1_000_000)
	for i := range dest {
		dest[i] = 0xFF
	}
	require.NoError(t, DecodeSpecial(h, enc, dest))
	for _, b := range dest {
		assert.Equal(t, byte(0), b)
	}
}

func TestSpecialChunk_RepeatValue(t *testing.T) {
	value := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	enc, err := EncodeSpecial(format.SpecialValue, 24, 8, value)
	require.NoError(t, err)

	h, err := DecodeHeader(enc)
	require.NoError(t, err)

	dest := make([]byte, 24)
	require.NoError(t, DecodeSpecial(h, enc, dest))
	assert.Equal(t, append(append(append([]byte{}, value...), value...), value...), dest)
}

func TestDecompress_RoundtripViaChunkHeader(t *testing.T) {
	src := int32Arange(5000)
	p := CParams{Typesize: 4, Clevel: 3, Codec: format.CodecZstd, Threads: 4}
	out, err := Compress(context.Background(), p, src)
	require.NoError(t, err)

	h, err := DecodeHeader(out)
	require.NoError(t, err)
	require.NoError(t, ValidateHeader(h, len(out)))
	assert.EqualValues(t, len(src), h.Nbytes)

	// Offsets of non-special blocks must be strictly increasing and
	// inside the chunk.
	var prev int32 = -1
	for i := 0; i < h.NBlocks(); i++ {
		off := int32(binary.LittleEndian.Uint32(out[format.ChunkHeaderLen+4*i:]))
		assert.Greater(t, off, prev)
		assert.GreaterOrEqual(t, off, int32(format.ChunkHeaderLen))
		assert.Less(t, off, int32(len(out)))
		prev = off
	}
}

func TestCompress_PrefilterReplacesSource(t *testing.T) {
	src := make([]byte, 8192)
	for i := range src {
		src[i] = byte(i)
	}

	p := CParams{
		Typesize: 1,
		Clevel:   5,
		Codec:    format.CodecLZ4,
		Threads:  2,
		Prefilter: func(pp PrefilterParams) error {
			for i, b := range pp.Input {
				pp.Output[i] = b ^ 0xFF
			}
			return nil
		},
	}

	out, err := Compress(context.Background(), p, src)
	require.NoError(t, err)

	dest := make([]byte, len(src))
	_, err = Decompress(context.Background(), DParams{Threads: 1}, out, dest)
	require.NoError(t, err)
	for i := range src {
		assert.Equal(t, src[i]^0xFF, dest[i])
	}
}

func TestCompress_PrefilterErrorAbortsChunk(t *testing.T) {
	p := CParams{
		Typesize: 1,
		Clevel:   5,
		Codec:    format.CodecLZ4,
		Threads:  1,
		Prefilter: func(PrefilterParams) error {
			return assert.AnError
		},
	}

	_, err := Compress(context.Background(), p, make([]byte, 1024))
	require.Error(t, err)
}

func TestDecompress_PostfilterReplacesOutput(t *testing.T) {
	src := make([]byte, 8192)
	for i := range src {
		src[i] = byte(i % 31)
	}

	p := CParams{Typesize: 1, Clevel: 5, Codec: format.CodecLZ4, Blocksize: 2048, Threads: 1}
	out, err := Compress(context.Background(), p, src)
	require.NoError(t, err)

	var blocksSeen []int
	dp := DParams{
		Threads: 1,
		Postfilter: func(pp PostfilterParams) error {
			blocksSeen = append(blocksSeen, pp.NBlock)
			for i, b := range pp.Input {
				pp.Output[i] = b + 1
			}
			return nil
		},
	}

	dest := make([]byte, len(src))
	_, err = Decompress(context.Background(), dp, out, dest)
	require.NoError(t, err)
	for i := range src {
		require.Equal(t, src[i]+1, dest[i])
	}
	assert.NotEmpty(t, blocksSeen)
}

func TestGetItem_PostfilterApplies(t *testing.T) {
	src := int32Arange(5000)
	p := CParams{Typesize: 4, Clevel: 5, Codec: format.CodecLZ4, Blocksize: 4096, Threads: 1}
	out, err := Compress(context.Background(), p, src)
	require.NoError(t, err)

	dp := DParams{
		Postfilter: func(pp PostfilterParams) error {
			copy(pp.Output, pp.Input)
			return nil
		},
	}

	item := make([]byte, 4)
	require.NoError(t, GetItem(context.Background(), dp, out, 2500, 1, item))
	assert.Equal(t, uint32(2500), binary.LittleEndian.Uint32(item))
}

func TestCompress_ClevelOutOfRange(t *testing.T) {
	_, err := Compress(context.Background(), CParams{Typesize: 1, Clevel: 42, Codec: format.CodecLZ4}, make([]byte, 16))
	require.Error(t, err)
}

func TestSpecialChunk_NamedConstructors(t *testing.T) {
	z, err := Zeros(4096, 8)
	require.NoError(t, err)
	assert.Len(t, z, format.ChunkHeaderLen)

	nans, err := NaNs(4096, 4)
	require.NoError(t, err)
	assert.Len(t, nans, format.ChunkHeaderLen)
	_, err = NaNs(4096, 2)
	require.Error(t, err)

	u, err := Uninit(4096, 1)
	require.NoError(t, err)
	assert.Len(t, u, format.ChunkHeaderLen)

	v, err := RepeatVal(4096, []byte{9, 8, 7, 6})
	require.NoError(t, err)
	assert.Len(t, v, format.ChunkHeaderLen+4)

	dest := make([]byte, 4096)
	h, err := DecodeHeader(v)
	require.NoError(t, err)
	require.NoError(t, DecodeSpecial(h, v, dest))
	assert.Equal(t, []byte{9, 8, 7, 6}, dest[0:4])
	assert.Equal(t, []byte{9, 8, 7, 6}, dest[4092:4096])
}

func TestGetItem_SpecialValueOffset(t *testing.T) {
	v, err := RepeatVal(4096, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	item := make([]byte, 8)
	require.NoError(t, GetItem(context.Background(), DParams{}, v, 500, 2, item))
	assert.Equal(t, []byte{1, 2, 3, 4, 1, 2, 3, 4}, item)
}

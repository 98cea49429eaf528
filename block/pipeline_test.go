package block

import (
	"math/rand"
	"testing"

	"github.com/blosc2/b2go/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arangeInt32(n int) []byte {
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		v := uint32(i)
		out[i*4+0] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}

	return out
}

func TestForwardInverse_Roundtrip_NoFilterNoSplit(t *testing.T) {
	src := arangeInt32(1000)
	cfg := Config{Codec: format.CodecLZ4, CLevel: 5, Typesize: 4, Split: format.SplitNever}

	payload, incompressible, err := Forward(cfg, src)
	require.NoError(t, err)
	// Without a shuffle filter an int32 arange has almost no repeated
	// 4-byte sequences for LZ4 to match, so the block is kept verbatim.
	assert.True(t, incompressible)

	out, err := Inverse(cfg, payload, len(src))
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestForwardInverse_Roundtrip_ShuffleSplit(t *testing.T) {
	src := arangeInt32(50000)
	cfg := Config{
		Filters:  []format.FilterID{format.FilterShuffle},
		Codec:    format.CodecZstd,
		CLevel:   5,
		Typesize: 4,
		Split:    format.SplitAlways,
	}

	payload, incompressible, err := Forward(cfg, src)
	require.NoError(t, err)
	assert.False(t, incompressible)
	assert.NotZero(t, payload[0]&blockFlagSplit)

	out, err := Inverse(cfg, payload, len(src))
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestForwardInverse_Roundtrip_BitShuffleDelta(t *testing.T) {
	src := arangeInt32(20000)
	cfg := Config{
		Filters:  []format.FilterID{format.FilterDelta, format.FilterBitShuffle},
		Codec:    format.CodecLZ4,
		CLevel:   3,
		Typesize: 4,
		Split:    format.SplitAuto,
	}

	payload, _, err := Forward(cfg, src)
	require.NoError(t, err)

	out, err := Inverse(cfg, payload, len(src))
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestForward_IncompressibleRandomData(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	src := make([]byte, 8192)
	r.Read(src)

	cfg := Config{Codec: format.CodecLZ4, CLevel: 9, Typesize: 1, Split: format.SplitNever}

	payload, incompressible, err := Forward(cfg, src)
	require.NoError(t, err)
	assert.True(t, incompressible)
	assert.Equal(t, blockFlagIncompressible, payload[0])
	assert.Equal(t, src, payload[1:])

	out, err := Inverse(cfg, payload, len(src))
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestShouldSplit(t *testing.T) {
	assert.False(t, shouldSplit(format.SplitNever, 4, 4096))
	assert.True(t, shouldSplit(format.SplitAlways, 4, 4096))
	assert.False(t, shouldSplit(format.SplitAlways, 3, 4096)) // odd typesize never splits
	assert.True(t, shouldSplit(format.SplitForwardCompat, 8, 64))
	assert.False(t, shouldSplit(format.SplitAuto, 4, 4)) // exactly one element
	assert.True(t, shouldSplit(format.SplitAuto, 4, 8))
}

func TestAutoSize_ClampsAndAlignsForBitLevelFilter(t *testing.T) {
	size := AutoSize(4, 9, 10*1024*1024, true)
	assert.LessOrEqual(t, size, format.MaxBlockSize)
	assert.Zero(t, size%(8*4))

	small := AutoSize(8, 5, 100, false)
	assert.Equal(t, 100, small)
}

func TestHasBitLevelFilter(t *testing.T) {
	assert.True(t, HasBitLevelFilter(Config{Filters: []format.FilterID{format.FilterBitShuffle}}))
	assert.False(t, HasBitLevelFilter(Config{Filters: []format.FilterID{format.FilterShuffle}}))
}

package filter

import (
	"math/rand"
	"testing"

	"github.com/blosc2/b2go/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundtrip(t *testing.T, f Filter, src []byte, typesize int) {
	t.Helper()

	shuffled := make([]byte, len(src))
	require.NoError(t, f.Forward(shuffled, src, typesize))

	restored := make([]byte, len(src))
	require.NoError(t, f.Inverse(restored, shuffled, typesize))

	assert.Equal(t, src, restored)
}

func TestGet_BuiltinFilters(t *testing.T) {
	for _, id := range []format.FilterID{format.FilterNone, format.FilterShuffle, format.FilterBitShuffle, format.FilterDelta} {
		f, err := Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, f.ID())
	}
}

func TestGet_UnknownFilter(t *testing.T) {
	_, err := Get(format.FilterTrunc)
	require.Error(t, err)
}

func TestRegister_RejectsOutOfRangeID(t *testing.T) {
	err := Register(noopFilter{})
	require.Error(t, err)
}

func TestShuffle_Roundtrip_Int32Arange(t *testing.T) {
	n := 200_000
	src := make([]byte, n*4)
	for i := 0; i < n; i++ {
		v := uint32(i)
		src[i*4+0] = byte(v)
		src[i*4+1] = byte(v >> 8)
		src[i*4+2] = byte(v >> 16)
		src[i*4+3] = byte(v >> 24)
	}

	f, err := Get(format.FilterShuffle)
	require.NoError(t, err)
	roundtrip(t, f, src, 4)
}

func TestShuffle_RejectsNonMultiple(t *testing.T) {
	f, _ := Get(format.FilterShuffle)
	src := make([]byte, 10)
	dst := make([]byte, 10)
	err := f.Forward(dst, src, 3)
	require.Error(t, err)
}

func TestBitShuffle_RoundtripExactMultiple(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	src := make([]byte, 4*8*10) // typesize=4, exactly 10 quanta
	r.Read(src)

	f, err := Get(format.FilterBitShuffle)
	require.NoError(t, err)
	roundtrip(t, f, src, 4)
}

func TestBitShuffle_RoundtripNonMultipleOf8Typesize(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	src := make([]byte, 641092) // deliberately not a multiple of 8*4
	r.Read(src)

	f, err := Get(format.FilterBitShuffle)
	require.NoError(t, err)
	roundtrip(t, f, src, 4)
}

func TestDelta_RoundtripSequential(t *testing.T) {
	n := 1000
	src := make([]byte, n*8)
	for i := 0; i < n; i++ {
		v := uint64(i * 1000)
		for b := 0; b < 8; b++ {
			src[i*8+b] = byte(v >> (8 * b))
		}
	}

	f, err := Get(format.FilterDelta)
	require.NoError(t, err)
	roundtrip(t, f, src, 8)
}

func TestDelta_RoundtripTypesize1(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	src := make([]byte, 257)
	r.Read(src)

	f, err := Get(format.FilterDelta)
	require.NoError(t, err)
	roundtrip(t, f, src, 1)
}

package codec

import (
	"math/rand"
	"testing"

	"github.com/blosc2/b2go/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundtripCodec(t *testing.T, c Codec, data []byte) {
	t.Helper()

	compressed, err := c.Compress(data, 5)
	require.NoError(t, err)

	restored, err := c.Decompress(compressed)
	require.NoError(t, err)

	assert.Equal(t, data, restored)
}

func TestGet_BuiltinCodecs(t *testing.T) {
	for _, id := range []format.CodecID{format.CodecLZ4, format.CodecLZ4HC, format.CodecZstd, format.CodecZlib} {
		c, err := Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, c.ID())
	}
}

func TestGet_BloscLZUnregisteredByDefault(t *testing.T) {
	_, err := Get(format.CodecBloscLZ)
	require.Error(t, err)
}

func TestGet_S2PreregisteredGlobally(t *testing.T) {
	c, err := Get(format.CodecS2)
	require.NoError(t, err)
	assert.Equal(t, format.CodecS2, c.ID())
}

func TestCodecs_Roundtrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	text := make([]byte, 64*1024)
	for i := range text {
		text[i] = byte('a' + (i % 7)) // compressible, repetitive
	}
	random := make([]byte, 4096)
	r.Read(random)

	for _, id := range []format.CodecID{format.CodecLZ4, format.CodecLZ4HC, format.CodecZstd, format.CodecZlib, format.CodecS2} {
		c, err := Get(id)
		require.NoError(t, err)

		t.Run(id.String()+"/compressible", func(t *testing.T) {
			roundtripCodec(t, c, text)
		})
		t.Run(id.String()+"/random", func(t *testing.T) {
			roundtripCodec(t, c, random)
		})
		t.Run(id.String()+"/empty", func(t *testing.T) {
			roundtripCodec(t, c, nil)
		})
	}
}

func TestNoOp_Identity(t *testing.T) {
	c := NoOp()
	data := []byte("passthrough")

	compressed, err := c.Compress(data, 5)
	require.NoError(t, err)
	assert.Equal(t, data, compressed)

	restored, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}

func TestRegister_RejectsOutOfRangeID(t *testing.T) {
	err := Register(noOpCodec{})
	require.Error(t, err)
}

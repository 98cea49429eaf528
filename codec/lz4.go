package codec

import (
	"errors"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/blosc2/b2go/format"
)

// lz4CompressorPool pools lz4.Compressor instances; the type carries
// internal state that benefits from reuse across calls.
var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

// lz4Codec is the fast (non-HC) LZ4 path.
type lz4Codec struct{}

func (lz4Codec) ID() format.CodecID { return format.CodecLZ4 }

func (lz4Codec) Compress(data []byte, _ int) ([]byte, error) {
	return lz4CompressBlock(data, nil)
}

func (lz4Codec) Decompress(data []byte) ([]byte, error) {
	return lz4DecompressBlock(data)
}

// lz4hcCodec runs the same block format through LZ4's high-compression
// mode: clevel 0 and 1 use lz4.Level1, and higher clevels step toward
// lz4.Level9 at clevel 9.
type lz4hcCodec struct{}

func (lz4hcCodec) ID() format.CodecID { return format.CodecLZ4HC }

func (lz4hcCodec) Compress(data []byte, clevel int) ([]byte, error) {
	level := lz4.CompressionLevel(lz4.Level1)
	if clevel > 0 {
		level = lz4.CompressionLevel(lz4.Level1 + lz4.CompressionLevel(clevel-1)*(lz4.Level9-lz4.Level1)/8)
	}

	return lz4CompressBlock(data, &level)
}

func (lz4hcCodec) Decompress(data []byte) ([]byte, error) {
	return lz4DecompressBlock(data)
}

func lz4CompressBlock(data []byte, hcLevel *lz4.CompressionLevel) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	var (
		n   int
		err error
	)
	if hcLevel != nil {
		hc := lz4.CompressorHC{Level: *hcLevel}
		n, err = hc.CompressBlock(data, dst)
	} else {
		n, err = lc.CompressBlock(data, dst)
	}
	if err != nil {
		return nil, err
	}

	return dst[:n], nil
}

// lz4DecompressBlock decompresses an LZ4 block, growing its scratch
// buffer geometrically when the output doesn't fit (the block's
// decompressed size is not carried inside LZ4's raw block format,
// unlike the chunk header that wraps it).
func lz4DecompressBlock(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	bufSize := len(data) * 4
	const maxSize = 512 * 1024 * 1024

	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, buf)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				continue
			}

			return nil, err
		}

		return buf[:n], nil
	}

	return nil, lz4.ErrInvalidSourceShortBuffer
}

//go:build cgo

package codec

import (
	"github.com/valyala/gozstd"

	"github.com/blosc2/b2go/format"
)

// zstdCodec is the cgo-accelerated zstd path.
type zstdCodec struct{}

func (zstdCodec) ID() format.CodecID { return format.CodecZstd }

func (zstdCodec) Compress(data []byte, clevel int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	level := clevel
	if level <= 0 {
		level = 3
	}

	return gozstd.CompressLevel(nil, data, level), nil
}

func (zstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.Decompress(nil, data)
}

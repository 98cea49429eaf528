//go:build !cgo

package codec

import (
	"github.com/klauspost/compress/zstd"

	"github.com/blosc2/b2go/format"
)

// zstdCodec is the pure-Go zstd path, selected when no cgo toolchain
// is available.
type zstdCodec struct{}

func (zstdCodec) ID() format.CodecID { return format.CodecZstd }

func (zstdCodec) Compress(data []byte, clevel int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(levelFor(clevel)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.EncodeAll(data, nil), nil
}

func (zstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return dec.DecodeAll(data, nil)
}

func levelFor(clevel int) zstd.EncoderLevel {
	switch {
	case clevel <= 0:
		return zstd.SpeedDefault
	case clevel <= 3:
		return zstd.SpeedFastest
	case clevel <= 6:
		return zstd.SpeedDefault
	case clevel <= 8:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

package codec

import (
	"github.com/klauspost/compress/s2"

	"github.com/blosc2/b2go/format"
)

// s2Codec is pre-registered at format.CodecS2 in the global id range
// as the worked example of the registry's runtime extensibility (it is
// not one of the five originally named codecs).
type s2Codec struct{}

func (s2Codec) ID() format.CodecID { return format.CodecS2 }

func (s2Codec) Compress(data []byte, _ int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

func (s2Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Decode(nil, data)
}

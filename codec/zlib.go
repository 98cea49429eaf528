package codec

import (
	"bytes"
	"hash/adler32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/blosc2/b2go/format"
)

// zlibCodec implements the zlib container (RFC 1950: a 2-byte header,
// a raw DEFLATE stream, and an Adler-32 trailer) on top of
// klauspost/compress's drop-in flate implementation.
type zlibCodec struct{}

func (zlibCodec) ID() format.CodecID { return format.CodecZlib }

func (zlibCodec) Compress(data []byte, clevel int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	level := flate.DefaultCompression
	if clevel > 0 && clevel <= 9 {
		level = clevel
	}

	var buf bytes.Buffer
	buf.Write([]byte{0x78, 0x9c}) // zlib header: deflate, default window, check bits

	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	sum := adler32.Checksum(data)
	buf.WriteByte(byte(sum >> 24))
	buf.WriteByte(byte(sum >> 16))
	buf.WriteByte(byte(sum >> 8))
	buf.WriteByte(byte(sum))

	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 6 {
		return nil, io.ErrUnexpectedEOF
	}

	r := flate.NewReader(bytes.NewReader(data[2 : len(data)-4]))
	defer r.Close()

	return io.ReadAll(r)
}

// Package codec implements the byte-reducing compression stage that
// runs last in the forward block pipeline and first in the inverse.
// Codecs are looked up by id across three ranges: 0..31 built-in,
// 32..159 globally registered, 160..255 user-registered.
package codec

import (
	"fmt"
	"sync"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Compressor compresses a byte slice at a given compression level.
type Compressor interface {
	Compress(data []byte, clevel int) ([]byte, error)
}

// Decompressor decompresses a byte slice previously produced by the
// matching Compressor.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines compression and decompression for one algorithm.
type Codec interface {
	ID() format.CodecID
	Compressor
	Decompressor
}

var (
	mu       sync.RWMutex
	builtin  = map[format.CodecID]Codec{}
	registry = map[format.CodecID]Codec{}
)

func registerBuiltin(c Codec) {
	builtin[c.ID()] = c
}

func init() {
	registerBuiltin(noOpCodec{})
	registerBuiltin(lz4Codec{})
	registerBuiltin(lz4hcCodec{})
	registerBuiltin(zstdCodec{})
	// CodecBloscLZ stays unimplemented here; its id is reserved so a
	// caller can Register a real implementation without changing the
	// wire format.
	registerBuiltin(zlibCodec{})

	mu.Lock()
	registry[format.CodecS2] = s2Codec{}
	mu.Unlock()
}

// Register adds a codec to the global (32..159) or user (160..255)
// range, or at the reserved format.CodecBloscLZ id.
func Register(c Codec) error {
	id := c.ID()
	inGlobal := id >= format.CodecGlobalMin && id <= format.CodecGlobalMax
	inUser := id >= format.CodecUserRangeMin && id <= format.CodecUserRangeMax
	if !inGlobal && !inUser && id != format.CodecBloscLZ {
		return errs.New(errs.InvalidParam, fmt.Sprintf("codec id %d outside global/user ranges", uint8(id)))
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[id]; exists {
		return errs.New(errs.InvalidParam, fmt.Sprintf("codec id %d already registered", uint8(id)))
	}
	registry[id] = c

	return nil
}

// Get looks up a codec by id.
func Get(id format.CodecID) (Codec, error) {
	if c, ok := builtin[id]; ok {
		return c, nil
	}

	mu.RLock()
	c, ok := registry[id]
	mu.RUnlock()
	if ok {
		return c, nil
	}

	if id == format.CodecBloscLZ {
		return nil, errs.New(errs.CodecUnsupported, "BloscLZ has no built-in implementation; register one via codec.Register")
	}

	return nil, errs.New(errs.CodecUnsupported, fmt.Sprintf("unknown codec id %d", uint8(id)))
}

// noOpCodec is the memcpy codec: it never reduces size, used internally
// by the chunk compressor's memcpy fallback.
// It is registered as a built-in at an id in the tail of the built-in
// range, so Get returns it for that id and Register can never hand the
// id to another codec.
type noOpCodec struct{}

func (noOpCodec) ID() format.CodecID                          { return format.CodecID(30) }
func (noOpCodec) Compress(data []byte, _ int) ([]byte, error) { return data, nil }
func (noOpCodec) Decompress(data []byte) ([]byte, error)      { return data, nil }

// NoOp returns the identity codec used by the chunk compressor's
// memcpy fallback path.
func NoOp() Codec { return noOpCodec{} }

package frame

import (
	"context"
	"encoding/binary"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/internal/hash"
	"github.com/blosc2/b2go/schunk"
)

// trailer carries the fixed metalayer table, the variable-length
// metalayer table, and the per-chunk offset index, followed by
// an 8-byte xxhash64 digest over everything that precedes it in the
// frame (header + chunk payloads + trailer content).
//
// Both tables are serialized as their raw (uncompressed) content: Meta
// already stores content uncompressed, and VLMeta's own compression is
// re-derived on FromBuffer via VLMeta.Add rather than duplicating its
// private wire format here.
type trailer struct {
	metaNames     []string
	metaContent   [][]byte
	vlmetaNames   []string
	vlmetaContent [][]byte
	offsets       []int64
}

func putString(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)

	return append(buf, s...)
}

func putBytes(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)

	return append(buf, b...)
}

func getString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, errs.New(errs.InvalidHeader, "frame trailer truncated")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return "", nil, errs.New(errs.InvalidHeader, "frame trailer truncated")
	}

	return string(buf[:n]), buf[n:], nil
}

func getBytes(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, errs.New(errs.InvalidHeader, "frame trailer truncated")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, errs.New(errs.InvalidHeader, "frame trailer truncated")
	}
	out := append([]byte(nil), buf[:n]...)

	return out, buf[n:], nil
}

// encode serializes the trailer's content (everything but the final
// digest, which the caller appends once it knows the full byte range
// to hash).
func (t trailer) encode() []byte {
	var buf []byte

	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(t.metaNames)))
	buf = append(buf, n[:]...)
	for i, name := range t.metaNames {
		buf = putString(buf, name)
		buf = putBytes(buf, t.metaContent[i])
	}

	binary.LittleEndian.PutUint32(n[:], uint32(len(t.vlmetaNames)))
	buf = append(buf, n[:]...)
	for i, name := range t.vlmetaNames {
		buf = putString(buf, name)
		buf = putBytes(buf, t.vlmetaContent[i])
	}

	binary.LittleEndian.PutUint32(n[:], uint32(len(t.offsets)))
	buf = append(buf, n[:]...)
	for _, off := range t.offsets {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(off))
		buf = append(buf, b[:]...)
	}

	return buf
}

// decodeTrailer parses a trailer from the head of buf and also returns
// how many bytes it consumed, so callers can locate the digest that
// follows (and, for concatenated frames, the end of this frame).
func decodeTrailer(buf []byte) (trailer, int, error) {
	var t trailer
	full := len(buf)

	if len(buf) < 4 {
		return t, 0, errs.New(errs.InvalidHeader, "frame trailer truncated")
	}
	nMeta := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	for i := uint32(0); i < nMeta; i++ {
		var name string
		var content []byte
		var err error
		if name, buf, err = getString(buf); err != nil {
			return t, 0, err
		}
		if content, buf, err = getBytes(buf); err != nil {
			return t, 0, err
		}
		t.metaNames = append(t.metaNames, name)
		t.metaContent = append(t.metaContent, content)
	}

	if len(buf) < 4 {
		return t, 0, errs.New(errs.InvalidHeader, "frame trailer truncated")
	}
	nVL := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	for i := uint32(0); i < nVL; i++ {
		var name string
		var content []byte
		var err error
		if name, buf, err = getString(buf); err != nil {
			return t, 0, err
		}
		if content, buf, err = getBytes(buf); err != nil {
			return t, 0, err
		}
		t.vlmetaNames = append(t.vlmetaNames, name)
		t.vlmetaContent = append(t.vlmetaContent, content)
	}

	if len(buf) < 4 {
		return t, 0, errs.New(errs.InvalidHeader, "frame trailer truncated")
	}
	nOff := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	for i := uint32(0); i < nOff; i++ {
		if len(buf) < 8 {
			return t, 0, errs.New(errs.InvalidHeader, "frame trailer truncated")
		}
		t.offsets = append(t.offsets, int64(binary.LittleEndian.Uint64(buf[:8])))
		buf = buf[8:]
	}

	return t, full - len(buf), nil
}

// buildTrailer snapshots s's metalayers into a trailer value, given
// the already-computed per-chunk offsets.
func buildTrailer(ctx context.Context, s *schunk.Schunk, offsets []int64) (trailer, error) {
	var t trailer
	t.offsets = offsets

	for _, name := range s.Meta().Names() {
		content, ok := s.Meta().Get(name)
		if !ok {
			continue
		}
		t.metaNames = append(t.metaNames, name)
		t.metaContent = append(t.metaContent, content)
	}

	for _, name := range s.VLMeta().Names() {
		content, err := s.VLMeta().Get(ctx, name)
		if err != nil {
			return t, err
		}
		t.vlmetaNames = append(t.vlmetaNames, name)
		t.vlmetaContent = append(t.vlmetaContent, content)
	}

	return t, nil
}

// restoreMetalayers replays a decoded trailer's tables onto a freshly
// built schunk via its public Meta/VLMeta APIs.
func restoreMetalayers(ctx context.Context, s *schunk.Schunk, t trailer) error {
	for i, name := range t.metaNames {
		if err := s.Meta().Add(name, t.metaContent[i]); err != nil {
			return err
		}
	}
	for i, name := range t.vlmetaNames {
		if err := s.VLMeta().Add(ctx, name, t.vlmetaContent[i]); err != nil {
			return err
		}
	}

	return nil
}

// digest computes the integrity digest over everything preceding the
// trailer's own 8-byte digest field.
func digest(b []byte) uint64 {
	return hash.Digest(b)
}

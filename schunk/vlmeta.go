package schunk

import (
	"context"
	"sync"

	"github.com/blosc2/b2go/chunk"
	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
	"github.com/blosc2/b2go/internal/envcfg"
)

// VLMeta is the variable-length metalayer registry: unlike
// Meta, entries are fully mutable (content may grow, shrink, or be
// deleted at any time) and their content is itself compressed before
// storage, using the cparams last set by SetCParams (LZ4, clevel 5,
// typesize 1 by default).
type VLMeta struct {
	mu      sync.RWMutex
	cparams chunk.CParams
	order   []string
	data    map[string][]byte // compressed content, keyed by name
	rawLen  map[string]int    // uncompressed length, for Get's dest sizing
}

func newVLMeta() *VLMeta {
	return &VLMeta{
		cparams: chunk.CParams{Typesize: 1, Clevel: 5, Codec: format.CodecLZ4},
		data:    make(map[string][]byte),
		rawLen:  make(map[string]int),
	}
}

// SetCParams overrides the compression parameters used for content
// compressed by subsequent Add/Update calls; entries already stored
// keep whatever parameters compressed them.
func (v *VLMeta) SetCParams(cp chunk.CParams) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cparams = cp
}

// Add compresses content and stores it under name, which must not
// already exist. The ~8192-entry cap is soft: past it, Add still
// succeeds but emits a BLOSC_TRACE line rather than failing.
func (v *VLMeta) Add(ctx context.Context, name string, content []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(name) == 0 {
		return errs.New(errs.InvalidParam, "vlmeta name must not be empty")
	}
	if _, exists := v.data[name]; exists {
		return errs.New(errs.InvalidParam, "vlmeta name already exists")
	}

	enc, err := chunk.Compress(ctx, v.cparams, content)
	if err != nil {
		return errs.Wrap(errs.InvalidParam, "vlmeta compress", err)
	}

	if len(v.order) >= format.MaxVLMetalayers {
		envcfg.Trace(errs.InvalidParam, "vlmeta table exceeds the soft cap of format.MaxVLMetalayers entries")
	}

	v.order = append(v.order, name)
	v.data[name] = enc
	v.rawLen[name] = len(content)

	return nil
}

// Get implements vlmeta_get: decompresses and returns name's content.
func (v *VLMeta) Get(ctx context.Context, name string) ([]byte, error) {
	v.mu.RLock()
	enc, ok := v.data[name]
	n := v.rawLen[name]
	dp := chunk.DParams{}
	v.mu.RUnlock()

	if !ok {
		return nil, errs.New(errs.NotFound, "unknown vlmeta entry")
	}

	dest := make([]byte, n)
	if _, err := chunk.Decompress(ctx, dp, enc, dest); err != nil {
		return nil, err
	}

	return dest, nil
}

// Update implements vlmeta_update: content may grow or shrink freely,
// unlike a fixed metalayer.
func (v *VLMeta) Update(ctx context.Context, name string, content []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.data[name]; !ok {
		return errs.New(errs.NotFound, "unknown vlmeta entry")
	}

	enc, err := chunk.Compress(ctx, v.cparams, content)
	if err != nil {
		return errs.Wrap(errs.InvalidParam, "vlmeta compress", err)
	}

	v.data[name] = enc
	v.rawLen[name] = len(content)

	return nil
}

// Delete implements vlmeta_delete.
func (v *VLMeta) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.data[name]; !ok {
		return errs.New(errs.NotFound, "unknown vlmeta entry")
	}

	delete(v.data, name)
	delete(v.rawLen, name)
	for i, n := range v.order {
		if n == name {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}

	return nil
}

// Exists implements vlmeta_exists.
func (v *VLMeta) Exists(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.data[name]

	return ok
}

// Names implements vlmeta_get_names: insertion order, survivors of
// any Delete calls.
func (v *VLMeta) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return append([]string(nil), v.order...)
}

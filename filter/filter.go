// Package filter implements the reversible, byte-preserving
// transforms that run block-wise before the codec in the forward
// direction, and after it in the inverse direction. Filters are looked
// up by format.FilterID through a process-wide registry spanning the
// built-in, global, and user id ranges.
package filter

import (
	"fmt"
	"sync"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Filter is a reversible, byte-count-preserving block transform.
//
// Forward and Inverse both receive the full block and must write
// exactly len(src) bytes to dst. typesize is the logical element size
// the filter operates on.
type Filter interface {
	// ID returns the filter's registered id.
	ID() format.FilterID
	// Forward applies the filter, writing the transformed bytes to dst.
	Forward(dst, src []byte, typesize int) error
	// Inverse undoes Forward, writing the original bytes to dst.
	Inverse(dst, src []byte, typesize int) error
}

var (
	mu        sync.RWMutex
	builtin   = map[format.FilterID]Filter{}
	registry  = map[format.FilterID]Filter{} // global + user ranges
)

func registerBuiltin(f Filter) {
	builtin[f.ID()] = f
}

func init() {
	registerBuiltin(noopFilter{})
	registerBuiltin(shuffleFilter{})
	registerBuiltin(bitShuffleFilter{})
	registerBuiltin(deltaFilter{})
	// FilterTrunc (truncate-precision) is deliberately unregistered;
	// the id is reserved so a caller can Register a real implementation
	// without changing the wire format.
}

// Register adds a filter to the global (32..159) or user (128..255)
// range, or at the reserved format.FilterTrunc id. Registration is
// process-global and one-shot per id.
func Register(f Filter) error {
	id := f.ID()
	inGlobal := id >= format.FilterGlobalMin && id <= format.FilterGlobalMax
	inUser := id >= format.FilterUserRangeMin && id <= format.FilterUserRangeMax
	if !inGlobal && !inUser && id != format.FilterTrunc {
		return errs.New(errs.InvalidParam, fmt.Sprintf("filter id %d outside global/user ranges", uint8(id)))
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[id]; exists {
		return errs.New(errs.InvalidParam, fmt.Sprintf("filter id %d already registered", uint8(id)))
	}
	registry[id] = f

	return nil
}

// Get looks up a filter by id across built-in then registered ranges.
func Get(id format.FilterID) (Filter, error) {
	if id == format.FilterNone {
		return noopFilter{}, nil
	}

	if f, ok := builtin[id]; ok {
		return f, nil
	}

	mu.RLock()
	f, ok := registry[id]
	mu.RUnlock()
	if ok {
		return f, nil
	}

	return nil, errs.New(errs.FilterPipeline, fmt.Sprintf("unknown filter id %d", uint8(id)))
}

// noopFilter is FilterNone: an identity transform, used to fill empty
// pipeline slots.
type noopFilter struct{}

func (noopFilter) ID() format.FilterID { return format.FilterNone }
func (noopFilter) Forward(dst, src []byte, _ int) error {
	copy(dst, src)
	return nil
}
func (noopFilter) Inverse(dst, src []byte, _ int) error {
	copy(dst, src)
	return nil
}

// Package ioback implements the pluggable I/O backend layer: an
// open/close/size/read/write/truncate/destroy surface that the frame
// package uses instead of talking to the filesystem directly, plus the
// global backend registry keyed by format.BackendID (0 = stdio,
// 1 = mmap).
package ioback

import (
	"fmt"
	"sync"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Mode selects how a backend opens its named resource.
type Mode int

const (
	// ModeRead opens an existing resource read-only.
	ModeRead Mode = iota
	// ModeReadWrite opens an existing resource for read and write.
	ModeReadWrite
	// ModeWriteCreate creates (or truncates) a resource for writing.
	ModeWriteCreate
	// ModeCopyOnWrite opens an existing resource for private,
	// copy-on-write mutation: writes never reach the backing resource.
	ModeCopyOnWrite
)

// Backend abstracts a named byte-addressable resource (a file path
// for the built-ins). A Backend is opened once and closed once; it is
// not safe for concurrent use by multiple goroutines without external
// synchronization, matching the rest of blosc2go's
// caller-serializes-mutation contract.
type Backend interface {
	// ID returns the backend's registered id.
	ID() format.BackendID
	// Open opens name in the given mode.
	Open(name string, mode Mode) error
	// Close releases the backend's resources. For the mmap backend
	// this flushes dirty pages (msync) before unmapping.
	Close() error
	// Size returns the current size of the backing resource.
	Size() (int64, error)
	// ReadAt reads n bytes starting at off. When
	// IsAllocationNecessary is false, the returned slice may alias the
	// backend's own memory (a view into an mmap'd region) instead of a
	// copy; callers must not retain it past the next mutating call.
	ReadAt(off int64, n int) ([]byte, error)
	// WriteAt writes p at off, extending the resource if needed.
	WriteAt(off int64, p []byte) error
	// Truncate resizes the backing resource to size.
	Truncate(size int64) error
	// Destroy releases the backend's handle, removing the backing
	// resource if the backend owns a temporary one; a Destroy is
	// always preceded by Close.
	Destroy() error
	// IsAllocationNecessary reports whether ReadAt must copy into a
	// fresh allocation (true for stdio; false for mmap, which can hand
	// back a view into the mapped region).
	IsAllocationNecessary() bool
}

// Factory constructs a fresh, unopened Backend instance.
type Factory func() Backend

var (
	mu       sync.RWMutex
	builtin  = map[format.BackendID]Factory{}
	registry = map[format.BackendID]Factory{}
)

func registerBuiltin(id format.BackendID, f Factory) {
	builtin[id] = f
}

func init() {
	registerBuiltin(format.BackendStdio, func() Backend { return NewStdio() })
	registerBuiltin(format.BackendMmap, func() Backend { return NewMmap() })
}

// Register adds a backend factory to the global (32..159) or user
// (160..255) id range; registration is process-global and one-shot
// per id.
func Register(id format.BackendID, f Factory) error {
	inGlobal := id >= format.BackendGlobalMin && id <= format.BackendGlobalMax
	inUser := id >= format.BackendUserRangeMin && id <= format.BackendUserRangeMax
	if !inGlobal && !inUser {
		return errs.New(errs.InvalidParam, fmt.Sprintf("backend id %d outside global/user ranges", uint8(id)))
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[id]; exists {
		return errs.New(errs.InvalidParam, fmt.Sprintf("backend id %d already registered", uint8(id)))
	}
	registry[id] = f

	return nil
}

// New constructs a fresh Backend for id. The frame header records
// which id produced a given frame so a later Open can dispatch
// to the matching backend automatically.
func New(id format.BackendID) (Backend, error) {
	if f, ok := builtin[id]; ok {
		return f(), nil
	}

	mu.RLock()
	f, ok := registry[id]
	mu.RUnlock()
	if ok {
		return f(), nil
	}

	return nil, errs.New(errs.PluginIO, fmt.Sprintf("unknown I/O backend id %d", uint8(id)))
}

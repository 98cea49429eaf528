package ioback

import (
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Mmap is the memory-mapped backend. ReadAt hands back a slice
// directly into the mapping (IsAllocationNecessary is false); writes
// that extend the file remap the region.
type Mmap struct {
	f    *os.File
	m    mmap.MMap
	mode Mode
}

// NewMmap constructs an unopened Mmap backend.
func NewMmap() *Mmap { return &Mmap{} }

func (b *Mmap) ID() format.BackendID { return format.BackendMmap }

func (b *Mmap) Open(name string, mode Mode) error {
	var flag int
	switch mode {
	case ModeRead, ModeCopyOnWrite:
		flag = os.O_RDONLY
	case ModeReadWrite:
		flag = os.O_RDWR
	case ModeWriteCreate:
		flag = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	default:
		return errs.New(errs.InvalidParam, "unknown io backend mode")
	}

	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		return errs.Wrap(errs.PluginIO, "mmap open", err)
	}
	b.f = f
	b.mode = mode

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return errs.Wrap(errs.PluginIO, "mmap stat", err)
	}
	if fi.Size() == 0 {
		// mmap-go refuses to map a zero-length file; defer mapping until
		// the first Truncate/WriteAt grows it.
		return nil
	}

	return b.remap()
}

func (b *Mmap) remap() error {
	if b.m != nil {
		if err := b.m.Unmap(); err != nil {
			return errs.Wrap(errs.PluginIO, "mmap unmap", err)
		}
		b.m = nil
	}

	prot := mmap.RDONLY
	switch b.mode {
	case ModeReadWrite, ModeWriteCreate:
		prot = mmap.RDWR
	case ModeCopyOnWrite:
		prot = mmap.COPY
	}

	m, err := mmap.Map(b.f, prot, 0)
	if err != nil {
		return errs.Wrap(errs.PluginIO, "mmap map", err)
	}
	b.m = m

	return nil
}

func (b *Mmap) Close() error {
	if b.m != nil {
		if err := b.m.Flush(); err != nil {
			return errs.Wrap(errs.PluginIO, "mmap flush", err)
		}
		if err := b.m.Unmap(); err != nil {
			return errs.Wrap(errs.PluginIO, "mmap unmap", err)
		}
		b.m = nil
	}
	if b.f != nil {
		err := b.f.Close()
		b.f = nil
		if err != nil {
			return errs.Wrap(errs.PluginIO, "mmap close", err)
		}
	}

	return nil
}

func (b *Mmap) Size() (int64, error) {
	fi, err := b.f.Stat()
	if err != nil {
		return 0, errs.Wrap(errs.PluginIO, "mmap stat", err)
	}

	return fi.Size(), nil
}

// ReadAt returns a slice directly into the mapping; the caller must
// not retain it past a call that remaps (Truncate, or a WriteAt that
// extends the file), since remap invalidates the old mapping's
// backing memory.
func (b *Mmap) ReadAt(off int64, n int) ([]byte, error) {
	if b.m == nil || int64(len(b.m)) < off+int64(n) {
		return nil, errs.New(errs.ReadBufferTooSmall, "mmap read past end of mapping")
	}

	return b.m[off : off+int64(n)], nil
}

func (b *Mmap) WriteAt(off int64, p []byte) error {
	need := off + int64(len(p))
	if b.m == nil || int64(len(b.m)) < need {
		if err := b.Truncate(need); err != nil {
			return err
		}
	}
	copy(b.m[off:need], p)

	return nil
}

func (b *Mmap) Truncate(size int64) error {
	if err := b.f.Truncate(size); err != nil {
		return errs.Wrap(errs.PluginIO, "mmap truncate", err)
	}
	if size == 0 {
		if b.m != nil {
			if err := b.m.Unmap(); err != nil {
				return errs.Wrap(errs.PluginIO, "mmap unmap", err)
			}
			b.m = nil
		}

		return nil
	}

	return b.remap()
}

func (b *Mmap) Destroy() error {
	if b.f != nil {
		return b.Close()
	}

	return nil
}

func (b *Mmap) IsAllocationNecessary() bool { return false }

package ioback

import (
	"io"
	"os"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Stdio is the reference backend: plain os.File reads and writes, no
// memory mapping. It is the fallback when mmap isn't available or
// wanted.
type Stdio struct {
	f *os.File
}

// NewStdio constructs an unopened Stdio backend.
func NewStdio() *Stdio { return &Stdio{} }

func (s *Stdio) ID() format.BackendID { return format.BackendStdio }

func (s *Stdio) Open(name string, mode Mode) error {
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
		return errs.Wrap(errs.PluginIO, "stdio open", err)
	}
	s.f = f

	return nil
}

func (s *Stdio) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return errs.Wrap(errs.PluginIO, "stdio close", err)
	}

	return nil
}

func (s *Stdio) Size() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, errs.Wrap(errs.PluginIO, "stdio stat", err)
	}

	return fi.Size(), nil
}

// ReadAt always copies into a fresh n-byte allocation: stdio has no
// memory to alias (see IsAllocationNecessary).
func (s *Stdio) ReadAt(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := s.f.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.PluginIO, "stdio read", err)
	}

	return buf, nil
}

func (s *Stdio) WriteAt(off int64, p []byte) error {
	if _, err := s.f.WriteAt(p, off); err != nil {
		return errs.Wrap(errs.PluginIO, "stdio write", err)
	}

	return nil
}

func (s *Stdio) Truncate(size int64) error {
	if err := s.f.Truncate(size); err != nil {
		return errs.Wrap(errs.PluginIO, "stdio truncate", err)
	}

	return nil
}

func (s *Stdio) Destroy() error {
	if s.f != nil {
		if err := s.Close(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Stdio) IsAllocationNecessary() bool { return true }

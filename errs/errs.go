// Package errs defines the stable error-kind taxonomy used
// across blosc2go. Every public operation that can fail returns an
// error wrapping one of these Codes, so callers can branch on kind via
// errors.Is without parsing messages.
package errs

import "fmt"

// Code is a stable error kind. Values never change meaning or number
// across releases; new kinds are appended, never renumbered.
type Code int

const (
	Success Code = 0

	InvalidHeader Code = -(iota + 1)
	InvalidParam
	MemoryAlloc
	ReadBufferTooSmall
	WriteBufferTooSmall
	CodecUnsupported
	FileOpen
	FileRead
	FileWrite
	FileTruncate
	FileRemove
	ChunkAppend
	ChunkInsert
	ChunkUpdate
	TwoGBLimit
	SchunkCopy
	FrameType
	ThreadCreate
	Postfilter
	PluginIO
	NotFound
	RunLength
	FilterPipeline
)

var codeNames = map[Code]string{
	Success:             "success",
	InvalidHeader:       "invalid-header",
	InvalidParam:        "invalid-param",
	MemoryAlloc:         "memory-alloc",
	ReadBufferTooSmall:  "read-buffer-too-small",
	WriteBufferTooSmall: "write-buffer-too-small",
	CodecUnsupported:    "codec-unsupported",
	FileOpen:            "file-open",
	FileRead:            "file-read",
	FileWrite:           "file-write",
	FileTruncate:        "file-truncate",
	FileRemove:          "file-remove",
	ChunkAppend:         "chunk-append",
	ChunkInsert:         "chunk-insert",
	ChunkUpdate:         "chunk-update",
	TwoGBLimit:          "2gb-limit",
	SchunkCopy:          "schunk-copy",
	FrameType:           "frame-type",
	ThreadCreate:        "thread-create",
	Postfilter:          "postfilter",
	PluginIO:            "plugin-io",
	NotFound:            "not-found",
	RunLength:           "run-length",
	FilterPipeline:      "filter-pipeline",
}

// String returns the stable, lower-kebab-case name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return fmt.Sprintf("code(%d)", int(c))
}

// Error wraps a Code with a human-readable message and an optional
// underlying cause. The Code is the stable contract; the message
// is for humans only and may change between releases.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the same Code, so errors.Is(err,
// errs.New(errs.NotFound, "")) style comparisons work against a bare
// sentinel built from the same code.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == other.Code
}

// New builds an *Error for the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap builds an *Error for the given code, message, and cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Cause: cause}
}

// Sentinel returns a bare *Error carrying only a code, suitable as the
// target of errors.Is checks, e.g. errors.Is(err, errs.Sentinel(errs.NotFound)).
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

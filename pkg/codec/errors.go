package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jpfielding/pixkit.go/pkg/raster"
)

// Failure kinds. Use errors.Is against these to tell a broken file from one
// this library does not handle.
var (
	ErrFormat      = errors.New("not a valid file of this format")
	ErrTruncated   = errors.New("truncated")
	ErrCorrupt     = errors.New("corrupt data")
	ErrUnsupported = errors.New("unsupported")
	ErrMemory      = errors.New("cannot allocate buffer")
	ErrIO          = errors.New("i/o failure")
	ErrPage        = errors.New("page out of range")
)

// Error is a load or save failure of one format.
type Error struct {
	Format string
	Kind   error
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(e.Format))
	sb.WriteString(": ")
	sb.WriteString(e.Kind.Error())
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an Error of the given kind.
func Errorf(name string, kind error, msg string, args ...any) error {
	return &Error{Format: name, Kind: kind, Msg: fmt.Sprintf(msg, args...)}
}

// ReadError classifies a failed read: end of stream is ErrTruncated,
// anything else ErrIO.
func ReadError(name, what string, err error) error {
	kind := ErrIO
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		kind = ErrTruncated
	}
	return &Error{Format: name, Kind: kind, Msg: "reading " + what, Err: err}
}

// WriteError wraps a failed write.
func WriteError(name, what string, err error) error {
	return &Error{Format: name, Kind: ErrIO, Msg: "writing " + what, Err: err}
}

// AllocError classifies a failed raster allocation. Sizes that can never be
// valid point at a corrupt header.
func AllocError(name string, err error) error {
	kind := ErrMemory
	if errors.Is(err, raster.ErrInvalidSize) {
		kind = ErrCorrupt
	}
	return &Error{Format: name, Kind: kind, Err: err}
}

package remotefs

import (
	"errors"
	"os"
	"strings"

	"github.com/pkg/sftp"
)

// SFTP status codes surfaced through Error.Code.
const (
	CodeEOF              uint32 = 1
	CodeNoSuchFile       uint32 = 2
	CodePermissionDenied uint32 = 3
	CodeFailure          uint32 = 4
)

// Error kinds. Test for them with errors.Is.
var (
	ErrNotConnected        = errors.New("no sftp connection available")
	ErrAlreadyConnected    = errors.New("an existing sftp connection is already defined")
	ErrConnectionLost      = errors.New("connection ended unexpectedly")
	ErrRemoteTypeDetection = errors.New("failed to determine remote server type")
	ErrNoSuchFile          = errors.New("no such file")
	ErrBadDirectoryPath    = errors.New("bad directory path")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrBufferLimit         = errors.New("file exceeds buffer limit")
)

// Error describes a failed operation.
type Error struct {
	Op   string
	Path string
	// Kind is one of the Err* sentinels, or nil for a failure passed through
	// from the server unchanged.
	Kind error
	// Code is the SFTP status code of the underlying failure, 0 if none.
	Code uint32
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Code returns the SFTP status code carried by err, or 0.
func Code(err error) uint32 {
	var e *Error
	if errors.As(err, &e) && e.Code != 0 {
		return e.Code
	}
	return statusCode(err)
}

func statusCode(err error) uint32 {
	var se *sftp.StatusError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, os.ErrNotExist):
		return CodeNoSuchFile
	case errors.Is(err, os.ErrPermission):
		return CodePermissionDenied
	}
	return 0
}

// newError classifies err returned by a primitive.
func newError(op, path string, err error) *Error {
	code := statusCode(err)
	e := &Error{Op: op, Path: path, Code: code, Err: err}
	switch code {
	case CodeNoSuchFile:
		e.Kind = ErrNoSuchFile
	case CodePermissionDenied:
		e.Kind = ErrPermissionDenied
	}
	return e
}

func isNoSuchFile(err error) bool {
	return Code(err) == CodeNoSuchFile
}

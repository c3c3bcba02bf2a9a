package remotefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/pkg/sftp"
)

func TestNewError_Classifies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		code uint32
	}{
		{"not exist", &fs.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}, ErrNoSuchFile, CodeNoSuchFile},
		{"permission", os.ErrPermission, ErrPermissionDenied, CodePermissionDenied},
		{"status failure", &sftp.StatusError{Code: CodeFailure}, nil, CodeFailure},
		{"wrapped status", fmt.Errorf("op: %w", &sftp.StatusError{Code: CodeNoSuchFile}), ErrNoSuchFile, CodeNoSuchFile},
		{"plain", errors.New("boom"), nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newError("op", "/p", tt.err)
			if e.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.kind)
			}
			if e.Code != tt.code {
				t.Errorf("Code = %d, want %d", e.Code, tt.code)
			}
			if !errors.Is(e, tt.err) {
				t.Error("underlying error not reachable through errors.Is")
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	e := &Error{Op: "delete", Path: "/x", Kind: ErrNoSuchFile, Err: os.ErrNotExist}
	msg := e.Error()
	for _, want := range []string{"delete", "/x", "no such file"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	e = &Error{Op: "connect", Kind: ErrNotConnected}
	if got := e.Error(); got != "connect: no sftp connection available" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCode(t *testing.T) {
	if Code(nil) != 0 {
		t.Error("Code(nil) != 0")
	}
	if Code(&Error{Code: 7}) != 7 {
		t.Error("Code should prefer the recorded code")
	}
	if Code(os.ErrNotExist) != CodeNoSuchFile {
		t.Error("Code(ErrNotExist) != 2")
	}
}

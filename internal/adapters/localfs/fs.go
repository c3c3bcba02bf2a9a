// Package localfs implements the LocalFS port on top of an afero filesystem.
package localfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/acolita/remotefs/internal/ports"
	"github.com/spf13/afero"
)

var errIsDir = errors.New("is a directory")

// FS implements ports.LocalFS.
type FS struct {
	fs afero.Fs
}

// New returns an FS backed by fs. A nil fs means the operating system.
func New(fs afero.Fs) *FS {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FS{fs: fs}
}

// RealPath returns the absolute, cleaned form of path. Symbolic links are
// resolved only on the operating system filesystem.
func (f *FS) RealPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, ok := f.fs.(*afero.OsFs); ok {
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", err
		}
		return resolved, nil
	}
	if _, err := f.fs.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// CheckReadable opens and immediately closes path.
func (f *FS) CheckReadable(path string) error {
	fi, err := f.fs.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return &os.PathError{Op: "open", Path: path, Err: errIsDir}
	}
	file, err := f.fs.Open(path)
	if err != nil {
		return err
	}
	return file.Close()
}

// Open opens path for reading.
func (f *FS) Open(path string) (io.ReadCloser, error) {
	return f.fs.Open(path)
}

// Create creates or truncates path.
func (f *FS) Create(path string) (io.WriteCloser, error) {
	return f.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

var _ ports.LocalFS = (*FS)(nil)

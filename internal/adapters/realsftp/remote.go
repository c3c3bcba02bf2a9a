// Package realsftp adapts *sftp.Client to the RemoteFS port.
package realsftp

import (
	"os"

	"github.com/acolita/remotefs/internal/ports"
	"github.com/pkg/sftp"
)

// Remote implements ports.RemoteFS on top of a pkg/sftp client.
type Remote struct {
	c *sftp.Client
}

// New wraps c.
func New(c *sftp.Client) *Remote {
	return &Remote{c: c}
}

func (r *Remote) RealPath(path string) (string, error) {
	return r.c.RealPath(path)
}

func (r *Remote) ReadDir(path string) ([]os.FileInfo, error) {
	return r.c.ReadDir(path)
}

func (r *Remote) Mkdir(path string) error {
	return r.c.Mkdir(path)
}

func (r *Remote) RemoveDirectory(path string) error {
	return r.c.RemoveDirectory(path)
}

func (r *Remote) Rename(oldPath, newPath string) error {
	return r.c.Rename(oldPath, newPath)
}

func (r *Remote) Remove(path string) error {
	return r.c.Remove(path)
}

func (r *Remote) Stat(path string) (os.FileInfo, error) {
	return r.c.Stat(path)
}

func (r *Remote) Chmod(path string, mode os.FileMode) error {
	return r.c.Chmod(path, mode)
}

func (r *Remote) Open(path string) (ports.RemoteFile, error) {
	f, err := r.c.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Remote) OpenFile(path string, flags int) (ports.RemoteFile, error) {
	f, err := r.c.OpenFile(path, flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}

var _ ports.RemoteFS = (*Remote)(nil)

package ports

import (
	"io"
	"os"
)

// RemoteFS is the set of single-shot primitives offered by an SFTP subsystem.
// Implementations must be safe for concurrent use.
type RemoteFS interface {
	// RealPath canonicalises path on the server.
	RealPath(path string) (string, error)

	// ReadDir lists a directory. Entries describe the links themselves, not
	// their targets.
	ReadDir(path string) ([]os.FileInfo, error)

	Mkdir(path string) error
	RemoveDirectory(path string) error
	Rename(oldPath, newPath string) error

	// Remove unlinks a file.
	Remove(path string) error

	// Stat follows symbolic links.
	Stat(path string) (os.FileInfo, error)

	Chmod(path string, mode os.FileMode) error

	// Open opens path for reading.
	Open(path string) (RemoteFile, error)

	// OpenFile opens path with os.O_* flags.
	OpenFile(path string, flags int) (RemoteFile, error)
}

// RemoteFile is an open remote file.
type RemoteFile interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

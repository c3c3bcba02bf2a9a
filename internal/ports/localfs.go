package ports

import "io"

// LocalFS is the local side of a transfer.
type LocalFS interface {
	// RealPath returns the absolute, cleaned form of path with symbolic links
	// resolved where the underlying filesystem supports them.
	RealPath(path string) (string, error)

	// CheckReadable reports whether path can be opened for reading.
	CheckReadable(path string) error

	Open(path string) (io.ReadCloser, error)

	// Create creates or truncates path for writing.
	Create(path string) (io.WriteCloser, error)
}

package remotefs

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ReadOptions controls get operations and read streams.
type ReadOptions struct {
	// Offset is the first byte to read.
	Offset int64
	// Length limits the number of bytes read; 0 reads to the end.
	Length int64
	// MaxBufferSize bounds the memory used by Get. 0 means unbounded: the
	// whole file is held in memory.
	MaxBufferSize int64
}

// WriteOptions controls put operations.
type WriteOptions struct {
	// Mode, when non-zero, is applied to the remote file after the upload.
	Mode os.FileMode
	// Append writes at the end of an existing file instead of truncating it.
	Append bool
}

// CreateReadStream opens the remote file at path for reading. The caller
// must close the returned stream.
func (c *Client) CreateReadStream(path string, opts ReadOptions) (io.ReadCloser, error) {
	cn, err := c.handle("read", path)
	if err != nil {
		return nil, err
	}
	resolved, err := cn.realPath(path)
	if err != nil {
		return nil, err
	}
	return cn.openRead(resolved, opts)
}

// Get downloads the remote file at path into memory.
func (c *Client) Get(path string, opts ReadOptions) ([]byte, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf
	if opts.MaxBufferSize > 0 {
		w = &limitedWriter{w: &buf, n: opts.MaxBufferSize}
	}
	if _, err := c.get("get", path, w, opts); err != nil {
		if errors.Is(err, errLimit) {
			return nil, &Error{Op: "get", Path: path, Kind: ErrBufferLimit}
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetTo copies the remote file at path into w.
func (c *Client) GetTo(path string, w io.Writer, opts ReadOptions) (int64, error) {
	return c.get("get", path, w, opts)
}

// GetFile downloads the remote file at path to localPath, creating or
// truncating it. The local file is only created once the remote file is
// open.
func (c *Client) GetFile(path, localPath string, opts ReadOptions) (int64, error) {
	cn, err := c.handle("get", path)
	if err != nil {
		return 0, err
	}
	dst, err := filepath.Abs(localPath)
	if err != nil {
		return 0, &Error{Op: "get", Path: localPath, Err: err}
	}

	src, err := cn.openChecked(path, opts)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	w, err := c.local.Create(dst)
	if err != nil {
		return 0, &Error{Op: "get", Path: dst, Code: statusCode(err), Err: err}
	}
	n, err := io.Copy(localWriter{w}, src)
	cerr := w.Close()
	if err != nil {
		return n, cn.copyFailed("get", path, dst, err)
	}
	if cerr != nil {
		return n, &Error{Op: "get", Path: dst, Err: cerr}
	}
	slog.Debug("sftp get", slog.String("path", path), slog.String("local", dst), slog.Int64("bytes", n))
	return n, nil
}

func (c *Client) get(op, path string, w io.Writer, opts ReadOptions) (int64, error) {
	cn, err := c.handle(op, path)
	if err != nil {
		return 0, err
	}
	src, err := cn.openChecked(path, opts)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	n, err := io.Copy(localWriter{w}, src)
	if err != nil {
		if errors.Is(err, errLimit) {
			return n, errLimit
		}
		return n, cn.copyFailed(op, path, path, err)
	}
	slog.Debug("sftp get", slog.String("path", path), slog.Int64("bytes", n))
	return n, nil
}

// openChecked resolves path and opens it once the owner read bit is known
// to be set.
func (cn *conn) openChecked(path string, opts ReadOptions) (io.ReadCloser, error) {
	resolved, err := cn.realPath(path)
	if err != nil {
		return nil, err
	}
	a, err := cn.stat(resolved)
	if err != nil {
		return nil, err
	}
	if a.mode&modeOwnerRead == 0 {
		return nil, &Error{Op: "get", Path: resolved, Kind: ErrPermissionDenied, Code: CodePermissionDenied}
	}
	return cn.openRead(resolved, opts)
}

func (cn *conn) openRead(path string, opts ReadOptions) (io.ReadCloser, error) {
	f, err := cn.remote.Open(path)
	if err != nil {
		return nil, cn.fail("open", path, err)
	}
	if opts.Offset > 0 {
		if _, err := f.Seek(opts.Offset, io.SeekStart); err != nil {
			f.Close()
			return nil, cn.fail("seek", path, err)
		}
	}
	if opts.Length > 0 {
		return readCloser{io.LimitReader(f, opts.Length), f}, nil
	}
	return f, nil
}

// Put uploads data to remotePath and returns once the remote file is closed.
func (c *Client) Put(data []byte, remotePath string, opts WriteOptions) error {
	cn, err := c.handle("put", remotePath)
	if err != nil {
		return err
	}
	_, err = cn.put(bytes.NewReader(data), remotePath, opts)
	return err
}

// PutFile uploads the local file at localPath. Its readability is checked
// before anything is opened on the server.
func (c *Client) PutFile(localPath, remotePath string, opts WriteOptions) error {
	cn, err := c.handle("put", remotePath)
	if err != nil {
		return err
	}
	src, err := c.local.RealPath(localPath)
	if err != nil {
		return localError(localPath, err)
	}
	if err := c.local.CheckReadable(src); err != nil {
		return localError(src, err)
	}

	r, err := c.local.Open(src)
	if err != nil {
		return localError(src, err)
	}
	defer r.Close()

	n, err := cn.put(r, remotePath, opts)
	if err != nil {
		return err
	}
	slog.Debug("sftp put", slog.String("local", src), slog.String("path", remotePath), slog.Int64("bytes", n))
	return nil
}

// PutFrom uploads everything read from r.
func (c *Client) PutFrom(r io.Reader, remotePath string, opts WriteOptions) error {
	cn, err := c.handle("put", remotePath)
	if err != nil {
		return err
	}
	_, err = cn.put(r, remotePath, opts)
	return err
}

func (cn *conn) put(r io.Reader, remotePath string, opts WriteOptions) (int64, error) {
	dst, err := cn.dirPath(remotePath)
	if err != nil {
		return 0, err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if opts.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := cn.remote.OpenFile(dst, flags)
	if err != nil {
		return 0, cn.fail("open", dst, err)
	}

	n, err := io.Copy(f, localReader{r})
	cerr := f.Close()
	if err != nil {
		return n, cn.copyFailed("put", dst, dst, err)
	}
	if cerr != nil {
		return n, cn.fail("put", dst, cerr)
	}

	if opts.Mode != 0 {
		if err := cn.remote.Chmod(dst, opts.Mode); err != nil {
			return n, cn.fail("chmod", dst, err)
		}
	}
	return n, nil
}

func localError(path string, err error) error {
	e := &Error{Op: "put", Path: path, Err: err}
	if errors.Is(err, os.ErrPermission) {
		e.Kind = ErrPermissionDenied
	}
	return e
}

// copyFailed classifies a failed copy. Failures of the local side are
// reported against localPath and never taken for a lost connection.
func (cn *conn) copyFailed(op, remotePath, localPath string, err error) error {
	var le *localErr
	if errors.As(err, &le) {
		return &Error{Op: op, Path: localPath, Code: statusCode(le.err), Err: le.err}
	}
	return cn.fail(op, remotePath, err)
}

// localErr marks a failure of the local end of a copy.
type localErr struct{ err error }

func (e *localErr) Error() string { return e.err.Error() }
func (e *localErr) Unwrap() error { return e.err }

type localWriter struct{ w io.Writer }

func (l localWriter) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	if err != nil {
		err = &localErr{err}
	}
	return n, err
}

type localReader struct{ r io.Reader }

func (l localReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if err != nil && err != io.EOF {
		err = &localErr{err}
	}
	return n, err
}

type readCloser struct {
	io.Reader
	io.Closer
}

var errLimit = errors.New("write limit reached")

// limitedWriter fails once more than n bytes have been written.
type limitedWriter struct {
	w io.Writer
	n int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.n {
		return 0, errLimit
	}
	l.n -= int64(len(p))
	return l.w.Write(p)
}

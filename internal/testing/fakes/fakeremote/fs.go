// Package fakeremote provides an in-memory SFTP subsystem, transport and
// dialer for testing.
package fakeremote

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/acolita/remotefs/internal/adapters/realclock"
	"github.com/acolita/remotefs/internal/ports"
	"github.com/pkg/sftp"
)

// Call records one primitive invocation.
type Call struct {
	Op   string
	Path string
}

// Hook runs before every primitive. A non-nil return fails the primitive.
type Hook func(op, path string) error

type node struct {
	mode   os.FileMode
	data   []byte
	target string // symlink target
	mtime  time.Time
	uid    uint32
	gid    uint32
}

// FS is an in-memory remote filesystem with Unix path semantics.
type FS struct {
	mu       sync.Mutex
	clock    ports.Clock
	cwd      string
	realRoot string
	nodes    map[string]*node
	failures map[Call]error
	hook     Hook
	calls    []Call
}

// Option configures an FS.
type Option func(*FS)

// WithClock sets the clock used for modification times.
func WithClock(c ports.Clock) Option {
	return func(fs *FS) { fs.clock = c }
}

// WithCwd sets the working directory RealPath resolves "." against.
func WithCwd(dir string) Option {
	return func(fs *FS) { fs.cwd = dir }
}

// WithRealPathRoot makes RealPath(".") return root verbatim, for example a
// Windows style "C:\Users\test".
func WithRealPathRoot(root string) Option {
	return func(fs *FS) { fs.realRoot = root }
}

// New returns an FS containing "/" and the working directory.
func New(opts ...Option) *FS {
	fs := &FS{
		cwd:      "/home/test",
		nodes:    make(map[string]*node),
		failures: make(map[Call]error),
	}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.clock == nil {
		fs.clock = realclock.New()
	}
	fs.nodes["/"] = fs.newNode(os.ModeDir | 0o755)
	fs.mkdirAll(fs.cwd)
	return fs
}

func (fs *FS) newNode(mode os.FileMode) *node {
	return &node{mode: mode, mtime: fs.clock.Now(), uid: 1000, gid: 1000}
}

// Fail makes primitive op on path return err. An empty path matches every
// path.
func (fs *FS) Fail(op, p string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if p != "" {
		p = fs.abs(p)
	}
	fs.failures[Call{Op: op, Path: p}] = err
}

// SetHook installs h; nil removes it.
func (fs *FS) SetHook(h Hook) {
	fs.mu.Lock()
	fs.hook = h
	fs.mu.Unlock()
}

// Calls returns the primitives invoked so far.
func (fs *FS) Calls() []Call {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]Call(nil), fs.calls...)
}

// Called reports whether op was invoked, on any path.
func (fs *FS) Called(op string) bool {
	for _, c := range fs.Calls() {
		if c.Op == op {
			return true
		}
	}
	return false
}

// WriteFile creates or replaces a regular file.
func (fs *FS) WriteFile(p string, data []byte, perm os.FileMode) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p = fs.abs(p)
	fs.mkdirAll(path.Dir(p))
	n := fs.newNode(perm.Perm())
	n.data = append([]byte(nil), data...)
	fs.nodes[p] = n
}

// MkdirAll creates a directory and its parents.
func (fs *FS) MkdirAll(p string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mkdirAll(fs.abs(p))
}

// Symlink creates link pointing at target.
func (fs *FS) Symlink(target, link string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	link = fs.abs(link)
	fs.mkdirAll(path.Dir(link))
	n := fs.newNode(os.ModeSymlink | 0o777)
	n.target = target
	fs.nodes[link] = n
}

// ReadFile returns the content of a regular file.
func (fs *FS) ReadFile(p string) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[fs.abs(p)]
	if !ok || !n.mode.IsRegular() {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Has reports whether anything exists at p, without following links.
func (fs *FS) Has(p string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.nodes[fs.abs(p)]
	return ok
}

// ModeOf returns the mode of whatever is at p.
func (fs *FS) ModeOf(p string) os.FileMode {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if n, ok := fs.nodes[fs.abs(p)]; ok {
		return n.mode
	}
	return 0
}

func (fs *FS) mkdirAll(p string) {
	for dir := p; ; dir = path.Dir(dir) {
		if _, ok := fs.nodes[dir]; !ok {
			fs.nodes[dir] = fs.newNode(os.ModeDir | 0o755)
		}
		if dir == "/" {
			return
		}
	}
}

func (fs *FS) abs(p string) string {
	if !path.IsAbs(p) {
		p = path.Join(fs.cwd, p)
	}
	return path.Clean(p)
}

// enter records the call and returns an injected failure, if any.
func (fs *FS) enter(op, p string) error {
	fs.mu.Lock()
	fs.calls = append(fs.calls, Call{Op: op, Path: p})
	hook := fs.hook
	err, ok := fs.failures[Call{Op: op, Path: fs.abs(p)}]
	if !ok {
		err = fs.failures[Call{Op: op}]
	}
	fs.mu.Unlock()

	if hook != nil {
		if herr := hook(op, p); herr != nil {
			return herr
		}
	}
	return err
}

func notExist(op, p string) error {
	return &os.PathError{Op: op, Path: p, Err: os.ErrNotExist}
}

func failure(op, p, msg string) error {
	return fmt.Errorf("%s %s: %s: %w", op, p, msg, &sftp.StatusError{Code: 4})
}

// resolve follows symbolic links in every component of p. The last
// component may be missing.
func (fs *FS) resolve(p string, depth int) (string, error) {
	if depth > 32 {
		return "", failure("realpath", p, "too many links")
	}
	p = fs.abs(p)
	if p == "/" {
		return p, nil
	}
	parent, err := fs.resolve(path.Dir(p), depth+1)
	if err != nil {
		return "", err
	}
	pn, ok := fs.nodes[parent]
	if !ok {
		return "", notExist("realpath", p)
	}
	if !pn.mode.IsDir() {
		return "", failure("realpath", p, "not a directory")
	}

	full := path.Join(parent, path.Base(p))
	n, ok := fs.nodes[full]
	if !ok || n.mode&os.ModeSymlink == 0 {
		return full, nil
	}
	target := n.target
	if !path.IsAbs(target) {
		target = path.Join(parent, target)
	}
	return fs.resolve(target, depth+1)
}

// RealPath canonicalises p.
func (fs *FS) RealPath(p string) (string, error) {
	if err := fs.enter("realpath", p); err != nil {
		return "", err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.realRoot != "" && (p == "." || p == "") {
		return fs.realRoot, nil
	}
	return fs.resolve(p, 0)
}

// ReadDir lists a directory in name order.
func (fs *FS) ReadDir(p string) ([]os.FileInfo, error) {
	if err := fs.enter("readdir", p); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.resolve(p, 0)
	if err != nil {
		return nil, err
	}
	n, ok := fs.nodes[dir]
	if !ok {
		return nil, notExist("readdir", p)
	}
	if !n.mode.IsDir() {
		return nil, failure("readdir", p, "not a directory")
	}

	var infos []os.FileInfo
	for name, child := range fs.nodes {
		if name != "/" && path.Dir(name) == dir {
			infos = append(infos, child.info(path.Base(name)))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

// Mkdir creates a single directory.
func (fs *FS) Mkdir(p string) error {
	if err := fs.enter("mkdir", p); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p = fs.abs(p)
	if _, ok := fs.nodes[p]; ok {
		return failure("mkdir", p, "file exists")
	}
	parent, ok := fs.nodes[path.Dir(p)]
	if !ok {
		return notExist("mkdir", p)
	}
	if !parent.mode.IsDir() {
		return failure("mkdir", p, "parent is not a directory")
	}
	fs.nodes[p] = fs.newNode(os.ModeDir | 0o755)
	return nil
}

// RemoveDirectory removes an empty directory.
func (fs *FS) RemoveDirectory(p string) error {
	if err := fs.enter("rmdir", p); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p = fs.abs(p)
	n, ok := fs.nodes[p]
	if !ok {
		return notExist("rmdir", p)
	}
	if !n.mode.IsDir() {
		return failure("rmdir", p, "not a directory")
	}
	for name := range fs.nodes {
		if name != p && strings.HasPrefix(name, strings.TrimSuffix(p, "/")+"/") {
			return failure("rmdir", p, "directory not empty")
		}
	}
	delete(fs.nodes, p)
	return nil
}

// Rename moves a node and everything below it.
func (fs *FS) Rename(oldPath, newPath string) error {
	if err := fs.enter("rename", oldPath); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	from, to := fs.abs(oldPath), fs.abs(newPath)
	if _, ok := fs.nodes[from]; !ok {
		return notExist("rename", oldPath)
	}
	if _, ok := fs.nodes[to]; ok {
		return failure("rename", newPath, "file exists")
	}
	if parent, ok := fs.nodes[path.Dir(to)]; !ok || !parent.mode.IsDir() {
		return notExist("rename", newPath)
	}
	moved := make(map[string]*node)
	for name, n := range fs.nodes {
		if name == from || strings.HasPrefix(name, from+"/") {
			moved[to+strings.TrimPrefix(name, from)] = n
			delete(fs.nodes, name)
		}
	}
	for name, n := range moved {
		fs.nodes[name] = n
	}
	return nil
}

// Remove unlinks a file or link.
func (fs *FS) Remove(p string) error {
	if err := fs.enter("remove", p); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p = fs.abs(p)
	n, ok := fs.nodes[p]
	if !ok {
		return notExist("remove", p)
	}
	if n.mode.IsDir() {
		return failure("remove", p, "is a directory")
	}
	delete(fs.nodes, p)
	return nil
}

// Stat follows symbolic links.
func (fs *FS) Stat(p string) (os.FileInfo, error) {
	if err := fs.enter("stat", p); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	resolved, err := fs.resolve(p, 0)
	if err != nil {
		return nil, err
	}
	n, ok := fs.nodes[resolved]
	if !ok {
		return nil, notExist("stat", p)
	}
	return n.info(path.Base(resolved)), nil
}

// Chmod replaces the permission bits of p.
func (fs *FS) Chmod(p string, mode os.FileMode) error {
	if err := fs.enter("chmod", p); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.nodes[fs.abs(p)]
	if !ok {
		return notExist("chmod", p)
	}
	n.mode = n.mode.Type() | mode.Perm()
	return nil
}

// Open opens a regular file for reading. The owner read bit is enforced.
func (fs *FS) Open(p string) (ports.RemoteFile, error) {
	if err := fs.enter("open", p); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	resolved, err := fs.resolve(p, 0)
	if err != nil {
		return nil, err
	}
	n, ok := fs.nodes[resolved]
	switch {
	case !ok:
		return nil, notExist("open", p)
	case n.mode.IsDir():
		return nil, failure("open", p, "is a directory")
	case n.mode&0o400 == 0:
		return nil, &os.PathError{Op: "open", Path: p, Err: os.ErrPermission}
	}
	return &file{fs: fs, path: resolved, r: bytes.NewReader(append([]byte(nil), n.data...))}, nil
}

// OpenFile opens p for writing with os.O_CREATE, os.O_TRUNC and
// os.O_APPEND honoured. Data becomes visible on Close.
func (fs *FS) OpenFile(p string, flags int) (ports.RemoteFile, error) {
	if err := fs.enter("openfile", p); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p = fs.abs(p)
	parent, ok := fs.nodes[path.Dir(p)]
	if !ok {
		return nil, notExist("open", p)
	}
	if !parent.mode.IsDir() {
		return nil, failure("open", p, "parent is not a directory")
	}

	n, ok := fs.nodes[p]
	switch {
	case !ok && flags&os.O_CREATE == 0:
		return nil, notExist("open", p)
	case !ok:
		n = fs.newNode(0o644)
		fs.nodes[p] = n
	case n.mode.IsDir():
		return nil, failure("open", p, "is a directory")
	}

	f := &file{fs: fs, path: p, w: new(bytes.Buffer)}
	if flags&os.O_APPEND != 0 {
		f.w.Write(n.data)
	}
	if flags&os.O_TRUNC != 0 {
		n.data = nil
	}
	return f, nil
}

func (n *node) info(name string) os.FileInfo {
	size := uint64(len(n.data))
	if n.mode&os.ModeSymlink != 0 {
		size = uint64(len(n.target))
	}
	mtime := uint32(n.mtime.Unix())
	return &fileInfo{
		name:  name,
		mode:  n.mode,
		mtime: n.mtime,
		stat: &sftp.FileStat{
			Size:  size,
			Mode:  posixMode(n.mode),
			Mtime: mtime,
			Atime: mtime,
			UID:   n.uid,
			GID:   n.gid,
		},
	}
}

func posixMode(m os.FileMode) uint32 {
	mode := uint32(m.Perm())
	switch {
	case m.IsDir():
		mode |= 0o040000
	case m&os.ModeSymlink != 0:
		mode |= 0o120000
	default:
		mode |= 0o100000
	}
	return mode
}

type fileInfo struct {
	name  string
	mode  os.FileMode
	mtime time.Time
	stat  *sftp.FileStat
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return int64(fi.stat.Size) }
func (fi *fileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.mtime }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() any           { return fi.stat }

type file struct {
	fs     *FS
	path   string
	r      *bytes.Reader
	w      *bytes.Buffer
	closed bool
}

var errClosed = errors.New("file already closed")

func (f *file) Read(p []byte) (int, error) {
	if f.closed {
		return 0, errClosed
	}
	if f.r == nil {
		return 0, failure("read", f.path, "not open for reading")
	}
	if err := f.fs.enter("read", f.path); err != nil {
		return 0, err
	}
	return f.r.Read(p)
}

func (f *file) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errClosed
	}
	if f.w == nil {
		return 0, failure("write", f.path, "not open for writing")
	}
	if err := f.fs.enter("write", f.path); err != nil {
		return 0, err
	}
	return f.w.Write(p)
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.r == nil {
		return 0, failure("seek", f.path, "not open for reading")
	}
	return f.r.Seek(offset, whence)
}

func (f *file) Close() error {
	if f.closed {
		return errClosed
	}
	f.closed = true
	if err := f.fs.enter("close", f.path); err != nil {
		return err
	}
	if f.w == nil {
		return nil
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	n, ok := f.fs.nodes[f.path]
	if !ok {
		return notExist("close", f.path)
	}
	n.data = append([]byte(nil), f.w.Bytes()...)
	n.mtime = f.fs.clock.Now()
	return nil
}

var (
	_ ports.RemoteFS   = (*FS)(nil)
	_ ports.RemoteFile = (*file)(nil)
)

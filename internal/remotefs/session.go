// Package remotefs provides a convenience layer over an SFTP session:
// listing, existence checks, recursive mkdir/rmdir, rename, delete, stat
// and streaming transfers against a remote filesystem.
package remotefs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acolita/remotefs/internal/adapters/localfs"
	"github.com/acolita/remotefs/internal/ports"
)

// State is the connection state of a Client.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Platform is the flavour of the remote server, discovered at connect time.
type Platform string

const (
	Unix    Platform = "unix"
	Windows Platform = "windows"
)

// lostGrace bounds how long a failure without an SFTP status waits for the
// transport to report its end. pkg/sftp fails pending requests before the
// transport's Wait returns.
const lostGrace = time.Second

// conn is one live connection. It is replaced, never mutated, apart from
// the ended flag and the done channel.
type conn struct {
	transport ports.Transport
	remote    ports.RemoteFS
	sep       string
	platform  Platform

	// ended is set before an explicit End closes the transport so the
	// monitor can tell an expected termination from an unexpected one.
	ended atomic.Bool
	// done is closed once the transport has terminated, for any reason.
	done chan struct{}
}

func (c *conn) terminated() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// dropped reports whether err was caused by the transport going away.
func (c *conn) dropped(err error) bool {
	if c.terminated() {
		return true
	}
	if statusCode(err) != 0 {
		return false
	}
	t := time.NewTimer(lostGrace)
	defer t.Stop()
	select {
	case <-c.done:
		return true
	case <-t.C:
		return false
	}
}

// Client is an SFTP client bound to at most one session at a time.
// It is safe for concurrent use.
type Client struct {
	dialer ports.TransportDialer
	local  ports.LocalFS
	onLost func(error)

	mu      sync.RWMutex
	state   State
	conn    *conn
	lastErr error
}

// Option configures a Client.
type Option func(*Client)

// WithLocalFS sets the filesystem used for local transfer endpoints.
func WithLocalFS(fs ports.LocalFS) Option {
	return func(c *Client) {
		c.local = fs
	}
}

// WithConnectionLostHandler registers fn to be called, from a background
// goroutine, when the connection terminates without End being called.
func WithConnectionLostHandler(fn func(error)) Option {
	return func(c *Client) {
		c.onLost = fn
	}
}

// New creates a disconnected Client that opens transports with dialer.
func New(dialer ports.TransportDialer, opts ...Option) *Client {
	c := &Client{dialer: dialer}
	for _, opt := range opts {
		opt(c)
	}
	if c.local == nil {
		c.local = localfs.New(nil)
	}
	return c
}

// Connect opens a transport, then asks the server for the real path of "."
// to discover its path separator and platform. It returns only once both
// steps have succeeded.
func (c *Client) Connect(ctx context.Context, cfg ports.DialConfig) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return &Error{Op: "connect", Kind: ErrAlreadyConnected}
	}
	c.state = Connecting
	c.mu.Unlock()

	cn, err := c.open(ctx, cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = Disconnected
		return err
	}
	c.state = Connected
	c.conn = cn
	c.lastErr = nil

	go c.monitor(cn)

	slog.Info("sftp connected",
		slog.String("host", cfg.Host),
		slog.String("user", cfg.User),
		slog.String("platform", string(cn.platform)),
	)
	return nil
}

func (c *Client) open(ctx context.Context, cfg ports.DialConfig) (*conn, error) {
	t, err := c.dialer.Dial(ctx, cfg)
	if err != nil {
		return nil, &Error{Op: "connect", Path: cfg.Host, Code: statusCode(err), Err: err}
	}

	remote := t.Remote()
	root, err := remote.RealPath(".")
	if err != nil {
		t.Close()
		return nil, &Error{Op: "connect", Path: cfg.Host, Kind: ErrRemoteTypeDetection, Code: statusCode(err), Err: err}
	}

	cn := &conn{
		transport: t,
		remote:    remote,
		sep:       "/",
		platform:  Unix,
		done:      make(chan struct{}),
	}
	if !strings.HasPrefix(root, "/") {
		cn.sep = `\`
		cn.platform = Windows
	}
	return cn, nil
}

// monitor turns an unexpected end of the transport into a disconnect.
func (c *Client) monitor(cn *conn) {
	err := cn.transport.Wait()

	c.mu.Lock()
	if cn.ended.Load() || c.conn != cn {
		c.mu.Unlock()
		close(cn.done)
		return
	}
	if err == nil {
		err = errors.New("transport closed by peer")
	}
	c.conn = nil
	c.state = Disconnected
	lostErr := &Error{Op: "session", Kind: ErrConnectionLost, Err: err}
	c.lastErr = lostErr
	c.mu.Unlock()

	close(cn.done)
	cn.transport.Close()

	slog.Error("sftp connection lost", slog.String("error", err.Error()))
	if c.onLost != nil {
		c.onLost(lostErr)
	}
}

// End closes the session. It is idempotent and always returns true.
func (c *Client) End() bool {
	c.mu.Lock()
	cn := c.conn
	if cn == nil {
		c.mu.Unlock()
		return true
	}
	cn.ended.Store(true)
	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()

	if err := cn.transport.Close(); err != nil {
		slog.Debug("closing transport", slog.String("error", err.Error()))
	}
	slog.Info("sftp session ended")
	return true
}

// IsConnected reports whether a live subsystem handle exists.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastError returns the cause of the last unexpected disconnect, if any.
// It is cleared by a successful Connect.
func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Separator returns the remote path separator, or "" when disconnected.
func (c *Client) Separator() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.sep
}

// Platform returns the remote platform, or "" when disconnected.
func (c *Client) Platform() Platform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.platform
}

// handle returns the live connection or ErrNotConnected.
func (c *Client) handle(op, path string) (*conn, error) {
	c.mu.RLock()
	cn := c.conn
	c.mu.RUnlock()
	if cn == nil {
		return nil, &Error{Op: op, Path: path, Kind: ErrNotConnected}
	}
	return cn, nil
}

// fail wraps a primitive failure. Failures caused by the connection going
// away are reported as ErrConnectionLost, or as ErrNotConnected when End
// closed it.
func (cn *conn) fail(op, path string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if cn.dropped(err) {
		kind := ErrConnectionLost
		if cn.ended.Load() {
			kind = ErrNotConnected
		}
		return &Error{Op: op, Path: path, Kind: kind, Code: statusCode(err), Err: err}
	}
	return newError(op, path, err)
}

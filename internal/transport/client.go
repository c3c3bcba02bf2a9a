// Package transport opens authenticated SSH connections and negotiates the
// SFTP subsystem on them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acolita/remotefs/internal/adapters/realclock"
	"github.com/acolita/remotefs/internal/adapters/realsftp"
	"github.com/acolita/remotefs/internal/adapters/realsshdialer"
	"github.com/acolita/remotefs/internal/ports"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// maxCheckedPacket is the largest SFTP payload every server must accept.
const maxCheckedPacket = 32768

// ClientOptions configures transports opened by a Dialer.
type ClientOptions struct {
	// KeepaliveInterval is the period between keepalive requests. Zero
	// disables them.
	KeepaliveInterval time.Duration
	// ConcurrentWrites lets uploads pipeline write requests.
	ConcurrentWrites bool
	// MaxPacket is the SFTP payload size; 0 keeps the library default.
	MaxPacket int
	Clock     ports.Clock
	Dialer    ports.SSHDialer
}

// DefaultClientOptions returns default client options.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		KeepaliveInterval: 30 * time.Second,
		ConcurrentWrites:  true,
	}
}

// Dialer implements ports.TransportDialer over SSH.
type Dialer struct {
	opts ClientOptions
}

// NewDialer returns a Dialer. Missing clock and SSH dialer default to the
// real implementations.
func NewDialer(opts ClientOptions) *Dialer {
	if opts.Clock == nil {
		opts.Clock = realclock.New()
	}
	if opts.Dialer == nil {
		opts.Dialer = realsshdialer.New()
	}
	return &Dialer{opts: opts}
}

// Dial connects, authenticates and requests the sftp subsystem.
func (d *Dialer) Dial(ctx context.Context, cfg ports.DialConfig) (ports.Transport, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	if len(cfg.AuthMethods) == 0 {
		return nil, fmt.Errorf("at least one auth method is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HostKeyCallback == nil {
		slog.Warn("host key verification disabled", slog.String("host", cfg.Host))
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	config := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            cfg.AuthMethods,
		HostKeyCallback: cfg.HostKeyCallback,
		Timeout:         cfg.Timeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client, err := d.opts.Dialer.Dial(ctx, "tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	sc, err := sftp.NewClient(client, d.sftpOptions()...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("request sftp subsystem: %w", err)
	}

	return newConn(client, sc, d.opts.Clock, d.opts.KeepaliveInterval), nil
}

func (d *Dialer) sftpOptions() []sftp.ClientOption {
	opts := []sftp.ClientOption{sftp.UseConcurrentWrites(d.opts.ConcurrentWrites)}
	switch {
	case d.opts.MaxPacket > maxCheckedPacket:
		opts = append(opts, sftp.MaxPacketUnchecked(d.opts.MaxPacket))
	case d.opts.MaxPacket > 0:
		opts = append(opts, sftp.MaxPacket(d.opts.MaxPacket))
	}
	return opts
}

// Conn is an SSH connection with a running SFTP subsystem.
type Conn struct {
	ssh    *ssh.Client
	sftp   *sftp.Client
	remote *realsftp.Remote

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	stop      chan struct{}
}

func newConn(client *ssh.Client, sc *sftp.Client, clk ports.Clock, keepalive time.Duration) *Conn {
	c := &Conn{
		ssh:    client,
		sftp:   sc,
		remote: realsftp.New(sc),
		stop:   make(chan struct{}),
	}
	if keepalive > 0 {
		go c.keepalive(clk.NewTicker(keepalive), c.stop)
	}
	return c
}

// Remote returns the subsystem handle.
func (c *Conn) Remote() ports.RemoteFS {
	return c.remote
}

// Wait blocks until the subsystem shuts down. It returns nil after Close.
func (c *Conn) Wait() error {
	err := c.sftp.Wait()
	if c.closed.Load() {
		return nil
	}
	if err == nil {
		err = errors.New("sftp subsystem closed")
	}
	return err
}

// Close closes the subsystem and then the SSH connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
		serr := c.sftp.Close()
		cerr := c.ssh.Close()
		if cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			c.closeErr = cerr
		} else if serr != nil && !errors.Is(serr, net.ErrClosed) {
			c.closeErr = serr
		}
	})
	return c.closeErr
}

// keepalive sends periodic keepalive requests. A request that cannot be sent
// means the peer is gone; the SSH connection is dropped so Wait returns.
func (c *Conn) keepalive(ticker ports.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if _, _, err := c.ssh.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				slog.Warn("keepalive failed", slog.String("error", err.Error()))
				c.ssh.Close()
				return
			}
		}
	}
}

var (
	_ ports.TransportDialer = (*Dialer)(nil)
	_ ports.Transport       = (*Conn)(nil)
)

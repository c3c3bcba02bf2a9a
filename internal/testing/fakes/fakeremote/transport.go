package fakeremote

import (
	"context"
	"errors"
	"sync"

	"github.com/acolita/remotefs/internal/ports"
)

// Transport is a fake transport over an FS.
type Transport struct {
	fs *FS

	once   sync.Once
	done   chan struct{}
	err    error
	closed bool
	mu     sync.Mutex
}

// NewTransport returns a live transport serving fs.
func NewTransport(fs *FS) *Transport {
	return &Transport{fs: fs, done: make(chan struct{})}
}

// Remote returns the filesystem.
func (t *Transport) Remote() ports.RemoteFS {
	return t.fs
}

// Wait blocks until Close or Drop.
func (t *Transport) Wait() error {
	<-t.done
	return t.err
}

// Close ends the transport normally.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.terminate(nil)
	return nil
}

// Drop ends the transport as if the peer went away.
func (t *Transport) Drop(err error) {
	if err == nil {
		err = errors.New("connection reset by peer")
	}
	t.terminate(err)
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Done is closed once the transport has terminated.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

func (t *Transport) terminate(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Dialer hands out Transports over a shared FS.
type Dialer struct {
	FS *FS

	mu         sync.Mutex
	err        error
	configs    []ports.DialConfig
	transports []*Transport
}

// NewDialer returns a Dialer serving fs.
func NewDialer(fs *FS) *Dialer {
	return &Dialer{FS: fs}
}

// SetError makes subsequent dials fail with err.
func (d *Dialer) SetError(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// Dial records cfg and returns a new Transport.
func (d *Dialer) Dial(ctx context.Context, cfg ports.DialConfig) (ports.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.configs = append(d.configs, cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	t := NewTransport(d.FS)
	d.transports = append(d.transports, t)
	return t, nil
}

// Configs returns the configs passed to Dial.
func (d *Dialer) Configs() []ports.DialConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ports.DialConfig(nil), d.configs...)
}

// Last returns the most recent transport, or nil.
func (d *Dialer) Last() *Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

var (
	_ ports.Transport       = (*Transport)(nil)
	_ ports.TransportDialer = (*Dialer)(nil)
)

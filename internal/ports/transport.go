package ports

import (
	"context"
	"time"

	"golang.org/x/crypto/ssh"
)

// DialConfig describes how to reach and authenticate against a remote host.
type DialConfig struct {
	Host            string
	Port            int
	User            string
	AuthMethods     []ssh.AuthMethod
	HostKeyCallback ssh.HostKeyCallback
	Timeout         time.Duration
}

// Transport is an authenticated connection carrying a negotiated SFTP subsystem.
type Transport interface {
	// Remote returns the subsystem handle.
	Remote() RemoteFS

	// Wait blocks until the transport terminates and returns the cause.
	// It returns nil when the transport was closed with Close.
	Wait() error

	// Close tears the transport down. It is safe to call more than once.
	Close() error
}

// TransportDialer opens transports.
type TransportDialer interface {
	Dial(ctx context.Context, cfg DialConfig) (Transport, error)
}

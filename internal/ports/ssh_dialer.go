package ports

import (
	"context"

	"golang.org/x/crypto/ssh"
)

// SSHDialer abstracts SSH connection establishment for testing.
type SSHDialer interface {
	// Dial establishes an SSH connection to addr. The context bounds the TCP
	// dial and the handshake.
	Dial(ctx context.Context, network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)
}

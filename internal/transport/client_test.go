package transport

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/acolita/remotefs/internal/adapters/realsshdialer"
	"github.com/acolita/remotefs/internal/ports"
	"github.com/acolita/remotefs/internal/testing/fakes/fakeclock"
	"github.com/acolita/remotefs/internal/testing/fakes/fakesshdialer"
	"github.com/acolita/remotefs/internal/testing/sftptest"
	"golang.org/x/crypto/ssh"
)

func startServer(t *testing.T) *sftptest.Server {
	t.Helper()
	server, err := sftptest.New()
	if err != nil {
		t.Fatalf("sftptest.New() error = %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func dialConfig(s *sftptest.Server) ports.DialConfig {
	return ports.DialConfig{
		Host:            s.Host(),
		Port:            s.Port(),
		User:            "test",
		AuthMethods:     []ssh.AuthMethod{PasswordAuth("test")},
		HostKeyCallback: ssh.FixedHostKey(s.HostKey()),
		Timeout:         5 * time.Second,
	}
}

func TestDial_Validation(t *testing.T) {
	d := NewDialer(ClientOptions{Dialer: fakesshdialer.New()})
	auth := []ssh.AuthMethod{PasswordAuth("x")}

	tests := []struct {
		name string
		cfg  ports.DialConfig
		want string
	}{
		{"missing host", ports.DialConfig{User: "u", AuthMethods: auth}, "host is required"},
		{"missing user", ports.DialConfig{Host: "h", AuthMethods: auth}, "user is required"},
		{"missing auth", ports.DialConfig{Host: "h", User: "u"}, "auth method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dial(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Dial() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestDial_Defaults(t *testing.T) {
	fd := fakesshdialer.New()
	fd.SetError(errors.New("refused"))
	d := NewDialer(ClientOptions{Dialer: fd})

	_, err := d.Dial(context.Background(), ports.DialConfig{
		Host:        "example.com",
		User:        "u",
		AuthMethods: []ssh.AuthMethod{PasswordAuth("x")},
	})
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("Dial() error = %v, want dial failure", err)
	}

	calls := fd.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 dial, got %d", len(calls))
	}
	if calls[0].Addr != "example.com:22" {
		t.Errorf("addr = %q, want example.com:22", calls[0].Addr)
	}
	if calls[0].Config.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", calls[0].Config.Timeout)
	}
	if calls[0].Config.HostKeyCallback == nil {
		t.Error("host key callback should default to a non-nil callback")
	}
}

func TestDial_RealServer(t *testing.T) {
	server := startServer(t)
	d := NewDialer(ClientOptions{MaxPacket: 16384})

	tr, err := d.Dial(context.Background(), dialConfig(server))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	cwd, err := tr.Remote().RealPath(".")
	if err != nil {
		t.Fatalf("RealPath() error = %v", err)
	}
	if !strings.HasPrefix(cwd, "/") {
		t.Errorf("RealPath(.) = %q, want absolute unix path", cwd)
	}
}

func TestDial_WrongPassword(t *testing.T) {
	server := startServer(t)
	cfg := dialConfig(server)
	cfg.AuthMethods = []ssh.AuthMethod{ssh.Password("nope")}

	if _, err := NewDialer(ClientOptions{}).Dial(context.Background(), cfg); err == nil {
		t.Fatal("Dial() with wrong password should fail")
	}
}

func TestConn_CloseThenWait(t *testing.T) {
	server := startServer(t)
	tr, err := NewDialer(ClientOptions{}).Dial(context.Background(), dialConfig(server))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := tr.Wait(); err != nil {
		t.Errorf("Wait() after Close = %v, want nil", err)
	}
}

func TestConn_WaitReportsDrop(t *testing.T) {
	server := startServer(t)
	tr, err := NewDialer(ClientOptions{}).Dial(context.Background(), dialConfig(server))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	done := make(chan error, 1)
	go func() { done <- tr.Wait() }()

	server.DropConnections()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Wait() after server drop = nil, want error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait() did not return after server drop")
	}
}

func TestConn_Keepalive(t *testing.T) {
	server := startServer(t)
	clock := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d := NewDialer(ClientOptions{
		KeepaliveInterval: time.Minute,
		Clock:             clock,
		Dialer:            realsshdialer.New(),
	})

	tr, err := d.Dial(context.Background(), dialConfig(server))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	if clock.Tickers() != 1 {
		t.Fatalf("Tickers() = %d, want 1", clock.Tickers())
	}

	deadline := time.Now().Add(5 * time.Second)
	for server.Keepalives() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no keepalive received")
		}
		clock.Advance(time.Minute)
		time.Sleep(10 * time.Millisecond)
	}

	tr.Close()
	deadline = time.Now().Add(5 * time.Second)
	for clock.Tickers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("keepalive ticker not stopped after Close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

package realsftp

import (
	"io"
	"os"
	"testing"

	"github.com/pkg/sftp"
)

type pipeConn struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (p *pipeConn) Close() error {
	for _, c := range p.closers {
		c.Close()
	}
	return nil
}

// newTestRemote connects a Remote to an in-memory request server.
func newTestRemote(t *testing.T) *Remote {
	t.Helper()

	clientReader, serverWriter := io.Pipe()
	serverReader, clientWriter := io.Pipe()

	server := sftp.NewRequestServer(&pipeConn{
		Reader:  serverReader,
		Writer:  serverWriter,
		closers: []io.Closer{serverReader, serverWriter},
	}, sftp.InMemHandler())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve()
	}()

	client, err := sftp.NewClientPipe(clientReader, clientWriter)
	if err != nil {
		server.Close()
		t.Fatalf("NewClientPipe: %v", err)
	}
	t.Cleanup(func() {
		server.Close()
		<-done
		client.Close()
	})
	return New(client)
}

func TestRemote_WriteThenRead(t *testing.T) {
	r := newTestRemote(t)

	w, err := r.OpenFile("/hello.txt", os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := w.Write([]byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := r.Open("/hello.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if _, err := f.Seek(6, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "world" {
		t.Errorf("data = %q, want %q", data, "world")
	}

	fi, err := r.Stat("/hello.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fi.Size() != 11 {
		t.Errorf("size = %d, want 11", fi.Size())
	}
}

func TestRemote_DirectoryOperations(t *testing.T) {
	r := newTestRemote(t)

	if err := r.Mkdir("/dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	w, err := r.OpenFile("/dir/a", os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	w.Close()

	infos, err := r.ReadDir("/dir")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(infos) != 1 || infos[0].Name() != "a" {
		t.Fatalf("ReadDir = %v", infos)
	}

	if err := r.Rename("/dir/a", "/dir/b"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := r.Stat("/dir/a"); err == nil {
		t.Error("old name still present after rename")
	}
	if err := r.Remove("/dir/b"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := r.RemoveDirectory("/dir"); err != nil {
		t.Fatalf("RemoveDirectory: %v", err)
	}
	if _, err := r.Stat("/dir"); err == nil {
		t.Error("directory still present")
	}
}

func TestRemote_OpenMissing(t *testing.T) {
	r := newTestRemote(t)
	if _, err := r.Open("/missing"); err == nil {
		t.Error("expected error opening a missing file")
	}
}

package remotefs

import (
	"testing"

	"github.com/acolita/remotefs/internal/testing/fakes/fakeremote"
)

func unixConn(fs *fakeremote.FS) *conn {
	return &conn{remote: fs, sep: "/", platform: Unix, done: make(chan struct{})}
}

func windowsConn(fs *fakeremote.FS) *conn {
	return &conn{remote: fs, sep: `\`, platform: Windows, done: make(chan struct{})}
}

func TestDirPath(t *testing.T) {
	cn := unixConn(fakeremote.New())

	tests := []struct {
		in   string
		want string
	}{
		{".", "/home/test"},
		{"..", "/home"},
		{"./a/b", "/home/test/a/b"},
		{"../x", "/home/x"},
		{"/abs/p", "/abs/p"},
		{"rel/p", "rel/p"},
		{"..foo/bar", "..foo/bar"},
		{".hidden", ".hidden"},
		{"./", "/home/test"},
	}
	for _, tt := range tests {
		got, err := cn.dirPath(tt.in)
		if err != nil {
			t.Errorf("dirPath(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("dirPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDirPath_Windows(t *testing.T) {
	cn := windowsConn(fakeremote.New(fakeremote.WithRealPathRoot(`C:\Users\test`)))

	got, err := cn.dirPath(`.\dir\file.txt`)
	if err != nil {
		t.Fatalf("dirPath() error = %v", err)
	}
	if got != `C:\Users\test\dir\file.txt` {
		t.Errorf("dirPath() = %q", got)
	}
}

func TestSplit(t *testing.T) {
	unix := unixConn(fakeremote.New())
	win := windowsConn(fakeremote.New())

	tests := []struct {
		cn        *conn
		in        string
		dir, base string
	}{
		{unix, "/a/b", "/a", "b"},
		{unix, "/a/b/", "/a", "b"},
		{unix, "/a", "/", "a"},
		{unix, "/", "/", ""},
		{unix, "a", ".", "a"},
		{unix, "a/b", "a", "b"},
		{win, `C:\a\b`, `C:\a`, "b"},
		{win, `C:\a`, `C:\`, "a"},
		{win, `C:\`, `C:\`, ""},
	}
	for _, tt := range tests {
		dir, base := tt.cn.split(tt.in)
		if dir != tt.dir || base != tt.base {
			t.Errorf("split(%q) = (%q, %q), want (%q, %q)", tt.in, dir, base, tt.dir, tt.base)
		}
	}
}

func TestJoin(t *testing.T) {
	unix := unixConn(fakeremote.New())
	win := windowsConn(fakeremote.New())

	tests := []struct {
		cn        *conn
		dir, name string
		want      string
	}{
		{unix, "/", "a", "/a"},
		{unix, "/a", "b", "/a/b"},
		{unix, "/a/", "/b", "/a/b"},
		{unix, "/a", "", "/a"},
		{win, `C:\`, "x", `C:\x`},
		{win, `C:\a`, "x", `C:\a\x`},
	}
	for _, tt := range tests {
		if got := tt.cn.join(tt.dir, tt.name); got != tt.want {
			t.Errorf("join(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}

func TestClient_Join(t *testing.T) {
	env := newConnectedEnv(t)

	if got := env.client.Join("/a", "", "b", "c.txt"); got != "/a/b/c.txt" {
		t.Errorf("Join() = %q, want /a/b/c.txt", got)
	}
}

func TestRealPath(t *testing.T) {
	env := newConnectedEnv(t)
	env.fs.MkdirAll("/data/sub")
	env.fs.Symlink("/data/sub", "/home/test/shortcut")

	got, err := env.client.RealPath("shortcut")
	if err != nil {
		t.Fatalf("RealPath() error = %v", err)
	}
	if got != "/data/sub" {
		t.Errorf("RealPath() = %q, want /data/sub", got)
	}
}

package remotefs

import (
	"strings"
)

// RealPath asks the server to canonicalise path.
func (c *Client) RealPath(path string) (string, error) {
	cn, err := c.handle("realpath", path)
	if err != nil {
		return "", err
	}
	return cn.realPath(path)
}

// Cwd returns the remote working directory.
func (c *Client) Cwd() (string, error) {
	return c.RealPath(".")
}

// Join joins elements with the remote separator. It returns "" when
// disconnected.
func (c *Client) Join(elem ...string) string {
	cn, err := c.handle("join", "")
	if err != nil {
		return ""
	}
	out := ""
	for _, e := range elem {
		if e == "" {
			continue
		}
		if out == "" {
			out = e
			continue
		}
		out = cn.join(out, e)
	}
	return out
}

func (cn *conn) realPath(path string) (string, error) {
	p, err := cn.remote.RealPath(path)
	if err != nil {
		return "", cn.fail("realpath", path, err)
	}
	return p, nil
}

// dirPath resolves a path whose last element may not exist yet. Only a
// leading "." or ".." segment is resolved on the server; everything else is
// returned as given.
func (cn *conn) dirPath(path string) (string, error) {
	if path == "." || path == ".." {
		return cn.realPath(path)
	}

	head, rest, ok := cn.cutSep(path)
	if !ok || (head != "." && head != "..") {
		return path, nil
	}

	root, err := cn.realPath(head)
	if err != nil {
		return "", err
	}
	return cn.join(root, rest), nil
}

// cutSep splits path around its first separator. Both "/" and the remote
// separator are recognised.
func (cn *conn) cutSep(path string) (head, rest string, ok bool) {
	i := strings.IndexAny(path, "/"+cn.sep)
	if i < 0 {
		return path, "", false
	}
	return path[:i], path[i+1:], true
}

func (cn *conn) join(dir, name string) string {
	name = strings.TrimLeft(name, "/"+cn.sep)
	if name == "" {
		return dir
	}
	if strings.HasSuffix(dir, cn.sep) || strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + cn.sep + name
}

// split returns the parent directory and the last element of path. The
// last element is empty when path is a root.
func (cn *conn) split(path string) (dir, base string) {
	trimmed := strings.TrimRight(path, "/"+cn.sep)
	if trimmed == "" {
		return path, ""
	}
	if cn.platform == Windows && len(trimmed) == 2 && trimmed[1] == ':' {
		// drive root such as C:\
		return path, ""
	}

	i := strings.LastIndexAny(trimmed, "/"+cn.sep)
	switch {
	case i < 0:
		return ".", trimmed
	case i == 0:
		return trimmed[:1], trimmed[1:]
	}
	dir = trimmed[:i]
	if cn.platform == Windows && len(dir) == 2 && dir[1] == ':' {
		dir += cn.sep
	}
	return dir, trimmed[i+1:]
}

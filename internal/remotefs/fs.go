package remotefs

import (
	"errors"

	"golang.org/x/sync/errgroup"
)

// List returns the entries of the directory at path whose names pass filter.
// A nil filter accepts everything.
func (c *Client) List(path string, filter Filter) ([]Entry, error) {
	cn, err := c.handle("list", path)
	if err != nil {
		return nil, err
	}
	return cn.list(path, filterOrAll(filter))
}

func (cn *conn) list(path string, filter Filter) ([]Entry, error) {
	dir, err := cn.realPath(path)
	if err != nil {
		return nil, err
	}
	infos, err := cn.remote.ReadDir(dir)
	if err != nil {
		return nil, cn.fail("readdir", dir, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		name := fi.Name()
		if !filter.Match(name) {
			continue
		}
		entries = append(entries, newEntry(cn.join(dir, name), name, attrsOf(fi)))
	}
	return entries, nil
}

// Exists reports the type of whatever is at path, or "" if nothing is.
// Symbolic links are resolved by the server, so a dangling link is absent.
func (c *Client) Exists(path string) (EntryType, error) {
	cn, err := c.handle("exists", path)
	if err != nil {
		return "", err
	}
	return cn.exists(path)
}

func (cn *conn) exists(path string) (EntryType, error) {
	t, err := cn.lookup(path)
	if err != nil && isNoSuchFile(err) {
		return "", nil
	}
	return t, err
}

func (cn *conn) lookup(path string) (EntryType, error) {
	resolved, err := cn.realPath(path)
	if err != nil {
		return "", err
	}
	dir, base := cn.split(resolved)
	if base == "" {
		return TypeDirectory, nil
	}

	infos, err := cn.remote.ReadDir(dir)
	if err != nil {
		return "", cn.fail("readdir", dir, err)
	}
	for _, fi := range infos {
		if fi.Name() == base {
			return typeOf(attrsOf(fi).mode), nil
		}
	}
	return "", nil
}

// Mkdir creates the directory at path. With recursive set, missing parents
// are created first and an existing directory at path is not an error.
func (c *Client) Mkdir(path string, recursive bool) error {
	cn, err := c.handle("mkdir", path)
	if err != nil {
		return err
	}
	target, err := cn.dirPath(path)
	if err != nil {
		return err
	}
	if !recursive {
		return cn.mkdir(target)
	}
	return cn.mkdirAll(target)
}

func (cn *conn) mkdir(path string) error {
	if err := cn.remote.Mkdir(path); err != nil {
		return cn.fail("mkdir", path, err)
	}
	return nil
}

// mkdirAll creates path and its missing parents. A path whose lookup fails
// for a reason other than absence (typically a file where a directory was
// expected higher up) is walked upwards until the offending element is found.
func (cn *conn) mkdirAll(path string) error {
	t, err := cn.exists(path)
	if err == nil {
		switch t {
		case TypeDirectory:
			return nil
		case "":
		default:
			return &Error{Op: "mkdir", Path: path, Kind: ErrBadDirectoryPath}
		}
	}
	if errors.Is(err, ErrConnectionLost) {
		return err
	}

	dir, base := cn.split(path)
	if base != "" && dir != path {
		if err := cn.mkdirAll(dir); err != nil {
			return err
		}
	}
	return cn.mkdir(path)
}

// Rmdir removes the directory at path. With recursive set, its contents are
// removed first: files of one level before its subdirectories, sibling
// subtrees concurrently. A failure stops the descent but nothing already
// removed is restored.
func (c *Client) Rmdir(path string, recursive bool) error {
	cn, err := c.handle("rmdir", path)
	if err != nil {
		return err
	}
	dir, err := cn.realPath(path)
	if err != nil {
		return err
	}
	if !recursive {
		return cn.rmdir(dir)
	}
	return cn.rmdirAll(dir)
}

func (cn *conn) rmdir(path string) error {
	if err := cn.remote.RemoveDirectory(path); err != nil {
		return cn.fail("rmdir", path, err)
	}
	return nil
}

func (cn *conn) rmdirAll(dir string) error {
	infos, err := cn.remote.ReadDir(dir)
	if err != nil {
		return cn.fail("readdir", dir, err)
	}

	var subdirs []string
	var files errgroup.Group
	for _, fi := range infos {
		p := cn.join(dir, fi.Name())
		if typeOf(attrsOf(fi).mode) == TypeDirectory {
			subdirs = append(subdirs, p)
			continue
		}
		files.Go(func() error { return cn.remove(p) })
	}
	if err := files.Wait(); err != nil {
		return err
	}

	var trees errgroup.Group
	for _, p := range subdirs {
		trees.Go(func() error { return cn.rmdirAll(p) })
	}
	if err := trees.Wait(); err != nil {
		return err
	}
	return cn.rmdir(dir)
}

// Rename moves an existing entry to a destination that need not exist.
func (c *Client) Rename(fromPath, toPath string) error {
	cn, err := c.handle("rename", fromPath)
	if err != nil {
		return err
	}
	src, err := cn.realPath(fromPath)
	if err != nil {
		return err
	}
	dst, err := cn.dirPath(toPath)
	if err != nil {
		return err
	}
	if err := cn.remote.Rename(src, dst); err != nil {
		return cn.fail("rename", src, err)
	}
	return nil
}

// Delete removes the file at path.
func (c *Client) Delete(path string) error {
	cn, err := c.handle("delete", path)
	if err != nil {
		return err
	}
	resolved, err := cn.realPath(path)
	if err != nil {
		return err
	}
	return cn.remove(resolved)
}

func (cn *conn) remove(path string) error {
	if err := cn.remote.Remove(path); err != nil {
		return cn.fail("delete", path, err)
	}
	return nil
}

// ListAndCleanEmptyFiles lists path like List, deletes every zero-length
// regular file that passes filter and returns the remaining regular files.
// This is not a read-only call.
func (c *Client) ListAndCleanEmptyFiles(path string, filter Filter) ([]Entry, error) {
	cn, err := c.handle("clean", path)
	if err != nil {
		return nil, err
	}
	all, err := cn.list(path, filterOrAll(filter))
	if err != nil {
		return nil, err
	}

	var files []Entry
	var g errgroup.Group
	for _, e := range all {
		if e.Type != TypeFile {
			continue
		}
		if e.Size != 0 {
			files = append(files, e)
			continue
		}
		g.Go(func() error { return cn.remove(e.Path) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// Stat returns the attributes of the file at path, following symbolic links.
func (c *Client) Stat(path string) (Stat, error) {
	cn, err := c.handle("stat", path)
	if err != nil {
		return Stat{}, err
	}
	resolved, err := cn.realPath(path)
	if err != nil {
		return Stat{}, err
	}
	a, err := cn.stat(resolved)
	if err != nil {
		return Stat{}, err
	}
	return newStat(a), nil
}

func (cn *conn) stat(path string) (attrs, error) {
	fi, err := cn.remote.Stat(path)
	if err != nil {
		return attrs{}, cn.fail("stat", path, err)
	}
	return attrsOf(fi), nil
}

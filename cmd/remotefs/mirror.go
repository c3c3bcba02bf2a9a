package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/acolita/remotefs/internal/remotefs"
	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet before it is uploaded.
const settleDelay = 200 * time.Millisecond

// mirror uploads the regular files of a local directory, and every later
// change to them, into a remote directory. Subdirectories are not followed.
type mirror struct {
	client *remotefs.Client
	local  string
	remote string
	delay  time.Duration
	fsw    *fsnotify.Watcher

	// synced is called after each file is uploaded or removed.
	synced func(name string)
}

func newMirror(client *remotefs.Client, localDir, remoteDir string) (*mirror, error) {
	abs, err := filepath.Abs(localDir)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}
	return &mirror{
		client: client,
		local:  abs,
		remote: remoteDir,
		delay:  settleDelay,
		fsw:    fsw,
	}, nil
}

// Run mirrors until ctx is cancelled or the connection is lost.
func (m *mirror) Run(ctx context.Context) error {
	defer m.fsw.Close()

	if err := m.client.Mkdir(m.remote, true); err != nil {
		return err
	}
	if err := m.syncAll(); err != nil {
		return err
	}
	slog.Info("mirroring", slog.String("local", m.local), slog.String("remote", m.remote))

	pending := make(map[string]bool)
	settle := time.NewTimer(m.delay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-m.fsw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, name)
				if err := m.remove(name); err != nil {
					return err
				}
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[name] = true
				settle.Reset(m.delay)
			}
		case err, ok := <-m.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("mirror watcher error", slog.String("error", err.Error()))
		case <-settle.C:
			for name := range pending {
				if err := m.upload(name); err != nil {
					return err
				}
			}
			clear(pending)
		}
	}
}

func (m *mirror) syncAll() error {
	entries, err := os.ReadDir(m.local)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := m.upload(e.Name()); err != nil {
			return err
		}
	}
	return nil
}

// upload sends one file. Only a dead connection is fatal; other failures
// are logged and the file is retried on its next change.
func (m *mirror) upload(name string) error {
	src := filepath.Join(m.local, name)
	fi, err := os.Stat(src)
	if err != nil || !fi.Mode().IsRegular() {
		return nil
	}

	dst := m.client.Join(m.remote, name)
	err = m.client.PutFile(src, dst, remotefs.WriteOptions{Mode: fi.Mode().Perm()})
	if fatal(err) {
		return err
	}
	if err != nil {
		slog.Warn("mirror upload failed", slog.String("path", dst), slog.String("error", err.Error()))
		return nil
	}
	slog.Info("mirrored", slog.String("path", dst), slog.Int64("bytes", fi.Size()))
	m.done(name)
	return nil
}

func (m *mirror) remove(name string) error {
	dst := m.client.Join(m.remote, name)
	err := m.client.Delete(dst)
	if fatal(err) {
		return err
	}
	if err != nil && !errors.Is(err, remotefs.ErrNoSuchFile) {
		slog.Warn("mirror delete failed", slog.String("path", dst), slog.String("error", err.Error()))
		return nil
	}
	m.done(name)
	return nil
}

func (m *mirror) done(name string) {
	if m.synced != nil {
		m.synced(name)
	}
}

func fatal(err error) bool {
	return errors.Is(err, remotefs.ErrConnectionLost) || errors.Is(err, remotefs.ErrNotConnected)
}

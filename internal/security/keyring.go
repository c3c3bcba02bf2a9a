// Package security stores and resolves the credentials used to reach SFTP
// servers.
package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name used for keyring entries.
const KeyringService = "remotefs"

const (
	probeKey         = "__remotefs_probe__"
	keyPassphraseFmt = "ssh-passphrase:%s"
	keyServerFmt     = "server:%s@%s"
)

// ErrKeyringUnavailable is returned by a disabled store.
var ErrKeyringUnavailable = errors.New("keyring not available")

// KeyringStore keeps secrets in the OS keyring (Keychain, Secret Service or
// Credential Manager).
type KeyringStore struct {
	enabled bool
}

// NewKeyringStore probes the system keyring. The store is disabled when the
// probe fails.
func NewKeyringStore() *KeyringStore {
	ks := &KeyringStore{enabled: true}
	if err := keyring.Set(KeyringService, probeKey, "probe"); err != nil {
		slog.Debug("keyring not available", slog.String("error", err.Error()))
		ks.enabled = false
		return ks
	}
	_ = keyring.Delete(KeyringService, probeKey)
	return ks
}

// IsEnabled reports whether the keyring is used.
func (ks *KeyringStore) IsEnabled() bool {
	return ks != nil && ks.enabled
}

// StoreSSHPassphrase saves the passphrase of the private key at keyPath.
func (ks *KeyringStore) StoreSSHPassphrase(keyPath string, passphrase []byte) error {
	return ks.set(fmt.Sprintf(keyPassphraseFmt, keyPath), passphrase)
}

// SSHPassphrase returns the stored passphrase of the key at keyPath, or nil.
func (ks *KeyringStore) SSHPassphrase(keyPath string) (*Secret, error) {
	return ks.get(fmt.Sprintf(keyPassphraseFmt, keyPath))
}

// DeleteSSHPassphrase forgets the passphrase of the key at keyPath.
func (ks *KeyringStore) DeleteSSHPassphrase(keyPath string) error {
	return ks.delete(fmt.Sprintf(keyPassphraseFmt, keyPath))
}

// StoreServerPassword saves the login password of user on host.
func (ks *KeyringStore) StoreServerPassword(host, user string, password []byte) error {
	return ks.set(fmt.Sprintf(keyServerFmt, user, host), password)
}

// ServerPassword returns the stored password of user on host, or nil.
func (ks *KeyringStore) ServerPassword(host, user string) (*Secret, error) {
	return ks.get(fmt.Sprintf(keyServerFmt, user, host))
}

// DeleteServerPassword forgets the password of user on host.
func (ks *KeyringStore) DeleteServerPassword(host, user string) error {
	return ks.delete(fmt.Sprintf(keyServerFmt, user, host))
}

// values are base64 encoded so arbitrary bytes survive every backend
func (ks *KeyringStore) set(key string, value []byte) error {
	if !ks.IsEnabled() {
		return ErrKeyringUnavailable
	}
	if err := keyring.Set(KeyringService, key, base64.StdEncoding.EncodeToString(value)); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	slog.Debug("stored secret in keyring", slog.String("entry", key))
	return nil
}

func (ks *KeyringStore) get(key string) (*Secret, error) {
	if !ks.IsEnabled() {
		return nil, ErrKeyringUnavailable
	}
	encoded, err := keyring.Get(KeyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return NewSecret(raw), nil
}

func (ks *KeyringStore) delete(key string) error {
	if !ks.IsEnabled() {
		return ErrKeyringUnavailable
	}
	if err := keyring.Delete(KeyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

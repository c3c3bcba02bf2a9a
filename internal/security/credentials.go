package security

import (
	"log/slog"
	"os"
)

// Resolver looks up credentials, first in the environment and then in the
// keyring.
type Resolver struct {
	store  *KeyringStore
	getenv func(string) string
}

// NewResolver returns a Resolver backed by store. A nil store disables
// keyring lookups.
func NewResolver(store *KeyringStore) *Resolver {
	return &Resolver{store: store, getenv: os.Getenv}
}

// Password returns the login password of user on host. envVar names an
// environment variable that takes precedence; it may be empty.
func (r *Resolver) Password(host, user, envVar string) *Secret {
	if s := r.fromEnv(envVar); s != nil {
		return s
	}
	if !r.keyringEnabled() {
		return nil
	}
	s, err := r.store.ServerPassword(host, user)
	if err != nil {
		slog.Warn("keyring lookup failed",
			slog.String("host", host),
			slog.String("user", user),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return s
}

// Passphrase returns the passphrase of the private key at keyPath.
func (r *Resolver) Passphrase(keyPath, envVar string) *Secret {
	if s := r.fromEnv(envVar); s != nil {
		return s
	}
	if !r.keyringEnabled() || keyPath == "" {
		return nil
	}
	s, err := r.store.SSHPassphrase(keyPath)
	if err != nil {
		slog.Warn("keyring lookup failed",
			slog.String("key_path", keyPath),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return s
}

func (r *Resolver) fromEnv(name string) *Secret {
	if name == "" {
		return nil
	}
	if v := r.getenv(name); v != "" {
		return NewSecret([]byte(v))
	}
	return nil
}

func (r *Resolver) keyringEnabled() bool {
	return r.store != nil && r.store.IsEnabled()
}

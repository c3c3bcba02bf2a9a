package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/acolita/remotefs/internal/config"
	"github.com/acolita/remotefs/internal/security"
)

// secrets is the subset of the keyring store the keyring operation uses.
type secrets interface {
	StoreServerPassword(host, user string, password []byte) error
	DeleteServerPassword(host, user string) error
	StoreSSHPassphrase(keyPath string, passphrase []byte) error
	DeleteSSHPassphrase(keyPath string) error
}

// manageKeyring saves or forgets the secret a server authenticates with: the
// login password for password auth, the key passphrase for key auth.
// The secret to save is the first line of in.
func manageKeyring(cfg *config.Config, store secrets, in io.Reader, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	action, name := args[0], args[1]
	if action != "set" && action != "delete" {
		return fmt.Errorf("unknown keyring action %q", action)
	}
	srv, err := cfg.Server(name)
	if err != nil {
		return err
	}

	switch srv.Auth.Type {
	case "password":
		if action == "delete" {
			return store.DeleteServerPassword(srv.Host, srv.User)
		}
		secret, err := readSecret(in)
		if err != nil {
			return err
		}
		defer secret.Wipe()
		return store.StoreServerPassword(srv.Host, srv.User, secret.Bytes())
	case "key":
		if action == "delete" {
			return store.DeleteSSHPassphrase(srv.Auth.Path)
		}
		secret, err := readSecret(in)
		if err != nil {
			return err
		}
		defer secret.Wipe()
		return store.StoreSSHPassphrase(srv.Auth.Path, secret.Bytes())
	}
	return fmt.Errorf("server %s: %s authentication has no secret to store", srv.Name, authName(srv.Auth.Type))
}

func readSecret(in io.Reader) (*security.Secret, error) {
	line, err := bufio.NewReader(in).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read secret: %w", err)
	}
	secret := security.NewSecret(bytes.TrimRight(line, "\r\n"))
	security.WipeBytes(line)
	if secret.Len() == 0 {
		return nil, errors.New("empty secret on standard input")
	}
	return secret, nil
}

func authName(t string) string {
	if t == "" {
		return "agent"
	}
	return t
}

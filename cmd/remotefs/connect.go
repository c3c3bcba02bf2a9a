package main

import (
	"fmt"

	"github.com/acolita/remotefs/internal/config"
	"github.com/acolita/remotefs/internal/ports"
	"github.com/acolita/remotefs/internal/security"
	"github.com/acolita/remotefs/internal/transport"
)

// dialConfig assembles the credentials and host key policy for srv.
func dialConfig(srv *config.ServerConfig, conn config.ConnectionConfig, creds *security.Resolver) (ports.DialConfig, error) {
	auth := transport.AuthConfig{
		Host:     srv.Host,
		UseAgent: srv.Auth.Type == "" || srv.Auth.Type == "agent",
	}

	switch srv.Auth.Type {
	case "key":
		auth.KeyPath = srv.Auth.Path
	case "password":
		pw := creds.Password(srv.Host, srv.User, srv.Auth.PasswordEnv)
		if pw == nil {
			return ports.DialConfig{}, fmt.Errorf("server %s: no password found", srv.Name)
		}
		defer pw.Wipe()
		auth.Password = pw.String()
	}

	pass := creds.Passphrase(srv.Auth.Path, srv.Auth.PassphraseEnv)
	defer pass.Wipe()
	auth.KeyPassphrase = pass.String()

	methods, err := transport.BuildAuthMethods(auth)
	if err != nil {
		return ports.DialConfig{}, fmt.Errorf("server %s: %w", srv.Name, err)
	}
	hostKey, err := transport.BuildHostKeyCallback(srv.KnownHosts, srv.InsecureIgnoreHostKey)
	if err != nil {
		return ports.DialConfig{}, fmt.Errorf("server %s: %w", srv.Name, err)
	}

	return ports.DialConfig{
		Host:            srv.Host,
		Port:            srv.Port,
		User:            srv.User,
		AuthMethods:     methods,
		HostKeyCallback: hostKey,
		Timeout:         conn.Timeout,
	}, nil
}

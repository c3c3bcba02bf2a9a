package transport

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	KeyPath       string // private key file
	KeyPassphrase string
	UseAgent      bool
	Password      string
	Host          string // used for ~/.ssh/config IdentityFile lookup
}

var defaultKeys = []string{
	"~/.ssh/id_ed25519",
	"~/.ssh/id_rsa",
	"~/.ssh/id_ecdsa",
}

// ErrNoAuthMethods is returned when no credentials could be assembled.
var ErrNoAuthMethods = errors.New("no authentication methods available")

// BuildAuthMethods constructs SSH auth methods from cfg. Order: agent, key
// file (explicit, from ssh config, or the first default key), password.
func BuildAuthMethods(cfg AuthConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.UseAgent {
		if m, err := agentAuth(os.Getenv("SSH_AUTH_SOCK")); err == nil {
			methods = append(methods, m)
		}
	}

	switch {
	case cfg.KeyPath != "":
		m, err := privateKeyAuth(cfg.KeyPath, cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("private key auth: %w", err)
		}
		methods = append(methods, m)
	case cfg.Host != "":
		if key := identityFileFor(cfg.Host, expandPath("~/.ssh/config")); key != "" {
			if m, err := privateKeyAuth(key, cfg.KeyPassphrase); err == nil {
				methods = append(methods, m)
			}
		}
	}

	if cfg.KeyPath == "" && cfg.Password == "" && len(methods) == 0 {
		for _, k := range defaultKeys {
			if m, err := privateKeyAuth(k, cfg.KeyPassphrase); err == nil {
				methods = append(methods, m)
				break
			}
		}
	}

	if cfg.Password != "" {
		methods = append(methods, PasswordAuth(cfg.Password), KeyboardInteractiveAuth(cfg.Password))
	}

	if len(methods) == 0 {
		return nil, ErrNoAuthMethods
	}
	return methods, nil
}

func agentAuth(socket string) (ssh.AuthMethod, error) {
	if socket == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set")
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

func privateKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(expandPath(keyPath))
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

// BuildHostKeyCallback returns a known_hosts based callback. An empty path
// means ~/.ssh/known_hosts. With insecure set, any host key is accepted.
func BuildHostKeyCallback(knownHostsPath string, insecure bool) (ssh.HostKeyCallback, error) {
	if insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if knownHostsPath == "" {
		knownHostsPath = "~/.ssh/known_hosts"
	}
	cb, err := knownhosts.New(expandPath(knownHostsPath))
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return cb, nil
}

func expandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// identityFileFor returns the first IdentityFile that applies to host in the
// ssh config file at configPath.
func identityFileFor(host, configPath string) string {
	f, err := os.Open(configPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	matches := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		value := strings.Join(fields[1:], " ")
		switch strings.ToLower(fields[0]) {
		case "host":
			matches = hostMatches(host, fields[1:])
		case "identityfile":
			if matches {
				return expandPath(value)
			}
		}
	}
	return ""
}

// hostMatches reports whether host matches any ssh_config Host pattern.
// Patterns use "*" and "?" wildcards; host names never contain "/", so
// doublestar semantics coincide with ssh's.
func hostMatches(host string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, host); err == nil && ok {
			return true
		}
	}
	return false
}

// PasswordAuth returns a password auth method.
func PasswordAuth(password string) ssh.AuthMethod {
	return ssh.Password(password)
}

// KeyboardInteractiveAuth answers every challenge with password.
func KeyboardInteractiveAuth(password string) ssh.AuthMethod {
	return ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	})
}

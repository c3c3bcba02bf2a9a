// Package config handles configuration parsing for remotefs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/remotefs/config.yaml or ~/.config/remotefs/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "remotefs", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Servers    []ServerConfig   `yaml:"servers"`
	Connection ConnectionConfig `yaml:"connection"`
	Transfer   TransferConfig   `yaml:"transfer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig defines an SFTP server.
type ServerConfig struct {
	Name                  string     `yaml:"name"`
	Host                  string     `yaml:"host"`
	Port                  int        `yaml:"port"`
	User                  string     `yaml:"user"`
	KnownHosts            string     `yaml:"known_hosts"`              // defaults to ~/.ssh/known_hosts
	InsecureIgnoreHostKey bool       `yaml:"insecure_ignore_host_key"` // skip host key verification
	Auth                  AuthConfig `yaml:"auth"`
}

// AuthConfig defines authentication settings.
type AuthConfig struct {
	Type          string `yaml:"type"`           // "key", "password" or "agent"
	Path          string `yaml:"path"`           // path to key file
	PassphraseEnv string `yaml:"passphrase_env"` // env var containing key passphrase
	PasswordEnv   string `yaml:"password_env"`   // env var containing SSH password
	UseKeyring    bool   `yaml:"use_keyring"`    // look secrets up in the OS keyring
}

// ConnectionConfig defines transport settings.
type ConnectionConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"` // 0 disables keepalives
}

// TransferConfig defines transfer settings.
type TransferConfig struct {
	MaxBufferSize    int64 `yaml:"max_buffer_size"` // bytes; 0 means unbounded
	ConcurrentWrites bool  `yaml:"concurrent_writes"`
	MaxPacket        int   `yaml:"max_packet"` // 0 keeps the sftp default
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Timeout:           30 * time.Second,
			KeepaliveInterval: 30 * time.Second,
		},
		Transfer: TransferConfig{
			MaxBufferSize:    64 << 20,
			ConcurrentWrites: true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults. An empty
// path yields the defaults. An optional afero.Fs can be passed for testing;
// if omitted, the real OS is used.
func Load(path string, fsys ...afero.Fs) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	fs := afero.NewOsFs()
	if len(fsys) > 0 && fsys[0] != nil {
		fs = fsys[0]
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validAuthTypes = map[string]bool{"": true, "key": true, "password": true, "agent": true}

// Validate checks the configuration and fills in server port defaults.
func (c *Config) Validate() error {
	var errs []error

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if c.Connection.Timeout < 0 {
		errs = append(errs, errors.New("connection.timeout: must not be negative"))
	}
	if c.Connection.KeepaliveInterval < 0 {
		errs = append(errs, errors.New("connection.keepalive_interval: must not be negative"))
	}
	if c.Transfer.MaxBufferSize < 0 {
		errs = append(errs, errors.New("transfer.max_buffer_size: must not be negative"))
	}
	if c.Transfer.MaxPacket < 0 {
		errs = append(errs, errors.New("transfer.max_packet: must not be negative"))
	}

	seen := make(map[string]bool, len(c.Servers))
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Port == 0 {
			s.Port = 22
		}
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("servers[%d]: %w", i, err))
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("servers[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
	}
	return errors.Join(errs...)
}

func (s *ServerConfig) validate() error {
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case s.Host == "":
		return errors.New("host is required")
	case s.User == "":
		return errors.New("user is required")
	case s.Port < 1 || s.Port > 65535:
		return fmt.Errorf("port %d out of range", s.Port)
	case !validAuthTypes[s.Auth.Type]:
		return fmt.Errorf("auth.type: unknown type %q", s.Auth.Type)
	case s.Auth.Type == "key" && s.Auth.Path == "":
		return errors.New("auth.path is required for key auth")
	}
	return nil
}

// Server returns the server called name. An empty name selects the only
// configured server.
func (c *Config) Server(name string) (*ServerConfig, error) {
	if name == "" {
		if len(c.Servers) == 1 {
			return &c.Servers[0], nil
		}
		return nil, fmt.Errorf("server name required: %d servers configured", len(c.Servers))
	}
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server %q not found", name)
}

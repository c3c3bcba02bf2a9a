// remotefs runs one remote filesystem operation against a configured SFTP
// server, or mirrors a local directory to it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/acolita/remotefs/internal/config"
	"github.com/acolita/remotefs/internal/logging"
	"github.com/acolita/remotefs/internal/remotefs"
	"github.com/acolita/remotefs/internal/security"
	"github.com/acolita/remotefs/internal/transport"
)

// Version information - set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: remotefs [flags] <op> [args...]

operations:
  pwd
  ls [-a] PATH [GLOB]
  exists PATH
  stat PATH
  mkdir [-r] PATH
  rmdir [-r] PATH
  rm PATH
  mv FROM TO
  get REMOTE [LOCAL]
  put LOCAL REMOTE
  clean PATH [GLOB]
  mirror LOCALDIR REMOTEDIR
  keyring set|delete SERVER   (set reads the secret from stdin)

flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		configPath  string
		serverName  string
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", config.DefaultConfigPath(), "Path to configuration file")
	flag.StringVar(&serverName, "server", "", "Configured server to use")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("remotefs version %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Sanitize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, configPath, serverName, debug, flag.Args()); err != nil {
		slog.Debug("operation failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "remotefs: %v\n", err)
		if code := remotefs.Code(err); code != 0 {
			os.Exit(int(code) + 10)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, configPath, serverName string, debug bool, args []string) error {
	if args[0] == "keyring" {
		return manageKeyring(cfg, security.NewKeyringStore(), os.Stdin, args[1:])
	}

	srv, err := cfg.Server(serverName)
	if err != nil {
		return err
	}

	var store *security.KeyringStore
	if srv.Auth.UseKeyring {
		store = security.NewKeyringStore()
	}
	dialCfg, err := dialConfig(srv, cfg.Connection, security.NewResolver(store))
	if err != nil {
		return err
	}

	dialer := transport.NewDialer(transport.ClientOptions{
		KeepaliveInterval: cfg.Connection.KeepaliveInterval,
		ConcurrentWrites:  cfg.Transfer.ConcurrentWrites,
		MaxPacket:         cfg.Transfer.MaxPacket,
	})
	client := remotefs.New(dialer)
	if err := client.Connect(ctx, dialCfg); err != nil {
		return err
	}
	defer client.End()

	op, rest := args[0], args[1:]
	if op != "mirror" {
		r := &runner{client: client, out: os.Stdout, maxBuffer: cfg.Transfer.MaxBufferSize}
		return r.run(op, rest)
	}

	if len(rest) != 2 {
		return errUsage
	}
	if w := watchConfig(configPath, debug); w != nil {
		defer w.Close()
	}
	m, err := newMirror(client, rest[0], rest[1])
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

// watchConfig keeps the log level in step with the configuration file.
func watchConfig(path string, debug bool) *config.Watcher {
	if path == "" {
		return nil
	}
	w, err := config.NewWatcher(path, func(c *config.Config) {
		if !debug {
			logging.SetLevel(c.Logging.Level)
		}
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", slog.String("error", err.Error()))
		return nil
	}
	return w
}

var errUsage = errors.New("invalid arguments, see -help")

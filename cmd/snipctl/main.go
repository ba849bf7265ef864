// Command snipctl is a terminal client for a snipo server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MohamedElashri/snipvault/internal/apiclient"
	"github.com/MohamedElashri/snipvault/internal/config"
	"github.com/MohamedElashri/snipvault/internal/gateway"
	"github.com/MohamedElashri/snipvault/internal/session"
	"github.com/MohamedElashri/snipvault/internal/store"
)

// Version information (set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

// app is the wiring shared by every subcommand
type app struct {
	cfg     *config.ClientConfig
	logger  *slog.Logger
	client  *apiclient.Client
	session *session.Session
	store   *store.Store
	gw      *gateway.Gateway
}

var current *app

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd || cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
			return nil
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		current = a
		return nil
	}

	if err := execute(ctx); err != nil {
		OutputError(outputJSON, err)
		stop()
		os.Exit(CLIExitError)
	}
}

// execute runs the root command and releases the app on every path,
// including commands that fail.
func execute(ctx context.Context) error {
	defer closeApp()
	return rootCmd.ExecuteContext(ctx)
}

func closeApp() {
	if current == nil {
		return
	}
	current.store.Close()
	current = nil
}

func newApp() (*app, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	client, err := apiclient.New(cfg.APIURL)
	if err != nil {
		return nil, err
	}
	token := cfg.Token
	if token == "" {
		token = readToken()
	}
	client.WithTimeout(cfg.Timeout).
		WithLogger(logger).
		WithUserAgent("snipctl/" + Version).
		WithToken(token)

	sess := session.New(client)
	st := store.New(logger).WithWatchdog(cfg.WatchdogTimeout)
	gw := gateway.New(client, st, sess, logger).WithPageSize(cfg.PageSize)

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		session: sess,
		store:   st,
		gw:      gw,
	}, nil
}

// tokenPath is where login keeps the session token between invocations
func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "snipvault", "token"), nil
}

func readToken() string {
	path, err := tokenPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

func removeToken() error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// setupLogger writes to stderr so command output stays parseable
func setupLogger(logLevel, logFormat string) *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

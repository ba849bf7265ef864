package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MohamedElashri/snipvault/internal/api"
	"github.com/MohamedElashri/snipvault/internal/api/handlers"
	"github.com/MohamedElashri/snipvault/internal/api/middleware"
	"github.com/MohamedElashri/snipvault/internal/auth"
	"github.com/MohamedElashri/snipvault/internal/config"
	"github.com/MohamedElashri/snipvault/internal/database"
	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/repository"
	"github.com/MohamedElashri/snipvault/internal/services"
	"github.com/MohamedElashri/snipvault/internal/storage"
)

// Build-time variables
var (
	Version = "dev"
	Commit  = "unknown"
)

const usage = `Usage: snipo <command> [options]

Commands:
  serve                         run the API server (default)
  migrate                       apply database migrations
  useradd <email> [name]        create a user; password from SNIPO_USER_PASSWORD or stdin
  backup export [-format json|zip] [-password p] [-o file]
  backup import [-strategy merge|replace] [-password p] <file>
  backup push   [-format json|zip] [-password p]
  backup list
  backup restore [-strategy merge|replace] [-password p] [key]
  version                       print version
  health                        probe a running server`

func main() {
	// Check for subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServer()
		case "migrate":
			runMigrations()
		case "useradd":
			runUserAdd(os.Args[2:])
		case "backup":
			runBackup(os.Args[2:])
		case "version":
			fmt.Printf("snipo %s (commit: %s)\n", Version, Commit)
			os.Exit(0)
		case "health":
			checkHealth()
		default:
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			fmt.Println(usage)
			os.Exit(1)
		}
	} else {
		runServer()
	}
}

// bootstrap loads configuration, sets up logging and opens the migrated
// database. Failures are fatal.
func bootstrap() (*config.Config, *slog.Logger, *database.DB) {
	cfg, err := config.Load()
	if err != nil {
		setupLogger("info", "json").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		BusyTimeout:     cfg.Database.BusyTimeout,
		JournalMode:     cfg.Database.JournalMode,
		SynchronousMode: cfg.Database.SynchronousMode,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.Migrate(context.Background()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		db.Close()
		os.Exit(1)
	}

	return cfg, logger, db
}

func runServer() {
	cfg, logger, db := bootstrap()
	defer db.Close()

	logger.Info("starting snipo", "version", Version, "commit", Commit)

	// Configure proxy trust setting
	middleware.TrustProxy = cfg.Server.TrustProxy

	// Warn if session secret was auto-generated
	if cfg.Auth.SessionSecretGenerated {
		logger.Warn("SECURITY WARNING: SNIPO_SESSION_SECRET not set - using auto-generated secret",
			"recommendation", "Set SNIPO_SESSION_SECRET environment variable for production. Generate with: openssl rand -hex 32")
	}

	authService := auth.NewService(
		repository.NewUserRepository(db.DB),
		cfg.Auth.SessionSecret,
		cfg.Auth.SessionDuration,
		logger,
	).WithSecureCookies(cfg.Auth.SecureCookies)

	stop := make(chan struct{})
	defer close(stop)

	// Forget revoked tokens once they would have expired anyway
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				authService.CleanupRevoked()
			case <-stop:
				return
			}
		}
	}()

	loginLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:  cfg.Auth.LoginRate,
		Burst: cfg.Auth.LoginBurst,
	})
	loginLimiter.StartCleanup(5*time.Minute, stop)

	routerCfg := api.RouterConfig{
		DB:             db.DB,
		Logger:         logger,
		AuthService:    authService,
		Version:        Version,
		Commit:         Commit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LoginLimiter:   loginLimiter,
	}

	if cfg.Server.EnableMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		routerCfg.Metrics = reg
	}

	if cfg.S3.Enabled {
		store, err := openStorage(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to connect to backup storage", "error", err)
			os.Exit(1)
		}
		routerCfg.Storage = handlers.Pinger(store)
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func runMigrations() {
	_, logger, db := bootstrap()
	defer db.Close()

	version, err := database.SchemaVersion(context.Background(), db.DB)
	if err != nil {
		logger.Error("failed to read schema version", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations completed successfully", "schema_version", version)
}

func runUserAdd(args []string) {
	if len(args) < 1 {
		fmt.Println(usage)
		os.Exit(1)
	}
	email := args[0]
	name := ""
	if len(args) > 1 {
		name = strings.Join(args[1:], " ")
	}

	cfg, logger, db := bootstrap()
	defer db.Close()

	password := os.Getenv("SNIPO_USER_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			logger.Error("failed to read password", "error", err)
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if len(password) < 8 {
		logger.Error("password must be at least 8 characters")
		os.Exit(1)
	}

	authService := auth.NewService(repository.NewUserRepository(db.DB), cfg.Auth.SessionSecret, cfg.Auth.SessionDuration, logger)
	user, err := authService.Register(context.Background(), email, name, password)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			logger.Error("a user with this email already exists", "email", email)
		} else {
			logger.Error("failed to create user", "error", err)
		}
		os.Exit(1)
	}

	fmt.Printf("created user %s (%s)\n", user.Email, user.ID)
}

func runBackup(args []string) {
	if len(args) < 1 {
		fmt.Println(usage)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("backup "+args[0], flag.ExitOnError)
	format := fs.String("format", "json", "backup format: json or zip")
	password := fs.String("password", os.Getenv("SNIPO_BACKUP_PASSWORD"), "encrypt or decrypt with this password")
	strategy := fs.String("strategy", services.StrategyMerge, "import strategy: merge or replace")
	output := fs.String("o", "", "output file (default: generated name)")
	_ = fs.Parse(args[1:])

	cfg, logger, db := bootstrap()
	defer db.Close()

	ctx := context.Background()
	backupSvc := services.NewBackupService(db.DB, logger)
	exportOpts := models.ExportOptions{Format: *format, Password: *password}
	importOpts := models.ImportOptions{Strategy: *strategy, Password: *password}

	switch args[0] {
	case "export":
		content, filename, err := backupSvc.Export(ctx, exportOpts)
		if err != nil {
			fatal(logger, "export failed", err)
		}
		if *output != "" {
			filename = *output
		}
		if err := os.WriteFile(filename, content, 0o600); err != nil {
			fatal(logger, "failed to write backup", err)
		}
		fmt.Println(filename)

	case "import":
		if fs.NArg() != 1 {
			fmt.Println(usage)
			os.Exit(1)
		}
		content, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fatal(logger, "failed to read backup", err)
		}
		result, err := backupSvc.Import(ctx, content, importOpts)
		if err != nil {
			fatal(logger, "import failed", err)
		}
		printJSON(result)

	case "push", "list", "restore":
		if !cfg.S3.Enabled {
			logger.Error("S3 is not enabled; set SNIPO_S3_ENABLED=true and SNIPO_S3_BUCKET")
			os.Exit(1)
		}
		store, err := openStorage(ctx, cfg)
		if err != nil {
			fatal(logger, "failed to connect to backup storage", err)
		}
		syncer := services.NewS3SyncService(store, backupSvc, logger).WithRetention(cfg.S3.Retention)

		switch args[0] {
		case "push":
			result, err := syncer.Push(ctx, exportOpts)
			if err != nil {
				fatal(logger, "push failed", err)
			}
			printJSON(result)
		case "list":
			backups, err := syncer.List(ctx)
			if err != nil {
				fatal(logger, "list failed", err)
			}
			printJSON(backups)
		case "restore":
			result, err := syncer.Restore(ctx, fs.Arg(0), importOpts)
			if err != nil {
				fatal(logger, "restore failed", err)
			}
			printJSON(result)
		}

	default:
		fmt.Printf("Unknown backup command: %s\n", args[0])
		fmt.Println(usage)
		os.Exit(1)
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage.S3Storage, error) {
	return storage.NewS3Storage(ctx, storage.S3Config{
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Prefix:          cfg.S3.Prefix,
		UseSSL:          cfg.S3.UseSSL,
	})
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func checkHealth() {
	// Simple health check for Docker HEALTHCHECK
	port := os.Getenv("SNIPO_PORT")
	if port == "" {
		port = "8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/ping")
	if err != nil {
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
	os.Exit(0)
}

func setupLogger(logLevel, logFormat string) *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

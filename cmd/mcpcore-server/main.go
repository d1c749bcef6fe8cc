// Command mcpcore-server bootstraps the protocol-core MCP server: it
// loads configuration, assembles the demo OAuth 2.1 authorization
// server and resource-server validator, registers the demo tool/
// resource/prompt catalog, and runs the stdio and/or streamable-HTTP
// transport. Ground: the teacher's cmd/mcplexer/main.go subcommand
// dispatch and cmdServe/runHTTP/runStdio structure.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mcpcore/mcpcore/internal/audit"
	"github.com/mcpcore/mcpcore/internal/auth"
	"github.com/mcpcore/mcpcore/internal/config"
	"github.com/mcpcore/mcpcore/internal/oauthserver"
	"github.com/mcpcore/mcpcore/internal/secrets"
	"github.com/mcpcore/mcpcore/internal/server"
	"github.com/mcpcore/mcpcore/internal/store/sqlite"
	"github.com/mcpcore/mcpcore/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcpcore-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	subcmd := "serve"
	if args := os.Args[1:]; len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subcmd = args[0]
	}

	switch subcmd {
	case "serve":
		return cmdServe()
	case "init":
		return cmdInit()
	case "status":
		return cmdStatus()
	default:
		return fmt.Errorf("unknown command: %s\nUsage: mcpcore-server [serve|init|status]", subcmd)
	}
}

func cmdServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	closeLog, err := configureLogging(cfg)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer closeLog()

	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	auditor := audit.NewLogger(audit.NewBus(), func(rec audit.Record) {
		detail, _ := json.Marshal(rec.Detail)
		if err := db.InsertAudit(ctx, rec.ID, rec.SessionID, rec.Kind, rec.Subject, rec.Success, string(detail), rec.Timestamp); err != nil {
			slog.Warn("persist audit record", "error", err)
		}
	})

	validator, oauthSrv, err := buildAuth(cfg)
	if err != nil {
		return fmt.Errorf("build auth: %w", err)
	}

	srv := server.New(server.Info{
		Name:         cfg.ServerName,
		Version:      "0.1.0",
		Instructions: "A demonstration Model Context Protocol server.",
	}, 0)
	srv.Auth = validator
	srv.OAuth = oauthSrv
	srv.AllowOrigins = cfg.AllowOrigins
	srv.Auditor = auditor
	registerDemoCatalog(srv)

	if cfg.ConfigFile != "" {
		if _, err := os.Stat(cfg.ConfigFile); err == nil {
			fileCfg, err := config.LoadFile(cfg.ConfigFile)
			if err != nil {
				return fmt.Errorf("load config file: %w", err)
			}
			if err := config.Apply(ctx, fileCfg, srv); err != nil {
				return fmt.Errorf("apply config: %w", err)
			}
			slog.Info("loaded config", "file", cfg.ConfigFile)
		}
	}

	switch cfg.Mode {
	case "stdio":
		return runStdio(ctx, srv)
	case "http":
		return runHTTP(ctx, cfg, srv)
	case "both":
		return runBoth(ctx, cfg, srv)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// buildAuth wires the demo OAuth AS and the resource-server validator
// from the same HS256 signing key, sealed at rest with an age-encrypted
// key file. Ground: the teacher's buildAuthInjector auto-provisioning
// idiom.
func buildAuth(cfg *Config) (*auth.Validator, *oauthserver.Server, error) {
	if !cfg.EnableOAuth {
		return nil, nil, nil
	}

	keyPath := cfg.AgeKeyPath
	if keyPath == "" {
		keyPath = cfg.DBDSN + ".age"
	}
	enc, err := secrets.EnsureKeyFile(keyPath)
	if err != nil {
		slog.Warn("failed to create auto age key file, falling back to ephemeral", "path", keyPath, "error", err)
		enc, err = secrets.NewEphemeralEncryptor()
		if err != nil {
			return nil, nil, fmt.Errorf("create ephemeral encryptor: %w", err)
		}
	}

	signingKey, err := loadOrCreateSigningKey(enc, cfg.DBDSN+".oauthkey")
	if err != nil {
		return nil, nil, fmt.Errorf("load signing key: %w", err)
	}

	issuer := cfg.ExternalURL
	if issuer == "" {
		issuer = "http://" + cfg.HTTPAddr
	}

	oauthSrv := oauthserver.NewServer(issuer, signingKey)
	validator := &auth.Validator{
		Keys:                     []string{encodeKey(signingKey)},
		Resource:                 issuer,
		Issuer:                   issuer,
		RequireResourceIndicator: cfg.RequireResourceIndicator,
	}
	return validator, oauthSrv, nil
}

func runHTTP(ctx context.Context, cfg *Config, srv *server.Server) error {
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down http server")
		srv.Sessions.CloseAll(context.Background())
		return httpSrv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func runStdio(ctx context.Context, srv *server.Server) error {
	stdio := &transport.StdioServer{Manager: srv.Sessions, Dispatcher: srv.Dispatcher}
	return stdio.Run(ctx, os.Stdin, os.Stdout)
}

// runBoth serves stdio and HTTP concurrently, the way a single mcpcore-
// server process can back one embedded stdio client and any number of
// remote HTTP clients at once. Ground: the teacher's runHTTPAndSocket
// errgroup pairing of two transports over one shared core.
func runBoth(ctx context.Context, cfg *Config, srv *server.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runHTTP(gctx, cfg, srv) })
	g.Go(func() error { return runStdio(gctx, srv) })
	return g.Wait()
}

// configureLogging attaches the process-wide slog default handler. In
// stdio mode nothing but JSON-RPC frames may reach stdout, so
// diagnostics go to a file sink under a fresh temp directory instead of
// stderr (a parent process piping both stdout and stderr to the same
// place would otherwise interleave them with protocol frames).
func configureLogging(cfg *Config) (func(), error) {
	if cfg.Mode != "stdio" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
		return func() {}, nil
	}

	dir, err := os.MkdirTemp("", "mcpcore-server-*")
	if err != nil {
		return nil, fmt.Errorf("create diagnostics temp dir: %w", err)
	}
	logPath := filepath.Join(dir, "mcpcore-server.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open diagnostics log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.LogLevel})))
	return func() { _ = f.Close() }, nil
}

func cmdInit() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	ctx := context.Background()
	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	fmt.Printf("initialized mcpcore database at %s\n", cfg.DBDSN)
	return nil
}

func cmdStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	count, err := db.CountSessions(ctx)
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	fmt.Printf("mode=%s addr=%s db=%s sessions_recorded=%d oauth=%t\n",
		cfg.Mode, cfg.HTTPAddr, cfg.DBDSN, count, cfg.EnableOAuth)
	return nil
}

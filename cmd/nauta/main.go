package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for minimal systems

	"github.com/ericfisherdev/nauta/internal/adapter/driven/portal"
	"github.com/ericfisherdev/nauta/internal/adapter/driven/sessionfile"
	sqliteadapter "github.com/ericfisherdev/nauta/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/nauta/internal/adapter/driving/cli"
	"github.com/ericfisherdev/nauta/internal/application"
	"github.com/ericfisherdev/nauta/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Diagnostics go to stderr; --debug lowers the level.
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// 2. Load configuration and create the data directories.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	slog.Debug("config loaded",
		"db_path", cfg.DBPath,
		"log_path", cfg.LogPath,
		"session_dir", cfg.SessionDir,
		"http_timeout", cfg.HTTPTimeout,
	)

	// 3. Connection history is appended to a log file shared by all invocations.
	logFile, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open connection log: %w", err)
	}
	defer func() {
		if closeErr := logFile.Close(); closeErr != nil {
			slog.Error("error closing connection log", "error", closeErr)
		}
	}()
	connLog := slog.New(slog.NewTextHandler(logFile, nil))

	// 4. Ctrl+C cancels the context; an open session logs out before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Open the card database and run migrations.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	// 6. Wire adapters.
	cardStore := sqliteadapter.NewCardRepo(db)
	sessionStore := sessionfile.NewStore(cfg.SessionDir)
	portalClient, err := portal.NewClient(portal.Endpoints{
		BootstrapURL: cfg.BootstrapURL,
		PortalURL:    cfg.PortalURL,
		QueryURL:     cfg.QueryURL,
		LogoutURL:    cfg.LogoutURL,
	}, cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	// 7. Create services.
	cardSvc := application.NewCardService(cardStore, portalClient, application.WithConnectionLog(connLog))
	sessionSvc := application.NewSessionService(
		cardSvc,
		portalClient,
		sessionStore,
		sessionStore,
		cfg.LogoutURL,
		application.WithConnectionLog(connLog),
	)

	// 8. Run the command line.
	return cli.Execute(ctx, &cli.App{
		Cards:    cardSvc,
		Sessions: sessionSvc,
		Prompter: cli.NewTerminalPrompter(os.Stdin, os.Stdout),
		Out:      os.Stdout,
		ConnLog:  connLog,
		LogLevel: level,
	}, os.Args[1:])
}

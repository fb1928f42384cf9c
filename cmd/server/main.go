package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/wesconsole/internal/config"
	"github.com/me/wesconsole/internal/console"
	"github.com/me/wesconsole/internal/logging"
	"github.com/me/wesconsole/internal/poller"
	"github.com/me/wesconsole/internal/resolve"
	"github.com/me/wesconsole/internal/server"
	"github.com/me/wesconsole/internal/store"
	"github.com/me/wesconsole/pkg/trs"
	"github.com/me/wesconsole/pkg/wes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.wesconsole/wesconsole.db)")
	flag.StringVar(&cfg.PollSchedule, "poll", cfg.PollSchedule, "Refresh schedule (cron expression or @every duration, \"off\" disables)")
	flag.StringVar(&cfg.PreRegisteredServices, "services", cfg.PreRegisteredServices, "YAML file of pre-registered services")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Timeout for each request to a remote service")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}
	pollingEnabled := cfg.PollSchedule != "off"
	if !pollingEnabled {
		cfg.PollSchedule = poller.DefaultSchedule
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".wesconsole")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "wesconsole.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	c := console.New(
		wes.NewClient(logger, wes.WithTimeout(cfg.RequestTimeout)),
		resolve.New(logger, resolve.WithHTTPClient(httpClient), resolve.WithGitHubAPI(cfg.GitHubAPI)),
		logger,
		console.WithTRSClient(trs.NewClient(httpClient, logger)),
		console.WithRunPageSize(cfg.RunPageSize),
		console.WithParallelism(cfg.Parallelism),
	)

	snap, err := st.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load state: %v\n", err)
		os.Exit(1)
	}
	c.Restore(snap)
	stats := c.Stats()
	logger.Info("state restored", "services", stats.Services, "workflows", stats.Workflows, "runs", stats.Runs)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PreRegisteredServices != "" {
		reqs, err := config.LoadPreRegisteredServices(cfg.PreRegisteredServices)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pre-registered services: %v\n", err)
			os.Exit(1)
		}
		added, err := c.RegisterPreRegisteredServices(ctx, reqs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "register services: %v\n", err)
			os.Exit(1)
		}
		logger.Info("pre-registered services", "configured", len(reqs), "added", len(added))
		if len(added) > 0 {
			if err := st.Save(ctx, c.Snapshot()); err != nil {
				logger.Error("persist snapshot", "error", err)
			}
		}
	}

	serverOpts := []server.Option{server.WithStore(st)}
	var p *poller.Poller
	if pollingEnabled {
		p, err = poller.New(c, cfg.PollSchedule, logger, poller.WithAfterTick(func(ctx context.Context) error {
			return st.Save(ctx, c.Snapshot())
		}))
		if err != nil {
			fmt.Fprintf(os.Stderr, "create poller: %v\n", err)
			os.Exit(1)
		}
		serverOpts = append(serverOpts, server.WithPoller(p))
	}

	srv := server.New(cfg, c, logger, serverOpts...)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Start poller in background.
	srv.StartPoller(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop poller before HTTP server.
	if p != nil {
		if err := p.Stop(); err != nil {
			logger.Error("poller stop error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	if err := st.Save(shutdownCtx, c.Snapshot()); err != nil {
		logger.Error("persist snapshot", "error", err)
	}
	logger.Info("server stopped")
}

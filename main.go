// sysmon-agent is a periodic multi-source system metrics collector.
//
// A single coordinator polls the configured sources (disk usage, memory,
// swap, network IO and addresses, CPU temperature and load, watched
// processes) on a fixed interval, suppresses unchanged readings, and
// fans admitted readings out to subscribers: a SQLite history store and
// a read-only HTTP API.
//
// Usage:
//
//	sysmon-agent [flags]
//
// Flags:
//
//	-config string  Path to configuration file (default: ~/.config/sysmon-agent/config.toml)
//	-once           Run a single poll cycle, print readings as JSON, and exit
//	-verbose        Enable verbose logging
//	-version        Print version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/api"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/bus"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/collectors"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/config"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/coordinator"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/history"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/provider"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/state"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		runOnce     = flag.Bool("once", false, "Run a single poll cycle, print readings as JSON, and exit")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sysmon-agent %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.General.LogLevel, *verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := run(ctx, cfg, logger, *runOnce); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("agent error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, once bool) error {
	p := provider.NewSystemProvider()

	reg := collectors.NewRegistry()
	for _, src := range cfg.Sources {
		res := src.Type
		if src.Arg != "" {
			res = src.Type + ":" + src.Arg
		}
		built, err := collectors.Build(p, []string{res}, src.Args, src.Interval.Duration)
		if err != nil {
			return fmt.Errorf("build source %q: %w", res, err)
		}
		for _, c := range built {
			if err := reg.Register(c); err != nil {
				return fmt.Errorf("register source %q: %w", res, err)
			}
		}
	}

	b := bus.New(logger)
	coord := coordinator.New(reg, b, coordinator.Options{
		PollInterval: cfg.General.PollInterval.Duration,
		FetchTimeout: cfg.General.FetchTimeout.Duration,
		Logger:       logger,
	})

	if once {
		coord.PollCycle(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(coord.Snapshot())
	}

	// Restore the previous snapshot so restarts surface stale data
	// instead of gaps. The next successful poll republishes because the
	// success flag flips.
	if cfg.General.StateFile != "" {
		snap, err := state.Load(cfg.General.StateFile)
		if err != nil {
			logger.Warn("starting cold, snapshot unreadable", "error", err)
		} else if len(snap.Readings) > 0 {
			coord.Seed(snap.Readings)
			logger.Info("restored snapshot",
				"readings", len(snap.Readings), "saved_at", snap.SavedAt)
		}
	}

	var store *history.Store
	if cfg.History.Enabled {
		var err error
		store, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		b.Subscribe("history", store.Subscriber(ctx))
	}

	b.Subscribe("log", func(pub bus.Publication) error {
		logger.Debug("published reading",
			"source", pub.SourceID,
			"success", pub.Reading.LastUpdateSuccess,
			"state", pub.Reading.State)
		return nil
	})

	logger.Info("starting sysmon-agent",
		"sources", len(cfg.Sources),
		"poll_interval", cfg.General.PollInterval.Duration,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coord.Run(gctx)
	})

	if store != nil && cfg.History.Retention.Duration > 0 {
		g.Go(func() error {
			return prunePeriodically(gctx, store, cfg.History.Retention.Duration, logger)
		})
	}

	if cfg.API.Enabled {
		var hist api.History
		if store != nil {
			hist = store
		}
		srv := api.NewServer(cfg.API.ListenAddr, coord, hist, logger)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), cfg.General.ShutdownGrace.Duration)
			defer shutCancel()
			return srv.Shutdown(shutCtx)
		})
	}

	err := g.Wait()

	// Persist the final readings so the next start can seed from them.
	if cfg.General.StateFile != "" {
		if saveErr := state.Save(cfg.General.StateFile, coord.Snapshot()); saveErr != nil {
			logger.Error("failed to save snapshot", "error", saveErr)
		} else {
			logger.Info("snapshot saved", "path", cfg.General.StateFile)
		}
	}
	return err
}

// prunePeriodically removes history rows older than retention once an
// hour, and immediately on startup.
func prunePeriodically(ctx context.Context, store *history.Store, retention time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		if n, err := store.Prune(ctx, retention); err != nil {
			logger.Warn("history prune failed", "error", err)
		} else if n > 0 {
			logger.Info("history pruned", "rows", n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newLogger(level string, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

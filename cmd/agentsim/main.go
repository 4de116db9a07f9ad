package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkoutsos/agentsim/internal/config"
	"github.com/dkoutsos/agentsim/internal/invoker"
	"github.com/dkoutsos/agentsim/internal/natsbus"
	"github.com/dkoutsos/agentsim/internal/notify"
	"github.com/dkoutsos/agentsim/internal/pipeline"
	"github.com/dkoutsos/agentsim/internal/registry"
	"github.com/dkoutsos/agentsim/internal/store"
	"github.com/dkoutsos/agentsim/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("agentsim %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: agentsim <command>\n\nCommands:\n  serve      Start the simulation service\n  backup     Snapshot the scenario store to an archive\n  restore    Restore the scenario store from an archive\n  version    Print version\n")
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting agentsim", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", bus.Port())

	// Pipeline event sink
	sink, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer sink.Close()

	// LLM provider and stage invokers
	provider, err := invoker.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("init llm provider: %w", err)
	}
	slog.Info("llm provider ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	reg := registry.New()
	orch := pipeline.NewOrchestrator(invoker.NewStages(provider), reg, sink, db, cfg.Pipeline.StageTimeout)

	// Telegram notifier
	if cfg.Telegram.Token != "" {
		notifier, err := notify.New(cfg.Telegram, bus)
		if err != nil {
			return fmt.Errorf("init telegram notifier: %w", err)
		}
		if err := notifier.Start(ctx); err != nil {
			return fmt.Errorf("start telegram notifier: %w", err)
		}
		defer notifier.Close()
		slog.Info("telegram notifier started")
	} else {
		slog.Warn("telegram token not set, notifier disabled")
	}

	// Web API and websocket observers
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, orch, reg, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}

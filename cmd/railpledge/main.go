// RailPledge - parametric train-delay insurance decisions.
// Copyright (c) 2026 parametric-rail
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parametric-rail/railpledge/internal/api"
	"github.com/parametric-rail/railpledge/internal/bus"
	"github.com/parametric-rail/railpledge/internal/cache"
	"github.com/parametric-rail/railpledge/internal/delay"
	"github.com/parametric-rail/railpledge/internal/domain"
	"github.com/parametric-rail/railpledge/internal/notify"
	"github.com/parametric-rail/railpledge/internal/payout"
	"github.com/parametric-rail/railpledge/internal/pipeline"
	"github.com/parametric-rail/railpledge/internal/policy"
	"github.com/parametric-rail/railpledge/internal/predict"
	"github.com/parametric-rail/railpledge/internal/repository"
	"github.com/parametric-rail/railpledge/internal/rules"
	"github.com/parametric-rail/railpledge/internal/validate"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("RAILPLEDGE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting railpledge",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for pro edition via environment
	if os.Getenv("RAILPLEDGE_EDITION") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in pro edition")
	}
	if path := os.Getenv("RAILPLEDGE_MATRIX"); path != "" {
		cfg.Policy.MatrixPath = path
	}
	if path := os.Getenv("RAILPLEDGE_EXCLUSIONS"); path != "" {
		cfg.Policy.ExclusionsPath = path
	}
	if url := os.Getenv("RAILPLEDGE_WEBHOOK"); url != "" {
		cfg.Notifier.Enabled = true
		cfg.Notifier.WebhookURL = url
	}
	if url := os.Getenv("RAILPLEDGE_PREDICTOR_URL"); url != "" {
		cfg.Predictor.BaseURL = url
	}
	if url := os.Getenv("RAILPLEDGE_TRACKING_URL"); url != "" {
		cfg.Tracking.BaseURL = url
	}

	slog.Info("configuration loaded",
		"edition", cfg.Edition,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize journey validator
	validator, err := validate.New()
	if err != nil {
		slog.Error("failed to compile validation schemas", "error", err)
		os.Exit(1)
	}

	// Load the payout matrix; a broken matrix is a startup error
	matrix, err := payout.LoadMatrix(cfg.Policy.MatrixPath)
	if err != nil {
		slog.Error("failed to load payout matrix", "error", err)
		os.Exit(1)
	}
	slog.Info("payout matrix loaded", "override", cfg.Policy.MatrixPath != "")

	// Initialize exclusion rules (empty unless configured)
	exclusions, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize exclusion engine", "error", err)
		os.Exit(1)
	}
	if err := exclusions.LoadFile(cfg.Policy.ExclusionsPath); err != nil {
		slog.Error("failed to load exclusion rules", "error", err)
		os.Exit(1)
	}
	slog.Info("exclusion engine initialized", "rules_count", exclusions.RuleCount())

	// Probability service: upstream client + memoization
	prober := predict.NewService(
		predict.NewClient(cfg.Predictor),
		cacheImpl,
		cfg.Policy.ProbabilityTTL,
	)

	// Assemble the decision pipeline
	p := pipeline.New(
		validator,
		policy.NewGate(cfg.Policy),
		exclusions,
		prober,
		payout.NewResolver(matrix, cfg.Policy.ProbabilityCap),
		delay.NewTrackingClient(cfg.Tracking),
		delay.NewCalculator(cfg.Policy.EarlyArrivalGuard),
		repo,
		busImpl,
	)

	// Notification worker
	var notifier *notify.Worker
	if cfg.Notifier.Enabled {
		notifier = notify.NewWorker(busImpl, cfg.Notifier)
		if err := notifier.Start(); err != nil {
			slog.Error("failed to start notification worker", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, p, repo, cacheImpl, busImpl, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("railpledge is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if notifier != nil {
		notifier.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("railpledge shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                 RAILPLEDGE")
	fmt.Println("      Parametric train-delay insurance")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Edition:  %s\n", cfg.Edition)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /payouts         - Decide a payout for a journey")
	fmt.Println("    POST /delay           - Settle the realized delay")
	fmt.Println("    GET  /decisions/{id}  - Get an audited decision")
	fmt.Println("    GET  /health          - Health check")
	fmt.Println("    GET  /ready           - Readiness check")
	fmt.Println()
}

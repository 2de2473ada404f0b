// Harpia - Document anti-fraud analysis for Brazilian paperwork.
// Copyright (c) 2025 opensource.finance
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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/opensource-finance/harpia/internal/analyzer"
	"github.com/opensource-finance/harpia/internal/api"
	"github.com/opensource-finance/harpia/internal/bus"
	"github.com/opensource-finance/harpia/internal/classify"
	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/limiter"
	"github.com/opensource-finance/harpia/internal/metrics"
	"github.com/opensource-finance/harpia/internal/repository"
	"github.com/opensource-finance/harpia/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := domain.DefaultConfig()
	if os.Getenv("HARPIA_TIER") == "pro" {
		cfg = domain.ProConfig()
	}
	cfg.ApplyEnv(os.Getenv)

	logLevel := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting harpia",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"limiter", cfg.Limiter.Type,
		"eventbus", cfg.EventBus.Type,
		"async_worker", cfg.Worker.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	store, err := limiter.NewStore(cfg.Limiter)
	if err != nil {
		slog.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	rateLimiter := limiter.New(store, cfg.Limiter.RequestsPerMin)
	slog.Info("rate limiter initialized",
		"type", cfg.Limiter.Type,
		"requests_per_min", cfg.Limiter.RequestsPerMin,
	)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	compiler, err := classify.NewCompiler()
	if err != nil {
		slog.Error("failed to initialize field rule compiler", "error", err)
		os.Exit(1)
	}
	classifier := classify.NewClassifier(nil)
	loadFieldRules(ctx, classifier, compiler, repo, m, cfg.Worker.TenantIDs)

	a, err := analyzer.NewFromConfig(ctx, cfg, classifier, analyzer.WithMetrics(m))
	if err != nil {
		slog.Error("failed to initialize analyzer", "error", err)
		os.Exit(1)
	}

	var asyncWorker *worker.Worker
	deps := api.Dependencies{
		Repo:       repo,
		Bus:        busImpl,
		Analyzer:   a,
		Classifier: classifier,
		Compiler:   compiler,
		Limiter:    rateLimiter,
		Metrics:    m,
		Gatherer:   registry,
		Version:    Version,
	}

	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, a)
		if err := asyncWorker.Start(worker.Config{TenantIDs: cfg.Worker.TenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			deps.Submitter = asyncWorker
			slog.Info("async worker started", "tenant_count", len(cfg.Worker.TenantIDs))
		}
	}

	srv := api.NewServer(cfg.Server, deps)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harpia is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	slog.Info("harpia shutdown complete")
}

// loadFieldRules compiles stored field rules for the global scope and every
// configured tenant. Failures are logged and leave the built-in kinds only;
// rules can be fixed and reloaded through the API.
func loadFieldRules(ctx context.Context, classifier *classify.Classifier, compiler *classify.Compiler, repo domain.Repository, m *metrics.Metrics, tenantIDs []string) {
	scopes := append([]string{domain.GlobalTenantID}, tenantIDs...)
	for _, tenantID := range scopes {
		count, err := classifier.Reload(ctx, compiler, repo, tenantID)
		if err != nil {
			slog.Warn("failed to load field rules",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		m.SetFieldRulesLoaded(tenantID, count)
		if count > 0 {
			slog.Info("field rules loaded", "tenant_id", tenantID, "count", count)
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                 HARPIA                    |")
	fmt.Println("  |    Document Anti-Fraud Analysis Engine    |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /analyze              - Analyze a document")
	fmt.Println("    POST   /analyze/async        - Queue a document for analysis")
	fmt.Println("    POST   /validate             - Validate extracted fields")
	fmt.Println("    GET    /field-rules          - List field rules")
	fmt.Println("    POST   /field-rules          - Create a field rule")
	fmt.Println("    DELETE /field-rules/{id}     - Delete a field rule")
	fmt.Println("    POST   /field-rules/reload   - Hot-reload field rules")
	fmt.Println("    GET    /health               - Health check")
	fmt.Println("    GET    /metrics              - Prometheus metrics")
	fmt.Println()
}

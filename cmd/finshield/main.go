// FinShield - Real-time fraud risk scoring.

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

	"github.com/finshield/finshield/internal/api"
	"github.com/finshield/finshield/internal/blend"
	"github.com/finshield/finshield/internal/bus"
	"github.com/finshield/finshield/internal/cache"
	"github.com/finshield/finshield/internal/collab"
	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/model"
	"github.com/finshield/finshield/internal/predictor"
	"github.com/finshield/finshield/internal/rules"
	"github.com/finshield/finshield/internal/store"
	"github.com/finshield/finshield/internal/trainer"
	"github.com/finshield/finshield/internal/velocity"
	"github.com/finshield/finshield/internal/worker"
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
	if os.Getenv("FINSHIELD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting finshield",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("FINSHIELD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
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

	// Initialize Store
	st, err := store.New(cfg.Store)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

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

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(st, cacheImpl)

	// Initialize Rule Engine with velocity getter
	engine, err := rules.NewEngine(velocitySvc.Getter())
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		slog.Error("failed to load builtin rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Shared model snapshot store: the trainer publishes, the predictor reads.
	snapshots := model.NewSnapshotStore()

	// Initialize Training Scheduler
	sched := trainer.NewScheduler(st, cacheImpl, snapshots, cfg.Training, logger)
	if err := sched.Bootstrap(ctx); err != nil {
		slog.Error("failed to bootstrap model", "error", err)
		os.Exit(1)
	}
	go sched.Run(ctx)

	// Initialize Prediction Service with external collaborators.
	// The in-process rule engine serves unless an external rule
	// service is configured; same for the text classifier and alerts.
	opts := predictor.Options{
		Store:         st,
		Cache:         cacheImpl,
		Bus:           busImpl,
		RuleScorer:    engine,
		Timeout:       cfg.Collaborators.Timeout,
		PredictionTTL: cfg.Collaborators.PredictionTTL,
		Logger:        logger,
	}
	if url := cfg.Collaborators.TextClassifierURL; url != "" {
		opts.TextClassifier = collab.NewTextClassifier(url, cfg.Collaborators.Timeout)
		slog.Info("text classifier configured", "url", url)
	}
	if url := cfg.Collaborators.RuleServiceURL; url != "" {
		opts.RuleScorer = collab.NewRuleService(url, cfg.Collaborators.Timeout)
		slog.Info("external rule service configured", "url", url)
	}
	if url := cfg.Collaborators.AlertURL; url != "" {
		opts.AlertSink = collab.NewAlertSink(url, cfg.Collaborators.Timeout)
		slog.Info("alert sink configured", "url", url)
	}
	svc := predictor.NewService(snapshots, blend.NewBlender(), opts)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("FINSHIELD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, st, svc, logger)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, svc, sched, engine, st, cacheImpl, busImpl, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("finshield is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	// Wait for the training loop to exit; an in-flight cycle finishes first.
	<-sched.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("finshield shutdown complete")
}

// applyEnvOverrides layers environment settings over the tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("FINSHIELD_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("FINSHIELD_POSTGRES_HOST"); v != "" {
		cfg.Store.PostgresHost = v
	}
	if v := os.Getenv("FINSHIELD_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("FINSHIELD_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("FINSHIELD_ARTIFACT_PATH"); v != "" {
		cfg.Training.ArtifactPath = v
	}
	if v := os.Getenv("FINSHIELD_TEXT_CLASSIFIER_URL"); v != "" {
		cfg.Collaborators.TextClassifierURL = v
	}
	if v := os.Getenv("FINSHIELD_RULE_SERVICE_URL"); v != "" {
		cfg.Collaborators.RuleServiceURL = v
	}
	if v := os.Getenv("FINSHIELD_ALERT_URL"); v != "" {
		cfg.Collaborators.AlertURL = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              🛡  FINSHIELD                 ║")
	fmt.Println("  ║      Fraud Risk Scoring Engine            ║")
	fmt.Println("  ║    Every transaction, scored live.        ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /predict            - Score a transaction")
	fmt.Println("    POST /transactions       - Ingest a transaction async")
	fmt.Println("    GET  /transactions/{id}  - Get transaction by ID")
	fmt.Println("    GET  /predictions/{id}   - Get prediction by ID")
	fmt.Println("    GET  /predictions/recent - List recent predictions")
	fmt.Println("    GET  /model/info         - Live model summary")
	fmt.Println("    POST /model/train        - Trigger a training cycle")
	fmt.Println("    GET  /rules              - List all rules")
	fmt.Println("    POST /rules              - Create a new rule")
	fmt.Println("    POST /rules/reload       - Restore the builtin rule set")
	fmt.Println("    GET  /health             - Health check")
	fmt.Println()
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/subtext/internal/anthropic"
	"github.com/MikeSquared-Agency/subtext/internal/api"
	"github.com/MikeSquared-Agency/subtext/internal/cache"
	"github.com/MikeSquared-Agency/subtext/internal/config"
	"github.com/MikeSquared-Agency/subtext/internal/extractor"
	"github.com/MikeSquared-Agency/subtext/internal/hermes"
	"github.com/MikeSquared-Agency/subtext/internal/metrics"
	"github.com/MikeSquared-Agency/subtext/internal/processor"
	"github.com/MikeSquared-Agency/subtext/internal/safety"
	"github.com/MikeSquared-Agency/subtext/internal/store"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("subtext starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Flag generator (optional; without it only parsing endpoints work)
	var (
		generator safety.FlagGenerator
		model     string
	)
	if cfg.AnthropicAPIKey != "" {
		llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, anthropic.WithTimeout(cfg.AnalysisTimeout))
		generator = extractor.New(llm, slog.Default())
		model = llm.Model()
		slog.Info("anthropic client ready", "model", model)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, safety classifier disabled")
	}

	// Redis flag cache (optional)
	if generator != nil && cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, running without flag cache", "addr", cfg.RedisAddr, "error", err)
			rdb.Close()
		} else {
			defer rdb.Close()
			generator = cache.NewFlagCache(rdb, generator, cfg.FlagCacheTTL, slog.Default())
			slog.Info("flag cache ready", "addr", cfg.RedisAddr, "ttl", cfg.FlagCacheTTL)
		}
	}

	var classifier *safety.Classifier
	if generator != nil {
		classifier = safety.NewClassifier(generator, slog.Default())
	}

	// Database (optional)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		slog.Info("database connected")
	}

	// NATS/Hermes pipeline
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" && classifier != nil {
		var err error
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)

		var writer processor.AnalysisWriter
		if db != nil {
			writer = db
		}
		proc := processor.New(classifier, writer, hermesClient, m, cfg.AnalysisTimeout, slog.Default())

		if err := hermesClient.Subscribe(hermes.SubjectTranscriptSubmitted, proc.HandleTranscriptSubmitted); err != nil {
			slog.Error("failed to subscribe to transcript events", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	deps := api.Deps{
		Model:           model,
		Metrics:         m,
		Gatherer:        reg,
		AnalysisTimeout: cfg.AnalysisTimeout,
		APIToken:        cfg.APIToken,
		CORSOrigins:     cfg.CORSOrigins,
		Logger:          slog.Default(),
	}
	if classifier != nil {
		deps.Classifier = classifier
	}
	if db != nil {
		deps.Analyses = db
	}
	if hermesClient != nil {
		deps.Events = hermesClient
	}
	srv := api.NewServer(cfg.Port, deps)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish(hermes.SubjectServiceRegistered, map[string]any{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"port":       cfg.Port,
			"classifier": classifier != nil,
			"store":      db != nil,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("subtext ready", "port", cfg.Port)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	slog.Info("subtext stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

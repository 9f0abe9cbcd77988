// Command analytics consumes dependence pass reports from Kafka, keeps
// running statistics over them and stores them in PostgreSQL.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := aggregator.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare analytics schema", "error", err)
		os.Exit(1)
	}

	var passStore analytics.PassStore
	var history analytics.PassHistory
	if cfg.Analytics.PersistPasses {
		passStore, history = store, store
	}
	agg := analytics.NewAggregator(passStore)
	store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)

	// a group of its own so the indexer's partitions are not rebalanced
	kafkaCfg := cfg.Kafka
	kafkaCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"
	consumer := kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topics.DependencePasses, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("consuming dependence passes",
		"topic", cfg.Kafka.Topics.DependencePasses,
		"group", kafkaCfg.ConsumerGroup,
		"persist_passes", cfg.Analytics.PersistPasses,
	)

	checker := health.NewChecker("analytics", 0)
	checker.Register("postgres", health.PingCheck(db.Ping, true))
	checker.Register("kafka_consumer", health.InfoCheck(func() string {
		s := consumer.Stats()
		return fmt.Sprintf("handled=%d failed=%d lag=%d", s.Handled, s.Failed, s.Lag)
	}))

	h := analytics.NewHandler(agg, history)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/passes", h.Passes)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

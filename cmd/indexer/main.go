// Command indexer accepts documents over HTTP, queues them on Kafka and
// indexes them into the shard engines the searcher reads.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/shard"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/proximity-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/middleware"
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
	slog.Info("starting indexer service",
		"port", cfg.Server.Port,
		"num_shards", cfg.Indexer.NumShards,
		"store_positions", cfg.Indexer.StorePositions,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	router, err := shard.NewRouter(cfg.Indexer)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	for shardID, engine := range router.GetAllEngines() {
		engine.StartFlushLoop(ctx)
		slog.Debug("flush loop started", "shard_id", shardID)
	}
	go reportShards(ctx, router, m, cfg.Indexer.FlushInterval)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	ingest := ingesthandler.New(publisher.New(producer, router.NumShards()))

	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, consumer.HandleMessage(router, m))
	indexConsumer := consumer.New(kafkaConsumer)
	go func() {
		if err := indexConsumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("consuming documents from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)

	checker := health.NewChecker("indexer", 0)
	checker.Register("shards", health.InfoCheck(func() string {
		return fmt.Sprintf("%d shards, %d documents", router.NumShards(), router.TotalDocs())
	}))
	checker.Register("kafka_consumer", health.InfoCheck(func() string {
		s := kafkaConsumer.Stats()
		return fmt.Sprintf("handled=%d failed=%d lag=%d", s.Handled, s.Failed, s.Lag)
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/index", ingest.Ingest)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimitRPS > 0 {
		chain = middleware.RateLimit(middleware.NewClientLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))(chain)
	}
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

	slog.Info("indexer service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("flushing all shards before shutdown")
	if err := router.FlushAll(); err != nil {
		m.IndexFlushesTotal.WithLabelValues("error").Inc()
		slog.Error("final flush failed", "error", err)
	} else {
		m.IndexFlushesTotal.WithLabelValues("success").Inc()
	}
	slog.Info("indexer service stopped")
}

func reportShards(ctx context.Context, router *shard.Router, m *metrics.Metrics, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for id, engine := range router.GetAllEngines() {
			m.ShardDocCount.WithLabelValues(strconv.Itoa(id)).Set(float64(engine.TotalDocs()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Command searcher serves ranked search over the shard engines with the
// term-dependence modifier applied to every query.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
//
// SIGHUP re-reads the proximity section of the config file and picks up
// segments flushed by the indexer.
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

	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/dependence"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/resilience"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"num_shards", cfg.Indexer.NumShards,
		"dependency_type", cfg.Proximity.DependencyType,
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
	if !cfg.Indexer.StorePositions {
		slog.Warn("index stores no positions, dependence passes will end partial")
	}

	scorer, err := dependence.ScorerByName(cfg.Proximity.Scoring)
	if err != nil {
		slog.Error("invalid proximity scoring", "error", err)
		os.Exit(1)
	}
	settings := dependence.NewSettingsHolder(dependence.SettingsFromConfig(cfg.Proximity))

	var passObserver dependence.Observer
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducerWithOptions(cfg.Kafka, cfg.Kafka.Topics.DependencePasses, kafka.ProducerOptions{Async: true})
		defer producer.Close()
		batch := collector.NewBatchCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		batch.Start(ctx)
		defer batch.Close()
		passObserver = analytics.NewPassObserver(batch)
		slog.Info("dependence pass reporting enabled", "topic", cfg.Kafka.Topics.DependencePasses)
	}
	observer := dependence.Observers(
		dependence.ObserverFunc(func(r dependence.Report, elapsed time.Duration) {
			m.RecordDependencePass(string(r.Mode), r.Outcome.String(), r.Altered, r.NonFinite, elapsed)
		}),
		passObserver,
	)
	modifier := dependence.New(settings,
		dependence.WithScorer(scorer),
		dependence.WithObserver(observer),
		dependence.WithName("searcher"),
	)

	checker := health.NewChecker("searcher", 0)
	checker.Register("index_engine", health.InfoCheck(func() string {
		return fmt.Sprintf("%d shards, %d documents", router.NumShards(), router.TotalDocs())
	}))
	checker.Register("positions", func(context.Context) health.ComponentHealth {
		if !cfg.Indexer.StorePositions {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index stores no positions, dependence passes will abort"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, _, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
		m.CircuitBreakerState.WithLabelValues(breaker.Name()).Set(float64(resilience.StateClosed))
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, breaker)
		checker.Register("redis", health.PingCheck(redisClient.Ping, false))
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	exec := executor.NewSharded(router.GetAllEngines(), modifier, cfg.Search.TimeoutPerShard)
	h := handler.New(exec, queryCache, settings, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	reportShards(router, m)
	go watchIndex(ctx, *configPath, router, settings, m, cfg.Indexer.FlushInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// watchIndex reloads segments every interval and, on SIGHUP, also swaps in
// the proximity settings from the config file.
func watchIndex(ctx context.Context, configPath string, router *shard.Router, settings *dependence.SettingsHolder, m *metrics.Metrics, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if router.ReloadAll() > 0 {
				reportShards(router, m)
			}
		case <-hup:
			cfg, err := config.Load(configPath)
			if err != nil {
				slog.Error("config reload failed, keeping current settings", "error", err)
			} else {
				next := dependence.SettingsFromConfig(cfg.Proximity)
				settings.Store(next)
				slog.Info("proximity settings reloaded", "fingerprint", next.Fingerprint())
			}
			router.ReloadAll()
			reportShards(router, m)
		}
	}
}

func reportShards(router *shard.Router, m *metrics.Metrics) {
	for id, engine := range router.GetAllEngines() {
		m.ShardDocCount.WithLabelValues(strconv.Itoa(id)).Set(float64(engine.TotalDocs()))
	}
}

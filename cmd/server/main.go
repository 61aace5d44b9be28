package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/factor-analysis-service/internal/api"
	"github.com/trogers1052/factor-analysis-service/internal/cache"
	"github.com/trogers1052/factor-analysis-service/internal/config"
	"github.com/trogers1052/factor-analysis-service/internal/database"
	"github.com/trogers1052/factor-analysis-service/internal/factor"
	"github.com/trogers1052/factor-analysis-service/internal/kafka"
	"github.com/trogers1052/factor-analysis-service/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.Setup(cfg.Logging.Level)

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("Connected to database")

	// Price reads go through Redis when configured
	var prices factor.PriceHistoryProvider = db
	var invalidator kafka.CacheInvalidator
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		priceCache := cache.NewPriceCache(rdb, db, cfg.Redis.TTL).WithLogger(logger)
		prices = priceCache
		invalidator = priceCache
		logger.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL).Msg("Price cache enabled")
	}

	engine := factor.NewEngine(factor.Dependencies{
		Prices:     prices,
		Benchmark:  factor.SymbolBenchmark{Prices: prices, Symbol: cfg.Analysis.BenchmarkCode},
		Catalog:    db,
		Portfolios: db,
		Stocks:     db,
		Fetcher:    factor.NewFetcher(cfg.Analysis.FetchConcurrency, cfg.Analysis.FetchRatePerSecond),
	}, factor.Options{
		DefaultLookbackDays: cfg.Analysis.DefaultLookbackDays,
		MinDataPoints:       cfg.Analysis.MinDataPoints,
		TopMatches:          cfg.Analysis.TopMatches,
	}).WithLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	var publisher api.RequestPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		requests := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.RequestTopic)
		defer requests.Close()
		results := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ResultTopic)
		defer results.Close()
		publisher = requests

		worker := kafka.NewWorker(cfg.Kafka.Brokers, cfg.Kafka.RequestTopic, cfg.Kafka.GroupID, engine, results).WithLogger(logger)
		priceConsumer := kafka.NewPriceConsumer(cfg.Kafka.Brokers, cfg.Kafka.PriceTopic, cfg.Kafka.GroupID, db, invalidator).WithLogger(logger)
		g.Go(func() error { return worker.Start(gctx) })
		g.Go(func() error { return priceConsumer.Start(gctx) })

		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Kafka worker enabled")
	}

	handler := api.NewHandler(engine, db, publisher).WithLogger(logger)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.SetupRoutes(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Server exited")
	return nil
}

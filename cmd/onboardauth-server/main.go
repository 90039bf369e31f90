// Command onboardauth-server serves the portal's authentication API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	onboardAuth "github.com/MrEthical07/onboardAuth"
	"github.com/MrEthical07/onboardAuth/internal/config"
	"github.com/MrEthical07/onboardAuth/internal/httpapi"
	"github.com/MrEthical07/onboardAuth/internal/logging"
	"github.com/MrEthical07/onboardAuth/internal/store"
	"github.com/MrEthical07/onboardAuth/internal/sweep"
	promexport "github.com/MrEthical07/onboardAuth/metrics/export/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "onboardauth-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	builder := onboardAuth.New().
		WithConfig(engineCfg).
		WithDB(db).
		WithLogger(logger.Named("engine"))

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder = builder.WithRedis(rdb)
	} else {
		logger.Warn("redis not configured, login and mfa attempt limiters are off")
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	opts := httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}
	if cfg.MetricsEnabled {
		exporter := promexport.NewPrometheusExporter(engine)
		exporter.Registry().MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.MetricsHandler = exporter.Handler()
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.NewRouter(engine, opts, logger),
		ReadHeaderTimeout: cfg.RequestTimeout,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
	}

	sweeper := sweep.New(logger, engine.SweepTasks()...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.Environment),
			zap.Bool("redis", cfg.RedisAddr != ""))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

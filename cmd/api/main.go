package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/wager_escrow/internal/config"
	"github.com/congo-pay/wager_escrow/internal/infra"
	"github.com/congo-pay/wager_escrow/internal/logging"
	"github.com/congo-pay/wager_escrow/internal/metrics"
	"github.com/congo-pay/wager_escrow/internal/server"
	"github.com/congo-pay/wager_escrow/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, idempotency disabled and rate limits are per process")
	}

	auditDB, err := infra.NewSQLite(ctx, cfg.AuditDBPath)
	if err != nil {
		logger.Error("open audit store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := auditDB.Close(); err != nil {
			logger.Warn("close audit store", "error", err)
		}
	}()

	srv, err := server.New(cfg, db, cache, auditDB, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	sweep := sweeper.New(srv.Services().Escrow, sweeper.Config{
		Interval:  cfg.SweepInterval,
		Batch:     cfg.SweepBatch,
		PerSecond: cfg.SweepRate,
		Trigger:   cfg.SweeperTrigger(),
	}, logger, metrics.Sweeper())

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := sweep.Run(sweepCtx); err != nil {
			logger.Error("refund sweeper stopped", "error", err)
		}
	}()

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		stopSweep()
		<-sweepDone
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	stopSweep()
	<-sweepDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

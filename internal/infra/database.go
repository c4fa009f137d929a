package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgMaxConns          = 20
	pgMinConns          = 2
	pgMaxConnIdleTime   = 5 * time.Minute
	pgHealthCheckPeriod = 30 * time.Second
	pgConnectTimeout    = 5 * time.Second
)

// NewPostgresPool configures and returns a PostgreSQL connection pool for the
// ledger. Pool limits set in the URL (pool_max_conns etc.) take precedence.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.ConnConfig.ConnectTimeout == 0 {
		cfg.ConnConfig.ConnectTimeout = pgConnectTimeout
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = "wager_escrow"
	}
	applyPoolDefaults(cfg, url)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pgConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

func applyPoolDefaults(cfg *pgxpool.Config, url string) {
	if !hasParam(url, "pool_max_conns") {
		cfg.MaxConns = pgMaxConns
	}
	if !hasParam(url, "pool_min_conns") {
		cfg.MinConns = pgMinConns
	}
	if !hasParam(url, "pool_max_conn_idle_time") {
		cfg.MaxConnIdleTime = pgMaxConnIdleTime
	}
	if !hasParam(url, "pool_health_check_period") {
		cfg.HealthCheckPeriod = pgHealthCheckPeriod
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/congo-pay/wager_escrow/internal/address"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME" envDefault:"WagerEscrow"`
	Env            string        `env:"APP_ENV" envDefault:"development"`
	Port           string        `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile        string        `env:"LOG_FILE"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	AuditDBPath    string        `env:"AUDIT_DB_PATH" envDefault:"audit.db"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	TokenAudience   string        `env:"TOKEN_AUDIENCE" envDefault:"wager-escrow"`
	TokenMaxAge     time.Duration `env:"TOKEN_MAX_AGE" envDefault:"5m"`
	SubmitRateLimit int           `env:"SUBMIT_RATE_LIMIT" envDefault:"30"`

	SweepInterval  time.Duration `env:"REFUND_SWEEP_INTERVAL" envDefault:"10s"`
	SweepBatch     int           `env:"REFUND_SWEEP_BATCH" envDefault:"25"`
	SweepRate      float64       `env:"REFUND_SWEEP_RATE" envDefault:"5"`
	SweeperAddress string        `env:"REFUND_SWEEPER_ADDRESS"`
}

// Load reads configuration values from the environment and validates them.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.Env)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.Env)
		}
	}
	if cfg.SweepBatch <= 0 {
		return Config{}, fmt.Errorf("REFUND_SWEEP_BATCH must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("REFUND_SWEEP_INTERVAL must be positive")
	}
	if cfg.SweeperAddress != "" {
		if _, err := address.Parse(cfg.SweeperAddress); err != nil {
			return Config{}, fmt.Errorf("REFUND_SWEEPER_ADDRESS: %w", err)
		}
	}
	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the environment tolerates missing Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// SweeperTrigger returns the configured sweeper address or the zero address.
func (c Config) SweeperTrigger() address.Address {
	a, _ := address.ParseOptional(c.SweeperAddress)
	return a
}

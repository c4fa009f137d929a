package routes

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/wager_escrow/internal/accounts"
	"github.com/congo-pay/wager_escrow/internal/audit"
	"github.com/congo-pay/wager_escrow/internal/auth"
	"github.com/congo-pay/wager_escrow/internal/config"
	"github.com/congo-pay/wager_escrow/internal/escrow"
	"github.com/congo-pay/wager_escrow/internal/funding"
	"github.com/congo-pay/wager_escrow/internal/ledger"
	"github.com/congo-pay/wager_escrow/internal/metrics"
	"github.com/congo-pay/wager_escrow/internal/middleware"
	"github.com/congo-pay/wager_escrow/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	AuditDB *sql.DB
	Logger  *slog.Logger
}

// Services exposes the wired domain services to background workers.
type Services struct {
	Escrow *escrow.Service
	Ledger ledger.Ledger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Services, error) {
	ctx := context.Background()

	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return Services{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return Services{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	var auditStore *audit.Store
	if d.AuditDB != nil {
		auditStore = audit.NewStore(d.AuditDB)
		if err := auditStore.Migrate(ctx); err != nil {
			return Services{}, err
		}
	}

	// Health and metrics
	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app)

	// Services and handlers
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		pg := ledger.NewPostgresLedger(d.DB)
		if err := pg.Migrate(ctx); err != nil {
			return Services{}, fmt.Errorf("migrate ledger: %w", err)
		}
		ledgerBackend = pg
	} else {
		ledgerBackend = ledger.NewInMemory()
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.CardSuspenseAccountCode); err != nil {
		return Services{}, fmt.Errorf("ensure suspense account: %w", err)
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	escrowSvc := escrow.NewService(ledgerBackend, notifier,
		escrow.WithLogger(d.Logger),
		escrow.WithMetrics(metrics.Escrow()),
	)
	accountSvc := accounts.NewService(ledgerBackend)
	fundingSvc, err := funding.NewService(ctx, ledgerBackend, accountSvc, nil)
	if err != nil {
		return Services{}, err
	}

	// API routes
	api := app.Group("/api/v1")
	var sink middleware.AuditSink
	if auditStore != nil {
		sink = auditStore
	}
	api.Use(middleware.Audit(d.Logger, sink))
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public inspection routes
	escrowHandler := escrow.NewHandler(escrowSvc, d.Logger)
	accountHandler := accounts.NewHandler(accountSvc)
	RegisterWagerReadRoutes(api, escrowHandler)
	RegisterAccountReadRoutes(api, accountHandler)
	if auditStore != nil {
		RegisterAuditRoutes(api, auditStore)
	}

	// Signed routes
	verifier := auth.Verifier{Audience: d.Cfg.TokenAudience, MaxAge: d.Cfg.TokenMaxAge}
	signed := api.Group("", middleware.SignerAuth(verifier, d.Logger))
	signed.Use(middleware.SubmitRateLimit(d.Cache, d.Cfg.SubmitRateLimit))
	if d.Cache != nil {
		signed.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterWagerRoutes(signed, escrowHandler)
	RegisterAccountRoutes(signed, accountHandler)
	RegisterFundingRoutes(signed, funding.NewHandler(fundingSvc))

	return Services{Escrow: escrowSvc, Ledger: ledgerBackend}, nil
}

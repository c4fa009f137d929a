package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/escrow"
	"github.com/congo-pay/wager_escrow/internal/ledger"
	"github.com/congo-pay/wager_escrow/internal/metrics"
)

// Refunder is the part of the escrow service the sweeper drives.
type Refunder interface {
	DueForRefund(ctx context.Context, after ledger.Cursor, limit int) (escrow.DuePage, error)
	Refund(ctx context.Context, in escrow.RefundInput) (escrow.Snapshot, error)
}

// Config controls pacing of the sweeper.
type Config struct {
	Interval time.Duration
	Batch    int
	// PerSecond caps refund submissions; zero means unlimited.
	PerSecond float64
	// Trigger is the signer address refunds are submitted as.
	Trigger address.Address
}

// Result summarises one pass.
type Result struct {
	Due      int
	Refunded int
	Failed   int
}

// Sweeper periodically refunds wagers whose deadline passed without a
// settlement.
type Sweeper struct {
	refunder Refunder
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metrics.SweeperMetrics

	mu     sync.Mutex
	cursor ledger.Cursor
}

// DefaultTrigger is the address the sweeper signs as when none is configured.
func DefaultTrigger() address.Address {
	a, _ := address.Derive(address.SeedSweeper, 0)
	return a
}

// New constructs a sweeper. m may be nil.
func New(refunder Refunder, cfg Config, logger *slog.Logger, m *metrics.SweeperMetrics) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 25
	}
	if cfg.Trigger.IsZero() {
		cfg.Trigger = DefaultTrigger()
	}
	limit := rate.Inf
	burst := 1
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
		burst = max(1, int(cfg.PerSecond))
	}
	return &Sweeper{
		refunder: refunder,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
		metrics:  m,
	}
}

// Run sweeps every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("refund sweeper started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Int("batch", s.cfg.Batch),
		slog.String("trigger", s.cfg.Trigger.String()),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refund sweeper stopped")
			return nil
		case <-ticker.C:
			res, err := s.SweepOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				s.logger.Error("refund sweep failed", slog.Any("error", err))
				continue
			}
			if res.Due > 0 {
				s.logger.Info("refund sweep finished",
					slog.Int("due", res.Due),
					slog.Int("refunded", res.Refunded),
					slog.Int("failed", res.Failed),
				)
			}
		}
	}
}

// SweepOnce refunds the next Batch due wagers. Each pass resumes after the
// previous page and wraps to the start once the due set is exhausted, so
// wagers that keep failing cannot hold back later ones. A failing wager is
// logged and skipped; only listing errors and cancellation abort the pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.refunder.DueForRefund(ctx, s.cursor, s.cfg.Batch)
	if err != nil {
		return Result{}, err
	}
	res := Result{Due: len(page.Records) + page.Unreadable, Failed: page.Unreadable}
	for i := 0; i < page.Unreadable; i++ {
		s.metrics.Failed(escrow.ErrCorruptRecord.Code)
	}
	for _, rec := range page.Records {
		if err := s.limiter.Wait(ctx); err != nil {
			return res, err
		}
		joiner := rec.Joiner
		if joiner.IsZero() {
			joiner = rec.Creator
		}
		_, err := s.refunder.Refund(ctx, escrow.RefundInput{
			WagerID: rec.WagerID,
			Caller:  s.cfg.Trigger,
			Creator: rec.Creator,
			Joiner:  joiner,
		})
		if err != nil {
			res.Failed++
			s.metrics.Failed(escrow.CodeOf(err))
			s.logger.Warn("sweeper refund failed",
				slog.Uint64("wager_id", rec.WagerID),
				slog.String("code", escrow.CodeOf(err)),
				slog.Any("error", err),
			)
			continue
		}
		res.Refunded++
		s.metrics.Refunded()
	}

	if page.Exhausted {
		s.cursor = ledger.Cursor{}
	} else {
		s.cursor = page.Next
	}
	s.metrics.Run()
	return res, nil
}

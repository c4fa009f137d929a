package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/ledger"
	"github.com/congo-pay/wager_escrow/internal/logging"
	"github.com/congo-pay/wager_escrow/internal/metrics"
	"github.com/congo-pay/wager_escrow/internal/notification"
)

// RecordKeyPrefix namespaces escrow records among ledger documents.
const RecordKeyPrefix = "escrow:"

// Service runs the wager state machine on top of a ledger.
type Service struct {
	ledger   ledger.Ledger
	notifier notification.Notifier
	policy   Policy
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.EscrowMetrics
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the trusted time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for committed operations and infrastructure failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMetrics overrides the Prometheus collectors. Nil disables metrics.
func WithMetrics(m *metrics.EscrowMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs an escrow service.
func NewService(l ledger.Ledger, notifier notification.Notifier, opts ...Option) *Service {
	s := &Service{
		ledger:   l,
		notifier: notifier,
		policy:   DefaultPolicy,
		now:      time.Now,
		logger:   logging.Discard(),
		metrics:  metrics.Escrow(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput opens a wager. Caller becomes the creator and funds the first stake.
type CreateInput struct {
	WagerID  uint64
	Caller   address.Address
	Amount   uint64
	Deadline int64
	Arbiter  address.Address
}

// JoinInput matches the creator's stake. Caller becomes the joiner.
type JoinInput struct {
	WagerID uint64
	Caller  address.Address
}

// SettleInput carries the arbiter's decision and the payout accounts.
type SettleInput struct {
	WagerID uint64
	Caller  address.Address
	Winner  Winner
	Creator address.Address
	Joiner  address.Address
}

// RefundInput returns stakes after the deadline. Joiner is only checked when
// the wager was joined.
type RefundInput struct {
	WagerID uint64
	Caller  address.Address
	Creator address.Address
	Joiner  address.Address
}

// Snapshot is a record together with its derived addresses and custody balance.
type Snapshot struct {
	Record        Record
	RecordAddress address.Address
	VaultAddress  address.Address
	VaultBalance  int64
}

// Create validates the terms, stores the record and moves the creator's stake
// into the vault as one atomic unit.
func (s *Service) Create(ctx context.Context, in CreateInput) (snap Snapshot, err error) {
	defer s.observe(OpCreate, in.WagerID, time.Now(), &err)

	if err := s.policy.authorize(OpCreate, in.Caller, nil); err != nil {
		return Snapshot{}, err
	}
	if in.Amount == 0 {
		return Snapshot{}, ErrAmountZero
	}
	if in.Amount > MaxAmount {
		return Snapshot{}, ErrAmountTooLarge
	}
	if in.Deadline <= s.now().Unix() {
		return Snapshot{}, ErrDeadlineInPast
	}
	if in.Arbiter.IsZero() {
		return Snapshot{}, ErrInvalidArbiter
	}

	recordAddr, bump := address.Derive(address.SeedEscrow, in.WagerID)
	vaultAddr, vaultBump := address.Derive(address.SeedVault, in.WagerID)
	rec := Record{
		WagerID:   in.WagerID,
		Creator:   in.Caller,
		Arbiter:   in.Arbiter,
		Amount:    in.Amount,
		Deadline:  in.Deadline,
		State:     StateAwaitingJoiner,
		Bump:      bump,
		VaultBump: vaultBump,
	}

	err = s.ledger.Atomic(ctx, recordKey(recordAddr), func(tx ledger.Tx) error {
		doc, err := document(&rec)
		if err != nil {
			return err
		}
		if err := tx.Insert(ctx, doc); err != nil {
			if errors.Is(err, ledger.ErrAlreadyExists) {
				return ErrWagerExists
			}
			return fmt.Errorf("insert record: %w", err)
		}
		if err := tx.EnsureAccount(ctx, vaultAddr.AccountCode()); err != nil {
			return fmt.Errorf("open vault: %w", err)
		}
		if err := deposit(ctx, tx, in.Caller, vaultAddr, in.Amount); err != nil {
			return err
		}
		snap, err = snapshot(ctx, tx, rec)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.metrics.Deposited(rec.Amount)
	s.notify(ctx, notification.KindWagerCreated, rec.Creator, &rec, fmt.Sprintf("stake %d escrowed until %d", rec.Amount, rec.Deadline))
	return snap, nil
}

// Join deposits the matching stake and activates the wager. The first joiner
// to commit wins; later attempts fail on the state check.
func (s *Service) Join(ctx context.Context, in JoinInput) (snap Snapshot, err error) {
	defer s.observe(OpJoin, in.WagerID, time.Now(), &err)

	if err := s.policy.authorize(OpJoin, in.Caller, nil); err != nil {
		return Snapshot{}, err
	}

	var rec *Record
	err = s.withRecord(ctx, in.WagerID, func(tx ledger.Tx, r *Record) error {
		rec = r
		switch rec.State {
		case StateAwaitingJoiner:
		case StateActive, StateSettled, StateRefunded:
			return ErrNotJoinable
		}
		if !rec.Joiner.IsZero() {
			return ErrJoinerAlreadySet
		}
		if rec.Creator == in.Caller {
			return ErrCreatorCannotJoin
		}

		if err := deposit(ctx, tx, in.Caller, rec.VaultAddress(), rec.Amount); err != nil {
			return err
		}
		rec.Joiner = in.Caller
		rec.State = StateActive
		if err := save(ctx, tx, rec); err != nil {
			return err
		}
		snap, err = snapshot(ctx, tx, *rec)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.metrics.Deposited(rec.Amount)
	s.notify(ctx, notification.KindWagerJoined, rec.Creator, rec, "joined by "+rec.Joiner.String())
	return snap, nil
}

// Settle pays out according to the arbiter's decision and drains the vault.
func (s *Service) Settle(ctx context.Context, in SettleInput) (snap Snapshot, err error) {
	defer s.observe(OpSettle, in.WagerID, time.Now(), &err)

	if in.Caller.IsZero() {
		return Snapshot{}, ErrMissingSigner
	}

	var (
		rec      *Record
		released uint64
	)
	err = s.withRecord(ctx, in.WagerID, func(tx ledger.Tx, r *Record) error {
		rec = r
		switch rec.State {
		case StateActive:
		case StateAwaitingJoiner, StateSettled, StateRefunded:
			return ErrNotActive
		}
		if err := s.policy.authorize(OpSettle, in.Caller, rec); err != nil {
			return err
		}
		if rec.Joiner.IsZero() {
			return ErrJoinerMissing
		}
		if in.Creator != rec.Creator {
			return ErrCreatorAccountMismatch
		}
		if in.Joiner != rec.Joiner {
			return ErrJoinerAccountMismatch
		}

		total, err := stakeTotal(rec.Amount)
		if err != nil {
			return err
		}
		vault := rec.VaultAddress()
		balance, err := tx.Balance(ctx, vault.AccountCode())
		if err != nil {
			return fmt.Errorf("vault balance: %w", err)
		}
		if balance < 0 || uint64(balance) < total {
			return ErrInsufficientVaultBalance
		}

		switch in.Winner {
		case WinnerCreator:
			err = transfer(ctx, tx, vault, rec.Creator, postingPayout, total)
		case WinnerJoiner:
			err = transfer(ctx, tx, vault, rec.Joiner, postingPayout, total)
		case WinnerTie:
			if err = transfer(ctx, tx, vault, rec.Creator, postingPayout, rec.Amount); err == nil {
				err = transfer(ctx, tx, vault, rec.Joiner, postingPayout, rec.Amount)
			}
		default:
			return ErrInvalidWinner
		}
		if err != nil {
			return err
		}
		dust, err := drain(ctx, tx, vault, rec.Creator)
		if err != nil {
			return err
		}
		released = total + dust

		rec.State = StateSettled
		if err := save(ctx, tx, rec); err != nil {
			return err
		}
		snap, err = snapshot(ctx, tx, *rec)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.metrics.Released(released)
	dest := rec.Creator
	if in.Winner == WinnerJoiner {
		dest = rec.Joiner
	}
	s.notify(ctx, notification.KindWagerSettled, dest, rec, "winner "+in.Winner.String())
	return snap, nil
}

// Refund returns each deposited stake once the deadline has passed. Any signer
// may trigger it.
func (s *Service) Refund(ctx context.Context, in RefundInput) (snap Snapshot, err error) {
	defer s.observe(OpRefund, in.WagerID, time.Now(), &err)

	if in.Caller.IsZero() {
		return Snapshot{}, ErrMissingSigner
	}
	now := s.now().Unix()

	var (
		rec      *Record
		released uint64
	)
	err = s.withRecord(ctx, in.WagerID, func(tx ledger.Tx, r *Record) error {
		rec = r
		if err := s.policy.authorize(OpRefund, in.Caller, rec); err != nil {
			return err
		}
		switch rec.State {
		case StateAwaitingJoiner, StateActive:
		case StateSettled:
			return ErrAlreadySettled
		case StateRefunded:
			return ErrAlreadyRefunded
		}
		if now <= rec.Deadline {
			return ErrRefundNotAvailableYet
		}
		if in.Creator != rec.Creator {
			return ErrCreatorAccountMismatch
		}

		vault := rec.VaultAddress()
		if rec.Joiner.IsZero() {
			if err := transfer(ctx, tx, vault, rec.Creator, postingRefund, rec.Amount); err != nil {
				return err
			}
			released = rec.Amount
		} else {
			if in.Joiner != rec.Joiner {
				return ErrJoinerAccountMismatch
			}
			if err := transfer(ctx, tx, vault, rec.Creator, postingRefund, rec.Amount); err != nil {
				return err
			}
			if err := transfer(ctx, tx, vault, rec.Joiner, postingRefund, rec.Amount); err != nil {
				return err
			}
			released = 2 * rec.Amount
		}
		dust, err := drain(ctx, tx, vault, rec.Creator)
		if err != nil {
			return err
		}
		released += dust

		rec.State = StateRefunded
		if err := save(ctx, tx, rec); err != nil {
			return err
		}
		snap, err = snapshot(ctx, tx, *rec)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.metrics.Released(released)
	s.notify(ctx, notification.KindWagerRefunded, rec.Creator, rec, "refunded by "+in.Caller.String())
	return snap, nil
}

// Get returns the current record and vault balance of a wager.
func (s *Service) Get(ctx context.Context, wagerID uint64) (Snapshot, error) {
	var snap Snapshot
	err := s.withRecord(ctx, wagerID, func(tx ledger.Tx, rec *Record) error {
		var err error
		snap, err = snapshot(ctx, tx, *rec)
		return err
	})
	return snap, err
}

// DuePage is one page of the refund scan.
type DuePage struct {
	Records []Record
	// Unreadable counts due records that failed to decode. They still
	// advance Next.
	Unreadable int
	// Next resumes the scan after this page.
	Next ledger.Cursor
	// Exhausted is set when the page reached the end of the due set.
	Exhausted bool
}

// DueForRefund lists unsettled wagers whose deadline has passed, in deadline
// order after the cursor. Records that fail to decode are logged and counted.
func (s *Service) DueForRefund(ctx context.Context, after ledger.Cursor, limit int) (DuePage, error) {
	if limit <= 0 {
		limit = 100
	}
	docs, err := s.ledger.Due(ctx, RecordKeyPrefix, s.now().Unix(), after, limit)
	if err != nil {
		return DuePage{}, fmt.Errorf("list due records: %w", err)
	}
	page := DuePage{
		Records:   make([]Record, 0, len(docs)),
		Next:      after,
		Exhausted: len(docs) < limit,
	}
	for _, doc := range docs {
		page.Next = ledger.CursorOf(doc)
		var rec Record
		if err := rec.UnmarshalBinary(doc.Data); err != nil {
			s.logger.Warn("skipping unreadable escrow record", "key", doc.Key, "error", err)
			page.Unreadable++
			continue
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

// withRecord loads the record for wagerID inside an atomic unit, re-proves its
// addresses and checks the stored id before handing it to fn.
func (s *Service) withRecord(ctx context.Context, wagerID uint64, fn func(tx ledger.Tx, rec *Record) error) error {
	recordAddr, _ := address.Derive(address.SeedEscrow, wagerID)
	vaultAddr, _ := address.Derive(address.SeedVault, wagerID)
	key := recordKey(recordAddr)

	return s.ledger.Atomic(ctx, key, func(tx ledger.Tx) error {
		doc, err := tx.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return ErrWagerNotFound
			}
			return fmt.Errorf("load record: %w", err)
		}
		var rec Record
		if err := rec.UnmarshalBinary(doc.Data); err != nil {
			return err
		}
		if !address.Verify(address.SeedEscrow, wagerID, rec.Bump, recordAddr) ||
			!address.Verify(address.SeedVault, wagerID, rec.VaultBump, vaultAddr) {
			return ErrDerivationMismatch
		}
		if rec.WagerID != wagerID {
			return ErrWagerIDMismatch
		}
		return fn(tx, &rec)
	})
}

func (s *Service) observe(op Operation, wagerID uint64, start time.Time, errp *error) {
	err := *errp
	s.metrics.Observe(string(op), metricCode(err), time.Since(start))
	if err == nil {
		s.logger.Info("escrow operation committed", "operation", string(op), "wager_id", wagerID)
		return
	}
	if KindOf(err) == KindUnknown {
		s.logger.Error("escrow operation failed", "operation", string(op), "wager_id", wagerID, "error", err)
		return
	}
	s.logger.Debug("escrow operation rejected", "operation", string(op), "wager_id", wagerID, "code", CodeOf(err))
}

func (s *Service) notify(ctx context.Context, kind string, dest address.Address, rec *Record, body string) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{Kind: kind, Destination: dest.String(), WagerID: rec.WagerID, Body: body}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification failed", "kind", kind, "wager_id", rec.WagerID, "error", err)
	}
}

func metricCode(err error) string {
	if err == nil {
		return ""
	}
	if code := CodeOf(err); code != "" {
		return code
	}
	return "internal"
}

func recordKey(recordAddr address.Address) string {
	return RecordKeyPrefix + recordAddr.String()
}

func document(rec *Record) (ledger.Document, error) {
	data, err := rec.MarshalBinary()
	if err != nil {
		return ledger.Document{}, err
	}
	return ledger.Document{
		Key:   recordKey(rec.RecordAddress()),
		Data:  data,
		DueAt: rec.Deadline,
		Open:  !rec.State.Terminal(),
	}, nil
}

func save(ctx context.Context, tx ledger.Tx, rec *Record) error {
	doc, err := document(rec)
	if err != nil {
		return err
	}
	if err := tx.Update(ctx, doc); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

func snapshot(ctx context.Context, tx ledger.Tx, rec Record) (Snapshot, error) {
	vault := rec.VaultAddress()
	balance, err := tx.Balance(ctx, vault.AccountCode())
	if err != nil {
		return Snapshot{}, fmt.Errorf("vault balance: %w", err)
	}
	return Snapshot{
		Record:        rec,
		RecordAddress: rec.RecordAddress(),
		VaultAddress:  vault,
		VaultBalance:  balance,
	}, nil
}

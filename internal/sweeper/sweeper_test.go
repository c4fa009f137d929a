package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/escrow"
	"github.com/congo-pay/wager_escrow/internal/ledger"
	"github.com/congo-pay/wager_escrow/internal/logging"
	"github.com/congo-pay/wager_escrow/internal/notification"
)

func party(seed uint64) address.Address {
	a, _ := address.Derive("sweeper-test", seed)
	return a
}

func TestSweepOnceRefundsExpiredWagers(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewInMemory()
	now := time.Unix(1_700_000_000, 0)
	svc := escrow.NewService(l, &notification.Recorder{}, escrow.WithClock(func() time.Time { return now }), escrow.WithMetrics(nil))

	creator, joiner, arbiter := party(1), party(2), party(3)
	for _, a := range []address.Address{creator, joiner, arbiter} {
		require.NoError(t, l.EnsureAccount(ctx, a.AccountCode()))
		ledger.SeedBalance(l, a.AccountCode(), 10_000)
	}

	for id := uint64(1); id <= 3; id++ {
		_, err := svc.Create(ctx, escrow.CreateInput{WagerID: id, Caller: creator, Amount: 100, Deadline: now.Unix() + 60, Arbiter: arbiter})
		require.NoError(t, err)
	}
	_, err := svc.Join(ctx, escrow.JoinInput{WagerID: 2, Caller: joiner})
	require.NoError(t, err)
	_, err = svc.Join(ctx, escrow.JoinInput{WagerID: 3, Caller: joiner})
	require.NoError(t, err)
	_, err = svc.Settle(ctx, escrow.SettleInput{WagerID: 3, Caller: arbiter, Winner: escrow.WinnerCreator, Creator: creator, Joiner: joiner})
	require.NoError(t, err)

	s := New(svc, Config{Batch: 10}, logging.Discard(), nil)

	res, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{}, res)

	now = now.Add(2 * time.Minute)
	res, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Due: 2, Refunded: 2}, res)

	for id, want := range map[uint64]escrow.State{1: escrow.StateRefunded, 2: escrow.StateRefunded, 3: escrow.StateSettled} {
		snap, err := svc.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, snap.Record.State, "wager %d", id)
	}
	bal, err := l.Balance(ctx, joiner.AccountCode())
	require.NoError(t, err)
	require.Equal(t, int64(10_000-100), bal)

	res, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, res.Due)
}

type scriptedRefunder struct {
	due      []escrow.Record
	failFor  map[uint64]error
	refunded []escrow.RefundInput
}

// DueForRefund pages r.due; the cursor's DueAt holds the next offset.
func (r *scriptedRefunder) DueForRefund(_ context.Context, after ledger.Cursor, limit int) (escrow.DuePage, error) {
	start := int(after.DueAt)
	end := min(start+limit, len(r.due))
	return escrow.DuePage{
		Records:   r.due[start:end],
		Next:      ledger.Cursor{DueAt: int64(end), Key: "scripted"},
		Exhausted: end == len(r.due),
	}, nil
}

func (r *scriptedRefunder) Refund(_ context.Context, in escrow.RefundInput) (escrow.Snapshot, error) {
	if err := r.failFor[in.WagerID]; err != nil {
		return escrow.Snapshot{}, err
	}
	r.refunded = append(r.refunded, in)
	return escrow.Snapshot{}, nil
}

func TestSweepOnceContinuesPastFailures(t *testing.T) {
	creator, joiner := party(1), party(2)
	r := &scriptedRefunder{
		due: []escrow.Record{
			{WagerID: 1, Creator: creator},
			{WagerID: 2, Creator: creator, Joiner: joiner},
			{WagerID: 3, Creator: creator},
		},
		failFor: map[uint64]error{2: escrow.ErrInsufficientVaultBalance},
	}
	s := New(r, Config{Batch: 25, PerSecond: 1000}, logging.Discard(), nil)

	res, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Due: 3, Refunded: 2, Failed: 1}, res)

	require.Len(t, r.refunded, 2)
	require.Equal(t, DefaultTrigger(), r.refunded[0].Caller)
	// an unjoined wager names the creator in the joiner slot
	require.Equal(t, creator, r.refunded[0].Joiner)
}

func TestSweepOnceHonoursBatchAndCancellation(t *testing.T) {
	r := &scriptedRefunder{due: make([]escrow.Record, 5)}
	for i := range r.due {
		r.due[i] = escrow.Record{WagerID: uint64(i + 1), Creator: party(1)}
	}
	s := New(r, Config{Batch: 2}, logging.Discard(), nil)

	res, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Due)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := len(r.refunded)
	_, err = s.SweepOnce(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	require.Len(t, r.refunded, before)
}

func TestRunStopsOnCancel(t *testing.T) {
	r := &scriptedRefunder{}
	s := New(r, Config{Interval: time.Millisecond}, logging.Discard(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
}

func TestSweepOnceMovesPastUnrefundableWagers(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewInMemory()
	now := time.Unix(1_700_000_000, 0)
	svc := escrow.NewService(l, &notification.Recorder{}, escrow.WithClock(func() time.Time { return now }), escrow.WithMetrics(nil))

	creator, arbiter, sink := party(1), party(3), party(4)
	for _, a := range []address.Address{creator, arbiter, sink} {
		require.NoError(t, l.EnsureAccount(ctx, a.AccountCode()))
		ledger.SeedBalance(l, a.AccountCode(), 10_000)
	}
	for id, deadline := range map[uint64]int64{1: now.Unix() + 60, 2: now.Unix() + 120} {
		_, err := svc.Create(ctx, escrow.CreateInput{WagerID: id, Caller: creator, Amount: 100, Deadline: deadline, Arbiter: arbiter})
		require.NoError(t, err)
	}

	// wager 1 loses half its stake so its refund can never be paid
	vault, _ := address.Derive(address.SeedVault, 1)
	require.NoError(t, l.Atomic(ctx, "tamper", func(tx ledger.Tx) error {
		return tx.Move(ctx, vault.AccountCode(), sink.AccountCode(), "test", 50)
	}))
	now = now.Add(5 * time.Minute)

	s := New(svc, Config{Batch: 1}, logging.Discard(), nil)

	res, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Due: 1, Failed: 1}, res)

	res, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Due: 1, Refunded: 1}, res)

	snap, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, escrow.StateRefunded, snap.Record.State)

	// the lap wraps and the stuck wager is retried, not dropped
	res, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{}, res)
	res, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Due: 1, Failed: 1}, res)
}

func TestSweepOnceCountsUnreadableRecordsAndMovesOn(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewInMemory()
	now := time.Unix(1_700_000_000, 0)
	svc := escrow.NewService(l, &notification.Recorder{}, escrow.WithClock(func() time.Time { return now }), escrow.WithMetrics(nil))

	creator, arbiter := party(1), party(3)
	for _, a := range []address.Address{creator, arbiter} {
		require.NoError(t, l.EnsureAccount(ctx, a.AccountCode()))
		ledger.SeedBalance(l, a.AccountCode(), 10_000)
	}
	_, err := svc.Create(ctx, escrow.CreateInput{WagerID: 7, Caller: creator, Amount: 100, Deadline: now.Unix() + 60, Arbiter: arbiter})
	require.NoError(t, err)

	garbage := ledger.Document{Key: escrow.RecordKeyPrefix + "garbage", Data: []byte{1, 2, 3}, DueAt: 1, Open: true}
	require.NoError(t, l.Atomic(ctx, garbage.Key, func(tx ledger.Tx) error { return tx.Insert(ctx, garbage) }))
	now = now.Add(5 * time.Minute)

	s := New(svc, Config{Batch: 1}, logging.Discard(), nil)

	res, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Due: 1, Failed: 1}, res)

	res, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Due: 1, Refunded: 1}, res)
}

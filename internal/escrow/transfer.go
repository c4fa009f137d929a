package escrow

import (
	"context"
	"errors"
	"math"
	"math/bits"

	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/ledger"
)

const (
	postingDeposit = "escrow_deposit"
	postingPayout  = "escrow_payout"
	postingRefund  = "escrow_refund"
	postingDrain   = "escrow_drain"
)

// stakeTotal returns amount*2 or ErrMathOverflow. Ledger balances are int64, so
// anything above MaxInt64 is treated as overflow too.
func stakeTotal(amount uint64) (uint64, error) {
	hi, lo := bits.Mul64(amount, 2)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrMathOverflow
	}
	return lo, nil
}

// transfer moves amount out of the vault. It never overdraws.
func transfer(ctx context.Context, tx ledger.Tx, vault, to address.Address, kind string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if amount > math.MaxInt64 {
		return ErrMathOverflow
	}
	balance, err := tx.Balance(ctx, vault.AccountCode())
	if err != nil {
		return err
	}
	if balance < 0 || uint64(balance) < amount {
		return ErrInsufficientVaultBalance
	}
	if err := tx.Move(ctx, vault.AccountCode(), to.AccountCode(), kind, int64(amount)); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return ErrInsufficientVaultBalance
		}
		return err
	}
	return nil
}

// drain moves whatever remains in the vault to dest. Zero is a no-op.
func drain(ctx context.Context, tx ledger.Tx, vault, dest address.Address) (uint64, error) {
	remaining, err := tx.Balance(ctx, vault.AccountCode())
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return 0, nil
	}
	if err := tx.Move(ctx, vault.AccountCode(), dest.AccountCode(), postingDrain, remaining); err != nil {
		return 0, err
	}
	return uint64(remaining), nil
}

// deposit moves a party's stake into the vault.
func deposit(ctx context.Context, tx ledger.Tx, from, vault address.Address, amount uint64) error {
	if amount > math.MaxInt64 {
		return ErrMathOverflow
	}
	err := tx.Move(ctx, from.AccountCode(), vault.AccountCode(), postingDeposit, int64(amount))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrAccountNotFound):
		return ErrInsufficientFunds
	default:
		return err
	}
}

package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/ledger"
)

// ErrAccountNotFound is returned when no ledger account exists for an address.
var ErrAccountNotFound = errors.New("account not found")

// Account is a party's ledger account.
type Account struct {
	Address     address.Address
	AccountCode string
}

// Balance is the available funds of an account at a point in time.
type Balance struct {
	Address address.Address
	Amount  int64
	AsOf    time.Time
}

// Service opens party accounts and reports balances.
type Service struct {
	ledger ledger.Ledger
}

// NewService builds an account service.
func NewService(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// Open provisions the ledger account for owner. Opening twice is harmless.
func (s *Service) Open(ctx context.Context, owner address.Address) (Account, error) {
	if owner.IsZero() {
		return Account{}, address.ErrInvalidAddress
	}
	code := owner.AccountCode()
	if err := s.ledger.EnsureAccount(ctx, code); err != nil {
		return Account{}, fmt.Errorf("open account: %w", err)
	}
	return Account{Address: owner, AccountCode: code}, nil
}

// Get returns the account for owner if it was opened.
func (s *Service) Get(ctx context.Context, owner address.Address) (Account, error) {
	if _, err := s.Balance(ctx, owner); err != nil {
		return Account{}, err
	}
	return Account{Address: owner, AccountCode: owner.AccountCode()}, nil
}

// Balance returns the ledger balance of owner. Vault addresses resolve too.
func (s *Service) Balance(ctx context.Context, owner address.Address) (Balance, error) {
	amount, err := s.ledger.Balance(ctx, owner.AccountCode())
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return Balance{}, ErrAccountNotFound
		}
		return Balance{}, err
	}
	return Balance{Address: owner, Amount: amount, AsOf: time.Now().UTC()}, nil
}

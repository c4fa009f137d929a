package funding

import (
	"context"
	"errors"
	"testing"

	"github.com/congo-pay/wager_escrow/internal/accounts"
	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/ledger"
)

func newTestService(t *testing.T) (*Service, ledger.Ledger, address.Address) {
	t.Helper()
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory()
	accountSvc := accounts.NewService(ledgerBackend)

	owner, _ := address.Derive("funding-test", 1)
	if _, err := accountSvc.Open(ctx, owner); err != nil {
		t.Fatalf("open account: %v", err)
	}

	service, err := NewService(ctx, ledgerBackend, accountSvc, StaticAcquirer{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, ledgerBackend, owner
}

func TestServiceCardIn(t *testing.T) {
	ctx := context.Background()
	service, _, owner := newTestService(t)

	clientTxID := "dup"
	res, err := service.CardIn(ctx, CardInInput{
		Owner:      owner,
		Amount:     10_000,
		CardNumber: "4111111111111111",
		Expiry:     "12/29",
		CVV:        "123",
		ClientTxID: clientTxID,
	})
	if err != nil {
		t.Fatalf("card in: %v", err)
	}
	if res.Status != ledger.FundingStatusPendingSettlement {
		t.Fatalf("unexpected status: %s", res.Status)
	}
	if res.Balance != 10_000 {
		t.Fatalf("expected balance 10000, got %d", res.Balance)
	}

	if _, err := service.CardIn(ctx, CardInInput{
		Owner:      owner,
		Amount:     10_000,
		CardNumber: "4111111111111111",
		ClientTxID: clientTxID,
	}); !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	stranger, _ := address.Derive("funding-test", 2)
	if _, err := service.CardIn(ctx, CardInInput{
		Owner:      stranger,
		Amount:     1,
		CardNumber: "4111111111111111",
	}); !errors.Is(err, accounts.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestServiceCardOut(t *testing.T) {
	ctx := context.Background()
	service, ledgerBackend, owner := newTestService(t)
	ledger.SeedBalance(ledgerBackend, owner.AccountCode(), 5_000)

	res, err := service.CardOut(ctx, CardOutInput{
		Owner:      owner,
		Amount:     2_000,
		CardNumber: "4111111111111111",
	})
	if err != nil {
		t.Fatalf("card out: %v", err)
	}
	if res.Balance != 3_000 {
		t.Fatalf("expected balance 3000, got %d", res.Balance)
	}

	_, err = service.CardOut(ctx, CardOutInput{
		Owner:      owner,
		Amount:     10_000,
		CardNumber: "4111111111111111",
		ClientTxID: "excess",
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestServiceRejectsBadCard(t *testing.T) {
	service, _, owner := newTestService(t)
	ctx := context.Background()
	for _, card := range []string{"4111-abc", "4111", "4111111111111112"} {
		if _, err := service.CardIn(ctx, CardInInput{Owner: owner, Amount: 1, CardNumber: card}); !errors.Is(err, ErrInvalidCard) {
			t.Fatalf("card %q: expected invalid card, got %v", card, err)
		}
	}
	if _, err := service.CardIn(ctx, CardInInput{Owner: owner, Amount: 0, CardNumber: "4111 1111 1111 1111"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestServiceDeclinedCardLeavesBalance(t *testing.T) {
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory()
	accountSvc := accounts.NewService(ledgerBackend)
	owner, _ := address.Derive("funding-test", 3)
	if _, err := accountSvc.Open(ctx, owner); err != nil {
		t.Fatalf("open account: %v", err)
	}
	service, err := NewService(ctx, ledgerBackend, accountSvc, StaticAcquirer{Limit: 500})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	res, err := service.CardIn(ctx, CardInInput{Owner: owner, Amount: 501, CardNumber: "4111111111111111"})
	if !errors.Is(err, ErrCardDeclined) {
		t.Fatalf("expected declined, got %v", err)
	}
	if res.Status != DecisionDeclined || res.AcquirerReference == "" {
		t.Fatalf("unexpected declined result: %+v", res)
	}
	if bal, _ := ledgerBackend.Balance(ctx, owner.AccountCode()); bal != 0 {
		t.Fatalf("declined top-up moved funds: %d", bal)
	}

	if _, err := service.CardIn(ctx, CardInInput{Owner: owner, Amount: 500, CardNumber: "4111111111111111"}); err != nil {
		t.Fatalf("card in at limit: %v", err)
	}
}

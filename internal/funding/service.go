package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/wager_escrow/internal/accounts"
	"github.com/congo-pay/wager_escrow/internal/address"
	"github.com/congo-pay/wager_escrow/internal/ledger"
)

var (
	// ErrInvalidCard is returned for card numbers that fail format or checksum validation.
	ErrInvalidCard = errors.New("invalid card number")
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrCardDeclined is returned when the acquirer refuses the movement.
	ErrCardDeclined = errors.New("card declined")
)

// Service moves money between cards and party accounts so parties can stake
// and withdraw winnings.
type Service struct {
	ledger   ledger.Ledger
	accounts *accounts.Service
	acquirer Acquirer
	now      func() time.Time
}

// NewService prepares a funding service ensuring the card suspense account exists.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, accountSvc *accounts.Service, acquirer Acquirer) (*Service, error) {
	if accountSvc == nil {
		return nil, fmt.Errorf("account service is required")
	}
	if acquirer == nil {
		acquirer = StaticAcquirer{}
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.CardSuspenseAccountCode); err != nil {
		return nil, err
	}
	return &Service{ledger: ledgerBackend, accounts: accountSvc, acquirer: acquirer, now: time.Now}, nil
}

// CardInInput captures the required data for a card top-up.
type CardInInput struct {
	Owner      address.Address
	Amount     int64
	ClientTxID string
	CardNumber string
	Expiry     string
	CVV        string
}

// CardOutInput captures the required data for a card withdrawal.
type CardOutInput struct {
	Owner      address.Address
	Amount     int64
	ClientTxID string
	CardNumber string
}

// FundingResult represents the domain outcome of a card operation.
type FundingResult struct {
	TransactionID     string
	Status            string
	Balance           int64
	AcquirerReference string
	CompletedAt       time.Time
}

// CardIn authorizes and records a card top-up into the owner's account.
func (s *Service) CardIn(ctx context.Context, input CardInInput) (FundingResult, error) {
	return s.move(ctx, movement{
		owner:      input.Owner,
		amount:     input.Amount,
		clientTxID: input.ClientTxID,
		card:       input.CardNumber,
		authorize: func(ctx context.Context, card string) (AuthorizationDecision, error) {
			return s.acquirer.AuthorizeCardIn(ctx, CardInAuthorization{
				CardNumber: card,
				Expiry:     input.Expiry,
				CVV:        input.CVV,
				Amount:     input.Amount,
			})
		},
		post: s.ledger.CardIn,
	})
}

// CardOut authorizes and records a withdrawal to the provided card.
func (s *Service) CardOut(ctx context.Context, input CardOutInput) (FundingResult, error) {
	return s.move(ctx, movement{
		owner:      input.Owner,
		amount:     input.Amount,
		clientTxID: input.ClientTxID,
		card:       input.CardNumber,
		authorize: func(ctx context.Context, card string) (AuthorizationDecision, error) {
			return s.acquirer.AuthorizeCardOut(ctx, CardOutAuthorization{CardNumber: card, Amount: input.Amount})
		},
		post: s.ledger.CardOut,
	})
}

type movement struct {
	owner      address.Address
	amount     int64
	clientTxID string
	card       string
	authorize  func(ctx context.Context, card string) (AuthorizationDecision, error)
	post       func(ctx context.Context, accountCode, clientTxID string, amount int64) (ledger.FundingResult, error)
}

func (s *Service) move(ctx context.Context, m movement) (FundingResult, error) {
	card, err := normalizeCardNumber(m.card)
	if err != nil {
		return FundingResult{}, err
	}
	if m.amount <= 0 {
		return FundingResult{}, ErrInvalidAmount
	}
	if m.clientTxID == "" {
		m.clientTxID = uuid.NewString()
	}

	acct, err := s.accounts.Get(ctx, m.owner)
	if err != nil {
		return FundingResult{}, err
	}

	decision, err := m.authorize(ctx, card)
	if err != nil {
		return FundingResult{}, fmt.Errorf("acquirer: %w", err)
	}
	if !decision.Approved() {
		return FundingResult{AcquirerReference: decision.Reference, Status: decision.Status}, ErrCardDeclined
	}

	posted, err := m.post(ctx, acct.AccountCode, m.clientTxID, m.amount)
	result := FundingResult{
		TransactionID:     posted.TransactionID,
		Status:            posted.Status,
		Balance:           posted.AccountBalance,
		AcquirerReference: decision.Reference,
		CompletedAt:       s.now().UTC(),
	}
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) || errors.Is(err, ledger.ErrInsufficientFunds) {
			return result, err
		}
		return FundingResult{}, err
	}
	return result, nil
}

// normalizeCardNumber strips spaces and validates length and the Luhn checksum.
func normalizeCardNumber(card string) (string, error) {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return "", fmt.Errorf("%w: must be between 12 and 19 digits", ErrInvalidCard)
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		r := digits[i]
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: must be numeric", ErrInvalidCard)
		}
		d := int(r - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	if sum%10 != 0 {
		return "", fmt.Errorf("%w: checksum mismatch", ErrInvalidCard)
	}
	return digits, nil
}

package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound is returned when a posting references an unknown account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount rejects zero or negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrBalanceOverflow is returned when a credit would overflow the destination balance.
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrNotFound is returned when a document key is absent.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists is returned by Insert when the key is taken.
	ErrAlreadyExists = errors.New("document already exists")
)

const (
	// FundingStatusPendingSettlement indicates a card transaction awaiting settlement confirmation.
	FundingStatusPendingSettlement = "pending_settlement"
	// FundingStatusCompleted represents a settled transaction.
	FundingStatusCompleted = "completed"
	// CardSuspenseAccountCode is the ledger account used to park card transactions pre-settlement.
	// It is the only account allowed to carry a negative balance.
	CardSuspenseAccountCode = "suspense:card"
)

// FundingResult captures the outcome of a card funding transaction.
type FundingResult struct {
	TransactionID  string
	AccountBalance int64
	Status         string
}

// Document is an opaque record stored next to the balances so that it can be
// mutated in the same atomic unit. DueAt and Open feed the Due index.
type Document struct {
	Key   string
	Data  []byte
	DueAt int64
	Open  bool
}

// Tx is the view of the ledger available inside one atomic unit. Nothing
// done through a Tx is visible to others until the unit commits.
type Tx interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	// Move debits from and credits to. It never overdraws from.
	Move(ctx context.Context, fromCode, toCode, kind string, amount int64) error
	Get(ctx context.Context, key string) (Document, error)
	Insert(ctx context.Context, doc Document) error
	Update(ctx context.Context, doc Document) error
}

// Cursor is a position in the (DueAt, Key) order used by Due. The zero
// Cursor starts from the beginning.
type Cursor struct {
	DueAt int64
	Key   string
}

// IsZero reports whether c is the starting position.
func (c Cursor) IsZero() bool { return c.Key == "" }

// After reports whether doc sorts strictly after c.
func (c Cursor) After(doc Document) bool {
	if c.IsZero() {
		return true
	}
	if doc.DueAt != c.DueAt {
		return doc.DueAt > c.DueAt
	}
	return doc.Key > c.Key
}

// CursorOf is the position of doc.
func CursorOf(doc Document) Cursor {
	return Cursor{DueAt: doc.DueAt, Key: doc.Key}
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	// Atomic runs fn as one all-or-nothing unit. Units sharing lockKey never
	// interleave. If fn returns an error nothing it staged is applied.
	Atomic(ctx context.Context, lockKey string, fn func(tx Tx) error) error
	// Due lists open documents under prefix whose DueAt is strictly before now,
	// ordered by (DueAt, Key) and strictly after the cursor.
	Due(ctx context.Context, prefix string, now int64, after Cursor, limit int) ([]Document, error)
	CardIn(ctx context.Context, accountCode, clientTxID string, amount int64) (FundingResult, error)
	CardOut(ctx context.Context, accountCode, clientTxID string, amount int64) (FundingResult, error)
}

package ledger

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// Posting is one committed balance movement, kept for conservation checks.
type Posting struct {
	Kind   string
	From   string
	To     string
	Amount int64
}

type inMemoryLedger struct {
	mu        sync.Mutex
	balances  map[string]int64
	documents map[string]Document
	fundingTx map[string]FundingResult
	journal   []Posting
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development. Units run one at a time regardless of lock key.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:  make(map[string]int64),
		documents: make(map[string]Document),
		fundingTx: make(map[string]FundingResult),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Atomic(ctx context.Context, _ string, fn func(tx Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{
		l:        l,
		balances: make(map[string]int64),
		docs:     make(map[string]Document),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for code, balance := range tx.balances {
		l.balances[code] = balance
	}
	for key, doc := range tx.docs {
		l.documents[key] = doc
	}
	l.journal = append(l.journal, tx.journal...)
	return nil
}

func (l *inMemoryLedger) Due(_ context.Context, prefix string, now int64, after Cursor, limit int) ([]Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var due []Document
	for key, doc := range l.documents {
		if !strings.HasPrefix(key, prefix) || !doc.Open || doc.DueAt >= now || !after.After(doc) {
			continue
		}
		due = append(due, cloneDocument(doc))
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].DueAt != due[j].DueAt {
			return due[i].DueAt < due[j].DueAt
		}
		return due[i].Key < due[j].Key
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (l *inMemoryLedger) CardIn(_ context.Context, accountCode, clientTxID string, amount int64) (FundingResult, error) {
	if amount <= 0 {
		return FundingResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := "card_in:" + clientTxID
	if res, exists := l.fundingTx[key]; exists {
		return res, ErrDuplicateTransaction
	}

	accountBalance, ok := l.balances[accountCode]
	if !ok {
		return FundingResult{}, ErrAccountNotFound
	}
	if accountBalance > math.MaxInt64-amount {
		return FundingResult{}, ErrBalanceOverflow
	}

	accountBalance += amount
	l.balances[accountCode] = accountBalance
	l.balances[CardSuspenseAccountCode] -= amount
	l.journal = append(l.journal, Posting{Kind: "card_in", From: CardSuspenseAccountCode, To: accountCode, Amount: amount})

	res := FundingResult{
		TransactionID:  key,
		AccountBalance: accountBalance,
		Status:         FundingStatusPendingSettlement,
	}
	l.fundingTx[key] = res
	return res, nil
}

func (l *inMemoryLedger) CardOut(_ context.Context, accountCode, clientTxID string, amount int64) (FundingResult, error) {
	if amount <= 0 {
		return FundingResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := "card_out:" + clientTxID
	if res, exists := l.fundingTx[key]; exists {
		return res, ErrDuplicateTransaction
	}

	accountBalance, ok := l.balances[accountCode]
	if !ok {
		return FundingResult{}, ErrAccountNotFound
	}
	if accountBalance < amount {
		return FundingResult{}, ErrInsufficientFunds
	}

	accountBalance -= amount
	l.balances[accountCode] = accountBalance
	l.balances[CardSuspenseAccountCode] += amount
	l.journal = append(l.journal, Posting{Kind: "card_out", From: accountCode, To: CardSuspenseAccountCode, Amount: amount})

	res := FundingResult{
		TransactionID:  key,
		AccountBalance: accountBalance,
		Status:         FundingStatusPendingSettlement,
	}
	l.fundingTx[key] = res
	return res, nil
}

// memTx stages changes on top of the committed maps. The parent mutex is held
// for the whole unit.
type memTx struct {
	l        *inMemoryLedger
	balances map[string]int64
	docs     map[string]Document
	journal  []Posting
}

func (t *memTx) lookup(code string) (int64, bool) {
	if balance, ok := t.balances[code]; ok {
		return balance, true
	}
	balance, ok := t.l.balances[code]
	return balance, ok
}

func (t *memTx) EnsureAccount(_ context.Context, code string) error {
	if _, ok := t.lookup(code); !ok {
		t.balances[code] = 0
	}
	return nil
}

func (t *memTx) Balance(_ context.Context, code string) (int64, error) {
	balance, ok := t.lookup(code)
	if !ok {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (t *memTx) Move(_ context.Context, fromCode, toCode, kind string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	fromBalance, ok := t.lookup(fromCode)
	if !ok {
		return ErrAccountNotFound
	}
	toBalance, ok := t.lookup(toCode)
	if !ok {
		return ErrAccountNotFound
	}
	if fromBalance < amount {
		return ErrInsufficientFunds
	}
	if fromCode == toCode {
		return nil
	}
	if toBalance > math.MaxInt64-amount {
		return ErrBalanceOverflow
	}

	t.balances[fromCode] = fromBalance - amount
	t.balances[toCode] = toBalance + amount
	t.journal = append(t.journal, Posting{Kind: kind, From: fromCode, To: toCode, Amount: amount})
	return nil
}

func (t *memTx) Get(_ context.Context, key string) (Document, error) {
	if doc, ok := t.docs[key]; ok {
		return cloneDocument(doc), nil
	}
	if doc, ok := t.l.documents[key]; ok {
		return cloneDocument(doc), nil
	}
	return Document{}, ErrNotFound
}

func (t *memTx) Insert(_ context.Context, doc Document) error {
	if _, ok := t.docs[doc.Key]; ok {
		return ErrAlreadyExists
	}
	if _, ok := t.l.documents[doc.Key]; ok {
		return ErrAlreadyExists
	}
	t.docs[doc.Key] = cloneDocument(doc)
	return nil
}

func (t *memTx) Update(_ context.Context, doc Document) error {
	_, staged := t.docs[doc.Key]
	_, committed := t.l.documents[doc.Key]
	if !staged && !committed {
		return ErrNotFound
	}
	t.docs[doc.Key] = cloneDocument(doc)
	return nil
}

func cloneDocument(doc Document) Document {
	doc.Data = append([]byte(nil), doc.Data...)
	return doc
}

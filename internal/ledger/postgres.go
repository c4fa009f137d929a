package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Migrate creates the ledger tables when they do not exist yet.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := l.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return nil
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT a.id, COALESCE(SUM(e.amount), 0)
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.code = $1
        GROUP BY a.id`
	var (
		id      uuid.UUID
		balance int64
	)
	if err := l.db.QueryRow(ctx, query, code).Scan(&id, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("account %s: %w", code, ErrAccountNotFound)
		}
		return 0, err
	}
	return balance, nil
}

// Atomic runs fn inside a single database transaction serialized per lockKey
// by a transaction-scoped advisory lock.
func (l *PostgresLedger) Atomic(ctx context.Context, lockKey string, fn func(tx Tx) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Due lists open documents under prefix that fell due before now, resuming
// after the cursor.
func (l *PostgresLedger) Due(ctx context.Context, prefix string, now int64, after Cursor, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT key, data, due_at, open
        FROM documents
        WHERE open AND due_at < $1 AND starts_with(key, $2)
          AND ($4::text = '' OR (due_at, key) > ($5::bigint, $4::text))
        ORDER BY due_at, key
        LIMIT $3`
	rows, err := l.db.Query(ctx, query, now, prefix, limit, after.Key, after.DueAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Key, &doc.Data, &doc.DueAt, &doc.Open); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CardIn records a card funding authorization and holds it in suspense until settlement.
func (l *PostgresLedger) CardIn(ctx context.Context, accountCode, clientTxID string, amount int64) (FundingResult, error) {
	if amount <= 0 {
		return FundingResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return FundingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	partyAccountID, err := accountIDForCode(ctx, tx, accountCode)
	if err != nil {
		return FundingResult{}, err
	}
	suspenseAccountID, err := accountIDForCode(ctx, tx, CardSuspenseAccountCode)
	if err != nil {
		return FundingResult{}, err
	}

	if existing, found, err := existingFunding(ctx, tx, clientTxID, "card_in", partyAccountID); err != nil {
		return FundingResult{}, err
	} else if found {
		return existing, ErrDuplicateTransaction
	}

	txID, err := insertPosting(ctx, tx, clientTxID, "card_in", FundingStatusPendingSettlement, suspenseAccountID, partyAccountID, amount)
	if err != nil {
		return FundingResult{}, err
	}

	accountBalance, err := balanceForAccount(ctx, tx, partyAccountID)
	if err != nil {
		return FundingResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return FundingResult{}, err
	}

	return FundingResult{TransactionID: txID.String(), AccountBalance: accountBalance, Status: FundingStatusPendingSettlement}, nil
}

// CardOut records a card withdrawal request by debiting the party account and crediting suspense until settlement.
func (l *PostgresLedger) CardOut(ctx context.Context, accountCode, clientTxID string, amount int64) (FundingResult, error) {
	if amount <= 0 {
		return FundingResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return FundingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	partyAccountID, err := accountIDForCode(ctx, tx, accountCode)
	if err != nil {
		return FundingResult{}, err
	}
	suspenseAccountID, err := accountIDForCode(ctx, tx, CardSuspenseAccountCode)
	if err != nil {
		return FundingResult{}, err
	}

	if existing, found, err := existingFunding(ctx, tx, clientTxID, "card_out", partyAccountID); err != nil {
		return FundingResult{}, err
	} else if found {
		return existing, ErrDuplicateTransaction
	}

	accountBalance, err := balanceForAccount(ctx, tx, partyAccountID)
	if err != nil {
		return FundingResult{}, err
	}
	if accountBalance < amount {
		return FundingResult{}, ErrInsufficientFunds
	}

	txID, err := insertPosting(ctx, tx, clientTxID, "card_out", FundingStatusPendingSettlement, partyAccountID, suspenseAccountID, amount)
	if err != nil {
		return FundingResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return FundingResult{}, err
	}

	return FundingResult{TransactionID: txID.String(), AccountBalance: accountBalance - amount, Status: FundingStatusPendingSettlement}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) EnsureAccount(ctx context.Context, code string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

func (t *pgTx) Balance(ctx context.Context, code string) (int64, error) {
	id, err := accountIDForCode(ctx, t.tx, code)
	if err != nil {
		return 0, err
	}
	return balanceForAccount(ctx, t.tx, id)
}

func (t *pgTx) Move(ctx context.Context, fromCode, toCode, kind string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	// Lock in code order so two units moving in opposite directions cannot deadlock.
	first, second := fromCode, toCode
	if second < first {
		first, second = second, first
	}
	ids := make(map[string]uuid.UUID, 2)
	for _, code := range []string{first, second} {
		id, err := accountIDForCode(ctx, t.tx, code)
		if err != nil {
			return err
		}
		ids[code] = id
	}

	fromBalance, err := balanceForAccount(ctx, t.tx, ids[fromCode])
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return ErrInsufficientFunds
	}
	if fromCode == toCode {
		return nil
	}
	toBalance, err := balanceForAccount(ctx, t.tx, ids[toCode])
	if err != nil {
		return err
	}
	if toBalance > math.MaxInt64-amount {
		return ErrBalanceOverflow
	}

	_, err = insertPosting(ctx, t.tx, uuid.NewString(), kind, FundingStatusCompleted, ids[fromCode], ids[toCode], amount)
	return err
}

func (t *pgTx) Get(ctx context.Context, key string) (Document, error) {
	doc := Document{Key: key}
	err := t.tx.QueryRow(ctx, `SELECT data, due_at, open FROM documents WHERE key = $1 FOR UPDATE`, key).
		Scan(&doc.Data, &doc.DueAt, &doc.Open)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (t *pgTx) Insert(ctx context.Context, doc Document) error {
	cmd, err := t.tx.Exec(ctx, `INSERT INTO documents (key, data, due_at, open) VALUES ($1, $2, $3, $4)
        ON CONFLICT (key) DO NOTHING`, doc.Key, doc.Data, doc.DueAt, doc.Open)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (t *pgTx) Update(ctx context.Context, doc Document) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE documents SET data = $2, due_at = $3, open = $4, updated_at = now()
        WHERE key = $1`, doc.Key, doc.Data, doc.DueAt, doc.Open)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertPosting(ctx context.Context, tx pgx.Tx, clientTxID, kind, status string, fromID, toID uuid.UUID, amount int64) (uuid.UUID, error) {
	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_tx_id, kind, status) VALUES ($1, $2, $3, $4)`, txID, clientTxID, kind, status); err != nil {
		return uuid.Nil, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, fromID, -amount); err != nil {
		return uuid.Nil, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, toID, amount); err != nil {
		return uuid.Nil, err
	}
	return txID, nil
}

func existingFunding(ctx context.Context, tx pgx.Tx, clientTxID, kind string, partyAccountID uuid.UUID) (FundingResult, bool, error) {
	const existingQuery = `SELECT id, status FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var existingTxID uuid.UUID
	var existingStatus string
	err := tx.QueryRow(ctx, existingQuery, clientTxID, kind).Scan(&existingTxID, &existingStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return FundingResult{}, false, nil
	}
	if err != nil {
		return FundingResult{}, false, err
	}
	accountBal, err := balanceForAccount(ctx, tx, partyAccountID)
	if err != nil {
		return FundingResult{}, false, err
	}
	return FundingResult{TransactionID: existingTxID.String(), AccountBalance: accountBal, Status: existingStatus}, true, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s: %w", code, ErrAccountNotFound)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

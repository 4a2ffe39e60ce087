package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prooftv/themightyverse-sub000/internal/platform/db"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for the credit ledger.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Balance returns the account balance, zero for unknown accounts.
func (r *PGRepository) Balance(ctx context.Context, account common.Address) (uint64, error) {
	const query = `SELECT balance FROM credit_accounts WHERE account = $1`

	var balance int64
	err := r.pool.QueryRow(ctx, query, account.Hex()).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("credits: balance: %w", err)
	}
	return uint64(balance), nil
}

// Nonce returns the account's credit-mint nonce, zero for unknown accounts.
func (r *PGRepository) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	const query = `SELECT nonce FROM credit_accounts WHERE account = $1`

	var nonce int64
	err := r.pool.QueryRow(ctx, query, account.Hex()).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("credits: nonce: %w", err)
	}
	return uint64(nonce), nil
}

// ApplyMint credits the account and advances its nonce in one transaction.
// The nonce precondition is re-checked against the row under lock so two
// concurrent submissions of the same signed request cannot both apply.
func (r *PGRepository) ApplyMint(ctx context.Context, mint Mint) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const upsert = `
			INSERT INTO credit_accounts (account, balance, nonce)
			VALUES ($1, 0, 0)
			ON CONFLICT (account) DO NOTHING`
		if _, err := tx.Exec(ctx, upsert, mint.To.Hex()); err != nil {
			return fmt.Errorf("credits: ensure account: %w", err)
		}

		const lock = `SELECT nonce FROM credit_accounts WHERE account = $1 FOR UPDATE`
		var nonce int64
		if err := tx.QueryRow(ctx, lock, mint.To.Hex()).Scan(&nonce); err != nil {
			return fmt.Errorf("credits: lock account: %w", err)
		}
		if uint64(nonce) != mint.ExpectedNonce {
			return fmt.Errorf("credits: mint for %s: %w", mint.To.Hex(), shared.ErrInvalidNonce)
		}

		const update = `
			UPDATE credit_accounts
			SET balance = balance + $2, nonce = nonce + 1
			WHERE account = $1`
		if _, err := tx.Exec(ctx, update, mint.To.Hex(), int64(mint.Amount)); err != nil {
			return fmt.Errorf("credits: apply mint: %w", err)
		}

		const event = `
			INSERT INTO credit_events (kind, account, amount, operation, created_at)
			VALUES ('CreditsMinted', $1, $2, '', NOW())`
		if _, err := tx.Exec(ctx, event, mint.To.Hex(), int64(mint.Amount)); err != nil {
			return fmt.Errorf("credits: record event: %w", err)
		}
		return nil
	})
}

// ApplyDeduction debits exactly the cost or fails with no change.
func (r *PGRepository) ApplyDeduction(ctx context.Context, d Deduction) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const debit = `
			UPDATE credit_accounts
			SET balance = balance - $2
			WHERE account = $1 AND balance >= $2`
		tag, err := tx.Exec(ctx, debit, d.Account.Hex(), int64(d.Cost))
		if err != nil {
			return fmt.Errorf("credits: apply deduction: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("credits: %s for operation %q: %w", d.Account.Hex(), d.Operation, shared.ErrInsufficientCredits)
		}

		const event = `
			INSERT INTO credit_events (kind, account, amount, operation, created_at)
			VALUES ('CreditsDeducted', $1, $2, $3, NOW())`
		if _, err := tx.Exec(ctx, event, d.Account.Hex(), int64(d.Cost), d.Operation); err != nil {
			return fmt.Errorf("credits: record event: %w", err)
		}
		return nil
	})
}

// ApplyRefund credits the operation cost back and records the reversal.
func (r *PGRepository) ApplyRefund(ctx context.Context, d Deduction) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const credit = `
			INSERT INTO credit_accounts (account, balance, nonce)
			VALUES ($1, $2, 0)
			ON CONFLICT (account) DO UPDATE SET balance = credit_accounts.balance + $2`
		if _, err := tx.Exec(ctx, credit, d.Account.Hex(), int64(d.Cost)); err != nil {
			return fmt.Errorf("credits: apply refund: %w", err)
		}

		const event = `
			INSERT INTO credit_events (kind, account, amount, operation, actor, created_at)
			VALUES ('CreditsRefunded', $1, $2, $3, $4, NOW())`
		if _, err := tx.Exec(ctx, event, d.Account.Hex(), int64(d.Cost), d.Operation, d.Operator.Hex()); err != nil {
			return fmt.Errorf("credits: record event: %w", err)
		}
		return nil
	})
}

// Events returns the most recent ledger events for an account.
func (r *PGRepository) Events(ctx context.Context, account common.Address, limit int) ([]Event, error) {
	const query = `
		SELECT id, kind, account, amount, operation, created_at
		FROM credit_events
		WHERE account = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, account.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("credits: events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			addr string
			amt  int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &addr, &amt, &e.Operation, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Account = common.HexToAddress(addr)
		e.Amount = uint64(amt)
		events = append(events, e)
	}
	return events, rows.Err()
}

package assets

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

// PGRepository provides PostgreSQL backed persistence for the asset ledger.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Nonce returns the account's mint nonce, zero for unknown accounts.
func (r *PGRepository) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	const query = `SELECT nonce FROM asset_nonces WHERE account = $1`

	var nonce int64
	err := r.pool.QueryRow(ctx, query, account.Hex()).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("assets: nonce: %w", err)
	}
	return uint64(nonce), nil
}

// ApplyMint performs the whole signed-mint mutation in one transaction:
// nonce re-check under lock, first-mint metadata registration, balance
// credit, nonce advance and event row.
func (r *PGRepository) ApplyMint(ctx context.Context, mint Mint) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := checkAndAdvanceNonce(ctx, tx, mint.To, mint.ExpectedNonce); err != nil {
			return err
		}
		if err := registerTokenIfNew(ctx, tx, mint.TokenID, mint.MetadataURI, mint.To); err != nil {
			return err
		}
		if err := creditBalance(ctx, tx, mint.To, mint.TokenID, mint.Amount); err != nil {
			return err
		}
		return recordMintEvent(ctx, tx, mint.TokenID, mint.To, mint.Amount, mint.MetadataURI)
	})
}

// ApplyBatchMint assigns sequential token ids and mints one token per
// recipient, all in one transaction.
func (r *PGRepository) ApplyBatchMint(ctx context.Context, batch BatchMint) ([]uint64, error) {
	tokenIDs := make([]uint64, 0, len(batch.Recipients))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const nextID = `SELECT COALESCE(MAX(token_id), 0) + 1 FROM asset_tokens`
		var next int64
		if err := tx.QueryRow(ctx, nextID).Scan(&next); err != nil {
			return fmt.Errorf("assets: next token id: %w", err)
		}

		for i, recipient := range batch.Recipients {
			tokenID := uint64(next) + uint64(i)
			if err := registerTokenIfNew(ctx, tx, tokenID, batch.MetadataURIs[i], recipient); err != nil {
				return err
			}
			if err := creditBalance(ctx, tx, recipient, tokenID, batch.Amounts[i]); err != nil {
				return err
			}
			if err := recordMintEvent(ctx, tx, tokenID, recipient, batch.Amounts[i], batch.MetadataURIs[i]); err != nil {
				return err
			}
			tokenIDs = append(tokenIDs, tokenID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokenIDs, nil
}

// BalanceOf returns the balance of one token for an account.
func (r *PGRepository) BalanceOf(ctx context.Context, account common.Address, tokenID uint64) (uint64, error) {
	const query = `SELECT balance FROM asset_balances WHERE account = $1 AND token_id = $2`

	var balance int64
	err := r.pool.QueryRow(ctx, query, account.Hex(), int64(tokenID)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("assets: balance: %w", err)
	}
	return uint64(balance), nil
}

// TotalSupply counts distinct tokens ever minted.
func (r *PGRepository) TotalSupply(ctx context.Context) (uint64, error) {
	const query = `SELECT COUNT(*) FROM asset_tokens`

	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("assets: total supply: %w", err)
	}
	return uint64(count), nil
}

// Asset returns the per-token metadata record.
func (r *PGRepository) Asset(ctx context.Context, tokenID uint64) (*Asset, error) {
	const query = `
		SELECT token_id, uri, content_cid, metadata_cid, creator, created_at, is_active
		FROM asset_tokens
		WHERE token_id = $1`

	var (
		a       Asset
		id      int64
		creator string
	)
	err := r.pool.QueryRow(ctx, query, int64(tokenID)).Scan(
		&id, &a.URI, &a.ContentCID, &a.MetadataCID, &creator, &a.CreatedAt, &a.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("assets: token %d: %w", tokenID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("assets: asset: %w", err)
	}
	a.TokenID = uint64(id)
	a.Creator = common.HexToAddress(creator)
	return &a, nil
}

// SetRoyalty stores or overwrites a token's royalty record.
func (r *PGRepository) SetRoyalty(ctx context.Context, tokenID uint64, royalty Royalty) error {
	if _, err := r.Asset(ctx, tokenID); err != nil {
		return err
	}
	const query = `
		INSERT INTO asset_royalties (token_id, recipient, fraction)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_id) DO UPDATE SET recipient = $2, fraction = $3`

	if _, err := r.pool.Exec(ctx, query, int64(tokenID), royalty.Recipient.Hex(), int64(royalty.Fraction)); err != nil {
		return fmt.Errorf("assets: set royalty: %w", err)
	}
	return nil
}

// Royalty returns a token's royalty record.
func (r *PGRepository) Royalty(ctx context.Context, tokenID uint64) (*Royalty, error) {
	const query = `SELECT recipient, fraction FROM asset_royalties WHERE token_id = $1`

	var (
		recipient string
		fraction  int64
	)
	err := r.pool.QueryRow(ctx, query, int64(tokenID)).Scan(&recipient, &fraction)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("assets: royalty for token %d: %w", tokenID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("assets: royalty: %w", err)
	}
	return &Royalty{Recipient: common.HexToAddress(recipient), Fraction: uint32(fraction)}, nil
}

// UpdateURI overwrites a token's metadata URI.
func (r *PGRepository) UpdateURI(ctx context.Context, tokenID uint64, uri string) error {
	const query = `
		UPDATE asset_tokens
		SET uri = $2, metadata_cid = $3
		WHERE token_id = $1`

	tag, err := r.pool.Exec(ctx, query, int64(tokenID), uri, MetadataCIDFromURI(uri))
	if err != nil {
		return fmt.Errorf("assets: update uri: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assets: token %d: %w", tokenID, shared.ErrNotFound)
	}
	return nil
}

// SetActive toggles a token's active flag.
func (r *PGRepository) SetActive(ctx context.Context, tokenID uint64, active bool) error {
	const query = `UPDATE asset_tokens SET is_active = $2 WHERE token_id = $1`

	tag, err := r.pool.Exec(ctx, query, int64(tokenID), active)
	if err != nil {
		return fmt.Errorf("assets: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assets: token %d: %w", tokenID, shared.ErrNotFound)
	}
	return nil
}

// Events returns the most recent mint events for a token.
func (r *PGRepository) Events(ctx context.Context, tokenID uint64, limit int) ([]Event, error) {
	const query = `
		SELECT id, token_id, recipient, amount, metadata_uri, created_at
		FROM asset_events
		WHERE token_id = $1
		ORDER BY id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, int64(tokenID), limit)
	if err != nil {
		return nil, fmt.Errorf("assets: events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			id, amt   int64
			recipient string
		)
		if err := rows.Scan(&e.ID, &id, &recipient, &amt, &e.MetadataURI, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TokenID = uint64(id)
		e.To = common.HexToAddress(recipient)
		e.Amount = uint64(amt)
		events = append(events, e)
	}
	return events, rows.Err()
}

func checkAndAdvanceNonce(ctx context.Context, tx pgx.Tx, account common.Address, expected uint64) error {
	const upsert = `
		INSERT INTO asset_nonces (account, nonce)
		VALUES ($1, 0)
		ON CONFLICT (account) DO NOTHING`
	if _, err := tx.Exec(ctx, upsert, account.Hex()); err != nil {
		return fmt.Errorf("assets: ensure nonce row: %w", err)
	}

	const lock = `SELECT nonce FROM asset_nonces WHERE account = $1 FOR UPDATE`
	var nonce int64
	if err := tx.QueryRow(ctx, lock, account.Hex()).Scan(&nonce); err != nil {
		return fmt.Errorf("assets: lock nonce: %w", err)
	}
	if uint64(nonce) != expected {
		return fmt.Errorf("assets: mint for %s: %w", account.Hex(), shared.ErrInvalidNonce)
	}

	const advance = `UPDATE asset_nonces SET nonce = nonce + 1 WHERE account = $1`
	if _, err := tx.Exec(ctx, advance, account.Hex()); err != nil {
		return fmt.Errorf("assets: advance nonce: %w", err)
	}
	return nil
}

// registerTokenIfNew performs first-mint bookkeeping exactly once per token:
// the metadata row is inserted only when absent, so the first URI wins and
// total supply counts the token a single time.
func registerTokenIfNew(ctx context.Context, tx pgx.Tx, tokenID uint64, uri string, creator common.Address) error {
	const query = `
		INSERT INTO asset_tokens (token_id, uri, content_cid, metadata_cid, creator, created_at, is_active)
		VALUES ($1, $2, '', $3, $4, NOW(), TRUE)
		ON CONFLICT (token_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, int64(tokenID), uri, MetadataCIDFromURI(uri), creator.Hex()); err != nil {
		return fmt.Errorf("assets: register token: %w", err)
	}
	return nil
}

func creditBalance(ctx context.Context, tx pgx.Tx, account common.Address, tokenID uint64, amount uint64) error {
	const query = `
		INSERT INTO asset_balances (account, token_id, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, token_id) DO UPDATE SET balance = asset_balances.balance + $3`

	if _, err := tx.Exec(ctx, query, account.Hex(), int64(tokenID), int64(amount)); err != nil {
		return fmt.Errorf("assets: credit balance: %w", err)
	}
	return nil
}

func recordMintEvent(ctx context.Context, tx pgx.Tx, tokenID uint64, to common.Address, amount uint64, uri string) error {
	const query = `
		INSERT INTO asset_events (token_id, recipient, amount, metadata_uri, created_at)
		VALUES ($1, $2, $3, $4, NOW())`

	if _, err := tx.Exec(ctx, query, int64(tokenID), to.Hex(), int64(amount), uri); err != nil {
		return fmt.Errorf("assets: record event: %w", err)
	}
	return nil
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RedisChallengeStore keeps pending challenges in Redis with a TTL, so
// abandoned challenges expire on their own.
type RedisChallengeStore struct {
	client *redis.Client
}

// NewChallengeStore constructs a RedisChallengeStore.
func NewChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

type challengePayload struct {
	Nonce    string    `json:"nonce"`
	IssuedAt time.Time `json:"issued_at"`
}

func challengeKey(wallet common.Address) string {
	return "auth:challenge:" + wallet.Hex()
}

// Put stores a challenge, replacing any pending one for the wallet.
func (s *RedisChallengeStore) Put(ctx context.Context, c Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challengePayload{Nonce: c.Nonce, IssuedAt: c.IssuedAt})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, challengeKey(c.Wallet), payload, ttl).Err(); err != nil {
		return fmt.Errorf("auth: set challenge: %w", err)
	}
	return nil
}

// Take atomically fetches and deletes the wallet's pending challenge. Nil
// without error when none is pending.
func (s *RedisChallengeStore) Take(ctx context.Context, wallet common.Address) (*Challenge, error) {
	raw, err := s.client.GetDel(ctx, challengeKey(wallet)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: take challenge: %w", err)
	}
	var payload challengePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("auth: decode challenge: %w", err)
	}
	return &Challenge{Wallet: wallet, Nonce: payload.Nonce, IssuedAt: payload.IssuedAt}, nil
}

// PGLoginRepository records completed logins.
type PGLoginRepository struct {
	pool *pgxpool.Pool
}

// NewLoginRepository constructs a PGLoginRepository.
func NewLoginRepository(pool *pgxpool.Pool) *PGLoginRepository {
	return &PGLoginRepository{pool: pool}
}

// RecordLogin appends one login row.
func (r *PGLoginRepository) RecordLogin(ctx context.Context, login Login) error {
	const query = `
		INSERT INTO auth_logins (wallet, method, logged_at)
		VALUES ($1, $2, $3)`

	if _, err := r.pool.Exec(ctx, query, login.Wallet.Hex(), login.Method, login.LoggedAt); err != nil {
		return fmt.Errorf("auth: record login: %w", err)
	}
	return nil
}

// RecentLogins returns the newest login rows for a wallet.
func (r *PGLoginRepository) RecentLogins(ctx context.Context, wallet common.Address, limit int) ([]Login, error) {
	const query = `
		SELECT wallet, method, logged_at
		FROM auth_logins
		WHERE wallet = $1
		ORDER BY logged_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, wallet.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("auth: recent logins: %w", err)
	}
	defer rows.Close()

	var logins []Login
	for rows.Next() {
		var (
			l   Login
			hex string
		)
		if err := rows.Scan(&hex, &l.Method, &l.LoggedAt); err != nil {
			return nil, err
		}
		l.Wallet = common.HexToAddress(hex)
		logins = append(logins, l)
	}
	return logins, rows.Err()
}

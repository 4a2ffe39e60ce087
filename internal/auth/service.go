// Package auth implements wallet sign-in: a one-shot signed challenge
// exchanged for a role manifest. A development login path derives a wallet
// from an email address; it is compiled in but refused outside development
// environments.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/prooftv/themightyverse-sub000/internal/manifest"
	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
	"github.com/prooftv/themightyverse-sub000/internal/signing"
)

// ChallengeTTL bounds how long an issued challenge stays valid.
const ChallengeTTL = 5 * time.Minute

// ChallengeStore holds pending challenges. Take removes the challenge so a
// signature can only be redeemed once.
type ChallengeStore interface {
	Put(ctx context.Context, c Challenge, ttl time.Duration) error
	Take(ctx context.Context, wallet common.Address) (*Challenge, error)
}

// RoleSource resolves the roles a wallet holds; satisfied by the registry
// service.
type RoleSource interface {
	RolesOf(ctx context.Context, account common.Address) ([]roles.Role, error)
}

// LoginRecorder persists completed logins for audit.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, login Login) error
}

// Service orchestrates the sign-in flow.
type Service struct {
	challenges ChallengeStore
	registry   RoleSource
	issuer     *manifest.Issuer
	logins     LoginRecorder
	logger     *slog.Logger
	devLogin   bool
	clock      func() time.Time
}

// NewService constructs a Service. devLogin enables the email-derived
// wallet path; it must be false in production.
func NewService(challenges ChallengeStore, registry RoleSource, issuer *manifest.Issuer, logins LoginRecorder, logger *slog.Logger, devLogin bool) *Service {
	return &Service{
		challenges: challenges,
		registry:   registry,
		issuer:     issuer,
		logins:     logins,
		logger:     logger,
		devLogin:   devLogin,
		clock:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// NewChallenge issues and stores a fresh challenge for the wallet,
// replacing any pending one.
func (s *Service) NewChallenge(ctx context.Context, wallet common.Address) (*Challenge, error) {
	c := Challenge{
		Wallet:   wallet,
		Nonce:    uuid.NewString(),
		IssuedAt: s.clock(),
	}
	if err := s.challenges.Put(ctx, c, ChallengeTTL); err != nil {
		return nil, fmt.Errorf("auth: store challenge: %w", err)
	}
	return &c, nil
}

// Login redeems a signed challenge for a role manifest. The challenge is
// consumed whether or not the signature verifies.
func (s *Service) Login(ctx context.Context, wallet common.Address, signature []byte) (string, []roles.Role, error) {
	challenge, err := s.challenges.Take(ctx, wallet)
	if err != nil {
		return "", nil, err
	}
	if challenge == nil {
		return "", nil, fmt.Errorf("auth: no pending challenge for %s: %w", wallet.Hex(), shared.ErrInvalidCredentials)
	}
	if s.clock().Sub(challenge.IssuedAt) > ChallengeTTL {
		return "", nil, fmt.Errorf("auth: challenge for %s: %w", wallet.Hex(), shared.ErrInvalidCredentials)
	}

	signer, err := signing.RecoverPersonal(challenge.Message(), signature)
	if err != nil {
		return "", nil, fmt.Errorf("auth: %w: %v", shared.ErrInvalidCredentials, err)
	}
	if signer != wallet {
		return "", nil, fmt.Errorf("auth: signed by %s, expected %s: %w", signer.Hex(), wallet.Hex(), shared.ErrInvalidCredentials)
	}

	return s.completeLogin(ctx, wallet, MethodWallet)
}

// DevLogin issues a manifest for the wallet deterministically derived from
// an email address. Refused unless the dev path is enabled.
func (s *Service) DevLogin(ctx context.Context, email string) (common.Address, string, []roles.Role, error) {
	if !s.devLogin {
		return common.Address{}, "", nil, fmt.Errorf("auth: dev login disabled: %w", shared.ErrUnauthorized)
	}
	wallet := WalletFromEmail(email)
	token, held, err := s.completeLogin(ctx, wallet, MethodDev)
	if err != nil {
		return common.Address{}, "", nil, err
	}
	return wallet, token, held, nil
}

func (s *Service) completeLogin(ctx context.Context, wallet common.Address, method string) (string, []roles.Role, error) {
	// The manifest only ever carries roles the registry granted; a wallet
	// with no grants gets an empty manifest, not an invented one.
	held, err := s.registry.RolesOf(ctx, wallet)
	if err != nil {
		return "", nil, err
	}
	token, err := s.issuer.Issue(wallet, held)
	if err != nil {
		return "", nil, err
	}
	if s.logins != nil {
		if err := s.logins.RecordLogin(ctx, Login{Wallet: wallet, Method: method, LoggedAt: s.clock()}); err != nil {
			return "", nil, err
		}
	}
	if s.logger != nil {
		s.logger.Info("login", slog.String("wallet", wallet.Hex()), slog.String("method", method))
	}
	return token, held, nil
}

// WalletFromEmail derives a deterministic development wallet from an email
// address: the last 20 bytes of keccak256 of the lowercased address.
func WalletFromEmail(email string) common.Address {
	hash := crypto.Keccak256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return common.BytesToAddress(hash[12:])
}

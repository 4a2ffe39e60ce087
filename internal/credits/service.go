// Package credits implements the fungible credit ledger: per-account
// balances debited by a fixed operation cost table and topped up through
// admin-signed mint requests.
package credits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
	"github.com/prooftv/themightyverse-sub000/internal/signing"
)

// Billable operation names.
const (
	OpUploadAsset       = "upload_asset"
	OpPinContent        = "pin_content"
	OpMintAsset         = "mint_asset"
	OpRegisterAnimation = "register_animation"
	OpSponsorCampaign   = "sponsor_campaign"
)

// DefaultCosts is the operation cost table applied when configuration
// supplies no override. Unknown operation names are an error, never a
// zero-cost default.
var DefaultCosts = map[string]uint64{
	OpUploadAsset:       10,
	OpPinContent:        5,
	OpMintAsset:         25,
	OpRegisterAnimation: 15,
	OpSponsorCampaign:   50,
}

// Repository persists credit balances, nonces and the event log. Apply
// methods are atomic: they re-check their precondition inside the same
// transaction that mutates state and fail with the taxonomy error on
// violation, leaving no partial effect.
type Repository interface {
	Balance(ctx context.Context, account common.Address) (uint64, error)
	Nonce(ctx context.Context, account common.Address) (uint64, error)
	ApplyMint(ctx context.Context, mint Mint) error
	ApplyDeduction(ctx context.Context, d Deduction) error
	ApplyRefund(ctx context.Context, d Deduction) error
	Events(ctx context.Context, account common.Address, limit int) ([]Event, error)
}

// RoleChecker resolves on-ledger role checks; satisfied by the registry
// service.
type RoleChecker interface {
	HasRole(ctx context.Context, account common.Address, required roles.Role) (bool, error)
}

// Config carries the ledger's signing domain and authorization settings.
type Config struct {
	Domain signing.Domain
	// Operator is the service account allowed to debit operations without
	// holding an admin grant (the mint-queue worker).
	Operator common.Address
	// Costs overrides DefaultCosts when non-nil.
	Costs map[string]uint64
}

// Service orchestrates credit ledger operations.
type Service struct {
	repo     Repository
	registry RoleChecker
	domain   signing.Domain
	operator common.Address
	costs    map[string]uint64
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, registry RoleChecker, cfg Config, logger *slog.Logger) *Service {
	costs := cfg.Costs
	if costs == nil {
		costs = DefaultCosts
	}
	return &Service{
		repo:     repo,
		registry: registry,
		domain:   cfg.Domain,
		operator: cfg.Operator,
		costs:    costs,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// BalanceOf returns the account's credit balance.
func (s *Service) BalanceOf(ctx context.Context, account common.Address) (uint64, error) {
	return s.repo.Balance(ctx, account)
}

// Nonce returns the account's current credit-mint nonce.
func (s *Service) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	return s.repo.Nonce(ctx, account)
}

// OperationCost looks up the fixed cost table.
func (s *Service) OperationCost(operation string) (uint64, error) {
	cost, ok := s.costs[operation]
	if !ok {
		return 0, fmt.Errorf("credits: %q: %w", operation, shared.ErrUnknownOperation)
	}
	return cost, nil
}

// CanAffordOperation reports whether the account balance covers the
// operation cost.
func (s *Service) CanAffordOperation(ctx context.Context, account common.Address, operation string) (bool, error) {
	cost, err := s.OperationCost(operation)
	if err != nil {
		return false, err
	}
	balance, err := s.repo.Balance(ctx, account)
	if err != nil {
		return false, err
	}
	return balance >= cost, nil
}

// DeductForOperation debits exactly the operation cost from the account.
// An account may always spend its own credits; debiting another account
// requires an admin-closure actor or the configured operator. The debit is
// atomic: on insufficient balance nothing changes.
func (s *Service) DeductForOperation(ctx context.Context, actor, account common.Address, operation string) error {
	cost, err := s.OperationCost(operation)
	if err != nil {
		return err
	}
	if actor != account {
		if err := s.authorizeOperator(ctx, actor); err != nil {
			return err
		}
	}
	if err := s.repo.ApplyDeduction(ctx, Deduction{
		Account:   account,
		Operation: operation,
		Cost:      cost,
		Operator:  actor,
	}); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("credits deducted",
			slog.String("account", account.Hex()),
			slog.String("operation", operation),
			slog.Uint64("cost", cost),
		)
	}
	return nil
}

// RefundOperation returns the operation cost to the account after a debit
// whose downstream effect could not be applied. Operator/admin gate; the
// refund is its own ledger event so reconciliation can pair it with the
// deduction it reverses.
func (s *Service) RefundOperation(ctx context.Context, actor, account common.Address, operation string) error {
	cost, err := s.OperationCost(operation)
	if err != nil {
		return err
	}
	if err := s.authorizeOperator(ctx, actor); err != nil {
		return err
	}
	if err := s.repo.ApplyRefund(ctx, Deduction{
		Account:   account,
		Operation: operation,
		Cost:      cost,
		Operator:  actor,
	}); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("credits refunded",
			slog.String("account", account.Hex()),
			slog.String("operation", operation),
			slog.Uint64("cost", cost),
		)
	}
	return nil
}

// MintWithSignature credits Amount to To against an admin-signed request.
// Checks run in the fixed order deadline, signer, role, nonce so a given
// malformed request always reports the same reason.
func (s *Service) MintWithSignature(ctx context.Context, req MintRequest, signature []byte) error {
	if req.Deadline < uint64(s.clock().Unix()) {
		return fmt.Errorf("credits: mint for %s: %w", req.To.Hex(), shared.ErrExpiredRequest)
	}

	signer, err := signing.Recover(s.domain, TypeName, TypeFields, req.Message(), signature)
	if err != nil {
		return fmt.Errorf("credits: mint for %s: %w", req.To.Hex(), err)
	}

	authorized, err := s.registry.HasRole(ctx, signer, roles.Admin)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("credits: mint signed by %s: %w", signer.Hex(), shared.ErrUnauthorizedSigner)
	}

	current, err := s.repo.Nonce(ctx, req.To)
	if err != nil {
		return err
	}
	if req.Nonce != current {
		return fmt.Errorf("credits: mint for %s: have %d, want %d: %w", req.To.Hex(), req.Nonce, current, shared.ErrInvalidNonce)
	}

	if err := s.repo.ApplyMint(ctx, Mint{
		To:            req.To,
		Amount:        req.Amount,
		ExpectedNonce: req.Nonce,
		Authorizer:    signer,
	}); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("credits minted",
			slog.String("to", req.To.Hex()),
			slog.Uint64("amount", req.Amount),
			slog.String("authorizer", signer.Hex()),
		)
	}
	return nil
}

func (s *Service) authorizeOperator(ctx context.Context, actor common.Address) error {
	if actor == s.operator && actor != (common.Address{}) {
		return nil
	}
	ok, err := s.registry.HasRole(ctx, actor, roles.Admin)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("credits: operator %s: %w", actor.Hex(), shared.ErrUnauthorized)
	}
	return nil
}

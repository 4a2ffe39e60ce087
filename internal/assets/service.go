// Package assets implements the multi-token asset ledger: signature-gated
// minting, role-gated batch minting, per-token metadata and royalties.
// Token existence is established only through a successful mint; the first
// mint of a tokenId registers its metadata and counts once toward total
// supply.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
	"github.com/prooftv/themightyverse-sub000/internal/signing"
)

// ErrInvalidRoyalty indicates a royalty fraction above the denominator.
var ErrInvalidRoyalty = errors.New("assets: royalty fraction exceeds denominator")

// Repository persists the asset ledger. Apply methods are atomic: the nonce
// precondition and first-mint bookkeeping happen in the same transaction as
// the balance change, so a rejected mint leaves nothing behind.
type Repository interface {
	Nonce(ctx context.Context, account common.Address) (uint64, error)
	ApplyMint(ctx context.Context, mint Mint) error
	ApplyBatchMint(ctx context.Context, batch BatchMint) ([]uint64, error)
	BalanceOf(ctx context.Context, account common.Address, tokenID uint64) (uint64, error)
	TotalSupply(ctx context.Context) (uint64, error)
	Asset(ctx context.Context, tokenID uint64) (*Asset, error)
	SetRoyalty(ctx context.Context, tokenID uint64, royalty Royalty) error
	Royalty(ctx context.Context, tokenID uint64) (*Royalty, error)
	UpdateURI(ctx context.Context, tokenID uint64, uri string) error
	SetActive(ctx context.Context, tokenID uint64, active bool) error
	Events(ctx context.Context, tokenID uint64, limit int) ([]Event, error)
}

// RoleChecker resolves on-ledger role checks; satisfied by the registry
// service.
type RoleChecker interface {
	HasRole(ctx context.Context, account common.Address, required roles.Role) (bool, error)
}

// Service orchestrates asset ledger operations.
type Service struct {
	repo     Repository
	registry RoleChecker
	domain   signing.Domain
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, registry RoleChecker, domain signing.Domain, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		domain:   domain,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Domain exposes the ledger's signing domain for request builders.
func (s *Service) Domain() signing.Domain {
	return s.domain
}

// MintWithSignature mints against an admin-signed request. Checks run in the
// fixed order deadline, signer, role, nonce so a given malformed request
// always reports the same reason; a request that is both expired and signed
// by the wrong key reports expired.
func (s *Service) MintWithSignature(ctx context.Context, req MintRequest, signature []byte) error {
	if req.Deadline < uint64(s.clock().Unix()) {
		return fmt.Errorf("assets: mint token %d for %s: %w", req.TokenID, req.To.Hex(), shared.ErrExpiredRequest)
	}

	signer, err := signing.Recover(s.domain, TypeName, TypeFields, req.Message(), signature)
	if err != nil {
		return fmt.Errorf("assets: mint token %d: %w", req.TokenID, err)
	}

	authorized, err := s.registry.HasRole(ctx, signer, roles.Admin)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("assets: mint signed by %s: %w", signer.Hex(), shared.ErrUnauthorizedSigner)
	}

	current, err := s.repo.Nonce(ctx, req.To)
	if err != nil {
		return err
	}
	if req.Nonce != current {
		return fmt.Errorf("assets: mint for %s: have %d, want %d: %w", req.To.Hex(), req.Nonce, current, shared.ErrInvalidNonce)
	}

	if err := s.repo.ApplyMint(ctx, Mint{
		To:            req.To,
		TokenID:       req.TokenID,
		Amount:        req.Amount,
		MetadataURI:   req.MetadataURI,
		ExpectedNonce: req.Nonce,
		Authorizer:    signer,
	}); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("asset minted",
			slog.Uint64("token_id", req.TokenID),
			slog.String("to", req.To.Hex()),
			slog.Uint64("amount", req.Amount),
			slog.String("authorizer", signer.Hex()),
		)
	}
	return nil
}

// BatchMint mints each amounts[i] of a freshly assigned sequential tokenId
// to recipients[i]. Gated on the minter role (curator closure), no
// signature needed. All three slices must be the same length.
func (s *Service) BatchMint(ctx context.Context, actor common.Address, recipients []common.Address, amounts []uint64, metadataURIs []string) ([]uint64, error) {
	if len(recipients) != len(amounts) || len(recipients) != len(metadataURIs) {
		return nil, fmt.Errorf("assets: batch mint %d/%d/%d: %w",
			len(recipients), len(amounts), len(metadataURIs), shared.ErrLengthMismatch)
	}
	authorized, err := s.registry.HasRole(ctx, actor, roles.Curator)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, fmt.Errorf("assets: batch mint by %s: %w", actor.Hex(), shared.ErrUnauthorized)
	}

	tokenIDs, err := s.repo.ApplyBatchMint(ctx, BatchMint{
		Recipients:   recipients,
		Amounts:      amounts,
		MetadataURIs: metadataURIs,
		Minter:       actor,
	})
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("batch minted",
			slog.Int("tokens", len(tokenIDs)),
			slog.String("minter", actor.Hex()),
		)
	}
	return tokenIDs, nil
}

// SetTokenRoyalty stores or overwrites the royalty record for a token.
// Admin gate; the fraction is basis points out of 10000.
func (s *Service) SetTokenRoyalty(ctx context.Context, actor common.Address, tokenID uint64, recipient common.Address, fraction uint32) error {
	if fraction > RoyaltyDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidRoyalty, fraction)
	}
	authorized, err := s.registry.HasRole(ctx, actor, roles.Admin)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("assets: set royalty by %s: %w", actor.Hex(), shared.ErrUnauthorized)
	}
	return s.repo.SetRoyalty(ctx, tokenID, Royalty{Recipient: recipient, Fraction: fraction})
}

// RoyaltyInfo computes the royalty due on a sale: floor(salePrice *
// fraction / 10000). Tokens without a royalty record pay nothing.
func (s *Service) RoyaltyInfo(ctx context.Context, tokenID uint64, salePrice *big.Int) (common.Address, *big.Int, error) {
	royalty, err := s.repo.Royalty(ctx, tokenID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return common.Address{}, new(big.Int), nil
		}
		return common.Address{}, nil, err
	}
	amount := new(big.Int).Mul(salePrice, new(big.Int).SetUint64(uint64(royalty.Fraction)))
	amount.Div(amount, big.NewInt(RoyaltyDenominator))
	return royalty.Recipient, amount, nil
}

// UpdateTokenURI is the explicit metadata update path; first-mint URIs are
// otherwise immutable. Curator gate.
func (s *Service) UpdateTokenURI(ctx context.Context, actor common.Address, tokenID uint64, uri string) error {
	authorized, err := s.registry.HasRole(ctx, actor, roles.Curator)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("assets: update uri by %s: %w", actor.Hex(), shared.ErrUnauthorized)
	}
	return s.repo.UpdateURI(ctx, tokenID, uri)
}

// SetAssetActive toggles an asset's active flag. Admin gate.
func (s *Service) SetAssetActive(ctx context.Context, actor common.Address, tokenID uint64, active bool) error {
	authorized, err := s.registry.HasRole(ctx, actor, roles.Admin)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("assets: set active by %s: %w", actor.Hex(), shared.ErrUnauthorized)
	}
	return s.repo.SetActive(ctx, tokenID, active)
}

// Nonce returns the account's current mint nonce.
func (s *Service) Nonce(ctx context.Context, account common.Address) (uint64, error) {
	return s.repo.Nonce(ctx, account)
}

// BalanceOf returns the account's balance of one token.
func (s *Service) BalanceOf(ctx context.Context, account common.Address, tokenID uint64) (uint64, error) {
	return s.repo.BalanceOf(ctx, account, tokenID)
}

// TotalSupply returns the number of distinct tokens ever minted.
func (s *Service) TotalSupply(ctx context.Context) (uint64, error) {
	return s.repo.TotalSupply(ctx)
}

// URI returns a token's metadata URI.
func (s *Service) URI(ctx context.Context, tokenID uint64) (string, error) {
	asset, err := s.repo.Asset(ctx, tokenID)
	if err != nil {
		return "", err
	}
	return asset.URI, nil
}

// AssetMetadata returns the per-token metadata record.
func (s *Service) AssetMetadata(ctx context.Context, tokenID uint64) (*Asset, error) {
	return s.repo.Asset(ctx, tokenID)
}

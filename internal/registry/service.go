// Package registry is the role registry: the single source of truth for who
// holds which role. Contract-style operations consult it directly; the route
// guard consumes a manifest snapshot issued from it.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// Repository persists role grants.
type Repository interface {
	RolesOf(ctx context.Context, account common.Address) ([]roles.Role, error)
	Grant(ctx context.Context, grant Grant) error
	Revoke(ctx context.Context, account common.Address, role roles.Role) (bool, error)
	ListGrants(ctx context.Context) ([]Grant, error)
}

// Service orchestrates role registry operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// RolesOf returns the roles granted to an account.
func (s *Service) RolesOf(ctx context.Context, account common.Address) ([]roles.Role, error) {
	return s.repo.RolesOf(ctx, account)
}

// HasRole reports whether the account holds any role whose hierarchy closure
// includes required.
func (s *Service) HasRole(ctx context.Context, account common.Address, required roles.Role) (bool, error) {
	held, err := s.repo.RolesOf(ctx, account)
	if err != nil {
		return false, err
	}
	for _, h := range held {
		if roles.HasRolePermission(h, required) {
			return true, nil
		}
	}
	return false, nil
}

// GrantRole grants a role to an account. The actor must itself hold a role
// whose closure includes Admin; the check and the write happen with no
// partial effect on failure.
func (s *Service) GrantRole(ctx context.Context, actor common.Address, role roles.Role, account common.Address) error {
	if !role.Valid() {
		return fmt.Errorf("registry: grant: %w: invalid role", shared.ErrUnauthorized)
	}
	ok, err := s.HasRole(ctx, actor, roles.Admin)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("registry: grant %s to %s: %w", role, account.Hex(), shared.ErrUnauthorized)
	}
	if err := s.repo.Grant(ctx, Grant{Account: account, Role: role, GrantedBy: actor}); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("role granted",
			slog.String("role", role.String()),
			slog.String("account", account.Hex()),
			slog.String("granted_by", actor.Hex()),
		)
	}
	return nil
}

// RevokeRole removes a role from an account under the same actor gate as
// GrantRole.
func (s *Service) RevokeRole(ctx context.Context, actor common.Address, role roles.Role, account common.Address) error {
	ok, err := s.HasRole(ctx, actor, roles.Admin)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("registry: revoke %s from %s: %w", role, account.Hex(), shared.ErrUnauthorized)
	}
	removed, err := s.repo.Revoke(ctx, account, role)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("registry: revoke %s from %s: %w", role, account.Hex(), shared.ErrNotFound)
	}
	if s.logger != nil {
		s.logger.Info("role revoked",
			slog.String("role", role.String()),
			slog.String("account", account.Hex()),
			slog.String("revoked_by", actor.Hex()),
		)
	}
	return nil
}

// Bootstrap ensures the configured super-admin wallet holds SUPER_ADMIN.
// Idempotent; called once at startup before any request is served.
func (s *Service) Bootstrap(ctx context.Context, superAdmin common.Address) error {
	if superAdmin == (common.Address{}) {
		return nil
	}
	held, err := s.repo.RolesOf(ctx, superAdmin)
	if err != nil {
		return err
	}
	for _, h := range held {
		if h == roles.SuperAdmin {
			return nil
		}
	}
	if err := s.repo.Grant(ctx, Grant{Account: superAdmin, Role: roles.SuperAdmin, GrantedBy: superAdmin}); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("super admin bootstrapped", slog.String("account", superAdmin.Hex()))
	}
	return nil
}

package registry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
)

// PGRepository provides PostgreSQL backed persistence for role grants.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// RolesOf returns the roles granted to an account.
func (r *PGRepository) RolesOf(ctx context.Context, account common.Address) ([]roles.Role, error) {
	const query = `
		SELECT role
		FROM role_grants
		WHERE account = $1
		ORDER BY role`

	rows, err := r.pool.Query(ctx, query, account.Hex())
	if err != nil {
		return nil, fmt.Errorf("registry: roles of %s: %w", account.Hex(), err)
	}
	defer rows.Close()

	var held []roles.Role
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		role, err := roles.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("registry: stored grant: %w", err)
		}
		held = append(held, role)
	}
	return held, rows.Err()
}

// Grant inserts a role grant; granting an already-held role is a no-op.
func (r *PGRepository) Grant(ctx context.Context, grant Grant) error {
	const query = `
		INSERT INTO role_grants (account, role, granted_by, granted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account, role) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, grant.Account.Hex(), grant.Role.String(), grant.GrantedBy.Hex()); err != nil {
		return fmt.Errorf("registry: grant: %w", err)
	}
	return nil
}

// Revoke deletes a role grant, reporting whether a row was removed.
func (r *PGRepository) Revoke(ctx context.Context, account common.Address, role roles.Role) (bool, error) {
	const query = `DELETE FROM role_grants WHERE account = $1 AND role = $2`

	tag, err := r.pool.Exec(ctx, query, account.Hex(), role.String())
	if err != nil {
		return false, fmt.Errorf("registry: revoke: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListGrants returns every grant ordered by account.
func (r *PGRepository) ListGrants(ctx context.Context) ([]Grant, error) {
	const query = `
		SELECT account, role, granted_by, granted_at
		FROM role_grants
		ORDER BY account, role`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("registry: list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var (
			account, roleName, grantedBy string
			g                            Grant
		)
		if err := rows.Scan(&account, &roleName, &grantedBy, &g.GrantedAt); err != nil {
			return nil, err
		}
		role, err := roles.Parse(roleName)
		if err != nil {
			return nil, fmt.Errorf("registry: stored grant: %w", err)
		}
		g.Account = common.HexToAddress(account)
		g.Role = role
		g.GrantedBy = common.HexToAddress(grantedBy)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

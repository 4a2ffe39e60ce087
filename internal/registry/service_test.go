package registry

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

type memoryGrantRepo struct {
	grants map[common.Address]map[roles.Role]Grant
}

func newMemoryGrantRepo() *memoryGrantRepo {
	return &memoryGrantRepo{grants: make(map[common.Address]map[roles.Role]Grant)}
}

func (r *memoryGrantRepo) RolesOf(ctx context.Context, account common.Address) ([]roles.Role, error) {
	var held []roles.Role
	for role := range r.grants[account] {
		held = append(held, role)
	}
	return held, nil
}

func (r *memoryGrantRepo) Grant(ctx context.Context, grant Grant) error {
	if r.grants[grant.Account] == nil {
		r.grants[grant.Account] = make(map[roles.Role]Grant)
	}
	if _, exists := r.grants[grant.Account][grant.Role]; !exists {
		grant.GrantedAt = time.Now()
		r.grants[grant.Account][grant.Role] = grant
	}
	return nil
}

func (r *memoryGrantRepo) Revoke(ctx context.Context, account common.Address, role roles.Role) (bool, error) {
	if _, ok := r.grants[account][role]; !ok {
		return false, nil
	}
	delete(r.grants[account], role)
	return true, nil
}

func (r *memoryGrantRepo) ListGrants(ctx context.Context) ([]Grant, error) {
	var out []Grant
	for _, byRole := range r.grants {
		for _, g := range byRole {
			out = append(out, g)
		}
	}
	return out, nil
}

var (
	superWallet   = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	adminWallet   = common.HexToAddress("0xaaaa000000000000000000000000000000000002")
	curatorWallet = common.HexToAddress("0xaaaa000000000000000000000000000000000003")
	userWallet    = common.HexToAddress("0xaaaa000000000000000000000000000000000004")
)

func newTestService(t *testing.T) (*Service, *memoryGrantRepo) {
	t.Helper()
	repo := newMemoryGrantRepo()
	svc := NewService(repo, nil)
	require.NoError(t, svc.Bootstrap(context.Background(), superWallet))
	return svc, repo
}

func TestBootstrapIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	require.NoError(t, svc.Bootstrap(context.Background(), superWallet))

	held, err := repo.RolesOf(context.Background(), superWallet)
	require.NoError(t, err)
	require.Equal(t, []roles.Role{roles.SuperAdmin}, held)
}

func TestGrantRequiresAdminClosure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Super admin can grant.
	require.NoError(t, svc.GrantRole(ctx, superWallet, roles.Admin, adminWallet))
	// Granted admin can grant further.
	require.NoError(t, svc.GrantRole(ctx, adminWallet, roles.Curator, curatorWallet))
	// Curator cannot grant.
	err := svc.GrantRole(ctx, curatorWallet, roles.Viewer, userWallet)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	// Unknown wallet cannot grant.
	err = svc.GrantRole(ctx, userWallet, roles.Viewer, userWallet)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestHasRoleUsesClosure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.GrantRole(ctx, superWallet, roles.Admin, adminWallet))

	ok, err := svc.HasRole(ctx, adminWallet, roles.Curator)
	require.NoError(t, err)
	require.True(t, ok, "admin closure includes curator")

	ok, err = svc.HasRole(ctx, adminWallet, roles.SuperAdmin)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.HasRole(ctx, userWallet, roles.Viewer)
	require.NoError(t, err)
	require.False(t, ok, "no grant means no role at all")
}

func TestRevokeRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.GrantRole(ctx, superWallet, roles.Curator, curatorWallet))

	require.NoError(t, svc.RevokeRole(ctx, superWallet, roles.Curator, curatorWallet))
	ok, err := svc.HasRole(ctx, curatorWallet, roles.Curator)
	require.NoError(t, err)
	require.False(t, ok)

	// Revoking again reports not found; revoking without authority is refused.
	require.ErrorIs(t, svc.RevokeRole(ctx, superWallet, roles.Curator, curatorWallet), shared.ErrNotFound)
	require.ErrorIs(t, svc.RevokeRole(ctx, userWallet, roles.SuperAdmin, superWallet), shared.ErrUnauthorized)
}

package manifest

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
)

var manifestWallet = common.HexToAddress("0xdddd000000000000000000000000000000000001")

func newIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	issuer := NewIssuer([]byte("test-manifest-secret"), "verse", time.Hour)
	issuer.WithClock(func() time.Time { return now })
	return issuer
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := newIssuer(t, now)

	token, err := issuer.Issue(manifestWallet, []roles.Role{roles.Admin, roles.Sponsor})
	require.NoError(t, err)

	m, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, manifestWallet, m.Wallet)
	require.Equal(t, []roles.Role{roles.Admin, roles.Sponsor}, m.Roles)
	require.Equal(t, "verse", m.IssuedBy)
	require.Equal(t, now.Add(time.Hour).Unix(), m.Expires.Unix())
}

func TestHasRoleUsesClosure(t *testing.T) {
	issuer := newIssuer(t, time.Unix(1_700_000_000, 0))

	token, err := issuer.Issue(manifestWallet, []roles.Role{roles.Admin})
	require.NoError(t, err)
	m, err := issuer.Verify(token)
	require.NoError(t, err)

	require.True(t, m.HasRole(roles.Admin))
	require.True(t, m.HasRole(roles.Curator))
	require.True(t, m.HasRole(roles.Viewer))
	require.False(t, m.HasRole(roles.SuperAdmin))
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	issuer := newIssuer(t, issued)
	token, err := issuer.Issue(manifestWallet, []roles.Role{roles.Viewer})
	require.NoError(t, err)

	late := NewIssuer([]byte("test-manifest-secret"), "verse", time.Hour)
	late.WithClock(func() time.Time { return issued.Add(2 * time.Hour) })
	_, err = late.Verify(token)
	require.ErrorIs(t, err, ErrExpiredManifest)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := newIssuer(t, time.Unix(1_700_000_000, 0))
	token, err := issuer.Issue(manifestWallet, []roles.Role{roles.Viewer})
	require.NoError(t, err)

	other := NewIssuer([]byte("a-different-secret"), "verse", time.Hour)
	other.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	_, err = other.Verify(token)
	require.ErrorIs(t, err, ErrInvalidManifest)
}

func TestVerifyTamperedPayload(t *testing.T) {
	issuer := newIssuer(t, time.Unix(1_700_000_000, 0))
	token, err := issuer.Issue(manifestWallet, []roles.Role{roles.Viewer})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	_, err = issuer.Verify(tampered)
	require.ErrorIs(t, err, ErrInvalidManifest)
}

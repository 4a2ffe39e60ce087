package roles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHierarchyClosure(t *testing.T) {
	cases := []struct {
		held     Role
		required Role
		want     bool
	}{
		{SuperAdmin, Admin, true},
		{SuperAdmin, Viewer, true},
		{Admin, Curator, true},
		{Admin, Animator, true},
		{Admin, Sponsor, true},
		{Admin, Viewer, true},
		{Admin, SuperAdmin, false},
		{Curator, Viewer, true},
		{Curator, Admin, false},
		{Curator, Animator, false},
		{Animator, Viewer, true},
		{Animator, Curator, false},
		{Sponsor, Viewer, true},
		{Viewer, Viewer, true},
		{Viewer, Admin, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HasRolePermission(tc.held, tc.required),
			"%s -> %s", tc.held, tc.required)
	}
}

func TestClosureIncludesSelf(t *testing.T) {
	for _, r := range All() {
		require.True(t, HasRolePermission(r, r), "%s must include itself", r)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, r := range All() {
		parsed, err := Parse(r.String())
		require.NoError(t, err)
		require.Equal(t, r, parsed)
	}
	_, err := Parse("OVERLORD")
	require.Error(t, err)
}

func TestCanAccessRoute(t *testing.T) {
	require.True(t, CanAccessRoute([]Role{Admin}, "/admin"))
	require.True(t, CanAccessRoute([]Role{SuperAdmin}, "/admin/rbac"))
	require.False(t, CanAccessRoute([]Role{Admin}, "/admin/rbac"))
	require.True(t, CanAccessRoute([]Role{Curator}, "/admin/assets"))
	require.False(t, CanAccessRoute([]Role{Curator}, "/admin"))
	require.True(t, CanAccessRoute([]Role{Animator}, "/animator"))
	require.True(t, CanAccessRoute([]Role{Animator}, "/animator/dashboard"))
	require.False(t, CanAccessRoute([]Role{Sponsor}, "/animator"))
	require.False(t, CanAccessRoute([]Role{Viewer}, "/admin"))
	require.False(t, CanAccessRoute(nil, "/admin"))
}

func TestUnknownPathsArePublic(t *testing.T) {
	require.True(t, CanAccessRoute(nil, "/"))
	require.True(t, CanAccessRoute(nil, "/hub"))
	require.True(t, CanAccessRoute([]Role{Viewer}, "/deck/42"))
	// Prefixes match whole segments only.
	require.True(t, CanAccessRoute(nil, "/administrator"))
	require.True(t, CanAccessRoute(nil, "/sponsorships"))
}

func TestLongestPrefixWins(t *testing.T) {
	required, protected := RouteRequirement("/admin/rbac/assign")
	require.True(t, protected)
	require.Equal(t, []Role{SuperAdmin}, required)

	required, protected = RouteRequirement("/admin/upload")
	require.True(t, protected)
	require.Equal(t, []Role{SuperAdmin, Admin}, required)
}

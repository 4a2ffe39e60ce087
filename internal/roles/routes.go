package roles

import "strings"

// RouteRule maps a path prefix to the roles allowed through it.
type RouteRule struct {
	Prefix   string
	Required []Role
}

// routeRules is the static protection table. Longest matching prefix wins so
// /admin/rbac can be stricter than /admin. Paths with no matching prefix are
// public.
var routeRules = []RouteRule{
	{Prefix: "/admin", Required: []Role{SuperAdmin, Admin}},
	{Prefix: "/admin/rbac", Required: []Role{SuperAdmin}},
	{Prefix: "/admin/assets", Required: []Role{SuperAdmin, Admin, Curator}},
	{Prefix: "/admin/campaigns", Required: []Role{SuperAdmin, Admin, Curator}},
	{Prefix: "/animator", Required: []Role{SuperAdmin, Admin, Animator}},
	{Prefix: "/sponsor", Required: []Role{SuperAdmin, Admin, Sponsor}},
}

// RouteRequirement returns the required-role set for a path, or ok=false for
// public paths.
func RouteRequirement(path string) ([]Role, bool) {
	var best *RouteRule
	for i := range routeRules {
		rule := &routeRules[i]
		if !matchesPrefix(path, rule.Prefix) {
			continue
		}
		if best == nil || len(rule.Prefix) > len(best.Prefix) {
			best = rule
		}
	}
	if best == nil {
		return nil, false
	}
	required := make([]Role, len(best.Required))
	copy(required, best.Required)
	return required, true
}

// CanAccessRoute reports whether the held roles satisfy the route's
// requirement. Pure and side-effect free; unknown paths are public.
func CanAccessRoute(held []Role, path string) bool {
	required, protected := RouteRequirement(path)
	if !protected {
		return true
	}
	return SatisfiesAny(held, required)
}

func matchesPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	// Prefix match on path segments only: /administrator is not /admin.
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

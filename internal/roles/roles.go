// Package roles defines the closed role set and its hierarchy closure. The
// tables here are constants: the on-ledger registry and the off-chain route
// guard both resolve permissions against the same data, which keeps the two
// checks behaviorally identical.
package roles

import "fmt"

// Role is a capability tag. The set is closed; unknown names are rejected at
// parse time rather than treated as an empty role.
type Role uint8

const (
	SuperAdmin Role = iota
	Admin
	Curator
	Animator
	Sponsor
	Viewer
)

var roleNames = map[Role]string{
	SuperAdmin: "SUPER_ADMIN",
	Admin:      "ADMIN",
	Curator:    "CURATOR",
	Animator:   "ANIMATOR",
	Sponsor:    "SPONSOR",
	Viewer:     "VIEWER",
}

var rolesByName = map[string]Role{
	"SUPER_ADMIN": SuperAdmin,
	"ADMIN":       Admin,
	"CURATOR":     Curator,
	"ANIMATOR":    Animator,
	"SPONSOR":     Sponsor,
	"VIEWER":      Viewer,
}

// hierarchy lists, for each role, the closure of roles it may act as. A
// strict hierarchy, not a lattice: each entry is a fixed superset that always
// includes the role itself.
var hierarchy = map[Role][]Role{
	SuperAdmin: {SuperAdmin, Admin, Curator, Animator, Sponsor, Viewer},
	Admin:      {Admin, Curator, Animator, Sponsor, Viewer},
	Curator:    {Curator, Viewer},
	Animator:   {Animator, Viewer},
	Sponsor:    {Sponsor, Viewer},
	Viewer:     {Viewer},
}

// String returns the canonical role name.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("ROLE(%d)", uint8(r))
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	name, ok := roleNames[r]
	if !ok {
		return nil, fmt.Errorf("roles: unknown role %d", uint8(r))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Parse resolves a canonical role name.
func Parse(name string) (Role, error) {
	role, ok := rolesByName[name]
	if !ok {
		return 0, fmt.Errorf("roles: unknown role %q", name)
	}
	return role, nil
}

// All returns every defined role in hierarchy order.
func All() []Role {
	return []Role{SuperAdmin, Admin, Curator, Animator, Sponsor, Viewer}
}

// Closure returns the fixed set of roles held may act as.
func Closure(held Role) []Role {
	closure := hierarchy[held]
	out := make([]Role, len(closure))
	copy(out, closure)
	return out
}

// HasRolePermission reports whether held's hierarchy closure includes
// required.
func HasRolePermission(held, required Role) bool {
	for _, r := range hierarchy[held] {
		if r == required {
			return true
		}
	}
	return false
}

// SatisfiesAny reports whether any held role's closure intersects the
// required set.
func SatisfiesAny(held []Role, required []Role) bool {
	for _, h := range held {
		for _, req := range required {
			if HasRolePermission(h, req) {
				return true
			}
		}
	}
	return false
}

// Package manifest issues and verifies signed role manifests. A manifest is
// a short-lived JWT binding a wallet to the roles it held at issue time;
// route guards verify the token instead of hitting the registry on every
// request.
package manifest

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
)

// ErrInvalidManifest indicates a manifest that failed signature or claims
// verification.
var ErrInvalidManifest = errors.New("manifest: invalid token")

// ErrExpiredManifest indicates a manifest past its expiry.
var ErrExpiredManifest = errors.New("manifest: expired token")

// Manifest is the verified content of a role-manifest token.
type Manifest struct {
	Wallet   common.Address
	Roles    []roles.Role
	IssuedBy string
	IssuedAt time.Time
	Expires  time.Time
}

// HasRole reports whether any held role's closure covers required.
func (m *Manifest) HasRole(required roles.Role) bool {
	for _, held := range m.Roles {
		if roles.HasRolePermission(held, required) {
			return true
		}
	}
	return false
}

type claims struct {
	Wallet   string   `json:"wallet"`
	Roles    []string `json:"roles"`
	IssuedBy string   `json:"issued_by"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies role manifests with an HMAC secret.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	clock  func() time.Time
}

// NewIssuer constructs an Issuer. name identifies the issuing service in
// the issued_by claim.
func NewIssuer(secret []byte, name string, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, name: name, ttl: ttl, clock: time.Now}
}

// WithClock overrides the time source. Test hook.
func (i *Issuer) WithClock(clock func() time.Time) *Issuer {
	i.clock = clock
	return i
}

// TTL returns the manifest lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a manifest for the wallet's current roles.
func (i *Issuer) Issue(wallet common.Address, held []roles.Role) (string, error) {
	now := i.clock()
	names := make([]string, len(held))
	for idx, r := range held {
		names[idx] = r.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Wallet:   wallet.Hex(),
		Roles:    names,
		IssuedBy: i.name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("manifest: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a manifest token. Unknown role names fail
// verification rather than being dropped.
func (i *Issuer) Verify(raw string) (*Manifest, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.clock))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredManifest
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if !token.Valid {
		return nil, ErrInvalidManifest
	}

	held := make([]roles.Role, 0, len(c.Roles))
	for _, name := range c.Roles {
		role, err := roles.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		held = append(held, role)
	}
	m := &Manifest{
		Wallet:   common.HexToAddress(c.Wallet),
		Roles:    held,
		IssuedBy: c.IssuedBy,
	}
	if c.IssuedAt != nil {
		m.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		m.Expires = c.ExpiresAt.Time
	}
	return m, nil
}

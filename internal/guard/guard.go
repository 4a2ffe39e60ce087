// Package guard enforces route access from signed role manifests. Requests
// to protected prefixes must carry a session with a verifiable manifest
// whose roles satisfy the route's requirement; everything else passes
// through untouched.
package guard

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/prooftv/themightyverse-sub000/internal/manifest"
	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

const (
	// ConnectPath receives redirects for unauthenticated requests.
	ConnectPath = "/auth/connect"
	// UnauthorizedPath receives redirects for authenticated requests whose
	// roles do not satisfy the route.
	UnauthorizedPath = "/auth/unauthorized"
)

// Guard is the route-guard middleware.
type Guard struct {
	issuer *manifest.Issuer
	logger *slog.Logger
}

// New constructs a Guard.
func New(issuer *manifest.Issuer, logger *slog.Logger) *Guard {
	return &Guard{issuer: issuer, logger: logger}
}

// Middleware decodes the session manifest into a request principal and
// checks the path against the route table. Public paths pass through,
// with the principal attached when a valid manifest is present. Protected
// paths require one: a missing or expired manifest redirects to the
// connect page with the original path preserved, insufficient roles
// redirect to the unauthorized page.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required, protected := roles.RouteRequirement(r.URL.Path)

		var m *manifest.Manifest
		if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.Manifest() != "" {
			verified, err := g.issuer.Verify(sess.Manifest())
			if err != nil {
				if g.logger != nil && !errors.Is(err, manifest.ErrExpiredManifest) {
					g.logger.Warn("manifest rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				}
			} else {
				m = verified
			}
		}

		if m != nil {
			ctx := shared.ContextWithPrincipal(r.Context(), &shared.Principal{
				Wallet: m.Wallet,
				Roles:  m.Roles,
			})
			r = r.WithContext(ctx)
		}

		if !protected {
			next.ServeHTTP(w, r)
			return
		}
		if m == nil {
			redirectToConnect(w, r)
			return
		}
		if !roles.SatisfiesAny(m.Roles, required) {
			http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func redirectToConnect(w http.ResponseWriter, r *http.Request) {
	target := ConnectPath + "?redirect=" + url.QueryEscape(r.URL.Path)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/prooftv/themightyverse-sub000/internal/assets"
	"github.com/prooftv/themightyverse-sub000/internal/auth"
	"github.com/prooftv/themightyverse-sub000/internal/credits"
	"github.com/prooftv/themightyverse-sub000/internal/guard"
	"github.com/prooftv/themightyverse-sub000/internal/observability"
	"github.com/prooftv/themightyverse-sub000/internal/pin"
	"github.com/prooftv/themightyverse-sub000/internal/registry"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
	"github.com/prooftv/themightyverse-sub000/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	Guard           *guard.Guard
	AuthHandler     *auth.Handler
	RegistryHandler *registry.Handler
	CreditsHandler  *credits.Handler
	AssetsHandler   *assets.Handler
	PinHandler      *pin.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with verse defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Guard:          params.Guard,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/api/rbac", params.RegistryHandler.MountRoutes)
	r.Route("/api/credits", params.CreditsHandler.MountRoutes)
	r.Route("/api/assets", params.AssetsHandler.MountRoutes)
	if params.PinHandler != nil {
		r.Route("/api/pin", params.PinHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

package pin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/prooftv/themightyverse-sub000/internal/credits"
	"github.com/prooftv/themightyverse-sub000/internal/platform/httpx"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// Charger debits the credit cost of an operation from an account.
type Charger interface {
	DeductForOperation(ctx context.Context, actor, account common.Address, operation string) error
}

// Handler exposes the pin store over HTTP. Pinning charges the caller's
// credit account before content is stored.
type Handler struct {
	logger  *slog.Logger
	store   Store
	charger Charger
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store Store, charger Charger) *Handler {
	return &Handler{logger: logger, store: store, charger: charger}
}

// MountRoutes attaches pin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/metadata", h.pinMetadata)
	r.Get("/metadata/{cid}", h.fetchMetadata)
	r.Get("/{cid}", h.fetchContent)
}

func (h *Handler) pinMetadata(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var doc AssetMetadata
	if err := httpx.DecodeJSON(r, &doc); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := doc.Validate(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.charger.DeductForOperation(r.Context(), principal.Wallet, principal.Wallet, credits.OpPinContent); err != nil {
		httpx.RespondError(w, err)
		return
	}
	uri, err := PinMetadata(r.Context(), h.store, doc)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("pin metadata", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"uri": uri, "cid": CIDFromURI(uri)})
}

func (h *Handler) fetchMetadata(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	doc, err := FetchMetadata(r.Context(), h.store, URI(cid))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) fetchContent(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	content, err := h.store.Fetch(r.Context(), cid)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

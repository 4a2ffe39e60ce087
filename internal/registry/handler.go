package registry

import (
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prooftv/themightyverse-sub000/internal/platform/httpx"
	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// Handler exposes the role registry over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/grants", h.listGrants)
	r.Get("/roles/{account}", h.rolesOf)
	r.Post("/grant", h.grant)
	r.Post("/revoke", h.revoke)
}

type grantRequest struct {
	Role    string `json:"role" validate:"required"`
	Account string `json:"account" validate:"required,len=42,startswith=0x"`
}

type grantView struct {
	Account   string `json:"account"`
	Role      string `json:"role"`
	GrantedBy string `json:"granted_by"`
	GrantedAt string `json:"granted_at"`
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.repo.ListGrants(r.Context())
	if err != nil {
		h.logger.Error("list grants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]grantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, grantView{
			Account:   g.Account.Hex(),
			Role:      g.Role.String(),
			GrantedBy: g.GrantedBy.Hex(),
			GrantedAt: g.GrantedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": views})
}

func (h *Handler) rolesOf(w http.ResponseWriter, r *http.Request) {
	account := common.HexToAddress(chi.URLParam(r, "account"))
	held, err := h.service.RolesOf(r.Context(), account)
	if err != nil {
		h.logger.Error("roles of", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	names := make([]string, 0, len(held))
	for _, role := range held {
		names = append(names, role.String())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account": account.Hex(), "roles": names})
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantRole(r.Context(), actor, role, common.HexToAddress(req.Account)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"granted": true})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.RevokeRole(r.Context(), actor, role, common.HexToAddress(req.Account)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"revoked": true})
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return common.Address{}, false
	}
	return principal.Wallet, true
}

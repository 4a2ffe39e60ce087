package auth

import (
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prooftv/themightyverse-sub000/internal/platform/httpx"
	"github.com/prooftv/themightyverse-sub000/internal/roles"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// Handler exposes the sign-in flow over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions, validate: validator.New()}
}

// MountRoutes attaches auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/challenge", h.challenge)
	r.Post("/login", h.login)
	r.Post("/dev-login", h.devLogin)
	r.Post("/logout", h.logout)
	r.Get("/session", h.session)
	r.Get("/connect", h.connect)
	r.Get("/unauthorized", h.unauthorized)
}

type challengeBody struct {
	Wallet string `json:"wallet" validate:"required,len=42,startswith=0x"`
}

type loginBody struct {
	Wallet    string `json:"wallet" validate:"required,len=42,startswith=0x"`
	Signature string `json:"signature" validate:"required"`
}

type devLoginBody struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) challenge(w http.ResponseWriter, r *http.Request) {
	var body challengeBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	challenge, err := h.service.NewChallenge(r.Context(), common.HexToAddress(body.Wallet))
	if err != nil {
		h.logger.Error("issue challenge", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"wallet":  challenge.Wallet.Hex(),
		"message": string(challenge.Message()),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(body.Signature, "0x"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	wallet := common.HexToAddress(body.Wallet)
	token, held, err := h.service.Login(r.Context(), wallet, signature)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.establishSession(w, r, wallet, token)
	httpx.JSON(w, http.StatusOK, map[string]any{"wallet": wallet.Hex(), "roles": roleNames(held)})
}

func (h *Handler) devLogin(w http.ResponseWriter, r *http.Request) {
	var body devLoginBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	wallet, token, held, err := h.service.DevLogin(r.Context(), body.Email)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.establishSession(w, r, wallet, token)
	httpx.JSON(w, http.StatusOK, map[string]any{"wallet": wallet.Hex(), "roles": roleNames(held)})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessions.Destroy(sess)
		if err := h.sessions.Commit(r.Context(), w, r, sess); err != nil {
			h.logger.Error("destroy session", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"loggedOut": true})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"wallet":        principal.Wallet.Hex(),
		"roles":         roleNames(principal.Roles),
	})
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"action":   "connect_wallet",
		"redirect": r.URL.Query().Get("redirect"),
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "your roles do not grant access to the requested area")
}

func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, wallet common.Address, token string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return
	}
	sess.SetWallet(wallet.Hex())
	sess.SetManifest(token)
	if err := h.sessions.Commit(r.Context(), w, r, sess); err != nil {
		h.logger.Error("commit session", slog.Any("error", err))
	}
}

func roleNames(held []roles.Role) []string {
	names := make([]string, len(held))
	for i, role := range held {
		names[i] = role.String()
	}
	return names
}

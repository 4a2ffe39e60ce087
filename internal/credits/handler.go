package credits

import (
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prooftv/themightyverse-sub000/internal/observability"
	"github.com/prooftv/themightyverse-sub000/internal/platform/httpx"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// Handler exposes the credit ledger over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes attaches credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance/{account}", h.balance)
	r.Get("/nonce/{account}", h.nonce)
	r.Get("/cost/{operation}", h.cost)
	r.Get("/affordable/{account}/{operation}", h.affordable)
	r.Post("/mint", h.mint)
	r.Post("/deduct", h.deduct)
}

type mintBody struct {
	To        string `json:"to" validate:"required,len=42,startswith=0x"`
	Amount    uint64 `json:"amount" validate:"required,gt=0"`
	Nonce     uint64 `json:"nonce"`
	Deadline  uint64 `json:"deadline" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type deductBody struct {
	Account   string `json:"account" validate:"required,len=42,startswith=0x"`
	Operation string `json:"operation" validate:"required"`
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	account := common.HexToAddress(chi.URLParam(r, "account"))
	balance, err := h.service.BalanceOf(r.Context(), account)
	if err != nil {
		h.logger.Error("credit balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account": account.Hex(), "balance": balance})
}

func (h *Handler) nonce(w http.ResponseWriter, r *http.Request) {
	account := common.HexToAddress(chi.URLParam(r, "account"))
	nonce, err := h.service.Nonce(r.Context(), account)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account": account.Hex(), "nonce": nonce})
}

func (h *Handler) cost(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")
	cost, err := h.service.OperationCost(operation)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"operation": operation, "cost": cost})
}

func (h *Handler) affordable(w http.ResponseWriter, r *http.Request) {
	account := common.HexToAddress(chi.URLParam(r, "account"))
	operation := chi.URLParam(r, "operation")
	ok, err := h.service.CanAffordOperation(r.Context(), account, operation)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account": account.Hex(), "operation": operation, "affordable": ok})
}

func (h *Handler) mint(w http.ResponseWriter, r *http.Request) {
	var body mintBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	signature, err := decodeSignature(body.Signature)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	req := MintRequest{
		To:       common.HexToAddress(body.To),
		Amount:   body.Amount,
		Nonce:    body.Nonce,
		Deadline: body.Deadline,
	}
	if err := h.service.MintWithSignature(r.Context(), req, signature); err != nil {
		h.metrics.ObserveMint("credits", "rejected")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveMint("credits", "ok")
	httpx.JSON(w, http.StatusOK, map[string]any{"minted": body.Amount, "to": req.To.Hex()})
}

func (h *Handler) deduct(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var body deductBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.DeductForOperation(r.Context(), principal.Wallet, common.HexToAddress(body.Account), body.Operation); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if cost, err := h.service.OperationCost(body.Operation); err == nil {
		h.metrics.ObserveDeduction(cost)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deducted": true})
}

func decodeSignature(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

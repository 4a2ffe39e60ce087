package assets

import (
	"encoding/hex"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prooftv/themightyverse-sub000/internal/observability"
	"github.com/prooftv/themightyverse-sub000/internal/platform/httpx"
	"github.com/prooftv/themightyverse-sub000/internal/shared"
)

// Handler exposes the asset ledger over HTTP.
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

// MountRoutes attaches asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/nonce/{account}", h.nonce)
	r.Get("/balance/{account}/{tokenID}", h.balance)
	r.Get("/supply", h.supply)
	r.Get("/token/{tokenID}", h.token)
	r.Get("/token/{tokenID}/uri", h.uri)
	r.Get("/token/{tokenID}/royalty", h.royaltyInfo)
	r.Post("/mint", h.mint)
	r.Post("/batch", h.batchMint)
	r.Post("/token/{tokenID}/royalty", h.setRoyalty)
	r.Post("/token/{tokenID}/uri", h.updateURI)
	r.Post("/token/{tokenID}/active", h.setActive)
}

type mintBody struct {
	To          string `json:"to" validate:"required,len=42,startswith=0x"`
	TokenID     uint64 `json:"tokenId"`
	Amount      uint64 `json:"amount" validate:"required,gt=0"`
	MetadataURI string `json:"metadataUri" validate:"required"`
	Nonce       uint64 `json:"nonce"`
	Deadline    uint64 `json:"deadline" validate:"required"`
	Signature   string `json:"signature" validate:"required"`
}

type batchMintBody struct {
	Recipients   []string `json:"recipients" validate:"required,min=1,dive,len=42,startswith=0x"`
	Amounts      []uint64 `json:"amounts" validate:"required"`
	MetadataURIs []string `json:"metadataUris" validate:"required"`
}

type royaltyBody struct {
	Recipient string `json:"recipient" validate:"required,len=42,startswith=0x"`
	Fraction  uint32 `json:"fraction" validate:"lte=10000"`
}

type uriBody struct {
	URI string `json:"uri" validate:"required"`
}

type activeBody struct {
	Active bool `json:"active"`
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

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	account := common.HexToAddress(chi.URLParam(r, "account"))
	tokenID, err := tokenIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token ID", err.Error())
		return
	}
	balance, err := h.service.BalanceOf(r.Context(), account, tokenID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account": account.Hex(), "tokenId": tokenID, "balance": balance})
}

func (h *Handler) supply(w http.ResponseWriter, r *http.Request) {
	supply, err := h.service.TotalSupply(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"totalSupply": supply})
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token ID", err.Error())
		return
	}
	asset, err := h.service.AssetMetadata(r.Context(), tokenID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tokenId":     asset.TokenID,
		"uri":         asset.URI,
		"metadataCid": asset.MetadataCID,
		"creator":     asset.Creator.Hex(),
		"createdAt":   asset.CreatedAt,
		"isActive":    asset.IsActive,
	})
}

func (h *Handler) uri(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token ID", err.Error())
		return
	}
	uri, err := h.service.URI(r.Context(), tokenID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tokenId": tokenID, "uri": uri})
}

func (h *Handler) royaltyInfo(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token ID", err.Error())
		return
	}
	salePrice, ok := new(big.Int).SetString(r.URL.Query().Get("salePrice"), 10)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Sale Price", "salePrice must be a base-10 integer")
		return
	}
	recipient, amount, err := h.service.RoyaltyInfo(r.Context(), tokenID, salePrice)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"tokenId":   tokenID,
		"recipient": recipient.Hex(),
		"amount":    amount.String(),
	})
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
		To:          common.HexToAddress(body.To),
		TokenID:     body.TokenID,
		Amount:      body.Amount,
		MetadataURI: body.MetadataURI,
		Nonce:       body.Nonce,
		Deadline:    body.Deadline,
	}
	if err := h.service.MintWithSignature(r.Context(), req, signature); err != nil {
		h.metrics.ObserveMint("assets", "rejected")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveMint("assets", "ok")
	httpx.JSON(w, http.StatusOK, map[string]any{"tokenId": req.TokenID, "to": req.To.Hex(), "amount": req.Amount})
}

func (h *Handler) batchMint(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var body batchMintBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	recipients := make([]common.Address, len(body.Recipients))
	for i, raw := range body.Recipients {
		recipients[i] = common.HexToAddress(raw)
	}
	tokenIDs, err := h.service.BatchMint(r.Context(), principal.Wallet, recipients, body.Amounts, body.MetadataURIs)
	if err != nil {
		h.logger.Error("batch mint", slog.Any("error", err))
		h.metrics.ObserveMint("assets", "rejected")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveMint("assets", "ok")
	httpx.JSON(w, http.StatusOK, map[string]any{"tokenIds": tokenIDs})
}

func (h *Handler) setRoyalty(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	tokenID, err := tokenIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token ID", err.Error())
		return
	}
	var body royaltyBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetTokenRoyalty(r.Context(), principal.Wallet, tokenID, common.HexToAddress(body.Recipient), body.Fraction); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tokenId": tokenID, "fraction": body.Fraction})
}

func (h *Handler) updateURI(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	tokenID, err := tokenIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token ID", err.Error())
		return
	}
	var body uriBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateTokenURI(r.Context(), principal.Wallet, tokenID, body.URI); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tokenId": tokenID, "uri": body.URI})
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	tokenID, err := tokenIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token ID", err.Error())
		return
	}
	var body activeBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.service.SetAssetActive(r.Context(), principal.Wallet, tokenID, body.Active); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tokenId": tokenID, "active": body.Active})
}

func tokenIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "tokenID"), 10, 64)
}

func decodeSignature(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

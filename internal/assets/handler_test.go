package assets

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/prooftv/themightyverse-sub000/internal/observability"
)

func assetRouter(svc *Service) chi.Router {
	h := NewHandler(nil, svc, observability.NewMetrics())
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

// Token zero is a legal ERC-1155 ID; the mint body must not treat it as a
// missing field.
func TestMintHandlerAcceptsTokenZero(t *testing.T) {
	svc, repo, admin := newAssetFixture(t)
	router := assetRouter(svc)

	req := MintRequest{
		To:          collector,
		TokenID:     0,
		Amount:      2,
		MetadataURI: "ipfs://QmZero",
		Nonce:       0,
		Deadline:    1_700_003_600,
	}
	sig := signedAssetMint(t, admin, req)

	body, err := json.Marshal(map[string]any{
		"to":          collector.Hex(),
		"tokenId":     req.TokenID,
		"amount":      req.Amount,
		"metadataUri": req.MetadataURI,
		"nonce":       req.Nonce,
		"deadline":    req.Deadline,
		"signature":   "0x" + hex.EncodeToString(sig),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mint", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	balance, ok := repo.balances[balanceKey{collector, 0}]
	require.True(t, ok)
	require.Equal(t, uint64(2), balance)
}

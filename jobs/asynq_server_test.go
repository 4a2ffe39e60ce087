package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Token zero is a legal ERC-1155 ID; enqueue validation must not treat it
// as a missing field.
func TestEnqueueMintBodyAcceptsTokenZero(t *testing.T) {
	body := enqueueMintBody{
		To:          "0xaaaa000000000000000000000000000000000009",
		TokenID:     0,
		Amount:      1,
		MetadataURI: "ipfs://QmZero",
	}
	require.NoError(t, validate.Struct(body))

	body.To = ""
	require.Error(t, validate.Struct(body))
}

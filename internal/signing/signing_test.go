package signing

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

var testDomain = Domain{
	Name:              "TestAssets",
	Version:           "1",
	ChainID:           137,
	VerifyingContract: common.HexToAddress("0x1000000000000000000000000000000000000001"),
}

var testFields = Fields{
	{Name: "to", Type: "address"},
	{Name: "amount", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "deadline", Type: "uint256"},
}

func testMessage(to common.Address, amount, nonce, deadline uint64) Message {
	return Message{
		"to":       to.Hex(),
		"amount":   U256(amount),
		"nonce":    U256(nonce),
		"deadline": U256(deadline),
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewSigner(key)

	msg := testMessage(common.HexToAddress("0x2000000000000000000000000000000000000002"), 100, 0, 1_900_000_000)
	sig, err := signer.SignTypedData(testDomain, "CreditMintRequest", testFields, msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.GreaterOrEqual(t, sig[64], byte(27))

	recovered, err := Recover(testDomain, "CreditMintRequest", testFields, msg, sig)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), recovered)
}

func TestRecoverAcceptsRawRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewSigner(key)

	msg := testMessage(common.HexToAddress("0x2000000000000000000000000000000000000002"), 1, 0, 1_900_000_000)
	sig, err := signer.SignTypedData(testDomain, "CreditMintRequest", testFields, msg)
	require.NoError(t, err)

	raw := make([]byte, len(sig))
	copy(raw, sig)
	raw[64] -= 27

	recovered, err := Recover(testDomain, "CreditMintRequest", testFields, msg, raw)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), recovered)
	// Input not mutated.
	require.Less(t, raw[64], byte(2))
}

func TestRecoverTamperedMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewSigner(key)

	to := common.HexToAddress("0x2000000000000000000000000000000000000002")
	sig, err := signer.SignTypedData(testDomain, "CreditMintRequest", testFields, testMessage(to, 100, 0, 1_900_000_000))
	require.NoError(t, err)

	// A different amount recovers to a different, unpredictable address.
	recovered, err := Recover(testDomain, "CreditMintRequest", testFields, testMessage(to, 101, 0, 1_900_000_000), sig)
	if err == nil {
		require.NotEqual(t, signer.Address(), recovered)
	}
}

func TestRecoverDomainBinding(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewSigner(key)

	msg := testMessage(common.HexToAddress("0x2000000000000000000000000000000000000002"), 100, 0, 1_900_000_000)
	sig, err := signer.SignTypedData(testDomain, "CreditMintRequest", testFields, msg)
	require.NoError(t, err)

	otherChain := testDomain
	otherChain.ChainID = 1
	recovered, err := Recover(otherChain, "CreditMintRequest", testFields, msg, sig)
	if err == nil {
		require.NotEqual(t, signer.Address(), recovered)
	}
}

func TestRecoverMalformedSignature(t *testing.T) {
	msg := testMessage(common.HexToAddress("0x2000000000000000000000000000000000000002"), 100, 0, 1_900_000_000)

	_, err := Recover(testDomain, "CreditMintRequest", testFields, msg, []byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrInvalidSignature)

	bad := make([]byte, 65)
	bad[64] = 99
	_, err = Recover(testDomain, "CreditMintRequest", testFields, msg, bad)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPersonalSignRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewSigner(key)

	challenge := []byte("mightyverse-login:abc123")
	sig, err := signer.SignPersonal(challenge)
	require.NoError(t, err)

	recovered, err := RecoverPersonal(challenge, sig)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), recovered)

	_, err = RecoverPersonal(challenge, sig[:10])
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDigestStable(t *testing.T) {
	msg := testMessage(common.HexToAddress("0x2000000000000000000000000000000000000002"), 100, 0, 1_900_000_000)
	d1, err := Digest(testDomain, "CreditMintRequest", testFields, msg)
	require.NoError(t, err)
	d2, err := Digest(testDomain, "CreditMintRequest", testFields, msg)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
	require.Len(t, d1, 32)
}

func TestFieldsAreApitypesCompatible(t *testing.T) {
	// The field lists used across the ledgers must be valid apitypes types.
	var f apitypes.Type = testFields[0]
	require.Equal(t, "to", f.Name)
}

// Package signing implements the typed-data signature scheme shared by the
// asset and credit ledgers. Requests are hashed with the EIP-712 encoding
// (domain separator + struct hash) and signed with secp256k1 keys, so
// signatures produced by standard wallet tooling (_signTypedData) verify
// here unchanged.
package signing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ErrInvalidSignature indicates a malformed or unverifiable signature.
var ErrInvalidSignature = errors.New("signing: invalid signature")

// Domain binds signatures to one deployment: same request signed for another
// chain or another verifying ledger recovers to a different digest.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract common.Address
}

// Message is the typed-data message payload keyed by field name.
type Message = apitypes.TypedDataMessage

// Fields describes the ordered field list of a primary type.
type Fields = []apitypes.Type

// U256 wraps an integer for use as a uint256 message value.
func U256(v uint64) *math.HexOrDecimal256 {
	return (*math.HexOrDecimal256)(new(big.Int).SetUint64(v))
}

func typedData(domain Domain, primaryType string, fields Fields, message Message) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			primaryType: fields,
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           math.NewHexOrDecimal256(int64(domain.ChainID)),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: message,
	}
}

// Digest computes the signable typed-data hash for the given domain and
// message.
func Digest(domain Domain, primaryType string, fields Fields, message Message) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(typedData(domain, primaryType, fields, message))
	if err != nil {
		return nil, fmt.Errorf("signing: hash typed data: %w", err)
	}
	return hash, nil
}

// Recover returns the address that signed the typed-data message. Pure: no
// state is read or written, and the input signature is not mutated. Accepts
// both the raw {0,1} and the Ethereum {27,28} recovery id conventions.
func Recover(domain Domain, primaryType string, fields Fields, message Message, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	digest, err := Digest(domain, primaryType, fields, message)
	if err != nil {
		return common.Address{}, err
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, signature[64])
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

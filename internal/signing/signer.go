package signing

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces typed-data signatures with a held secp256k1 key. Used by
// the mint-approval worker and by tests; clients normally sign in their own
// wallets.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner wraps an existing private key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewSignerFromHex parses a hex-encoded private key.
func NewSignerFromHex(hexkey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(hexkey)
	if err != nil {
		return nil, fmt.Errorf("signing: parse key: %w", err)
	}
	return NewSigner(key), nil
}

// Address returns the signer's account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTypedData signs the typed-data digest and returns a 65-byte
// [R || S || V] signature with V in {27,28}, matching wallet output.
func (s *Signer) SignTypedData(domain Domain, primaryType string, fields Fields, message Message) ([]byte, error) {
	digest, err := Digest(domain, primaryType, fields, message)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("signing: sign: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignPersonal signs a message with the personal-message prefix scheme used
// by wallet sign-in.
func (s *Signer) SignPersonal(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(PersonalDigest(message), s.key)
	if err != nil {
		return nil, fmt.Errorf("signing: sign personal: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// PersonalDigest hashes a message with the "\x19Ethereum Signed Message"
// prefix.
func PersonalDigest(message []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

// RecoverPersonal returns the address that produced a personal-message
// signature.
func RecoverPersonal(message, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, signature[64])
	}
	pub, err := crypto.SigToPub(PersonalDigest(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

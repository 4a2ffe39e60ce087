package credits

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/prooftv/themightyverse-sub000/internal/signing"
)

// MintRequest is a signed instruction to credit an account. The nonce is the
// account's current credit-ledger nonce; the request is consumed exactly
// once and is invalid after Deadline.
type MintRequest struct {
	To       common.Address
	Amount   uint64
	Nonce    uint64
	Deadline uint64
}

// TypeName is the typed-data primary type for credit mints.
const TypeName = "CreditMintRequest"

// TypeFields is the typed-data field list for credit mints.
var TypeFields = signing.Fields{
	{Name: "to", Type: "address"},
	{Name: "amount", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "deadline", Type: "uint256"},
}

// Message encodes the request as a typed-data message.
func (r MintRequest) Message() signing.Message {
	return signing.Message{
		"to":       r.To.Hex(),
		"amount":   signing.U256(r.Amount),
		"nonce":    signing.U256(r.Nonce),
		"deadline": signing.U256(r.Deadline),
	}
}

// Mint is an applied, authorized credit mint.
type Mint struct {
	To            common.Address
	Amount        uint64
	ExpectedNonce uint64
	Authorizer    common.Address
}

// Deduction is an applied operation debit.
type Deduction struct {
	Account   common.Address
	Operation string
	Cost      uint64
	Operator  common.Address
}

// Event is one row of the credit ledger's event log.
type Event struct {
	ID        int64
	Kind      string // "CreditsMinted" or "CreditsDeducted"
	Account   common.Address
	Amount    uint64
	Operation string
	CreatedAt time.Time
}

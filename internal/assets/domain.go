package assets

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/prooftv/themightyverse-sub000/internal/signing"
)

// MintRequest is a signed instruction to mint Amount of TokenID to To. The
// field list matches the wallet-side MintRequest type, so signatures
// produced by _signTypedData against the same domain verify here.
type MintRequest struct {
	To          common.Address
	TokenID     uint64
	Amount      uint64
	MetadataURI string
	Nonce       uint64
	Deadline    uint64
}

// TypeName is the typed-data primary type for asset mints.
const TypeName = "MintRequest"

// TypeFields is the typed-data field list for asset mints.
var TypeFields = signing.Fields{
	{Name: "to", Type: "address"},
	{Name: "tokenId", Type: "uint256"},
	{Name: "amount", Type: "uint256"},
	{Name: "metadataURI", Type: "string"},
	{Name: "nonce", Type: "uint256"},
	{Name: "deadline", Type: "uint256"},
}

// Message encodes the request as a typed-data message.
func (r MintRequest) Message() signing.Message {
	return signing.Message{
		"to":          r.To.Hex(),
		"tokenId":     signing.U256(r.TokenID),
		"amount":      signing.U256(r.Amount),
		"metadataURI": r.MetadataURI,
		"nonce":       signing.U256(r.Nonce),
		"deadline":    signing.U256(r.Deadline),
	}
}

// Mint is an applied, authorized single mint.
type Mint struct {
	To            common.Address
	TokenID       uint64
	Amount        uint64
	MetadataURI   string
	ExpectedNonce uint64
	Authorizer    common.Address
}

// BatchMint mints one new sequential token per recipient.
type BatchMint struct {
	Recipients   []common.Address
	Amounts      []uint64
	MetadataURIs []string
	Minter       common.Address
}

// Asset is the per-token metadata record, established once on first mint.
type Asset struct {
	TokenID     uint64
	URI         string
	ContentCID  string
	MetadataCID string
	Creator     common.Address
	CreatedAt   time.Time
	IsActive    bool
}

// RoyaltyDenominator is the basis-point denominator for royalty fractions.
const RoyaltyDenominator = 10000

// Royalty is the per-token royalty record; Fraction is basis points out of
// RoyaltyDenominator.
type Royalty struct {
	Recipient common.Address
	Fraction  uint32
}

// Event is one row of the asset ledger's event log.
type Event struct {
	ID          int64
	TokenID     uint64
	To          common.Address
	Amount      uint64
	MetadataURI string
	CreatedAt   time.Time
}

// MetadataCIDFromURI extracts the content identifier from an ipfs:// URI;
// other schemes are stored as-is.
func MetadataCIDFromURI(uri string) string {
	return strings.TrimPrefix(uri, "ipfs://")
}

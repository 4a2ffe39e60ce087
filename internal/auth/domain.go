package auth

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Challenge is a one-shot login nonce bound to a wallet. The client signs
// the challenge message with personal_sign; the signature plus a matching
// stored challenge completes the login.
type Challenge struct {
	Wallet   common.Address
	Nonce    string
	IssuedAt time.Time
}

// Message renders the text the wallet is asked to sign.
func (c Challenge) Message() []byte {
	return []byte(fmt.Sprintf(
		"Sign in to The Mighty Verse\n\nWallet: %s\nNonce: %s\nIssued At: %s",
		c.Wallet.Hex(), c.Nonce, c.IssuedAt.UTC().Format(time.RFC3339),
	))
}

// Login is a completed sign-in, recorded for audit.
type Login struct {
	Wallet   common.Address
	Method   string
	LoggedAt time.Time
}

// Login methods.
const (
	MethodWallet = "wallet"
	MethodDev    = "dev"
)

package registry

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/prooftv/themightyverse-sub000/internal/roles"
)

// Grant records one role held by an account. Grants are the authoritative
// role source; the off-chain manifest is derived from them at sign-in and
// never the other way around.
type Grant struct {
	Account   common.Address
	Role      roles.Role
	GrantedBy common.Address
	GrantedAt time.Time
}

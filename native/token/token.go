package token

import (
	"errors"
	"math/big"
)

// Standard identifies the transfer discipline of an asset contract. Single-unit
// contracts move whole tokens (ERC-721); multi-unit contracts move balances and
// the marketplace always moves exactly quantity one (ERC-1155).
type Standard uint8

const (
	StandardERC721 Standard = iota
	StandardERC1155
)

// Valid reports whether the standard value is supported.
func (s Standard) Valid() bool {
	switch s {
	case StandardERC721, StandardERC1155:
		return true
	default:
		return false
	}
}

// String returns the canonical standard label.
func (s Standard) String() string {
	if s == StandardERC1155 {
		return "erc1155"
	}
	return "erc721"
}

var (
	ErrUnknownToken     = errors.New("token: unknown token")
	ErrNotOwner         = errors.New("token: caller is not owner nor approved")
	ErrInsufficient     = errors.New("token: insufficient balance")
	ErrInsufficientAllw = errors.New("token: insufficient allowance")
)

// ERC721 is the single-unit asset surface the vault drives.
type ERC721 interface {
	OwnerOf(tokenID *big.Int) ([20]byte, error)
	// SafeTransferFrom moves the token. The operator must be the current
	// owner or an approved operator for the owner.
	SafeTransferFrom(operator, from, to [20]byte, tokenID *big.Int) error
	SupportsStandard(std Standard) bool
}

// ERC1155 is the multi-unit asset surface. The marketplace only ever moves a
// quantity of one per custody record.
type ERC1155 interface {
	BalanceOf(owner [20]byte, tokenID *big.Int) (*big.Int, error)
	SafeTransferFrom(operator, from, to [20]byte, tokenID, quantity *big.Int) error
	SupportsStandard(std Standard) bool
}

// ERC20 is the stablecoin surface.
type ERC20 interface {
	BalanceOf(owner [20]byte) (*big.Int, error)
	Allowance(owner, spender [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
}

// NativeLedger tracks native-coin balances. The "attached value" of a call is
// modeled as an explicit transfer into the vault performed by the vault itself.
type NativeLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// Unbundler is the composable-wrapper collaborator: a single entry point that
// returns custody of the wrapped contents and burns the wrapper token.
type Unbundler interface {
	BurnAndUnbundle(tokenID *big.Int, recipient [20]byte) error
}

// Registry resolves deployed contract addresses to their token instances and
// answers the non-zero-code-size probe used by whitelist management.
type Registry interface {
	ERC721(addr [20]byte) (ERC721, bool)
	ERC1155(addr [20]byte) (ERC1155, bool)
	IsContract(addr [20]byte) bool
}

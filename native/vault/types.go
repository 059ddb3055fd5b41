package vault

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Namit1867/NFT-Marketplace/native/token"
)

// Currency distinguishes the two fungible values the vault moves. Native coin
// is always pushed immediately; stablecoin amounts may accrue as tracked
// credits inside the vault.
type Currency uint8

const (
	CurrencyNative Currency = iota
	CurrencyStable
)

// String returns the canonical currency label.
func (c Currency) String() string {
	if c == CurrencyStable {
		return "stable"
	}
	return "native"
}

// Valid reports whether the currency value is supported.
func (c Currency) Valid() bool {
	return c == CurrencyNative || c == CurrencyStable
}

// Direction is the flow direction of a currency movement relative to the
// vault.
type Direction uint8

const (
	DirectionIncoming Direction = iota
	DirectionOutgoing
)

// SaleKind classifies the marketplace order a custody record belongs to. The
// tag decides which marketplace cancel entry point is driven during an
// emergency withdrawal.
type SaleKind uint8

const (
	SaleKindTrade SaleKind = iota
	SaleKindSwap
	SaleKindAuction
)

// Valid reports whether the sale kind value is supported.
func (k SaleKind) Valid() bool {
	switch k {
	case SaleKindTrade, SaleKindSwap, SaleKindAuction:
		return true
	default:
		return false
	}
}

// String returns the canonical sale-kind label.
func (k SaleKind) String() string {
	switch k {
	case SaleKindSwap:
		return "swap"
	case SaleKindAuction:
		return "auction"
	default:
		return "trade"
	}
}

// CustodyRecord captures one custodied asset unit. A record exists iff the
// vault currently holds that exact unit for that marketplace order; records
// are created on deposit and deleted on release or emergency withdrawal, never
// mutated in between.
type CustodyRecord struct {
	ID        [32]byte
	Owner     [20]byte
	Contract  [20]byte
	TokenID   *big.Int
	Standard  token.Standard
	OrderID   uint64
	Kind      SaleKind
	CreatedAt int64
}

// CustodyID derives the deterministic identifier for a custody record from
// the (assetContract, assetTokenId, marketplaceOrderId) triple.
func CustodyID(contract [20]byte, tokenID *big.Int, orderID uint64) [32]byte {
	id := new(big.Int)
	if tokenID != nil {
		id.Set(tokenID)
	}
	var order [8]byte
	for i := 0; i < 8; i++ {
		order[7-i] = byte(orderID >> (8 * i))
	}
	return ethcrypto.Keccak256Hash(contract[:], id.Bytes(), order[:])
}

// Clone returns a deep copy of the custody record so callers can safely mutate
// the copy without affecting the stored instance.
func (r *CustodyRecord) Clone() *CustodyRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.TokenID != nil {
		clone.TokenID = new(big.Int).Set(r.TokenID)
	} else {
		clone.TokenID = big.NewInt(0)
	}
	return &clone
}

// SanitizeCustodyRecord validates and normalises the supplied record,
// returning a cloned instance with a non-nil token id. The function does not
// mutate the original value.
func SanitizeCustodyRecord(r *CustodyRecord) (*CustodyRecord, error) {
	if r == nil {
		return nil, fmt.Errorf("vault: nil custody record")
	}
	clone := r.Clone()
	if clone.TokenID.Sign() < 0 {
		return nil, fmt.Errorf("vault: token id must be non-negative")
	}
	if !clone.Standard.Valid() {
		return nil, fmt.Errorf("vault: unsupported asset standard %d", clone.Standard)
	}
	if !clone.Kind.Valid() {
		return nil, fmt.Errorf("vault: invalid sale kind %d", clone.Kind)
	}
	if clone.ID != CustodyID(clone.Contract, clone.TokenID, clone.OrderID) {
		return nil, fmt.Errorf("vault: custody id does not match record")
	}
	return clone, nil
}

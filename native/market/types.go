package market

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Namit1867/NFT-Marketplace/native/token"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
)

// Listing is the thin board-level pointer to an active order. A listing exists
// iff the underlying sale or auction is on the public board.
type Listing struct {
	ID      uint64
	OrderID uint64
	Kind    vault.SaleKind
}

// SaleOrder is a fixed-price sale. Only the price is mutable after creation;
// the record is deleted on cancel or purchase.
type SaleOrder struct {
	ID        uint64
	ListingID uint64
	Contract  [20]byte
	TokenID   *big.Int
	Standard  token.Standard
	Price     *big.Int
	Currency  vault.Currency
	Owner     [20]byte
	CreatedAt int64
}

// Clone returns a deep copy of the sale order.
func (s *SaleOrder) Clone() *SaleOrder {
	if s == nil {
		return nil
	}
	clone := *s
	if s.TokenID != nil {
		clone.TokenID = new(big.Int).Set(s.TokenID)
	} else {
		clone.TokenID = big.NewInt(0)
	}
	if s.Price != nil {
		clone.Price = new(big.Int).Set(s.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// SanitizeSaleOrder validates and normalises the supplied order without
// mutating the original value.
func SanitizeSaleOrder(s *SaleOrder) (*SaleOrder, error) {
	if s == nil {
		return nil, fmt.Errorf("market: nil sale order")
	}
	clone := s.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("market: price must be positive")
	}
	if !clone.Standard.Valid() {
		return nil, fmt.Errorf("market: unsupported asset standard %d", clone.Standard)
	}
	if !clone.Currency.Valid() {
		return nil, fmt.Errorf("market: unsupported currency %d", clone.Currency)
	}
	return clone, nil
}

// Auction is an English-style auction with optional reserve and buy-now
// prices. The record mutates on every accepted bid and is deleted by
// finalize, buy-now and cancel.
type Auction struct {
	ID            uint64
	ListingID     uint64
	Contract      [20]byte
	TokenID       *big.Int
	Standard      token.Standard
	Owner         [20]byte
	StartTime     int64
	EndTime       int64
	BasePrice     *big.Int
	ReservePrice  *big.Int // zero means no reserve
	BuyPrice      *big.Int
	MinIncrement  *big.Int
	HighestBid    *big.Int
	HighestBidder [20]byte
	HighestOffer  [32]byte
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	clone.TokenID = cloneOrZero(a.TokenID)
	clone.BasePrice = cloneOrZero(a.BasePrice)
	clone.ReservePrice = cloneOrZero(a.ReservePrice)
	clone.BuyPrice = cloneOrZero(a.BuyPrice)
	clone.MinIncrement = cloneOrZero(a.MinIncrement)
	clone.HighestBid = cloneOrZero(a.HighestBid)
	return &clone
}

// ReserveCleared reports whether the amount meets a non-zero reserve. With no
// reserve configured no bid ever clears, so bids stay unfunded until the owner
// finalizes one.
func (a *Auction) ReserveCleared(amount *big.Int) bool {
	if a == nil || a.ReservePrice == nil || a.ReservePrice.Sign() == 0 {
		return false
	}
	return amount != nil && amount.Cmp(a.ReservePrice) >= 0
}

// HighestCleared reports whether the current highest bid has met the reserve.
func (a *Auction) HighestCleared() bool {
	return a.ReserveCleared(a.HighestBid)
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// SanitizeAuction validates and normalises the supplied auction without
// mutating the original value.
func SanitizeAuction(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("market: nil auction")
	}
	clone := a.Clone()
	if !clone.Standard.Valid() {
		return nil, fmt.Errorf("market: unsupported asset standard %d", clone.Standard)
	}
	if clone.BasePrice.Sign() <= 0 {
		return nil, fmt.Errorf("market: base price must be positive")
	}
	if clone.ReservePrice.Sign() != 0 && clone.ReservePrice.Cmp(clone.BasePrice) <= 0 {
		return nil, fmt.Errorf("market: reserve price must exceed base price")
	}
	if clone.BuyPrice.Cmp(clone.ReservePrice) < 0 {
		return nil, fmt.Errorf("market: buy price below reserve price")
	}
	if clone.EndTime <= clone.StartTime {
		return nil, fmt.Errorf("market: auction end before start")
	}
	return clone, nil
}

// OfferKind discriminates a bidder's offer from an owner's counter-offer. The
// two variants share one record shape but settle through disjoint paths.
type OfferKind uint8

const (
	OfferKindBid OfferKind = iota
	OfferKindCounter
)

// String returns the canonical offer-kind label.
func (k OfferKind) String() string {
	if k == OfferKindCounter {
		return "counter"
	}
	return "bid"
}

// Offer is a bid or a counter-offer on an auction. From is the proposing
// party, To the designated counterparty: on a bid the bidder proposes to the
// auction owner, on a counter-offer the roles reverse and To is the only
// address allowed to accept.
type Offer struct {
	ID        [32]byte
	Kind      OfferKind
	AuctionID uint64
	ParentBid [32]byte // set on counter-offers only
	From      [20]byte
	To        [20]byte
	Amount    *big.Int
	Expiry    int64
	CreatedAt int64
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Amount = cloneOrZero(o.Amount)
	return &clone
}

// Bidder returns the party whose funds settle the auction when this offer
// wins: the proposer of a bid, the acceptor of a counter-offer.
func (o *Offer) Bidder() [20]byte {
	if o == nil {
		return [20]byte{}
	}
	if o.Kind == OfferKindCounter {
		return o.To
	}
	return o.From
}

// BidOfferID maps a sequential bid number into the shared offer key space.
func BidOfferID(seq uint64) [32]byte {
	var id [32]byte
	for i := 0; i < 8; i++ {
		id[31-i] = byte(seq >> (8 * i))
	}
	return id
}

// CounterOfferID derives the key of a counter-offer from the responding
// sender and the bid being countered.
func CounterOfferID(sender [20]byte, parentBid [32]byte) [32]byte {
	return ethcrypto.Keccak256Hash(sender[:], parentBid[:])
}

package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/Namit1867/NFT-Marketplace/core/types"
)

const (
	EventTypeSaleCreated      = "market.sale.created"
	EventTypeSalePriceUpdated = "market.sale.price_updated"
	EventTypeSaleCancelled    = "market.sale.cancelled"
	EventTypeSalePurchased    = "market.sale.purchased"

	EventTypeAuctionCreated   = "market.auction.created"
	EventTypeBidPlaced        = "market.auction.bid"
	EventTypeAuctionExtended  = "market.auction.extended"
	EventTypeCounterOffered   = "market.auction.counter_offered"
	EventTypeAuctionFinished  = "market.auction.finished"
	EventTypeAuctionBoughtOut = "market.auction.bought_out"
	EventTypeAuctionCancelled = "market.auction.cancelled"

	EventTypeWhitelistUpdated = "market.whitelist.updated"
)

// NewSaleCreatedEvent returns the canonical payload for a new fixed-price
// listing.
func NewSaleCreatedEvent(o *SaleOrder) *types.Event {
	return newSaleEvent(EventTypeSaleCreated, o, nil)
}

// NewSalePriceUpdatedEvent returns the payload for an owner price change.
func NewSalePriceUpdatedEvent(o *SaleOrder) *types.Event {
	return newSaleEvent(EventTypeSalePriceUpdated, o, nil)
}

// NewSaleCancelledEvent returns the payload for a delisted sale. forced marks
// a vault-initiated cancellation during emergency withdrawal.
func NewSaleCancelledEvent(o *SaleOrder, forced bool) *types.Event {
	evt := newSaleEvent(EventTypeSaleCancelled, o, nil)
	evt.Attributes["forced"] = strconv.FormatBool(forced)
	return evt
}

// NewSalePurchasedEvent returns the payload for a settled fixed-price sale.
func NewSalePurchasedEvent(o *SaleOrder, buyer [20]byte, treasuryCut *big.Int) *types.Event {
	extra := map[string]string{
		"buyer":       hex.EncodeToString(buyer[:]),
		"treasuryCut": bigString(treasuryCut),
	}
	return newSaleEvent(EventTypeSalePurchased, o, extra)
}

// NewAuctionCreatedEvent returns the canonical payload for a new auction.
func NewAuctionCreatedEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeAuctionCreated, a, nil)
}

// NewBidPlacedEvent returns the payload for an accepted bid.
func NewBidPlacedEvent(a *Auction, o *Offer) *types.Event {
	extra := map[string]string{
		"bidId":  hex.EncodeToString(o.ID[:]),
		"bidder": hex.EncodeToString(o.From[:]),
		"amount": bigString(o.Amount),
		"expiry": strconv.FormatInt(o.Expiry, 10),
	}
	return newAuctionEvent(EventTypeBidPlaced, a, extra)
}

// NewAuctionExtendedEvent returns the payload for an anti-snipe deadline
// extension.
func NewAuctionExtendedEvent(a *Auction) *types.Event {
	return newAuctionEvent(EventTypeAuctionExtended, a, map[string]string{
		"endTime": strconv.FormatInt(a.EndTime, 10),
	})
}

// NewCounterOfferedEvent returns the payload for a counter-offer on a bid.
func NewCounterOfferedEvent(o *Offer) *types.Event {
	return &types.Event{
		Type: EventTypeCounterOffered,
		Attributes: map[string]string{
			"offerId":   hex.EncodeToString(o.ID[:]),
			"parentBid": hex.EncodeToString(o.ParentBid[:]),
			"auctionId": strconv.FormatUint(o.AuctionID, 10),
			"from":      hex.EncodeToString(o.From[:]),
			"to":        hex.EncodeToString(o.To[:]),
			"amount":    bigString(o.Amount),
			"expiry":    strconv.FormatInt(o.Expiry, 10),
		},
	}
}

// NewAuctionFinishedEvent returns the payload for a finalized auction.
func NewAuctionFinishedEvent(a *Auction, winner [20]byte, amount *big.Int) *types.Event {
	return newAuctionEvent(EventTypeAuctionFinished, a, map[string]string{
		"winner": hex.EncodeToString(winner[:]),
		"amount": bigString(amount),
	})
}

// NewAuctionBoughtOutEvent returns the payload for a buy-now settlement.
func NewAuctionBoughtOutEvent(a *Auction, buyer [20]byte) *types.Event {
	return newAuctionEvent(EventTypeAuctionBoughtOut, a, map[string]string{
		"buyer":  hex.EncodeToString(buyer[:]),
		"amount": bigString(a.BuyPrice),
	})
}

// NewAuctionCancelledEvent returns the payload for a cancelled auction.
func NewAuctionCancelledEvent(a *Auction, forced bool) *types.Event {
	return newAuctionEvent(EventTypeAuctionCancelled, a, map[string]string{
		"forced": strconv.FormatBool(forced),
	})
}

// NewWhitelistUpdatedEvent returns the payload for a whitelist change. No
// event is emitted for no-op toggles.
func NewWhitelistUpdatedEvent(addr [20]byte, whitelisted bool) *types.Event {
	return &types.Event{
		Type: EventTypeWhitelistUpdated,
		Attributes: map[string]string{
			"contract":    hex.EncodeToString(addr[:]),
			"whitelisted": strconv.FormatBool(whitelisted),
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newSaleEvent(eventType string, o *SaleOrder, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["orderId"] = strconv.FormatUint(o.ID, 10)
		attrs["listingId"] = strconv.FormatUint(o.ListingID, 10)
		attrs["contract"] = hex.EncodeToString(o.Contract[:])
		attrs["tokenId"] = bigString(o.TokenID)
		attrs["price"] = bigString(o.Price)
		attrs["currency"] = o.Currency.String()
		attrs["owner"] = hex.EncodeToString(o.Owner[:])
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newAuctionEvent(eventType string, a *Auction, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["auctionId"] = strconv.FormatUint(a.ID, 10)
		attrs["listingId"] = strconv.FormatUint(a.ListingID, 10)
		attrs["contract"] = hex.EncodeToString(a.Contract[:])
		attrs["tokenId"] = bigString(a.TokenID)
		attrs["owner"] = hex.EncodeToString(a.Owner[:])
		attrs["basePrice"] = bigString(a.BasePrice)
		attrs["reservePrice"] = bigString(a.ReservePrice)
		attrs["buyPrice"] = bigString(a.BuyPrice)
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

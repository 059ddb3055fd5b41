package market

import (
	"fmt"
	"math/big"

	"github.com/Namit1867/NFT-Marketplace/native/common"
	"github.com/Namit1867/NFT-Marketplace/native/token"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
)

// CreateAuction opens an English-style auction and deposits the asset into the
// vault. Duration is bounded to [1, 30] days. Note that auction creation only
// probes standard support and does not consult the trade contract whitelist;
// the asymmetry is inherited from the deployed contracts and kept until
// product confirms otherwise.
func (e *Engine) CreateAuction(caller, contract [20]byte, tokenID *big.Int, standard token.Standard, basePrice, reservePrice, buyPrice, minIncrement *big.Int, duration int64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return 0, err
	}
	if err := e.enterSettlement(); err != nil {
		return 0, err
	}
	defer e.exitSettlement()
	if duration < minAuctionDuration || duration > maxAuctionDuration {
		return 0, fmt.Errorf("market: auction duration out of bounds")
	}
	if basePrice == nil || basePrice.Sign() <= 0 {
		return 0, fmt.Errorf("market: base price must be positive")
	}
	reserve := big.NewInt(0)
	if reservePrice != nil {
		reserve = new(big.Int).Set(reservePrice)
	}
	if reserve.Sign() != 0 && reserve.Cmp(basePrice) <= 0 {
		return 0, fmt.Errorf("market: reserve price must exceed base price")
	}
	if buyPrice == nil || buyPrice.Cmp(reserve) < 0 {
		return 0, fmt.Errorf("market: buy price below reserve price")
	}
	if minIncrement == nil || minIncrement.Sign() <= 0 {
		return 0, fmt.Errorf("market: bid increment must be positive")
	}
	if err := e.verifyAssetOwner(caller, contract, tokenID, standard); err != nil {
		return 0, err
	}
	auctionID, err := e.state.NextAuctionID()
	if err != nil {
		return 0, err
	}
	listingID, err := e.state.NextListingID()
	if err != nil {
		return 0, err
	}
	if _, err := e.escrow.DepositAsset(e.address, auctionID, caller, contract, tokenID, standard, vault.SaleKindAuction); err != nil {
		return 0, err
	}
	if err := e.state.ListingPut(&Listing{ID: listingID, OrderID: auctionID, Kind: vault.SaleKindAuction}); err != nil {
		return 0, err
	}
	if err := e.state.ListingIndexAppend(listingID); err != nil {
		return 0, err
	}
	now := e.now()
	auction := &Auction{
		ID:           auctionID,
		ListingID:    listingID,
		Contract:     contract,
		TokenID:      new(big.Int).Set(tokenID),
		Standard:     standard,
		Owner:        caller,
		StartTime:    now,
		EndTime:      now + duration,
		BasePrice:    new(big.Int).Set(basePrice),
		ReservePrice: reserve,
		BuyPrice:     new(big.Int).Set(buyPrice),
		MinIncrement: new(big.Int).Set(minIncrement),
		HighestBid:   big.NewInt(0),
	}
	if err := e.state.AuctionPut(auction); err != nil {
		return 0, err
	}
	e.emit(NewAuctionCreatedEvent(auction))
	return auctionID, nil
}

// PlaceBid accepts a bid on an open auction. Funds are only pulled into the
// vault once a bid clears a non-zero reserve; sub-reserve bids stay unfunded
// soft offers. A bid landing inside the anti-snipe buffer pushes the deadline
// out to now + buffer.
func (e *Engine) PlaceBid(caller [20]byte, auctionID uint64, amount *big.Int, holdSecs int64) ([32]byte, error) {
	if err := e.ready(); err != nil {
		return [32]byte{}, err
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return [32]byte{}, err
	}
	auction, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return [32]byte{}, errAuctionNotFound
	}
	if caller == auction.Owner {
		return [32]byte{}, fmt.Errorf("market: owner cannot bid on own auction")
	}
	if amount == nil || amount.Sign() <= 0 {
		return [32]byte{}, fmt.Errorf("market: bid amount must be positive")
	}
	if err := e.checkSolvency(caller, amount); err != nil {
		return [32]byte{}, err
	}
	if amount.Cmp(auction.BasePrice) < 0 {
		return [32]byte{}, fmt.Errorf("market: bid below base price")
	}
	now := e.now()
	if now > auction.EndTime {
		return [32]byte{}, fmt.Errorf("market: auction has ended")
	}
	if holdSecs < minBidHold || holdSecs > maxBidHold {
		return [32]byte{}, fmt.Errorf("market: bid hold duration out of bounds")
	}
	floor := new(big.Int).Add(auction.HighestBid, auction.MinIncrement)
	if amount.Cmp(floor) < 0 {
		return [32]byte{}, fmt.Errorf("market: bid below current bid plus increment")
	}
	prevBidder := auction.HighestBidder
	prevAmount := new(big.Int).Set(auction.HighestBid)
	prevCleared := auction.HighestCleared()
	if auction.ReserveCleared(amount) {
		if err := e.escrow.MoveCurrency(e.address, caller, caller, amount, vault.CurrencyStable, vault.DirectionIncoming, nil); err != nil {
			return [32]byte{}, err
		}
		if prevCleared {
			if err := e.escrow.MoveCurrency(e.address, prevBidder, prevBidder, prevAmount, vault.CurrencyStable, vault.DirectionOutgoing, nil); err != nil {
				return [32]byte{}, err
			}
		}
	}
	seq, err := e.state.NextBidSeq()
	if err != nil {
		return [32]byte{}, err
	}
	id := BidOfferID(seq)
	offer := &Offer{
		ID:        id,
		Kind:      OfferKindBid,
		AuctionID: auctionID,
		From:      caller,
		To:        auction.Owner,
		Amount:    new(big.Int).Set(amount),
		Expiry:    now + holdSecs,
		CreatedAt: now,
	}
	if err := e.state.OfferPut(offer); err != nil {
		return [32]byte{}, err
	}
	if err := e.state.AuctionOffersAppend(auctionID, id); err != nil {
		return [32]byte{}, err
	}
	auction.HighestBidder = caller
	auction.HighestBid = new(big.Int).Set(amount)
	auction.HighestOffer = id
	extended := false
	if auction.EndTime-now <= e.bidTimeBuffer {
		auction.EndTime = now + e.bidTimeBuffer
		extended = true
	}
	if err := e.state.AuctionPut(auction); err != nil {
		return [32]byte{}, err
	}
	e.emit(NewBidPlacedEvent(auction, offer))
	if extended {
		e.emit(NewAuctionExtendedEvent(auction))
	}
	return id, nil
}

// RespondWithCounterOffer lets the counterparty recorded on a live bid answer
// it with a counter-offer before the bid expires. The counter-offer reverses
// the bidder/counterparty roles and carries its own expiry.
func (e *Engine) RespondWithCounterOffer(caller [20]byte, bidID [32]byte, amount *big.Int, holdSecs int64) ([32]byte, error) {
	if e == nil || e.state == nil {
		return [32]byte{}, errNilState
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return [32]byte{}, err
	}
	bid, ok := e.state.OfferGet(bidID)
	if !ok {
		return [32]byte{}, errOfferNotFound
	}
	if bid.Kind != OfferKindBid {
		return [32]byte{}, fmt.Errorf("market: can only counter a bid")
	}
	if bid.To != caller {
		return [32]byte{}, fmt.Errorf("market: caller is not the bid counterparty")
	}
	now := e.now()
	if now > bid.Expiry {
		return [32]byte{}, fmt.Errorf("market: bid has expired")
	}
	if amount == nil || amount.Sign() <= 0 {
		return [32]byte{}, fmt.Errorf("market: counter amount must be positive")
	}
	if holdSecs < minBidHold || holdSecs > maxBidHold {
		return [32]byte{}, fmt.Errorf("market: counter hold duration out of bounds")
	}
	id := CounterOfferID(caller, bidID)
	counter := &Offer{
		ID:        id,
		Kind:      OfferKindCounter,
		AuctionID: bid.AuctionID,
		ParentBid: bidID,
		From:      caller,
		To:        bid.From,
		Amount:    new(big.Int).Set(amount),
		Expiry:    now + holdSecs,
		CreatedAt: now,
	}
	if err := e.state.OfferPut(counter); err != nil {
		return [32]byte{}, err
	}
	if err := e.state.AuctionOffersAppend(bid.AuctionID, id); err != nil {
		return [32]byte{}, err
	}
	e.emit(NewCounterOfferedEvent(counter))
	return id, nil
}

// FinishAuction settles an auction against the named offer. A bid may be
// finalized by the auction owner (or, for the funded highest bid, the admin);
// a counter-offer may only be accepted by its designated acceptor. Both paths
// converge on the same fee-split and asset release.
func (e *Engine) FinishAuction(caller [20]byte, auctionID uint64, offerID [32]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return err
	}
	if err := e.enterSettlement(); err != nil {
		return err
	}
	defer e.exitSettlement()
	auction, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return errAuctionNotFound
	}
	offer, ok := e.state.OfferGet(offerID)
	if !ok {
		return errOfferNotFound
	}
	if offer.AuctionID != auctionID {
		return fmt.Errorf("market: offer does not belong to this auction")
	}
	var winner [20]byte
	switch offer.Kind {
	case OfferKindBid:
		if caller != auction.Owner && caller != e.admin {
			return fmt.Errorf("market: caller may not finalize this auction")
		}
		if caller == e.admin && caller != auction.Owner {
			if !auction.HighestCleared() || offerID != auction.HighestOffer {
				return fmt.Errorf("market: admin may only finalize the funded highest bid")
			}
		}
		if caller == auction.Owner && auction.HighestCleared() && offerID != auction.HighestOffer {
			return fmt.Errorf("market: reserve met, only the highest bid may settle")
		}
		winner = offer.From
		if !auction.ReserveCleared(offer.Amount) {
			// Soft offer: funds were never escrowed, pull them now.
			if e.now() > offer.Expiry {
				return fmt.Errorf("market: bid has expired")
			}
			if err := e.checkSolvency(winner, offer.Amount); err != nil {
				return err
			}
			if err := e.escrow.MoveCurrency(e.address, winner, winner, offer.Amount, vault.CurrencyStable, vault.DirectionIncoming, nil); err != nil {
				return err
			}
		}
	case OfferKindCounter:
		if caller != offer.To {
			return fmt.Errorf("market: caller is not the counter-offer acceptor")
		}
		if e.now() > offer.Expiry {
			return fmt.Errorf("market: counter-offer has expired")
		}
		winner = offer.To
		if err := e.checkSolvency(winner, offer.Amount); err != nil {
			return err
		}
		if auction.HighestCleared() {
			if err := e.escrow.MoveCurrency(e.address, auction.HighestBidder, auction.HighestBidder, auction.HighestBid, vault.CurrencyStable, vault.DirectionOutgoing, nil); err != nil {
				return err
			}
		}
		if err := e.escrow.MoveCurrency(e.address, winner, winner, offer.Amount, vault.CurrencyStable, vault.DirectionIncoming, nil); err != nil {
			return err
		}
	default:
		return fmt.Errorf("market: unknown offer kind %d", offer.Kind)
	}
	if err := e.settleAuction(auction, winner, offer.Amount); err != nil {
		return err
	}
	e.emit(NewAuctionFinishedEvent(auction, winner, offer.Amount))
	return nil
}

// BuyFromAuction settles the auction immediately at the buy-now price,
// refunding any funded highest bidder first.
func (e *Engine) BuyFromAuction(caller [20]byte, auctionID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return err
	}
	if err := e.enterSettlement(); err != nil {
		return err
	}
	defer e.exitSettlement()
	auction, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return errAuctionNotFound
	}
	if caller == auction.Owner {
		return fmt.Errorf("market: owner cannot buy own auction")
	}
	if e.now() > auction.EndTime {
		return fmt.Errorf("market: auction has ended")
	}
	if err := e.checkSolvency(caller, auction.BuyPrice); err != nil {
		return err
	}
	if auction.HighestCleared() {
		if err := e.escrow.MoveCurrency(e.address, auction.HighestBidder, auction.HighestBidder, auction.HighestBid, vault.CurrencyStable, vault.DirectionOutgoing, nil); err != nil {
			return err
		}
	}
	if err := e.escrow.MoveCurrency(e.address, caller, caller, auction.BuyPrice, vault.CurrencyStable, vault.DirectionIncoming, nil); err != nil {
		return err
	}
	if err := e.settleAuction(auction, caller, auction.BuyPrice); err != nil {
		return err
	}
	e.emit(NewAuctionBoughtOutEvent(auction, caller))
	return nil
}

// CancelAuction tears an auction down. The vault invokes this with itself as
// initiator during an emergency withdrawal, bypassing the ownership and
// bidding checks and skipping the release the vault already performed. An
// owner may cancel only when no bids exist or the deadline has passed, and
// never once the reserve has been met.
func (e *Engine) CancelAuction(auctionID uint64, initiator [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	auction, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return errAuctionNotFound
	}
	vaultInitiated := initiator == e.vaultAddr && e.vaultAddr != ([20]byte{})
	if !vaultInitiated {
		if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
			return err
		}
		if auction.Owner != initiator {
			return fmt.Errorf("market: caller is not the auction owner")
		}
		if auction.HighestCleared() {
			return fmt.Errorf("market: reserve met, auction must be finished")
		}
		offers, err := e.state.AuctionOffersList(auctionID)
		if err != nil {
			return err
		}
		if len(offers) > 0 && e.now() <= auction.EndTime {
			return fmt.Errorf("market: auction has active bidding")
		}
		if e.escrow == nil {
			return errNilVault
		}
		if err := e.escrow.ReleaseAsset(e.address, auctionID, auction.Owner, auction.Contract, auction.TokenID, auction.Standard); err != nil {
			return err
		}
	}
	if err := e.deleteOffers(auctionID); err != nil {
		return err
	}
	if err := e.unlist(auction.ListingID, vault.SaleKindAuction); err != nil {
		return err
	}
	if err := e.state.AuctionDelete(auctionID); err != nil {
		return err
	}
	e.emit(NewAuctionCancelledEvent(auction, vaultInitiated))
	return nil
}

// settleAuction is the convergence point of finalize and buy-now: unlist,
// split the fee, release the asset to the winner and delete the auction with
// its bid list. The winner's funds must already sit in the vault.
func (e *Engine) settleAuction(auction *Auction, winner [20]byte, amount *big.Int) error {
	cut := feeCut(amount, e.auctionFeeBps)
	remainder := new(big.Int).Sub(amount, cut)
	if err := e.unlist(auction.ListingID, vault.SaleKindAuction); err != nil {
		return err
	}
	if cut.Sign() > 0 {
		if err := e.escrow.MoveCurrency(e.address, winner, e.treasury, cut, vault.CurrencyStable, vault.DirectionOutgoing, nil); err != nil {
			return err
		}
	}
	if err := e.escrow.MoveCurrency(e.address, winner, auction.Owner, remainder, vault.CurrencyStable, vault.DirectionOutgoing, nil); err != nil {
		return err
	}
	if err := e.escrow.ReleaseAsset(e.address, auction.ID, winner, auction.Contract, auction.TokenID, auction.Standard); err != nil {
		return err
	}
	if err := e.deleteOffers(auction.ID); err != nil {
		return err
	}
	return e.state.AuctionDelete(auction.ID)
}

func (e *Engine) deleteOffers(auctionID uint64) error {
	offers, err := e.state.AuctionOffersList(auctionID)
	if err != nil {
		return err
	}
	for _, id := range offers {
		if err := e.state.OfferDelete(id); err != nil {
			return err
		}
	}
	return e.state.AuctionOffersClear(auctionID)
}

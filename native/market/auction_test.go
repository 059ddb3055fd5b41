package market

import (
	"math/big"
	"testing"

	"github.com/Namit1867/NFT-Marketplace/native/common"
	"github.com/Namit1867/NFT-Marketplace/native/token"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
)

const (
	day  = int64(24 * 60 * 60)
	hold = 2 * day
)

func (f *marketFixture) createAuction(t *testing.T, owner [20]byte, tokenID, base, reserve, buy, incr int64, duration int64) uint64 {
	t.Helper()
	f.mint721(t, owner, tokenID)
	id, err := f.engine.CreateAuction(owner, f.nftAddr, big.NewInt(tokenID), token.StandardERC721,
		big.NewInt(base), big.NewInt(reserve), big.NewInt(buy), big.NewInt(incr), duration)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return id
}

func TestCreateAuctionSkipsWhitelist(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	other := token.NewLedger721()
	otherAddr := addr(0x55)
	f.registry.Register721(otherAddr, other)
	if err := other.Mint(owner, big.NewInt(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Auctions only probe standard support; the trade whitelist does not apply.
	if _, err := f.engine.CreateAuction(owner, otherAddr, big.NewInt(1), token.StandardERC721,
		big.NewInt(10), big.NewInt(50), big.NewInt(100), big.NewInt(5), 2*day); err != nil {
		t.Fatalf("auction on non-whitelisted contract: %v", err)
	}
}

func TestCreateAuctionValidatesPricing(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	f.mint721(t, owner, 1)

	cases := []struct {
		name                      string
		base, reserve, buy, incr  int64
		duration                  int64
	}{
		{"duration too short", 10, 50, 100, 5, day - 1},
		{"duration too long", 10, 50, 100, 5, 31 * day},
		{"reserve below base", 10, 5, 100, 5, 2 * day},
		{"buy below reserve", 10, 50, 40, 5, 2 * day},
		{"zero increment", 10, 50, 100, 0, 2 * day},
		{"zero base", 0, 50, 100, 5, 2 * day},
	}
	for _, tc := range cases {
		if _, err := f.engine.CreateAuction(owner, f.nftAddr, big.NewInt(1), token.StandardERC721,
			big.NewInt(tc.base), big.NewInt(tc.reserve), big.NewInt(tc.buy), big.NewInt(tc.incr), tc.duration); err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestBidMonotonicity(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	b1 := addr(0xB1)
	b2 := addr(0xB2)
	f.fund(b1, 1_000)
	f.fund(b2, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	if _, err := f.engine.PlaceBid(owner, auctionID, big.NewInt(20), hold); err == nil {
		t.Fatalf("owner must not bid on own auction")
	}
	if _, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(9), hold); err == nil {
		t.Fatalf("bid below base must be rejected")
	}
	if _, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(10), hold); err != nil {
		t.Fatalf("opening bid: %v", err)
	}
	if _, err := f.engine.PlaceBid(b2, auctionID, big.NewInt(12), hold); err == nil {
		t.Fatalf("bid below highest plus increment must be rejected")
	}
	if _, err := f.engine.PlaceBid(b2, auctionID, big.NewInt(15), hold); err != nil {
		t.Fatalf("incremented bid: %v", err)
	}
	auction, _ := f.engine.AuctionByID(auctionID)
	if auction.HighestBid.Cmp(big.NewInt(15)) != 0 || auction.HighestBidder != b2 {
		t.Fatalf("highest bid not tracked: %+v", auction)
	}
}

func TestBidHoldBounds(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	b1 := addr(0xB1)
	f.fund(b1, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	if _, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(10), day-1); err == nil {
		t.Fatalf("hold below the minimum must be rejected")
	}
	if _, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(10), 31*day); err == nil {
		t.Fatalf("hold above the maximum must be rejected")
	}
}

func TestBidRequiresSolvency(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	broke := addr(0xB1)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	if _, err := f.engine.PlaceBid(broke, auctionID, big.NewInt(10), hold); err == nil {
		t.Fatalf("bidder without balance and allowance must be rejected")
	}
	// Balance without allowance is still insolvent.
	f.stable.Mint(broke, big.NewInt(1_000))
	if _, err := f.engine.PlaceBid(broke, auctionID, big.NewInt(10), hold); err == nil {
		t.Fatalf("bidder without vault allowance must be rejected")
	}
}

func TestReserveFundingExclusivity(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	b1 := addr(0xB1)
	b2 := addr(0xB2)
	b3 := addr(0xB3)
	f.fund(b1, 1_000)
	f.fund(b2, 1_000)
	f.fund(b3, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	// Below the reserve: a soft offer, nothing escrowed.
	if _, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(10), hold); err != nil {
		t.Fatalf("soft bid: %v", err)
	}
	if f.escrow.creditOf(b1).Sign() != 0 {
		t.Fatalf("sub-reserve bid must not be funded")
	}

	// Clears the reserve: funds pulled in.
	if _, err := f.engine.PlaceBid(b2, auctionID, big.NewInt(55), hold); err != nil {
		t.Fatalf("clearing bid: %v", err)
	}
	if f.escrow.creditOf(b2).Cmp(big.NewInt(55)) != 0 {
		t.Fatalf("clearing bid must be escrowed, credit %s", f.escrow.creditOf(b2))
	}

	// A higher clearing bid displaces and refunds the previous one.
	if _, err := f.engine.PlaceBid(b3, auctionID, big.NewInt(70), hold); err != nil {
		t.Fatalf("outbid: %v", err)
	}
	if f.escrow.creditOf(b2).Sign() != 0 {
		t.Fatalf("displaced bidder must be refunded, credit %s", f.escrow.creditOf(b2))
	}
	if f.escrow.creditOf(b3).Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("new highest bid must be escrowed, credit %s", f.escrow.creditOf(b3))
	}

	offers, _ := f.engine.AuctionOffers(auctionID)
	if len(offers) != 3 {
		t.Fatalf("all offers stay recorded, got %d", len(offers))
	}
}

func TestAntiSnipeExtension(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	b1 := addr(0xB1)
	f.fund(b1, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)
	auction, _ := f.engine.AuctionByID(auctionID)
	deadline := auction.EndTime

	// A bid landing inside the buffer pushes the deadline to now + buffer.
	f.nowSec = deadline - 300
	if _, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(10), hold); err != nil {
		t.Fatalf("late bid: %v", err)
	}
	auction, _ = f.engine.AuctionByID(auctionID)
	if auction.EndTime != f.nowSec+f.engine.BidTimeBuffer() {
		t.Fatalf("deadline not extended: end %d, want %d", auction.EndTime, f.nowSec+f.engine.BidTimeBuffer())
	}
	if f.emitter.countOf(EventTypeAuctionExtended) != 1 {
		t.Fatalf("extension event not emitted")
	}

	// Past the (extended) deadline bidding closes.
	f.nowSec = auction.EndTime + 1
	if _, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(100), hold); err == nil {
		t.Fatalf("expected bid after deadline to be rejected")
	}
}

func TestBuyFromAuctionRefundsFundedBidder(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	bidder := addr(0xB1)
	buyer := addr(0xB2)
	f.fund(bidder, 1_000)
	f.fund(buyer, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	if _, err := f.engine.PlaceBid(bidder, auctionID, big.NewInt(70), hold); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if err := f.engine.BuyFromAuction(owner, auctionID); err == nil {
		t.Fatalf("owner must not buy out own auction")
	}
	if err := f.engine.BuyFromAuction(buyer, auctionID); err != nil {
		t.Fatalf("buyout: %v", err)
	}

	if f.escrow.creditOf(bidder).Sign() != 0 {
		t.Fatalf("funded bidder must be refunded before buyout")
	}
	if f.escrow.creditOf(buyer).Sign() != 0 {
		t.Fatalf("buyout funds must be fully settled")
	}
	// 2.5% of the 100 buy price to the treasury, remainder to the owner.
	if got := f.escrow.paidTo(f.treasury); got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("treasury cut: got %s, want 2", got)
	}
	if got := f.escrow.paidTo(owner); got.Cmp(big.NewInt(98)) != 0 {
		t.Fatalf("owner remainder: got %s, want 98", got)
	}
	if len(f.escrow.releases) != 1 || f.escrow.releases[0].recipient != buyer {
		t.Fatalf("asset should go to the buyout caller: %+v", f.escrow.releases)
	}
	if _, ok := f.engine.AuctionByID(auctionID); ok {
		t.Fatalf("auction record should be deleted")
	}
	offers, _ := f.engine.AuctionOffers(auctionID)
	if len(offers) != 0 {
		t.Fatalf("offers should be purged on settlement")
	}
}

func TestFinishAuctionHighestBidRules(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	b1 := addr(0xB1)
	b2 := addr(0xB2)
	f.fund(b1, 1_000)
	f.fund(b2, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	first, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(55), hold)
	if err != nil {
		t.Fatalf("first bid: %v", err)
	}
	second, err := f.engine.PlaceBid(b2, auctionID, big.NewInt(70), hold)
	if err != nil {
		t.Fatalf("second bid: %v", err)
	}

	// Reserve met: the owner may only settle against the highest bid.
	if err := f.engine.FinishAuction(owner, auctionID, first); err == nil {
		t.Fatalf("expected non-highest settlement to be rejected")
	}
	// A stranger may not finalize at all.
	if err := f.engine.FinishAuction(addr(0x77), auctionID, second); err == nil {
		t.Fatalf("expected stranger finalize to be rejected")
	}
	if err := f.engine.FinishAuction(owner, auctionID, second); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got := f.escrow.paidTo(owner); got.Cmp(big.NewInt(69)) != 0 {
		t.Fatalf("owner remainder: got %s, want 69", got)
	}
	if got := f.escrow.paidTo(f.treasury); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("treasury cut: got %s, want 1", got)
	}
	if len(f.escrow.releases) != 1 || f.escrow.releases[0].recipient != b2 {
		t.Fatalf("asset should go to the winning bidder: %+v", f.escrow.releases)
	}
}

func TestFinishAuctionAdminLimitedToFundedHighest(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	b1 := addr(0xB1)
	b2 := addr(0xB2)
	f.fund(b1, 1_000)
	f.fund(b2, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	soft, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(10), hold)
	if err != nil {
		t.Fatalf("soft bid: %v", err)
	}
	// No funded highest bid yet, so the admin may not finalize anything.
	if err := f.engine.FinishAuction(f.admin, auctionID, soft); err == nil {
		t.Fatalf("expected admin finalize of soft bid to be rejected")
	}

	funded, err := f.engine.PlaceBid(b2, auctionID, big.NewInt(60), hold)
	if err != nil {
		t.Fatalf("funded bid: %v", err)
	}
	if err := f.engine.FinishAuction(f.admin, auctionID, soft); err == nil {
		t.Fatalf("admin may only settle the funded highest bid")
	}
	if err := f.engine.FinishAuction(f.admin, auctionID, funded); err != nil {
		t.Fatalf("admin finalize: %v", err)
	}
}

func TestFinishUnfundedBidPullsFundsAtFinalize(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	b1 := addr(0xB1)
	f.fund(b1, 10_000)
	// No reserve: every bid stays a soft offer.
	f.mint721(t, owner, 1)
	auctionID, err := f.engine.CreateAuction(owner, f.nftAddr, big.NewInt(1), token.StandardERC721,
		big.NewInt(10), big.NewInt(0), big.NewInt(10_000), big.NewInt(5), 2*day)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}

	bidID, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(2_000), hold)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if f.escrow.creditOf(b1).Sign() != 0 {
		t.Fatalf("no-reserve bids must stay unfunded")
	}

	if err := f.engine.FinishAuction(owner, auctionID, bidID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// Funds were pulled at finalize time and immediately split.
	if f.escrow.creditOf(b1).Sign() != 0 {
		t.Fatalf("winner funds must be fully settled")
	}
	if got := f.escrow.paidTo(f.treasury); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("treasury cut: got %s, want 50", got)
	}
	if got := f.escrow.paidTo(owner); got.Cmp(big.NewInt(1_950)) != 0 {
		t.Fatalf("owner remainder: got %s, want 1950", got)
	}
}

func TestFinishExpiredUnfundedBidRejected(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	b1 := addr(0xB1)
	f.fund(b1, 1_000)
	f.mint721(t, owner, 1)
	auctionID, err := f.engine.CreateAuction(owner, f.nftAddr, big.NewInt(1), token.StandardERC721,
		big.NewInt(10), big.NewInt(0), big.NewInt(1_000), big.NewInt(5), 2*day)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	bidID, err := f.engine.PlaceBid(b1, auctionID, big.NewInt(20), day)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}

	f.nowSec += day + 1
	if err := f.engine.FinishAuction(owner, auctionID, bidID); err == nil {
		t.Fatalf("expected expired soft bid to be rejected")
	}
}

func TestCounterOfferFlow(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	bidder := addr(0xB1)
	f.fund(bidder, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	bidID, err := f.engine.PlaceBid(bidder, auctionID, big.NewInt(60), hold)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if f.escrow.creditOf(bidder).Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("clearing bid must be escrowed")
	}

	// Only the counterparty recorded on the bid may counter it.
	if _, err := f.engine.RespondWithCounterOffer(addr(0x77), bidID, big.NewInt(80), hold); err == nil {
		t.Fatalf("expected stranger counter to be rejected")
	}
	counterID, err := f.engine.RespondWithCounterOffer(owner, bidID, big.NewInt(80), hold)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}

	// Only the designated acceptor may take the counter-offer.
	if err := f.engine.FinishAuction(owner, auctionID, counterID); err == nil {
		t.Fatalf("expected non-acceptor settlement to be rejected")
	}
	if err := f.engine.FinishAuction(bidder, auctionID, counterID); err != nil {
		t.Fatalf("accept counter: %v", err)
	}

	// The original escrowed bid was refunded, then the counter amount pulled.
	if f.escrow.creditOf(bidder).Sign() != 0 {
		t.Fatalf("acceptor funds must be fully settled, credit %s", f.escrow.creditOf(bidder))
	}
	if got := f.escrow.paidTo(f.treasury); got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("treasury cut: got %s, want 2", got)
	}
	if got := f.escrow.paidTo(owner); got.Cmp(big.NewInt(78)) != 0 {
		t.Fatalf("owner remainder: got %s, want 78", got)
	}
	if len(f.escrow.releases) != 1 || f.escrow.releases[0].recipient != bidder {
		t.Fatalf("asset should go to the accepting bidder: %+v", f.escrow.releases)
	}
}

func TestCounterOfferRequiresLiveBid(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	bidder := addr(0xB1)
	f.fund(bidder, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	bidID, err := f.engine.PlaceBid(bidder, auctionID, big.NewInt(10), day)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	f.nowSec += day + 1
	if _, err := f.engine.RespondWithCounterOffer(owner, bidID, big.NewInt(80), hold); err == nil {
		t.Fatalf("expected counter on expired bid to be rejected")
	}
}

func TestCancelAuctionRules(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	bidder := addr(0xB1)
	f.fund(bidder, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	if err := f.engine.CancelAuction(auctionID, addr(0x77)); err == nil {
		t.Fatalf("expected non-owner cancel to be rejected")
	}

	if _, err := f.engine.PlaceBid(bidder, auctionID, big.NewInt(10), hold); err != nil {
		t.Fatalf("bid: %v", err)
	}
	// Active bidding before the deadline blocks cancellation.
	if err := f.engine.CancelAuction(auctionID, owner); err == nil {
		t.Fatalf("expected cancel with active bidding to be rejected")
	}

	// Past the deadline the owner may walk away from soft offers.
	auction, _ := f.engine.AuctionByID(auctionID)
	f.nowSec = auction.EndTime + 1
	if err := f.engine.CancelAuction(auctionID, owner); err != nil {
		t.Fatalf("cancel after deadline: %v", err)
	}
	if len(f.escrow.releases) != 1 || f.escrow.releases[0].recipient != owner {
		t.Fatalf("asset should return to the owner: %+v", f.escrow.releases)
	}
	if _, ok := f.engine.AuctionByID(auctionID); ok {
		t.Fatalf("auction record should be deleted")
	}
	offers, _ := f.engine.AuctionOffers(auctionID)
	if len(offers) != 0 {
		t.Fatalf("offers should be purged on cancel")
	}
}

func TestCancelAuctionBlockedOnceReserveMet(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	bidder := addr(0xB1)
	f.fund(bidder, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)

	if _, err := f.engine.PlaceBid(bidder, auctionID, big.NewInt(60), hold); err != nil {
		t.Fatalf("bid: %v", err)
	}
	auction, _ := f.engine.AuctionByID(auctionID)
	f.nowSec = auction.EndTime + 1
	if err := f.engine.CancelAuction(auctionID, owner); err == nil {
		t.Fatalf("expected cancel to be blocked once the reserve is met")
	}
}

func TestCancelAuctionVaultInitiatedSkipsChecks(t *testing.T) {
	f := newMarketFixture(t)
	owner := addr(0xA1)
	bidder := addr(0xB1)
	f.fund(bidder, 1_000)
	auctionID := f.createAuction(t, owner, 1, 10, 50, 100, 5, 2*day)
	if _, err := f.engine.PlaceBid(bidder, auctionID, big.NewInt(60), hold); err != nil {
		t.Fatalf("bid: %v", err)
	}

	f.mode.Set(common.ModeEmergency)
	if err := f.engine.CancelAuction(auctionID, f.vaultAddr); err != nil {
		t.Fatalf("vault-initiated cancel: %v", err)
	}
	if len(f.escrow.releases) != 0 {
		t.Fatalf("forced cancel must not release, the vault already did")
	}
	if _, ok := f.engine.AuctionByID(auctionID); ok {
		t.Fatalf("auction record should be deleted")
	}
}

func TestSettlementGuardBlocksNestedEntry(t *testing.T) {
	f := newMarketFixture(t)
	seller := addr(0xA1)
	f.mint721(t, seller, 1)

	if err := f.engine.enterSettlement(); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if _, err := f.engine.CreateSaleOrder(seller, f.nftAddr, big.NewInt(1), token.StandardERC721, big.NewInt(100), vault.CurrencyStable); err != errReentrant {
		t.Fatalf("expected errReentrant, got %v", err)
	}
	f.engine.exitSettlement()
	if _, err := f.engine.CreateSaleOrder(seller, f.nftAddr, big.NewInt(1), token.StandardERC721, big.NewInt(100), vault.CurrencyStable); err != nil {
		t.Fatalf("create after guard release: %v", err)
	}
}

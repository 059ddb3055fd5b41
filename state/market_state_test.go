package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Namit1867/NFT-Marketplace/native/market"
	"github.com/Namit1867/NFT-Marketplace/native/token"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
	"github.com/Namit1867/NFT-Marketplace/storage"
)

func newTestState(t *testing.T) *MarketState {
	t.Helper()
	return NewMarketState(storage.NewMemDB())
}

func testAddr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestCustodyRoundTrip(t *testing.T) {
	s := newTestState(t)
	contract := testAddr(0x10)
	tokenID := big.NewInt(42)
	rec := &vault.CustodyRecord{
		ID:        vault.CustodyID(contract, tokenID, 7),
		Owner:     testAddr(0x01),
		Contract:  contract,
		TokenID:   tokenID,
		Standard:  token.StandardERC721,
		OrderID:   7,
		Kind:      vault.SaleKindTrade,
		CreatedAt: 1234,
	}
	require.NoError(t, s.CustodyPut(rec))

	got, ok := s.CustodyGet(rec.ID)
	require.True(t, ok)
	require.Equal(t, rec.Owner, got.Owner)
	require.Equal(t, rec.Contract, got.Contract)
	require.Zero(t, got.TokenID.Cmp(tokenID))
	require.Equal(t, rec.OrderID, got.OrderID)
	require.Equal(t, rec.Kind, got.Kind)

	require.NoError(t, s.CustodyDelete(rec.ID))
	_, ok = s.CustodyGet(rec.ID)
	require.False(t, ok)
}

func TestCustodyPutRejectsMismatchedID(t *testing.T) {
	s := newTestState(t)
	rec := &vault.CustodyRecord{
		ID:       [32]byte{0x01},
		Owner:    testAddr(0x01),
		Contract: testAddr(0x10),
		TokenID:  big.NewInt(1),
		Standard: token.StandardERC721,
		OrderID:  1,
		Kind:     vault.SaleKindTrade,
	}
	require.Error(t, s.CustodyPut(rec))
}

func TestCustodyIndex(t *testing.T) {
	s := newTestState(t)
	owner := testAddr(0x01)
	contract := testAddr(0x10)
	a := vault.CustodyID(contract, big.NewInt(1), 1)
	b := vault.CustodyID(contract, big.NewInt(2), 2)
	c := vault.CustodyID(contract, big.NewInt(3), 3)

	require.NoError(t, s.CustodyIndexAppend(owner, a))
	require.NoError(t, s.CustodyIndexAppend(owner, b))
	require.NoError(t, s.CustodyIndexAppend(owner, c))

	ids, err := s.CustodyIndexList(owner)
	require.NoError(t, err)
	require.ElementsMatch(t, [][32]byte{a, b, c}, ids)

	require.NoError(t, s.CustodyIndexRemove(owner, a))
	ids, err = s.CustodyIndexList(owner)
	require.NoError(t, err)
	require.ElementsMatch(t, [][32]byte{b, c}, ids)

	// Removing an id that was never indexed is an error.
	require.Error(t, s.CustodyIndexRemove(owner, a))

	require.NoError(t, s.CustodyIndexRemove(owner, b))
	require.NoError(t, s.CustodyIndexRemove(owner, c))
	ids, err = s.CustodyIndexList(owner)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestStableCredit(t *testing.T) {
	s := newTestState(t)
	addr := testAddr(0x01)

	credit, err := s.StableCredit(addr)
	require.NoError(t, err)
	require.Zero(t, credit.Sign())

	require.NoError(t, s.SetStableCredit(addr, big.NewInt(500)))
	credit, err = s.StableCredit(addr)
	require.NoError(t, err)
	require.Zero(t, credit.Cmp(big.NewInt(500)))

	require.Error(t, s.SetStableCredit(addr, big.NewInt(-1)))

	// Zeroing removes the record entirely.
	require.NoError(t, s.SetStableCredit(addr, big.NewInt(0)))
	credit, err = s.StableCredit(addr)
	require.NoError(t, err)
	require.Zero(t, credit.Sign())
}

func TestSaleRoundTrip(t *testing.T) {
	s := newTestState(t)
	order := &market.SaleOrder{
		ID:        3,
		ListingID: 9,
		Contract:  testAddr(0x10),
		TokenID:   big.NewInt(5),
		Standard:  token.StandardERC1155,
		Price:     big.NewInt(1_000),
		Currency:  vault.CurrencyNative,
		Owner:     testAddr(0x01),
		CreatedAt: 99,
	}
	require.NoError(t, s.SalePut(order))

	got, ok := s.SaleGet(3)
	require.True(t, ok)
	require.Equal(t, order.ListingID, got.ListingID)
	require.Equal(t, order.Standard, got.Standard)
	require.Equal(t, order.Currency, got.Currency)
	require.Zero(t, got.Price.Cmp(order.Price))

	require.NoError(t, s.SaleDelete(3))
	_, ok = s.SaleGet(3)
	require.False(t, ok)
}

func TestSalePutValidates(t *testing.T) {
	s := newTestState(t)
	require.Error(t, s.SalePut(&market.SaleOrder{
		ID:       1,
		Contract: testAddr(0x10),
		TokenID:  big.NewInt(1),
		Standard: token.StandardERC721,
		Price:    big.NewInt(0),
		Currency: vault.CurrencyStable,
	}))
}

func TestAuctionRoundTrip(t *testing.T) {
	s := newTestState(t)
	auction := &market.Auction{
		ID:            4,
		ListingID:     11,
		Contract:      testAddr(0x10),
		TokenID:       big.NewInt(8),
		Standard:      token.StandardERC721,
		Owner:         testAddr(0x01),
		StartTime:     100,
		EndTime:       100 + 86_400,
		BasePrice:     big.NewInt(10),
		ReservePrice:  big.NewInt(50),
		BuyPrice:      big.NewInt(100),
		MinIncrement:  big.NewInt(5),
		HighestBid:    big.NewInt(55),
		HighestBidder: testAddr(0x02),
		HighestOffer:  market.BidOfferID(1),
	}
	require.NoError(t, s.AuctionPut(auction))

	got, ok := s.AuctionGet(4)
	require.True(t, ok)
	require.Equal(t, auction.EndTime, got.EndTime)
	require.Equal(t, auction.HighestBidder, got.HighestBidder)
	require.Equal(t, auction.HighestOffer, got.HighestOffer)
	require.Zero(t, got.ReservePrice.Cmp(auction.ReservePrice))
	require.True(t, got.HighestCleared())

	require.NoError(t, s.AuctionDelete(4))
	_, ok = s.AuctionGet(4)
	require.False(t, ok)
}

func TestOfferRoundTripAndAuctionList(t *testing.T) {
	s := newTestState(t)
	bid := &market.Offer{
		ID:        market.BidOfferID(1),
		Kind:      market.OfferKindBid,
		AuctionID: 4,
		From:      testAddr(0x02),
		To:        testAddr(0x01),
		Amount:    big.NewInt(55),
		Expiry:    5_000,
		CreatedAt: 1_000,
	}
	counter := &market.Offer{
		ID:        market.CounterOfferID(testAddr(0x01), bid.ID),
		Kind:      market.OfferKindCounter,
		AuctionID: 4,
		ParentBid: bid.ID,
		From:      testAddr(0x01),
		To:        testAddr(0x02),
		Amount:    big.NewInt(80),
		Expiry:    6_000,
		CreatedAt: 1_100,
	}
	require.NoError(t, s.OfferPut(bid))
	require.NoError(t, s.OfferPut(counter))
	require.NoError(t, s.AuctionOffersAppend(4, bid.ID))
	require.NoError(t, s.AuctionOffersAppend(4, counter.ID))

	got, ok := s.OfferGet(counter.ID)
	require.True(t, ok)
	require.Equal(t, market.OfferKindCounter, got.Kind)
	require.Equal(t, bid.ID, got.ParentBid)
	require.Equal(t, testAddr(0x02), got.Bidder())

	ids, err := s.AuctionOffersList(4)
	require.NoError(t, err)
	require.ElementsMatch(t, [][32]byte{bid.ID, counter.ID}, ids)

	require.NoError(t, s.AuctionOffersClear(4))
	ids, err = s.AuctionOffersList(4)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestListingIndexes(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.ListingPut(&market.Listing{ID: 1, OrderID: 10, Kind: vault.SaleKindTrade}))
	require.NoError(t, s.ListingPut(&market.Listing{ID: 2, OrderID: 11, Kind: vault.SaleKindAuction}))
	require.NoError(t, s.ListingIndexAppend(1))
	require.NoError(t, s.ListingIndexAppend(2))
	require.NoError(t, s.TradeIndexAppend(1))

	all, err := s.ListingIndexList()
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{1, 2}, all)

	trades, err := s.TradeIndexList()
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, trades)

	require.NoError(t, s.ListingIndexRemove(1))
	require.NoError(t, s.TradeIndexRemove(1))
	require.NoError(t, s.ListingDelete(1))

	all, err = s.ListingIndexList()
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, all)

	trades, err = s.TradeIndexList()
	require.NoError(t, err)
	require.Empty(t, trades)

	listing, ok := s.ListingGet(2)
	require.True(t, ok)
	require.Equal(t, vault.SaleKindAuction, listing.Kind)
}

func TestWhitelist(t *testing.T) {
	s := newTestState(t)
	a := testAddr(0x10)
	b := testAddr(0x11)

	require.NoError(t, s.WhitelistAdd(a))
	require.NoError(t, s.WhitelistAdd(a)) // idempotent
	require.NoError(t, s.WhitelistAdd(b))

	ok, err := s.WhitelistContains(a)
	require.NoError(t, err)
	require.True(t, ok)

	list, err := s.WhitelistList()
	require.NoError(t, err)
	require.ElementsMatch(t, [][20]byte{a, b}, list)

	require.NoError(t, s.WhitelistRemove(a))
	ok, err = s.WhitelistContains(a)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSequencesAreIndependent(t *testing.T) {
	s := newTestState(t)

	id, err := s.NextSaleID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	id, err = s.NextSaleID()
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)

	id, err = s.NextAuctionID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	id, err = s.NextListingID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	id, err = s.NextBidSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
}

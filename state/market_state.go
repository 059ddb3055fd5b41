package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/Namit1867/NFT-Marketplace/native/common"
	"github.com/Namit1867/NFT-Marketplace/native/market"
	"github.com/Namit1867/NFT-Marketplace/native/token"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
	"github.com/Namit1867/NFT-Marketplace/storage"
)

// Key prefixes. Every record type lives in its own keyspace so deletes can
// never collide across entities.
var (
	keyCustodyPrefix      = []byte("vault/custody/")
	keyCustodyIndexPrefix = []byte("vault/custody/owner/")
	keyStableCreditPrefix = []byte("vault/credit/")
	keySalePrefix         = []byte("market/sale/")
	keyAuctionPrefix      = []byte("market/auction/")
	keyOfferPrefix        = []byte("market/offer/")
	keyAuctionOffersPref  = []byte("market/auction/offers/")
	keyListingPrefix      = []byte("market/listing/")
	keyListingIndex       = []byte("market/listings")
	keyTradeIndex         = []byte("market/listings/trade")
	keyWhitelist          = []byte("market/whitelist")
	keySeqPrefix          = []byte("market/seq/")
)

// MarketState adapts a storage.Database to the state interfaces consumed by
// the vault and marketplace engines. Values are stored as JSON documents with
// hex-encoded addresses and identifiers.
type MarketState struct {
	db storage.Database
}

// NewMarketState wraps the supplied database.
func NewMarketState(db storage.Database) *MarketState {
	return &MarketState{db: db}
}

func (s *MarketState) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MarketState) putJSON(key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Put(key, raw)
}

func appendKey(prefix []byte, suffix string) []byte {
	key := make([]byte, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	return append(key, suffix...)
}

func encodeAddr(a [20]byte) string { return hex.EncodeToString(a[:]) }

func decodeAddr(s string) ([20]byte, error) {
	var a [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, err
	}
	if len(raw) != 20 {
		return a, fmt.Errorf("state: invalid address length %d", len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

func encodeHash(h [32]byte) string { return hex.EncodeToString(h[:]) }

func decodeHash(s string) ([32]byte, error) {
	var h [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(raw) != 32 {
		return h, fmt.Errorf("state: invalid hash length %d", len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func encodeBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("state: invalid big integer %q", s)
	}
	return v, nil
}

// --- Custody ----------------------------------------------------------------

type custodyDoc struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Contract  string `json:"contract"`
	TokenID   string `json:"tokenId"`
	Standard  uint8  `json:"standard"`
	OrderID   uint64 `json:"orderId"`
	Kind      uint8  `json:"kind"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *MarketState) CustodyPut(rec *vault.CustodyRecord) error {
	sanitized, err := vault.SanitizeCustodyRecord(rec)
	if err != nil {
		return err
	}
	doc := custodyDoc{
		ID:        encodeHash(sanitized.ID),
		Owner:     encodeAddr(sanitized.Owner),
		Contract:  encodeAddr(sanitized.Contract),
		TokenID:   encodeBig(sanitized.TokenID),
		Standard:  uint8(sanitized.Standard),
		OrderID:   sanitized.OrderID,
		Kind:      uint8(sanitized.Kind),
		CreatedAt: sanitized.CreatedAt,
	}
	return s.putJSON(appendKey(keyCustodyPrefix, doc.ID), doc)
}

func (s *MarketState) CustodyGet(id [32]byte) (*vault.CustodyRecord, bool) {
	var doc custodyDoc
	ok, err := s.getJSON(appendKey(keyCustodyPrefix, encodeHash(id)), &doc)
	if err != nil || !ok {
		return nil, false
	}
	rec, err := doc.record()
	if err != nil {
		return nil, false
	}
	return rec, true
}

func (doc custodyDoc) record() (*vault.CustodyRecord, error) {
	id, err := decodeHash(doc.ID)
	if err != nil {
		return nil, err
	}
	owner, err := decodeAddr(doc.Owner)
	if err != nil {
		return nil, err
	}
	contract, err := decodeAddr(doc.Contract)
	if err != nil {
		return nil, err
	}
	tokenID, err := decodeBig(doc.TokenID)
	if err != nil {
		return nil, err
	}
	return &vault.CustodyRecord{
		ID:        id,
		Owner:     owner,
		Contract:  contract,
		TokenID:   tokenID,
		Standard:  token.Standard(doc.Standard),
		OrderID:   doc.OrderID,
		Kind:      vault.SaleKind(doc.Kind),
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *MarketState) CustodyDelete(id [32]byte) error {
	return s.db.Delete(appendKey(keyCustodyPrefix, encodeHash(id)))
}

func (s *MarketState) custodyIndex(owner [20]byte) (*common.IndexedSet[string], error) {
	var items []string
	if _, err := s.getJSON(appendKey(keyCustodyIndexPrefix, encodeAddr(owner)), &items); err != nil {
		return nil, err
	}
	return common.RestoreIndexedSet(items), nil
}

func (s *MarketState) storeCustodyIndex(owner [20]byte, set *common.IndexedSet[string]) error {
	key := appendKey(keyCustodyIndexPrefix, encodeAddr(owner))
	if set.Len() == 0 {
		return s.db.Delete(key)
	}
	items, _ := set.Snapshot()
	return s.putJSON(key, items)
}

func (s *MarketState) CustodyIndexAppend(owner [20]byte, id [32]byte) error {
	set, err := s.custodyIndex(owner)
	if err != nil {
		return err
	}
	set.Append(encodeHash(id))
	return s.storeCustodyIndex(owner, set)
}

func (s *MarketState) CustodyIndexRemove(owner [20]byte, id [32]byte) error {
	set, err := s.custodyIndex(owner)
	if err != nil {
		return err
	}
	if !set.Remove(encodeHash(id)) {
		return fmt.Errorf("state: custody id not indexed for owner")
	}
	return s.storeCustodyIndex(owner, set)
}

func (s *MarketState) CustodyIndexList(owner [20]byte) ([][32]byte, error) {
	set, err := s.custodyIndex(owner)
	if err != nil {
		return nil, err
	}
	items := set.Items()
	out := make([][32]byte, 0, len(items))
	for _, item := range items {
		id, err := decodeHash(item)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// --- Stable credits ---------------------------------------------------------

func (s *MarketState) StableCredit(addr [20]byte) (*big.Int, error) {
	var doc string
	ok, err := s.getJSON(appendKey(keyStableCreditPrefix, encodeAddr(addr)), &doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return decodeBig(doc)
}

func (s *MarketState) SetStableCredit(addr [20]byte, amount *big.Int) error {
	key := appendKey(keyStableCreditPrefix, encodeAddr(addr))
	if amount == nil || amount.Sign() == 0 {
		return s.db.Delete(key)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative stable credit")
	}
	return s.putJSON(key, encodeBig(amount))
}

// --- Sale orders ------------------------------------------------------------

type saleDoc struct {
	ID        uint64 `json:"id"`
	ListingID uint64 `json:"listingId"`
	Contract  string `json:"contract"`
	TokenID   string `json:"tokenId"`
	Standard  uint8  `json:"standard"`
	Price     string `json:"price"`
	Currency  uint8  `json:"currency"`
	Owner     string `json:"owner"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *MarketState) SalePut(order *market.SaleOrder) error {
	sanitized, err := market.SanitizeSaleOrder(order)
	if err != nil {
		return err
	}
	doc := saleDoc{
		ID:        sanitized.ID,
		ListingID: sanitized.ListingID,
		Contract:  encodeAddr(sanitized.Contract),
		TokenID:   encodeBig(sanitized.TokenID),
		Standard:  uint8(sanitized.Standard),
		Price:     encodeBig(sanitized.Price),
		Currency:  uint8(sanitized.Currency),
		Owner:     encodeAddr(sanitized.Owner),
		CreatedAt: sanitized.CreatedAt,
	}
	return s.putJSON(appendKey(keySalePrefix, strconv.FormatUint(doc.ID, 10)), doc)
}

func (s *MarketState) SaleGet(id uint64) (*market.SaleOrder, bool) {
	var doc saleDoc
	ok, err := s.getJSON(appendKey(keySalePrefix, strconv.FormatUint(id, 10)), &doc)
	if err != nil || !ok {
		return nil, false
	}
	contract, err := decodeAddr(doc.Contract)
	if err != nil {
		return nil, false
	}
	owner, err := decodeAddr(doc.Owner)
	if err != nil {
		return nil, false
	}
	tokenID, err := decodeBig(doc.TokenID)
	if err != nil {
		return nil, false
	}
	price, err := decodeBig(doc.Price)
	if err != nil {
		return nil, false
	}
	return &market.SaleOrder{
		ID:        doc.ID,
		ListingID: doc.ListingID,
		Contract:  contract,
		TokenID:   tokenID,
		Standard:  token.Standard(doc.Standard),
		Price:     price,
		Currency:  vault.Currency(doc.Currency),
		Owner:     owner,
		CreatedAt: doc.CreatedAt,
	}, true
}

func (s *MarketState) SaleDelete(id uint64) error {
	return s.db.Delete(appendKey(keySalePrefix, strconv.FormatUint(id, 10)))
}

// --- Auctions ---------------------------------------------------------------

type auctionDoc struct {
	ID            uint64 `json:"id"`
	ListingID     uint64 `json:"listingId"`
	Contract      string `json:"contract"`
	TokenID       string `json:"tokenId"`
	Standard      uint8  `json:"standard"`
	Owner         string `json:"owner"`
	StartTime     int64  `json:"startTime"`
	EndTime       int64  `json:"endTime"`
	BasePrice     string `json:"basePrice"`
	ReservePrice  string `json:"reservePrice"`
	BuyPrice      string `json:"buyPrice"`
	MinIncrement  string `json:"minIncrement"`
	HighestBid    string `json:"highestBid"`
	HighestBidder string `json:"highestBidder"`
	HighestOffer  string `json:"highestOffer"`
}

func (s *MarketState) AuctionPut(a *market.Auction) error {
	sanitized, err := market.SanitizeAuction(a)
	if err != nil {
		return err
	}
	doc := auctionDoc{
		ID:            sanitized.ID,
		ListingID:     sanitized.ListingID,
		Contract:      encodeAddr(sanitized.Contract),
		TokenID:       encodeBig(sanitized.TokenID),
		Standard:      uint8(sanitized.Standard),
		Owner:         encodeAddr(sanitized.Owner),
		StartTime:     sanitized.StartTime,
		EndTime:       sanitized.EndTime,
		BasePrice:     encodeBig(sanitized.BasePrice),
		ReservePrice:  encodeBig(sanitized.ReservePrice),
		BuyPrice:      encodeBig(sanitized.BuyPrice),
		MinIncrement:  encodeBig(sanitized.MinIncrement),
		HighestBid:    encodeBig(sanitized.HighestBid),
		HighestBidder: encodeAddr(sanitized.HighestBidder),
		HighestOffer:  encodeHash(sanitized.HighestOffer),
	}
	return s.putJSON(appendKey(keyAuctionPrefix, strconv.FormatUint(doc.ID, 10)), doc)
}

func (s *MarketState) AuctionGet(id uint64) (*market.Auction, bool) {
	var doc auctionDoc
	ok, err := s.getJSON(appendKey(keyAuctionPrefix, strconv.FormatUint(id, 10)), &doc)
	if err != nil || !ok {
		return nil, false
	}
	auction, err := doc.auction()
	if err != nil {
		return nil, false
	}
	return auction, true
}

func (doc auctionDoc) auction() (*market.Auction, error) {
	contract, err := decodeAddr(doc.Contract)
	if err != nil {
		return nil, err
	}
	owner, err := decodeAddr(doc.Owner)
	if err != nil {
		return nil, err
	}
	bidder, err := decodeAddr(doc.HighestBidder)
	if err != nil {
		return nil, err
	}
	offer, err := decodeHash(doc.HighestOffer)
	if err != nil {
		return nil, err
	}
	tokenID, err := decodeBig(doc.TokenID)
	if err != nil {
		return nil, err
	}
	base, err := decodeBig(doc.BasePrice)
	if err != nil {
		return nil, err
	}
	reserve, err := decodeBig(doc.ReservePrice)
	if err != nil {
		return nil, err
	}
	buy, err := decodeBig(doc.BuyPrice)
	if err != nil {
		return nil, err
	}
	increment, err := decodeBig(doc.MinIncrement)
	if err != nil {
		return nil, err
	}
	highest, err := decodeBig(doc.HighestBid)
	if err != nil {
		return nil, err
	}
	return &market.Auction{
		ID:            doc.ID,
		ListingID:     doc.ListingID,
		Contract:      contract,
		TokenID:       tokenID,
		Standard:      token.Standard(doc.Standard),
		Owner:         owner,
		StartTime:     doc.StartTime,
		EndTime:       doc.EndTime,
		BasePrice:     base,
		ReservePrice:  reserve,
		BuyPrice:      buy,
		MinIncrement:  increment,
		HighestBid:    highest,
		HighestBidder: bidder,
		HighestOffer:  offer,
	}, nil
}

func (s *MarketState) AuctionDelete(id uint64) error {
	return s.db.Delete(appendKey(keyAuctionPrefix, strconv.FormatUint(id, 10)))
}

// --- Offers -----------------------------------------------------------------

type offerDoc struct {
	ID        string `json:"id"`
	Kind      uint8  `json:"kind"`
	AuctionID uint64 `json:"auctionId"`
	ParentBid string `json:"parentBid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Expiry    int64  `json:"expiry"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *MarketState) OfferPut(o *market.Offer) error {
	if o == nil {
		return fmt.Errorf("state: nil offer")
	}
	doc := offerDoc{
		ID:        encodeHash(o.ID),
		Kind:      uint8(o.Kind),
		AuctionID: o.AuctionID,
		ParentBid: encodeHash(o.ParentBid),
		From:      encodeAddr(o.From),
		To:        encodeAddr(o.To),
		Amount:    encodeBig(o.Amount),
		Expiry:    o.Expiry,
		CreatedAt: o.CreatedAt,
	}
	return s.putJSON(appendKey(keyOfferPrefix, doc.ID), doc)
}

func (s *MarketState) OfferGet(id [32]byte) (*market.Offer, bool) {
	var doc offerDoc
	ok, err := s.getJSON(appendKey(keyOfferPrefix, encodeHash(id)), &doc)
	if err != nil || !ok {
		return nil, false
	}
	parent, err := decodeHash(doc.ParentBid)
	if err != nil {
		return nil, false
	}
	from, err := decodeAddr(doc.From)
	if err != nil {
		return nil, false
	}
	to, err := decodeAddr(doc.To)
	if err != nil {
		return nil, false
	}
	amount, err := decodeBig(doc.Amount)
	if err != nil {
		return nil, false
	}
	return &market.Offer{
		ID:        id,
		Kind:      market.OfferKind(doc.Kind),
		AuctionID: doc.AuctionID,
		ParentBid: parent,
		From:      from,
		To:        to,
		Amount:    amount,
		Expiry:    doc.Expiry,
		CreatedAt: doc.CreatedAt,
	}, true
}

func (s *MarketState) OfferDelete(id [32]byte) error {
	return s.db.Delete(appendKey(keyOfferPrefix, encodeHash(id)))
}

func (s *MarketState) auctionOffers(auctionID uint64) (*common.IndexedSet[string], []byte, error) {
	key := appendKey(keyAuctionOffersPref, strconv.FormatUint(auctionID, 10))
	var items []string
	if _, err := s.getJSON(key, &items); err != nil {
		return nil, nil, err
	}
	return common.RestoreIndexedSet(items), key, nil
}

func (s *MarketState) AuctionOffersAppend(auctionID uint64, offerID [32]byte) error {
	set, key, err := s.auctionOffers(auctionID)
	if err != nil {
		return err
	}
	set.Append(encodeHash(offerID))
	items, _ := set.Snapshot()
	return s.putJSON(key, items)
}

func (s *MarketState) AuctionOffersList(auctionID uint64) ([][32]byte, error) {
	set, _, err := s.auctionOffers(auctionID)
	if err != nil {
		return nil, err
	}
	items := set.Items()
	out := make([][32]byte, 0, len(items))
	for _, item := range items {
		id, err := decodeHash(item)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *MarketState) AuctionOffersClear(auctionID uint64) error {
	return s.db.Delete(appendKey(keyAuctionOffersPref, strconv.FormatUint(auctionID, 10)))
}

// --- Listings ---------------------------------------------------------------

type listingDoc struct {
	ID      uint64 `json:"id"`
	OrderID uint64 `json:"orderId"`
	Kind    uint8  `json:"kind"`
}

func (s *MarketState) ListingPut(l *market.Listing) error {
	if l == nil {
		return fmt.Errorf("state: nil listing")
	}
	doc := listingDoc{ID: l.ID, OrderID: l.OrderID, Kind: uint8(l.Kind)}
	return s.putJSON(appendKey(keyListingPrefix, strconv.FormatUint(l.ID, 10)), doc)
}

func (s *MarketState) ListingGet(id uint64) (*market.Listing, bool) {
	var doc listingDoc
	ok, err := s.getJSON(appendKey(keyListingPrefix, strconv.FormatUint(id, 10)), &doc)
	if err != nil || !ok {
		return nil, false
	}
	return &market.Listing{ID: doc.ID, OrderID: doc.OrderID, Kind: vault.SaleKind(doc.Kind)}, true
}

func (s *MarketState) ListingDelete(id uint64) error {
	return s.db.Delete(appendKey(keyListingPrefix, strconv.FormatUint(id, 10)))
}

func (s *MarketState) idIndex(key []byte) (*common.IndexedSet[uint64], error) {
	var items []uint64
	if _, err := s.getJSON(key, &items); err != nil {
		return nil, err
	}
	return common.RestoreIndexedSet(items), nil
}

func (s *MarketState) storeIDIndex(key []byte, set *common.IndexedSet[uint64]) error {
	if set.Len() == 0 {
		return s.db.Delete(key)
	}
	items, _ := set.Snapshot()
	return s.putJSON(key, items)
}

func (s *MarketState) ListingIndexAppend(id uint64) error {
	set, err := s.idIndex(keyListingIndex)
	if err != nil {
		return err
	}
	set.Append(id)
	return s.storeIDIndex(keyListingIndex, set)
}

func (s *MarketState) ListingIndexRemove(id uint64) error {
	set, err := s.idIndex(keyListingIndex)
	if err != nil {
		return err
	}
	set.Remove(id)
	return s.storeIDIndex(keyListingIndex, set)
}

func (s *MarketState) ListingIndexList() ([]uint64, error) {
	set, err := s.idIndex(keyListingIndex)
	if err != nil {
		return nil, err
	}
	return set.Items(), nil
}

func (s *MarketState) TradeIndexAppend(id uint64) error {
	set, err := s.idIndex(keyTradeIndex)
	if err != nil {
		return err
	}
	set.Append(id)
	return s.storeIDIndex(keyTradeIndex, set)
}

func (s *MarketState) TradeIndexRemove(id uint64) error {
	set, err := s.idIndex(keyTradeIndex)
	if err != nil {
		return err
	}
	set.Remove(id)
	return s.storeIDIndex(keyTradeIndex, set)
}

func (s *MarketState) TradeIndexList() ([]uint64, error) {
	set, err := s.idIndex(keyTradeIndex)
	if err != nil {
		return nil, err
	}
	return set.Items(), nil
}

// --- Whitelist --------------------------------------------------------------

func (s *MarketState) whitelist() (*common.IndexedSet[string], error) {
	var items []string
	if _, err := s.getJSON(keyWhitelist, &items); err != nil {
		return nil, err
	}
	return common.RestoreIndexedSet(items), nil
}

func (s *MarketState) storeWhitelist(set *common.IndexedSet[string]) error {
	if set.Len() == 0 {
		return s.db.Delete(keyWhitelist)
	}
	items, _ := set.Snapshot()
	return s.putJSON(keyWhitelist, items)
}

func (s *MarketState) WhitelistAdd(addr [20]byte) error {
	set, err := s.whitelist()
	if err != nil {
		return err
	}
	set.Append(encodeAddr(addr))
	return s.storeWhitelist(set)
}

func (s *MarketState) WhitelistRemove(addr [20]byte) error {
	set, err := s.whitelist()
	if err != nil {
		return err
	}
	set.Remove(encodeAddr(addr))
	return s.storeWhitelist(set)
}

func (s *MarketState) WhitelistContains(addr [20]byte) (bool, error) {
	set, err := s.whitelist()
	if err != nil {
		return false, err
	}
	return set.Contains(encodeAddr(addr)), nil
}

func (s *MarketState) WhitelistList() ([][20]byte, error) {
	set, err := s.whitelist()
	if err != nil {
		return nil, err
	}
	items := set.Items()
	out := make([][20]byte, 0, len(items))
	for _, item := range items {
		addr, err := decodeAddr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// --- Sequences --------------------------------------------------------------

func (s *MarketState) nextSeq(name string) (uint64, error) {
	key := appendKey(keySeqPrefix, name)
	var current uint64
	if _, err := s.getJSON(key, &current); err != nil {
		return 0, err
	}
	current++
	if err := s.putJSON(key, current); err != nil {
		return 0, err
	}
	return current, nil
}

func (s *MarketState) NextListingID() (uint64, error) { return s.nextSeq("listing") }

func (s *MarketState) NextSaleID() (uint64, error) { return s.nextSeq("sale") }

func (s *MarketState) NextAuctionID() (uint64, error) { return s.nextSeq("auction") }

func (s *MarketState) NextBidSeq() (uint64, error) { return s.nextSeq("bid") }

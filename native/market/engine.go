package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Namit1867/NFT-Marketplace/core/events"
	"github.com/Namit1867/NFT-Marketplace/core/types"
	"github.com/Namit1867/NFT-Marketplace/native/common"
	"github.com/Namit1867/NFT-Marketplace/native/token"
	"github.com/Namit1867/NFT-Marketplace/native/vault"
)

var (
	errNilState        = errors.New("market engine: state not configured")
	errNilVault        = errors.New("market engine: vault not configured")
	errNilRegistry     = errors.New("market engine: token registry not configured")
	errNilStable       = errors.New("market engine: stablecoin not configured")
	errSaleNotFound    = errors.New("market engine: sale order not found")
	errAuctionNotFound = errors.New("market engine: auction not found")
	errOfferNotFound   = errors.New("market engine: offer not found")
	errNotAdmin        = errors.New("market engine: caller is not the contract owner")
	errReentrant       = errors.New("market engine: settlement already in progress")
)

const (
	minAuctionDuration int64 = 24 * 60 * 60
	maxAuctionDuration int64 = 30 * 24 * 60 * 60
	minBidHold         int64 = 24 * 60 * 60
	maxBidHold         int64 = 30 * 24 * 60 * 60

	feeDenominator = 10_000
)

type engineState interface {
	SalePut(*SaleOrder) error
	SaleGet(id uint64) (*SaleOrder, bool)
	SaleDelete(id uint64) error

	AuctionPut(*Auction) error
	AuctionGet(id uint64) (*Auction, bool)
	AuctionDelete(id uint64) error

	OfferPut(*Offer) error
	OfferGet(id [32]byte) (*Offer, bool)
	OfferDelete(id [32]byte) error
	AuctionOffersAppend(auctionID uint64, offerID [32]byte) error
	AuctionOffersList(auctionID uint64) ([][32]byte, error)
	AuctionOffersClear(auctionID uint64) error

	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool)
	ListingDelete(id uint64) error
	ListingIndexAppend(id uint64) error
	ListingIndexRemove(id uint64) error
	ListingIndexList() ([]uint64, error)
	TradeIndexAppend(id uint64) error
	TradeIndexRemove(id uint64) error
	TradeIndexList() ([]uint64, error)

	WhitelistAdd(addr [20]byte) error
	WhitelistRemove(addr [20]byte) error
	WhitelistContains(addr [20]byte) (bool, error)
	WhitelistList() ([][20]byte, error)

	NextListingID() (uint64, error)
	NextSaleID() (uint64, error)
	NextAuctionID() (uint64, error)
	NextBidSeq() (uint64, error)
}

// Vault is the only escrow surface the marketplace is allowed to drive.
type Vault interface {
	DepositAsset(caller [20]byte, orderID uint64, owner, contract [20]byte, tokenID *big.Int, standard token.Standard, kind vault.SaleKind) ([32]byte, error)
	ReleaseAsset(caller [20]byte, orderID uint64, recipient, contract [20]byte, tokenID *big.Int, standard token.Standard) error
	MoveCurrency(caller, sender, recipient [20]byte, amount *big.Int, currency vault.Currency, dir vault.Direction, value *big.Int) error
	IsAuthorized(addr [20]byte) bool
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine implements the order, auction and whitelist state machines on top of
// the vault's custody and currency primitives.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	mode     common.ModeView
	nowFn    func() int64
	registry token.Registry
	stable   token.ERC20

	escrow    Vault
	vaultAddr [20]byte

	address  [20]byte
	admin    [20]byte
	treasury [20]byte

	tradeFeeBps   uint32
	auctionFeeBps uint32
	bidTimeBuffer int64

	settling bool
}

// NewEngine creates a marketplace engine bound to its own deployed address and
// the administrating owner.
func NewEngine(admin, address [20]byte) *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
		address:       address,
		admin:         admin,
		tradeFeeBps:   250,
		auctionFeeBps: 250,
		bidTimeBuffer: 10 * 60,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault wires the escrow collaborator and its deployed address. The address
// doubles as the initiator tag for vault-driven cancellations.
func (e *Engine) SetVault(v Vault, addr [20]byte) {
	e.escrow = v
	e.vaultAddr = addr
}

// SetMode configures the shared system mode view.
func (e *Engine) SetMode(view common.ModeView) { e.mode = view }

// SetRegistry configures the deployed-contract registry.
func (e *Engine) SetRegistry(r token.Registry) { e.registry = r }

// SetStablecoin configures the settlement stablecoin used for solvency checks.
func (e *Engine) SetStablecoin(c token.ERC20) { e.stable = c }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the marketplace's own address.
func (e *Engine) Address() [20]byte { return e.address }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if caller != e.admin {
		return errNotAdmin
	}
	return nil
}

// enterSettlement is the call-depth guard wrapping every operation that moves
// both an asset and funds in a single invocation.
func (e *Engine) enterSettlement() error {
	if e.settling {
		return errReentrant
	}
	e.settling = true
	return nil
}

func (e *Engine) exitSettlement() { e.settling = false }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.escrow == nil {
		return errNilVault
	}
	if e.registry == nil {
		return errNilRegistry
	}
	return nil
}

// feeCut returns floor(amount*bps/10000). The seller remainder is always the
// exact difference so the split conserves the settled amount.
func feeCut(amount *big.Int, bps uint32) *big.Int {
	cut := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return cut.Div(cut, big.NewInt(feeDenominator))
}

// verifyAssetOwner checks the named party currently holds the unit and the
// contract answers the standard-support probe.
func (e *Engine) verifyAssetOwner(owner, contract [20]byte, tokenID *big.Int, standard token.Standard) error {
	switch standard {
	case token.StandardERC721:
		col, ok := e.registry.ERC721(contract)
		if !ok {
			return fmt.Errorf("market: no single-unit contract at %x", contract)
		}
		if !col.SupportsStandard(token.StandardERC721) {
			return fmt.Errorf("market: contract does not support the asset standard")
		}
		current, err := col.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if current != owner {
			return fmt.Errorf("market: caller does not hold the token")
		}
	case token.StandardERC1155:
		col, ok := e.registry.ERC1155(contract)
		if !ok {
			return fmt.Errorf("market: no multi-unit contract at %x", contract)
		}
		if !col.SupportsStandard(token.StandardERC1155) {
			return fmt.Errorf("market: contract does not support the asset standard")
		}
		bal, err := col.BalanceOf(owner, tokenID)
		if err != nil {
			return err
		}
		if bal.Sign() <= 0 {
			return fmt.Errorf("market: caller does not hold the token")
		}
	default:
		return fmt.Errorf("market: unsupported asset standard %d", standard)
	}
	return nil
}

// checkSolvency verifies the party holds and has approved at least amount of
// the settlement stablecoin for the vault.
func (e *Engine) checkSolvency(party [20]byte, amount *big.Int) error {
	if e.stable == nil {
		return errNilStable
	}
	bal, err := e.stable.BalanceOf(party)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("market: insufficient stable balance")
	}
	allw, err := e.stable.Allowance(party, e.vaultAddr)
	if err != nil {
		return err
	}
	if allw.Cmp(amount) < 0 {
		return fmt.Errorf("market: insufficient stable allowance")
	}
	return nil
}

func (e *Engine) unlist(listingID uint64, kind vault.SaleKind) error {
	if err := e.state.ListingIndexRemove(listingID); err != nil {
		return err
	}
	if kind == vault.SaleKindTrade {
		if err := e.state.TradeIndexRemove(listingID); err != nil {
			return err
		}
	}
	return e.state.ListingDelete(listingID)
}

// --- Fixed-price sales ------------------------------------------------------

// CreateSaleOrder lists an asset at a fixed price, depositing it into the
// vault. The asset contract must be whitelisted and the caller must hold the
// unit.
func (e *Engine) CreateSaleOrder(caller, contract [20]byte, tokenID *big.Int, standard token.Standard, price *big.Int, currency vault.Currency) (uint64, error) {
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
	if price == nil || price.Sign() <= 0 {
		return 0, fmt.Errorf("market: price must be positive")
	}
	if !currency.Valid() {
		return 0, fmt.Errorf("market: unsupported currency %d", currency)
	}
	listed, err := e.state.WhitelistContains(contract)
	if err != nil {
		return 0, err
	}
	if !listed {
		return 0, fmt.Errorf("market: asset contract not whitelisted")
	}
	if err := e.verifyAssetOwner(caller, contract, tokenID, standard); err != nil {
		return 0, err
	}
	saleID, err := e.state.NextSaleID()
	if err != nil {
		return 0, err
	}
	listingID, err := e.state.NextListingID()
	if err != nil {
		return 0, err
	}
	if _, err := e.escrow.DepositAsset(e.address, saleID, caller, contract, tokenID, standard, vault.SaleKindTrade); err != nil {
		return 0, err
	}
	if err := e.state.ListingPut(&Listing{ID: listingID, OrderID: saleID, Kind: vault.SaleKindTrade}); err != nil {
		return 0, err
	}
	if err := e.state.ListingIndexAppend(listingID); err != nil {
		return 0, err
	}
	if err := e.state.TradeIndexAppend(listingID); err != nil {
		return 0, err
	}
	order := &SaleOrder{
		ID:        saleID,
		ListingID: listingID,
		Contract:  contract,
		TokenID:   new(big.Int).Set(tokenID),
		Standard:  standard,
		Price:     new(big.Int).Set(price),
		Currency:  currency,
		Owner:     caller,
		CreatedAt: e.now(),
	}
	if err := e.state.SalePut(order); err != nil {
		return 0, err
	}
	e.emit(NewSaleCreatedEvent(order))
	return saleID, nil
}

// UpdateSaleOrderPrice changes the asking price of a live listing. Owner only.
func (e *Engine) UpdateSaleOrderPrice(caller [20]byte, orderID uint64, price *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return err
	}
	if price == nil || price.Sign() <= 0 {
		return fmt.Errorf("market: price must be positive")
	}
	order, ok := e.state.SaleGet(orderID)
	if !ok {
		return errSaleNotFound
	}
	if order.Owner != caller {
		return fmt.Errorf("market: caller is not the order owner")
	}
	if _, ok := e.state.ListingGet(order.ListingID); !ok {
		return fmt.Errorf("market: listing no longer active")
	}
	order.Price = new(big.Int).Set(price)
	if err := e.state.SalePut(order); err != nil {
		return err
	}
	e.emit(NewSalePriceUpdatedEvent(order))
	return nil
}

// CancelSell delists a sale order and returns the asset. The vault invokes
// this with itself as initiator during an emergency withdrawal; that path
// bypasses the owner check and skips the release, which the vault already
// performed.
func (e *Engine) CancelSell(orderID uint64, initiator [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	order, ok := e.state.SaleGet(orderID)
	if !ok {
		return errSaleNotFound
	}
	vaultInitiated := initiator == e.vaultAddr && e.vaultAddr != ([20]byte{})
	if !vaultInitiated {
		if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
			return err
		}
		if order.Owner != initiator {
			return fmt.Errorf("market: caller is not the order owner")
		}
		if e.escrow == nil {
			return errNilVault
		}
		if err := e.escrow.ReleaseAsset(e.address, orderID, order.Owner, order.Contract, order.TokenID, order.Standard); err != nil {
			return err
		}
	}
	if err := e.unlist(order.ListingID, vault.SaleKindTrade); err != nil {
		return err
	}
	// Deletion is unconditional; it must not depend on the listing index
	// position.
	if err := e.state.SaleDelete(orderID); err != nil {
		return err
	}
	e.emit(NewSaleCancelledEvent(order, vaultInitiated))
	return nil
}

// BuyOrder settles a fixed-price sale: funds in, fee split out, asset to the
// buyer, listing removed. Native-currency overpayment is refunded by exact
// difference.
func (e *Engine) BuyOrder(caller [20]byte, orderID uint64, value *big.Int) error {
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
	order, ok := e.state.SaleGet(orderID)
	if !ok {
		return errSaleNotFound
	}
	if order.Owner == caller {
		return fmt.Errorf("market: owner cannot buy own listing")
	}
	price := order.Price
	cut := feeCut(price, e.tradeFeeBps)
	remainder := new(big.Int).Sub(price, cut)
	switch order.Currency {
	case vault.CurrencyStable:
		if err := e.escrow.MoveCurrency(e.address, caller, caller, price, vault.CurrencyStable, vault.DirectionIncoming, nil); err != nil {
			return err
		}
		if cut.Sign() > 0 {
			if err := e.escrow.MoveCurrency(e.address, caller, e.treasury, cut, vault.CurrencyStable, vault.DirectionOutgoing, nil); err != nil {
				return err
			}
		}
		if err := e.escrow.MoveCurrency(e.address, caller, order.Owner, remainder, vault.CurrencyStable, vault.DirectionOutgoing, nil); err != nil {
			return err
		}
	case vault.CurrencyNative:
		if err := e.escrow.MoveCurrency(e.address, caller, caller, price, vault.CurrencyNative, vault.DirectionIncoming, value); err != nil {
			return err
		}
		if cut.Sign() > 0 {
			if err := e.escrow.MoveCurrency(e.address, caller, e.treasury, cut, vault.CurrencyNative, vault.DirectionOutgoing, nil); err != nil {
				return err
			}
		}
		if err := e.escrow.MoveCurrency(e.address, caller, order.Owner, remainder, vault.CurrencyNative, vault.DirectionOutgoing, nil); err != nil {
			return err
		}
		overpaid := new(big.Int).Sub(value, price)
		if overpaid.Sign() > 0 {
			if err := e.escrow.MoveCurrency(e.address, order.Owner, caller, overpaid, vault.CurrencyNative, vault.DirectionOutgoing, nil); err != nil {
				return err
			}
		}
	}
	if err := e.escrow.ReleaseAsset(e.address, orderID, caller, order.Contract, order.TokenID, order.Standard); err != nil {
		return err
	}
	if err := e.unlist(order.ListingID, vault.SaleKindTrade); err != nil {
		return err
	}
	if err := e.state.SaleDelete(orderID); err != nil {
		return err
	}
	e.emit(NewSalePurchasedEvent(order, caller, cut))
	return nil
}

// --- Whitelist --------------------------------------------------------------

// UpdateWhitelistStatus toggles listing eligibility for a batch of asset
// contracts. Only deployed contracts may be added; setting the current state
// again is a no-op per entry.
func (e *Engine) UpdateWhitelistStatus(caller [20]byte, contracts [][20]byte, whitelisted bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilRegistry
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	for _, addr := range contracts {
		if !e.registry.IsContract(addr) {
			return fmt.Errorf("market: %x is not a deployed contract", addr)
		}
		current, err := e.state.WhitelistContains(addr)
		if err != nil {
			return err
		}
		if current == whitelisted {
			continue
		}
		if whitelisted {
			if err := e.state.WhitelistAdd(addr); err != nil {
				return err
			}
		} else {
			if err := e.state.WhitelistRemove(addr); err != nil {
				return err
			}
		}
		e.emit(NewWhitelistUpdatedEvent(addr, whitelisted))
	}
	return nil
}

// --- Administrative surface -------------------------------------------------

// SetTreasury rotates the fee treasury address.
func (e *Engine) SetTreasury(caller, addr [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.treasury = addr
	return nil
}

// SetTradeFeeBps sets the fixed-price sale fee. Strictly positive.
func (e *Engine) SetTradeFeeBps(caller [20]byte, bps uint32) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if bps == 0 || bps > feeDenominator {
		return fmt.Errorf("market: fee bps out of range")
	}
	e.tradeFeeBps = bps
	return nil
}

// SetAuctionFeeBps sets the auction settlement fee. Strictly positive.
func (e *Engine) SetAuctionFeeBps(caller [20]byte, bps uint32) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if bps == 0 || bps > feeDenominator {
		return fmt.Errorf("market: fee bps out of range")
	}
	e.auctionFeeBps = bps
	return nil
}

// SetBidTimeBuffer sets the anti-snipe extension window in seconds.
func (e *Engine) SetBidTimeBuffer(caller [20]byte, secs int64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if secs <= 0 {
		return fmt.Errorf("market: time buffer must be positive")
	}
	e.bidTimeBuffer = secs
	return nil
}

// --- Views ------------------------------------------------------------------

// Listings returns every live listing id.
func (e *Engine) Listings() ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.ListingIndexList()
}

// TradeListings returns the live trade-only listing ids.
func (e *Engine) TradeListings() ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.TradeIndexList()
}

// Whitelisted returns the whitelisted asset contracts.
func (e *Engine) Whitelisted() ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.WhitelistList()
}

// SaleOrderByID returns the live sale order.
func (e *Engine) SaleOrderByID(id uint64) (*SaleOrder, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.SaleGet(id)
}

// AuctionByID returns the live auction.
func (e *Engine) AuctionByID(id uint64) (*Auction, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.AuctionGet(id)
}

// AuctionOffers returns the offer ids recorded against an auction.
func (e *Engine) AuctionOffers(auctionID uint64) ([][32]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.AuctionOffersList(auctionID)
}

// OfferByID returns a live bid or counter-offer.
func (e *Engine) OfferByID(id [32]byte) (*Offer, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.OfferGet(id)
}

// TradeFeeBps returns the fixed-price sale fee.
func (e *Engine) TradeFeeBps() uint32 { return e.tradeFeeBps }

// AuctionFeeBps returns the auction settlement fee.
func (e *Engine) AuctionFeeBps() uint32 { return e.auctionFeeBps }

// Treasury returns the fee treasury address.
func (e *Engine) Treasury() [20]byte { return e.treasury }

// BidTimeBuffer returns the anti-snipe window in seconds.
func (e *Engine) BidTimeBuffer() int64 { return e.bidTimeBuffer }

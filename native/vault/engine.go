package vault

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Namit1867/NFT-Marketplace/core/events"
	"github.com/Namit1867/NFT-Marketplace/core/types"
	"github.com/Namit1867/NFT-Marketplace/native/common"
	"github.com/Namit1867/NFT-Marketplace/native/token"
)

var (
	errNilState        = errors.New("vault engine: state not configured")
	errNilRegistry     = errors.New("vault engine: token registry not configured")
	errNilStable       = errors.New("vault engine: stablecoin not configured")
	errNilNative       = errors.New("vault engine: native ledger not configured")
	errCustodyNotFound = errors.New("vault engine: custody record not found")
	errUnauthorized    = errors.New("vault engine: caller not authorized")
	errNotAdmin        = errors.New("vault engine: caller is not the contract owner")
)

type engineState interface {
	CustodyPut(*CustodyRecord) error
	CustodyGet(id [32]byte) (*CustodyRecord, bool)
	CustodyDelete(id [32]byte) error
	CustodyIndexAppend(owner [20]byte, id [32]byte) error
	CustodyIndexRemove(owner [20]byte, id [32]byte) error
	CustodyIndexList(owner [20]byte) ([][32]byte, error)
	StableCredit(addr [20]byte) (*big.Int, error)
	SetStableCredit(addr [20]byte, amount *big.Int) error
}

// Marketplace is the narrow surface the vault drives during an emergency
// withdrawal so marketplace bookkeeping stays consistent with the forced
// release.
type Marketplace interface {
	CancelSell(orderID uint64, initiator [20]byte) error
	CancelAuction(auctionID uint64, initiator [20]byte) error
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine implements the custody and currency escrow. It holds NFTs and two
// fungible balances on behalf of marketplace orders and exposes the
// deposit/release/move primitives to authorized callers only.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	mode     *common.ModeSwitch
	nowFn    func() int64
	registry token.Registry
	native   token.NativeLedger

	address [20]byte
	admin   [20]byte

	stable     token.ERC20
	stableAddr [20]byte

	market     Marketplace
	marketAddr [20]byte

	unbundler      token.Unbundler
	composableAddr [20]byte

	authorized map[[20]byte]bool
}

// NewEngine creates a vault engine bound to its own deployed address and the
// administrating owner. Collaborators are wired through the setters below.
func NewEngine(admin, address [20]byte) *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		mode:       &common.ModeSwitch{},
		nowFn:      func() int64 { return time.Now().Unix() },
		address:    address,
		admin:      admin,
		authorized: make(map[[20]byte]bool),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the deployed-contract registry.
func (e *Engine) SetRegistry(r token.Registry) { e.registry = r }

// SetNativeLedger configures the native-coin ledger.
func (e *Engine) SetNativeLedger(l token.NativeLedger) { e.native = l }

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

// ModeSwitch exposes the two-state system mode shared with the marketplace.
func (e *Engine) ModeSwitch() *common.ModeSwitch { return e.mode }

// Address returns the vault's own address.
func (e *Engine) Address() [20]byte { return e.address }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
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

// --- Administrative surface -------------------------------------------------

// SetAuthorized flips the authorization flag for an address. Only authorized
// addresses may drive deposits and releases.
func (e *Engine) SetAuthorized(caller, addr [20]byte, ok bool) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.authorized[addr] = ok
	e.emit(NewAuthorizationUpdatedEvent(addr, ok))
	return nil
}

// IsAuthorized reports the authorization flag for an address.
func (e *Engine) IsAuthorized(addr [20]byte) bool {
	return e != nil && e.authorized[addr]
}

// Pause transitions the system into emergency mode, disabling ordinary order
// flow and enabling owner self-service withdrawal.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.mode.Set(common.ModeEmergency)
	e.emit(NewModeChangedEvent(common.ModeEmergency))
	return nil
}

// Unpause restores ordinary order flow.
func (e *Engine) Unpause(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.mode.Set(common.ModeNormal)
	e.emit(NewModeChangedEvent(common.ModeNormal))
	return nil
}

// RotateStablecoin points the vault at a new stablecoin deployment.
func (e *Engine) RotateStablecoin(caller, addr [20]byte, contract token.ERC20) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.stableAddr = addr
	e.stable = contract
	return nil
}

// RotateMarketplace points the vault at a new marketplace deployment. The
// marketplace address is the only caller allowed to move currency.
func (e *Engine) RotateMarketplace(caller, addr [20]byte, market Marketplace) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.marketAddr = addr
	e.market = market
	return nil
}

// RotateUnbundler points the vault at a new composable-unbundler deployment.
// Releases of assets minted by that contract delegate to its
// unbundle-and-burn entry point instead of a standard transfer.
func (e *Engine) RotateUnbundler(caller, addr [20]byte, u token.Unbundler) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.composableAddr = addr
	e.unbundler = u
	return nil
}

// --- Custody ----------------------------------------------------------------

// DepositAsset verifies ownership, pulls the asset unit into the vault and
// records custody keyed by (contract, tokenId, orderId). The whole call fails
// on any verification mismatch; no partial custody survives.
func (e *Engine) DepositAsset(caller [20]byte, orderID uint64, owner, contract [20]byte, tokenID *big.Int, standard token.Standard, kind SaleKind) ([32]byte, error) {
	if e == nil || e.state == nil {
		return [32]byte{}, errNilState
	}
	if e.registry == nil {
		return [32]byte{}, errNilRegistry
	}
	if !e.IsAuthorized(caller) {
		return [32]byte{}, errUnauthorized
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return [32]byte{}, err
	}
	if tokenID == nil || tokenID.Sign() < 0 {
		return [32]byte{}, fmt.Errorf("vault: invalid token id")
	}
	if !standard.Valid() {
		return [32]byte{}, fmt.Errorf("vault: unsupported asset standard %d", standard)
	}
	if !kind.Valid() {
		return [32]byte{}, fmt.Errorf("vault: invalid sale kind %d", kind)
	}
	id := CustodyID(contract, tokenID, orderID)
	if _, ok := e.state.CustodyGet(id); ok {
		return [32]byte{}, fmt.Errorf("vault: custody record already exists")
	}
	switch standard {
	case token.StandardERC721:
		col, ok := e.registry.ERC721(contract)
		if !ok {
			return [32]byte{}, fmt.Errorf("vault: no single-unit contract at %x", contract)
		}
		current, err := col.OwnerOf(tokenID)
		if err != nil {
			return [32]byte{}, err
		}
		if current != owner {
			return [32]byte{}, fmt.Errorf("vault: depositor does not hold the token")
		}
		if err := col.SafeTransferFrom(e.address, owner, e.address, tokenID); err != nil {
			return [32]byte{}, err
		}
		held, err := col.OwnerOf(tokenID)
		if err != nil {
			return [32]byte{}, err
		}
		if held != e.address {
			return [32]byte{}, fmt.Errorf("vault: post-transfer ownership mismatch")
		}
	case token.StandardERC1155:
		col, ok := e.registry.ERC1155(contract)
		if !ok {
			return [32]byte{}, fmt.Errorf("vault: no multi-unit contract at %x", contract)
		}
		before, err := col.BalanceOf(e.address, tokenID)
		if err != nil {
			return [32]byte{}, err
		}
		if err := col.SafeTransferFrom(e.address, owner, e.address, tokenID, big.NewInt(1)); err != nil {
			return [32]byte{}, err
		}
		after, err := col.BalanceOf(e.address, tokenID)
		if err != nil {
			return [32]byte{}, err
		}
		want := new(big.Int).Add(before, big.NewInt(1))
		if after.Cmp(want) != 0 {
			return [32]byte{}, fmt.Errorf("vault: multi-unit balance did not increase by exactly one")
		}
	}
	rec := &CustodyRecord{
		ID:        id,
		Owner:     owner,
		Contract:  contract,
		TokenID:   new(big.Int).Set(tokenID),
		Standard:  standard,
		OrderID:   orderID,
		Kind:      kind,
		CreatedAt: e.now(),
	}
	if err := e.state.CustodyPut(rec); err != nil {
		return [32]byte{}, err
	}
	if err := e.state.CustodyIndexAppend(owner, id); err != nil {
		return [32]byte{}, err
	}
	e.emit(NewAssetDepositedEvent(rec))
	return id, nil
}

// ReleaseAsset returns the custodied unit to the named recipient and deletes
// the custody record. When the asset contract is the designated composable
// collaborator, release delegates to its unbundle-and-burn entry point.
func (e *Engine) ReleaseAsset(caller [20]byte, orderID uint64, recipient, contract [20]byte, tokenID *big.Int, standard token.Standard) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.IsAuthorized(caller) {
		return errUnauthorized
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return err
	}
	id := CustodyID(contract, tokenID, orderID)
	rec, ok := e.state.CustodyGet(id)
	if !ok {
		return errCustodyNotFound
	}
	if rec.Standard != standard {
		return fmt.Errorf("vault: asset standard mismatch")
	}
	if err := e.releaseUnit(rec, recipient); err != nil {
		return err
	}
	if err := e.removeCustody(rec); err != nil {
		return err
	}
	e.emit(NewAssetReleasedEvent(rec, recipient))
	return nil
}

// EmergencyWithdrawAsset lets the recorded owner pull their asset out while
// the system is paused, bypassing the marketplace. The corresponding sale or
// auction order is cancelled on the marketplace side so both books agree.
func (e *Engine) EmergencyWithdrawAsset(caller [20]byte, custodyID [32]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.RequireMode(e.mode, common.ModeEmergency); err != nil {
		return err
	}
	rec, ok := e.state.CustodyGet(custodyID)
	if !ok {
		return errCustodyNotFound
	}
	if rec.Owner != caller {
		return fmt.Errorf("vault: caller is not the recorded owner")
	}
	if e.market == nil {
		return fmt.Errorf("vault: marketplace not configured")
	}
	if err := e.releaseUnit(rec, rec.Owner); err != nil {
		return err
	}
	if err := e.removeCustody(rec); err != nil {
		return err
	}
	if rec.Kind == SaleKindAuction {
		if err := e.market.CancelAuction(rec.OrderID, e.address); err != nil {
			return err
		}
	} else {
		if err := e.market.CancelSell(rec.OrderID, e.address); err != nil {
			return err
		}
	}
	e.emit(NewAssetEmergencyWithdrawnEvent(rec))
	return nil
}

func (e *Engine) releaseUnit(rec *CustodyRecord, recipient [20]byte) error {
	if e.registry == nil {
		return errNilRegistry
	}
	if rec.Contract == e.composableAddr && e.unbundler != nil {
		return e.unbundler.BurnAndUnbundle(rec.TokenID, recipient)
	}
	switch rec.Standard {
	case token.StandardERC721:
		col, ok := e.registry.ERC721(rec.Contract)
		if !ok {
			return fmt.Errorf("vault: no single-unit contract at %x", rec.Contract)
		}
		if err := col.SafeTransferFrom(e.address, e.address, recipient, rec.TokenID); err != nil {
			return err
		}
		held, err := col.OwnerOf(rec.TokenID)
		if err != nil {
			return err
		}
		if held != recipient {
			return fmt.Errorf("vault: post-transfer ownership mismatch")
		}
	case token.StandardERC1155:
		col, ok := e.registry.ERC1155(rec.Contract)
		if !ok {
			return fmt.Errorf("vault: no multi-unit contract at %x", rec.Contract)
		}
		before, err := col.BalanceOf(e.address, rec.TokenID)
		if err != nil {
			return err
		}
		if err := col.SafeTransferFrom(e.address, e.address, recipient, rec.TokenID, big.NewInt(1)); err != nil {
			return err
		}
		after, err := col.BalanceOf(e.address, rec.TokenID)
		if err != nil {
			return err
		}
		want := new(big.Int).Sub(before, big.NewInt(1))
		if after.Cmp(want) != 0 {
			return fmt.Errorf("vault: multi-unit balance did not decrease by exactly one")
		}
	default:
		return fmt.Errorf("vault: unsupported asset standard %d", rec.Standard)
	}
	return nil
}

func (e *Engine) removeCustody(rec *CustodyRecord) error {
	if err := e.state.CustodyIndexRemove(rec.Owner, rec.ID); err != nil {
		return err
	}
	return e.state.CustodyDelete(rec.ID)
}

// --- Currency ---------------------------------------------------------------

// MoveCurrency moves funds between a party and the vault. Only the configured
// marketplace may call. value carries the native coin attached to the
// triggering call and is only meaningful for incoming native movements.
func (e *Engine) MoveCurrency(caller, sender, recipient [20]byte, amount *big.Int, currency Currency, dir Direction, value *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.marketAddr || e.marketAddr == ([20]byte{}) {
		return fmt.Errorf("vault: only the marketplace may move currency")
	}
	if err := common.RequireMode(e.mode, common.ModeNormal); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: amount must be positive")
	}
	if !currency.Valid() {
		return fmt.Errorf("vault: unsupported currency %d", currency)
	}
	switch {
	case dir == DirectionOutgoing && currency == CurrencyStable:
		return e.payOutStable(sender, recipient, amount)
	case dir == DirectionOutgoing && currency == CurrencyNative:
		return e.payOutNative(recipient, amount)
	case dir == DirectionIncoming && currency == CurrencyNative:
		return e.pullInNative(sender, amount, value)
	default:
		return e.pullInStable(sender, recipient, amount)
	}
}

func (e *Engine) payOutStable(sender, recipient [20]byte, amount *big.Int) error {
	if e.stable == nil {
		return errNilStable
	}
	credit, err := e.state.StableCredit(sender)
	if err != nil {
		return err
	}
	if credit.Cmp(amount) < 0 {
		return fmt.Errorf("vault: insufficient tracked balance")
	}
	if err := e.stable.Transfer(e.address, recipient, amount); err != nil {
		return err
	}
	if err := e.state.SetStableCredit(sender, new(big.Int).Sub(credit, amount)); err != nil {
		return err
	}
	e.emit(NewCurrencyMovedEvent(sender, recipient, amount, CurrencyStable, DirectionOutgoing))
	return nil
}

func (e *Engine) payOutNative(recipient [20]byte, amount *big.Int) error {
	if e.native == nil {
		return errNilNative
	}
	before, err := e.native.BalanceOf(e.address)
	if err != nil {
		return err
	}
	if err := e.native.Transfer(e.address, recipient, amount); err != nil {
		return err
	}
	after, err := e.native.BalanceOf(e.address)
	if err != nil {
		return err
	}
	delta := new(big.Int).Sub(before, after)
	if delta.Cmp(amount) != 0 {
		return fmt.Errorf("vault: native balance delta mismatch")
	}
	e.emit(NewCurrencyMovedEvent(e.address, recipient, amount, CurrencyNative, DirectionOutgoing))
	return nil
}

func (e *Engine) pullInNative(sender [20]byte, amount, value *big.Int) error {
	if e.native == nil {
		return errNilNative
	}
	if value == nil || value.Cmp(amount) < 0 {
		return fmt.Errorf("vault: attached value below amount")
	}
	if err := e.native.Transfer(sender, e.address, value); err != nil {
		return err
	}
	e.emit(NewCurrencyMovedEvent(sender, e.address, value, CurrencyNative, DirectionIncoming))
	return nil
}

func (e *Engine) pullInStable(sender, recipient [20]byte, amount *big.Int) error {
	if e.stable == nil {
		return errNilStable
	}
	before, err := e.stable.BalanceOf(e.address)
	if err != nil {
		return err
	}
	if err := e.stable.TransferFrom(e.address, sender, e.address, amount); err != nil {
		return err
	}
	after, err := e.stable.BalanceOf(e.address)
	if err != nil {
		return err
	}
	// Fee-on-transfer tokens may deliver less than amount, never more.
	limit := new(big.Int).Add(before, amount)
	if after.Cmp(limit) > 0 {
		return fmt.Errorf("vault: stable pull exceeded amount")
	}
	if after.Cmp(before) < 0 {
		return fmt.Errorf("vault: stable balance decreased on pull")
	}
	credit, err := e.state.StableCredit(recipient)
	if err != nil {
		return err
	}
	if err := e.state.SetStableCredit(recipient, new(big.Int).Add(credit, amount)); err != nil {
		return err
	}
	e.emit(NewCurrencyMovedEvent(sender, recipient, amount, CurrencyStable, DirectionIncoming))
	return nil
}

// EmergencyWithdrawCurrency pays out and zeroes the caller's tracked stable
// balance while the system is paused.
func (e *Engine) EmergencyWithdrawCurrency(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.RequireMode(e.mode, common.ModeEmergency); err != nil {
		return err
	}
	if e.stable == nil {
		return errNilStable
	}
	credit, err := e.state.StableCredit(caller)
	if err != nil {
		return err
	}
	if credit.Sign() == 0 {
		return fmt.Errorf("vault: no tracked balance to withdraw")
	}
	if err := e.stable.Transfer(e.address, caller, credit); err != nil {
		return err
	}
	if err := e.state.SetStableCredit(caller, big.NewInt(0)); err != nil {
		return err
	}
	e.emit(NewCurrencyEmergencyWithdrawnEvent(caller, credit))
	return nil
}

// ReceiveNative accepts an unsolicited native-coin transfer, mirroring the
// value-receiving fallback of the deployed vault. Nothing is credited; the
// coins simply land on the vault so downstream pushes can pay principal and
// fees into it.
func (e *Engine) ReceiveNative(sender [20]byte, value *big.Int) error {
	if e == nil {
		return errNilState
	}
	if e.native == nil {
		return errNilNative
	}
	if value == nil || value.Sign() <= 0 {
		return fmt.Errorf("vault: value must be positive")
	}
	if err := e.native.Transfer(sender, e.address, value); err != nil {
		return err
	}
	e.emit(NewCurrencyMovedEvent(sender, e.address, value, CurrencyNative, DirectionIncoming))
	return nil
}

// --- Views ------------------------------------------------------------------

// Custody returns the live custody record for the id.
func (e *Engine) Custody(id [32]byte) (*CustodyRecord, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.CustodyGet(id)
}

// CustodiedAssets lists the live custody ids for an owner.
func (e *Engine) CustodiedAssets(owner [20]byte) ([][32]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.CustodyIndexList(owner)
}

// StableCredit reports the tracked stablecoin balance for an address.
func (e *Engine) StableCredit(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.StableCredit(addr)
}

package token

import (
	"fmt"
	"math/big"
	"sync"
)

// The ledgers below are in-process reference implementations of the external
// token contracts. The dev node deploys them so the marketplace can run
// end-to-end without a chain runtime; the engine test suites use them as
// collaborators with real approval and balance semantics.

// Ledger721 is a single-unit token ledger with per-owner operator approvals.
type Ledger721 struct {
	mu        sync.RWMutex
	owners    map[string][20]byte
	operators map[[20]byte]map[[20]byte]bool
}

func NewLedger721() *Ledger721 {
	return &Ledger721{
		owners:    make(map[string][20]byte),
		operators: make(map[[20]byte]map[[20]byte]bool),
	}
}

func tokenKey(tokenID *big.Int) string {
	if tokenID == nil {
		return "0"
	}
	return tokenID.String()
}

// Mint assigns a fresh token to the owner.
func (l *Ledger721) Mint(owner [20]byte, tokenID *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := tokenKey(tokenID)
	if _, ok := l.owners[key]; ok {
		return fmt.Errorf("token: token %s already minted", key)
	}
	l.owners[key] = owner
	return nil
}

// SetApprovalForAll toggles an operator approval for the owner.
func (l *Ledger721) SetApprovalForAll(owner, operator [20]byte, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := l.operators[owner]
	if ops == nil {
		ops = make(map[[20]byte]bool)
		l.operators[owner] = ops
	}
	ops[operator] = approved
}

func (l *Ledger721) OwnerOf(tokenID *big.Int) ([20]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.owners[tokenKey(tokenID)]
	if !ok {
		return [20]byte{}, ErrUnknownToken
	}
	return owner, nil
}

func (l *Ledger721) SafeTransferFrom(operator, from, to [20]byte, tokenID *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := tokenKey(tokenID)
	owner, ok := l.owners[key]
	if !ok {
		return ErrUnknownToken
	}
	if owner != from {
		return fmt.Errorf("token: transfer from incorrect owner")
	}
	if operator != owner && !l.operators[owner][operator] {
		return ErrNotOwner
	}
	l.owners[key] = to
	return nil
}

func (l *Ledger721) SupportsStandard(std Standard) bool { return std == StandardERC721 }

// Ledger1155 is a multi-unit token ledger.
type Ledger1155 struct {
	mu        sync.RWMutex
	balances  map[string]map[[20]byte]*big.Int
	operators map[[20]byte]map[[20]byte]bool
}

func NewLedger1155() *Ledger1155 {
	return &Ledger1155{
		balances:  make(map[string]map[[20]byte]*big.Int),
		operators: make(map[[20]byte]map[[20]byte]bool),
	}
}

// Mint credits quantity units of the token to the owner.
func (l *Ledger1155) Mint(owner [20]byte, tokenID, quantity *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := tokenKey(tokenID)
	holders := l.balances[key]
	if holders == nil {
		holders = make(map[[20]byte]*big.Int)
		l.balances[key] = holders
	}
	cur := holders[owner]
	if cur == nil {
		cur = big.NewInt(0)
	}
	holders[owner] = new(big.Int).Add(cur, quantity)
}

// SetApprovalForAll toggles an operator approval for the owner.
func (l *Ledger1155) SetApprovalForAll(owner, operator [20]byte, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := l.operators[owner]
	if ops == nil {
		ops = make(map[[20]byte]bool)
		l.operators[owner] = ops
	}
	ops[operator] = approved
}

func (l *Ledger1155) BalanceOf(owner [20]byte, tokenID *big.Int) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	holders := l.balances[tokenKey(tokenID)]
	if holders == nil || holders[owner] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(holders[owner]), nil
}

func (l *Ledger1155) SafeTransferFrom(operator, from, to [20]byte, tokenID, quantity *big.Int) error {
	if quantity == nil || quantity.Sign() <= 0 {
		return fmt.Errorf("token: quantity must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if operator != from && !l.operators[from][operator] {
		return ErrNotOwner
	}
	key := tokenKey(tokenID)
	holders := l.balances[key]
	if holders == nil {
		holders = make(map[[20]byte]*big.Int)
		l.balances[key] = holders
	}
	fromBal := holders[from]
	if fromBal == nil || fromBal.Cmp(quantity) < 0 {
		return ErrInsufficient
	}
	holders[from] = new(big.Int).Sub(fromBal, quantity)
	toBal := holders[to]
	if toBal == nil {
		toBal = big.NewInt(0)
	}
	holders[to] = new(big.Int).Add(toBal, quantity)
	return nil
}

func (l *Ledger1155) SupportsStandard(std Standard) bool { return std == StandardERC1155 }

// Ledger20 is a fungible token ledger with allowance accounting. A non-zero
// transfer fee (in bps, burned on the way) makes it behave like the
// fee-on-transfer tokens the vault's pull tolerance exists for.
type Ledger20 struct {
	mu         sync.RWMutex
	balances   map[[20]byte]*big.Int
	allowances map[[20]byte]map[[20]byte]*big.Int
	feeBps     uint32
}

func NewLedger20() *Ledger20 {
	return &Ledger20{
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[20]byte]map[[20]byte]*big.Int),
	}
}

// SetTransferFee configures the bps burned on every transfer.
func (l *Ledger20) SetTransferFee(bps uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feeBps = bps
}

// Mint credits the amount to the owner.
func (l *Ledger20) Mint(owner [20]byte, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.balances[owner]
	if cur == nil {
		cur = big.NewInt(0)
	}
	l.balances[owner] = new(big.Int).Add(cur, amount)
}

// Approve sets the spender allowance for the owner.
func (l *Ledger20) Approve(owner, spender [20]byte, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	allw := l.allowances[owner]
	if allw == nil {
		allw = make(map[[20]byte]*big.Int)
		l.allowances[owner] = allw
	}
	allw[spender] = new(big.Int).Set(amount)
}

func (l *Ledger20) BalanceOf(owner [20]byte) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal := l.balances[owner]
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (l *Ledger20) Allowance(owner, spender [20]byte) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	allw := l.allowances[owner]
	if allw == nil || allw[spender] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(allw[spender]), nil
}

func (l *Ledger20) Transfer(from, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

func (l *Ledger20) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	allw := l.allowances[from]
	if allw == nil || allw[spender] == nil || allw[spender].Cmp(amount) < 0 {
		return ErrInsufficientAllw
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	allw[spender] = new(big.Int).Sub(allw[spender], amount)
	return nil
}

func (l *Ledger20) move(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("token: amount must be positive")
	}
	fromBal := l.balances[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return ErrInsufficient
	}
	received := new(big.Int).Set(amount)
	if l.feeBps > 0 {
		fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(l.feeBps)))
		fee.Div(fee, big.NewInt(10_000))
		received.Sub(received, fee)
	}
	l.balances[from] = new(big.Int).Sub(fromBal, amount)
	toBal := l.balances[to]
	if toBal == nil {
		toBal = big.NewInt(0)
	}
	l.balances[to] = new(big.Int).Add(toBal, received)
	return nil
}

// CoinLedger tracks native-coin balances.
type CoinLedger struct {
	mu       sync.RWMutex
	balances map[[20]byte]*big.Int
}

func NewCoinLedger() *CoinLedger {
	return &CoinLedger{balances: make(map[[20]byte]*big.Int)}
}

// Mint credits the amount to the address.
func (l *CoinLedger) Mint(addr [20]byte, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.balances[addr]
	if cur == nil {
		cur = big.NewInt(0)
	}
	l.balances[addr] = new(big.Int).Add(cur, amount)
}

func (l *CoinLedger) BalanceOf(addr [20]byte) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal := l.balances[addr]
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (l *CoinLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("token: amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := l.balances[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return ErrInsufficient
	}
	l.balances[from] = new(big.Int).Sub(fromBal, amount)
	toBal := l.balances[to]
	if toBal == nil {
		toBal = big.NewInt(0)
	}
	l.balances[to] = new(big.Int).Add(toBal, amount)
	return nil
}

// MemRegistry maps deployed addresses to in-process token instances.
type MemRegistry struct {
	mu       sync.RWMutex
	erc721s  map[[20]byte]ERC721
	erc1155s map[[20]byte]ERC1155
	extras   map[[20]byte]bool
}

func NewMemRegistry() *MemRegistry {
	return &MemRegistry{
		erc721s:  make(map[[20]byte]ERC721),
		erc1155s: make(map[[20]byte]ERC1155),
		extras:   make(map[[20]byte]bool),
	}
}

// Register721 deploys a single-unit contract at the address.
func (r *MemRegistry) Register721(addr [20]byte, l ERC721) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.erc721s[addr] = l
}

// Register1155 deploys a multi-unit contract at the address.
func (r *MemRegistry) Register1155(addr [20]byte, l ERC1155) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.erc1155s[addr] = l
}

// RegisterContract marks an address as holding deployed code without exposing
// a token interface (e.g. the stablecoin or the unbundler).
func (r *MemRegistry) RegisterContract(addr [20]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extras[addr] = true
}

func (r *MemRegistry) ERC721(addr [20]byte) (ERC721, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.erc721s[addr]
	return l, ok
}

func (r *MemRegistry) ERC1155(addr [20]byte) (ERC1155, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.erc1155s[addr]
	return l, ok
}

func (r *MemRegistry) IsContract(addr [20]byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.extras[addr] {
		return true
	}
	if _, ok := r.erc721s[addr]; ok {
		return true
	}
	_, ok := r.erc1155s[addr]
	return ok
}

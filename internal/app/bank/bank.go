// Package bank implements the fungible asset transfer primitive the exchange
// layer builds on: per-asset balances, allowance-gated delegated transfers,
// and a per-asset pause hook. Every operation either fully applies or fully
// fails; balances never go negative.
package bank

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrAssetPaused           = errors.New("asset transfers paused")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Bank is a thread-safe in-memory asset bank. It custodies any number of
// fungible assets, identified by string asset IDs, for string-addressed
// accounts.
type Bank struct {
	mu         sync.RWMutex
	balances   map[string]map[string]*big.Int            // asset -> account -> balance
	allowances map[string]map[string]map[string]*big.Int // asset -> owner -> spender -> allowance
	paused     map[string]bool
}

// New creates an empty bank.
func New() *Bank {
	return &Bank{
		balances:   make(map[string]map[string]*big.Int),
		allowances: make(map[string]map[string]map[string]*big.Int),
		paused:     make(map[string]bool),
	}
}

// BalanceOf returns the account's balance of the asset. Unknown accounts
// hold zero.
func (b *Bank) BalanceOf(asset, account string) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if accounts, ok := b.balances[asset]; ok {
		if bal, ok := accounts[account]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

// TotalBalance returns the sum of all balances of the asset.
func (b *Bank) TotalBalance(asset string) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := new(big.Int)
	for _, bal := range b.balances[asset] {
		total.Add(total, bal)
	}
	return total
}

// Transfer moves amount of asset from one account to another.
func (b *Bank) Transfer(asset, from, to string, amount *big.Int) error {
	if err := validateMove(asset, from, to, amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moveLocked(asset, from, to, amount)
}

// Approve sets the spender's allowance over the owner's balance of the asset.
// The allowance is overwritten, not accumulated.
func (b *Bank) Approve(asset, owner, spender string, amount *big.Int) error {
	if asset == "" || owner == "" || spender == "" || amount == nil || amount.Sign() < 0 {
		return ErrInvalidArgument
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	owners, ok := b.allowances[asset]
	if !ok {
		owners = make(map[string]map[string]*big.Int)
		b.allowances[asset] = owners
	}
	spenders, ok := owners[owner]
	if !ok {
		spenders = make(map[string]*big.Int)
		owners[owner] = spenders
	}
	spenders[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns the spender's remaining allowance over the owner's asset.
func (b *Bank) Allowance(asset, owner, spender string) *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if owners, ok := b.allowances[asset]; ok {
		if spenders, ok := owners[owner]; ok {
			if allowance, ok := spenders[spender]; ok {
				return new(big.Int).Set(allowance)
			}
		}
	}
	return new(big.Int)
}

// TransferFrom moves amount of asset from owner to recipient on behalf of
// spender, consuming allowance. The allowance check and the balance move are
// a single atomic step.
func (b *Bank) TransferFrom(asset, spender, owner, to string, amount *big.Int) error {
	if spender == "" {
		return ErrInvalidArgument
	}
	if err := validateMove(asset, owner, to, amount); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	allowance := b.allowanceLocked(asset, owner, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("spender %s on %s/%s: %w", spender, asset, owner, ErrInsufficientAllowance)
	}
	if err := b.moveLocked(asset, owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

// SetPaused toggles the asset's pause flag. While paused, transfers of the
// asset are rejected; balance reads remain available.
func (b *Bank) SetPaused(asset string, paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused[asset] = paused
}

// Paused reports the asset's pause flag.
func (b *Bank) Paused(asset string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.paused[asset]
}

// Credit creates amount of asset in the account's balance. Reserved for the
// supply authority; pools and ordinary callers never hold a reference that
// exposes it.
func (b *Bank) Credit(asset, account string, amount *big.Int) error {
	if asset == "" || account == "" || amount == nil || amount.Sign() <= 0 {
		return ErrInvalidArgument
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balanceLocked(asset, account).Add(b.balanceLocked(asset, account), amount)
	return nil
}

// Debit destroys amount of asset from the account's balance.
func (b *Bank) Debit(asset, account string, amount *big.Int) error {
	if asset == "" || account == "" || amount == nil || amount.Sign() <= 0 {
		return ErrInvalidArgument
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balanceLocked(asset, account)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("debit %s from %s/%s: %w", amount, asset, account, ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	return nil
}

func validateMove(asset, from, to string, amount *big.Int) error {
	if asset == "" || from == "" || to == "" || amount == nil || amount.Sign() <= 0 {
		return ErrInvalidArgument
	}
	return nil
}

func (b *Bank) moveLocked(asset, from, to string, amount *big.Int) error {
	if b.paused[asset] {
		return fmt.Errorf("asset %s: %w", asset, ErrAssetPaused)
	}
	fromBal := b.balanceLocked(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("transfer %s from %s/%s: %w", amount, asset, from, ErrInsufficientBalance)
	}
	fromBal.Sub(fromBal, amount)
	b.balanceLocked(asset, to).Add(b.balanceLocked(asset, to), amount)
	return nil
}

func (b *Bank) balanceLocked(asset, account string) *big.Int {
	accounts, ok := b.balances[asset]
	if !ok {
		accounts = make(map[string]*big.Int)
		b.balances[asset] = accounts
	}
	bal, ok := accounts[account]
	if !ok {
		bal = new(big.Int)
		accounts[account] = bal
	}
	return bal
}

func (b *Bank) allowanceLocked(asset, owner, spender string) *big.Int {
	owners, ok := b.allowances[asset]
	if !ok {
		owners = make(map[string]map[string]*big.Int)
		b.allowances[asset] = owners
	}
	spenders, ok := owners[owner]
	if !ok {
		spenders = make(map[string]*big.Int)
		owners[owner] = spenders
	}
	allowance, ok := spenders[spender]
	if !ok {
		allowance = new(big.Int)
		spenders[spender] = allowance
	}
	return allowance
}

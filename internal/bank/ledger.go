// Package bank is the in-process custody layer: every token movement between depositors, the vault,
// strategy adapters, backends and swap venues goes through a Ledger.
package bank

import (
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// Ledger holds sdk.Coins balances per account.
type Ledger struct {
	mu       sync.RWMutex
	balances map[types.Address]sdk.Coins
	supply   sdk.Coins
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[types.Address]sdk.Coins)}
}

// Mint credits newly created tokens to an account. Used by faucets and simulated yield.
func (l *Ledger) Mint(to types.Address, coin sdk.Coin) error {
	if to.IsZero() {
		return vaulterrors.ErrZeroAddress
	}
	if err := coin.Validate(); err != nil {
		return fmt.Errorf("invalid coin: %w", err)
	}
	if coin.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] = l.balances[to].Add(coin)
	l.supply = l.supply.Add(coin)
	return nil
}

// Burn removes tokens from an account and from supply.
func (l *Ledger) Burn(from types.Address, coin sdk.Coin) error {
	if from.IsZero() {
		return vaulterrors.ErrZeroAddress
	}
	if coin.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining, neg := l.balances[from].SafeSub(coin)
	if neg {
		return errorsmod.Wrapf(vaulterrors.ErrInsufficientBalance, "burn %s from %s", coin, from)
	}
	l.balances[from] = remaining
	l.supply, _ = l.supply.SafeSub(coin)
	return nil
}

// Transfer moves coin from one account to another. A zero amount is a no-op.
func (l *Ledger) Transfer(from, to types.Address, coin sdk.Coin) error {
	if from.IsZero() || to.IsZero() {
		return vaulterrors.ErrZeroAddress
	}
	if coin.Amount.IsNil() || coin.IsZero() {
		return nil
	}
	if coin.IsNegative() {
		return fmt.Errorf("negative transfer %s", coin)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining, neg := l.balances[from].SafeSub(coin)
	if neg {
		return errorsmod.Wrapf(vaulterrors.ErrInsufficientBalance,
			"%s holds %s, needs %s", from, l.balances[from].AmountOf(coin.Denom), coin)
	}
	l.balances[from] = remaining
	l.balances[to] = l.balances[to].Add(coin)
	return nil
}

// Balance returns the amount of denom held by an account.
func (l *Ledger) Balance(addr types.Address, denom string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr].AmountOf(denom)
}

// Balances returns every non-zero balance of an account.
func (l *Ledger) Balances(addr types.Address) sdk.Coins {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(sdk.Coins, len(l.balances[addr]))
	copy(out, l.balances[addr])
	return out
}

// Supply returns the total minted amount of denom.
func (l *Ledger) Supply(denom string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.AmountOf(denom)
}

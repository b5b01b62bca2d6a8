package simulations

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// LendingPool is a single-token money market. Suppliers receive pool shares; interest accrues by
// growing the pool's balance.
type LendingPool struct {
	mu     sync.Mutex
	addr   types.Address
	ledger *bank.Ledger
	denom  string

	shares      map[types.Address]sdkmath.Int
	totalShares sdkmath.Int
	failure     error
}

func NewLendingPool(addr types.Address, ledger *bank.Ledger, denom string) *LendingPool {
	return &LendingPool{
		addr:        addr,
		ledger:      ledger,
		denom:       denom,
		shares:      make(map[types.Address]sdkmath.Int),
		totalShares: sdkmath.ZeroInt(),
	}
}

func (p *LendingPool) Denom() string { return p.denom }

// SetFailure makes Supply and Redeem fail with err until cleared with nil.
func (p *LendingPool) SetFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failure = err
}

// Accrue credits interest to the pool.
func (p *LendingPool) Accrue(interest sdkmath.Int) error {
	return p.ledger.Mint(p.addr, sdk.NewCoin(p.denom, interest))
}

// Slash removes funds from the pool to simulate a bad-debt loss.
func (p *LendingPool) Slash(loss sdkmath.Int) error {
	return p.ledger.Burn(p.addr, sdk.NewCoin(p.denom, loss))
}

func (p *LendingPool) TotalAssets(context.Context) (sdkmath.Int, error) {
	return p.ledger.Balance(p.addr, p.denom), nil
}

func (p *LendingPool) TotalSupply(context.Context) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalShares, nil
}

func (p *LendingPool) BalanceOf(_ context.Context, account types.Address) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balanceOf(account), nil
}

// Supply moves amount from `from` into the pool and mints shares to it.
func (p *LendingPool) Supply(_ context.Context, from types.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return sdkmath.ZeroInt(), p.failure
	}
	if !amount.IsPositive() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAmount
	}

	assets := p.ledger.Balance(p.addr, p.denom)
	shares := amount
	if p.totalShares.IsPositive() {
		if assets.IsZero() {
			return sdkmath.ZeroInt(), errorsmod.Wrap(vaulterrors.ErrInsufficientBalance, "pool is insolvent")
		}
		shares = amount.Mul(p.totalShares).Quo(assets)
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(vaulterrors.ErrZeroAmount, "supply rounds to zero shares")
	}
	if err := p.ledger.Transfer(from, p.addr, sdk.NewCoin(p.denom, amount)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.shares[from] = p.balanceOf(from).Add(shares)
	p.totalShares = p.totalShares.Add(shares)
	return shares, nil
}

// Redeem burns owner's shares and pays the proportional assets to `to`.
func (p *LendingPool) Redeem(_ context.Context, owner, to types.Address, shares sdkmath.Int) (sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return sdkmath.ZeroInt(), p.failure
	}
	if !shares.IsPositive() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAmount
	}
	held := p.balanceOf(owner)
	if held.LT(shares) {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(vaulterrors.ErrInsufficientBalance, "%s holds %s shares, requested %s", owner, held, shares)
	}
	amount := p.ledger.Balance(p.addr, p.denom).Mul(shares).Quo(p.totalShares)

	p.shares[owner] = held.Sub(shares)
	p.totalShares = p.totalShares.Sub(shares)
	if err := p.ledger.Transfer(p.addr, to, sdk.NewCoin(p.denom, amount)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount, nil
}

func (p *LendingPool) balanceOf(account types.Address) sdkmath.Int {
	if s, ok := p.shares[account]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

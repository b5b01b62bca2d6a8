// Package simulations provides in-process stand-ins for the collaborators a strategy adapter talks to:
// a constant-product swap venue, price references, a dual-token AMM backend and a single-token lending
// backend. They move real balances through a bank.Ledger so the vault and its adapters can run end to end
// in paper mode and in tests.
package simulations

import (
	"context"
	"fmt"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// FeeTierDenominator expresses venue fee tiers in millionths, so 3000 is 0.3%.
const FeeTierDenominator = 1_000_000

// Hook runs inside a collaborator call before any balance moves. It receives the caller's context,
// which lets tests attempt a call back into the adapter that invoked the collaborator.
type Hook func(ctx context.Context) error

// --- Swap Venue ---

// ConstantProductVenue is a single x*y=k pool between two denoms. Reserves are the venue account's
// balances in the ledger.
type ConstantProductVenue struct {
	mu      sync.Mutex
	addr    types.Address
	ledger  *bank.Ledger
	denomA  string
	denomB  string
	feeTier uint32

	onSwap Hook
	swaps  int
}

// NewConstantProductVenue creates an empty venue. Seed it with AddLiquidity.
func NewConstantProductVenue(addr types.Address, ledger *bank.Ledger, denomA, denomB string, feeTier uint32) *ConstantProductVenue {
	return &ConstantProductVenue{
		addr:    addr,
		ledger:  ledger,
		denomA:  denomA,
		denomB:  denomB,
		feeTier: feeTier,
	}
}

// AddLiquidity moves reserves from an account into the venue.
func (v *ConstantProductVenue) AddLiquidity(from types.Address, amountA, amountB sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.ledger.Transfer(from, v.addr, sdk.NewCoin(v.denomA, amountA)); err != nil {
		return err
	}
	return v.ledger.Transfer(from, v.addr, sdk.NewCoin(v.denomB, amountB))
}

// Reserves returns the venue's current holdings of both denoms.
func (v *ConstantProductVenue) Reserves() (sdkmath.Int, sdkmath.Int) {
	return v.ledger.Balance(v.addr, v.denomA), v.ledger.Balance(v.addr, v.denomB)
}

// SpotPrice returns the price of one unit of denomA in denomB.
func (v *ConstantProductVenue) SpotPrice() (sdkmath.LegacyDec, error) {
	ra, rb := v.Reserves()
	if ra.IsZero() {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("venue %s has no %s reserves", v.addr, v.denomA)
	}
	return sdkmath.LegacyNewDecFromInt(rb).QuoInt(ra), nil
}

// FeeTier returns the only fee tier this venue accepts.
func (v *ConstantProductVenue) FeeTier() uint32 { return v.feeTier }

// Swaps returns the number of executed swaps.
func (v *ConstantProductVenue) Swaps() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.swaps
}

// SetOnSwap installs a hook run at the start of every swap.
func (v *ConstantProductVenue) SetOnSwap(h Hook) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onSwap = h
}

// QuoteExactIn returns the output for amountIn without executing.
func (v *ConstantProductVenue) QuoteExactIn(tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error) {
	rin, rout, err := v.reservesFor(tokenIn, tokenOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.amountOut(amountIn, rin, rout), nil
}

// SwapExactIn pulls amountIn of tokenIn from trader and pays out tokenOut at the constant-product price.
func (v *ConstantProductVenue) SwapExactIn(
	ctx context.Context,
	trader types.Address,
	tokenIn, tokenOut string,
	feeTier uint32,
	amountIn, minAmountOut sdkmath.Int,
) (sdkmath.Int, error) {
	if trader.IsZero() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAddress
	}
	if !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(vaulterrors.ErrZeroAmount, "swap input")
	}
	if feeTier != v.feeTier {
		return sdkmath.ZeroInt(), fmt.Errorf("venue %s has no %d fee tier", v.addr, feeTier)
	}

	v.mu.Lock()
	hook := v.onSwap
	v.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	rin, rout, err := v.reservesFor(tokenIn, tokenOut)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	out := v.amountOut(amountIn, rin, rout)
	if out.LT(minAmountOut) {
		return sdkmath.ZeroInt(), vaulterrors.SlippageExceeded(minAmountOut, out)
	}
	if out.IsZero() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(vaulterrors.ErrZeroAmount, "swap output rounds to zero")
	}

	if err := v.ledger.Transfer(trader, v.addr, sdk.NewCoin(tokenIn, amountIn)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.ledger.Transfer(v.addr, trader, sdk.NewCoin(tokenOut, out)); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.swaps++
	return out, nil
}

func (v *ConstantProductVenue) reservesFor(tokenIn, tokenOut string) (sdkmath.Int, sdkmath.Int, error) {
	ra, rb := v.Reserves()
	switch {
	case tokenIn == v.denomA && tokenOut == v.denomB:
		return ra, rb, nil
	case tokenIn == v.denomB && tokenOut == v.denomA:
		return rb, ra, nil
	default:
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("venue %s does not trade %s -> %s", v.addr, tokenIn, tokenOut)
	}
}

func (v *ConstantProductVenue) amountOut(amountIn, reserveIn, reserveOut sdkmath.Int) sdkmath.Int {
	if !amountIn.IsPositive() || reserveIn.IsZero() || reserveOut.IsZero() {
		return sdkmath.ZeroInt()
	}
	inWithFee := amountIn.MulRaw(int64(FeeTierDenominator - v.feeTier))
	numerator := inWithFee.Mul(reserveOut)
	denominator := reserveIn.MulRaw(FeeTierDenominator).Add(inWithFee)
	return numerator.Quo(denominator)
}

// --- Price References ---

// StaticPriceReference returns a fixed rate until changed.
type StaticPriceReference struct {
	mu    sync.RWMutex
	rate  sdkmath.LegacyDec
	fresh bool
}

func NewStaticPriceReference(rate sdkmath.LegacyDec) *StaticPriceReference {
	return &StaticPriceReference{rate: rate, fresh: true}
}

func (p *StaticPriceReference) GetTwapRate(_ context.Context, _ time.Duration) (sdkmath.LegacyDec, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rate, nil
}

func (p *StaticPriceReference) IsFresh(context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fresh
}

func (p *StaticPriceReference) SetRate(rate sdkmath.LegacyDec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = rate
}

func (p *StaticPriceReference) SetFresh(fresh bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fresh = fresh
}

// VenuePriceReference reads the venue's spot price. Freshness is controlled by the caller.
type VenuePriceReference struct {
	venue *ConstantProductVenue

	mu    sync.RWMutex
	fresh bool
}

func NewVenuePriceReference(venue *ConstantProductVenue) *VenuePriceReference {
	return &VenuePriceReference{venue: venue, fresh: true}
}

func (p *VenuePriceReference) GetTwapRate(_ context.Context, _ time.Duration) (sdkmath.LegacyDec, error) {
	return p.venue.SpotPrice()
}

func (p *VenuePriceReference) IsFresh(context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fresh
}

func (p *VenuePriceReference) SetFresh(fresh bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fresh = fresh
}

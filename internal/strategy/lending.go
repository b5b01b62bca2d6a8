package strategy

import (
	"context"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// LendingAdapter supplies the settlement asset to a single-token money market.
type LendingAdapter struct {
	base
	backend LendingBackend
}

type lendingPosition struct {
	ourShares sdkmath.Int
	value     sdkmath.Int
}

func (a *LendingAdapter) Deposit(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAmount
	}
	ctx, unlock, err := a.enter(ctx, "deposit")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	if !a.active {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(vaulterrors.ErrStrategyPaused, "strategy %s", a.id)
	}
	if err := a.pull(a.asset, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	shares, err := a.backend.Supply(ctx, a.addr, amount)
	if err != nil {
		if _, sweepErr := a.forward(a.asset); sweepErr != nil {
			a.log.Error().Err(sweepErr).Msg("Failed to return funds to vault")
		}
		return sdkmath.ZeroInt(), fmt.Errorf("backend supply: %w", err)
	}
	// the backend may not take everything; anything left goes home
	returned, err := a.forward(a.asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	deposited := amount.Sub(returned)
	a.principal = a.principal.Add(deposited)

	a.emit(types.EventDepositCompleted, map[string]sdkmath.Int{a.asset: deposited}, shares, "")
	a.log.Info().Str("amount", deposited.String()).Str("shares", shares.String()).Msg("Deposit completed")
	return deposited, nil
}

func (a *LendingAdapter) GetTotalAssets(ctx context.Context) (sdkmath.Int, error) {
	pos, err := a.position(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return pos.value, nil
}

func (a *LendingAdapter) position(ctx context.Context) (lendingPosition, error) {
	pos := lendingPosition{ourShares: sdkmath.ZeroInt(), value: sdkmath.ZeroInt()}
	ourShares, err := a.backend.BalanceOf(ctx, a.addr)
	if err != nil {
		return pos, fmt.Errorf("backend balance: %w", err)
	}
	totalShares, err := a.backend.TotalSupply(ctx)
	if err != nil {
		return pos, fmt.Errorf("backend supply: %w", err)
	}
	if ourShares.IsZero() || totalShares.IsZero() {
		return pos, nil
	}
	totalAssets, err := a.backend.TotalAssets(ctx)
	if err != nil {
		return pos, fmt.Errorf("backend assets: %w", err)
	}
	pos.ourShares = ourShares
	pos.value = totalAssets.Mul(ourShares).Quo(totalShares)
	return pos, nil
}

func (a *LendingAdapter) redeem(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	if _, err := a.backend.Redeem(ctx, a.addr, a.addr, shares); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("backend redeem: %w", err)
	}
	return a.forward(a.asset)
}

func (a *LendingAdapter) Withdraw(ctx context.Context, value sdkmath.Int) (sdkmath.Int, error) {
	if value.IsNil() || !value.IsPositive() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAmount
	}
	ctx, unlock, err := a.enter(ctx, "withdraw")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	pos, err := a.position(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	shares := proportionalShares(pos.ourShares, value, pos.value)
	if shares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	delivered, err := a.redeem(ctx, shares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	a.reducePrincipal(shares, pos.ourShares)

	a.emit(types.EventWithdrawComplete, map[string]sdkmath.Int{a.asset: delivered}, shares, "")
	a.log.Info().Str("requested", value.String()).Str("delivered", delivered.String()).Msg("Withdraw completed")
	return delivered, nil
}

func (a *LendingAdapter) EmergencyWithdraw(ctx context.Context) (sdkmath.Int, error) {
	ctx, unlock, err := a.enter(ctx, "emergency_withdraw")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	a.active = false
	ourShares, err := a.backend.BalanceOf(ctx, a.addr)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("backend balance: %w", err)
	}
	recovered := sdkmath.ZeroInt()
	if ourShares.IsPositive() {
		if recovered, err = a.redeem(ctx, ourShares); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	a.principal = sdkmath.ZeroInt()

	a.emit(types.EventEmergencyExit, map[string]sdkmath.Int{a.asset: recovered}, ourShares, "")
	a.log.Warn().Str("recovered", recovered.String()).Msg("Emergency exit")
	return recovered, nil
}

func (a *LendingAdapter) Harvest(ctx context.Context) (sdkmath.Int, error) {
	ctx, unlock, err := a.enter(ctx, "harvest")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	pos, err := a.position(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	profit := pos.value.Sub(a.principal)
	if !profit.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	shares := pos.ourShares.Mul(profit).Quo(pos.value)
	if shares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	realized, err := a.redeem(ctx, shares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	a.emit(types.EventHarvested, map[string]sdkmath.Int{a.asset: realized}, shares, "")
	a.log.Info().Str("realized", realized.String()).Msg("Harvested")
	return realized, nil
}

// Rebalance has nothing to re-center in a money market; it refreshes the timestamp and reports totals.
func (a *LendingAdapter) Rebalance(ctx context.Context) error {
	ctx, unlock, err := a.enter(ctx, "rebalance")
	if err != nil {
		return err
	}
	defer unlock()

	a.lastRebalance = time.Now().UTC()
	pos, err := a.position(ctx)
	if err != nil {
		return err
	}
	a.emit(types.EventRebalanced, map[string]sdkmath.Int{a.asset: pos.value}, pos.ourShares, "")
	return nil
}

var _ Adapter = (*LendingAdapter)(nil)

package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/utils"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// feeTierDenominator expresses venue fee tiers in millionths, so 3000 is 0.3%.
const feeTierDenominator = 1_000_000

// DualTokenAdapter deploys a single settlement asset into a two-token backend position. Incoming
// capital is split into the ratio the backend currently holds by swapping the surplus side on the
// venue, with every swap bounded by the price reference rather than the backend's own ratio.
type DualTokenAdapter struct {
	base

	backend        DualTokenBackend
	venue          SwapVenue
	price          PriceReference
	tokenA         string
	tokenB         string
	feeTier        uint32
	twapWindow     time.Duration
	maxSlippageBps uint32
}

// DepositResult describes one ratio-matched deposit into the backend.
type DepositResult struct {
	Shares   sdkmath.Int
	UsedA    sdkmath.Int
	UsedB    sdkmath.Int
	Returned sdkmath.Int // settlement asset swept back to the vault
}

type dualPosition struct {
	ourShares   sdkmath.Int
	totalShares sdkmath.Int
	totalA      sdkmath.Int
	totalB      sdkmath.Int
	amountA     sdkmath.Int
	amountB     sdkmath.Int
	value       sdkmath.Int
}

func (a *DualTokenAdapter) TokenA() string { return a.tokenA }
func (a *DualTokenAdapter) TokenB() string { return a.tokenB }

// Deposit deploys amount of the settlement asset and returns the part that stayed deployed.
func (a *DualTokenAdapter) Deposit(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), vaulterrors.ErrZeroAmount
	}
	amountA, amountB := amount, sdkmath.ZeroInt()
	if a.asset == a.tokenB {
		amountA, amountB = amountB, amountA
	}

	ctx, unlock, err := a.enter(ctx, "deposit")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	res, err := a.depositPair(ctx, amountA, amountB)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	deposited := amount.Sub(res.Returned)
	if deposited.IsNegative() {
		deposited = sdkmath.ZeroInt()
	}
	a.principal = a.principal.Add(deposited)
	return deposited, nil
}

// DepositPair deploys a two-token amount pulled from the vault. Either amount may be zero.
func (a *DualTokenAdapter) DepositPair(ctx context.Context, amountA, amountB sdkmath.Int) (DepositResult, error) {
	if amountA.IsZero() && amountB.IsZero() {
		return DepositResult{}, vaulterrors.ErrZeroAmount
	}
	ctx, unlock, err := a.enter(ctx, "deposit")
	if err != nil {
		return DepositResult{}, err
	}
	defer unlock()

	res, err := a.depositPair(ctx, amountA, amountB)
	if err != nil {
		return res, err
	}
	if a.asset == a.tokenA {
		a.principal = a.principal.Add(amountA.Sub(res.Returned))
	} else {
		a.principal = a.principal.Add(amountB.Sub(res.Returned))
	}
	return res, nil
}

func (a *DualTokenAdapter) depositPair(ctx context.Context, amountA, amountB sdkmath.Int) (DepositResult, error) {
	res := DepositResult{Shares: sdkmath.ZeroInt(), UsedA: sdkmath.ZeroInt(), UsedB: sdkmath.ZeroInt(), Returned: sdkmath.ZeroInt()}
	if !a.active {
		return res, errorsmod.Wrapf(vaulterrors.ErrStrategyPaused, "strategy %s", a.id)
	}

	if err := a.pull(a.tokenA, amountA); err != nil {
		return res, err
	}
	if err := a.pull(a.tokenB, amountB); err != nil {
		a.returnAll(ctx, false)
		return res, err
	}

	swapped, err := a.matchAndDeposit(ctx, amountA, amountB, &res)
	if err != nil {
		returned := a.returnAll(ctx, swapped)
		a.log.Warn().Err(err).
			Str("amount_a", amountA.String()).
			Str("amount_b", amountB.String()).
			Str("returned", returned.String()).
			Msg("Deposit aborted, funds returned to vault")
		return res, err
	}

	returned, err := a.settle(ctx, true)
	if err != nil {
		return res, err
	}
	res.Returned = returned

	a.emit(types.EventDepositCompleted,
		map[string]sdkmath.Int{a.tokenA: res.UsedA, a.tokenB: res.UsedB}, res.Shares, "")
	a.log.Info().
		Str("used_a", res.UsedA.String()).
		Str("used_b", res.UsedB.String()).
		Str("shares", res.Shares.String()).
		Str("returned", returned.String()).
		Msg("Deposit completed")
	return res, nil
}

// matchAndDeposit runs the range check, ratio matching and backend deposit. It reports whether a
// swap changed the adapter's token mix so an aborted deposit can be unwound into the asset.
func (a *DualTokenAdapter) matchAndDeposit(ctx context.Context, heldA, heldB sdkmath.Int, res *DepositResult) (bool, error) {
	inRange, err := a.backend.InRange(ctx)
	if err != nil {
		return false, fmt.Errorf("backend range check: %w", err)
	}
	if !inRange {
		return false, errorsmod.Wrapf(vaulterrors.ErrBackendOutOfRange, "strategy %s", a.id)
	}

	// fresh totals on every call: the position is shared with other depositors
	totalA, totalB, err := a.backend.GetTotalAmounts(ctx)
	if err != nil {
		return false, fmt.Errorf("backend totals: %w", err)
	}

	swapped := false
	if !totalA.IsZero() || !totalB.IsZero() {
		heldA, heldB, swapped, err = a.matchRatio(ctx, heldA, heldB, totalA, totalB)
		if err != nil {
			return swapped, err
		}
	}

	minA, err := utils.SlippageFloor(heldA, a.maxSlippageBps)
	if err != nil {
		return swapped, err
	}
	minB, err := utils.SlippageFloor(heldB, a.maxSlippageBps)
	if err != nil {
		return swapped, err
	}
	shares, usedA, usedB, err := a.backend.Deposit(ctx, a.addr, a.addr, heldA, heldB, minA, minB)
	if err != nil {
		return swapped, fmt.Errorf("backend deposit: %w", err)
	}
	res.Shares, res.UsedA, res.UsedB = shares, usedA, usedB
	return true, nil
}

// matchRatio swaps the surplus side so that heldB/heldA equals totalB/totalA after the swap,
// pricing the swap with the reference rate net of the venue fee. Totals are read once by the
// caller; the residual mismatch is bounded by the slippage tolerance and swept afterwards.
func (a *DualTokenAdapter) matchRatio(ctx context.Context, heldA, heldB, totalA, totalB sdkmath.Int) (sdkmath.Int, sdkmath.Int, bool, error) {
	// heldA*totalB vs heldB*totalA compares heldB with neededB = heldA*totalB/totalA
	// without dividing by a possibly empty side
	crossA := heldA.Mul(totalB)
	crossB := heldB.Mul(totalA)
	if crossA.Equal(crossB) {
		return heldA, heldB, false, nil
	}

	price, err := a.referenceRate(ctx)
	if err != nil {
		return heldA, heldB, false, err
	}
	keep := a.feeKeep()
	decTotalA := sdkmath.LegacyNewDecFromInt(totalA)
	decTotalB := sdkmath.LegacyNewDecFromInt(totalB)

	if crossB.GT(crossA) {
		// tokenA limits: swap y of B into A, y = (totalA*heldB - totalB*heldA) / (totalA + totalB*keep/price)
		den := decTotalA.Add(decTotalB.Mul(keep).Quo(price))
		y := sdkmath.LegacyNewDecFromInt(crossB.Sub(crossA)).Quo(den).TruncateInt()
		y = utils.MinInt(y, heldB)
		a.log.Debug().Str("held_b", heldB.String()).Str("swap_b", y.String()).Msg("Swapping surplus tokenB")
		out, err := a.swap(ctx, a.tokenB, a.tokenA, y, sdkmath.LegacyOneDec().Quo(price))
		if err != nil {
			return heldA, heldB, false, err
		}
		if out.IsZero() {
			return heldA, heldB, false, nil
		}
		return heldA.Add(out), heldB.Sub(y), true, nil
	}

	// tokenB limits: swap x of A into B, x = (totalB*heldA - totalA*heldB) / (price*keep*totalA + totalB)
	if totalA.IsPositive() {
		neededB := heldA.Mul(totalB).Quo(totalA)
		a.log.Debug().Str("held_b", heldB.String()).Str("needed_b", neededB.String()).Msg("Position short of tokenB")
	}
	den := price.Mul(keep).Mul(decTotalA).Add(decTotalB)
	x := sdkmath.LegacyNewDecFromInt(crossA.Sub(crossB)).Quo(den).TruncateInt()
	x = utils.MinInt(x, heldA)
	out, err := a.swap(ctx, a.tokenA, a.tokenB, x, price)
	if err != nil {
		return heldA, heldB, false, err
	}
	if out.IsZero() {
		return heldA, heldB, false, nil
	}
	return heldA.Sub(x), heldB.Add(out), true, nil
}

// swap sells amountIn on the venue with a minimum output of amountIn*rate*(1-fee)*(1-slippage).
// A swap whose expected output rounds to zero is skipped.
func (a *DualTokenAdapter) swap(ctx context.Context, tokenIn, tokenOut string, amountIn sdkmath.Int, rate sdkmath.LegacyDec) (sdkmath.Int, error) {
	if !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	minOut, err := a.minSwapOutput(amountIn, rate)
	if err != nil || minOut.IsZero() {
		return sdkmath.ZeroInt(), err
	}
	out, err := a.venue.SwapExactIn(ctx, a.addr, tokenIn, tokenOut, a.feeTier, amountIn, minOut)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("swap %s %s -> %s: %w", amountIn, tokenIn, tokenOut, err)
	}
	return out, nil
}

// minSwapOutput is the least a swap of amountIn at rate may return. Zero means the swap is skipped.
func (a *DualTokenAdapter) minSwapOutput(amountIn sdkmath.Int, rate sdkmath.LegacyDec) (sdkmath.Int, error) {
	expected := utils.ConvertAtRate(amountIn, rate.Mul(a.feeKeep()))
	if expected.IsZero() {
		return expected, nil
	}
	return utils.SlippageFloor(expected, a.maxSlippageBps)
}

// assetRate is the reference rate for converting denom into the settlement asset.
func (a *DualTokenAdapter) assetRate(ctx context.Context, denom string) (sdkmath.LegacyDec, error) {
	price, err := a.referenceRate(ctx)
	if err != nil {
		return price, err
	}
	if denom == a.tokenB {
		return sdkmath.LegacyOneDec().Quo(price), nil
	}
	return price, nil
}

// checkConvertible fails if the venue would not swap amount of the non-asset token within the
// slippage bound. Venues that cannot quote pass; the swap itself is still bounded.
func (a *DualTokenAdapter) checkConvertible(ctx context.Context, amount sdkmath.Int) error {
	q, ok := a.venue.(Quoter)
	if !ok || !amount.IsPositive() {
		return nil
	}
	other := a.otherToken()
	rate, err := a.assetRate(ctx, other)
	if err != nil {
		return err
	}
	minOut, err := a.minSwapOutput(amount, rate)
	if err != nil || minOut.IsZero() {
		return err
	}
	quote, err := q.QuoteExactIn(other, a.asset, amount)
	if err != nil {
		return fmt.Errorf("quote %s %s: %w", amount, other, err)
	}
	if quote.LT(minOut) {
		return errorsmod.Wrapf(vaulterrors.SlippageExceeded(minOut, quote), "venue quote for %s %s", amount, other)
	}
	return nil
}

// referenceRate returns the fresh reference price of tokenA in tokenB.
func (a *DualTokenAdapter) referenceRate(ctx context.Context) (sdkmath.LegacyDec, error) {
	if !a.price.IsFresh(ctx) {
		return sdkmath.LegacyZeroDec(), errorsmod.Wrapf(vaulterrors.ErrStalePrice, "strategy %s", a.id)
	}
	rate, err := a.price.GetTwapRate(ctx, a.twapWindow)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("price reference: %w", err)
	}
	if rate.IsNil() || !rate.IsPositive() {
		return sdkmath.LegacyZeroDec(), errorsmod.Wrapf(vaulterrors.ErrStalePrice, "non-positive rate %s", rate)
	}
	return rate, nil
}

func (a *DualTokenAdapter) feeKeep() sdkmath.LegacyDec {
	fee := sdkmath.LegacyNewDec(int64(a.feeTier)).QuoInt64(feeTierDenominator)
	return sdkmath.LegacyOneDec().Sub(fee)
}

func (a *DualTokenAdapter) otherToken() string {
	if a.asset == a.tokenA {
		return a.tokenB
	}
	return a.tokenA
}

// settle forwards the adapter's asset balance to the vault. With convert set, the non-asset
// balance is swapped into the asset first and whatever cannot be swapped stays with the adapter,
// where GetTotalAssets still counts it, until a later settlement converts it. Without convert it
// goes back to the vault as is: that path only returns tokens the vault itself sent.
func (a *DualTokenAdapter) settle(ctx context.Context, convert bool) (sdkmath.Int, error) {
	other := a.otherToken()
	if leftover := a.ledger.Balance(a.addr, other); leftover.IsPositive() {
		var err error
		if convert {
			_, err = a.convertToAsset(ctx, other, leftover)
		}
		// after a conversion only dust worth less than one unit of the asset remains to forward
		if err != nil {
			a.log.Warn().Err(err).Str("denom", other).Str("amount", leftover.String()).Msg("Leftover not swappable, held for next settlement")
		} else if _, err := a.forward(other); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("sweep %s: %w", other, err)
		}
	}
	returned, err := a.forward(a.asset)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("sweep %s: %w", a.asset, err)
	}
	return returned, nil
}

// returnAll settles after an aborted deposit. Errors are logged: there is nothing left to undo.
func (a *DualTokenAdapter) returnAll(ctx context.Context, convert bool) sdkmath.Int {
	returned, err := a.settle(ctx, convert)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to return funds to vault")
	}
	return returned
}

func (a *DualTokenAdapter) convertToAsset(ctx context.Context, denom string, amount sdkmath.Int) (sdkmath.Int, error) {
	rate, err := a.assetRate(ctx, denom)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.swap(ctx, denom, a.asset, amount, rate)
}

// settleRedeemed converts backend proceeds into the asset and forwards them. If the conversion
// fails the proceeds go back into the backend and the error is returned.
func (a *DualTokenAdapter) settleRedeemed(ctx context.Context) (sdkmath.Int, error) {
	other := a.otherToken()
	if held := a.ledger.Balance(a.addr, other); held.IsPositive() {
		if _, err := a.convertToAsset(ctx, other, held); err != nil {
			if restoreErr := a.restore(ctx); restoreErr != nil {
				return sdkmath.ZeroInt(), errors.Join(err, restoreErr)
			}
			return sdkmath.ZeroInt(), err
		}
	}
	return a.settle(ctx, true)
}

// restore deposits the adapter's holdings back into the backend. Rounding dust the backend does
// not take stays with the adapter.
func (a *DualTokenAdapter) restore(ctx context.Context) error {
	heldA := a.ledger.Balance(a.addr, a.tokenA)
	heldB := a.ledger.Balance(a.addr, a.tokenB)
	if !heldA.IsPositive() && !heldB.IsPositive() {
		return nil
	}
	shares, _, _, err := a.backend.Deposit(ctx, a.addr, a.addr, heldA, heldB, sdkmath.ZeroInt(), sdkmath.ZeroInt())
	if err != nil {
		a.log.Error().Err(err).
			Str("held_a", heldA.String()).
			Str("held_b", heldB.String()).
			Msg("Failed to restore backend position, proceeds held by adapter")
		return fmt.Errorf("restore backend position: %w", err)
	}
	a.log.Warn().Str("shares", shares.String()).Msg("Backend position restored after failed conversion")
	return nil
}

// GetTotalAssets values the adapter's proportional stake of the backend in the settlement asset,
// plus anything a failed settlement left with the adapter.
func (a *DualTokenAdapter) GetTotalAssets(ctx context.Context) (sdkmath.Int, error) {
	pos, err := a.position(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	held, err := a.valueInAsset(ctx, a.ledger.Balance(a.addr, a.tokenA), a.ledger.Balance(a.addr, a.tokenB))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return pos.value.Add(held), nil
}

func (a *DualTokenAdapter) position(ctx context.Context) (dualPosition, error) {
	zero := sdkmath.ZeroInt()
	pos := dualPosition{ourShares: zero, totalShares: zero, totalA: zero, totalB: zero, amountA: zero, amountB: zero, value: zero}

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
	totalA, totalB, err := a.backend.GetTotalAmounts(ctx)
	if err != nil {
		return pos, fmt.Errorf("backend totals: %w", err)
	}

	pos.ourShares, pos.totalShares, pos.totalA, pos.totalB = ourShares, totalShares, totalA, totalB
	pos.amountA = totalA.Mul(ourShares).Quo(totalShares)
	pos.amountB = totalB.Mul(ourShares).Quo(totalShares)
	pos.value, err = a.valueInAsset(ctx, pos.amountA, pos.amountB)
	return pos, err
}

func (a *DualTokenAdapter) valueInAsset(ctx context.Context, amountA, amountB sdkmath.Int) (sdkmath.Int, error) {
	assetAmount, otherAmount := amountA, amountB
	if a.asset == a.tokenB {
		assetAmount, otherAmount = amountB, amountA
	}
	if otherAmount.IsZero() {
		return assetAmount, nil
	}
	price, err := a.referenceRate(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if a.asset == a.tokenA {
		converted, err := utils.ConvertAtInverseRate(otherAmount, price)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		return assetAmount.Add(converted), nil
	}
	return assetAmount.Add(utils.ConvertAtRate(otherAmount, price)), nil
}

// redeem burns backend shares and forwards the proceeds to the vault in the settlement asset. The
// non-asset leg is quoted first, so shares are only burned when the proceeds can be converted.
func (a *DualTokenAdapter) redeem(ctx context.Context, pos dualPosition, shares sdkmath.Int, bounded bool) (sdkmath.Int, error) {
	expectedA := pos.totalA.Mul(shares).Quo(pos.totalShares)
	expectedB := pos.totalB.Mul(shares).Quo(pos.totalShares)
	expectedOther := expectedB
	if a.asset == a.tokenB {
		expectedOther = expectedA
	}
	if err := a.checkConvertible(ctx, expectedOther.Add(a.ledger.Balance(a.addr, a.otherToken()))); err != nil {
		return sdkmath.ZeroInt(), err
	}

	minA, minB := sdkmath.ZeroInt(), sdkmath.ZeroInt()
	if bounded {
		var err error
		if minA, err = utils.SlippageFloor(expectedA, a.maxSlippageBps); err != nil {
			return sdkmath.ZeroInt(), err
		}
		if minB, err = utils.SlippageFloor(expectedB, a.maxSlippageBps); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	amountA, amountB, err := a.backend.Withdraw(ctx, a.addr, a.addr, shares, minA, minB)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("backend withdraw: %w", err)
	}
	a.log.Debug().
		Str("shares", shares.String()).
		Str("amount_a", amountA.String()).
		Str("amount_b", amountB.String()).
		Msg("Backend shares redeemed")
	return a.settleRedeemed(ctx)
}

// Withdraw recalls value worth of the settlement asset, burning only the proportional share of the
// adapter's backend stake. Returns the asset delivered to the vault.
func (a *DualTokenAdapter) Withdraw(ctx context.Context, value sdkmath.Int) (sdkmath.Int, error) {
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
	delivered, err := a.redeem(ctx, pos, shares, true)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	a.reducePrincipal(shares, pos.ourShares)

	a.emit(types.EventWithdrawComplete, map[string]sdkmath.Int{a.asset: delivered}, shares, "")
	a.log.Info().
		Str("requested", value.String()).
		Str("shares_burned", shares.String()).
		Str("delivered", delivered.String()).
		Msg("Withdraw completed")
	return delivered, nil
}

// EmergencyWithdraw exits the whole backend stake without output bounds and deactivates the
// adapter. The exit is refused, and the stake kept, while the proceeds cannot be converted.
func (a *DualTokenAdapter) EmergencyWithdraw(ctx context.Context) (sdkmath.Int, error) {
	ctx, unlock, err := a.enter(ctx, "emergency_withdraw")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	a.active = false
	pos, err := a.position(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	var recovered sdkmath.Int
	if pos.ourShares.IsPositive() {
		recovered, err = a.redeem(ctx, pos, pos.ourShares, false)
	} else {
		recovered, err = a.settle(ctx, true)
	}
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	a.principal = sdkmath.ZeroInt()

	a.emit(types.EventEmergencyExit, map[string]sdkmath.Int{a.asset: recovered}, pos.ourShares, "")
	a.log.Warn().Str("recovered", recovered.String()).Str("shares", pos.ourShares.String()).Msg("Emergency exit")
	return recovered, nil
}

// Harvest realizes the stake's value above principal into the vault.
func (a *DualTokenAdapter) Harvest(ctx context.Context) (sdkmath.Int, error) {
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
	if !profit.IsPositive() || pos.value.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	// floor so the harvest never reaches into principal
	shares := pos.ourShares.Mul(profit).Quo(pos.value)
	if shares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	realized, err := a.redeem(ctx, pos, shares, true)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	a.emit(types.EventHarvested, map[string]sdkmath.Int{a.asset: realized}, shares, "")
	a.log.Info().Str("profit", profit.String()).Str("realized", realized.String()).Msg("Harvested")
	return realized, nil
}

// Rebalance lets the backend re-center its own position, if it supports that.
func (a *DualTokenAdapter) Rebalance(ctx context.Context) error {
	ctx, unlock, err := a.enter(ctx, "rebalance")
	if err != nil {
		return err
	}
	defer unlock()

	if r, ok := a.backend.(Rebalancer); ok {
		if err := r.Rebalance(ctx); err != nil {
			return fmt.Errorf("backend rebalance: %w", err)
		}
	}
	a.lastRebalance = time.Now().UTC()

	pos, err := a.position(ctx)
	if err != nil {
		return err
	}
	a.emit(types.EventRebalanced,
		map[string]sdkmath.Int{a.tokenA: pos.amountA, a.tokenB: pos.amountB}, pos.ourShares, "")
	return nil
}

var _ Adapter = (*DualTokenAdapter)(nil)

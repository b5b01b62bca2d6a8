package planner

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/mvault/internal/logger"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidTotalAssets = errors.New("total assets must be non-negative")
	ErrInvalidIdle        = errors.New("idle balance is invalid")
	ErrInvalidAllocations = errors.New("strategy allocations contain invalid values")
	ErrInvalidParameters  = errors.New("rebalance parameters contain invalid values")
)

// GenerateRebalancePlan compares each active strategy's current holdings with its weighted share of the
// deployable assets (total minus the idle reserve) and returns two ordered plans: recalls first, then
// deposits funded by idle plus whatever the recalls free up. Moves smaller than the threshold or the
// minimum action amount are skipped, and total recalls are capped per cycle. Inactive strategies are
// left untouched.
func GenerateRebalancePlan(
	allocations []types.StrategyAllocation,
	totalAssets sdkmath.Int,
	idle sdkmath.Int,
	params types.VaultParameters,
) (withdrawals []types.AllocationAction, deposits []types.AllocationAction, err error) {
	planLogger := logger.GetForComponent("rebalance_planner")

	// ===== INPUT VALIDATION =====
	if err := validateInputs(allocations, totalAssets, idle, params); err != nil {
		planLogger.Error().Err(err).Msg("Input validation failed")
		return nil, nil, err
	}

	if totalAssets.IsZero() {
		planLogger.Info().Msg("Vault is empty, no actions to plan")
		return []types.AllocationAction{}, []types.AllocationAction{}, nil
	}

	deployable := totalAssets.Sub(params.IdleReserveTarget)
	if deployable.IsNegative() {
		deployable = sdkmath.ZeroInt()
	}

	// ===== ANALYZE REQUIRED CHANGES =====
	withdrawals, deposits = analyzeRequiredChanges(allocations, deployable, params, planLogger)

	// ===== APPLY REBALANCING LIMITS =====
	withdrawals = applyRebalancingLimits(withdrawals, totalAssets, params, planLogger)

	// ===== FUND DEPOSITS =====
	available := idle.Sub(params.IdleReserveTarget)
	for _, w := range withdrawals {
		available = available.Add(w.Amount)
	}
	deposits = fundDeposits(deposits, available, params)

	planLogger.Info().
		Str("totalAssets", totalAssets.String()).
		Str("deployable", deployable.String()).
		Int("withdrawals", len(withdrawals)).
		Int("deposits", len(deposits)).
		Msg("Rebalance plan generated")

	return withdrawals, deposits, nil
}

// validateInputs performs comprehensive validation of all input parameters
func validateInputs(
	allocations []types.StrategyAllocation,
	totalAssets sdkmath.Int,
	idle sdkmath.Int,
	params types.VaultParameters,
) error {
	if totalAssets.IsNil() || totalAssets.IsNegative() {
		return ErrInvalidTotalAssets
	}
	if idle.IsNil() || idle.IsNegative() {
		return errors.Join(ErrInvalidIdle, errors.New("idle balance cannot be negative"))
	}
	if idle.GT(totalAssets) {
		return errors.Join(ErrInvalidIdle, fmt.Errorf("idle %s exceeds total assets %s", idle, totalAssets))
	}

	if params.IdleReserveTarget.IsNil() || params.IdleReserveTarget.IsNegative() {
		return errors.Join(ErrInvalidParameters, errors.New("idle reserve target cannot be negative"))
	}
	if params.MinActionAmount.IsNil() || params.MinActionAmount.IsNegative() {
		return errors.Join(ErrInvalidParameters, errors.New("minimum action amount cannot be negative"))
	}
	if params.RebalanceThresholdBps > utils.BpsDenominator {
		return errors.Join(ErrInvalidParameters,
			fmt.Errorf("rebalance threshold %d bps exceeds 100%%", params.RebalanceThresholdBps))
	}
	if params.MaxRebalanceBpsPerCycle == 0 || params.MaxRebalanceBpsPerCycle > utils.BpsDenominator {
		return errors.Join(ErrInvalidParameters,
			fmt.Errorf("max rebalance per cycle %d bps must be in (0, 10000]", params.MaxRebalanceBpsPerCycle))
	}

	seen := make(map[string]struct{}, len(allocations))
	weights := make([]uint32, 0, len(allocations))
	held := sdkmath.ZeroInt()
	for i, a := range allocations {
		if a.StrategyID == "" {
			return errors.Join(ErrInvalidAllocations, fmt.Errorf("allocation %d has no strategy id", i))
		}
		if _, dup := seen[a.StrategyID]; dup {
			return errors.Join(ErrInvalidAllocations, fmt.Errorf("strategy %s listed twice", a.StrategyID))
		}
		seen[a.StrategyID] = struct{}{}
		if a.Current.IsNil() || a.Current.IsNegative() {
			return errors.Join(ErrInvalidAllocations, fmt.Errorf("strategy %s has invalid holdings", a.StrategyID))
		}
		weights = append(weights, a.WeightBps)
		held = held.Add(a.Current)
	}
	if total, ok := utils.SumBps(weights...); !ok {
		return errors.Join(ErrInvalidAllocations, fmt.Errorf("weights sum to %d bps", total))
	}
	if held.Add(idle).GT(totalAssets) {
		return errors.Join(ErrInvalidTotalAssets,
			fmt.Errorf("strategies (%s) and idle (%s) exceed total assets %s", held, idle, totalAssets))
	}
	return nil
}

// analyzeRequiredChanges determines which strategies need recalls vs deposits
func analyzeRequiredChanges(
	allocations []types.StrategyAllocation,
	deployable sdkmath.Int,
	params types.VaultParameters,
	planLogger zerolog.Logger,
) ([]types.AllocationAction, []types.AllocationAction) {
	var withdrawals []types.AllocationAction
	var deposits []types.AllocationAction

	for _, a := range allocations {
		if !a.Active {
			planLogger.Debug().Str("strategy", a.StrategyID).Msg("Skipping inactive strategy")
			continue
		}
		target := utils.ApplyBps(deployable, a.WeightBps)
		delta := target.Sub(a.Current)
		if delta.IsZero() {
			continue
		}

		// deviation relative to target; a zero target means a complete exit
		deviationBps := uint32(utils.BpsDenominator)
		if target.IsPositive() {
			deviationBps = utils.ShareOfBps(delta.Abs(), target)
		}

		planLogger.Debug().
			Str("strategy", a.StrategyID).
			Str("current", a.Current.String()).
			Str("target", target.String()).
			Str("delta", delta.String()).
			Uint32("deviationBps", deviationBps).
			Uint32("thresholdBps", params.RebalanceThresholdBps).
			Msg("Strategy rebalancing analysis")

		if deviationBps <= params.RebalanceThresholdBps || delta.Abs().LT(params.MinActionAmount) {
			continue
		}

		action := types.AllocationAction{
			StrategyID: a.StrategyID,
			Amount:     delta.Abs(),
			Current:    a.Current,
			Target:     target,
		}
		if delta.IsNegative() {
			action.Type = types.AllocationWithdraw
			withdrawals = append(withdrawals, action)
		} else {
			action.Type = types.AllocationDeposit
			deposits = append(deposits, action)
		}
	}
	return withdrawals, deposits
}

// applyRebalancingLimits scales recalls down to the per-cycle cap. Deposits are not limited here; they
// are bounded by available funds instead.
func applyRebalancingLimits(
	withdrawals []types.AllocationAction,
	totalAssets sdkmath.Int,
	params types.VaultParameters,
	planLogger zerolog.Logger,
) []types.AllocationAction {
	maxWithdrawal := utils.ApplyBps(totalAssets, params.MaxRebalanceBpsPerCycle)

	totalWithdrawal := sdkmath.ZeroInt()
	for _, w := range withdrawals {
		totalWithdrawal = totalWithdrawal.Add(w.Amount)
	}
	if totalWithdrawal.LTE(maxWithdrawal) {
		return withdrawals
	}

	planLogger.Warn().
		Str("totalWithdrawal", totalWithdrawal.String()).
		Str("maxWithdrawal", maxWithdrawal.String()).
		Msg("Recall amount exceeds per-cycle limit, scaling down")

	capped := make([]types.AllocationAction, 0, len(withdrawals))
	for _, w := range withdrawals {
		w.Amount = w.Amount.Mul(maxWithdrawal).Quo(totalWithdrawal)
		if w.Amount.IsZero() || w.Amount.LT(params.MinActionAmount) {
			continue
		}
		capped = append(capped, w)
	}
	return capped
}

// fundDeposits trims deposits, in order, to the funds available above the idle reserve.
func fundDeposits(deposits []types.AllocationAction, available sdkmath.Int, params types.VaultParameters) []types.AllocationAction {
	funded := make([]types.AllocationAction, 0, len(deposits))
	for _, d := range deposits {
		if !available.IsPositive() {
			break
		}
		d.Amount = utils.MinInt(d.Amount, available)
		if d.Amount.LT(params.MinActionAmount) {
			continue
		}
		available = available.Sub(d.Amount)
		funded = append(funded, d)
	}
	return funded
}

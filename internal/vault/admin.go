package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/mvault/internal/planner"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/utils"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

func weightsWithin(strategies []strategyEntry) (uint64, bool) {
	weights := make([]uint32, len(strategies))
	for i, e := range strategies {
		weights[i] = e.weightBps
	}
	return utils.SumBps(weights...)
}

// AddStrategy binds an adapter with a target weight. The adapter must be bound to this vault's
// account and settle in the vault asset, and the weight table must stay within 100%.
func (v *Vault) AddStrategy(ctx context.Context, caller types.Address, s Strategy, weightBps uint32) error {
	ctx, unlock, opLog, err := v.enter(ctx, "add_strategy")
	if err != nil {
		return err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return err
	}
	if s == nil || s.ID() == "" {
		return vaulterrors.ErrStrategyNotInitialized
	}
	if s.Vault() != v.addr {
		return errorsmod.Wrapf(vaulterrors.ErrNotAuthorizedCaller, "strategy %s is bound to %s, not %s", s.ID(), s.Vault(), v.addr)
	}
	if s.Asset() != v.asset {
		return errorsmod.Wrapf(vaulterrors.ErrAssetMismatch, "strategy %s settles in %s, vault asset is %s", s.ID(), s.Asset(), v.asset)
	}

	cfg := v.cfg.Load()
	if _, exists := cfg.find(s.ID()); exists {
		return errorsmod.Wrap(vaulterrors.ErrDuplicateStrategy, s.ID())
	}
	next := cfg.clone()
	next.strategies = append(next.strategies, strategyEntry{strategy: s, weightBps: weightBps})
	if total, ok := weightsWithin(next.strategies); !ok {
		return errorsmod.Wrapf(vaulterrors.ErrCapExceeded, "weights would sum to %d bps", total)
	}
	v.cfg.Store(next)

	v.emit(types.EventStrategyAdded, s.ID(), caller, sdkmath.Int{}, sdkmath.Int{}, fmt.Sprintf("weight %d bps", weightBps))
	opLog.Info().Str("strategy", s.ID()).Str("kind", string(s.Kind())).Uint32("weightBps", weightBps).Msg("Strategy added")
	return nil
}

// RemoveStrategy recalls everything from a strategy and unbinds it. If the recall fails or leaves
// value behind, the strategy stays bound.
func (v *Vault) RemoveStrategy(ctx context.Context, caller types.Address, id string) error {
	ctx, unlock, opLog, err := v.enter(ctx, "remove_strategy")
	if err != nil {
		return err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return err
	}
	cfg := v.cfg.Load()
	idx, ok := cfg.find(id)
	if !ok {
		return errorsmod.Wrap(vaulterrors.ErrUnknownStrategy, id)
	}
	s := cfg.strategies[idx].strategy

	recovered, err := s.EmergencyWithdraw(ctx)
	if err != nil {
		return fmt.Errorf("recall strategy %s before removal: %w", id, err)
	}
	left, err := s.GetTotalAssets(ctx)
	if err != nil {
		return fmt.Errorf("value strategy %s after recall: %w", id, err)
	}
	if left.IsPositive() {
		return errorsmod.Wrapf(vaulterrors.ErrInsufficientBalance, "strategy %s still holds %s after recall", id, left)
	}

	next := cfg.clone()
	next.strategies = append(next.strategies[:idx], next.strategies[idx+1:]...)
	v.cfg.Store(next)

	v.emit(types.EventStrategyRemoved, id, caller, recovered, sdkmath.Int{}, "")
	opLog.Info().Str("strategy", id).Str("recovered", recovered.String()).Msg("Strategy removed")
	return nil
}

// SetWeights replaces the weights of the listed strategies; unlisted ones keep theirs.
func (v *Vault) SetWeights(ctx context.Context, caller types.Address, weights map[string]uint32) error {
	_, unlock, opLog, err := v.enter(ctx, "set_weights")
	if err != nil {
		return err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return err
	}
	next := v.cfg.Load().clone()
	for id, w := range weights {
		idx, ok := next.find(id)
		if !ok {
			return errorsmod.Wrap(vaulterrors.ErrUnknownStrategy, id)
		}
		next.strategies[idx].weightBps = w
	}
	if total, ok := weightsWithin(next.strategies); !ok {
		return errorsmod.Wrapf(vaulterrors.ErrCapExceeded, "weights would sum to %d bps", total)
	}
	v.cfg.Store(next)

	v.emit(types.EventWeightsUpdated, "", caller, sdkmath.Int{}, sdkmath.Int{}, formatWeights(weights))
	opLog.Info().Str("weights", formatWeights(weights)).Msg("Weights updated")
	return nil
}

func formatWeights(weights map[string]uint32) string {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s=%d", id, weights[id])
	}
	return strings.Join(parts, ",")
}

// Rebalance moves each active strategy toward its weighted target: over-allocated strategies are
// recalled first, then under-allocated ones are funded from idle above the reserve. Each adapter's
// own rebalance runs afterwards. Strategy failures are reported in the receipts and events.
func (v *Vault) Rebalance(ctx context.Context, caller types.Address) (types.RebalanceReport, error) {
	report := types.RebalanceReport{}
	ctx, unlock, opLog, err := v.enter(ctx, "rebalance")
	if err != nil {
		return report, err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return report, err
	}
	if v.paused.Load() {
		return report, vaulterrors.ErrPaused
	}
	cfg := v.cfg.Load()
	h, err := v.valuate(ctx, cfg)
	if err != nil {
		return report, err
	}

	allocations := make([]types.StrategyAllocation, len(cfg.strategies))
	byID := make(map[string]Strategy, len(cfg.strategies))
	for i, e := range cfg.strategies {
		allocations[i] = types.StrategyAllocation{
			StrategyID: e.strategy.ID(),
			WeightBps:  e.weightBps,
			Current:    h.strategies[i],
			Active:     e.strategy.IsActive(),
		}
		byID[e.strategy.ID()] = e.strategy
	}

	withdrawals, deposits, err := planner.GenerateRebalancePlan(allocations, h.total, h.idle, cfg.params)
	if err != nil {
		return report, fmt.Errorf("plan rebalance: %w", err)
	}

	for _, action := range withdrawals {
		receipt := types.ActionReceipt{Action: action, Moved: sdkmath.ZeroInt()}
		got, err := byID[action.StrategyID].Withdraw(ctx, action.Amount)
		if err != nil {
			v.strategyFailed(opLog, action.StrategyID, "rebalance withdraw", action.Amount, err)
			receipt.Message = err.Error()
		} else {
			receipt.Success, receipt.Moved = true, got
		}
		report.Withdrawals = append(report.Withdrawals, receipt)
	}

	for _, action := range deposits {
		receipt := types.ActionReceipt{Action: action, Moved: sdkmath.ZeroInt()}
		// recalls may have delivered less than planned
		available := v.idle().Sub(cfg.params.IdleReserveTarget)
		amount := utils.MinInt(action.Amount, available)
		if !amount.IsPositive() {
			receipt.Message = "no idle funds above reserve"
			report.Deposits = append(report.Deposits, receipt)
			continue
		}
		deposited, err := byID[action.StrategyID].Deposit(ctx, amount)
		if err != nil {
			v.strategyFailed(opLog, action.StrategyID, "rebalance deposit", amount, err)
			receipt.Message = err.Error()
		} else {
			receipt.Success, receipt.Moved = true, deposited
		}
		report.Deposits = append(report.Deposits, receipt)
	}

	for _, e := range cfg.strategies {
		if !e.strategy.IsActive() {
			continue
		}
		if err := e.strategy.Rebalance(ctx); err != nil {
			v.strategyFailed(opLog, e.strategy.ID(), "backend rebalance", sdkmath.Int{}, err)
		}
	}

	opLog.Info().
		Int("withdrawals", len(report.Withdrawals)).
		Int("deposits", len(report.Deposits)).
		Str("moved", report.Moved().String()).
		Msg("Rebalance completed")
	return report, nil
}

// Harvest collects profit from every strategy into idle. Failures are reported and skipped.
func (v *Vault) Harvest(ctx context.Context, caller types.Address) (sdkmath.Int, error) {
	ctx, unlock, opLog, err := v.enter(ctx, "harvest")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}
	total := sdkmath.ZeroInt()
	for _, e := range v.cfg.Load().strategies {
		profit, err := e.strategy.Harvest(ctx)
		if err != nil {
			v.strategyFailed(opLog, e.strategy.ID(), "harvest", sdkmath.Int{}, err)
			continue
		}
		total = total.Add(profit)
	}
	opLog.Info().Str("harvested", total.String()).Msg("Harvest completed")
	return total, nil
}

// EmergencyExit recalls everything from one strategy and leaves it bound but inactive.
func (v *Vault) EmergencyExit(ctx context.Context, caller types.Address, id string) (sdkmath.Int, error) {
	ctx, unlock, opLog, err := v.enter(ctx, "emergency_exit")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s, err := v.lookup(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	recovered, err := s.EmergencyWithdraw(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("emergency exit %s: %w", id, err)
	}
	opLog.Warn().Str("strategy", id).Str("recovered", recovered.String()).Msg("Emergency exit completed")
	return recovered, nil
}

func (v *Vault) lookup(id string) (Strategy, error) {
	cfg := v.cfg.Load()
	idx, ok := cfg.find(id)
	if !ok {
		return nil, errorsmod.Wrap(vaulterrors.ErrUnknownStrategy, id)
	}
	return cfg.strategies[idx].strategy, nil
}

// PauseStrategy stops new deposits into a strategy; it stays withdrawable.
func (v *Vault) PauseStrategy(ctx context.Context, caller types.Address, id string) error {
	return v.setStrategyActive(ctx, caller, id, false)
}

func (v *Vault) ResumeStrategy(ctx context.Context, caller types.Address, id string) error {
	return v.setStrategyActive(ctx, caller, id, true)
}

func (v *Vault) setStrategyActive(ctx context.Context, caller types.Address, id string, active bool) error {
	ctx, unlock, opLog, err := v.enter(ctx, "set_strategy_active")
	if err != nil {
		return err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return err
	}
	s, err := v.lookup(id)
	if err != nil {
		return err
	}
	if active {
		err = s.Resume(ctx, v.addr)
	} else {
		err = s.Pause(ctx, v.addr)
	}
	if err != nil {
		return err
	}
	opLog.Info().Str("strategy", id).Bool("active", active).Msg("Strategy activity changed")
	return nil
}

// Pause stops deposits and rebalancing. Withdrawals stay open.
func (v *Vault) Pause(ctx context.Context, caller types.Address) error {
	return v.setPaused(ctx, caller, true)
}

func (v *Vault) Resume(ctx context.Context, caller types.Address) error {
	return v.setPaused(ctx, caller, false)
}

func (v *Vault) setPaused(ctx context.Context, caller types.Address, paused bool) error {
	_, unlock, opLog, err := v.enter(ctx, "set_paused")
	if err != nil {
		return err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return err
	}
	v.paused.Store(paused)
	eventType := types.EventVaultResumed
	if paused {
		eventType = types.EventVaultPaused
	}
	v.emit(eventType, "", caller, sdkmath.Int{}, sdkmath.Int{}, "")
	opLog.Info().Bool("paused", paused).Msg("Vault pause state changed")
	return nil
}

// SetParameters installs a new parameter set.
func (v *Vault) SetParameters(ctx context.Context, caller types.Address, params types.VaultParameters) error {
	_, unlock, opLog, err := v.enter(ctx, "set_parameters")
	if err != nil {
		return err
	}
	defer unlock()

	if err := v.requireAdmin(caller); err != nil {
		return err
	}
	if err := ValidateParameters(params); err != nil {
		return err
	}
	next := v.cfg.Load().clone()
	next.params = params
	v.cfg.Store(next)

	v.emit(types.EventParametersSet, "", caller, sdkmath.Int{}, sdkmath.Int{}, "")
	opLog.Info().
		Str("idleReserveTarget", params.IdleReserveTarget.String()).
		Str("depositCap", params.DepositCap.String()).
		Uint32("rebalanceThresholdBps", params.RebalanceThresholdBps).
		Uint32("maxRebalanceBpsPerCycle", params.MaxRebalanceBpsPerCycle).
		Msg("Parameters updated")
	return nil
}

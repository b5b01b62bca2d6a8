/*

This file contains the tunable vault parameters. They are owned by the vault as an immutable
snapshot and replaced wholesale on update.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// VaultParameters holds the reserve, cap and rebalancing policy of the vault.
type VaultParameters struct {
	// IdleReserveTarget is the amount of the deposit asset kept undeployed for immediate withdrawals.
	IdleReserveTarget sdkmath.Int `json:"idle_reserve_target"`
	// DepositCap bounds total vault assets after a deposit. Zero disables the cap.
	DepositCap sdkmath.Int `json:"deposit_cap"`
	// RebalanceThresholdBps is the minimum deviation from target (relative to target) that triggers a move.
	RebalanceThresholdBps uint32 `json:"rebalance_threshold_bps"`
	// MaxRebalanceBpsPerCycle caps the value recalled from strategies by a single rebalance, relative to total assets.
	// Does not limit deposits.
	MaxRebalanceBpsPerCycle uint32 `json:"max_rebalance_bps_per_cycle"`
	// MinActionAmount is the smallest move the rebalancer will execute.
	MinActionAmount sdkmath.Int `json:"min_action_amount"`
	// DefaultMaxSlippageBps is applied to adapters that are created without their own bound.
	DefaultMaxSlippageBps uint32 `json:"default_max_slippage_bps"`
}

// AllocationActionType is the direction of a planned strategy move.
type AllocationActionType string

const (
	AllocationDeposit  AllocationActionType = "DEPOSIT"
	AllocationWithdraw AllocationActionType = "WITHDRAW"
)

// StrategyAllocation is the input to the rebalance planner for one strategy.
type StrategyAllocation struct {
	StrategyID string      `json:"strategy_id"`
	WeightBps  uint32      `json:"weight_bps"`
	Current    sdkmath.Int `json:"current"`
	Active     bool        `json:"active"`
}

// AllocationAction is one step of a rebalance plan.
type AllocationAction struct {
	Type       AllocationActionType `json:"type"`
	StrategyID string               `json:"strategy_id"`
	Amount     sdkmath.Int          `json:"amount"`
	Current    sdkmath.Int          `json:"current"`
	Target     sdkmath.Int          `json:"target"`
}

// ActionReceipt records the outcome of executing an AllocationAction.
type ActionReceipt struct {
	Action  AllocationAction `json:"action"`
	Success bool             `json:"success"`
	Moved   sdkmath.Int      `json:"moved"`
	Message string           `json:"message,omitempty"`
}

// RebalanceReport is returned by the vault after a rebalance.
type RebalanceReport struct {
	Withdrawals []ActionReceipt `json:"withdrawals"`
	Deposits    []ActionReceipt `json:"deposits"`
}

// Moved returns the total value moved in either direction.
func (r RebalanceReport) Moved() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, rc := range r.Withdrawals {
		total = total.Add(rc.Moved)
	}
	for _, rc := range r.Deposits {
		total = total.Add(rc.Moved)
	}
	return total
}

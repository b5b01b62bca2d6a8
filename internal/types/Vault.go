/*

This file contains the core vault types shared between the ledger, the strategy adapters and the operator.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// Address identifies an account in the token ledger (depositor, vault, adapter, backend, venue).
type Address string

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

func (a Address) String() string { return string(a) }

// BackendKind tags the shape of the external position behind a strategy adapter.
type BackendKind string

const (
	BackendDualTokenAmm       BackendKind = "DUAL_TOKEN_AMM"
	BackendSingleTokenLending BackendKind = "SINGLE_TOKEN_LENDING"
)

// StrategyStatus is a point-in-time view of one strategy bound to the vault.
type StrategyStatus struct {
	ID                     string      `json:"id"`
	Kind                   BackendKind `json:"kind"`
	WeightBps              uint32      `json:"weight_bps"`
	Active                 bool        `json:"active"`
	TotalAssets            sdkmath.Int `json:"total_assets"`
	CurrentAllocationBps   uint32      `json:"current_allocation_bps"` // share of total vault assets
	LastRebalanceTimestamp int64       `json:"last_rebalance_timestamp,omitempty"`
}

// VaultSummary is the headline accounting view of the vault.
type VaultSummary struct {
	AssetDenom  string            `json:"asset_denom"`
	TotalAssets sdkmath.Int       `json:"total_assets"`
	TotalShares sdkmath.Int       `json:"total_shares"`
	Idle        sdkmath.Int       `json:"idle"`
	SharePrice  sdkmath.LegacyDec `json:"share_price"` // assets per share, zero for an empty vault
	Paused      bool              `json:"paused"`
	Strategies  []StrategyStatus  `json:"strategies"`
}

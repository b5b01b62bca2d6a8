/*

This file contains the default parameters for the vault.

They are used when no active parameter version exists in the database and as the base for
environment overrides. Amounts are in base units of the settlement asset (6 decimals for uusdc).

*/

package config

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/mvault/internal/types"
)

const (
	// DefaultParametersConfigName is the config name parameter versions are stored under.
	DefaultParametersConfigName = "default"
	// DefaultParametersVersion is the version saved when the database holds none.
	DefaultParametersVersion = 1
)

// DefaultVaultParameters provides a baseline set of parameters for the vault ledger and its rebalancer.
var DefaultVaultParameters = types.VaultParameters{
	IdleReserveTarget: sdkmath.NewInt(50_000_000), // Keep 50 units of the asset undeployed.
	// Rationale: small withdrawals settle from idle without touching strategies,
	// which avoids paying backend exit costs for routine redemptions.

	DepositCap: sdkmath.ZeroInt(), // No cap.
	// Rationale: caps are an operator decision per deployment; set MVAULT_DEPOSIT_CAP to enable.

	RebalanceThresholdBps: 500, // Rebalance a strategy when it is 5% away from its target.
	// Rationale: every move through a dual-token backend pays swap fees and slippage.
	// Small deviations cost more to correct than they lose in yield.

	MaxRebalanceBpsPerCycle: 1_000, // Recall at most 10% of the vault per cycle.
	// Rationale: large recalls move backend prices against the vault.
	// Spreading a big weight change over several cycles keeps slippage inside its bound.

	MinActionAmount: sdkmath.NewInt(1_000_000), // Skip moves smaller than 1 unit.
	// Rationale: dust moves churn events and fees without changing the allocation.

	DefaultMaxSlippageBps: 100, // Allow up to 1% slippage on swaps and liquidity moves.
	// Rationale: strict enough that a manipulated pool fails the move instead of draining value,
	// loose enough that normal fee tiers clear.
}

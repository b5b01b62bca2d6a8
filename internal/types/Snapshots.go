/*

This file contains the types recorded for each operator cycle.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// CycleSnapshot captures the vault before and after one operator cycle.
type CycleSnapshot struct {
	SnapshotID  int64     `json:"snapshot_id,omitempty"`
	CycleNumber int       `json:"cycle_number"`
	CycleID     string    `json:"cycle_id"`
	Timestamp   time.Time `json:"timestamp"`
	ParamsID    *int64    `json:"params_id,omitempty"`

	// Pre-Action State
	InitialTotalAssets sdkmath.Int      `json:"initial_total_assets"`
	InitialIdle        sdkmath.Int      `json:"initial_idle"`
	InitialStrategies  []StrategyStatus `json:"initial_strategies"`

	// The Outcome
	Harvested        sdkmath.Int      `json:"harvested"`
	Rebalance        RebalanceReport  `json:"rebalance"`
	FinalTotalAssets sdkmath.Int      `json:"final_total_assets"`
	FinalIdle        sdkmath.Int      `json:"final_idle"`
	FinalTotalShares sdkmath.Int      `json:"final_total_shares"`
	FinalStrategies  []StrategyStatus `json:"final_strategies"`
	EventIDs         []string         `json:"event_ids"`
	Errors           []string         `json:"errors,omitempty"`
}

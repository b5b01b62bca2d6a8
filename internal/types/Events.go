package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// EventType names every signal emitted by the vault and its adapters.
type EventType string

const (
	EventDeposit          EventType = "VAULT_DEPOSIT"
	EventWithdraw         EventType = "VAULT_WITHDRAW"
	EventStrategyAdded    EventType = "STRATEGY_ADDED"
	EventStrategyRemoved  EventType = "STRATEGY_REMOVED"
	EventWeightsUpdated   EventType = "WEIGHTS_UPDATED"
	EventStrategyFailed   EventType = "STRATEGY_FAILED"
	EventVaultPaused      EventType = "VAULT_PAUSED"
	EventVaultResumed     EventType = "VAULT_RESUMED"
	EventParametersSet    EventType = "PARAMETERS_SET"
	EventDepositCompleted EventType = "DEPOSIT_COMPLETED"
	EventWithdrawComplete EventType = "WITHDRAW_COMPLETED"
	EventHarvested        EventType = "HARVESTED"
	EventRebalanced       EventType = "REBALANCED"
	EventEmergencyExit    EventType = "EMERGENCY_EXIT"
)

// Event is a structured record of something that happened to the vault or one of its strategies.
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	StrategyID string                 `json:"strategy_id,omitempty"`
	Account    Address                `json:"account,omitempty"`
	Amounts    map[string]sdkmath.Int `json:"amounts,omitempty"`
	Shares     sdkmath.Int            `json:"shares,omitempty"`
	Message    string                 `json:"message,omitempty"`
}

package vault

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/mvault/internal/types"
)

// Strategy is the vault's typed handle on one adapter. An adapter is bound to a single vault account
// when it is built; the vault only accepts handles bound to its own account.
type Strategy interface {
	ID() string
	Kind() types.BackendKind
	Vault() types.Address
	Asset() string
	IsActive() bool
	LastRebalance() time.Time

	// GetTotalAssets returns the adapter's stake valued in the vault asset.
	GetTotalAssets(ctx context.Context) (sdkmath.Int, error)

	// Deposit pulls amount from the vault and returns how much stayed deployed.
	Deposit(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error)

	// Withdraw recalls up to amount of value and returns what reached the vault.
	Withdraw(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error)

	// EmergencyWithdraw recalls everything and deactivates the adapter.
	EmergencyWithdraw(ctx context.Context) (sdkmath.Int, error)

	// Harvest realizes profit above principal into the vault.
	Harvest(ctx context.Context) (sdkmath.Int, error)

	// Rebalance lets the backend re-center itself.
	Rebalance(ctx context.Context) error

	Pause(ctx context.Context, caller types.Address) error
	Resume(ctx context.Context, caller types.Address) error
}

// TokenLedger is the custody layer the vault holds its idle balance in.
type TokenLedger interface {
	Transfer(from, to types.Address, coin sdk.Coin) error
	Balance(addr types.Address, denom string) sdkmath.Int
}

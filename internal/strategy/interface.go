// Package strategy implements the adapters that deploy vault capital into external positions.
//
// Each adapter is bound to exactly one vault account at construction and settles every
// call back to that account before returning. Pair tokens it cannot convert into the
// settlement asset stay with the adapter, which keeps counting them in its total assets.
package strategy

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/mvault/internal/types"
)

// Adapter is the surface every backend-specific adapter exposes to the vault.
type Adapter interface {
	ID() string
	Kind() types.BackendKind
	Address() types.Address
	Vault() types.Address
	Asset() string
	IsActive() bool
	LastRebalance() time.Time

	GetTotalAssets(ctx context.Context) (sdkmath.Int, error)
	Deposit(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error)
	Withdraw(ctx context.Context, amount sdkmath.Int) (sdkmath.Int, error)
	EmergencyWithdraw(ctx context.Context) (sdkmath.Int, error)
	Harvest(ctx context.Context) (sdkmath.Int, error)
	Rebalance(ctx context.Context) error

	Pause(ctx context.Context, caller types.Address) error
	Resume(ctx context.Context, caller types.Address) error
}

// TokenLedger moves and reads balances. *bank.Ledger satisfies it.
type TokenLedger interface {
	Transfer(from, to types.Address, coin sdk.Coin) error
	Balance(addr types.Address, denom string) sdkmath.Int
}

// PriceReference quotes the price of one unit of the pair's first token in the second.
type PriceReference interface {
	GetTwapRate(ctx context.Context, window time.Duration) (sdkmath.LegacyDec, error)
	IsFresh(ctx context.Context) bool
}

// SwapVenue executes exact-input swaps for the trader account.
type SwapVenue interface {
	SwapExactIn(
		ctx context.Context,
		trader types.Address,
		tokenIn, tokenOut string,
		feeTier uint32,
		amountIn, minAmountOut sdkmath.Int,
	) (sdkmath.Int, error)
}

// Quoter is implemented by venues that can price an exact-input swap without executing it.
type Quoter interface {
	QuoteExactIn(tokenIn, tokenOut string, amountIn sdkmath.Int) (sdkmath.Int, error)
}

// DualTokenBackend is a shared two-token position. Token0 is the adapter's token A.
type DualTokenBackend interface {
	Token0() string
	Token1() string
	InRange(ctx context.Context) (bool, error)
	Deposit(
		ctx context.Context,
		from, to types.Address,
		amount0Desired, amount1Desired, amount0Min, amount1Min sdkmath.Int,
	) (shares, used0, used1 sdkmath.Int, err error)
	Withdraw(
		ctx context.Context,
		owner, to types.Address,
		shares, amount0Min, amount1Min sdkmath.Int,
	) (amount0, amount1 sdkmath.Int, err error)
	GetTotalAmounts(ctx context.Context) (total0, total1 sdkmath.Int, err error)
	BalanceOf(ctx context.Context, account types.Address) (sdkmath.Int, error)
	TotalSupply(ctx context.Context) (sdkmath.Int, error)
}

// Rebalancer is implemented by backends that can re-center their own position.
type Rebalancer interface {
	Rebalance(ctx context.Context) error
}

// LendingBackend is a shared single-token money market.
type LendingBackend interface {
	Denom() string
	Supply(ctx context.Context, from types.Address, amount sdkmath.Int) (sdkmath.Int, error)
	Redeem(ctx context.Context, owner, to types.Address, shares sdkmath.Int) (sdkmath.Int, error)
	BalanceOf(ctx context.Context, account types.Address) (sdkmath.Int, error)
	TotalSupply(ctx context.Context) (sdkmath.Int, error)
	TotalAssets(ctx context.Context) (sdkmath.Int, error)
}

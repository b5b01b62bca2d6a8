package strategy

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/simulations"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

const lendingAddr types.Address = "adapter-lend"

func newLendingFixture(t *testing.T) (*bank.Ledger, *simulations.LendingPool, *LendingAdapter, *events.Recorder) {
	t.Helper()
	ledger := bank.NewLedger()
	require.NoError(t, ledger.Mint(vaultAddr, sdk.NewCoin(denomB, startBalance)))
	require.NoError(t, ledger.Mint(lpAddr, sdk.NewCoin(denomB, startBalance)))

	pool := simulations.NewLendingPool("pool", ledger, denomB)
	sink := events.NewRecorder(0)
	adapter, err := NewLending(Config{
		ID:      "lend-1",
		Address: lendingAddr,
		Vault:   vaultAddr,
		Admin:   adminAddr,
		Asset:   denomB,
		Ledger:  ledger,
		Events:  sink,
		Backend: Backend{
			Kind:    types.BackendSingleTokenLending,
			Lending: &LendingBackendConfig{Backend: pool},
		},
	})
	require.NoError(t, err)
	return ledger, pool, adapter, sink
}

func TestLendingDepositAndProportionalWithdraw(t *testing.T) {
	ctx := context.Background()
	ledger, pool, adapter, sink := newLendingFixture(t)

	// another supplier shares the pool
	_, err := pool.Supply(ctx, lpAddr, sdkmath.NewInt(1000))
	require.NoError(t, err)

	deposited, err := adapter.Deposit(ctx, sdkmath.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1000), deposited)
	assert.Len(t, sink.OfType(types.EventDepositCompleted), 1)

	require.NoError(t, pool.Accrue(sdkmath.NewInt(200)))
	total, err := adapter.GetTotalAssets(ctx)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewInt(1100), total)

	delivered, err := adapter.Withdraw(ctx, sdkmath.NewInt(550))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(550), delivered)

	shares, err := pool.BalanceOf(ctx, lendingAddr)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(500), shares)
	assert.True(t, ledger.Balance(lendingAddr, denomB).IsZero())
	assert.Equal(t, sdkmath.NewInt(500), adapter.Principal())
}

func TestLendingHarvest(t *testing.T) {
	ctx := context.Background()
	ledger, pool, adapter, sink := newLendingFixture(t)

	_, err := adapter.Deposit(ctx, sdkmath.NewInt(1000))
	require.NoError(t, err)

	realized, err := adapter.Harvest(ctx)
	require.NoError(t, err)
	assert.True(t, realized.IsZero())

	require.NoError(t, pool.Accrue(sdkmath.NewInt(100)))
	realized, err = adapter.Harvest(ctx)
	require.NoError(t, err)

	// 90 of 1000 shares (floor of 1000*100/1100) redeem for 99
	assert.Equal(t, sdkmath.NewInt(99), realized)
	assert.Equal(t, startBalance.SubRaw(1000).AddRaw(99), ledger.Balance(vaultAddr, denomB))
	assert.Equal(t, sdkmath.NewInt(1000), adapter.Principal())
	assert.Len(t, sink.OfType(types.EventHarvested), 1)
}

func TestLendingFailedSupplyReturnsFunds(t *testing.T) {
	ctx := context.Background()
	ledger, pool, adapter, _ := newLendingFixture(t)
	pool.SetFailure(errors.New("market frozen"))

	_, err := adapter.Deposit(ctx, sdkmath.NewInt(1000))
	require.Error(t, err)
	assert.Equal(t, startBalance, ledger.Balance(vaultAddr, denomB))
	assert.True(t, ledger.Balance(lendingAddr, denomB).IsZero())
	assert.True(t, adapter.Principal().IsZero())
}

func TestLendingEmergencyWithdraw(t *testing.T) {
	ctx := context.Background()
	ledger, _, adapter, _ := newLendingFixture(t)

	_, err := adapter.Deposit(ctx, sdkmath.NewInt(1000))
	require.NoError(t, err)

	recovered, err := adapter.EmergencyWithdraw(ctx)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(1000), recovered)
	assert.Equal(t, startBalance, ledger.Balance(vaultAddr, denomB))
	assert.False(t, adapter.IsActive())

	_, err = adapter.Deposit(ctx, sdkmath.NewInt(1))
	assert.ErrorIs(t, err, vaulterrors.ErrStrategyPaused)
}

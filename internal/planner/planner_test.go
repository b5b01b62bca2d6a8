package planner

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/types"
)

func testParams() types.VaultParameters {
	return types.VaultParameters{
		IdleReserveTarget:       sdkmath.NewInt(100),
		DepositCap:              sdkmath.ZeroInt(),
		RebalanceThresholdBps:   200,
		MaxRebalanceBpsPerCycle: 10_000,
		MinActionAmount:         sdkmath.NewInt(10),
		DefaultMaxSlippageBps:   100,
	}
}

func alloc(id string, weight uint32, current int64, active bool) types.StrategyAllocation {
	return types.StrategyAllocation{StrategyID: id, WeightBps: weight, Current: sdkmath.NewInt(current), Active: active}
}

func TestGenerateRebalancePlan(t *testing.T) {
	// total 1100, reserve 100: deployable 1000 split 60/40
	allocations := []types.StrategyAllocation{
		alloc("a", 6000, 900, true),
		alloc("b", 4000, 100, true),
	}
	withdrawals, deposits, err := GenerateRebalancePlan(allocations, sdkmath.NewInt(1100), sdkmath.NewInt(100), testParams())
	require.NoError(t, err)

	require.Len(t, withdrawals, 1)
	assert.Equal(t, "a", withdrawals[0].StrategyID)
	assert.Equal(t, types.AllocationWithdraw, withdrawals[0].Type)
	assert.Equal(t, sdkmath.NewInt(300), withdrawals[0].Amount)
	assert.Equal(t, sdkmath.NewInt(600), withdrawals[0].Target)

	require.Len(t, deposits, 1)
	assert.Equal(t, "b", deposits[0].StrategyID)
	assert.Equal(t, sdkmath.NewInt(300), deposits[0].Amount)
}

func TestGenerateRebalancePlanAtTargetIsNoop(t *testing.T) {
	allocations := []types.StrategyAllocation{
		alloc("a", 6000, 595, true), // within 200 bps of 600
		alloc("b", 4000, 400, true),
	}
	withdrawals, deposits, err := GenerateRebalancePlan(allocations, sdkmath.NewInt(1100), sdkmath.NewInt(105), testParams())
	require.NoError(t, err)
	assert.Empty(t, withdrawals)
	assert.Empty(t, deposits)
}

func TestGenerateRebalancePlanCapsRecalls(t *testing.T) {
	params := testParams()
	params.IdleReserveTarget = sdkmath.ZeroInt()
	params.MaxRebalanceBpsPerCycle = 1000 // 10% of 1000

	allocations := []types.StrategyAllocation{
		alloc("a", 0, 600, true),
		alloc("b", 0, 400, true),
	}
	withdrawals, _, err := GenerateRebalancePlan(allocations, sdkmath.NewInt(1000), sdkmath.ZeroInt(), params)
	require.NoError(t, err)
	require.Len(t, withdrawals, 2)
	assert.Equal(t, sdkmath.NewInt(60), withdrawals[0].Amount)
	assert.Equal(t, sdkmath.NewInt(40), withdrawals[1].Amount)
}

func TestGenerateRebalancePlanDepositsLimitedByIdle(t *testing.T) {
	allocations := []types.StrategyAllocation{
		alloc("a", 5000, 0, true),
		alloc("b", 5000, 0, true),
	}
	// reserve 100 of 1000 idle: 900 deployable, 450 each
	_, deposits, err := GenerateRebalancePlan(allocations, sdkmath.NewInt(1000), sdkmath.NewInt(1000), testParams())
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.Equal(t, sdkmath.NewInt(450), deposits[0].Amount)
	assert.Equal(t, sdkmath.NewInt(450), deposits[1].Amount)
}

func TestGenerateRebalancePlanSkipsInactive(t *testing.T) {
	allocations := []types.StrategyAllocation{
		alloc("paused", 5000, 900, false),
		alloc("b", 5000, 0, true),
	}
	withdrawals, deposits, err := GenerateRebalancePlan(allocations, sdkmath.NewInt(1000), sdkmath.NewInt(100), testParams())
	require.NoError(t, err)
	assert.Empty(t, withdrawals)
	// only idle above the reserve is available: nothing to deposit
	assert.Empty(t, deposits)
}

func TestValidateInputs(t *testing.T) {
	tests := []struct {
		name        string
		allocations []types.StrategyAllocation
		total       int64
		idle        int64
		mutate      func(*types.VaultParameters)
		target      error
	}{
		{
			name:        "weights over 100%",
			allocations: []types.StrategyAllocation{alloc("a", 6000, 0, true), alloc("b", 5000, 0, true)},
			total:       100,
			idle:        100,
			target:      ErrInvalidAllocations,
		},
		{
			name:        "duplicate strategy",
			allocations: []types.StrategyAllocation{alloc("a", 1000, 0, true), alloc("a", 1000, 0, true)},
			total:       100,
			idle:        100,
			target:      ErrInvalidAllocations,
		},
		{
			name:   "idle above total",
			total:  100,
			idle:   200,
			target: ErrInvalidIdle,
		},
		{
			name:        "holdings above total",
			allocations: []types.StrategyAllocation{alloc("a", 1000, 500, true)},
			total:       100,
			idle:        0,
			target:      ErrInvalidTotalAssets,
		},
		{
			name:   "zero recall cap",
			total:  100,
			idle:   100,
			mutate: func(p *types.VaultParameters) { p.MaxRebalanceBpsPerCycle = 0 },
			target: ErrInvalidParameters,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams()
			if tt.mutate != nil {
				tt.mutate(&params)
			}
			_, _, err := GenerateRebalancePlan(tt.allocations, sdkmath.NewInt(tt.total), sdkmath.NewInt(tt.idle), params)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

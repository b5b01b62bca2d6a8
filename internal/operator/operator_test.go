package operator

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/simulations"
	"github.com/elys-network/mvault/internal/strategy"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vault"
)

const (
	asset = "uusdc"

	vaultAddr types.Address = "vault"
	adminAddr types.Address = "admin"
	alice     types.Address = "alice"
)

type memoryStore struct {
	counter   int
	saved     []types.CycleSnapshot
	paramsID  int64
	failCount error
}

func (m *memoryStore) IncrementCycleNumber(context.Context) (int, error) {
	if m.failCount != nil {
		return 0, m.failCount
	}
	m.counter++
	return m.counter, nil
}

func (m *memoryStore) ActiveParametersID(context.Context) (*int64, error) {
	id := m.paramsID
	return &id, nil
}

func (m *memoryStore) SaveCycleSnapshot(_ context.Context, s types.CycleSnapshot) (int64, error) {
	m.saved = append(m.saved, s)
	return int64(len(m.saved)), nil
}

type harness struct {
	vault *vault.Vault
	sink  *events.Recorder
	pools map[string]*simulations.LendingPool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	ledger := bank.NewLedger()
	require.NoError(t, ledger.Mint(alice, sdk.NewInt64Coin(asset, 1_000_000)))

	sink := events.NewRecorder(0)
	v, err := vault.New(vault.Config{
		Address:    vaultAddr,
		Admin:      adminAddr,
		AssetDenom: asset,
		Ledger:     ledger,
		Events:     sink,
		Params: types.VaultParameters{
			IdleReserveTarget:       sdkmath.ZeroInt(),
			DepositCap:              sdkmath.ZeroInt(),
			RebalanceThresholdBps:   100,
			MaxRebalanceBpsPerCycle: 10_000,
			MinActionAmount:         sdkmath.NewInt(1),
			DefaultMaxSlippageBps:   100,
		},
	})
	require.NoError(t, err)

	h := &harness{vault: v, sink: sink, pools: make(map[string]*simulations.LendingPool)}
	for _, id := range []string{"lend-a", "lend-b"} {
		pool := simulations.NewLendingPool(types.Address("pool-"+id), ledger, asset)
		h.pools[id] = pool
		adapter, err := strategy.New(strategy.Config{
			ID:      id,
			Address: types.Address("adapter-" + id),
			Vault:   vaultAddr,
			Admin:   adminAddr,
			Asset:   asset,
			Ledger:  ledger,
			Events:  sink,
			Backend: strategy.Backend{
				Kind:    types.BackendSingleTokenLending,
				Lending: &strategy.LendingBackendConfig{Backend: pool},
			},
		})
		require.NoError(t, err)
		require.NoError(t, v.AddStrategy(ctx, adminAddr, adapter, 5000))
	}

	_, err = v.Deposit(ctx, alice, alice, sdkmath.NewInt(1000))
	require.NoError(t, err)
	return h
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Caller: adminAddr})
	require.Error(t, err)

	h := newHarness(t)
	_, err = New(Config{Vault: h.vault})
	require.Error(t, err)
}

func TestRunCycleHarvestsRebalancesAndSaves(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.vault.SetWeights(ctx, adminAddr, map[string]uint32{"lend-a": 8000, "lend-b": 2000}))
	require.NoError(t, h.pools["lend-a"].Accrue(sdkmath.NewInt(100)))

	store := &memoryStore{counter: 41, paramsID: 7}
	var completed []types.CycleSnapshot
	op, err := New(Config{
		Vault:           h.vault,
		Caller:          adminAddr,
		Store:           store,
		Events:          h.sink,
		OnCycleComplete: func(s types.CycleSnapshot) { completed = append(completed, s) },
	})
	require.NoError(t, err)

	snapshot := op.RunCycle(ctx)

	assert.Equal(t, 42, snapshot.CycleNumber)
	require.NotNil(t, snapshot.ParamsID)
	assert.Equal(t, int64(7), *snapshot.ParamsID)
	assert.NotEmpty(t, snapshot.CycleID)
	assert.Equal(t, sdkmath.NewInt(1100), snapshot.InitialTotalAssets)
	assert.Equal(t, sdkmath.NewInt(99), snapshot.Harvested)
	assert.NotEmpty(t, snapshot.Rebalance.Withdrawals)
	assert.Empty(t, snapshot.Errors)
	assert.Equal(t, sdkmath.NewInt(1000), snapshot.FinalTotalShares)
	require.Len(t, snapshot.FinalStrategies, 2)
	assert.NotEmpty(t, snapshot.EventIDs)

	require.Len(t, store.saved, 1)
	assert.Equal(t, int64(1), snapshot.SnapshotID)
	require.Len(t, completed, 1)
	assert.Equal(t, snapshot.CycleID, completed[0].CycleID)

	last, ok := op.LastSnapshot()
	require.True(t, ok)
	assert.Equal(t, snapshot.CycleID, last.CycleID)
	assert.Equal(t, 1, op.CycleCount())
}

func TestRunCycleSkipsActionsWhilePaused(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.vault.Pause(ctx, adminAddr))

	op, err := New(Config{Vault: h.vault, Caller: adminAddr})
	require.NoError(t, err)

	snapshot := op.RunCycle(ctx)
	assert.Equal(t, 1, snapshot.CycleNumber)
	assert.True(t, snapshot.Harvested.IsZero())
	assert.Empty(t, snapshot.Rebalance.Withdrawals)
	assert.Empty(t, snapshot.Rebalance.Deposits)
	assert.Empty(t, snapshot.Errors)
	assert.Equal(t, snapshot.InitialTotalAssets, snapshot.FinalTotalAssets)
}

func TestRunCycleRecordsFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// a caller that is not the administrator cannot harvest or rebalance
	store := &memoryStore{failCount: errors.New("db down")}
	op, err := New(Config{Vault: h.vault, Caller: alice, Store: store})
	require.NoError(t, err)

	snapshot := op.RunCycle(ctx)
	assert.Equal(t, 1, snapshot.CycleNumber, "falls back to the local count")
	assert.Len(t, snapshot.Errors, 2)
	assert.Len(t, store.saved, 1)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	op, err := New(Config{Vault: h.vault, Caller: adminAddr})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		op.RunLoop(ctx, time.Hour)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, 1, op.CycleCount())
}

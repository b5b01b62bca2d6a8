package state

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/types"
)

func TestNumericColumns(t *testing.T) {
	assert.Equal(t, "0", numeric(sdkmath.Int{}))
	big, ok := sdkmath.NewIntFromString("123456789012345678901234567890")
	require.True(t, ok)
	assert.Equal(t, "123456789012345678901234567890", numeric(big))

	v, err := parseNumeric("deposit_cap", "42")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(42), v)

	_, err = parseNumeric("deposit_cap", "4.2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deposit_cap")
}

func TestSnapshotJSONColumns(t *testing.T) {
	snapshot := types.CycleSnapshot{
		InitialStrategies: []types.StrategyStatus{{ID: "lend-a", WeightBps: 5000, TotalAssets: sdkmath.NewInt(500)}},
		Rebalance: types.RebalanceReport{
			Withdrawals: []types.ActionReceipt{{
				Action:  types.AllocationAction{Type: types.AllocationWithdraw, StrategyID: "lend-b", Amount: sdkmath.NewInt(300)},
				Success: true,
				Moved:   sdkmath.NewInt(300),
			}},
		},
	}
	columns, err := marshalSnapshotJSON(snapshot)
	require.NoError(t, err)

	var restored types.CycleSnapshot
	require.NoError(t, columns.unmarshalInto(&restored))
	require.Len(t, restored.InitialStrategies, 1)
	assert.Equal(t, "lend-a", restored.InitialStrategies[0].ID)
	assert.True(t, restored.InitialStrategies[0].TotalAssets.Equal(sdkmath.NewInt(500)))
	require.Len(t, restored.Rebalance.Withdrawals, 1)
	assert.True(t, restored.Rebalance.Moved().Equal(sdkmath.NewInt(300)))
	assert.Empty(t, restored.FinalStrategies)
}

func TestStoreRequiresDatabase(t *testing.T) {
	ctx := context.Background()
	saved := DB
	DB = nil
	t.Cleanup(func() { DB = saved })

	_, err := IncrementCycleNumber(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = SaveCycleSnapshot(ctx, types.CycleSnapshot{})
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, _, err = LoadActiveVaultParameters(ctx, "default")
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = GetRecentEvents(ctx, 10, "")
	assert.ErrorIs(t, err, ErrNoDatabase)
	assert.ErrorIs(t, EnsureSchema(), ErrNoDatabase)

	// the journal swallows persistence failures
	var sink events.Sink = NewJournal()
	assert.NotPanics(t, func() {
		sink.Emit(events.New(types.EventDeposit, ""))
	})
}

func TestDSN(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5432, User: "vault", Password: "secret", DBName: "mvault", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=vault password=secret dbname=mvault sslmode=disable", cfg.DSN())
}

func TestCycleStoreNeedsDatabase(t *testing.T) {
	saved := DB
	DB = nil
	t.Cleanup(func() { DB = saved })

	store := CycleStore{ConfigName: "default"}
	_, err := store.ActiveParametersID(context.Background())
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = store.SaveCycleSnapshot(context.Background(), types.CycleSnapshot{Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrNoDatabase)
}

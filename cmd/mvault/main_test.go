package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/elys-network/mvault/internal/config"
	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/operator"
	"github.com/elys-network/mvault/internal/types"
)

func newTestDeployment(t *testing.T) (*paperDeployment, *events.Recorder) {
	t.Helper()
	rec := events.NewRecorder(0)
	d, err := newPaperDeployment(context.Background(), paperConfig{
		Asset:  "uusdc",
		Vault:  "vault",
		Admin:  "admin",
		Params: config.DefaultVaultParameters,
		Events: rec,
	})
	require.NoError(t, err)
	return d, rec
}

func TestPaperDeployment(t *testing.T) {
	ctx := context.Background()
	d, rec := newTestDeployment(t)

	summary, err := d.vault.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, summary.TotalShares.Equal(paperSeedDeposit))
	require.Len(t, summary.Strategies, 2)
	assert.Equal(t, types.BackendDualTokenAmm, summary.Strategies[0].Kind)
	assert.Equal(t, types.BackendSingleTokenLending, summary.Strategies[1].Kind)
	assert.True(t, summary.Strategies[1].TotalAssets.IsPositive(), "seed deposit reaches the lending pool")
	assert.NotEmpty(t, rec.OfType(types.EventDeposit))

	before, err := d.vault.TotalAssets(ctx)
	require.NoError(t, err)
	require.NoError(t, d.accrue(ctx))
	after, err := d.vault.TotalAssets(ctx)
	require.NoError(t, err)
	assert.True(t, after.GT(before), "accrued yield raises vault value")
}

func TestPaperOperatorCycle(t *testing.T) {
	ctx := context.Background()
	d, rec := newTestDeployment(t)

	history := operator.NewHistory(10)
	op, err := operator.New(operator.Config{
		Vault:           d.vault,
		Caller:          "admin",
		Events:          rec,
		OnCycleComplete: history.Record,
	})
	require.NoError(t, err)

	require.NoError(t, d.accrue(ctx))
	snap := op.RunCycle(ctx)
	assert.Equal(t, 1, snap.CycleNumber)
	assert.True(t, snap.Harvested.IsPositive())

	recorded, err := history.RecentCycles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, snap.CycleID, recorded[0].CycleID)
}

func TestLoadParametersWithoutDatabase(t *testing.T) {
	params, err := loadParameters(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, config.VaultParameters(), params)
}

func TestVaultServingStatus(t *testing.T) {
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, vaultServingStatus(false))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, vaultServingStatus(true))
}

func TestHealthServerTracksPause(t *testing.T) {
	srv, err := newHealthServer("127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	defer srv.Stop()

	check := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := srv.health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: vaultHealthService})
		require.NoError(t, err)
		return resp.GetStatus()
	}
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check())
	srv.SetVaultPaused(false)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check())
	srv.SetVaultPaused(true)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check())
}

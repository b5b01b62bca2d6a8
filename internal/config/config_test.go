package config

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/types"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MVAULT_ASSET_DENOM", "uusdc")
	t.Setenv("MVAULT_ADMIN", "admin")
	t.Setenv("MVAULT_ADDRESS", "vault")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("MVAULT_IDLE_RESERVE", "")
	t.Setenv("MVAULT_DEPOSIT_CAP", "")
	t.Setenv("WEB_PORT", "")
	t.Setenv("DB_HOST", "")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "uusdc", AssetDenom)
	assert.Equal(t, types.Address("admin"), Admin)
	assert.Equal(t, types.Address("vault"), VaultAddress)
	assert.Equal(t, ModePaper, Mode)
	assert.Equal(t, "8080", WebPort)
	assert.Equal(t, 5432, DBPort)
	assert.Equal(t, "disable", DBSSLMode)
	assert.False(t, DatabaseEnabled())
	assert.Equal(t, DefaultVaultParameters, VaultParameters())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MVAULT_IDLE_RESERVE", "1000")
	t.Setenv("MVAULT_DEPOSIT_CAP", "5000000")
	t.Setenv("MVAULT_MAX_SLIPPAGE_BPS", "30")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "6543")

	require.NoError(t, LoadConfig())
	params := VaultParameters()
	assert.True(t, params.IdleReserveTarget.Equal(sdkmath.NewInt(1000)))
	assert.True(t, params.DepositCap.Equal(sdkmath.NewInt(5_000_000)))
	assert.Equal(t, uint32(30), params.DefaultMaxSlippageBps)
	assert.Equal(t, DefaultVaultParameters.RebalanceThresholdBps, params.RebalanceThresholdBps)
	assert.True(t, DatabaseEnabled())
	assert.Equal(t, 6543, DBPort)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"negative reserve", "MVAULT_IDLE_RESERVE", "-1"},
		{"non numeric cap", "MVAULT_DEPOSIT_CAP", "lots"},
		{"slippage above 100%", "MVAULT_MAX_SLIPPAGE_BPS", "10001"},
		{"bad db port", "DB_PORT", "postgres"},
		{"empty admin", "MVAULT_ADMIN", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.val)
			assert.Error(t, LoadConfig())
		})
	}
}

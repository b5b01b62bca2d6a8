package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/simulations"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

func TestNewDispatchesOnBackendKind(t *testing.T) {
	ledger := bank.NewLedger()
	pool := simulations.NewLendingPool("pool", ledger, denomB)
	amm := simulations.NewDualAmmBackend("backend", ledger, denomA, denomB)
	venue := simulations.NewConstantProductVenue("venue", ledger, denomA, denomB, 3000)
	price := simulations.NewStaticPriceReference(sdkmathDec(5))

	base := Config{ID: "s", Address: "adapter", Vault: vaultAddr, Asset: denomB, MaxSlippageBps: 50, Ledger: ledger}

	lendingCfg := base
	lendingCfg.Backend = Backend{Kind: types.BackendSingleTokenLending, Lending: &LendingBackendConfig{Backend: pool}}
	a, err := New(lendingCfg)
	require.NoError(t, err)
	assert.IsType(t, &LendingAdapter{}, a)
	assert.Equal(t, types.BackendSingleTokenLending, a.Kind())
	assert.Equal(t, vaultAddr, a.Vault())
	assert.True(t, a.IsActive())

	dualCfg := base
	dualCfg.Backend = Backend{Kind: types.BackendDualTokenAmm, Dual: &DualTokenBackendConfig{Backend: amm, Venue: venue, Price: price, FeeTier: 3000}}
	a, err = New(dualCfg)
	require.NoError(t, err)
	dual, ok := a.(*DualTokenAdapter)
	require.True(t, ok)
	assert.Equal(t, denomA, dual.TokenA())
	assert.Equal(t, DefaultTwapWindow, dual.twapWindow)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	ledger := bank.NewLedger()
	pool := simulations.NewLendingPool("pool", ledger, denomB)
	amm := simulations.NewDualAmmBackend("backend", ledger, denomA, denomB)
	venue := simulations.NewConstantProductVenue("venue", ledger, denomA, denomB, 3000)
	price := simulations.NewStaticPriceReference(sdkmathDec(5))
	lending := Backend{Kind: types.BackendSingleTokenLending, Lending: &LendingBackendConfig{Backend: pool}}

	tests := []struct {
		name   string
		cfg    Config
		target error
	}{
		{
			name:   "unknown kind",
			cfg:    Config{ID: "s", Address: "a", Vault: vaultAddr, Asset: denomB, Ledger: ledger, Backend: Backend{Kind: "ORDERBOOK"}},
			target: vaulterrors.ErrStrategyNotInitialized,
		},
		{
			name:   "missing vault",
			cfg:    Config{ID: "s", Address: "a", Asset: denomB, Ledger: ledger, Backend: lending},
			target: vaulterrors.ErrZeroAddress,
		},
		{
			name: "payload does not match kind",
			cfg: Config{ID: "s", Address: "a", Vault: vaultAddr, Asset: denomB, Ledger: ledger,
				Backend: Backend{Kind: types.BackendDualTokenAmm, Lending: &LendingBackendConfig{Backend: pool}}},
			target: vaulterrors.ErrStrategyNotInitialized,
		},
		{
			name:   "lending denom differs from asset",
			cfg:    Config{ID: "s", Address: "a", Vault: vaultAddr, Asset: denomA, Ledger: ledger, Backend: lending},
			target: vaulterrors.ErrAssetMismatch,
		},
		{
			name: "asset outside the pair",
			cfg: Config{ID: "s", Address: "a", Vault: vaultAddr, Asset: "uosmo", Ledger: ledger,
				Backend: Backend{Kind: types.BackendDualTokenAmm, Dual: &DualTokenBackendConfig{Backend: amm, Venue: venue, Price: price}}},
			target: vaulterrors.ErrAssetMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			assert.Nil(t, a)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

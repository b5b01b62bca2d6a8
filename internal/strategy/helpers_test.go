package strategy

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/simulations"
	"github.com/elys-network/mvault/internal/types"
)

const (
	denomA = "uatom"
	denomB = "uusdc"

	vaultAddr   types.Address = "vault"
	adminAddr   types.Address = "admin"
	lpAddr      types.Address = "lp"
	adapterAddr types.Address = "adapter-amm"
)

var startBalance = sdkmath.NewInt(1_000_000)

type dualFixture struct {
	ledger  *bank.Ledger
	venue   *simulations.ConstantProductVenue
	price   *simulations.StaticPriceReference
	backend *simulations.DualAmmBackend
	sink    *events.Recorder
	adapter *DualTokenAdapter
}

// newDualFixture builds a ratio-matching adapter settling in denomB over a backend seeded by another
// depositor with (seedA, seedB). The venue and the price reference both quote price B per A.
func newDualFixture(t *testing.T, price, seedA, seedB int64) *dualFixture {
	t.Helper()
	ctx := context.Background()

	ledger := bank.NewLedger()
	require.NoError(t, ledger.Mint(lpAddr, sdk.NewInt64Coin(denomA, 10_000_000)))
	require.NoError(t, ledger.Mint(lpAddr, sdk.NewInt64Coin(denomB, 100_000_000)))
	require.NoError(t, ledger.Mint(vaultAddr, sdk.NewCoin(denomA, startBalance)))
	require.NoError(t, ledger.Mint(vaultAddr, sdk.NewCoin(denomB, startBalance)))

	venue := simulations.NewConstantProductVenue("venue", ledger, denomA, denomB, 3000)
	require.NoError(t, venue.AddLiquidity(lpAddr, sdkmath.NewInt(1_000_000), sdkmath.NewInt(price*1_000_000)))

	backend := simulations.NewDualAmmBackend("backend", ledger, denomA, denomB)
	if seedA > 0 || seedB > 0 {
		_, _, _, err := backend.Deposit(ctx, lpAddr, lpAddr, sdkmath.NewInt(seedA), sdkmath.NewInt(seedB), sdkmath.ZeroInt(), sdkmath.ZeroInt())
		require.NoError(t, err)
	}

	priceRef := simulations.NewStaticPriceReference(sdkmath.LegacyNewDec(price))
	sink := events.NewRecorder(0)
	adapter, err := NewDualToken(Config{
		ID:             "amm-1",
		Address:        adapterAddr,
		Vault:          vaultAddr,
		Admin:          adminAddr,
		Asset:          denomB,
		MaxSlippageBps: 100,
		Ledger:         ledger,
		Events:         sink,
		Backend: Backend{
			Kind: types.BackendDualTokenAmm,
			Dual: &DualTokenBackendConfig{Backend: backend, Venue: venue, Price: priceRef, FeeTier: 3000},
		},
	})
	require.NoError(t, err)

	return &dualFixture{ledger: ledger, venue: venue, price: priceRef, backend: backend, sink: sink, adapter: adapter}
}

func (f *dualFixture) requireAdapterEmpty(t *testing.T) {
	t.Helper()
	require.True(t, f.ledger.Balance(adapterAddr, denomA).IsZero(), "tokenA stranded in adapter")
	require.True(t, f.ledger.Balance(adapterAddr, denomB).IsZero(), "tokenB stranded in adapter")
}

func (f *dualFixture) ourShares(t *testing.T) sdkmath.Int {
	t.Helper()
	shares, err := f.backend.BalanceOf(context.Background(), adapterAddr)
	require.NoError(t, err)
	return shares
}

func sdkmathDec(v int64) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDec(v)
}

package simulations

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/bank"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

func fundedLedger(t *testing.T) *bank.Ledger {
	t.Helper()
	l := bank.NewLedger()
	for _, addr := range []string{"lp", "trader"} {
		require.NoError(t, l.Mint(types.Address(addr), sdk.NewInt64Coin("uatom", 10_000_000)))
		require.NoError(t, l.Mint(types.Address(addr), sdk.NewInt64Coin("uusdc", 50_000_000)))
	}
	return l
}

func TestConstantProductSwap(t *testing.T) {
	ctx := context.Background()
	l := fundedLedger(t)
	v := NewConstantProductVenue("venue", l, "uatom", "uusdc", 3000)
	require.NoError(t, v.AddLiquidity("lp", sdkmath.NewInt(1_000_000), sdkmath.NewInt(5_000_000)))

	price, err := v.SpotPrice()
	require.NoError(t, err)
	assert.True(t, sdkmath.LegacyNewDec(5).Equal(price), "price %s", price)

	quote, err := v.QuoteExactIn("uatom", "uusdc", sdkmath.NewInt(40))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(199), quote)

	out, err := v.SwapExactIn(ctx, "trader", "uatom", "uusdc", 3000, sdkmath.NewInt(40), sdkmath.NewInt(199))
	require.NoError(t, err)
	assert.Equal(t, quote, out)
	assert.Equal(t, 1, v.Swaps())

	ra, rb := v.Reserves()
	assert.Equal(t, sdkmath.NewInt(1_000_040), ra)
	assert.Equal(t, sdkmath.NewInt(4_999_801), rb)
}

func TestSwapRejections(t *testing.T) {
	ctx := context.Background()
	l := fundedLedger(t)
	v := NewConstantProductVenue("venue", l, "uatom", "uusdc", 3000)
	require.NoError(t, v.AddLiquidity("lp", sdkmath.NewInt(1_000_000), sdkmath.NewInt(5_000_000)))

	_, err := v.SwapExactIn(ctx, "trader", "uatom", "uusdc", 3000, sdkmath.NewInt(40), sdkmath.NewInt(200))
	assert.ErrorIs(t, err, vaulterrors.ErrSlippageExceeded)

	_, err = v.SwapExactIn(ctx, "trader", "uatom", "uusdc", 500, sdkmath.NewInt(40), sdkmath.ZeroInt())
	assert.Error(t, err)

	_, err = v.SwapExactIn(ctx, "trader", "uatom", "uosmo", 3000, sdkmath.NewInt(40), sdkmath.ZeroInt())
	assert.Error(t, err)

	v.SetOnSwap(func(context.Context) error { return errors.New("callback refused") })
	_, err = v.SwapExactIn(ctx, "trader", "uatom", "uusdc", 3000, sdkmath.NewInt(40), sdkmath.ZeroInt())
	assert.EqualError(t, err, "callback refused")
	assert.Equal(t, 0, v.Swaps())
}

func TestDualAmmDepositAtRatio(t *testing.T) {
	ctx := context.Background()
	l := fundedLedger(t)
	b := NewDualAmmBackend("backend", l, "uatom", "uusdc")

	shares, _, _, err := b.Deposit(ctx, "lp", "lp", sdkmath.NewInt(1000), sdkmath.NewInt(5000), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(6000), shares)

	// token1-limited: 299 B needs ceil(59.8) A
	shares, used0, used1, err := b.Deposit(ctx, "trader", "trader", sdkmath.NewInt(60), sdkmath.NewInt(299), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(358), shares)
	assert.Equal(t, sdkmath.NewInt(60), used0)
	assert.Equal(t, sdkmath.NewInt(299), used1)

	// mins above what the ratio allows are refused
	_, _, _, err = b.Deposit(ctx, "trader", "trader", sdkmath.NewInt(100), sdkmath.NewInt(100), sdkmath.NewInt(100), sdkmath.NewInt(100))
	assert.ErrorIs(t, err, vaulterrors.ErrSlippageExceeded)

	b.SetInRange(false)
	_, _, _, err = b.Deposit(ctx, "trader", "trader", sdkmath.NewInt(10), sdkmath.NewInt(50), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, vaulterrors.ErrBackendOutOfRange)
}

func TestDualAmmWithdrawIsProportional(t *testing.T) {
	ctx := context.Background()
	l := fundedLedger(t)
	b := NewDualAmmBackend("backend", l, "uatom", "uusdc")
	_, _, _, err := b.Deposit(ctx, "lp", "lp", sdkmath.NewInt(1000), sdkmath.NewInt(5000), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	require.NoError(t, b.Accrue(sdkmath.NewInt(200), sdkmath.NewInt(1000)))

	a0, a1, err := b.Withdraw(ctx, "lp", "lp", sdkmath.NewInt(3000), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(600), a0)
	assert.Equal(t, sdkmath.NewInt(3000), a1)

	_, _, err = b.Withdraw(ctx, "lp", "lp", sdkmath.NewInt(3001), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, vaulterrors.ErrInsufficientBalance)
}

func TestLendingPoolAccruesToShares(t *testing.T) {
	ctx := context.Background()
	l := fundedLedger(t)
	p := NewLendingPool("pool", l, "uusdc")

	s1, err := p.Supply(ctx, "lp", sdkmath.NewInt(1000))
	require.NoError(t, err)
	require.NoError(t, p.Accrue(sdkmath.NewInt(1000)))
	s2, err := p.Supply(ctx, "trader", sdkmath.NewInt(1000))
	require.NoError(t, err)

	assert.Equal(t, sdkmath.NewInt(1000), s1)
	assert.Equal(t, sdkmath.NewInt(500), s2)

	out, err := p.Redeem(ctx, "lp", "lp", s1)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(2000), out)

	p.SetFailure(errors.New("frozen"))
	_, err = p.Redeem(ctx, "trader", "trader", s2)
	assert.EqualError(t, err, "frozen")
}

func TestPriceReferences(t *testing.T) {
	ctx := context.Background()
	static := NewStaticPriceReference(sdkmath.LegacyNewDec(5))
	assert.True(t, static.IsFresh(ctx))
	static.SetFresh(false)
	assert.False(t, static.IsFresh(ctx))
	static.SetRate(sdkmath.LegacyNewDec(7))
	rate, err := static.GetTwapRate(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.LegacyNewDec(7), rate)

	l := fundedLedger(t)
	v := NewConstantProductVenue("venue", l, "uatom", "uusdc", 3000)
	ref := NewVenuePriceReference(v)
	_, err = ref.GetTwapRate(ctx, 0)
	assert.Error(t, err)
	require.NoError(t, v.AddLiquidity("lp", sdkmath.NewInt(100), sdkmath.NewInt(300)))
	rate, err = ref.GetTwapRate(ctx, 0)
	require.NoError(t, err)
	assert.True(t, sdkmath.LegacyNewDec(3).Equal(rate), "rate %s", rate)
}

package bank

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/vaulterrors"
)

func TestTransferMovesBalance(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Mint("alice", sdk.NewInt64Coin("uusdc", 1_000)))

	require.NoError(t, l.Transfer("alice", "bob", sdk.NewInt64Coin("uusdc", 400)))

	assert.Equal(t, sdkmath.NewInt(600), l.Balance("alice", "uusdc"))
	assert.Equal(t, sdkmath.NewInt(400), l.Balance("bob", "uusdc"))
	assert.Equal(t, sdkmath.NewInt(1_000), l.Supply("uusdc"))
}

func TestTransferRejectsOverdraft(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Mint("alice", sdk.NewInt64Coin("uusdc", 10)))

	err := l.Transfer("alice", "bob", sdk.NewInt64Coin("uusdc", 11))
	assert.ErrorIs(t, err, vaulterrors.ErrInsufficientBalance)
	assert.Equal(t, sdkmath.NewInt(10), l.Balance("alice", "uusdc"))
	assert.True(t, l.Balance("bob", "uusdc").IsZero())
}

func TestTransferValidatesAddresses(t *testing.T) {
	l := NewLedger()
	assert.ErrorIs(t, l.Transfer("", "bob", sdk.NewInt64Coin("uusdc", 1)), vaulterrors.ErrZeroAddress)
	assert.ErrorIs(t, l.Mint("", sdk.NewInt64Coin("uusdc", 1)), vaulterrors.ErrZeroAddress)
}

func TestZeroTransferIsNoop(t *testing.T) {
	l := NewLedger()
	assert.NoError(t, l.Transfer("alice", "bob", sdk.NewInt64Coin("uusdc", 0)))
	assert.True(t, l.Balances("bob").Empty())
}

func TestBurn(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Mint("alice", sdk.NewInt64Coin("uatom", 50)))
	require.NoError(t, l.Burn("alice", sdk.NewInt64Coin("uatom", 20)))

	assert.Equal(t, sdkmath.NewInt(30), l.Balance("alice", "uatom"))
	assert.Equal(t, sdkmath.NewInt(30), l.Supply("uatom"))
	assert.ErrorIs(t, l.Burn("alice", sdk.NewInt64Coin("uatom", 31)), vaulterrors.ErrInsufficientBalance)
}

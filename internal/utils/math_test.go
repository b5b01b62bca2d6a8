package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDivRounding(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c int64
		floor   int64
		ceil    int64
	}{
		{"exact", 1000, 500, 1000, 500, 500},
		{"remainder", 10, 10, 3, 33, 34},
		{"zero numerator", 0, 7, 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, c := sdkmath.NewInt(tt.a), sdkmath.NewInt(tt.b), sdkmath.NewInt(tt.c)
			floor, err := MulDiv(a, b, c)
			require.NoError(t, err)
			assert.Equal(t, tt.floor, floor.Int64())

			ceil, err := MulDivUp(a, b, c)
			require.NoError(t, err)
			assert.Equal(t, tt.ceil, ceil.Int64())
		})
	}

	_, err := MulDiv(sdkmath.OneInt(), sdkmath.OneInt(), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestSlippageFloor(t *testing.T) {
	floor, err := SlippageFloor(sdkmath.NewInt(10_000), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(9_950), floor.Int64())

	_, err = SlippageFloor(sdkmath.NewInt(1), 10_001)
	assert.ErrorIs(t, err, ErrInvalidBps)
}

func TestShareOfBps(t *testing.T) {
	assert.Equal(t, uint32(2500), ShareOfBps(sdkmath.NewInt(25), sdkmath.NewInt(100)))
	assert.Equal(t, uint32(0), ShareOfBps(sdkmath.NewInt(25), sdkmath.ZeroInt()))
	assert.Equal(t, uint32(10_000), ShareOfBps(sdkmath.NewInt(200), sdkmath.NewInt(100)))
}

func TestConvertAtRate(t *testing.T) {
	rate := sdkmath.LegacyMustNewDecFromStr("5")
	assert.Equal(t, int64(200), ConvertAtRate(sdkmath.NewInt(40), rate).Int64())

	back, err := ConvertAtInverseRate(sdkmath.NewInt(201), rate)
	require.NoError(t, err)
	assert.Equal(t, int64(40), back.Int64())

	_, err = ConvertAtInverseRate(sdkmath.NewInt(1), sdkmath.LegacyZeroDec())
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestSumBps(t *testing.T) {
	total, ok := SumBps(6000, 4000)
	assert.True(t, ok)
	assert.Equal(t, uint64(10_000), total)

	_, ok = SumBps(6000, 4001)
	assert.False(t, ok)
}

func TestDecToFloat64(t *testing.T) {
	f, err := DecToFloat64(sdkmath.LegacyNewDecWithPrec(15, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 1e-9)

	_, err = DecToFloat64(sdkmath.LegacyDec{})
	assert.ErrorIs(t, err, ErrAmountNil)
}

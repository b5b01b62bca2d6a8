package vaulterrors

import (
	"errors"
	"testing"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorsKeepTheirReason(t *testing.T) {
	err := errorsmod.Wrapf(ErrCapExceeded, "deposit of %d", 10)
	assert.ErrorIs(t, err, ErrCapExceeded)
	assert.False(t, errors.Is(err, ErrZeroAmount))
	assert.Contains(t, err.Error(), "cap exceeded")
}

func TestSlippageExceededCarriesAmounts(t *testing.T) {
	err := SlippageExceeded(sdkmath.NewInt(100), sdkmath.NewInt(97))
	assert.ErrorIs(t, err, ErrSlippageExceeded)
	assert.Contains(t, err.Error(), "100")
	assert.Contains(t, err.Error(), "97")
}

func TestCodesAreDistinct(t *testing.T) {
	all := []*errorsmod.Error{
		ErrZeroAmount, ErrZeroAddress, ErrNotAuthorizedCaller, ErrStrategyNotInitialized,
		ErrStrategyPaused, ErrSlippageExceeded, ErrBackendOutOfRange, ErrCapExceeded,
		ErrInsufficientBalance, ErrPaused, ErrStalePrice, ErrReentrantCall, ErrUnknownStrategy,
		ErrDuplicateStrategy, ErrAssetMismatch, ErrInvalidParameters,
	}
	seen := make(map[uint32]bool)
	for _, e := range all {
		assert.Equal(t, Codespace, e.Codespace())
		assert.False(t, seen[e.ABCICode()], "duplicate code %d", e.ABCICode())
		seen[e.ABCICode()] = true
	}
}

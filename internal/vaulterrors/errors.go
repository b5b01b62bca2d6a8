// Package vaulterrors holds the error taxonomy shared by the vault ledger and its strategy adapters.
// Every error is registered under the "mvault" codespace so integrators can tell reasons apart
// with errors.Is regardless of how much context was wrapped around them.
package vaulterrors

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

const Codespace = "mvault"

var (
	ErrZeroAmount             = errorsmod.Register(Codespace, 2, "zero amount")
	ErrZeroAddress            = errorsmod.Register(Codespace, 3, "zero address")
	ErrNotAuthorizedCaller    = errorsmod.Register(Codespace, 4, "caller is not authorized")
	ErrStrategyNotInitialized = errorsmod.Register(Codespace, 5, "strategy not initialized")
	ErrStrategyPaused         = errorsmod.Register(Codespace, 6, "strategy paused")
	ErrSlippageExceeded       = errorsmod.Register(Codespace, 7, "slippage exceeded")
	ErrBackendOutOfRange      = errorsmod.Register(Codespace, 8, "backend position out of range")
	ErrCapExceeded            = errorsmod.Register(Codespace, 9, "cap exceeded")
	ErrInsufficientBalance    = errorsmod.Register(Codespace, 10, "insufficient balance")

	ErrPaused            = errorsmod.Register(Codespace, 11, "vault paused")
	ErrStalePrice        = errorsmod.Register(Codespace, 12, "price reference is stale")
	ErrReentrantCall     = errorsmod.Register(Codespace, 13, "re-entrant call rejected")
	ErrUnknownStrategy   = errorsmod.Register(Codespace, 14, "unknown strategy")
	ErrDuplicateStrategy = errorsmod.Register(Codespace, 15, "strategy already registered")
	ErrAssetMismatch     = errorsmod.Register(Codespace, 16, "asset mismatch")
	ErrInvalidParameters = errorsmod.Register(Codespace, 17, "invalid parameters")
)

// SlippageExceeded reports a delivered amount below the caller's (or the adapter's) lower bound.
func SlippageExceeded(expected, actual sdkmath.Int) error {
	return errorsmod.Wrapf(ErrSlippageExceeded, "expected at least %s, got %s", expected, actual)
}

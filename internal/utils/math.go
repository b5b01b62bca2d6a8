/*
This file contains the integer arithmetic shared by the ledger and the adapters:
basis points, floor/ceil mul-div and slippage bounds. All amounts are sdkmath.Int and never go through float64.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10_000

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvalidBps     = errors.New("basis points out of range")
)

var bpsDenom = sdkmath.NewInt(BpsDenominator)

// MulDiv returns floor(a*b/c).
func MulDiv(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if c.IsZero() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}
	return a.Mul(b).Quo(c), nil
}

// MulDivUp returns ceil(a*b/c) for non-negative operands.
func MulDivUp(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if c.IsZero() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}
	num := a.Mul(b)
	q := num.Quo(c)
	if !num.Mod(c).IsZero() {
		q = q.AddRaw(1)
	}
	return q, nil
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount sdkmath.Int, bps uint32) sdkmath.Int {
	return amount.Mul(sdkmath.NewIntFromUint64(uint64(bps))).Quo(bpsDenom)
}

// SlippageFloor returns the minimum acceptable output for an expected amount: expected*(1-bps).
func SlippageFloor(expected sdkmath.Int, slippageBps uint32) (sdkmath.Int, error) {
	if slippageBps > BpsDenominator {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrInvalidBps, slippageBps)
	}
	return ApplyBps(expected, BpsDenominator-slippageBps), nil
}

// ShareOfBps returns part/whole in basis points, floored. Zero when whole is zero.
func ShareOfBps(part, whole sdkmath.Int) uint32 {
	if whole.IsZero() || part.IsZero() {
		return 0
	}
	bps := part.Mul(bpsDenom).Quo(whole)
	if bps.GT(bpsDenom) {
		return BpsDenominator
	}
	return uint32(bps.Uint64())
}

// ConvertAtRate returns floor(amount*rate).
func ConvertAtRate(amount sdkmath.Int, rate sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(amount).Mul(rate).TruncateInt()
}

// ConvertAtInverseRate returns floor(amount/rate).
func ConvertAtInverseRate(amount sdkmath.Int, rate sdkmath.LegacyDec) (sdkmath.Int, error) {
	if !rate.IsPositive() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}
	return sdkmath.LegacyNewDecFromInt(amount).Quo(rate).TruncateInt(), nil
}

// MinInt returns the smaller of a and b.
func MinInt(a, b sdkmath.Int) sdkmath.Int {
	if a.LT(b) {
		return a
	}
	return b
}

// SumBps adds weights and reports whether the total stays within 100%.
func SumBps(weights ...uint32) (uint64, bool) {
	var total uint64
	for _, w := range weights {
		total += uint64(w)
	}
	return total, total <= BpsDenominator
}

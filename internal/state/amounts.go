package state

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// ErrNoDatabase is returned by every store function before InitDB has succeeded.
var ErrNoDatabase = errors.New("database not initialized")

// numeric renders an amount for a NUMERIC column. Unset amounts are stored as zero.
func numeric(i sdkmath.Int) string {
	if i.IsNil() {
		return "0"
	}
	return i.String()
}

// parseNumeric reads a NUMERIC column back into an Int.
func parseNumeric(column, raw string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("column %s: %q is not an integer", column, raw)
	}
	return v, nil
}

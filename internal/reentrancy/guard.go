// Package reentrancy rejects nested entry into a protected object during an outer call.
//
// The guard travels in the context: an entry point marks the context it passes to collaborators,
// and a collaborator that calls back with that context is refused instead of deadlocking on the
// object's lock. Independent callers (fresh contexts) are serialized by the object's own mutex.
package reentrancy

import (
	"context"

	errorsmod "cosmossdk.io/errors"

	"github.com/elys-network/mvault/internal/vaulterrors"
)

type frameKey struct {
	owner any
}

// Enter marks ctx as being inside owner. owner must be comparable, normally a pointer.
func Enter(ctx context.Context, owner any, entry string) (context.Context, error) {
	if Inside(ctx, owner) {
		return ctx, errorsmod.Wrapf(vaulterrors.ErrReentrantCall, "%s", entry)
	}
	return context.WithValue(ctx, frameKey{owner: owner}, entry), nil
}

// Inside reports whether ctx was derived from an Enter on owner.
func Inside(ctx context.Context, owner any) bool {
	return ctx.Value(frameKey{owner: owner}) != nil
}

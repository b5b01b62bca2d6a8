package state

import (
	"context"

	"github.com/elys-network/mvault/internal/types"
)

// CycleStore binds the package-level snapshot functions to one parameter config name so the
// operator can depend on an interface.
type CycleStore struct {
	ConfigName string
}

func (s CycleStore) IncrementCycleNumber(ctx context.Context) (int, error) {
	return IncrementCycleNumber(ctx)
}

func (s CycleStore) ActiveParametersID(ctx context.Context) (*int64, error) {
	return GetActiveVaultParametersID(ctx, s.ConfigName)
}

func (s CycleStore) SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	return SaveCycleSnapshot(ctx, snapshot)
}

func (s CycleStore) RecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	return GetRecentCycles(ctx, limit)
}

func (s CycleStore) CycleByID(ctx context.Context, id int64) (*types.CycleSnapshot, error) {
	return GetCycleByID(ctx, id)
}

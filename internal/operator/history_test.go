package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/mvault/internal/types"
)

func TestHistory(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(2)

	h.Record(types.CycleSnapshot{CycleNumber: 1})
	h.Record(types.CycleSnapshot{CycleNumber: 2, SnapshotID: 40})
	h.Record(types.CycleSnapshot{CycleNumber: 3})

	recent, err := h.RecentCycles(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].CycleNumber)
	assert.Equal(t, int64(3), recent[0].SnapshotID)
	assert.Equal(t, 2, recent[1].CycleNumber)

	snap, err := h.CycleByID(ctx, 40)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CycleNumber)

	_, err = h.CycleByID(ctx, 1)
	assert.ErrorIs(t, err, ErrCycleNotRecorded)

	one, err := h.RecentCycles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 3, one[0].CycleNumber)
}

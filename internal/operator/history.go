package operator

import (
	"context"
	"errors"
	"sync"

	"github.com/elys-network/mvault/internal/types"
)

// ErrCycleNotRecorded is returned by History for unknown snapshot IDs.
var ErrCycleNotRecorded = errors.New("cycle not recorded")

// History keeps the latest snapshots in memory for deployments that run without a database.
type History struct {
	mu     sync.RWMutex
	limit  int
	nextID int64
	cycles []types.CycleSnapshot
}

// NewHistory keeps at most limit snapshots; limit <= 0 keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Record stores a snapshot, assigning an ID when the store did not.
func (h *History) Record(snapshot types.CycleSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	if snapshot.SnapshotID == 0 {
		snapshot.SnapshotID = h.nextID
	}
	h.cycles = append(h.cycles, snapshot)
	if h.limit > 0 && len(h.cycles) > h.limit {
		h.cycles = h.cycles[len(h.cycles)-h.limit:]
	}
}

// RecentCycles returns up to limit snapshots, newest first.
func (h *History) RecentCycles(_ context.Context, limit int) ([]types.CycleSnapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 || limit > len(h.cycles) {
		limit = len(h.cycles)
	}
	out := make([]types.CycleSnapshot, 0, limit)
	for i := len(h.cycles) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.cycles[i])
	}
	return out, nil
}

func (h *History) CycleByID(_ context.Context, id int64) (*types.CycleSnapshot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := range h.cycles {
		if h.cycles[i].SnapshotID == id {
			snap := h.cycles[i]
			return &snap, nil
		}
	}
	return nil, ErrCycleNotRecorded
}

// ./internal/state/snapshot_store.go
package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/elys-network/mvault/internal/types"
)

// snapshotJSON holds the JSONB columns of a cycle snapshot.
type snapshotJSON struct {
	initialStrategies []byte
	rebalance         []byte
	finalStrategies   []byte
}

func marshalSnapshotJSON(snapshot types.CycleSnapshot) (snapshotJSON, error) {
	var out snapshotJSON
	var err error
	if out.initialStrategies, err = json.Marshal(snapshot.InitialStrategies); err != nil {
		return out, fmt.Errorf("failed to marshal initial_strategies: %w", err)
	}
	if out.rebalance, err = json.Marshal(snapshot.Rebalance); err != nil {
		return out, fmt.Errorf("failed to marshal rebalance: %w", err)
	}
	if out.finalStrategies, err = json.Marshal(snapshot.FinalStrategies); err != nil {
		return out, fmt.Errorf("failed to marshal final_strategies: %w", err)
	}
	return out, nil
}

func (j snapshotJSON) unmarshalInto(snapshot *types.CycleSnapshot) error {
	if len(j.initialStrategies) > 0 {
		if err := json.Unmarshal(j.initialStrategies, &snapshot.InitialStrategies); err != nil {
			return fmt.Errorf("failed to unmarshal initial strategies: %w", err)
		}
	}
	if len(j.rebalance) > 0 {
		if err := json.Unmarshal(j.rebalance, &snapshot.Rebalance); err != nil {
			return fmt.Errorf("failed to unmarshal rebalance report: %w", err)
		}
	}
	if len(j.finalStrategies) > 0 {
		if err := json.Unmarshal(j.finalStrategies, &snapshot.FinalStrategies); err != nil {
			return fmt.Errorf("failed to unmarshal final strategies: %w", err)
		}
	}
	return nil
}

// SaveCycleSnapshot saves a complete cycle snapshot to the database.
func SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	if DB == nil {
		return 0, ErrNoDatabase
	}

	columns, err := marshalSnapshotJSON(snapshot)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO cycle_snapshots (
			cycle_number, cycle_id, snapshot_timestamp, params_id,
			initial_total_assets, initial_idle, initial_strategies,
			harvested, rebalance,
			final_total_assets, final_idle, final_total_shares, final_strategies,
			event_ids, errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRowContext(ctx,
		query,
		snapshot.CycleNumber, snapshot.CycleID, snapshot.Timestamp, snapshot.ParamsID,
		numeric(snapshot.InitialTotalAssets), numeric(snapshot.InitialIdle), columns.initialStrategies,
		numeric(snapshot.Harvested), columns.rebalance,
		numeric(snapshot.FinalTotalAssets), numeric(snapshot.FinalIdle), numeric(snapshot.FinalTotalShares), columns.finalStrategies,
		pq.Array(snapshot.EventIDs), pq.Array(snapshot.Errors),
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("final_total_assets", numeric(snapshot.FinalTotalAssets)).
		Msg("Cycle snapshot saved to database")
	return snapshotID, nil
}

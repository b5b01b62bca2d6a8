package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/mvault/internal/types"
)

// ErrCycleNotFound is returned when a requested snapshot does not exist.
var ErrCycleNotFound = errors.New("cycle snapshot not found")

// CycleStats aggregates every recorded cycle.
type CycleStats struct {
	TotalCycles      int    `json:"total_cycles"`
	CyclesWithErrors int    `json:"cycles_with_errors"`
	TotalHarvested   string `json:"total_harvested"`
	LastCycleAt      string `json:"last_cycle_at,omitempty"`
}

const cycleColumns = `
	snapshot_id, cycle_number, cycle_id, snapshot_timestamp, params_id,
	initial_total_assets::TEXT, initial_idle::TEXT, initial_strategies,
	harvested::TEXT, rebalance,
	final_total_assets::TEXT, final_idle::TEXT, final_total_shares::TEXT, final_strategies,
	event_ids, errors`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCycle reads one row selected with cycleColumns.
func scanCycle(row rowScanner) (types.CycleSnapshot, error) {
	var (
		cycle   types.CycleSnapshot
		amounts [6]string
		columns snapshotJSON
	)
	err := row.Scan(
		&cycle.SnapshotID, &cycle.CycleNumber, &cycle.CycleID, &cycle.Timestamp, &cycle.ParamsID,
		&amounts[0], &amounts[1], &columns.initialStrategies,
		&amounts[2], &columns.rebalance,
		&amounts[3], &amounts[4], &amounts[5], &columns.finalStrategies,
		pq.Array(&cycle.EventIDs), pq.Array(&cycle.Errors),
	)
	if err != nil {
		return cycle, err
	}

	names := [6]string{"initial_total_assets", "initial_idle", "harvested", "final_total_assets", "final_idle", "final_total_shares"}
	dsts := [6]*sdkmath.Int{
		&cycle.InitialTotalAssets, &cycle.InitialIdle, &cycle.Harvested,
		&cycle.FinalTotalAssets, &cycle.FinalIdle, &cycle.FinalTotalShares,
	}
	for i := range amounts {
		if *dsts[i], err = parseNumeric(names[i], amounts[i]); err != nil {
			return cycle, err
		}
	}
	if err := columns.unmarshalInto(&cycle); err != nil {
		return cycle, err
	}
	return cycle, nil
}

// GetRecentCycles retrieves the most recent cycle snapshots, newest first.
func GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := `SELECT ` + cycleColumns + ` FROM cycle_snapshots ORDER BY snapshot_timestamp DESC LIMIT $1`
	rows, err := DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSnapshot, 0, limit)
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue // Skip this row and continue with others
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(cycles)).Int("limit", limit).Msg("Retrieved recent cycles")
	return cycles, nil
}

// GetCycleByID retrieves a specific cycle by its snapshot ID
func GetCycleByID(ctx context.Context, snapshotID int64) (*types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrNoDatabase
	}

	query := `SELECT ` + cycleColumns + ` FROM cycle_snapshots WHERE snapshot_id = $1`
	cycle, err := scanCycle(DB.QueryRowContext(ctx, query, snapshotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrCycleNotFound, snapshotID)
		}
		return nil, fmt.Errorf("failed to query cycle by ID: %w", err)
	}
	return &cycle, nil
}

// GetLatestCycle retrieves the most recent snapshot.
func GetLatestCycle(ctx context.Context) (*types.CycleSnapshot, error) {
	cycles, err := GetRecentCycles(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, ErrCycleNotFound
	}
	return &cycles[0], nil
}

// GetCycleStats aggregates all recorded cycles.
func GetCycleStats(ctx context.Context) (*CycleStats, error) {
	if DB == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN COALESCE(array_length(errors, 1), 0) > 0 THEN 1 END),
			COALESCE(SUM(harvested), 0)::TEXT,
			MAX(snapshot_timestamp)::TEXT
		FROM cycle_snapshots
	`
	stats := &CycleStats{}
	var lastCycle sql.NullString
	err := DB.QueryRowContext(ctx, query).Scan(&stats.TotalCycles, &stats.CyclesWithErrors, &stats.TotalHarvested, &lastCycle)
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle stats: %w", err)
	}
	if lastCycle.Valid {
		stats.LastCycleAt = lastCycle.String
	}
	return stats, nil
}

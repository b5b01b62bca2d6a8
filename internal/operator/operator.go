// Package operator drives the vault on a schedule: every cycle harvests profit, rebalances toward the
// configured weights and records a snapshot of the vault before and after.
package operator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/mvault/internal/logger"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/utils"
	"github.com/elys-network/mvault/internal/vaulterrors"
)

// Vault is the part of the vault ledger the operator drives.
type Vault interface {
	Summary(ctx context.Context) (types.VaultSummary, error)
	Harvest(ctx context.Context, caller types.Address) (sdkmath.Int, error)
	Rebalance(ctx context.Context, caller types.Address) (types.RebalanceReport, error)
	Paused() bool
}

// SnapshotStore persists cycle numbers and snapshots.
type SnapshotStore interface {
	IncrementCycleNumber(ctx context.Context) (int, error)
	ActiveParametersID(ctx context.Context) (*int64, error)
	SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error)
}

// EventSource exposes recently emitted events so a snapshot can reference them.
type EventSource interface {
	Events() []types.Event
}

// Operator runs harvest and rebalance cycles against one vault.
type Operator struct {
	logger zerolog.Logger
	vault  Vault
	caller types.Address
	store  SnapshotStore
	events EventSource

	onCycleComplete func(types.CycleSnapshot)

	mu         sync.Mutex
	cycleCount int
	last       *types.CycleSnapshot
}

// Config holds the configuration for creating a new Operator instance
type Config struct {
	Vault  Vault
	Caller types.Address // must be the vault administrator
	Store  SnapshotStore // optional; cycles are numbered locally without it
	Events EventSource   // optional

	// OnCycleComplete is called with every finished snapshot, saved or not.
	OnCycleComplete func(types.CycleSnapshot)
}

// New creates an operator with dependency injection
func New(cfg Config) (*Operator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("operator configuration validation failed: %w", err)
	}
	op := &Operator{
		logger:          logger.GetForComponent("vault_operator"),
		vault:           cfg.Vault,
		caller:          cfg.Caller,
		store:           cfg.Store,
		events:          cfg.Events,
		onCycleComplete: cfg.OnCycleComplete,
	}
	op.logger.Info().
		Str("caller", cfg.Caller.String()).
		Bool("persistent", cfg.Store != nil).
		Msg("Operator created")
	return op, nil
}

func validateConfig(cfg Config) error {
	if cfg.Vault == nil {
		return errors.New("vault cannot be nil")
	}
	if cfg.Caller.IsZero() {
		return vaulterrors.ErrZeroAddress
	}
	return nil
}

// RunLoop runs a cycle immediately and then once per interval until ctx is cancelled.
func (o *Operator) RunLoop(ctx context.Context, interval time.Duration) {
	o.logger.Info().Dur("interval", interval).Msg("Starting operator loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("Operator loop stopped due to context cancellation")
			return
		case <-ticker.C:
			o.RunCycle(ctx)
		}
	}
}

// RunCycle executes one harvest, rebalance and snapshot cycle. A paused vault is only snapshotted.
func (o *Operator) RunCycle(ctx context.Context) types.CycleSnapshot {
	cycleStartTime := time.Now().UTC()
	cycleID := uuid.New().String()
	cycleLogger := o.logger.With().Str("cycle_id", cycleID).Logger()
	cycleLogger.Info().Msg("--- Starting operator cycle ---")

	snapshot := types.CycleSnapshot{
		CycleNumber: o.nextCycleNumber(ctx, cycleLogger),
		CycleID:     cycleID,
		Timestamp:   cycleStartTime,
		ParamsID:    o.activeParamsID(ctx, cycleLogger),
		Harvested:   sdkmath.ZeroInt(),
		EventIDs:    make([]string, 0),
	}

	// --- Step 1: Initial state ---
	initial, err := o.vault.Summary(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to read vault state")
		snapshot.Errors = append(snapshot.Errors, fmt.Sprintf("initial state: %v", err))
		o.finish(ctx, &snapshot, cycleStartTime, cycleLogger)
		return snapshot
	}
	snapshot.InitialTotalAssets = initial.TotalAssets
	snapshot.InitialIdle = initial.Idle
	snapshot.InitialStrategies = initial.Strategies

	if o.vault.Paused() {
		cycleLogger.Warn().Msg("Vault is paused, skipping harvest and rebalance")
	} else {
		// --- Step 2: Harvest ---
		harvested, err := o.vault.Harvest(ctx, o.caller)
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Harvest failed")
			snapshot.Errors = append(snapshot.Errors, fmt.Sprintf("harvest: %v", err))
		} else {
			snapshot.Harvested = harvested
			cycleLogger.Info().Str("harvested", harvested.String()).Msg("Step 2: Harvest complete")
		}

		// --- Step 3: Rebalance ---
		report, err := o.vault.Rebalance(ctx, o.caller)
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Rebalance failed")
			snapshot.Errors = append(snapshot.Errors, fmt.Sprintf("rebalance: %v", err))
		} else {
			snapshot.Rebalance = report
			snapshot.Errors = append(snapshot.Errors, failedActions(report.Withdrawals)...)
			snapshot.Errors = append(snapshot.Errors, failedActions(report.Deposits)...)
			cycleLogger.Info().
				Int("withdrawals", len(report.Withdrawals)).
				Int("deposits", len(report.Deposits)).
				Str("moved", report.Moved().String()).
				Msg("Step 3: Rebalance complete")
		}
	}

	// --- Step 4: Final state ---
	final, err := o.vault.Summary(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to read final vault state")
		snapshot.Errors = append(snapshot.Errors, fmt.Sprintf("final state: %v", err))
	} else {
		snapshot.FinalTotalAssets = final.TotalAssets
		snapshot.FinalIdle = final.Idle
		snapshot.FinalTotalShares = final.TotalShares
		snapshot.FinalStrategies = final.Strategies
	}

	o.finish(ctx, &snapshot, cycleStartTime, cycleLogger)
	return snapshot
}

func failedActions(receipts []types.ActionReceipt) []string {
	var out []string
	for _, rc := range receipts {
		if !rc.Success {
			out = append(out, fmt.Sprintf("%s %s: %s", rc.Action.Type, rc.Action.StrategyID, rc.Message))
		}
	}
	return out
}

// finish fills defaults, attaches the cycle's events and saves the snapshot.
func (o *Operator) finish(ctx context.Context, snapshot *types.CycleSnapshot, start time.Time, cycleLogger zerolog.Logger) {
	for _, amount := range []*sdkmath.Int{
		&snapshot.InitialTotalAssets, &snapshot.InitialIdle,
		&snapshot.FinalTotalAssets, &snapshot.FinalIdle, &snapshot.FinalTotalShares,
	} {
		if amount.IsNil() {
			*amount = sdkmath.ZeroInt()
		}
	}
	if o.events != nil {
		for _, e := range o.events.Events() {
			if !e.Timestamp.Before(start) {
				snapshot.EventIDs = append(snapshot.EventIDs, e.ID)
			}
		}
	}

	if o.store != nil {
		snapshotID, err := o.store.SaveCycleSnapshot(ctx, *snapshot)
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot to database")
		} else {
			snapshot.SnapshotID = snapshotID
			cycleLogger.Info().Int64("snapshot_id", snapshotID).Msg("Cycle snapshot saved successfully")
		}
	}

	o.mu.Lock()
	saved := *snapshot
	o.last = &saved
	o.mu.Unlock()

	if o.onCycleComplete != nil {
		o.onCycleComplete(*snapshot)
	}

	sharePrice := 0.0
	if snapshot.FinalTotalShares.IsPositive() {
		price := sdkmath.LegacyNewDecFromInt(snapshot.FinalTotalAssets).QuoInt(snapshot.FinalTotalShares)
		if f, err := utils.DecToFloat64(price); err == nil {
			sharePrice = f
		}
	}

	cycleLogger.Info().
		Int("cycleNumber", snapshot.CycleNumber).
		Str("finalTotalAssets", snapshot.FinalTotalAssets.String()).
		Float64("sharePrice", sharePrice).
		Int("errors", len(snapshot.Errors)).
		Str("cycleDuration", time.Since(start).String()).
		Msg("--- Operator cycle complete ---")
}

// nextCycleNumber increments the persistent counter, falling back to the local count.
func (o *Operator) nextCycleNumber(ctx context.Context, cycleLogger zerolog.Logger) int {
	o.mu.Lock()
	o.cycleCount++
	local := o.cycleCount
	o.mu.Unlock()

	if o.store == nil {
		return local
	}
	n, err := o.store.IncrementCycleNumber(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Int("fallback", local).Msg("Failed to increment cycle counter, using local count")
		return local
	}
	return n
}

func (o *Operator) activeParamsID(ctx context.Context, cycleLogger zerolog.Logger) *int64 {
	if o.store == nil {
		return nil
	}
	id, err := o.store.ActiveParametersID(ctx)
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to get active parameters ID")
		return nil
	}
	return id
}

// CycleCount is the number of cycles this process has run.
func (o *Operator) CycleCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycleCount
}

// LastSnapshot returns the most recent cycle snapshot, if any.
func (o *Operator) LastSnapshot() (types.CycleSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return types.CycleSnapshot{}, false
	}
	return *o.last, true
}

// ./internal/state/parameters_store.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/mvault/internal/types"
)

// SaveVaultParameters saves a new version of the vault parameters, optionally making it the active one.
func SaveVaultParameters(ctx context.Context, params types.VaultParameters, configName string, version int, makeActive bool) (paramsID int64, err error) {
	if DB == nil {
		return 0, ErrNoDatabase
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE vault_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		if _, err = tx.ExecContext(ctx, stmtDeactivate, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
		INSERT INTO vault_parameters (
			config_name, version, is_active, activated_at, created_at,
			idle_reserve_target, deposit_cap, rebalance_threshold_bps,
			max_rebalance_bps_per_cycle, min_action_amount, default_max_slippage_bps
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING params_id;`

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, stmt,
		configName, version, makeActive, now, now,
		numeric(params.IdleReserveTarget), numeric(params.DepositCap), params.RebalanceThresholdBps,
		params.MaxRebalanceBpsPerCycle, numeric(params.MinActionAmount), params.DefaultMaxSlippageBps,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vault parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved vault parameters")
	return paramsID, nil
}

// ErrNoActiveParameters is returned when no parameter version is active for a config name.
var ErrNoActiveParameters = errors.New("no active vault parameters")

// LoadActiveVaultParameters loads the currently active parameters and their version.
func LoadActiveVaultParameters(ctx context.Context, configName string) (*types.VaultParameters, int, error) {
	if DB == nil {
		return nil, 0, ErrNoDatabase
	}

	query := `
		SELECT
			version, idle_reserve_target::TEXT, deposit_cap::TEXT, rebalance_threshold_bps,
			max_rebalance_bps_per_cycle, min_action_amount::TEXT, default_max_slippage_bps
		FROM vault_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var (
		version                          int
		idleReserve, depositCap, minMove string
		p                                types.VaultParameters
	)
	err := DB.QueryRowContext(ctx, query, configName).Scan(
		&version, &idleReserve, &depositCap, &p.RebalanceThresholdBps,
		&p.MaxRebalanceBpsPerCycle, &minMove, &p.DefaultMaxSlippageBps,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, fmt.Errorf("%w for config '%s'", ErrNoActiveParameters, configName)
		}
		return nil, 0, fmt.Errorf("failed to scan active vault parameters for config '%s': %w", configName, err)
	}

	if p.IdleReserveTarget, err = parseNumeric("idle_reserve_target", idleReserve); err != nil {
		return nil, 0, err
	}
	if p.DepositCap, err = parseNumeric("deposit_cap", depositCap); err != nil {
		return nil, 0, err
	}
	if p.MinActionAmount, err = parseNumeric("min_action_amount", minMove); err != nil {
		return nil, 0, err
	}

	log.Info().Str("config", configName).Int("version", version).Msg("Loaded active vault parameters")
	return &p, version, nil
}

// GetActiveVaultParametersID returns the params_id of the active parameters, or nil when none is active.
func GetActiveVaultParametersID(ctx context.Context, configName string) (*int64, error) {
	if DB == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT params_id
		FROM vault_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var paramsID int64
	if err := DB.QueryRowContext(ctx, query, configName).Scan(&paramsID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug().Str("config", configName).Msg("No active vault parameters found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active vault parameters ID for config '%s': %w", configName, err)
	}
	return &paramsID, nil
}

// LatestVaultParametersVersion returns the highest saved version for configName, 0 when none exist.
func LatestVaultParametersVersion(ctx context.Context, configName string) (int, error) {
	if DB == nil {
		return 0, ErrNoDatabase
	}
	var version int
	err := DB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM vault_parameters WHERE config_name = $1;`, configName,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest parameters version for config '%s': %w", configName, err)
	}
	return version, nil
}

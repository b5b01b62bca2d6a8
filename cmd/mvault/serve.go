package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elys-network/mvault/internal/config"
	"github.com/elys-network/mvault/internal/events"
	"github.com/elys-network/mvault/internal/logger"
	"github.com/elys-network/mvault/internal/operator"
	"github.com/elys-network/mvault/internal/state"
	"github.com/elys-network/mvault/internal/types"
	"github.com/elys-network/mvault/internal/web"
)

const (
	defaultLoopInterval = 10 * time.Minute
	recentEventsKept    = 1_000
	recentCyclesKept    = 200
)

var serveInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the vault, its operator loop, the JSON API and the gRPC health service",
	Long: `Run the vault in paper mode against simulated backends.

Every interval the operator harvests profit, rebalances toward the strategy weights and
records a cycle snapshot. When DB_HOST is set, parameters, events and snapshots are
persisted to PostgreSQL.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&serveInterval, "interval", defaultLoopInterval, "time between operator cycles")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if config.Mode != config.ModePaper {
		return fmt.Errorf("MVAULT_MODE %q is not supported; set MVAULT_MODE=paper", config.Mode)
	}
	log.Info().Msg("mvault starting in paper mode...")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 1. Persistence ---
	dbEnabled := config.DatabaseEnabled()
	if dbEnabled {
		if err := state.InitDB(dbConfig()); err != nil {
			return err
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			return err
		}
	} else {
		log.Warn().Msg("DB_HOST not set. Running without persistence.")
	}

	params, err := loadParameters(ctx, dbEnabled)
	if err != nil {
		return err
	}

	// --- 2. Events ---
	recorder := events.NewRecorder(recentEventsKept)
	sinks := events.Multi{recorder, events.LogSink{Logger: logger.GetForComponent("vault_events")}}
	if dbEnabled {
		sinks = append(sinks, state.NewJournal())
	}

	// --- 3. Vault and strategies ---
	deployment, err := newPaperDeployment(ctx, paperConfig{
		Asset:  config.AssetDenom,
		Vault:  config.VaultAddress,
		Admin:  config.Admin,
		Params: params,
		Events: sinks,
	})
	if err != nil {
		return fmt.Errorf("failed to build paper deployment: %w", err)
	}

	// --- 4. gRPC health ---
	healthSrv, err := newHealthServer(config.GRPCHealthAddr)
	if err != nil {
		return err
	}
	healthSrv.SetVaultPaused(deployment.vault.Paused())
	go func() {
		if err := healthSrv.Serve(); err != nil {
			log.Error().Err(err).Msg("gRPC health server failed")
		}
	}()
	defer healthSrv.Stop()

	// --- 5. Web API ---
	history := operator.NewHistory(recentCyclesKept)
	webCfg := web.Config{
		Port:   config.WebPort,
		Vault:  deployment.vault,
		Events: recorder,
		Cycles: history,
	}
	if dbEnabled {
		webCfg.Cycles = state.CycleStore{ConfigName: config.DefaultParametersConfigName}
		webCfg.DBCheck = state.TestDBConnection
	}
	webServer, err := web.NewWebServer(webCfg)
	if err != nil {
		return err
	}
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting vault API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := webServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Web server shutdown failed")
		}
	}()

	// --- 6. Operator loop ---
	opCfg := operator.Config{
		Vault:  deployment.vault,
		Caller: config.Admin,
		Events: recorder,
		OnCycleComplete: func(snapshot types.CycleSnapshot) {
			history.Record(snapshot)
			healthSrv.SetVaultPaused(deployment.vault.Paused())
			if err := deployment.accrue(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to accrue paper yield")
			}
		},
	}
	if dbEnabled {
		opCfg.Store = state.CycleStore{ConfigName: config.DefaultParametersConfigName}
	}
	op, err := operator.New(opCfg)
	if err != nil {
		return err
	}

	log.Info().Str("interval", serveInterval.String()).Msg("Starting operator loop")
	op.RunLoop(ctx, serveInterval)
	log.Info().Int("cycles", op.CycleCount()).Msg("mvault stopped")
	return nil
}

// loadParameters returns the active parameter version, saving the configured defaults when the
// database has none. Without a database the configured defaults are used directly.
func loadParameters(ctx context.Context, dbEnabled bool) (types.VaultParameters, error) {
	defaults := config.VaultParameters()
	if !dbEnabled {
		return defaults, nil
	}

	params, version, err := state.LoadActiveVaultParameters(ctx, config.DefaultParametersConfigName)
	if err == nil {
		log.Info().Int("version", version).Msg("Vault parameters loaded from database")
		return *params, nil
	}
	if !errors.Is(err, state.ErrNoActiveParameters) {
		return types.VaultParameters{}, fmt.Errorf("failed to load vault parameters: %w", err)
	}

	log.Warn().Msg("No active vault parameters found, saving defaults.")
	latest, err := state.LatestVaultParametersVersion(ctx, config.DefaultParametersConfigName)
	if err != nil {
		return types.VaultParameters{}, err
	}
	version = config.DefaultParametersVersion
	if latest >= version {
		version = latest + 1
	}
	if _, err := state.SaveVaultParameters(ctx, defaults, config.DefaultParametersConfigName, version, true); err != nil {
		return types.VaultParameters{}, fmt.Errorf("failed to save default vault parameters: %w", err)
	}
	return defaults, nil
}

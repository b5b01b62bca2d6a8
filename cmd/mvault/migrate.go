package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elys-network/mvault/internal/config"
	"github.com/elys-network/mvault/internal/state"
)

var migrateReset bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL schema",
	Long: `Create the tables used for parameter versions, the event journal and cycle snapshots.

With --reset every table is dropped first and the cycle counter starts again at zero.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateReset, "reset", false, "drop all tables before creating them")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if !config.DatabaseEnabled() {
		return errors.New("DB_HOST is not set; nothing to migrate")
	}
	if err := state.InitDB(dbConfig()); err != nil {
		return err
	}
	defer state.CloseDB()

	if migrateReset {
		log.Warn().Msg("Resetting database...")
		if err := state.ResetSchema(); err != nil {
			return err
		}
	}
	if err := state.EnsureSchema(); err != nil {
		return err
	}
	if migrateReset {
		if err := state.ResetCycleNumber(cmd.Context(), 0); err != nil {
			return fmt.Errorf("failed to reset cycle counter: %w", err)
		}
	}
	log.Info().Bool("reset", migrateReset).Msg("Database migration completed")
	return nil
}

func dbConfig() state.DBConfig {
	return state.DBConfig{
		Host:     config.DBHost,
		Port:     config.DBPort,
		User:     config.DBUser,
		Password: config.DBPassword,
		DBName:   config.DBName,
		SSLMode:  config.DBSSLMode,
	}
}

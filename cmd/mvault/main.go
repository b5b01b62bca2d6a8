package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elys-network/mvault/internal/config"
	"github.com/elys-network/mvault/internal/logger"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mvault",
	Short: "Multi-strategy vault ledger and operator",
	Long: `mvault custodies a single settlement asset, issues shares against it and spreads
the deposits over weighted strategies (dual-token liquidity and lending).

Configuration is read from the environment, after loading .env if present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
		}

		// Load configuration from environment variables
		if err := config.LoadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		var extra []io.Writer
		if config.LogFile != "" {
			w, err := logger.FileWriter(config.LogFile)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			extra = append(extra, w)
		}
		logger.Initialize(config.LogLevel, extra...)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// main is the entry point for the vault process.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

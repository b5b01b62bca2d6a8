package config

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the port of the JSON API.
	WebPort string
	// GRPCHealthAddr is the listen address of the gRPC health service.
	GRPCHealthAddr string

	// Database settings. DBHost empty means the vault runs without persistence.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	WebPort = getEnvOrDefault("WEB_PORT", "8080")
	GRPCHealthAddr = getEnvOrDefault("GRPC_HEALTH_ADDR", ":9090")

	DBHost = os.Getenv("DB_HOST")
	DBPort = 5432
	if _, set := os.LookupEnv("DB_PORT"); set {
		port, err := getEnvAsInt("DB_PORT")
		if err != nil {
			return err
		}
		DBPort = port
	}
	DBUser = os.Getenv("DB_USER")
	DBPassword = os.Getenv("DB_PASSWORD")
	DBName = os.Getenv("DB_NAME")
	DBSSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	log.Debug().
		Str("WebPort", WebPort).
		Str("GRPCHealthAddr", GRPCHealthAddr).
		Str("DBHost", DBHost).
		Int("DBPort", DBPort).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// DatabaseEnabled reports whether a PostgreSQL host is configured.
func DatabaseEnabled() bool {
	return DBHost != ""
}

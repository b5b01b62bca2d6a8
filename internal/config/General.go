package config

import (
	"errors"
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/mvault/internal/types"
)

// ModePaper runs the vault against in-process simulated backends.
const ModePaper = "paper"

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// AssetDenom is the settlement asset the vault accepts and pays out.
	AssetDenom string
	// Admin is the only account allowed to administer the vault.
	Admin types.Address
	// VaultAddress is the custody account holding idle funds.
	VaultAddress types.Address

	// Mode selects the backends; only "paper" is supported.
	Mode string
	// LogLevel is passed to logger.Initialize.
	LogLevel string
	// LogFile, when set, receives a JSON copy of every log record.
	LogFile string

	// IdleReserve overrides DefaultVaultParameters.IdleReserveTarget when set.
	IdleReserve *sdkmath.Int
	// DepositCap overrides DefaultVaultParameters.DepositCap when set. Zero means uncapped.
	DepositCap *sdkmath.Int
	// MaxSlippageBps overrides DefaultVaultParameters.DefaultMaxSlippageBps when set.
	MaxSlippageBps *uint32
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Identity variables are required; tuning overrides and endpoints are optional.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	AssetDenom, err = getEnv("MVAULT_ASSET_DENOM")
	if err != nil {
		return err
	}

	admin, err := getEnv("MVAULT_ADMIN")
	if err != nil {
		return err
	}
	Admin = types.Address(admin)

	vaultAddr, err := getEnv("MVAULT_ADDRESS")
	if err != nil {
		return err
	}
	VaultAddress = types.Address(vaultAddr)

	if Admin.IsZero() || VaultAddress.IsZero() || AssetDenom == "" {
		return errors.New("MVAULT_ASSET_DENOM, MVAULT_ADMIN and MVAULT_ADDRESS must not be empty")
	}

	Mode = getEnvOrDefault("MVAULT_MODE", ModePaper)
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFile = os.Getenv("LOG_FILE")

	if IdleReserve, err = getOptionalInt("MVAULT_IDLE_RESERVE"); err != nil {
		return err
	}
	if DepositCap, err = getOptionalInt("MVAULT_DEPOSIT_CAP"); err != nil {
		return err
	}
	MaxSlippageBps = nil
	if _, set := os.LookupEnv("MVAULT_MAX_SLIPPAGE_BPS"); set {
		bps, err := getEnvAsUint64("MVAULT_MAX_SLIPPAGE_BPS")
		if err != nil {
			return err
		}
		if bps > 10_000 {
			return errors.New("environment variable MVAULT_MAX_SLIPPAGE_BPS must be at most 10000")
		}
		v := uint32(bps)
		MaxSlippageBps = &v
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("AssetDenom", AssetDenom).
		Str("Admin", Admin.String()).
		Str("VaultAddress", VaultAddress.String()).
		Str("Mode", Mode).
		Msg("Configuration loaded successfully.")

	return nil
}

// VaultParameters returns DefaultVaultParameters with any environment overrides applied.
func VaultParameters() types.VaultParameters {
	params := DefaultVaultParameters
	if IdleReserve != nil {
		params.IdleReserveTarget = *IdleReserve
	}
	if DepositCap != nil {
		params.DepositCap = *DepositCap
	}
	if MaxSlippageBps != nil {
		params.DefaultMaxSlippageBps = *MaxSlippageBps
	}
	return params
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getOptionalInt parses an unset-or-non-negative integer amount.
func getOptionalInt(key string) (*sdkmath.Int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return nil, nil
	}
	value, ok := sdkmath.NewIntFromString(valueStr)
	if !ok || value.IsNegative() {
		return nil, errors.New("environment variable " + key + " must be a non-negative integer, got: " + valueStr)
	}
	return &value, nil
}

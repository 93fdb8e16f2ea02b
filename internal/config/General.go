package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PairID identifies the pool instance this daemon manages (e.g. "ubase/uquote").
	PairID string

	// CustodialAddress is the on-chain account holding the pool's assets.
	CustodialAddress string
	// LockAddress receives the permanently locked minimum liquidity.
	LockAddress string
	// OwnerAddress may run the gated operations (ramps, fee share updates).
	OwnerAddress string

	// ChainID is the chain ID of the target network.
	ChainID string

	// SyncIntervalSeconds is the period of the orderbook sync loop; 0 disables it.
	SyncIntervalSeconds uint64
	// SnapshotIntervalSeconds is the period of pool snapshot persistence.
	SnapshotIntervalSeconds uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	PairID, err = getEnv("PCL_PAIR_ID")
	if err != nil {
		return err
	}

	CustodialAddress, err = getEnv("PCL_CUSTODIAL_ADDRESS")
	if err != nil {
		return err
	}

	LockAddress, err = getEnv("PCL_LOCK_ADDRESS")
	if err != nil {
		return err
	}

	OwnerAddress, err = getEnv("PCL_OWNER_ADDRESS")
	if err != nil {
		return err
	}

	ChainID, err = getEnv("CHAIN_ID")
	if err != nil {
		return err
	}

	SyncIntervalSeconds, err = getEnvAsUint64("PCL_SYNC_INTERVAL_SECONDS")
	if err != nil {
		return err
	}

	SnapshotIntervalSeconds, err = getEnvAsUint64("PCL_SNAPSHOT_INTERVAL_SECONDS")
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("PairID", PairID).
		Str("ChainID", ChainID).
		Str("CustodialAddress", CustodialAddress).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
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

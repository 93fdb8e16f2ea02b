package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NodeRPC is the JSON-RPC endpoint for the node (abci_query transport).
	NodeRPC string
	// NodeGRPC is the gRPC endpoint for the node (DEX and bank queries).
	NodeGRPC string
	// DexMarket is the orderbook market identifier for this pair.
	DexMarket string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	NodeRPC, err = getEnv("NODE_RPC")
	if err != nil {
		return err
	}

	NodeGRPC, err = getEnv("NODE_GRPC")
	if err != nil {
		return err
	}

	DexMarket, err = getEnv("DEX_MARKET")
	if err != nil {
		return err
	}

	log.Debug().
		Str("NodeRPC", NodeRPC).
		Str("NodeGRPC", NodeGRPC).
		Str("DexMarket", DexMarket).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

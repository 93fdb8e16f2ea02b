package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/astrodex-labs/pcl-core/internal/config"
	"github.com/astrodex-labs/pcl-core/internal/daemon"
	"github.com/astrodex-labs/pcl-core/internal/factory"
	"github.com/astrodex-labs/pcl-core/internal/logger"
	"github.com/astrodex-labs/pcl-core/internal/orderbook"
	"github.com/astrodex-labs/pcl-core/internal/pool"
	"github.com/astrodex-labs/pcl-core/internal/state"
	"github.com/astrodex-labs/pcl-core/internal/twap"
	"github.com/astrodex-labs/pcl-core/internal/types"
	"github.com/astrodex-labs/pcl-core/internal/web"
)

// main is the entry point for the pool daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("PCL Pool Daemon Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Pool Parameters
	params, err := state.LoadActivePoolParameters(config.PairID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load active pool parameters")
	}
	if params == nil {
		log.Warn().Msg("No active pool parameters found, using defaults and saving.")
		defaults := config.DefaultPoolParams
		if scale := os.Getenv("PCL_INITIAL_PRICE_SCALE"); scale != "" {
			parsed, err := sdkmath.LegacyNewDecFromStr(scale)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid PCL_INITIAL_PRICE_SCALE")
			}
			defaults.PriceScale = parsed
		}
		if _, err := state.SavePoolParameters(defaults, config.PairID, 1, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default pool parameters.")
		}
		params = &defaults
	}
	log.Info().Msg("Pool parameters loaded successfully.")

	// --- 2. Pool Instantiation ---
	denoms := strings.SplitN(config.PairID, "/", 2)
	if len(denoms) != 2 {
		log.Fatal().Str("pair_id", config.PairID).Msg("PCL_PAIR_ID must be of the form base/quote")
	}
	now := time.Now().Unix()
	p, err := pool.NewPool(pool.InitParams{
		AssetInfos: [types.PoolAssetsNum]types.AssetInfo{
			types.NativeAsset(denoms[0]),
			types.NativeAsset(denoms[1]),
		},
		LpDenom:             "factory/" + config.CustodialAddress + "/lp",
		Factory:             os.Getenv("PCL_FACTORY_ADDRESS"),
		Owner:               config.OwnerAddress,
		LockAddress:         config.LockAddress,
		Params:              *params,
		Amp:                 config.DefaultAmp,
		Gamma:               config.DefaultGamma,
		Precisions:          config.DefaultPrecisions,
		ObservationCapacity: config.DefaultObservationCapacity,
		MinTradesToAvg:      config.DefaultMinTradesToAvg,
	}, now)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to instantiate pool")
	}

	if err := restoreFromSnapshot(p); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore pool snapshot")
	}

	feeClient := factory.NewClient(config.NodeRPC)
	engine := pool.NewEngine(p, feeClient)

	// --- Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, engine, config.PairID)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting pool query API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// Initialize gRPC Connection
	grpcEndpoint := config.NodeGRPC
	var creds grpc.DialOption
	if strings.Contains(grpcEndpoint, ":443") {
		creds = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{}))
	} else {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	grpcClient, err := grpc.Dial(grpcEndpoint, creds)
	if err != nil {
		log.Fatal().Err(err).Msg("gRPC connection error")
	}
	defer grpcClient.Close()
	log.Info().Str("endpoint", grpcEndpoint).Msg("gRPC connected")

	// --- 3. Orderbook Controller (optional) ---
	var controller *orderbook.Controller
	if os.Getenv("PCL_ORDERBOOK_ENABLED") == "true" {
		dexClient := orderbook.NewGrpcClient(grpcClient, config.CustodialAddress)
		obParams := orderbook.Params{
			OrdersNumber:       mustAtoi(os.Getenv("PCL_ORDERS_NUMBER"), 5),
			LiquidityPercent:   mustDec(os.Getenv("PCL_LIQUIDITY_PERCENT"), "0.05"),
			MinAsset0OrderSize: mustInt(os.Getenv("PCL_MIN_ASSET0_ORDER_SIZE"), "1000"),
			MinAsset1OrderSize: mustInt(os.Getenv("PCL_MIN_ASSET1_ORDER_SIZE"), "1000"),
			AvgPriceAdjustment: mustDec(os.Getenv("PCL_AVG_PRICE_ADJUSTMENT"), "0.0005"),
			Executor:           os.Getenv("PCL_SYNC_EXECUTOR"),
			Enabled:            true,
		}
		controller, err = orderbook.NewController(
			engine, dexClient, dexClient, feeClient,
			config.CustodialAddress, config.DexMarket, obParams,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize orderbook controller")
		}
		log.Info().Str("market", config.DexMarket).Msg("Orderbook mirroring enabled")
	} else {
		log.Info().Msg("Orderbook mirroring disabled")
	}

	// --- 4. Start Daemon Loop ---
	d, err := daemon.New(daemon.Config{
		Engine:           engine,
		Controller:       controller,
		PairID:           config.PairID,
		Executor:         os.Getenv("PCL_SYNC_EXECUTOR"),
		SyncInterval:     time.Duration(config.SyncIntervalSeconds) * time.Second,
		SnapshotInterval: time.Duration(config.SnapshotIntervalSeconds) * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create daemon")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	d.RunLoop(ctx)
}

// restoreFromSnapshot overlays the latest persisted state onto a fresh pool.
func restoreFromSnapshot(p *pool.Pool) error {
	snapshot, err := state.LoadLatestPoolSnapshot(config.PairID)
	if err != nil {
		return err
	}
	if snapshot == nil {
		log.Info().Msg("No persisted snapshot, starting from an empty pool")
		return nil
	}

	balance0, ok := sdkmath.NewIntFromString(snapshot.Balance0)
	if !ok {
		log.Fatal().Str("balance0", snapshot.Balance0).Msg("Malformed persisted balance")
	}
	balance1, ok := sdkmath.NewIntFromString(snapshot.Balance1)
	if !ok {
		log.Fatal().Str("balance1", snapshot.Balance1).Msg("Malformed persisted balance")
	}
	totalLp, ok := sdkmath.NewIntFromString(snapshot.TotalLp)
	if !ok {
		log.Fatal().Str("total_lp", snapshot.TotalLp).Msg("Malformed persisted LP supply")
	}
	price0, ok := twap.Uint128FromString(snapshot.Price0Cumulative)
	if !ok {
		log.Fatal().Str("price0", snapshot.Price0Cumulative).Msg("Malformed persisted accumulator")
	}
	price1, ok := twap.Uint128FromString(snapshot.Price1Cumulative)
	if !ok {
		log.Fatal().Str("price1", snapshot.Price1Cumulative).Msg("Malformed persisted accumulator")
	}

	p.Balances = [types.PoolAssetsNum]sdkmath.Int{balance0, balance1}
	p.TotalLp = totalLp
	p.Price = snapshot.PriceState
	p.AmpGamma = snapshot.AmpGamma
	p.LastRampStart = snapshot.LastRampStart
	p.Accumulator.Price0Cumulative = price0
	p.Accumulator.Price1Cumulative = price1
	p.Accumulator.BlockTimeLast = snapshot.BlockTimeLast

	log.Info().
		Time("taken_at", snapshot.TakenAt).
		Str("total_lp", snapshot.TotalLp).
		Msg("Pool state restored from snapshot")
	return nil
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}

// mustDec parses a decimal env value, falling back to a known-good default.
func mustDec(s, fallback string) sdkmath.LegacyDec {
	if s == "" {
		s = fallback
	}
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		log.Fatal().Str("value", s).Msg("Malformed decimal configuration value")
	}
	return d
}

// mustInt parses an integer env value, falling back to a known-good default.
func mustInt(s, fallback string) sdkmath.Int {
	if s == "" {
		s = fallback
	}
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		log.Fatal().Str("value", s).Msg("Malformed integer configuration value")
	}
	return i
}

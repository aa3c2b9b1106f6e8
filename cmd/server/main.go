package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swapFeed/internal/chain"
	"swapFeed/internal/config"
	"swapFeed/internal/dex"
	"swapFeed/internal/explorer"
	"swapFeed/internal/feed"
	"swapFeed/internal/model"
	"swapFeed/internal/oracle"
	"swapFeed/internal/pipeline"
	"swapFeed/internal/pricefeed"
	"swapFeed/internal/server"
	"swapFeed/internal/storage/postgres"
)

const version = "0.3.0"

func main() {
	root := &cobra.Command{
		Use:          "swap-feed",
		Short:        "Swap trade feed API",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServer,
	}

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("indexer-url", "", "chain indexer base URL")
	serveCmd.Flags().String("indexer-token", "", "chain indexer bearer token")
	serveCmd.Flags().String("oracle-url", "https://hermes.pyth.network", "price oracle base URL")
	serveCmd.Flags().String("explorer-url", "https://api-sepolia.etherscan.io", "block explorer base URL")
	serveCmd.Flags().String("explorer-key", "", "block explorer API key")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	serveCmd.Flags().StringSlice("swap-contract", []string{config.DefaultSwapContract}, "swap contract addresses (comma-separated)")
	serveCmd.Flags().String("default-token0", config.DefaultToken0, "fallback token0 address")
	serveCmd.Flags().String("default-token1", config.DefaultToken1, "fallback token1 address")
	serveCmd.Flags().Duration("price-cache-ttl", 30*time.Second, "current price cache TTL")
	serveCmd.Flags().Duration("upstream-timeout", 30*time.Second, "per-request upstream timeout")
	serveCmd.Flags().Int("enrich-concurrency", 8, "parallel price lookups per request")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.IndexerURL == "" {
		return fmt.Errorf("indexer url is required")
	}
	if cfg.PgDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PgDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	gateway := chain.NewClient(cfg.IndexerURL, cfg.IndexerToken, cfg.UpstreamTimeout, logger)
	oracleClient := oracle.NewClient(cfg.OracleURL, cfg.UpstreamTimeout, logger)
	verifier := explorer.NewClient(cfg.ExplorerURL, cfg.ExplorerKey, cfg.UpstreamTimeout, logger)

	priceCache := oracle.NewPriceCache(cfg.PriceCacheTTL, nil, func(ctx context.Context, tokenAddress string) (*model.PriceQuote, error) {
		feedID, ok := pricefeed.ResolveFeed(tokenAddress)
		if !ok {
			return nil, fmt.Errorf("no price feed for token %s", tokenAddress)
		}
		quotes := oracleClient.LatestPrices(ctx, []string{feedID})
		quote := quotes[feedID]
		if quote == nil {
			return nil, fmt.Errorf("no latest price for feed %s", feedID)
		}
		return quote, nil
	})

	decoder, err := dex.NewSwapDecoder()
	if err != nil {
		return fmt.Errorf("build swap decoder: %w", err)
	}
	swapPipeline := pipeline.New(pipeline.Config{
		SwapContracts:     cfg.SwapContracts,
		DefaultToken0:     cfg.DefaultToken0,
		DefaultToken1:     cfg.DefaultToken1,
		EnrichConcurrency: cfg.EnrichConcurrency,
	}, gateway, oracleClient, decoder, logger)

	feedSvc := feed.NewService(store, verifier, oracleClient, priceCache, logger)

	srv := server.New(server.Config{
		Addr:       cfg.Addr,
		Version:    version,
		IndexerURL: cfg.IndexerURL,
	}, swapPipeline, feedSvc, priceCache, logger)

	logger.Info("starting",
		zap.String("version", version),
		zap.String("addr", cfg.Addr),
		zap.Strings("swap_contracts", cfg.SwapContracts),
	)
	return srv.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

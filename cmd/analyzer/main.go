package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/config"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/llama"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "analyzer",
		Short:        "DeFi yield pool risk analyzer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(
		newInitDBCmd(),
		newCollectCmd(),
		newUpdateCmd(),
		newRecomputeCmd(),
		newSummaryCmd(),
		newVerifyCmd(),
		newScheduleCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addCollectFlags(cmd *cobra.Command) {
	cmd.Flags().String("yields-url", "https://yields.llama.fi", "yields API base URL")
	cmd.Flags().String("base-url", "https://api.llama.fi", "protocol API base URL")
	cmd.Flags().Float64("min-tvl-usd", 100_000, "minimum pool TVL in USD (strict)")
	cmd.Flags().Float64("min-apy", 0.5, "minimum APY percent (exclusive)")
	cmd.Flags().Float64("max-apy", 200, "maximum APY percent (exclusive)")
	cmd.Flags().Int("top-pools", 500, "number of top pools by TVL to track")
	cmd.Flags().Int("history-days", 90, "trailing days of history to keep")
	cmd.Flags().Int("resume-skip-days", 7, "resume mode skips pools with a metric this recent")
	cmd.Flags().Duration("request-delay", time.Second, "delay between history requests")
	cmd.Flags().Int("max-retries", 3, "maximum HTTP retry attempts")
	cmd.Flags().Duration("retry-backoff", time.Second, "initial HTTP retry backoff")
}

func addRiskFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("weight-apy-volatility", 0.3, "composite weight for APY volatility")
	cmd.Flags().Float64("weight-tvl-volatility", 0.3, "composite weight for TVL volatility")
	cmd.Flags().Float64("weight-liquidity", 0.4, "composite weight for liquidity")
	cmd.Flags().Float64("risk-low-max", 30, "upper bound of the Low risk band (inclusive)")
	cmd.Flags().Float64("risk-medium-max", 60, "upper bound of the Medium risk band (inclusive)")
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg config.Config) (*postgres.Store, error) {
	if cfg.PGDSN == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return store, nil
}

func newUpstreamClient(cfg config.Config, logger *zap.Logger) *llama.Client {
	return llama.NewClient(llama.Config{
		YieldsURL:    cfg.YieldsURL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
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

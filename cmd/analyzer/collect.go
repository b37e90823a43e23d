package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/collector"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/config"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/risk"
)

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run the cold-start collection pipeline",
		RunE:  runCollect,
	}
	addStoreFlags(cmd)
	addCollectFlags(cmd)
	return cmd
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client := newUpstreamClient(cfg, logger)
	coll := collector.New(client, store, cfg, logger)

	logger.Info("full collection start",
		zap.String("yields_url", cfg.YieldsURL),
		zap.Float64("min_tvl_usd", cfg.MinTVLUSD),
		zap.Float64("min_apy", cfg.MinAPY),
		zap.Float64("max_apy", cfg.MaxAPY),
		zap.Int("top_pools", cfg.TopPools),
		zap.Int("history_days", cfg.HistoryDays),
	)

	return coll.RunFullCollection(ctx)
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh pool metadata, collect recent history, and recompute risk",
		RunE:  runUpdate,
	}
	addStoreFlags(cmd)
	addCollectFlags(cmd)
	addRiskFlags(cmd)
	return cmd
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runUpdatePipeline(ctx, cfg, logger)
}

// runUpdatePipeline is the scheduled maintenance run: refresh metadata,
// resume-mode history collection, then recompute. Per-pool failures inside
// each stage are non-fatal; only whole-pipeline preconditions return an error.
func runUpdatePipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client := newUpstreamClient(cfg, logger)
	coll := collector.New(client, store, cfg, logger)

	if _, err := coll.RefreshPoolMetadata(ctx); err != nil {
		return err
	}

	if _, err := coll.CollectHistory(ctx, true); err != nil {
		return err
	}

	calc := risk.NewCalculator(store, cfg.Risk, logger)
	if _, err := calc.RecomputeAll(ctx); err != nil {
		return err
	}

	logger.Info("update pipeline complete")
	return nil
}

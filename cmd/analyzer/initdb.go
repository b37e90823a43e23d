package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newInitDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema",
		RunE:  runInitDB,
	}
	addStoreFlags(cmd)
	return cmd
}

func runInitDB(cmd *cobra.Command, _ []string) error {
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

	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	counts, err := store.TableCounts(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Database ready.")
	fmt.Printf("  Protocols:   %d\n", counts.Protocols)
	fmt.Printf("  Pools:       %d\n", counts.Pools)
	fmt.Printf("  Metrics:     %d\n", counts.Metrics)
	fmt.Printf("  Risk scores: %d\n", counts.RiskScores)
	return nil
}

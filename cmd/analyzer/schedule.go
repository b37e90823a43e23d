package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the update pipeline on a cron schedule",
		RunE:  runSchedule,
	}
	addStoreFlags(cmd)
	addCollectFlags(cmd)
	addRiskFlags(cmd)
	cmd.Flags().String("cron", "0 0 * * 0", "cron spec for the update pipeline")
	return cmd
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cronSpec, _ := cmd.Flags().GetString("cron")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err = scheduler.AddFunc(cronSpec, func() {
		logger.Info("scheduled update start", zap.String("cron", cronSpec))
		if err := runUpdatePipeline(ctx, cfg, logger); err != nil {
			logger.Error("scheduled update failed", zap.Error(err))
			return
		}
		logger.Info("scheduled update complete")
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	logger.Info("scheduler started", zap.String("cron", cronSpec))

	<-ctx.Done()

	// Let a running job finish before exiting.
	<-scheduler.Stop().Done()
	logger.Info("scheduler stopped")
	return nil
}

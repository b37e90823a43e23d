package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/config"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/risk"
)

func newRecomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute risk scores for all pools",
		RunE:  runRecompute,
	}
	addStoreFlags(cmd)
	addRiskFlags(cmd)
	return cmd
}

func runRecompute(cmd *cobra.Command, _ []string) error {
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

	calc := risk.NewCalculator(store, cfg.Risk, logger)
	stats, err := calc.RecomputeAll(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Calculated: %d\nSkipped (insufficient data): %d\nErrors: %d\n",
		stats.Calculated, stats.Skipped, stats.Errors)
	return nil
}

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the risk summary report",
		RunE:  runSummary,
	}
	addStoreFlags(cmd)
	addRiskFlags(cmd)
	cmd.Flags().Int("top", 10, "rows to show in the safest/riskiest sections")
	cmd.Flags().String("pool", "", "print the full breakdown for one pool by external id")
	return cmd
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	top, _ := cmd.Flags().GetInt("top")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	calc := risk.NewCalculator(store, cfg.Risk, logger)

	if poolID, _ := cmd.Flags().GetString("pool"); poolID != "" {
		return printBreakdown(ctx, calc, cfg, poolID)
	}

	rows, err := calc.Summary(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No risk scores stored yet. Run `analyzer collect` and `analyzer recompute` first.")
		return nil
	}

	distribution := map[string]int{}
	for _, row := range rows {
		distribution[row.RiskLevel]++
	}

	fmt.Printf("Pools with risk scores: %d\n\n", len(rows))
	fmt.Printf("Risk distribution:\n")
	for _, level := range []string{"Low", "Medium", "High"} {
		fmt.Printf("  %-6s %d\n", level, distribution[level])
	}

	// Rows arrive ordered by composite score ascending.
	if top > len(rows) {
		top = len(rows)
	}

	fmt.Printf("\nSafest pools:\n")
	printSummaryTable(rows[:top])

	fmt.Printf("\nRiskiest pools:\n")
	riskiest := make([]model.SummaryRow, top)
	for i := 0; i < top; i++ {
		riskiest[i] = rows[len(rows)-1-i]
	}
	printSummaryTable(riskiest)

	return nil
}

func printBreakdown(ctx context.Context, calc *risk.Calculator, cfg config.Config, externalID string) error {
	pool, score, ok, err := calc.Breakdown(ctx, externalID)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("No risk score stored for pool %s.\n", externalID)
		return nil
	}

	fmt.Printf("%s - %s (%s)\n", pool.Project, pool.Symbol, pool.Chain)
	fmt.Printf("  Calculated:       %s\n", score.CalculatedAt.Format("2006-01-02 15:04 MST"))
	fmt.Printf("  APY 30d mean:     %.2f%%\n", score.APYMean30d)
	fmt.Printf("  APY 30d std:      %.2f\n", score.APYVolatility30d)
	fmt.Printf("  TVL 30d mean:     $%s\n", humanize.CommafWithDigits(score.TVLMean30d, 0))
	fmt.Printf("  TVL 30d CV:       %.2f%%\n", score.TVLVolatility30d)
	fmt.Printf("  Liquidity score:  %.1f\n", score.LiquidityScore)
	fmt.Printf("  Stability score:  %.1f\n", score.StabilityScore)
	fmt.Printf("  Composite risk:   %.1f (%s)\n", score.CompositeScore, risk.ClassifyRisk(cfg.Risk, score.CompositeScore))
	return nil
}

func printSummaryTable(rows []model.SummaryRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tSYMBOL\tCHAIN\tRISK\tLEVEL\tAPY 30D\tTVL 30D")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\t%.2f%%\t$%s\n",
			row.Project,
			row.Symbol,
			row.Chain,
			row.CompositeScore,
			row.RiskLevel,
			row.APYMean30d,
			humanize.CommafWithDigits(row.TVLMean30d, 0),
		)
	}
	w.Flush()
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify database contents and data freshness",
		RunE:  runVerify,
	}
	addStoreFlags(cmd)
	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
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

	counts, err := store.TableCounts(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Record counts:\n")
	fmt.Printf("  Protocols:   %s\n", humanize.Comma(counts.Protocols))
	fmt.Printf("  Pools:       %s\n", humanize.Comma(counts.Pools))
	fmt.Printf("  Metrics:     %s\n", humanize.Comma(counts.Metrics))
	fmt.Printf("  Risk scores: %s\n", humanize.Comma(counts.RiskScores))

	latest, ok, err := store.LatestMetricDate(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("\nNo metrics stored yet.")
		return nil
	}
	fmt.Printf("\nLatest metric date: %s (%s)\n", latest.Format("2006-01-02"), humanize.Time(latest))
	return nil
}

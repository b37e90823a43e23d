package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/config"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/storage"
)

// ErrInsufficientData means a pool has too few observations to score. Callers
// skip the pool; this is not a failure.
var ErrInsufficientData = errors.New("insufficient historical data")

const (
	// windowDays is the trailing window scores are computed over.
	windowDays = 30
	// minObservations is the floor below which a pool cannot be scored.
	minObservations = 7
	// maxLoggedErrors bounds per-pool error detail in bulk runs.
	maxLoggedErrors = 5
)

// RecomputeStats summarizes one bulk recomputation run.
type RecomputeStats struct {
	Processed  int
	Calculated int
	Skipped    int
	Errors     int
}

// Calculator computes and stores risk scores.
type Calculator struct {
	store  storage.Store
	cfg    config.RiskConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewCalculator(store storage.Store, cfg config.RiskConfig, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// LoadWindow reads a pool's metrics within the trailing window, ordered by
// date. Fewer than 7 observations yields ErrInsufficientData.
func (c *Calculator) LoadWindow(ctx context.Context, poolID int64, days int) ([]model.PoolMetric, error) {
	if days <= 0 {
		days = windowDays
	}
	since := c.now().UTC().AddDate(0, 0, -days)

	metrics, err := c.store.MetricsSince(ctx, poolID, since)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	if len(metrics) < minObservations {
		return nil, ErrInsufficientData
	}
	return metrics, nil
}

// ScoreForPool computes a full risk snapshot over the 30-day window.
func (c *Calculator) ScoreForPool(ctx context.Context, pool model.Pool) (model.RiskScore, error) {
	metrics, err := c.LoadWindow(ctx, pool.ID, windowDays)
	if err != nil {
		return model.RiskScore{}, err
	}

	apyMean, apyStd := APYVolatility(metrics)
	tvlMean, tvlCV := TVLVolatility(metrics)

	liquidity := LiquidityScore(tvlMean)
	stability := StabilityScore(apyStd, tvlCV)
	composite := CompositeScore(c.cfg, liquidity, stability)

	return model.RiskScore{
		PoolID:           pool.ID,
		CalculatedAt:     c.now().UTC(),
		APYMean30d:       apyMean,
		APYVolatility30d: apyStd,
		TVLMean30d:       tvlMean,
		TVLVolatility30d: tvlCV,
		LiquidityScore:   liquidity,
		StabilityScore:   stability,
		CompositeScore:   composite,
	}, nil
}

// RecomputeAll scores every pool with enough data, replacing its prior score
// rows pool by pool so earlier successes survive a later failure. Per-pool
// errors are counted; only the first few are logged in detail.
func (c *Calculator) RecomputeAll(ctx context.Context) (RecomputeStats, error) {
	var stats RecomputeStats

	pools, err := c.store.ListPools(ctx)
	if err != nil {
		return stats, fmt.Errorf("list pools: %w", err)
	}

	c.logger.Info("recomputing risk scores", zap.Int("pools", len(pools)))

	for _, pool := range pools {
		stats.Processed++

		count, err := c.store.CountMetrics(ctx, pool.ID)
		if err != nil {
			stats.Errors++
			c.logRecomputeError(stats.Errors, pool, err)
			continue
		}
		if count < minObservations {
			stats.Skipped++
			continue
		}

		score, err := c.ScoreForPool(ctx, pool)
		if err != nil {
			if errors.Is(err, ErrInsufficientData) {
				stats.Skipped++
				continue
			}
			stats.Errors++
			c.logRecomputeError(stats.Errors, pool, err)
			continue
		}

		if err := c.store.ReplaceRiskScore(ctx, score); err != nil {
			stats.Errors++
			c.logRecomputeError(stats.Errors, pool, err)
			continue
		}
		stats.Calculated++

		if stats.Calculated%50 == 0 {
			c.logger.Info("recompute progress",
				zap.Int("calculated", stats.Calculated),
				zap.Int("skipped", stats.Skipped),
			)
		}
	}

	c.logger.Info("risk recomputation complete",
		zap.Int("calculated", stats.Calculated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}

func (c *Calculator) logRecomputeError(errCount int, pool model.Pool, err error) {
	if errCount > maxLoggedErrors {
		return
	}
	c.logger.Warn("risk recompute failed",
		zap.String("pool", pool.ExternalID),
		zap.String("project", pool.Project),
		zap.String("symbol", pool.Symbol),
		zap.Error(err),
	)
}

// Breakdown returns the stored score components for one pool by external id.
// The bool reports whether the pool has a current score.
func (c *Calculator) Breakdown(ctx context.Context, externalID string) (model.Pool, model.RiskScore, bool, error) {
	pool, score, ok, err := c.store.RiskScoreForPool(ctx, externalID)
	if err != nil {
		return model.Pool{}, model.RiskScore{}, false, fmt.Errorf("load risk score: %w", err)
	}
	return pool, score, ok, nil
}

// Summary joins pools with their current scores and classifies each into a
// risk level.
func (c *Calculator) Summary(ctx context.Context) ([]model.SummaryRow, error) {
	rows, err := c.store.RiskSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("risk summary: %w", err)
	}
	for i := range rows {
		rows[i].RiskLevel = ClassifyRisk(c.cfg, rows[i].CompositeScore)
	}
	return rows, nil
}

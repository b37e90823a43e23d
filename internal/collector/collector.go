// Package collector orchestrates fetch → filter → persist for pool metadata
// and historical metrics.
package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/config"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/storage"
)

// commitEvery bounds pool-upsert transaction size.
const commitEvery = 50

// UpstreamClient is the slice of the yields API the collector needs.
type UpstreamClient interface {
	ListPools(ctx context.Context) ([]model.PoolSummary, error)
	History(ctx context.Context, externalID string) ([]model.HistoryPoint, error)
}

// CollectStats summarizes one history-collection run.
type CollectStats struct {
	Processed     int
	Succeeded     int
	Failed        int
	Skipped       int
	MetricsStored int
}

// Collector drives the ingestion pipeline. Runs are sequential; the only wait
// points are the client's backoff and the inter-request pacing limiter.
type Collector struct {
	client  UpstreamClient
	store   storage.Store
	cfg     config.Config
	logger  *zap.Logger
	limiter *rate.Limiter
	now     func() time.Time
}

func New(client UpstreamClient, store storage.Store, cfg config.Config, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Collector{
		client:  client,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		now:     time.Now,
	}
}

// FilterPools applies the quality gates, then ranks by TVL. Predicates run
// first so the top-N cut is deterministic: TVL strictly above the minimum, APY
// strictly inside the open acceptance band, identifier and project present.
func (c *Collector) FilterPools(raw []model.PoolSummary) []model.PoolSummary {
	filtered := make([]model.PoolSummary, 0, len(raw))
	for _, p := range raw {
		if p.ExternalID == "" || p.Project == "" {
			continue
		}
		if p.TVLUSD == nil || *p.TVLUSD <= c.cfg.MinTVLUSD {
			continue
		}
		if p.APY == nil || *p.APY <= c.cfg.MinAPY || *p.APY >= c.cfg.MaxAPY {
			continue
		}
		filtered = append(filtered, p)
	}

	// Stable sort keeps first-seen order for TVL ties.
	sort.SliceStable(filtered, func(i, j int) bool {
		return *filtered[i].TVLUSD > *filtered[j].TVLUSD
	})

	if len(filtered) > c.cfg.TopPools {
		filtered = filtered[:c.cfg.TopPools]
	}

	c.logger.Info("filtered pools",
		zap.Int("raw", len(raw)),
		zap.Int("kept", len(filtered)),
		zap.Int("cap", c.cfg.TopPools),
	)
	return filtered
}

// StorePools upserts pool metadata. Row failures roll back only that row and
// count as skipped; commits happen every 50 successful writes plus a final
// commit for the remainder.
func (c *Collector) StorePools(ctx context.Context, pools []model.PoolSummary) (storage.Counts, error) {
	var counts storage.Counts
	if len(pools) == 0 {
		return counts, nil
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("begin pool batch: %w", err)
	}

	for _, p := range pools {
		inserted, err := tx.UpsertPool(ctx, model.PoolUpsert{
			ExternalID: p.ExternalID,
			Symbol:     p.Symbol,
			Chain:      p.Chain,
			Project:    p.Project,
		})
		if err != nil {
			counts.Skipped++
			c.logger.Warn("store pool failed", zap.String("pool", p.ExternalID), zap.Error(err))
			continue
		}
		if inserted {
			counts.Inserted++
		} else {
			counts.Updated++
		}

		if (counts.Inserted+counts.Updated)%commitEvery == 0 {
			if err := tx.Commit(ctx); err != nil {
				return counts, fmt.Errorf("commit pool batch: %w", err)
			}
			tx, err = c.store.Begin(ctx)
			if err != nil {
				return counts, fmt.Errorf("begin pool batch: %w", err)
			}
			c.logger.Info("pool storage progress",
				zap.Int("inserted", counts.Inserted),
				zap.Int("updated", counts.Updated),
			)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return counts, fmt.Errorf("commit pool batch: %w", err)
	}

	c.logger.Info("pool storage complete",
		zap.Int("inserted", counts.Inserted),
		zap.Int("updated", counts.Updated),
		zap.Int("skipped", counts.Skipped),
	)
	return counts, nil
}

// StoreHistory upserts the observations that fall within the trailing history
// window, keyed by (pool, UTC day). Returns the number of rows touched.
func (c *Collector) StoreHistory(ctx context.Context, poolID int64, externalID string, points []model.HistoryPoint) (int, error) {
	cutoff := c.now().UTC().AddDate(0, 0, -c.cfg.HistoryDays)

	stored := 0
	for _, point := range points {
		if point.Date.Before(cutoff) {
			continue
		}
		metric := model.PoolMetric{
			PoolID:    poolID,
			Date:      model.DayUTC(point.Date),
			APY:       point.APY,
			APYBase:   point.APYBase,
			APYReward: point.APYReward,
			TVLUSD:    point.TVLUSD,
			IL7D:      point.IL7D,
		}
		if err := c.store.UpsertMetric(ctx, metric); err != nil {
			c.logger.Warn("store metric failed",
				zap.String("pool", externalID),
				zap.Time("date", metric.Date),
				zap.Error(err),
			)
			continue
		}
		stored++
	}
	return stored, nil
}

// CollectHistory fetches and stores history for every known pool. With resume
// set, pools that already have a metric within the trailing skip window are
// left alone. Failures are pool-scoped; the run always reaches every pool.
func (c *Collector) CollectHistory(ctx context.Context, resume bool) (CollectStats, error) {
	var stats CollectStats

	pools, err := c.store.ListPools(ctx)
	if err != nil {
		return stats, fmt.Errorf("list stored pools: %w", err)
	}

	if resume {
		recentCutoff := c.now().UTC().AddDate(0, 0, -c.cfg.ResumeSkipDays)
		remaining := pools[:0]
		for _, pool := range pools {
			recent, err := c.store.HasMetricSince(ctx, pool.ID, recentCutoff)
			if err != nil {
				return stats, fmt.Errorf("check recent metrics: %w", err)
			}
			if recent {
				stats.Skipped++
				continue
			}
			remaining = append(remaining, pool)
		}
		if stats.Skipped > 0 {
			c.logger.Info("resume mode: skipping pools with recent data", zap.Int("skipped", stats.Skipped))
		}
		pools = remaining
	}

	c.logger.Info("collecting history", zap.Int("pools", len(pools)))

	for i, pool := range pools {
		if err := c.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		stats.Processed++

		points, err := c.client.History(ctx, pool.ExternalID)
		if err != nil {
			stats.Failed++
			c.logger.Warn("fetch history failed",
				zap.String("pool", pool.ExternalID),
				zap.String("project", pool.Project),
				zap.Error(err),
			)
			continue
		}
		if len(points) == 0 {
			stats.Failed++
			c.logger.Warn("no history available", zap.String("pool", pool.ExternalID))
			continue
		}

		stored, err := c.StoreHistory(ctx, pool.ID, pool.ExternalID, points)
		if err != nil || stored == 0 {
			stats.Failed++
			if err != nil {
				c.logger.Warn("store history failed", zap.String("pool", pool.ExternalID), zap.Error(err))
			}
			continue
		}

		stats.Succeeded++
		stats.MetricsStored += stored

		if (i+1)%10 == 0 {
			c.logger.Info("collection progress",
				zap.Int("processed", i+1),
				zap.Int("total", len(pools)),
				zap.Int("metrics", stats.MetricsStored),
			)
		}
	}

	c.logger.Info("history collection complete",
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("metrics_stored", stats.MetricsStored),
	)
	return stats, nil
}

// RunFullCollection is the cold-start pipeline: list → filter → store →
// collect. It fails early, without side effects, when the listing is empty.
func (c *Collector) RunFullCollection(ctx context.Context) error {
	raw, err := c.client.ListPools(ctx)
	if err != nil {
		return fmt.Errorf("list pools: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("no pools returned by upstream")
	}
	c.logger.Info("fetched pool catalog", zap.Int("pools", len(raw)))

	filtered := c.FilterPools(raw)

	if _, err := c.StorePools(ctx, filtered); err != nil {
		return err
	}

	_, err = c.CollectHistory(ctx, false)
	return err
}

// RefreshPoolMetadata bumps updated_at on stored pools still present in the
// live listing. Used by the scheduled update pipeline.
func (c *Collector) RefreshPoolMetadata(ctx context.Context) (int, error) {
	raw, err := c.client.ListPools(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pools: %w", err)
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("no pools returned by upstream")
	}

	ids := make([]string, 0, len(raw))
	for _, p := range raw {
		if p.ExternalID != "" {
			ids = append(ids, p.ExternalID)
		}
	}

	updated, err := c.store.TouchPools(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("touch pools: %w", err)
	}
	c.logger.Info("refreshed pool metadata", zap.Int("updated", updated))
	return updated, nil
}

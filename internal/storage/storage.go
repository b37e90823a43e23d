package storage

import (
	"context"
	"time"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
)

// Counts reports the outcome of a pool storage batch.
type Counts struct {
	Inserted int
	Updated  int
	Skipped  int
}

// TableCounts reports record counts per table for verification output.
type TableCounts struct {
	Protocols  int64
	Pools      int64
	Metrics    int64
	RiskScores int64
}

// Store is the persistence boundary used by the collector and the risk
// calculator. One logical session per process; callers run sequentially.
type Store interface {
	// Begin opens a transaction for batched pool writes.
	Begin(ctx context.Context) (Tx, error)

	ListPools(ctx context.Context) ([]model.Pool, error)
	PoolIDByExternalID(ctx context.Context, externalID string) (int64, bool, error)
	TouchPools(ctx context.Context, externalIDs []string) (int, error)

	// UpsertMetric writes one observation keyed by (pool, day); conflicts
	// update in place.
	UpsertMetric(ctx context.Context, metric model.PoolMetric) error
	HasMetricSince(ctx context.Context, poolID int64, since time.Time) (bool, error)
	MetricsSince(ctx context.Context, poolID int64, since time.Time) ([]model.PoolMetric, error)
	CountMetrics(ctx context.Context, poolID int64) (int64, error)

	// ReplaceRiskScore deletes prior score rows for the pool and inserts the
	// new one in a single transaction.
	ReplaceRiskScore(ctx context.Context, score model.RiskScore) error
	RiskSummary(ctx context.Context) ([]model.SummaryRow, error)
	RiskScoreForPool(ctx context.Context, externalID string) (model.Pool, model.RiskScore, bool, error)

	TableCounts(ctx context.Context) (TableCounts, error)
	LatestMetricDate(ctx context.Context) (time.Time, bool, error)
}

// Tx scopes a batch of pool upserts. A failed UpsertPool affects only that row;
// the enclosing transaction stays usable.
type Tx interface {
	// UpsertPool inserts or updates by external id and reports whether a new
	// row was created.
	UpsertPool(ctx context.Context, pool model.PoolUpsert) (inserted bool, err error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/storage"
)

// Store provides Postgres persistence for pools, metrics, and risk scores.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Begin opens a transaction for batched pool writes.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &poolTx{tx: tx}, nil
}

type poolTx struct {
	tx pgx.Tx
}

// UpsertPool inserts or updates a pool by external id inside a savepoint, so a
// row-level failure leaves the enclosing transaction usable. The (xmax = 0)
// check distinguishes a fresh insert from a conflict update.
func (t *poolTx) UpsertPool(ctx context.Context, pool model.PoolUpsert) (bool, error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return false, err
	}

	var inserted bool
	row := sp.QueryRow(ctx, `
		INSERT INTO pools (pool_id, symbol, chain, project, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (pool_id)
		DO UPDATE SET
			symbol = EXCLUDED.symbol,
			chain = EXCLUDED.chain,
			project = EXCLUDED.project,
			updated_at = now()
		RETURNING (xmax = 0)
	`, pool.ExternalID, pool.Symbol, pool.Chain, pool.Project)
	if err := row.Scan(&inserted); err != nil {
		_ = sp.Rollback(ctx)
		return false, err
	}
	return inserted, sp.Commit(ctx)
}

func (t *poolTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *poolTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// ListPools returns all tracked pools ordered by id.
func (s *Store) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pool_id, symbol, chain, project, created_at, updated_at
		FROM pools
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		var p model.Pool
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.Symbol, &p.Chain, &p.Project, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (s *Store) PoolIDByExternalID(ctx context.Context, externalID string) (int64, bool, error) {
	var id int64
	row := s.pool.QueryRow(ctx, `SELECT id FROM pools WHERE pool_id = $1`, externalID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// TouchPools bumps updated_at for pools still present in the live listing.
func (s *Store) TouchPools(ctx context.Context, externalIDs []string) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE pools SET updated_at = now() WHERE pool_id = ANY($1)
	`, externalIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// UpsertMetric writes one daily observation; re-ingesting the same day updates
// fields in place.
func (s *Store) UpsertMetric(ctx context.Context, m model.PoolMetric) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_metrics_daily (
			pool_id, date, apy, apy_base, apy_reward, tvl_usd, il7d
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pool_id, date)
		DO UPDATE SET
			apy = EXCLUDED.apy,
			apy_base = EXCLUDED.apy_base,
			apy_reward = EXCLUDED.apy_reward,
			tvl_usd = EXCLUDED.tvl_usd,
			il7d = EXCLUDED.il7d
	`, m.PoolID, m.Date, m.APY, m.APYBase, m.APYReward, m.TVLUSD, m.IL7D)
	return err
}

func (s *Store) HasMetricSince(ctx context.Context, poolID int64, since time.Time) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pool_metrics_daily WHERE pool_id = $1 AND date >= $2
		)
	`, poolID, since)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MetricsSince returns observations within the trailing window ordered by date.
func (s *Store) MetricsSince(ctx context.Context, poolID int64, since time.Time) ([]model.PoolMetric, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, date, apy, apy_base, apy_reward, tvl_usd, il7d
		FROM pool_metrics_daily
		WHERE pool_id = $1 AND date >= $2
		ORDER BY date
	`, poolID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []model.PoolMetric
	for rows.Next() {
		var m model.PoolMetric
		if err := rows.Scan(&m.PoolID, &m.Date, &m.APY, &m.APYBase, &m.APYReward, &m.TVLUSD, &m.IL7D); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (s *Store) CountMetrics(ctx context.Context, poolID int64) (int64, error) {
	var count int64
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM pool_metrics_daily WHERE pool_id = $1`, poolID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ReplaceRiskScore deletes prior score rows for the pool and inserts the new
// one in a single transaction, so the pool never shows zero scores mid-swap.
func (s *Store) ReplaceRiskScore(ctx context.Context, score model.RiskScore) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pool_risk_scores WHERE pool_id = $1`, score.PoolID); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pool_risk_scores (
			pool_id, calculated_at,
			apy_mean_30d, apy_volatility_30d, tvl_mean_30d, tvl_volatility_30d,
			liquidity_score, stability_score, composite_risk_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		score.PoolID,
		score.CalculatedAt,
		score.APYMean30d,
		score.APYVolatility30d,
		score.TVLMean30d,
		score.TVLVolatility30d,
		score.LiquidityScore,
		score.StabilityScore,
		score.CompositeScore,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RiskSummary joins pools with their current scores. Risk levels are filled in
// by the caller.
func (s *Store) RiskSummary(ctx context.Context) ([]model.SummaryRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.project, p.symbol, p.chain,
			r.composite_risk_score, r.apy_mean_30d, r.tvl_mean_30d
		FROM pools p
		JOIN pool_risk_scores r ON r.pool_id = p.id
		ORDER BY r.composite_risk_score
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summary []model.SummaryRow
	for rows.Next() {
		var row model.SummaryRow
		if err := rows.Scan(&row.Project, &row.Symbol, &row.Chain, &row.CompositeScore, &row.APYMean30d, &row.TVLMean30d); err != nil {
			return nil, err
		}
		summary = append(summary, row)
	}
	return summary, rows.Err()
}

// RiskScoreForPool returns a pool's current risk breakdown by external id.
func (s *Store) RiskScoreForPool(ctx context.Context, externalID string) (model.Pool, model.RiskScore, bool, error) {
	var p model.Pool
	var r model.RiskScore
	row := s.pool.QueryRow(ctx, `
		SELECT p.id, p.pool_id, p.symbol, p.chain, p.project, p.created_at, p.updated_at,
			r.pool_id, r.calculated_at,
			r.apy_mean_30d, r.apy_volatility_30d, r.tvl_mean_30d, r.tvl_volatility_30d,
			r.liquidity_score, r.stability_score, r.composite_risk_score
		FROM pools p
		JOIN pool_risk_scores r ON r.pool_id = p.id
		WHERE p.pool_id = $1
	`, externalID)
	err := row.Scan(
		&p.ID, &p.ExternalID, &p.Symbol, &p.Chain, &p.Project, &p.CreatedAt, &p.UpdatedAt,
		&r.PoolID, &r.CalculatedAt,
		&r.APYMean30d, &r.APYVolatility30d, &r.TVLMean30d, &r.TVLVolatility30d,
		&r.LiquidityScore, &r.StabilityScore, &r.CompositeScore,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, model.RiskScore{}, false, nil
		}
		return model.Pool{}, model.RiskScore{}, false, err
	}
	return p, r, true, nil
}

func (s *Store) TableCounts(ctx context.Context) (storage.TableCounts, error) {
	var counts storage.TableCounts
	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM protocols),
			(SELECT count(*) FROM pools),
			(SELECT count(*) FROM pool_metrics_daily),
			(SELECT count(*) FROM pool_risk_scores)
	`)
	if err := row.Scan(&counts.Protocols, &counts.Pools, &counts.Metrics, &counts.RiskScores); err != nil {
		return storage.TableCounts{}, err
	}
	return counts, nil
}

func (s *Store) LatestMetricDate(ctx context.Context) (time.Time, bool, error) {
	var latest *time.Time
	row := s.pool.QueryRow(ctx, `SELECT max(date) FROM pool_metrics_daily`)
	if err := row.Scan(&latest); err != nil {
		return time.Time{}, false, err
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

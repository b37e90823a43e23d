package postgres

import "context"

// Schema DDL is idempotent; InitSchema can run on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS protocols (
		id BIGSERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		slug TEXT UNIQUE,
		category TEXT,
		chain TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pools (
		id BIGSERIAL PRIMARY KEY,
		pool_id TEXT UNIQUE NOT NULL,
		protocol_id BIGINT REFERENCES protocols(id),
		symbol TEXT,
		chain TEXT,
		project TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pool_metrics_daily (
		id BIGSERIAL PRIMARY KEY,
		pool_id BIGINT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
		date DATE NOT NULL,
		apy DOUBLE PRECISION,
		apy_base DOUBLE PRECISION,
		apy_reward DOUBLE PRECISION,
		tvl_usd DOUBLE PRECISION,
		il7d DOUBLE PRECISION,
		UNIQUE (pool_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pool_metrics_daily_date ON pool_metrics_daily (date)`,
	`CREATE TABLE IF NOT EXISTS pool_risk_scores (
		id BIGSERIAL PRIMARY KEY,
		pool_id BIGINT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
		calculated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		apy_mean_30d DOUBLE PRECISION,
		apy_volatility_30d DOUBLE PRECISION,
		tvl_mean_30d DOUBLE PRECISION,
		tvl_volatility_30d DOUBLE PRECISION,
		liquidity_score DOUBLE PRECISION,
		stability_score DOUBLE PRECISION,
		composite_risk_score DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pool_risk_scores_pool ON pool_risk_scores (pool_id)`,
}

// InitSchema creates all tables and indexes.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

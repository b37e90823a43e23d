package model

import "time"

// Pool is a tracked yield pool. ExternalID is the upstream identifier and is
// unique across the store.
type Pool struct {
	ID         int64
	ExternalID string
	Symbol     string
	Chain      string
	Project    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PoolUpsert carries the mutable pool fields written during collection.
type PoolUpsert struct {
	ExternalID string
	Symbol     string
	Chain      string
	Project    string
}

// PoolMetric is one observation of a pool on one UTC calendar day.
// (PoolID, Date) is unique; re-ingesting the same day updates in place.
type PoolMetric struct {
	PoolID    int64
	Date      time.Time
	APY       *float64
	APYBase   *float64
	APYReward *float64
	TVLUSD    *float64
	IL7D      *float64
}

// RiskScore is the current risk snapshot for a pool. At most one row per pool
// is live; recomputation replaces prior rows.
type RiskScore struct {
	PoolID           int64
	CalculatedAt     time.Time
	APYMean30d       float64
	APYVolatility30d float64
	TVLMean30d       float64
	TVLVolatility30d float64
	LiquidityScore   float64
	StabilityScore   float64
	CompositeScore   float64
}

// SummaryRow is one line of the risk report consumed by the presentation layer.
type SummaryRow struct {
	Project        string
	Symbol         string
	Chain          string
	CompositeScore float64
	APYMean30d     float64
	TVLMean30d     float64
	RiskLevel      string
}

package config

import (
	"fmt"
	"math"
)

// RiskConfig holds the scoring weights and level boundaries.
//
// The stability-risk weight is deliberately kept as two knobs (APY volatility
// and TVL volatility) that are summed at composite time, so they can be tuned
// independently later.
type RiskConfig struct {
	APYVolatilityWeight float64
	TVLVolatilityWeight float64
	LiquidityWeight     float64
	LowMax              float64
	MediumMax           float64
}

// Validate requires the three weights to sum to 1.0 and the level boundaries
// to be ordered within [0,100].
func (r RiskConfig) Validate() error {
	sum := r.APYVolatilityWeight + r.TVLVolatilityWeight + r.LiquidityWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("risk weights must sum to 1.0, got %.4f", sum)
	}
	if r.APYVolatilityWeight < 0 || r.TVLVolatilityWeight < 0 || r.LiquidityWeight < 0 {
		return fmt.Errorf("risk weights must be non-negative")
	}
	if r.LowMax < 0 || r.LowMax >= r.MediumMax || r.MediumMax > 100 {
		return fmt.Errorf("risk level bounds must satisfy 0 <= low < medium <= 100, got %.1f/%.1f", r.LowMax, r.MediumMax)
	}
	return nil
}

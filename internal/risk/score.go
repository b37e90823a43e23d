// Package risk converts a pool's recent metric window into normalized
// sub-scores and a composite 0-100 risk number (lower = safer).
package risk

import (
	"math"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/config"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
)

// APYVolatility returns the mean and sample standard deviation of the non-nil
// APY values. Fewer than 2 values is the degenerate low-volatility case (0, 0).
func APYVolatility(metrics []model.PoolMetric) (mean, std float64) {
	values := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		if m.APY != nil {
			values = append(values, *m.APY)
		}
	}
	if len(values) < 2 {
		return 0, 0
	}
	return meanStd(values)
}

// TVLVolatility returns the mean TVL and its coefficient of variation
// (std/mean as a percentage). A non-positive mean yields cv = 0.
func TVLVolatility(metrics []model.PoolMetric) (mean, cv float64) {
	values := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		if m.TVLUSD != nil {
			values = append(values, *m.TVLUSD)
		}
	}
	if len(values) < 2 {
		return 0, 0
	}

	mean, std := meanStd(values)
	if mean > 0 {
		cv = std / mean * 100
	}
	return mean, cv
}

// LiquidityScore maps mean TVL onto [0,100] logarithmically, with a $10k floor
// and saturation at $1B. TVL is heavy-tailed; the log scale keeps small pools
// off zero while flattening returns at the top.
//
//	$100k -> 20, $1M -> 40, $10M -> 60, $100M -> 80, $1B -> 100
func LiquidityScore(meanTVL float64) float64 {
	if meanTVL <= 0 {
		return 0
	}
	logTVL := math.Log10(math.Max(meanTVL, 10_000))
	// log10(10k)=4 .. log10(1B)=9 mapped to 0..100.
	return clamp((logTVL-4)/5*100, 0, 100)
}

// StabilityScore blends inverse volatility components 60/40. APY std carries a
// x2 sensitivity multiplier: yield volatility is the dominant risk signal.
func StabilityScore(apyStd, tvlCV float64) float64 {
	apyComponent := math.Max(0, 100-apyStd*2)
	tvlComponent := math.Max(0, 100-tvlCV)
	return clamp(apyComponent*0.6+tvlComponent*0.4, 0, 100)
}

// CompositeScore combines the inverted sub-scores under the configured
// weights. The two volatility weights stay separate knobs and are summed here.
func CompositeScore(cfg config.RiskConfig, liquidityScore, stabilityScore float64) float64 {
	liquidityRisk := 100 - liquidityScore
	stabilityRisk := 100 - stabilityScore
	composite := stabilityRisk*(cfg.APYVolatilityWeight+cfg.TVLVolatilityWeight) +
		liquidityRisk*cfg.LiquidityWeight
	return clamp(composite, 0, 100)
}

// ClassifyRisk partitions [0,100] into Low/Medium/High with the boundary
// values belonging to the lower band.
func ClassifyRisk(cfg config.RiskConfig, score float64) string {
	switch {
	case score <= cfg.LowMax:
		return "Low"
	case score <= cfg.MediumMax:
		return "Medium"
	default:
		return "High"
	}
}

// meanStd computes the mean and sample standard deviation (n-1 divisor).
// Callers guarantee len(values) >= 2.
func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	std = math.Sqrt(sumSq / float64(len(values)-1))
	return mean, std
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

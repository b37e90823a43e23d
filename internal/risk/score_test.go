package risk

import (
	"math"
	"testing"

	"github.com/snowblind5/defi-yield-risk-analyzer/internal/config"
	"github.com/snowblind5/defi-yield-risk-analyzer/internal/model"
)

func defaultRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		APYVolatilityWeight: 0.3,
		TVLVolatilityWeight: 0.3,
		LiquidityWeight:     0.4,
		LowMax:              30,
		MediumMax:           60,
	}
}

func f64(v float64) *float64 { return &v }

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestLiquidityScoreAnchors(t *testing.T) {
	cases := []struct {
		tvl  float64
		want float64
	}{
		{100_000, 20},
		{1_000_000, 40},
		{10_000_000, 60},
		{100_000_000, 80},
		{1_000_000_000, 100},
	}
	for _, tc := range cases {
		if got := LiquidityScore(tc.tvl); !approxEqual(got, tc.want, 1e-9) {
			t.Fatalf("LiquidityScore(%.0f) = %f, want %f", tc.tvl, got, tc.want)
		}
	}
}

func TestLiquidityScoreBoundsAndFloor(t *testing.T) {
	if got := LiquidityScore(0); got != 0 {
		t.Fatalf("zero TVL must score 0, got %f", got)
	}
	if got := LiquidityScore(-5); got != 0 {
		t.Fatalf("negative TVL must score 0, got %f", got)
	}
	// Below the $10k floor the score clamps at 0, not negative.
	if got := LiquidityScore(500); got != 0 {
		t.Fatalf("sub-floor TVL must score 0, got %f", got)
	}
	// Above $1B the score saturates.
	if got := LiquidityScore(50_000_000_000); got != 100 {
		t.Fatalf("huge TVL must saturate at 100, got %f", got)
	}
}

func TestLiquidityScoreMonotonic(t *testing.T) {
	prev := -1.0
	for tvl := 1.0; tvl < 1e12; tvl *= 3 {
		score := LiquidityScore(tvl)
		if score < prev {
			t.Fatalf("score decreased at tvl %.0f: %f < %f", tvl, score, prev)
		}
		if score < 0 || score > 100 {
			t.Fatalf("score out of bounds at tvl %.0f: %f", tvl, score)
		}
		prev = score
	}
}

func TestStabilityScore(t *testing.T) {
	if got := StabilityScore(0, 0); got != 100 {
		t.Fatalf("StabilityScore(0,0) = %f, want 100", got)
	}
	// apyComponent saturates at 0 when std*2 >= 100.
	if got := StabilityScore(50, 0); !approxEqual(got, 40, 1e-9) {
		t.Fatalf("StabilityScore(50,0) = %f, want 40", got)
	}
	if got := StabilityScore(0, 100); !approxEqual(got, 60, 1e-9) {
		t.Fatalf("StabilityScore(0,100) = %f, want 60", got)
	}
	for _, apyStd := range []float64{0, 10, 50, 500} {
		for _, tvlCV := range []float64{0, 25, 100, 400} {
			got := StabilityScore(apyStd, tvlCV)
			if got < 0 || got > 100 {
				t.Fatalf("StabilityScore(%f,%f) out of bounds: %f", apyStd, tvlCV, got)
			}
		}
	}
}

func TestCompositeScoreDocumentedExample(t *testing.T) {
	// liquidity 70 / stability 80 -> risks 30/20 -> 20*0.6 + 30*0.4 = 24.
	got := CompositeScore(defaultRiskConfig(), 70, 80)
	if !approxEqual(got, 24, 1e-9) {
		t.Fatalf("CompositeScore(70,80) = %f, want 24", got)
	}
}

func TestCompositeScoreBounds(t *testing.T) {
	cfg := defaultRiskConfig()
	if got := CompositeScore(cfg, 100, 100); got != 0 {
		t.Fatalf("perfect scores must give 0 risk, got %f", got)
	}
	if got := CompositeScore(cfg, 0, 0); got != 100 {
		t.Fatalf("worst scores must give 100 risk, got %f", got)
	}
}

func TestClassifyRiskPartition(t *testing.T) {
	cfg := defaultRiskConfig()
	for score := 0.0; score <= 100.0; score += 0.25 {
		level := ClassifyRisk(cfg, score)
		if level != "Low" && level != "Medium" && level != "High" {
			t.Fatalf("score %f has no level", score)
		}
	}
	// Boundary values belong to the lower band.
	if got := ClassifyRisk(cfg, 30); got != "Low" {
		t.Fatalf("score 30 = %s, want Low", got)
	}
	if got := ClassifyRisk(cfg, 30.01); got != "Medium" {
		t.Fatalf("score 30.01 = %s, want Medium", got)
	}
	if got := ClassifyRisk(cfg, 60); got != "Medium" {
		t.Fatalf("score 60 = %s, want Medium", got)
	}
	if got := ClassifyRisk(cfg, 60.01); got != "High" {
		t.Fatalf("score 60.01 = %s, want High", got)
	}
}

func TestAPYVolatility(t *testing.T) {
	metrics := []model.PoolMetric{
		{APY: f64(4)},
		{APY: nil},
		{APY: f64(6)},
	}
	mean, std := APYVolatility(metrics)
	if !approxEqual(mean, 5, 1e-9) {
		t.Fatalf("mean = %f, want 5", mean)
	}
	// Sample std of {4, 6} is sqrt(2).
	if !approxEqual(std, math.Sqrt2, 1e-9) {
		t.Fatalf("std = %f, want %f", std, math.Sqrt2)
	}

	mean, std = APYVolatility([]model.PoolMetric{{APY: f64(4)}, {APY: nil}})
	if mean != 0 || std != 0 {
		t.Fatalf("single value must degrade to (0,0), got (%f,%f)", mean, std)
	}
}

func TestTVLVolatility(t *testing.T) {
	metrics := []model.PoolMetric{
		{TVLUSD: f64(1_000_000)},
		{TVLUSD: f64(1_000_000)},
		{TVLUSD: f64(1_000_000)},
	}
	mean, cv := TVLVolatility(metrics)
	if !approxEqual(mean, 1_000_000, 1e-6) || cv != 0 {
		t.Fatalf("constant TVL must have cv 0, got mean %f cv %f", mean, cv)
	}

	// Negative mean guards the division.
	mean, cv = TVLVolatility([]model.PoolMetric{{TVLUSD: f64(-10)}, {TVLUSD: f64(-20)}})
	if cv != 0 {
		t.Fatalf("non-positive mean must give cv 0, got %f (mean %f)", cv, mean)
	}
}

func TestScoringEndToEndConstantSeries(t *testing.T) {
	// 10 daily observations with constant APY 5.0 and TVL $2M.
	metrics := make([]model.PoolMetric, 10)
	for i := range metrics {
		metrics[i] = model.PoolMetric{APY: f64(5), TVLUSD: f64(2_000_000)}
	}

	apyMean, apyStd := APYVolatility(metrics)
	tvlMean, tvlCV := TVLVolatility(metrics)
	if apyMean != 5 || apyStd != 0 || tvlCV != 0 {
		t.Fatalf("constant series moments mismatch: %f/%f/%f", apyMean, apyStd, tvlCV)
	}

	liquidity := LiquidityScore(tvlMean)
	wantLiquidity := (math.Log10(2_000_000) - 4) / 5 * 100 // 46.0206
	if !approxEqual(liquidity, wantLiquidity, 1e-9) {
		t.Fatalf("liquidity = %f, want %f", liquidity, wantLiquidity)
	}

	stability := StabilityScore(apyStd, tvlCV)
	if stability != 100 {
		t.Fatalf("stability = %f, want 100", stability)
	}

	composite := CompositeScore(defaultRiskConfig(), liquidity, stability)
	wantComposite := (100-stability)*0.6 + (100-liquidity)*0.4
	if !approxEqual(composite, wantComposite, 1e-9) {
		t.Fatalf("composite = %f, want %f", composite, wantComposite)
	}
}

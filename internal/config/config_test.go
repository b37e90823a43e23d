package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.YieldsURL != "https://yields.llama.fi" {
		t.Fatalf("yields url mismatch: %s", cfg.YieldsURL)
	}
	if cfg.MinTVLUSD != 100_000 {
		t.Fatalf("min tvl mismatch: %f", cfg.MinTVLUSD)
	}
	if cfg.MinAPY != 0.5 || cfg.MaxAPY != 200 {
		t.Fatalf("apy band mismatch: %f..%f", cfg.MinAPY, cfg.MaxAPY)
	}
	if cfg.TopPools != 500 {
		t.Fatalf("top pools mismatch: %d", cfg.TopPools)
	}
	if cfg.HistoryDays != 90 || cfg.ResumeSkipDays != 7 {
		t.Fatalf("window mismatch: %d/%d", cfg.HistoryDays, cfg.ResumeSkipDays)
	}
	if cfg.RequestDelay != time.Second || cfg.RetryBackoff != time.Second {
		t.Fatalf("delay mismatch: %v/%v", cfg.RequestDelay, cfg.RetryBackoff)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("max retries mismatch: %d", cfg.MaxRetries)
	}
	if cfg.Risk.LowMax != 30 || cfg.Risk.MediumMax != 60 {
		t.Fatalf("risk bounds mismatch: %f/%f", cfg.Risk.LowMax, cfg.Risk.MediumMax)
	}
}

func TestRiskConfigWeightsMustSum(t *testing.T) {
	bad := RiskConfig{
		APYVolatilityWeight: 0.5,
		TVLVolatilityWeight: 0.3,
		LiquidityWeight:     0.4,
		LowMax:              30,
		MediumMax:           60,
	}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for weights summing to 1.2")
	}

	good := RiskConfig{
		APYVolatilityWeight: 0.3,
		TVLVolatilityWeight: 0.3,
		LiquidityWeight:     0.4,
		LowMax:              30,
		MediumMax:           60,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRiskConfigBounds(t *testing.T) {
	cfg := RiskConfig{
		APYVolatilityWeight: 0.3,
		TVLVolatilityWeight: 0.3,
		LiquidityWeight:     0.4,
		LowMax:              60,
		MediumMax:           30,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for inverted bounds")
	}
}

func TestConfigValidateAPYBand(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.MinAPY = 200
	cfg.MaxAPY = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for inverted apy band")
	}
}

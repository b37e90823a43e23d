package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	YieldsURL      string
	BaseURL        string
	PGDSN          string
	MinTVLUSD      float64
	MinAPY         float64
	MaxAPY         float64
	TopPools       int
	HistoryDays    int
	ResumeSkipDays int
	RequestDelay   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	LogLevel       string
	Risk           RiskConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("yields-url", "https://yields.llama.fi")
	v.SetDefault("base-url", "https://api.llama.fi")
	v.SetDefault("min-tvl-usd", 100_000.0)
	v.SetDefault("min-apy", 0.5)
	v.SetDefault("max-apy", 200.0)
	v.SetDefault("top-pools", 500)
	v.SetDefault("history-days", 90)
	v.SetDefault("resume-skip-days", 7)
	v.SetDefault("request-delay", time.Second)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", time.Second)
	v.SetDefault("log-level", "info")
	v.SetDefault("weight-apy-volatility", 0.3)
	v.SetDefault("weight-tvl-volatility", 0.3)
	v.SetDefault("weight-liquidity", 0.4)
	v.SetDefault("risk-low-max", 30.0)
	v.SetDefault("risk-medium-max", 60.0)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		YieldsURL:      v.GetString("yields-url"),
		BaseURL:        v.GetString("base-url"),
		PGDSN:          v.GetString("pg-dsn"),
		MinTVLUSD:      v.GetFloat64("min-tvl-usd"),
		MinAPY:         v.GetFloat64("min-apy"),
		MaxAPY:         v.GetFloat64("max-apy"),
		TopPools:       v.GetInt("top-pools"),
		HistoryDays:    v.GetInt("history-days"),
		ResumeSkipDays: v.GetInt("resume-skip-days"),
		RequestDelay:   v.GetDuration("request-delay"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		LogLevel:       v.GetString("log-level"),
		Risk: RiskConfig{
			APYVolatilityWeight: v.GetFloat64("weight-apy-volatility"),
			TVLVolatilityWeight: v.GetFloat64("weight-tvl-volatility"),
			LiquidityWeight:     v.GetFloat64("weight-liquidity"),
			LowMax:              v.GetFloat64("risk-low-max"),
			MediumMax:           v.GetFloat64("risk-medium-max"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks value ranges that later stages assume.
func (c Config) Validate() error {
	if c.MinAPY >= c.MaxAPY {
		return fmt.Errorf("min-apy %.2f must be below max-apy %.2f", c.MinAPY, c.MaxAPY)
	}
	if c.TopPools <= 0 {
		return fmt.Errorf("top-pools must be positive")
	}
	if c.HistoryDays <= 0 {
		return fmt.Errorf("history-days must be positive")
	}
	return c.Risk.Validate()
}

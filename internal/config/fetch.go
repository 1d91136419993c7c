package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"poolPriceFetcher/internal/model"
)

// FetchConfig holds configuration for the fetch-prices command.
type FetchConfig struct {
	ChainID      uint64
	Precision    uint8
	Chain        ChainConfig
	Range        string
	WriteDir     string
	Label        string
	Format       string
	Workers      int
	PGDSN        string
	MetricsAddr  string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
// rangeArg overrides the chain's default block range when not empty.
func LoadFetch(cfgFile string, flags *pflag.FlagSet, rangeArg string) (FetchConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return FetchConfig{}, err
	}

	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("precision", 18)
	v.SetDefault("write-dir", "./.data")
	v.SetDefault("format", "parquet")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	precision := v.GetInt("precision")
	if precision < 0 || precision > model.MaxDecimals {
		return FetchConfig{}, fmt.Errorf("%w: precision %d out of range 0..%d", model.ErrConfiguration, precision, model.MaxDecimals)
	}

	chainID := v.GetUint64("chain-id")
	chain, err := findChain(v, chainID)
	if err != nil {
		return FetchConfig{}, err
	}

	blockRange := rangeArg
	if blockRange == "" {
		blockRange = chain.DefaultRange()
	}
	if blockRange == "" {
		return FetchConfig{}, fmt.Errorf("%w: block range not given and chain %d has no default range", model.ErrConfiguration, chainID)
	}

	cfg := FetchConfig{
		ChainID:      chainID,
		Precision:    uint8(precision),
		Chain:        chain,
		Range:        blockRange,
		WriteDir:     v.GetString("write-dir"),
		Label:        v.GetString("label"),
		Format:       v.GetString("format"),
		Workers:      v.GetInt("workers"),
		PGDSN:        v.GetString("pg-dsn"),
		MetricsAddr:  v.GetString("metrics-addr"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = v.GetString("rpc")
	}
	if cfg.Chain.RPCURL == "" {
		return FetchConfig{}, fmt.Errorf("%w: chain %d has no rpc_url", model.ErrConfiguration, chainID)
	}
	if path := v.GetString("state-db"); path != "" {
		cfg.Chain.StateDBPath = path
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"poolPriceFetcher/internal/model"
)

// SnapshotConfig holds configuration for the snapshot command.
type SnapshotConfig struct {
	ChainID      uint64
	Chain        ChainConfig
	Range        string
	DBPath       string
	BatchSize    uint64
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet, rangeArg string) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SnapshotConfig{}, err
	}

	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("batch-size", uint64(500))
	v.SetDefault("workers", 8)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	chainID := v.GetUint64("chain-id")
	chain, err := findChain(v, chainID)
	if err != nil {
		return SnapshotConfig{}, err
	}
	if rpc := v.GetString("rpc"); chain.RPCURL == "" {
		chain.RPCURL = rpc
	}

	cfg := SnapshotConfig{
		ChainID:      chainID,
		Chain:        chain,
		Range:        rangeArg,
		DBPath:       v.GetString("state-db"),
		BatchSize:    v.GetUint64("batch-size"),
		Workers:      v.GetInt("workers"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.Range == "" {
		cfg.Range = chain.DefaultRange()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = chain.StateDBPath
	}

	switch {
	case cfg.Range == "":
		return SnapshotConfig{}, fmt.Errorf("%w: block range not given and chain %d has no default range", model.ErrConfiguration, chainID)
	case cfg.DBPath == "":
		return SnapshotConfig{}, fmt.Errorf("%w: state db path is required", model.ErrConfiguration)
	case cfg.Chain.RPCURL == "":
		return SnapshotConfig{}, fmt.Errorf("%w: chain %d has no rpc_url", model.ErrConfiguration, chainID)
	case cfg.BatchSize == 0:
		return SnapshotConfig{}, fmt.Errorf("%w: batch size must be greater than zero", model.ErrConfiguration)
	}
	return cfg, nil
}

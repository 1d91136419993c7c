package config

import (
	"fmt"

	"github.com/spf13/viper"

	"poolPriceFetcher/internal/model"
	"poolPriceFetcher/internal/protocol"
)

// ProtocolConfig identifies the pool behind a price source.
type ProtocolConfig struct {
	Type string `mapstructure:"type"`
	Pool string `mapstructure:"pool"`
}

// PriceSourceConfig is one [[chain_configs.price_sources]] entry.
// invert is accepted as an alias of inverse_it.
type PriceSourceConfig struct {
	Name      string         `mapstructure:"name"`
	InverseIt *bool          `mapstructure:"inverse_it"`
	Invert    *bool          `mapstructure:"invert"`
	Protocol  ProtocolConfig `mapstructure:"protocol"`
}

// Inverted returns the configured direction, false when neither key is set.
func (p PriceSourceConfig) Inverted() (bool, error) {
	switch {
	case p.InverseIt != nil && p.Invert != nil:
		if *p.InverseIt != *p.Invert {
			return false, fmt.Errorf("%w: inverse_it = %t conflicts with invert = %t", model.ErrConfiguration, *p.InverseIt, *p.Invert)
		}
		return *p.InverseIt, nil
	case p.InverseIt != nil:
		return *p.InverseIt, nil
	case p.Invert != nil:
		return *p.Invert, nil
	default:
		return false, nil
	}
}

// ChainConfig is one [[chain_configs]] entry.
type ChainConfig struct {
	ChainID           uint64              `mapstructure:"chain_id"`
	RPCURL            string              `mapstructure:"rpc_url"`
	StateDBPath       string              `mapstructure:"state_db_path"`
	DefaultStartBlock uint64              `mapstructure:"default_start_block"`
	DefaultEndBlock   uint64              `mapstructure:"default_end_block"`
	PriceSources      []PriceSourceConfig `mapstructure:"price_sources"`
}

// Sources converts the configured entries, keeping their order. Source names
// must be unique, including the fallback names of unnamed entries.
func (c ChainConfig) Sources() ([]protocol.PriceSource, error) {
	if len(c.PriceSources) == 0 {
		return nil, fmt.Errorf("%w: chain %d has no price sources", model.ErrConfiguration, c.ChainID)
	}
	out := make([]protocol.PriceSource, 0, len(c.PriceSources))
	seen := make(map[string]int, len(c.PriceSources))
	for i, src := range c.PriceSources {
		variant, err := protocol.ParseVariant(src.Protocol.Type, src.Protocol.Pool)
		if err != nil {
			return nil, fmt.Errorf("price source %d (%s): %w", i, src.Name, err)
		}
		invert, err := src.Inverted()
		if err != nil {
			return nil, fmt.Errorf("price source %d (%s): %w", i, src.Name, err)
		}
		source := protocol.PriceSource{
			Name:    src.Name,
			Invert:  invert,
			Variant: variant,
		}
		name := source.SourceName()
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: price sources %d and %d share the name %q", model.ErrConfiguration, prev, i, name)
		}
		seen[name] = i
		out = append(out, source)
	}
	return out, nil
}

// DefaultRange returns the configured default "start..end", or "" when unset.
func (c ChainConfig) DefaultRange() string {
	if c.DefaultStartBlock == 0 && c.DefaultEndBlock == 0 {
		return ""
	}
	return fmt.Sprintf("%d..%d", c.DefaultStartBlock, c.DefaultEndBlock)
}

// findChain decodes chain_configs and returns the entry for chainID.
func findChain(v *viper.Viper, chainID uint64) (ChainConfig, error) {
	var chains []ChainConfig
	if err := v.UnmarshalKey("chain_configs", &chains); err != nil {
		return ChainConfig{}, fmt.Errorf("%w: decode chain_configs: %v", model.ErrConfiguration, err)
	}
	for _, chain := range chains {
		if chain.ChainID == chainID {
			return chain, nil
		}
	}
	return ChainConfig{}, fmt.Errorf("%w: no chain config for chain id %d", model.ErrConfiguration, chainID)
}

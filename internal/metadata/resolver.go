package metadata

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolPriceFetcher/internal/chain"
	"poolPriceFetcher/internal/model"
	"poolPriceFetcher/internal/protocol"
)

// Resolver resolves pool token pairs and token metadata from a node.
type Resolver struct {
	caller chain.Caller
	logger *zap.Logger
}

func NewResolver(caller chain.Caller, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{caller: caller, logger: logger}
}

// ResolveSources identifies the token pair of every source concurrently.
// The result keeps configuration order. Any failure fails the whole call.
func (r *Resolver) ResolveSources(ctx context.Context, sources []protocol.PriceSource) ([]protocol.ParsedPriceSource, error) {
	parsed := make([]protocol.ParsedPriceSource, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			tokens, err := source.Variant.IdentifyTokens(gctx, r.caller)
			if err != nil {
				return fmt.Errorf("%w: pool tokens of %s: %w", model.ErrMetadataResolution, source.Variant.Name(), err)
			}
			parsed[i] = protocol.ParsedPriceSource{PriceSource: source, Tokens: tokens}
			r.logger.Debug("pool tokens resolved",
				zap.String("source", source.SourceName()),
				zap.String("token0", tokens[0].Hex()),
				zap.String("token1", tokens[1].Hex()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// ResolveTokens fetches metadata once per distinct token referenced by sources.
// All requests run concurrently; if any fails no map is returned.
func (r *Resolver) ResolveTokens(ctx context.Context, sources []protocol.ParsedPriceSource) (map[common.Address]model.TokenInfo, error) {
	tokens := UniqueTokens(sources)
	infos := make([]model.TokenInfo, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			info, err := FetchTokenInfo(gctx, r.caller, token, r.logger)
			if err != nil {
				return fmt.Errorf("%w: token %s: %w", model.ErrMetadataResolution, token.Hex(), err)
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[common.Address]model.TokenInfo, len(infos))
	for _, info := range infos {
		out[info.Address] = info
		r.logger.Info("token resolved",
			zap.String("token", info.Address.Hex()),
			zap.String("symbol", info.Symbol),
			zap.Uint8("decimals", info.Decimals),
		)
	}
	return out, nil
}

// UniqueTokens returns the distinct tokens of sources in first-seen order.
func UniqueTokens(sources []protocol.ParsedPriceSource) []common.Address {
	seen := make(map[common.Address]struct{}, 2*len(sources))
	out := make([]common.Address, 0, 2*len(sources))
	for _, source := range sources {
		for _, token := range source.Tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	return out
}

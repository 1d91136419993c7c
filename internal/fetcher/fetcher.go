package fetcher

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolPriceFetcher/internal/model"
	"poolPriceFetcher/internal/protocol"
	"poolPriceFetcher/internal/state"
)

// Context is the immutable run configuration.
type Context struct {
	ChainID   uint64
	Precision uint8
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithWorkers sets the number of blocks priced in parallel.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRegisterer registers fetch metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(f *Fetcher) {
		f.registerer = reg
	}
}

type preparedSource struct {
	protocol.ParsedPriceSource
	name     string
	contract common.Address
	slot     common.Hash
	denoms   [2]*uint256.Int
	base     common.Address
	quote    common.Address
}

// Fetcher prices configured sources over block ranges. It is safe for concurrent use.
type Fetcher struct {
	runCtx          Context
	reader          state.Reader
	sources         []preparedSource
	precisionFactor *uint256.Int
	workers         int
	logger          *zap.Logger
	registerer      prometheus.Registerer
	metrics         *Metrics
}

// New validates the run context and binds every source to its token denominators.
// A source token without metadata or a repeated source name is a configuration error.
func New(runCtx Context, reader state.Reader, sources []protocol.ParsedPriceSource, tokens map[common.Address]model.TokenInfo, opts ...Option) (*Fetcher, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: state reader is nil", model.ErrConfiguration)
	}
	if runCtx.Precision > model.MaxDecimals {
		return nil, fmt.Errorf("%w: precision %d exceeds %d", model.ErrConfiguration, runCtx.Precision, model.MaxDecimals)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no price sources", model.ErrConfiguration)
	}

	f := &Fetcher{
		runCtx:          runCtx,
		reader:          reader,
		sources:         make([]preparedSource, 0, len(sources)),
		precisionFactor: model.DecimalDenominator(runCtx.Precision),
		workers:         runtime.NumCPU(),
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.metrics = NewMetrics(f.registerer)

	seen := make(map[string]struct{}, len(sources))
	for _, source := range sources {
		name := source.SourceName()
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: duplicate source name %q", model.ErrConfiguration, name)
		}
		seen[name] = struct{}{}

		var denoms [2]*uint256.Int
		for i, token := range source.Tokens {
			info, ok := tokens[token]
			if !ok || info.DecimalDenominator == nil {
				return nil, fmt.Errorf("%w: no token info for %s of source %s", model.ErrConfiguration, token.Hex(), source.SourceName())
			}
			denoms[i] = info.DecimalDenominator
		}
		contract, slot := source.Variant.StorageLocation()
		base, quote := source.BaseQuote()
		f.sources = append(f.sources, preparedSource{
			ParsedPriceSource: source,
			name:              name,
			contract:          contract,
			slot:              slot,
			denoms:            denoms,
			base:              base,
			quote:             quote,
		})
	}
	return f, nil
}

// SourceNames returns the source names in configuration order.
func (f *Fetcher) SourceNames() []string {
	names := make([]string, 0, len(f.sources))
	for _, s := range f.sources {
		names = append(names, s.name)
	}
	return names
}

// Metadata describes a run over r.
func (f *Fetcher) Metadata(r BlockRange) model.RunMetadata {
	return model.RunMetadata{
		ChainID:    f.runCtx.ChainID,
		StartBlock: r.Start,
		EndBlock:   r.End,
		Sources:    f.SourceNames(),
		Precision:  f.runCtx.Precision,
	}
}

// Fetch prices every source at every block of r. Blocks are processed by a
// fixed pool of workers; the first error aborts the run and no records are
// returned. Records are grouped by block in ascending order, sources in
// configuration order within a block.
func (f *Fetcher) Fetch(ctx context.Context, r BlockRange) ([]model.PriceRecord, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	f.logger.Info("fetch start",
		zap.Uint64("chain_id", f.runCtx.ChainID),
		zap.Uint64("start_block", r.Start),
		zap.Uint64("end_block", r.End),
		zap.Int("sources", len(f.sources)),
		zap.Int("workers", f.workers),
	)

	perBlock := make([][]model.PriceRecord, r.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for block := r.Start; block < r.End; block++ {
		if gctx.Err() != nil {
			break
		}
		block := block
		g.Go(func() error {
			records, err := f.FetchBlock(gctx, block)
			if err != nil {
				return err
			}
			perBlock[block-r.Start] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.Error("fetch failed", zap.String("range", r.String()), zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.PriceRecord, 0, int(r.Len())*len(f.sources))
	for _, records := range perBlock {
		out = append(out, records...)
	}

	f.logger.Info("fetch complete",
		zap.String("range", r.String()),
		zap.Int("records", len(out)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return out, nil
}

// FetchBlock prices every source at one block.
func (f *Fetcher) FetchBlock(ctx context.Context, block uint64) ([]model.PriceRecord, error) {
	timer := prometheus.NewTimer(f.metrics.blockSeconds)
	defer timer.ObserveDuration()

	view, err := f.reader.At(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("open state at block %d: %w", block, err)
	}

	records := make([]model.PriceRecord, 0, len(f.sources))
	for _, s := range f.sources {
		word, ok, err := view.Storage(ctx, s.contract, s.slot)
		if err != nil {
			f.metrics.storageReads.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("read %s slot %s at block %d: %w", s.contract.Hex(), s.slot.Hex(), block, err)
		}
		if !ok {
			f.metrics.storageReads.WithLabelValues("absent").Inc()
			return nil, fmt.Errorf("%w: %s slot %s empty at block %d", model.ErrStorageAbsent, s.contract.Hex(), s.slot.Hex(), block)
		}
		f.metrics.storageReads.WithLabelValues("ok").Inc()

		price, err := s.Variant.DecodePrice(word, s.Invert, s.denoms, f.precisionFactor)
		if err != nil {
			return nil, fmt.Errorf("decode %s at block %d: %w", s.name, block, err)
		}

		records = append(records, model.PriceRecord{
			BlockNumber: block,
			Source:      s.name,
			Price:       price,
			BaseToken:   s.base,
			QuoteToken:  s.quote,
		})
	}

	f.metrics.blocks.Inc()
	f.metrics.records.Add(float64(len(records)))
	if ce := f.logger.Check(zap.DebugLevel, "block priced"); ce != nil {
		ce.Write(zap.Uint64("block", block), zap.Int("records", len(records)))
	}
	return records, nil
}

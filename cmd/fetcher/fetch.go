package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolPriceFetcher/internal/chain"
	"poolPriceFetcher/internal/config"
	"poolPriceFetcher/internal/fetcher"
	"poolPriceFetcher/internal/metadata"
	"poolPriceFetcher/internal/model"
	"poolPriceFetcher/internal/state"
	"poolPriceFetcher/internal/storage"
	"poolPriceFetcher/internal/storage/postgres"
)

func runFetch(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags(), rangeArg(args))
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := fetchPrices(cfg, logger); err != nil {
		logger.Error("fetch-prices failed", zap.Error(err))
		return err
	}
	return nil
}

func fetchPrices(cfg config.FetchConfig, logger *zap.Logger) error {
	blockRange, err := fetcher.ParseBlockRange(cfg.Range)
	if err != nil {
		return err
	}
	format, err := storage.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	sources, err := cfg.Chain.Sources()
	if err != nil {
		return err
	}

	label := cfg.Label
	if label == "" {
		label = fmt.Sprintf("%d_%s", cfg.ChainID, uuid.NewString())
	}
	out, err := storage.PrepareOutputDir(cfg.WriteDir, label)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	client, err := chain.NewClient(ctx, cfg.Chain.RPCURL, chain.RetryConfig{
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	if err := checkChainID(ctx, client, cfg.ChainID); err != nil {
		return err
	}

	resolver := metadata.NewResolver(client, logger)
	parsed, err := resolver.ResolveSources(ctx, sources)
	if err != nil {
		return err
	}
	tokens, err := resolver.ResolveTokens(ctx, parsed)
	if err != nil {
		return err
	}

	reader, closeReader, err := openReader(ctx, cfg.Chain.StateDBPath, client, blockRange)
	if err != nil {
		return err
	}
	defer closeReader()

	priceFetcher, err := fetcher.New(
		fetcher.Context{ChainID: cfg.ChainID, Precision: cfg.Precision},
		reader, parsed, tokens,
		fetcher.WithWorkers(cfg.Workers),
		fetcher.WithLogger(logger),
		fetcher.WithRegisterer(reg),
	)
	if err != nil {
		return err
	}

	logger.Info("fetch-prices start",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("range", blockRange.String()),
		zap.Strings("sources", priceFetcher.SourceNames()),
		zap.Int("tokens", len(tokens)),
		zap.String("out", out.Path),
		zap.String("format", string(format)),
		zap.Bool("state_db", cfg.Chain.StateDBPath != ""),
	)

	records, err := priceFetcher.Fetch(ctx, blockRange)
	if err != nil {
		return err
	}

	// Files are staged first and moved into place last, so a failed write or
	// Postgres save leaves no run directory behind.
	meta := priceFetcher.Metadata(blockRange)
	staged, err := out.Stage(format, records, meta)
	if err != nil {
		return err
	}
	defer staged.Discard()

	if cfg.PGDSN != "" {
		if err := savePostgres(ctx, cfg.PGDSN, label, meta, records); err != nil {
			return err
		}
		logger.Info("run saved to postgres", zap.String("dsn", redactDSN(cfg.PGDSN)), zap.String("label", label))
	}
	if err := staged.Commit(); err != nil {
		return err
	}

	logLatest(logger, records, tokens, cfg.Precision)
	logger.Info("fetch-prices done",
		zap.String("out", out.Path),
		zap.Int("records", len(records)),
	)
	return nil
}

func checkChainID(ctx context.Context, client *chain.Client, want uint64) error {
	got, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !got.IsUint64() || got.Uint64() != want {
		return fmt.Errorf("%w: rpc serves chain %s, expected %d", model.ErrConfiguration, got, want)
	}
	return nil
}

// openReader uses the SQLite snapshot when configured, otherwise the archive
// node. The snapshot must cover both ends of the range and the archive must
// already have the last block.
func openReader(ctx context.Context, dbPath string, client *chain.Client, r fetcher.BlockRange) (state.Reader, func(), error) {
	if dbPath != "" {
		store, err := state.OpenSQLite(dbPath, false)
		if err != nil {
			return nil, nil, err
		}
		for _, block := range []uint64{r.Start, r.End - 1} {
			ok, err := store.Covered(ctx, block)
			if err != nil {
				store.Close()
				return nil, nil, err
			}
			if !ok {
				store.Close()
				return nil, nil, fmt.Errorf("%w: block %d is not in snapshot %s", model.ErrStorageAbsent, block, dbPath)
			}
		}
		return store, func() { store.Close() }, nil
	}

	head, err := client.LatestBlockNumber(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get head block: %w", err)
	}
	if r.End-1 > head {
		return nil, nil, fmt.Errorf("%w: end block %d is beyond chain head %d", model.ErrConfiguration, r.End-1, head)
	}
	return state.NewRPCReader(client), func() {}, nil
}

func savePostgres(ctx context.Context, dsn, label string, meta model.RunMetadata, records []model.PriceRecord) error {
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return store.SaveRun(ctx, label, meta, records)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}

// logLatest logs the last price of every source in human-readable form.
func logLatest(logger *zap.Logger, records []model.PriceRecord, tokens map[common.Address]model.TokenInfo, precision uint8) {
	seen := make(map[string]bool)
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if seen[rec.Source] {
			continue
		}
		seen[rec.Source] = true
		logger.Info("latest price",
			zap.String("source", rec.Source),
			zap.Uint64("block", rec.BlockNumber),
			zap.String("price", rec.PriceDecimal(precision).String()),
			zap.String("base", tokens[rec.BaseToken].Symbol),
			zap.String("quote", tokens[rec.QuoteToken].Symbol),
		)
	}
}

// redactDSN hides the password of a URL-style DSN. Other forms are hidden entirely.
func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}

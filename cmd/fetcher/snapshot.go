package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolPriceFetcher/internal/chain"
	"poolPriceFetcher/internal/config"
	"poolPriceFetcher/internal/fetcher"
	"poolPriceFetcher/internal/state"
)

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags(), rangeArg(args))
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	blockRange, err := fetcher.ParseBlockRange(cfg.Range)
	if err != nil {
		return err
	}
	sources, err := cfg.Chain.Sources()
	if err != nil {
		return err
	}

	locations := make([]state.Location, 0, len(sources))
	for _, source := range sources {
		contract, slot := source.Variant.StorageLocation()
		locations = append(locations, state.Location{Contract: contract, Slot: slot})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	store, err := state.OpenSQLite(cfg.DBPath, true)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("snapshot start",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("range", blockRange.String()),
		zap.Int("slots", len(locations)),
		zap.String("db", cfg.DBPath),
		zap.Uint64("batch_size", cfg.BatchSize),
	)

	written, err := state.Snapshot(ctx, state.NewRPCReader(client), store, locations, blockRange.Start, blockRange.End, state.SnapshotOptions{
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("snapshot failed", zap.Int("changes_written", written), zap.Error(err))
		return err
	}

	logger.Info("snapshot done", zap.Int("changes", written))
	return nil
}

package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "fetcher",
		Short:        "Historical DEX pool price fetcher",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path (default ./config.toml)")

	fetchCmd := &cobra.Command{
		Use:   "fetch-prices [start..end]",
		Short: "Price the configured pools over a block range",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFetch,
	}

	fetchCmd.Flags().Uint64("chain-id", 1, "chain id selecting the chain config")
	fetchCmd.Flags().String("rpc", "", "RPC URL, used when the chain config has none")
	fetchCmd.Flags().String("state-db", "", "SQLite snapshot to read instead of the archive RPC")
	fetchCmd.Flags().String("write-dir", "./.data", "directory receiving run outputs")
	fetchCmd.Flags().String("label", "", "run directory name (default <chain_id>_<uuid>)")
	fetchCmd.Flags().String("format", "parquet", "record format (parquet, jsonl)")
	fetchCmd.Flags().Int("workers", 0, "blocks priced in parallel, 0 means number of CPUs")
	fetchCmd.Flags().String("pg-dsn", "", "optional Postgres DSN receiving the run")
	fetchCmd.Flags().String("metrics-addr", "", "optional address serving /metrics")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC request")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot [start..end]",
		Short: "Copy the configured pools' price slots into a SQLite snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSnapshot,
	}

	snapshotCmd.Flags().Uint64("chain-id", 1, "chain id selecting the chain config")
	snapshotCmd.Flags().String("rpc", "", "archive RPC URL, used when the chain config has none")
	snapshotCmd.Flags().String("state-db", "", "SQLite snapshot path (default state_db_path)")
	snapshotCmd.Flags().Uint64("batch-size", 500, "blocks per committed batch")
	snapshotCmd.Flags().Int("workers", 8, "blocks read in parallel")
	snapshotCmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC request")
	snapshotCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func rangeArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

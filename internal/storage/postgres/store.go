package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolPriceFetcher/internal/model"
)

// Schema creates the tables written by SaveRun.
const Schema = `
CREATE TABLE IF NOT EXISTS price_runs (
	label       TEXT PRIMARY KEY,
	chain_id    BIGINT NOT NULL,
	start_block BIGINT NOT NULL,
	end_block   BIGINT NOT NULL,
	precision   SMALLINT NOT NULL,
	sources     TEXT[] NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pool_prices (
	label       TEXT NOT NULL REFERENCES price_runs (label) ON DELETE CASCADE,
	block_num   BIGINT NOT NULL,
	source      TEXT NOT NULL,
	price       NUMERIC(78, 0) NOT NULL,
	quote_token TEXT NOT NULL,
	base_token  TEXT NOT NULL,
	PRIMARY KEY (label, block_num, source)
);`

const (
	insertRunSQL = `
		INSERT INTO price_runs (label, chain_id, start_block, end_block, precision, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`
	insertPriceSQL = `
		INSERT INTO pool_prices (label, block_num, source, price, quote_token, base_token)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)`
)

// batchSize bounds the number of statements per pgx batch.
const batchSize = 1000

// Store provides Postgres persistence for price runs.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// SaveRun writes the run row and all its prices in one transaction.
// A label that already exists fails the whole run.
func (s *Store) SaveRun(ctx context.Context, label string, meta model.RunMetadata, records []model.PriceRecord) error {
	if label == "" {
		return fmt.Errorf("run label required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertRunSQL, runArgs(label, meta)...); err != nil {
		return fmt.Errorf("insert run %s: %w", label, err)
	}

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := &pgx.Batch{}
		for _, record := range records[start:end] {
			batch.Queue(insertPriceSQL, priceArgs(label, record)...)
		}

		br := tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert price block %d source %s: %w", records[i].BlockNumber, records[i].Source, err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func runArgs(label string, meta model.RunMetadata) []any {
	sources := meta.Sources
	if sources == nil {
		sources = []string{}
	}
	return []any{
		label,
		int64(meta.ChainID),
		int64(meta.StartBlock),
		int64(meta.EndBlock),
		int16(meta.Precision),
		sources,
	}
}

func priceArgs(label string, record model.PriceRecord) []any {
	price := "0"
	if record.Price != nil {
		price = record.Price.Dec()
	}
	return []any{
		label,
		int64(record.BlockNumber),
		record.Source,
		price,
		record.QuoteToken.Hex(),
		record.BaseToken.Hex(),
	}
}

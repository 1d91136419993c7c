package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS storage_changes (
	contract     TEXT    NOT NULL,
	slot         TEXT    NOT NULL,
	block_number INTEGER NOT NULL,
	value        TEXT    NOT NULL,
	PRIMARY KEY (contract, slot, block_number)
);
CREATE TABLE IF NOT EXISTS snapshot_ranges (
	start_block INTEGER NOT NULL,
	end_block   INTEGER NOT NULL,
	PRIMARY KEY (start_block, end_block)
)`

// Change is a storage value that took effect at the end of Block.
type Change struct {
	Contract common.Address
	Slot     common.Hash
	Block    uint64
	Word     *uint256.Int
}

// SQLiteStore is a local snapshot of storage changes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a snapshot store. With create=false the file must exist.
func OpenSQLite(path string, create bool) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open state db: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutChanges stores changes and marks [start, end) as copied, in a single
// transaction. Every change must fall inside the range. Blocks outside all
// copied ranges read as absent.
func (s *SQLiteStore) PutChanges(ctx context.Context, start, end uint64, changes []Change) error {
	if start >= end {
		return fmt.Errorf("empty snapshot range %d..%d", start, end)
	}
	for _, c := range changes {
		if c.Word == nil {
			return fmt.Errorf("nil word for %s slot %s", c.Contract.Hex(), c.Slot.Hex())
		}
		if c.Block < start || c.Block >= end {
			return fmt.Errorf("change at block %d outside range %d..%d", c.Block, start, end)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO storage_changes (contract, slot, block_number, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range changes {
		value := common.Hash(c.Word.Bytes32())
		if _, err := stmt.ExecContext(ctx, c.Contract.Hex(), c.Slot.Hex(), int64(c.Block), value.Hex()); err != nil {
			return fmt.Errorf("insert change: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO snapshot_ranges (start_block, end_block) VALUES (?, ?)`, int64(start), int64(end)); err != nil {
		return fmt.Errorf("insert range: %w", err)
	}
	return tx.Commit()
}

// Covered reports whether block lies in a copied range.
func (s *SQLiteStore) Covered(ctx context.Context, block uint64) (bool, error) {
	return covered(ctx, s.db, int64(block))
}

func covered(ctx context.Context, db *sql.DB, block int64) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM snapshot_ranges
		WHERE start_block <= ? AND end_block > ?
		LIMIT 1`, block, block).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query snapshot ranges: %w", err)
	}
	return true, nil
}

// Latest returns the most recent change of a slot, if any.
func (s *SQLiteStore) Latest(ctx context.Context, contract common.Address, slot common.Hash) (Change, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT block_number, value FROM storage_changes
		WHERE contract = ? AND slot = ?
		ORDER BY block_number DESC LIMIT 1`,
		contract.Hex(), slot.Hex())

	var block int64
	var value string
	if err := row.Scan(&block, &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Change{}, false, nil
		}
		return Change{}, false, err
	}
	return Change{
		Contract: contract,
		Slot:     slot,
		Block:    uint64(block),
		Word:     new(uint256.Int).SetBytes32(common.HexToHash(value).Bytes()),
	}, true, nil
}

// At returns a view of block. Blocks outside every copied range read as
// absent, since the latest stored change may not be their value.
func (s *SQLiteStore) At(ctx context.Context, block uint64) (View, error) {
	ok, err := covered(ctx, s.db, int64(block))
	if err != nil {
		return nil, err
	}
	return sqliteView{db: s.db, block: int64(block), covered: ok}, nil
}

type sqliteView struct {
	db      *sql.DB
	block   int64
	covered bool
}

func (v sqliteView) Storage(ctx context.Context, contract common.Address, slot common.Hash) (*uint256.Int, bool, error) {
	if !v.covered {
		return nil, false, nil
	}
	row := v.db.QueryRowContext(ctx, `
		SELECT value FROM storage_changes
		WHERE contract = ? AND slot = ? AND block_number <= ?
		ORDER BY block_number DESC LIMIT 1`,
		contract.Hex(), slot.Hex(), v.block)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query storage: %w", err)
	}
	return new(uint256.Int).SetBytes32(common.HexToHash(value).Bytes()), true, nil
}

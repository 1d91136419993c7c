package state

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Location is a (contract, slot) pair to copy.
type Location struct {
	Contract common.Address
	Slot     common.Hash
}

// ChangeStore persists slot changes.
type ChangeStore interface {
	Latest(ctx context.Context, contract common.Address, slot common.Hash) (Change, bool, error)
	PutChanges(ctx context.Context, start, end uint64, changes []Change) error
}

// SnapshotOptions tunes Snapshot.
type SnapshotOptions struct {
	BatchSize uint64
	Workers   int
	Logger    *zap.Logger
}

// Snapshot copies the values of locations over [start, end) from src into dst,
// storing only blocks where a value differs from the previous one. Blocks are
// read in batches of BatchSize; each batch is committed before the next one
// starts, so an interrupted snapshot can be resumed. It returns the number of
// changes written.
func Snapshot(ctx context.Context, src Reader, dst ChangeStore, locations []Location, start, end uint64, opts SnapshotOptions) (int, error) {
	if start >= end {
		return 0, fmt.Errorf("start block %d must be less than end block %d", start, end)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	last := make([]*uint256.Int, len(locations))
	for i, loc := range locations {
		change, ok, err := dst.Latest(ctx, loc.Contract, loc.Slot)
		if err != nil {
			return 0, fmt.Errorf("load latest %s: %w", loc.Contract.Hex(), err)
		}
		if ok && change.Block < start {
			last[i] = change.Word
		}
	}

	written := 0
	for from := start; from < end; from += opts.BatchSize {
		to := min(from+opts.BatchSize, end)

		words := make([][]*uint256.Int, to-from)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for block := from; block < to; block++ {
			block := block
			g.Go(func() error {
				view, err := src.At(gctx, block)
				if err != nil {
					return err
				}
				row := make([]*uint256.Int, len(locations))
				for i, loc := range locations {
					word, ok, err := view.Storage(gctx, loc.Contract, loc.Slot)
					if err != nil {
						return fmt.Errorf("read %s slot %s at block %d: %w", loc.Contract.Hex(), loc.Slot.Hex(), block, err)
					}
					if ok {
						row[i] = word
					}
				}
				words[block-from] = row
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return written, err
		}

		var changes []Change
		for offset, row := range words {
			for i, word := range row {
				if word == nil || (last[i] != nil && last[i].Eq(word)) {
					continue
				}
				last[i] = word
				changes = append(changes, Change{
					Contract: locations[i].Contract,
					Slot:     locations[i].Slot,
					Block:    from + uint64(offset),
					Word:     word,
				})
			}
		}
		if err := dst.PutChanges(ctx, from, to, changes); err != nil {
			return written, fmt.Errorf("store changes %d..%d: %w", from, to, err)
		}
		written += len(changes)
		logger.Info("snapshot batch stored",
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Int("changes", len(changes)),
		)
	}
	return written, nil
}

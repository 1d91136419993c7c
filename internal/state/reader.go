package state

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// View is a point-in-time view of contract storage, as of the end of a block.
type View interface {
	// Storage returns the word stored at slot, or ok=false when the store has
	// no value for it at this height. A stored zero is returned with ok=true.
	Storage(ctx context.Context, contract common.Address, slot common.Hash) (word *uint256.Int, ok bool, err error)
}

// Reader opens per-block views. Views are cheap and safe for concurrent use.
type Reader interface {
	At(ctx context.Context, block uint64) (View, error)
}

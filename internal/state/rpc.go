package state

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StorageClient is the subset of an archive node used by RPCReader.
type StorageClient interface {
	StorageAt(ctx context.Context, contract common.Address, slot common.Hash, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
}

// RPCReader reads historical storage from an archive node.
//
// eth_getStorageAt returns zero for unset slots, so a zero word is only
// reported absent when the contract has no code at that block.
type RPCReader struct {
	client StorageClient
}

func NewRPCReader(client StorageClient) *RPCReader {
	return &RPCReader{client: client}
}

func (r *RPCReader) At(_ context.Context, block uint64) (View, error) {
	if r.client == nil {
		return nil, fmt.Errorf("storage client is nil")
	}
	return rpcView{client: r.client, block: new(big.Int).SetUint64(block)}, nil
}

type rpcView struct {
	client StorageClient
	block  *big.Int
}

func (v rpcView) Storage(ctx context.Context, contract common.Address, slot common.Hash) (*uint256.Int, bool, error) {
	raw, err := v.client.StorageAt(ctx, contract, slot, v.block)
	if err != nil {
		return nil, false, fmt.Errorf("storage at %s: %w", v.block, err)
	}
	if len(raw) > 32 {
		return nil, false, fmt.Errorf("storage word is %d bytes", len(raw))
	}
	word := new(uint256.Int).SetBytes(raw)
	if !word.IsZero() {
		return word, true, nil
	}

	code, err := v.client.CodeAt(ctx, contract, v.block)
	if err != nil {
		return nil, false, fmt.Errorf("code at %s: %w", v.block, err)
	}
	if len(code) == 0 {
		return nil, false, nil
	}
	return word, true, nil
}

package protocol

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolPriceFetcher/internal/chain"
	"poolPriceFetcher/internal/model"
)

// Uniswap V2 pair storage: slot 8 packs reserve0 (uint112), reserve1 (uint112)
// and blockTimestampLast (uint32), least significant first.
var (
	uniV2ReservesSlot = common.BytesToHash([]byte{8})
	u112Mask          = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 112), uint256.NewInt(1))
)

type uniV2 struct{}

func (uniV2) label() string     { return "UniV2" }
func (uniV2) slot() common.Hash { return uniV2ReservesSlot }

func (uniV2) tokens(ctx context.Context, caller chain.Caller, pool common.Address) ([2]common.Address, error) {
	return poolTokens(ctx, caller, pool)
}

// decode computes precision * reserveQuote * denomBase / (reserveBase * denomQuote)
// with truncating division.
func (uniV2) decode(word *uint256.Int, invert bool, denoms [2]*uint256.Int, precision *uint256.Int) (*uint256.Int, error) {
	reserve0, reserve1 := unpackReserves(word)
	if reserve0.IsZero() || reserve1.IsZero() {
		return nil, fmt.Errorf("%w: zero reserve (reserve0=%s reserve1=%s)", model.ErrArithmetic, reserve0.Dec(), reserve1.Dec())
	}

	if invert {
		return quo(mul(precision, reserve0, denoms[1]), mul(reserve1, denoms[0]), "reserve1 * denom0")
	}
	return quo(mul(precision, reserve1, denoms[0]), mul(reserve0, denoms[1]), "reserve0 * denom1")
}

func unpackReserves(word *uint256.Int) (*uint256.Int, *uint256.Int) {
	reserve0 := new(uint256.Int).And(word, u112Mask)
	reserve1 := new(uint256.Int).Rsh(word, 112)
	reserve1.And(reserve1, u112Mask)
	return reserve0, reserve1
}

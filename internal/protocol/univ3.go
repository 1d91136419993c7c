package protocol

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"poolPriceFetcher/internal/chain"
	"poolPriceFetcher/internal/model"
)

// Uniswap V3 pool storage: slot0 starts with sqrtPriceX96 (uint160) in the low bits.
var (
	uniV3Slot0 = common.Hash{}
	u160Mask   = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))
	q96        = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	e15        = uint256.NewInt(1_000_000_000_000_000)
	e30        = new(uint256.Int).Mul(e15, e15)
)

type uniV3 struct{}

func (uniV3) label() string     { return "UniV3" }
func (uniV3) slot() common.Hash { return uniV3Slot0 }

func (uniV3) tokens(ctx context.Context, caller chain.Caller, pool common.Address) ([2]common.Address, error) {
	return poolTokens(ctx, caller, pool)
}

// decode rescales sqrtPriceX96 by 1e15 before squaring, so the squared value
// carries a 1e30 factor that each branch removes. The two branches are not
// reciprocals of each other under truncation and must stay separate.
func (uniV3) decode(word *uint256.Int, invert bool, denoms [2]*uint256.Int, precision *uint256.Int) (*uint256.Int, error) {
	sqrtPrice := new(uint256.Int).And(word, u160Mask)
	scaled := new(uint256.Int).Div(mul(e15, sqrtPrice), q96)
	price := new(uint256.Int).Mul(scaled, scaled)

	if invert {
		if price.IsZero() {
			return nil, fmt.Errorf("%w: zero sqrt price", model.ErrArithmetic)
		}
		return quo(mul(precision, e30, denoms[1]), mul(price, denoms[0]), "price * denom0")
	}

	out, err := quo(mul(precision, price, denoms[0]), denoms[1], "denom1")
	if err != nil {
		return nil, err
	}
	return out.Div(out, e30), nil
}

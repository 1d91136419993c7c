package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenInfo captures the ERC20 metadata needed for price normalization.
type TokenInfo struct {
	Address            common.Address
	Symbol             string
	Decimals           uint8
	DecimalDenominator *uint256.Int
}

// MaxDecimals is the largest exponent whose power of ten fits in 256 bits.
const MaxDecimals = 77

// DecimalDenominator returns 10^decimals.
func DecimalDenominator(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}
